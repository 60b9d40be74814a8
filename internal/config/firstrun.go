package config

import (
	"os"
	"path/filepath"
	"time"
)

const firstRunMarker = "kitcourier_first_run.txt"

// MarkFirstRun は初回起動かどうかを判定し、初回であればマーカーファイルを作成する。
// dirが空の場合はOSの一時ディレクトリを使う。
func MarkFirstRun(dir string) bool {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, firstRunMarker)

	if _, err := os.Stat(path); err == nil {
		return false
	}

	// 書き込みに失敗しても初回扱いのメッセージを出すだけなので無視する
	_ = os.WriteFile(path, []byte(time.Now().Format("Mon Jan 02 2006")), 0o644)
	return true
}
