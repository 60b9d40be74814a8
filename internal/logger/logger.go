package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ServiceName はすべてのログレコードに付与するservice属性の値。
const ServiceName = "kitcourier"

// level はSetupで生成したすべてのロガーが共有する出力レベル。
// 設定ファイルを読み込む前はInfoで出力し、読み込み後にSetLevelで変更する。
var level = new(slog.LevelVar)

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// writerが指定された場合はそのwriterに出力する。
func Setup(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler).With(slog.String("service", ServiceName))
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// 本番ではos.Stdoutを渡すことを想定している。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w))
}

// ParseLevel は "debug" / "info" / "warn" / "error" をslog.Levelに変換する。空文字はInfo。
func ParseLevel(name string) (slog.Level, error) {
	var l slog.Level
	if strings.TrimSpace(name) == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return l, nil
}

// SetLevel はSetupで生成したロガーの出力レベルを変更する。
func SetLevel(name string) error {
	l, err := ParseLevel(name)
	if err != nil {
		return err
	}
	level.Set(l)
	return nil
}
