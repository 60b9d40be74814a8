// Package accounts はアカウント一覧ファイルの読み込みを提供する。
// 1行に "username" または "username:password" を記述する。
package accounts

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hitoshi/kitcourier/internal/model"
)

// ErrAccountFileCreated はアカウント一覧ファイルが存在せず、サンプルを作成したことを示す。
var ErrAccountFileCreated = errors.New("account file created")

// sampleContent は新規作成時に書き込むサンプル。
const sampleContent = "Account1\nAccount2\nAccount3\nAccount4:MyPasswordIsDifferent\nAccount5"

// Parse はアカウント一覧を読み込む。
// パスワードが省略された行にはdefaultPasswordを使う。空行は無視する。
func Parse(r io.Reader, defaultPassword string) ([]model.Account, error) {
	var list []model.Account

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		username, password, found := strings.Cut(line, ":")
		username = strings.TrimSpace(username)
		if username == "" {
			continue
		}
		if !found {
			password = defaultPassword
		}

		list = append(list, model.Account{Username: username, Password: password})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read account list: %w", err)
	}
	return list, nil
}

// Load はアカウント一覧ファイルを読み込む。
// ファイルが存在しない場合はサンプルを書き込んでErrAccountFileCreatedを返す。
// ファイルが空の場合はサンプルを書き込み、空の一覧を返す。
func Load(path, defaultPassword string) ([]model.Account, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, []byte(sampleContent), 0o600); err != nil {
			return nil, fmt.Errorf("failed to write sample account file: %w", err)
		}
		return nil, ErrAccountFileCreated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account file: %w", err)
	}

	if len(data) == 0 {
		if err := os.WriteFile(path, []byte(sampleContent), 0o600); err != nil {
			return nil, fmt.Errorf("failed to write sample account file: %w", err)
		}
		return nil, nil
	}

	return Parse(strings.NewReader(string(data)), defaultPassword)
}

// Usernames はアカウント一覧からユーザー名のみを取り出す。
func Usernames(list []model.Account) []string {
	names := make([]string, len(list))
	for i, a := range list {
		names[i] = a.Username
	}
	return names
}
