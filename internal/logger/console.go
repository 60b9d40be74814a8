package logger

import (
	"context"
	"log/slog"
)

// Severity はコンソールに表示するメッセージの重要度タグ。
type Severity string

const (
	SeveritySuccess Severity = "SUCCESS"
	SeverityInfo    Severity = "INFO"
	SeverityError   Severity = "ERROR"
)

// Console は利用者向けのコンソール行を出力する。
// 各行はseverityタグとアカウント名を属性として持つ構造化ログになる。
type Console struct {
	logger *slog.Logger
}

// NewConsole はConsoleを生成する。loggerがnilの場合はslog.Default()を使う。
func NewConsole(logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{logger: logger}
}

// Print はseverity付きのメッセージを1行出力する。
// accountが空の場合はaccount属性を付与しない。
func (c *Console) Print(sev Severity, account, msg string) {
	level := slog.LevelInfo
	if sev == SeverityError {
		level = slog.LevelError
	}

	args := []any{slog.String("severity", string(sev))}
	if account != "" {
		args = append(args, slog.String("account", account))
	}
	c.logger.Log(context.Background(), level, msg, args...)
}

func (c *Console) Success(account, msg string) { c.Print(SeveritySuccess, account, msg) }
func (c *Console) Info(account, msg string)    { c.Print(SeverityInfo, account, msg) }
func (c *Console) Error(account, msg string)   { c.Print(SeverityError, account, msg) }
