// Package protocol はゲームサーバーとのセッションを抽象化する。
// セッションドライバはこのパッケージのDialerとConnだけに依存し、
// 実際の通信はwsbridgeなどの実装が担う。
package protocol

import (
	"context"
	"errors"
	"syscall"
)

// QuitReason は自発的な切断時にサーバーから返る終了理由。
const QuitReason = "disconnect.quitting"

// クリック操作の定数。
const (
	ButtonLeft = 0
	ModeClick  = 0
)

// ErrConnectionRefused はサーバーが接続を拒否した場合のエラー。
var ErrConnectionRefused = errors.New("connection refused")

// IsConnectionRefused はerrが接続拒否を表すかを判定する。
func IsConnectionRefused(err error) bool {
	return errors.Is(err, ErrConnectionRefused) || errors.Is(err, syscall.ECONNREFUSED)
}

// Options は1回の接続に必要なパラメータ。
type Options struct {
	Username string
	Host     string
	Version  string
}

// Dialer はゲームサーバーへの新しい接続を開く。
// 再接続のたびに新しいConnを生成する。
type Dialer interface {
	Dial(ctx context.Context, opts Options) (Conn, error)
}

// Conn は1本のゲームサーバー接続。
// Eventsは接続が終わると閉じられる。
type Conn interface {
	Events() <-chan Event
	Chat(message string) error
	ClickSlot(slot, button, mode int) error
	CloseWindow(w *Window) error
	Quit(reason string) error
	// Close は接続を破棄する。以降のイベントは配送されない。
	Close() error
	Username() string
}
