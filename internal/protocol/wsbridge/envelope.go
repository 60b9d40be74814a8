package wsbridge

import (
	"encoding/json"
	"fmt"

	"github.com/hitoshi/kitcourier/internal/protocol"
)

// ブリッジとの間でやり取りするメッセージ種別。
const (
	typeConnect     = "connect"
	typeChat        = "chat"
	typeClick       = "click"
	typeCloseWindow = "close_window"
	typeQuit        = "quit"

	typeLogin       = "login"
	typeSpawn       = "spawn"
	typeWindowOpen  = "window_open"
	typeSetSlot     = "set_slot"
	typeWindowClose = "window_close"
	typeEnd         = "end"
	typeKicked      = "kicked"
	typeError       = "error"
)

// codeConnRefused はブリッジがゲームサーバーに接続を拒否されたときのエラーコード。
const codeConnRefused = "ECONNREFUSED"

type clientEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type serverEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type connectPayload struct {
	Username string `json:"username"`
	Host     string `json:"host"`
	Version  string `json:"version"`
}

type chatPayload struct {
	Message string `json:"message"`
}

type clickPayload struct {
	Slot   int `json:"slot"`
	Button int `json:"button"`
	Mode   int `json:"mode"`
}

type windowIDPayload struct {
	ID int `json:"id"`
}

type reasonPayload struct {
	Reason string `json:"reason"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type slotPayload struct {
	WindowID int     `json:"windowId"`
	Slot     int     `json:"slot"`
	Label    *string `json:"label"`
	Empty    bool    `json:"empty"`
}

type windowPayload struct {
	ID            int           `json:"id"`
	Title         *string       `json:"title"`
	ContainerSize int           `json:"containerSize"`
	Size          int           `json:"size"`
	Slots         []slotPayload `json:"slots"`
}

// validate はウィンドウサイズが扱える範囲にあるかを確認する。
func (p windowPayload) validate() error {
	if p.ContainerSize < 0 || p.Size < 0 {
		return fmt.Errorf("negative window size: containerSize=%d size=%d", p.ContainerSize, p.Size)
	}
	if p.ContainerSize > protocol.MaxWindowSize || p.Size > protocol.MaxWindowSize {
		return fmt.Errorf("window size exceeds %d: containerSize=%d size=%d", protocol.MaxWindowSize, p.ContainerSize, p.Size)
	}
	return nil
}
