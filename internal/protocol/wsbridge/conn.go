package wsbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/kitcourier/internal/protocol"
)

// closedReason はサイドカーがend通知なしに切断した場合の終了理由。
const closedReason = "socketClosed"

// conn はprotocol.Connのwsbridge実装。
type conn struct {
	ws       *websocket.Conn
	username string
	id       string
	logger   *slog.Logger

	events chan protocol.Event
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once

	// readLoopからのみ参照する
	windows  map[int]*protocol.Window
	terminal bool
}

var _ protocol.Conn = (*conn)(nil)

func newConn(ws *websocket.Conn, username, id string, logger *slog.Logger) *conn {
	return &conn{
		ws:       ws,
		username: username,
		id:       id,
		logger:   logger,
		events:   make(chan protocol.Event, eventBufferSize),
		done:     make(chan struct{}),
		windows:  make(map[int]*protocol.Window),
	}
}

func (c *conn) Events() <-chan protocol.Event { return c.events }

func (c *conn) Username() string { return c.username }

func (c *conn) Chat(message string) error {
	return c.send(typeChat, chatPayload{Message: message})
}

func (c *conn) ClickSlot(slot, button, mode int) error {
	return c.send(typeClick, clickPayload{Slot: slot, Button: button, Mode: mode})
}

func (c *conn) CloseWindow(w *protocol.Window) error {
	if w == nil {
		return nil
	}
	return c.send(typeCloseWindow, windowIDPayload{ID: w.ID()})
}

func (c *conn) Quit(reason string) error {
	return c.send(typeQuit, reasonPayload{Reason: reason})
}

// Close はWebSocketを閉じ、readLoopからの配送を止める。
func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *conn) send(typ string, payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.WriteJSON(clientEnvelope{Type: typ, Payload: payload}); err != nil {
		return fmt.Errorf("failed to send %s: %w", typ, err)
	}
	return nil
}

func (c *conn) readLoop() {
	defer close(c.events)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !c.terminal {
				reason := closedReason
				var ce *websocket.CloseError
				if errors.As(err, &ce) && ce.Text != "" {
					reason = ce.Text
				}
				c.emit(protocol.Event{Kind: protocol.EventEnd, Reason: reason})
			}
			return
		}

		var envelope serverEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			c.logger.Warn("ブリッジから不正なメッセージを受信しました",
				slog.String("connection_id", c.id),
				slog.String("error", err.Error()),
			)
			continue
		}

		ev, ok := c.translate(envelope)
		if !ok {
			continue
		}
		if !c.emit(ev) {
			return
		}
	}
}

// translate はサイドカーのメッセージをイベントに変換する。
// set_slotのようにウィンドウ状態だけを更新するメッセージではfalseを返す。
func (c *conn) translate(envelope serverEnvelope) (protocol.Event, bool) {
	switch envelope.Type {
	case typeLogin:
		return protocol.Event{Kind: protocol.EventLogin}, true
	case typeSpawn:
		return protocol.Event{Kind: protocol.EventSpawn}, true
	case typeWindowOpen:
		var p windowPayload
		if err := json.Unmarshal(envelope.Payload, &p); err != nil {
			return c.malformed(envelope.Type, err)
		}
		if err := p.validate(); err != nil {
			return c.malformed(envelope.Type, err)
		}
		w := protocol.NewWindow(p.ID, p.Title, p.ContainerSize, p.Size)
		for _, s := range p.Slots {
			w.SetSlot(s.Slot, s.Label, s.Empty)
		}
		c.windows[p.ID] = w
		return protocol.Event{Kind: protocol.EventWindowOpen, Window: w}, true
	case typeSetSlot:
		var p slotPayload
		if err := json.Unmarshal(envelope.Payload, &p); err != nil {
			return c.malformed(envelope.Type, err)
		}
		if w, ok := c.windows[p.WindowID]; ok {
			w.SetSlot(p.Slot, p.Label, p.Empty)
		}
		return protocol.Event{}, false
	case typeWindowClose:
		var p windowIDPayload
		if err := json.Unmarshal(envelope.Payload, &p); err != nil {
			return c.malformed(envelope.Type, err)
		}
		w, ok := c.windows[p.ID]
		if !ok {
			w = protocol.NewWindow(p.ID, nil, 0, 0)
		}
		delete(c.windows, p.ID)
		return protocol.Event{Kind: protocol.EventWindowClose, Window: w}, true
	case typeEnd:
		var p reasonPayload
		_ = json.Unmarshal(envelope.Payload, &p)
		c.terminal = true
		return protocol.Event{Kind: protocol.EventEnd, Reason: p.Reason}, true
	case typeKicked:
		var p reasonPayload
		_ = json.Unmarshal(envelope.Payload, &p)
		return protocol.Event{Kind: protocol.EventKicked, Reason: p.Reason}, true
	case typeError:
		var p errorPayload
		_ = json.Unmarshal(envelope.Payload, &p)
		err := errors.New(p.Message)
		if p.Code == codeConnRefused {
			err = fmt.Errorf("%w: %s", protocol.ErrConnectionRefused, p.Message)
		}
		return protocol.Event{Kind: protocol.EventError, Err: err}, true
	default:
		c.logger.Debug("未対応のメッセージを無視します",
			slog.String("connection_id", c.id),
			slog.String("type", envelope.Type),
		)
		return protocol.Event{}, false
	}
}

func (c *conn) malformed(typ string, err error) (protocol.Event, bool) {
	c.logger.Warn("ブリッジメッセージのペイロードが不正です",
		slog.String("connection_id", c.id),
		slog.String("type", typ),
		slog.String("error", err.Error()),
	)
	return protocol.Event{}, false
}

// emit はイベントを配送する。Closeされた後はfalseを返す。
func (c *conn) emit(ev protocol.Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}
