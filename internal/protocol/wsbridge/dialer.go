// Package wsbridge はゲームプロトコルを話す外部サイドカーへWebSocketで接続し、
// protocol.Dialer / protocol.Conn を提供する。
//
// サイドカーとは {"type": ..., "payload": ...} 形式のJSONメッセージをやり取りする。
// 1本のWebSocket接続が1本のゲームサーバー接続に対応する。
package wsbridge

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/net/proxy"

	"github.com/hitoshi/kitcourier/internal/protocol"
)

// eventBufferSize はイベントチャネルのバッファサイズ。
const eventBufferSize = 64

// Config はブリッジ接続の設定。
type Config struct {
	// URL はサイドカーのWebSocketエンドポイント（ws:// または wss://）。
	URL string
	// SOCKS5 はサイドカーへの接続に使うSOCKS5プロキシのアドレス（host:port）。空の場合は直接接続。
	SOCKS5 string
	// DialTimeout はWebSocketハンドシェイクのタイムアウト。
	DialTimeout time.Duration
}

// Dialer はprotocol.Dialerのwsbridge実装。
type Dialer struct {
	config Config
	ws     *websocket.Dialer
	logger *slog.Logger
}

var _ protocol.Dialer = (*Dialer)(nil)

// NewDialer はDialerを生成する。SOCKS5が指定されている場合はプロキシ経由で接続する。
func NewDialer(config Config, logger *slog.Logger) (*Dialer, error) {
	if !strings.HasPrefix(config.URL, "ws://") && !strings.HasPrefix(config.URL, "wss://") {
		return nil, fmt.Errorf("invalid ws url: %s", config.URL)
	}

	ws := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: config.DialTimeout,
	}

	if config.SOCKS5 != "" {
		socks, err := proxy.SOCKS5("tcp", config.SOCKS5, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		ws.Proxy = nil
		if cd, ok := socks.(proxy.ContextDialer); ok {
			ws.NetDialContext = cd.DialContext
		} else {
			ws.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return socks.Dial(network, addr)
			}
		}
	}

	return &Dialer{config: config, ws: ws, logger: logger}, nil
}

// Dial はサイドカーに接続し、ゲームサーバーへの接続要求を送る。
func (d *Dialer) Dial(ctx context.Context, opts protocol.Options) (protocol.Conn, error) {
	header := http.Header{}
	connID := uuid.NewString()
	header.Set("X-Connection-Id", connID)

	ws, _, err := d.ws.DialContext(ctx, d.config.URL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial bridge: %w", err)
	}

	c := newConn(ws, opts.Username, connID, d.logger)
	if err := c.send(typeConnect, connectPayload{
		Username: opts.Username,
		Host:     opts.Host,
		Version:  opts.Version,
	}); err != nil {
		ws.Close()
		return nil, fmt.Errorf("failed to send connect request: %w", err)
	}

	go c.readLoop()
	return c, nil
}
