package session

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/kitcourier/internal/logger"
	"github.com/hitoshi/kitcourier/internal/model"
	"github.com/hitoshi/kitcourier/internal/protocol"
)

// --- 偽の時計 ---

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance は時計を進め、期限に達したタイマーを期限順に発火させる。
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// --- 偽の接続 ---

type fakeConn struct {
	username string
	events   chan protocol.Event

	mu            sync.Mutex
	chats         []string
	clicks        []int
	closedWindows []int
	quits         []string
	closed        bool
	quitErr       error
}

func newFakeConn(username string) *fakeConn {
	return &fakeConn{username: username, events: make(chan protocol.Event, 32)}
}

func (c *fakeConn) Events() <-chan protocol.Event { return c.events }
func (c *fakeConn) Username() string              { return c.username }

func (c *fakeConn) Chat(message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chats = append(c.chats, message)
	return nil
}

func (c *fakeConn) ClickSlot(slot, button, mode int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clicks = append(c.clicks, slot)
	return nil
}

func (c *fakeConn) CloseWindow(w *protocol.Window) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closedWindows = append(c.closedWindows, w.ID())
	return nil
}

func (c *fakeConn) Quit(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quits = append(c.quits, reason)
	return c.quitErr
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) lastChat() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.chats) == 0 {
		return ""
	}
	return c.chats[len(c.chats)-1]
}

func (c *fakeConn) clickedSlots() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.clicks...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) quitCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.quits)
}

type fakeDialer struct {
	mu     sync.Mutex
	conns  []*fakeConn
	opts   []protocol.Options
	err    error
	dialed chan struct{}
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan struct{}, 8)}
}

func (d *fakeDialer) Dial(ctx context.Context, opts protocol.Options) (protocol.Conn, error) {
	d.mu.Lock()
	defer func() {
		d.mu.Unlock()
		select {
		case d.dialed <- struct{}{}:
		default:
		}
	}()

	d.opts = append(d.opts, opts)
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn(opts.Username)
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.opts)
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// --- その他のモック ---

type mockResolver struct {
	resolveFunc func(ctx context.Context, username string, mode model.GameMode) (string, bool, error)
}

func (m *mockResolver) Resolve(ctx context.Context, username string, mode model.GameMode) (string, bool, error) {
	return m.resolveFunc(ctx, username, mode)
}

func tierResolver(tier string) *mockResolver {
	return &mockResolver{resolveFunc: func(ctx context.Context, username string, mode model.GameMode) (string, bool, error) {
		return tier, tier != "", nil
	}}
}

type mockRecorder struct {
	mu      sync.Mutex
	entries []string
}

func (m *mockRecorder) Record(msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, msg)
	return nil
}

type mockMetrics struct {
	mu         sync.Mutex
	reconnects []string
	outcomes   []string
	giftItems  int
}

func (m *mockMetrics) RecordReconnect(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnects = append(m.reconnects, reason)
}

func (m *mockMetrics) RecordOutcome(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *mockMetrics) RecordGiftItems(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.giftItems += count
}

func (m *mockMetrics) RecordSessionDuration(time.Duration) {}

type mockNotifier struct {
	mu       sync.Mutex
	outcomes []string
	details  []string
}

func (m *mockNotifier) NotifyOutcome(ctx context.Context, username, outcome, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
	m.details = append(m.details, detail)
	return nil
}

// --- テスト用ドライバ ---

type harness struct {
	t        *testing.T
	ctx      context.Context
	driver   *Driver
	dialer   *fakeDialer
	clock    *fakeClock
	console  *bytes.Buffer
	logs     *bytes.Buffer
	recorder *mockRecorder
	metrics  *mockMetrics
	notifier *mockNotifier
}

func testConfig() Config {
	return Config{
		Recipient:         "MainAcc",
		Mode:              model.GameModeOPSkyblock,
		Version:           "1.9",
		Hosts:             []string{"top.pika.host", "proxy001.pikasys.net", "proxy002.pikasys.net"},
		JoinTimeout:       20 * time.Second,
		ConfirmInterval:   3 * time.Second,
		ReconnectDelay:    3 * time.Second,
		GiftClickInterval: 200 * time.Millisecond,
	}
}

func newHarness(t *testing.T, cfg Config, resolver Resolver) *harness {
	t.Helper()

	h := &harness{
		t:        t,
		ctx:      context.Background(),
		dialer:   newFakeDialer(),
		clock:    newFakeClock(),
		console:  &bytes.Buffer{},
		logs:     &bytes.Buffer{},
		recorder: &mockRecorder{},
		metrics:  &mockMetrics{},
		notifier: &mockNotifier{},
	}
	consoleLogger := slog.New(slog.NewJSONHandler(h.console, &slog.HandlerOptions{Level: slog.LevelInfo}))
	h.driver = NewDriver(model.Account{Username: "Alt1", Password: "hunter2"}, cfg, Deps{
		Resolver: resolver,
		Dialer:   h.dialer,
		Console:  logger.NewConsole(consoleLogger),
		Events:   h.recorder,
		Metrics:  h.metrics,
		Notifier: h.notifier,
		Clock:    h.clock,
		Logger:   slog.New(slog.NewJSONHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
		Intn:     func(n int) int { return 1 },
	})
	return h
}

// start はイベントループを回さずにランク確認と最初の接続までを行う。
func (h *harness) start() {
	h.t.Helper()
	h.driver.sup = newSupervisor(h.clock)
	h.t.Cleanup(h.driver.sup.stop)
	h.driver.prepare(h.ctx)
}

func (h *harness) send(ev protocol.Event) {
	h.driver.handleEvent(h.ctx, ev)
	h.drain()
}

// drain は発火済みのタイマーをすべて処理する。
func (h *harness) drain() {
	for {
		select {
		case f := <-h.driver.sup.fires:
			h.driver.handleTimer(h.ctx, f)
		default:
			return
		}
	}
}

func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.drain()
}

func (h *harness) spawn(n int) {
	for i := 0; i < n; i++ {
		h.send(protocol.Event{Kind: protocol.EventSpawn})
	}
}

func strPtr(s string) *string { return &s }

func window(id int, title string, containerSize int, items map[int]string) *protocol.Window {
	w := protocol.NewWindow(id, strPtr(title), containerSize, containerSize+36)
	for slot, label := range items {
		w.SetSlot(slot, strPtr(label), false)
	}
	return w
}
