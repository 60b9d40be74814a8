// Package session はアカウントごとのセッションドライバを提供する。
// ドライバはランク確認、接続、ログイン、サーバー移動、キット受け取り、ギフト送信までを
// 1本のイベントループで進める状態機械で、タイマーと接続イベントを直列に処理する。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/kitcourier/internal/logger"
	"github.com/hitoshi/kitcourier/internal/menu"
	"github.com/hitoshi/kitcourier/internal/model"
	"github.com/hitoshi/kitcourier/internal/protocol"
)

// closedReason は終了通知なしにイベントが途絶えた場合の終了理由。
const closedReason = "socketClosed"

// Resolver はアカウントのティアを解決する。
type Resolver interface {
	Resolve(ctx context.Context, username string, mode model.GameMode) (string, bool, error)
}

// EventRecorder はキックや未処理エラーを永続ログに記録する。
type EventRecorder interface {
	Record(msg string) error
}

// Metrics はドライバが記録するメトリクス。
type Metrics interface {
	RecordReconnect(reason string)
	RecordOutcome(outcome string)
	RecordGiftItems(count int)
	RecordSessionDuration(duration time.Duration)
}

// Notifier はセッションの最終結果を外部へ通知する。
type Notifier interface {
	NotifyOutcome(ctx context.Context, username, outcome, detail string) error
}

// Config はドライバの動作設定。
type Config struct {
	Recipient         string
	Mode              model.GameMode
	OnceMode          bool
	Version           string
	Hosts             []string
	JoinTimeout       time.Duration
	ConfirmInterval   time.Duration
	ReconnectDelay    time.Duration
	GiftClickInterval time.Duration
}

// Deps はドライバの依存。Resolver、Dialer以外は省略可能。
type Deps struct {
	Resolver Resolver
	Dialer   protocol.Dialer
	Console  *logger.Console
	Events   EventRecorder
	Metrics  Metrics
	Notifier Notifier
	Clock    Clock
	Logger   *slog.Logger
	// Intn はホスト選択に使う乱数関数。nilの場合はmath/rand/v2を使う。
	Intn func(n int) int
}

// Driver は1アカウント分のセッションドライバ。
type Driver struct {
	account  model.Account
	cfg      Config
	resolver Resolver
	dialer   protocol.Dialer
	console  *logger.Console
	events   EventRecorder
	metrics  Metrics
	notifier Notifier
	clock    Clock
	logger   *slog.Logger

	host string

	// 以下はイベントループのゴルーチンからのみ操作する
	sup            *supervisor
	tier           string
	conn           protocol.Conn
	connEvents     <-chan protocol.Event
	connEnded      bool
	spawnCount     int
	quitting       bool
	pendingOutcome Outcome
	collectedOnce  bool
	windows        map[int]menu.Kind
	giftQueue      []int
	giftWindow     *protocol.Window
	confirmWindow  *protocol.Window
	finished       bool
	err            error

	mu     sync.RWMutex
	status Status
}

// NewDriver はDriverを生成する。ホストはここで1度だけ選び、再接続でも同じホストを使う。
func NewDriver(account model.Account, cfg Config, deps Deps) *Driver {
	d := &Driver{
		account:  account,
		cfg:      cfg,
		resolver: deps.Resolver,
		dialer:   deps.Dialer,
		console:  deps.Console,
		events:   deps.Events,
		metrics:  deps.Metrics,
		notifier: deps.Notifier,
		clock:    deps.Clock,
		logger:   deps.Logger,
		windows:  make(map[int]menu.Kind),
	}
	if d.console == nil {
		d.console = logger.NewConsole(nil)
	}
	if d.metrics == nil {
		d.metrics = noopMetrics{}
	}
	if d.clock == nil {
		d.clock = realClock{}
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.logger = d.logger.With(slog.String("account", account.Username))

	intn := deps.Intn
	if intn == nil {
		intn = rand.IntN
	}
	if len(cfg.Hosts) > 0 {
		d.host = cfg.Hosts[intn(len(cfg.Hosts))]
	}

	d.status = Status{
		Username:  account.Username,
		State:     StateIdle,
		Host:      d.host,
		UpdatedAt: d.clock.Now(),
	}
	return d
}

// Username はドライバのアカウント名を返す。
func (d *Driver) Username() string {
	return d.account.Username
}

// Status はセッションの現在の状態を返す。
func (d *Driver) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

// Run はセッションを終端状態まで進め、その結果を返す。
// ランクストアの読み取りに失敗した場合やゲームモードが不正な場合はエラーも返す。
// ctxがキャンセルされるとタイマーと接続を片付けてOutcomeCanceledを返す。
func (d *Driver) Run(ctx context.Context) (Outcome, error) {
	d.sup = newSupervisor(d.clock)
	defer d.sup.stop()

	start := d.clock.Now()
	d.updateStatus(func(s *Status) { s.StartedAt = start })

	d.prepare(ctx)
	for !d.finished {
		select {
		case <-ctx.Done():
			d.shutdown()
		case ev, ok := <-d.connEvents:
			if !ok {
				d.connEvents = nil
				if !d.connEnded {
					d.handleEvent(ctx, protocol.Event{Kind: protocol.EventEnd, Reason: closedReason})
				}
				continue
			}
			d.handleEvent(ctx, ev)
		case f := <-d.sup.fires:
			d.handleTimer(ctx, f)
		}
	}

	d.metrics.RecordSessionDuration(d.clock.Now().Sub(start))
	return d.Status().Outcome, d.err
}

// prepare はランクを確認し、所持していれば最初の接続を開始する。
func (d *Driver) prepare(ctx context.Context) {
	user := d.account.Username
	d.setState(StateCheckingEntitlement)
	d.console.Info(user, "Performing rank check.")

	tier, ok, err := d.resolver.Resolve(ctx, user, d.cfg.Mode)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrUnsupportedGameMode):
			d.console.Error(user, "Config file contains unsupported gamemode. Only support opskyblock, opfactions & opprison. Killing process.")
		case ctx.Err() != nil:
			d.finish(OutcomeCanceled, "")
			return
		default:
			d.console.Error(user, "Could not read the rank store. Skipping account.")
		}
		d.err = err
		d.finish(OutcomeFailed, err.Error())
		return
	}
	if !ok {
		d.console.Error(user, "Account does not have a rank. Skipping.")
		d.finish(OutcomeNoEntitlement, "")
		return
	}

	d.tier = tier
	d.updateStatus(func(s *Status) { s.Tier = tier })
	d.console.Info(user, fmt.Sprintf("Account has a rank (%s), connecting to %s.", tier, d.host))
	d.connect(ctx)
}

// connect は新しい接続を開く。接続ごとの状態はここでリセットする。
func (d *Driver) connect(ctx context.Context) {
	d.spawnCount = 0
	d.quitting = false
	d.pendingOutcome = ""
	d.connEnded = false
	d.windows = make(map[int]menu.Kind)
	d.giftQueue = nil
	d.giftWindow = nil
	d.confirmWindow = nil

	connID := uuid.NewString()
	d.updateStatus(func(s *Status) {
		s.ConnectionID = connID
		s.Connections++
	})
	d.setState(StateConnecting)
	d.logger.Info("接続を開始します",
		slog.String("host", d.host),
		slog.String("connection_id", connID),
	)

	conn, err := d.dialer.Dial(ctx, protocol.Options{
		Username: d.account.Username,
		Host:     d.host,
		Version:  d.cfg.Version,
	})
	if err != nil {
		if ctx.Err() != nil {
			d.finish(OutcomeCanceled, "")
			return
		}
		d.onError(err)
		return
	}

	d.conn = conn
	d.connEvents = conn.Events()
	d.setState(StateAwaitingLoginSpawn)
}

// handleEvent は接続イベントを1件処理する。
func (d *Driver) handleEvent(ctx context.Context, ev protocol.Event) {
	if d.finished {
		return
	}

	switch ev.Kind {
	case protocol.EventLogin:
		d.console.Success(d.account.Username, fmt.Sprintf("Connected to %s successfully!", d.host))
	case protocol.EventSpawn:
		d.onSpawn()
	case protocol.EventWindowOpen:
		if ev.Window != nil {
			d.onWindowOpen(ev.Window)
		}
	case protocol.EventWindowClose:
		if ev.Window != nil {
			d.onWindowClose(ev.Window)
		}
	case protocol.EventEnd:
		d.onEnd(ev.Reason)
	case protocol.EventKicked:
		d.onKicked(ev.Reason)
	case protocol.EventError:
		d.onError(ev.Err)
	}
}

// handleTimer はタイマー発火を1件処理する。古い世代の発火は無視する。
func (d *Driver) handleTimer(ctx context.Context, f timerFire) {
	if d.finished || !d.sup.accept(f) {
		return
	}

	switch f.slot {
	case slotJoin:
		d.onJoinTimeout(ctx)
	case slotConfirm:
		d.pollConfirm()
	case slotGift:
		d.clickNextGift()
	case slotReconnect:
		d.connect(ctx)
	}
}

func (d *Driver) onSpawn() {
	user := d.account.Username
	d.sup.cancel(slotJoin)
	d.spawnCount++

	switch {
	case d.spawnCount == 1:
		d.console.Info(user, "Spawned in login lobby!")
		d.chat("/login " + d.account.Password)
		d.setState(StateAwaitingHubSpawn)
	case d.spawnCount%2 == 0:
		d.console.Info(user, "Account in hub!")
		d.chat("/server " + string(d.cfg.Mode))
		d.sup.arm(slotJoin, d.cfg.JoinTimeout)
		d.setState(StateAwaitingDestinationSpawn)
	default:
		d.console.Info(user, "Joined!")
		d.chat("/kit donator")
		d.setState(StateMenuInteraction)
	}
}

// onJoinTimeout は移動先サーバーへの参加がタイムアウトした場合に、
// 現在の接続を捨てて直ちに再接続する。
func (d *Driver) onJoinTimeout(ctx context.Context) {
	d.console.Error(d.account.Username, "Looks like you had problems connecting, retrying!")
	if d.conn != nil {
		if err := d.conn.Quit(protocol.QuitReason); err != nil {
			d.logger.Warn("切断要求の送信に失敗しました", slog.String("error", err.Error()))
		}
	}
	d.sup.clear()
	d.closeConn()
	d.updateStatus(func(s *Status) { s.Reconnects++ })
	d.metrics.RecordReconnect("join_timeout")
	d.connect(ctx)
}

func (d *Driver) onWindowOpen(w *protocol.Window) {
	user := d.account.Username
	kind := menu.Classify(w.Title(), d.tier)
	// 同じウィンドウの重複通知では再クリックしない。ギフト中のキューもそのまま続行する。
	if prev, ok := d.windows[w.ID()]; ok && prev == kind {
		d.logger.Debug("重複したウィンドウ通知を無視します",
			slog.Int("window_id", w.ID()),
			slog.String("kind", kind.String()),
		)
		return
	}
	d.windows[w.ID()] = kind
	d.logger.Debug("ウィンドウを開きました",
		slog.Int("window_id", w.ID()),
		slog.String("kind", kind.String()),
	)

	switch kind {
	case menu.KindKit:
		if it, ok := menu.SelectKit(w.ContainerItems(), d.tier); ok {
			d.click(it.Slot)
		}
	case menu.KindTierReward:
		if it, ok := menu.SelectTierReward(w.ContainerItems(), d.tier, d.requireOnce()); ok {
			d.console.Info(user, fmt.Sprintf("Collected %s!", menu.StripFormatting(*it.Label)))
			d.click(it.Slot)
		}
	case menu.KindDonator:
		if it, ok := menu.SelectDonator(w.ContainerItems(), d.tier, d.requireOnce()); ok {
			d.console.Info(user, fmt.Sprintf("Collected %s!", menu.StripFormatting(*it.Label)))
			d.click(it.Slot)
		}
	case menu.KindGiftSelect:
		slots := menu.GiftSlots(w.Items())
		if len(slots) == 0 {
			d.console.Error(user, "No kits collected, most likely still on cooldown. Disconnecting.")
			d.quit(OutcomeCooldown)
			return
		}
		d.console.Info(user, "There's kits/keys in your inventory, gifting!")
		d.metrics.RecordGiftItems(len(slots))
		d.giftQueue = slots
		d.giftWindow = w
		d.sup.arm(slotGift, d.cfg.GiftClickInterval)
	case menu.KindGiftConfirm:
		d.confirmWindow = w
		d.sup.arm(slotConfirm, d.cfg.ConfirmInterval)
	}
}

func (d *Driver) onWindowClose(w *protocol.Window) {
	kind, ok := d.windows[w.ID()]
	if !ok {
		return
	}
	delete(d.windows, w.ID())

	switch kind {
	case menu.KindTierReward, menu.KindDonator:
		if d.cfg.OnceMode && !d.collectedOnce {
			d.chat("/kit")
		} else {
			d.chat("/gift " + d.cfg.Recipient)
		}
		d.collectedOnce = true
	case menu.KindGiftSelect:
		d.sup.cancel(slotGift)
		d.giftQueue = nil
		d.giftWindow = nil
	case menu.KindGiftConfirm:
		d.sup.cancel(slotConfirm)
		d.confirmWindow = nil
		d.console.Success(d.account.Username, "Kits gifted successfully!")
		d.quit(OutcomeGifted)
	}
}

// clickNextGift はギフト対象のスロットを1つクリックし、最後のクリックの直後にウィンドウを閉じる。
func (d *Driver) clickNextGift() {
	if len(d.giftQueue) == 0 {
		return
	}
	next := d.giftQueue[0]
	d.giftQueue = d.giftQueue[1:]
	d.click(next)

	if len(d.giftQueue) > 0 {
		d.sup.arm(slotGift, d.cfg.GiftClickInterval)
		return
	}
	if d.conn != nil && d.giftWindow != nil {
		if err := d.conn.CloseWindow(d.giftWindow); err != nil {
			d.logger.Warn("ウィンドウを閉じられませんでした", slog.String("error", err.Error()))
		}
	}
}

// pollConfirm は確認画面にCONFIRMがあればクリックし、ウィンドウが閉じるまで繰り返す。
func (d *Driver) pollConfirm() {
	if d.confirmWindow == nil {
		return
	}
	if it, ok := menu.SelectConfirm(d.confirmWindow.ContainerItems()); ok {
		d.click(it.Slot)
	}
	d.sup.arm(slotConfirm, d.cfg.ConfirmInterval)
}

func (d *Driver) onEnd(reason string) {
	d.connEnded = true
	if d.quitting || reason == protocol.QuitReason {
		outcome := d.pendingOutcome
		if outcome == "" {
			outcome = OutcomeQuit
		}
		d.finish(outcome, reason)
		return
	}

	d.sup.clear()
	d.closeConn()
	d.setState(StateDisconnected)
	d.console.Error(d.account.Username, "Disconnected. Reconnecting.")
	d.logger.Info("切断されたため再接続します",
		slog.String("reason", reason),
		slog.Duration("delay", d.cfg.ReconnectDelay),
	)
	d.updateStatus(func(s *Status) { s.Reconnects++ })
	d.metrics.RecordReconnect("disconnect")
	d.sup.arm(slotReconnect, d.cfg.ReconnectDelay)
	d.setState(StateReconnecting)
}

func (d *Driver) onKicked(reason string) {
	user := d.account.Username
	d.console.Error(user, "You were kicked, more information in log. Skipping account.")
	d.recordEvent(fmt.Sprintf("[%s] Kicked for the following reason:\n%s", user, reason))
	d.finish(OutcomeKicked, reason)
}

func (d *Driver) onError(err error) {
	user := d.account.Username
	if err == nil {
		err = errors.New("unknown error")
	}
	if protocol.IsConnectionRefused(err) {
		d.console.Error(user, "Login Denied.")
		d.finish(OutcomeRefused, err.Error())
		return
	}
	d.console.Error(user, "Unhandled exception, more information in log. Skipping account.")
	d.recordEvent(fmt.Sprintf("[%s] Unhandled exception:\n%v", user, err))
	d.finish(OutcomeFailed, err.Error())
}

// quit は自発的に切断する。終端処理はサーバーからのend通知で行う。
func (d *Driver) quit(outcome Outcome) {
	d.quitting = true
	d.pendingOutcome = outcome
	d.sup.clear()
	if d.conn == nil {
		d.finish(outcome, "")
		return
	}
	if err := d.conn.Quit(protocol.QuitReason); err != nil {
		d.logger.Warn("切断要求の送信に失敗しました", slog.String("error", err.Error()))
		d.finish(outcome, "")
		return
	}
	d.setState(StateDisconnected)
}

// shutdown はプロセス終了時にタイマーと接続を片付ける。
func (d *Driver) shutdown() {
	if d.conn != nil && !d.connEnded {
		if err := d.conn.Quit(protocol.QuitReason); err != nil {
			d.logger.Debug("終了時の切断要求に失敗しました", slog.String("error", err.Error()))
		}
	}
	d.finish(OutcomeCanceled, "")
}

// finish はセッションを終端状態にする。
func (d *Driver) finish(outcome Outcome, detail string) {
	if d.finished {
		return
	}
	d.finished = true
	if d.sup != nil {
		d.sup.clear()
	}
	d.closeConn()

	state := StateTerminal
	if outcome == OutcomeNoEntitlement {
		state = StateNoEntitlement
	}
	d.updateStatus(func(s *Status) {
		s.State = state
		s.Outcome = outcome
		s.Detail = detail
	})
	d.metrics.RecordOutcome(string(outcome))
	d.logger.Info("セッションが終了しました",
		slog.String("outcome", string(outcome)),
		slog.String("detail", detail),
	)

	if d.notifier != nil && outcome != OutcomeCanceled {
		if err := d.notifier.NotifyOutcome(context.Background(), d.account.Username, string(outcome), detail); err != nil {
			d.logger.Warn("結果の通知に失敗しました", slog.String("error", err.Error()))
		}
	}
}

func (d *Driver) closeConn() {
	if d.conn == nil {
		return
	}
	if err := d.conn.Close(); err != nil {
		d.logger.Debug("接続のクローズに失敗しました", slog.String("error", err.Error()))
	}
	d.conn = nil
	d.connEvents = nil
}

func (d *Driver) requireOnce() bool {
	return d.cfg.OnceMode && d.collectedOnce
}

func (d *Driver) chat(msg string) {
	if d.conn == nil {
		return
	}
	if err := d.conn.Chat(msg); err != nil {
		d.logger.Warn("チャットの送信に失敗しました", slog.String("error", err.Error()))
	}
}

func (d *Driver) click(slot int) {
	if d.conn == nil {
		return
	}
	if err := d.conn.ClickSlot(slot, protocol.ButtonLeft, protocol.ModeClick); err != nil {
		d.logger.Warn("クリックに失敗しました",
			slog.Int("slot", slot),
			slog.String("error", err.Error()),
		)
	}
}

func (d *Driver) recordEvent(msg string) {
	if d.events == nil {
		return
	}
	if err := d.events.Record(msg); err != nil {
		d.logger.Error("イベントログへの書き込みに失敗しました", slog.String("error", err.Error()))
	}
}

func (d *Driver) setState(state State) {
	d.updateStatus(func(s *Status) { s.State = state })
}

func (d *Driver) updateStatus(fn func(s *Status)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.status)
	d.status.UpdatedAt = d.clock.Now()
}

type noopMetrics struct{}

func (noopMetrics) RecordReconnect(string)              {}
func (noopMetrics) RecordOutcome(string)                {}
func (noopMetrics) RecordGiftItems(int)                 {}
func (noopMetrics) RecordSessionDuration(time.Duration) {}
