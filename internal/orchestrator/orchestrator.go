// Package orchestrator はアカウントごとのセッションを一定間隔で起動し、
// 実行中セッション数の管理と終了待ちを行う。
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/kitcourier/internal/model"
	"github.com/hitoshi/kitcourier/internal/session"
)

// Runner は1アカウント分のセッション。*session.Driver が満たす。
type Runner interface {
	Run(ctx context.Context) (session.Outcome, error)
	Username() string
	Status() session.Status
}

// SessionGauge は実行中セッション数のメトリクス。
type SessionGauge interface {
	SessionStarted()
	SessionEnded()
}

// Summary はすべてのセッションの結果の集計。
type Summary struct {
	Outcomes map[session.Outcome]int
}

// Total は集計したセッション数を返す。
func (s Summary) Total() int {
	n := 0
	for _, c := range s.Outcomes {
		n += c
	}
	return n
}

// Orchestrator はセッションの起動と終了待ちを行う。
type Orchestrator struct {
	runners []Runner
	delay   time.Duration
	gauge   SessionGauge
	logger  *slog.Logger

	live atomic.Int64

	mu       sync.Mutex
	outcomes map[session.Outcome]int
}

// New はOrchestratorを生成する。delayはセッションを起動する間隔。gaugeはnilでもよい。
func New(runners []Runner, delay time.Duration, gauge SessionGauge, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		runners:  runners,
		delay:    delay,
		gauge:    gauge,
		logger:   logger,
		outcomes: make(map[session.Outcome]int),
	}
}

// Live は実行中のセッション数を返す。
func (o *Orchestrator) Live() int64 {
	return o.live.Load()
}

// Snapshot はすべてのセッションの状態を起動順に返す。
func (o *Orchestrator) Snapshot() []session.Status {
	statuses := make([]session.Status, 0, len(o.runners))
	for _, r := range o.runners {
		statuses = append(statuses, r.Status())
	}
	return statuses
}

// Lookup は指定アカウントのセッション状態を返す。
func (o *Orchestrator) Lookup(username string) (session.Status, bool) {
	for _, r := range o.runners {
		if r.Username() == username {
			return r.Status(), true
		}
	}
	return session.Status{}, false
}

// Run はdelay間隔でセッションを起動し、すべてのセッションの終了を待つ。
// いずれかのセッションがmodel.ErrUnsupportedGameModeを返した場合は
// 残りのセッションをすべてキャンセルしてそのエラーを返す。
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	g, gctx := errgroup.WithContext(ctx)

	o.logger.Info("セッションの起動を開始します",
		slog.Int("accounts", len(o.runners)),
		slog.Duration("delay", o.delay),
	)

launch:
	for i, r := range o.runners {
		if i > 0 && o.delay > 0 {
			timer := time.NewTimer(o.delay)
			select {
			case <-gctx.Done():
				timer.Stop()
				break launch
			case <-timer.C:
			}
		}
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			return o.runOne(gctx, r)
		})
	}

	err := g.Wait()
	summary := o.summary()
	o.logger.Info("すべてのセッションが終了しました",
		slog.Int("sessions", summary.Total()),
	)
	return summary, err
}

func (o *Orchestrator) runOne(ctx context.Context, r Runner) error {
	o.live.Add(1)
	if o.gauge != nil {
		o.gauge.SessionStarted()
	}
	defer func() {
		o.live.Add(-1)
		if o.gauge != nil {
			o.gauge.SessionEnded()
		}
	}()

	outcome, err := r.Run(ctx)
	o.record(outcome)

	if err != nil {
		if errors.Is(err, model.ErrUnsupportedGameMode) {
			return fmt.Errorf("session %s: %w", r.Username(), err)
		}
		o.logger.Error("セッションがエラーで終了しました",
			slog.String("account", r.Username()),
			slog.String("outcome", string(outcome)),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

func (o *Orchestrator) record(outcome session.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[outcome]++
}

func (o *Orchestrator) summary() Summary {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make(map[session.Outcome]int, len(o.outcomes))
	for k, v := range o.outcomes {
		out[k] = v
	}
	return Summary{Outcomes: out}
}
