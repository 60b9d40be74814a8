// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// セッションドライバとオーケストレーターから利用する。
type MetricsCollector interface {
	SessionStarted()
	SessionEnded()
	RecordReconnect(reason string)
	RecordOutcome(outcome string)
	RecordGiftItems(count int)
	RecordSessionDuration(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	sessionsActive  prometheus.Gauge
	reconnects      *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	giftItems       prometheus.Counter
	sessionDuration prometheus.Histogram
	rankFetches     *prometheus.CounterVec
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kitcourier_sessions_active",
			Help: "実行中のアカウントセッション数",
		}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitcourier_reconnects_total",
			Help: "再接続の合計数（理由別）",
		}, []string{"reason"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitcourier_session_outcomes_total",
			Help: "セッション終了結果別の合計数",
		}, []string{"outcome"}),
		giftItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kitcourier_gift_items_total",
			Help: "ギフト画面で選択したアイテムの合計数",
		}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kitcourier_session_duration_seconds",
			Help:    "アカウントセッションの所要時間（秒）",
			Buckets: []float64{5, 10, 30, 60, 120, 300, 600},
		}),
		rankFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitcourier_rank_fetch_total",
			Help: "プロフィールAPIからのランク取得結果別の合計数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.sessionsActive,
		c.reconnects,
		c.outcomes,
		c.giftItems,
		c.sessionDuration,
		c.rankFetches,
	)

	return c
}

// SessionStarted は実行中セッション数を1増やす。
func (c *Collector) SessionStarted() {
	c.sessionsActive.Inc()
}

// SessionEnded は実行中セッション数を1減らす。
func (c *Collector) SessionEnded() {
	c.sessionsActive.Dec()
}

// RecordReconnect は再接続を記録する。
func (c *Collector) RecordReconnect(reason string) {
	c.reconnects.WithLabelValues(reason).Inc()
}

// RecordOutcome はセッションの終了結果を記録する。
func (c *Collector) RecordOutcome(outcome string) {
	c.outcomes.WithLabelValues(outcome).Inc()
}

// RecordGiftItems はギフト対象として選択したアイテム数を記録する。
func (c *Collector) RecordGiftItems(count int) {
	c.giftItems.Add(float64(count))
}

// RecordSessionDuration はセッションの所要時間を記録する。
func (c *Collector) RecordSessionDuration(duration time.Duration) {
	c.sessionDuration.Observe(duration.Seconds())
}

// RecordRankFetch はランク取得結果（fetched, not_found, error）を記録する。
func (c *Collector) RecordRankFetch(result string) {
	c.rankFetches.WithLabelValues(result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
