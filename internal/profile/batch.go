package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/kitcourier/internal/model"
)

// RankFetcher はランク取得のインターフェース。テスト時にモックに差し替え可能。
type RankFetcher interface {
	GetRanks(ctx context.Context, username string) ([]model.Rank, error)
}

// RecordWriter はランク情報の保存先。
type RecordWriter interface {
	Upsert(ctx context.Context, record *model.EntitlementRecord) error
}

// Sanitizer はランク表示名の無害化を行う。
type Sanitizer interface {
	Sanitize(name string) string
}

// ResultRecorder はアカウントごとの取得結果を記録する。
type ResultRecorder interface {
	RecordRankFetch(result string)
}

// ErrTooManyFailures は連続エラーでバッチを打ち切った場合のエラー。
var ErrTooManyFailures = errors.New("rank fetch aborted after consecutive failures")

// BatchConfig はランク取得バッチの設定パラメータ。
type BatchConfig struct {
	// RequestInterval はAPI呼び出しの最低間隔（デフォルト: 1秒）。
	RequestInterval time.Duration
	// MaxConsecutiveErrors はバッチを打ち切る連続エラー回数（デフォルト: 3）。
	MaxConsecutiveErrors int
}

// DefaultBatchConfig はデフォルトのバッチ設定を返す。
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		RequestInterval:      time.Second,
		MaxConsecutiveErrors: 3,
	}
}

// Summary はバッチ実行結果の集計。
type Summary struct {
	Total    int
	Fetched  int
	NotFound int
	Failed   int
}

// BatchJob はアカウント一覧のランクを順番に取得してストアへ反映するジョブ。
type BatchJob struct {
	fetcher   RankFetcher
	writer    RecordWriter
	sanitizer Sanitizer
	recorder  ResultRecorder
	logger    *slog.Logger
	config    BatchConfig
	limiter   *rate.Limiter
}

// NewBatchJob はBatchJobを生成する。recorderはnilでもよい。
func NewBatchJob(
	fetcher RankFetcher,
	writer RecordWriter,
	sanitizer Sanitizer,
	recorder ResultRecorder,
	logger *slog.Logger,
	config BatchConfig,
) *BatchJob {
	if config.MaxConsecutiveErrors <= 0 {
		config.MaxConsecutiveErrors = DefaultBatchConfig().MaxConsecutiveErrors
	}
	limit := rate.Inf
	if config.RequestInterval > 0 {
		limit = rate.Every(config.RequestInterval)
	}
	return &BatchJob{
		fetcher:   fetcher,
		writer:    writer,
		sanitizer: sanitizer,
		recorder:  recorder,
		logger:    logger,
		config:    config,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// Run は指定アカウントのランクを1件ずつ取得して保存する。
// プロフィールが存在しないアカウントはスキップする。
// 連続エラーがMaxConsecutiveErrorsに達した場合はErrTooManyFailuresを返して打ち切る。
func (b *BatchJob) Run(ctx context.Context, usernames []string) (Summary, error) {
	start := time.Now()
	summary := Summary{Total: len(usernames)}
	consecutiveErrors := 0

	b.logger.Info("Fetching user ranks from profile API. May take a while if you have a lot of accounts.",
		slog.Int("accounts", len(usernames)),
	)

	for i, username := range usernames {
		if err := b.limiter.Wait(ctx); err != nil {
			return summary, err
		}

		ranks, err := b.fetcher.GetRanks(ctx, username)
		switch {
		case errors.Is(err, ErrProfileNotFound):
			summary.NotFound++
			b.record("not_found")
			b.logger.Info("プロフィールが見つからないためスキップします",
				slog.String("username", username),
			)
		case err != nil:
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Failed++
			consecutiveErrors++
			b.record("error")
			b.logger.Error("ランクの取得に失敗しました",
				slog.String("username", username),
				slog.Int("consecutive_errors", consecutiveErrors),
				slog.String("error", err.Error()),
			)
			if consecutiveErrors >= b.config.MaxConsecutiveErrors {
				return summary, fmt.Errorf("%w: %d", ErrTooManyFailures, consecutiveErrors)
			}
			continue
		default:
			rec := RecordFromRanks(username, b.sanitize(ranks))
			rec.FetchedAt = time.Now()
			if err := b.writer.Upsert(ctx, rec); err != nil {
				return summary, fmt.Errorf("failed to store ranks for %s: %w", username, err)
			}
			summary.Fetched++
			b.record("fetched")
		}

		consecutiveErrors = 0
		b.logger.Info(fmt.Sprintf("fetched %d/%d", i+1, len(usernames)),
			slog.String("username", username),
		)
	}

	b.logger.Info("ランク取得バッチが完了しました",
		slog.Int("fetched", summary.Fetched),
		slog.Int("not_found", summary.NotFound),
		slog.Int("failed", summary.Failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return summary, nil
}

func (b *BatchJob) sanitize(ranks []model.Rank) []model.Rank {
	if b.sanitizer == nil {
		return ranks
	}
	out := make([]model.Rank, len(ranks))
	for i, r := range ranks {
		out[i] = model.Rank{Server: r.Server, DisplayName: b.sanitizer.Sanitize(r.DisplayName)}
	}
	return out
}

func (b *BatchJob) record(result string) {
	if b.recorder != nil {
		b.recorder.RecordRankFetch(result)
	}
}
