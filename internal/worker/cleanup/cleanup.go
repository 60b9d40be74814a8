// Package cleanup は古くなったランク情報の削除ジョブを提供する。
// 保持期間（デフォルト30日）を超えて再取得されていないアカウントのランクを削除し、
// 次回のfetch-ranksで取り直させる。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Pruner は指定時刻より古いランク情報を削除するインターフェース。
type Pruner interface {
	DeleteFetchedBefore(ctx context.Context, before time.Time) (int64, error)
}

// CleanupJob は保持期間を超過したランク情報の削除ジョブ。
// 削除対象がない場合もエラーにならない。
type CleanupJob struct {
	pruner        Pruner
	logger        *slog.Logger
	now           func() time.Time
	RetentionDays int // ランク情報の保持日数（デフォルト: 30、0以下で無効）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(pruner Pruner, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		pruner:        pruner,
		logger:        logger,
		now:           time.Now,
		RetentionDays: 30,
	}
}

// Run はfetched_atがRetentionDays日前より古いランク情報を削除し、削除件数を返す。
// RetentionDaysが0以下の場合は何もしない。
func (j *CleanupJob) Run(ctx context.Context) (int64, error) {
	if j.RetentionDays <= 0 {
		return 0, nil
	}

	start := time.Now()
	cutoff := j.now().AddDate(0, 0, -j.RetentionDays)

	deleted, err := j.pruner.DeleteFetchedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("ランク情報クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return 0, fmt.Errorf("ランク情報クリーンアップの実行に失敗: %w", err)
	}

	j.logger.Info("ランク情報クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return deleted, nil
}
