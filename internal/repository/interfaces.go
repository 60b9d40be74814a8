// Package repository はランク情報の永続化インターフェースと実装を提供する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/kitcourier/internal/model"
)

// EntitlementRepository はアカウントごとのランク情報の永続化インターフェース。
type EntitlementRepository interface {
	// FindByUsername は指定ユーザー名のランク情報を取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.EntitlementRecord, error)

	// Upsert はランク情報を作成または更新する。
	Upsert(ctx context.Context, record *model.EntitlementRecord) error

	// DeleteFetchedBefore はfetched_atが指定時刻より古いランク情報を削除し、削除件数を返す。
	DeleteFetchedBefore(ctx context.Context, before time.Time) (int64, error)

	// Ping はストアへの接続を確認する。
	Ping(ctx context.Context) error
}
