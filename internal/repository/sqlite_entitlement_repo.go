package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/kitcourier/internal/model"
)

// SQLiteEntitlementRepo はSQLiteを使用したランク情報リポジトリ。
// fetched_atはUnixミリ秒で保存する。
type SQLiteEntitlementRepo struct {
	db *sql.DB
}

// NewSQLiteEntitlementRepo はSQLiteEntitlementRepoを生成する。
func NewSQLiteEntitlementRepo(db *sql.DB) *SQLiteEntitlementRepo {
	return &SQLiteEntitlementRepo{db: db}
}

var _ EntitlementRepository = (*SQLiteEntitlementRepo)(nil)

// FindByUsername は指定ユーザー名のランク情報を取得する。見つからない場合はnilを返す。
func (r *SQLiteEntitlementRepo) FindByUsername(ctx context.Context, username string) (*model.EntitlementRecord, error) {
	rec := &model.EntitlementRecord{}
	var opsb, opp, opf sql.NullString
	var fetchedAt int64
	err := r.db.QueryRowContext(ctx,
		`SELECT username, opsb_rank, opp_rank, opf_rank, fetched_at
		 FROM entitlements WHERE username = ?`,
		username,
	).Scan(&rec.Username, &opsb, &opp, &opf, &fetchedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find entitlement by username: %w", err)
	}

	rec.OPSBRank = fromNullString(opsb)
	rec.OPPRank = fromNullString(opp)
	rec.OPFRank = fromNullString(opf)
	rec.FetchedAt = time.UnixMilli(fetchedAt)
	return rec, nil
}

// Upsert はランク情報を作成または更新する。FetchedAtがゼロ値の場合は現在時刻を使う。
func (r *SQLiteEntitlementRepo) Upsert(ctx context.Context, record *model.EntitlementRecord) error {
	if record.FetchedAt.IsZero() {
		record.FetchedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entitlements (username, opsb_rank, opp_rank, opf_rank, fetched_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (username) DO UPDATE SET
		   opsb_rank = excluded.opsb_rank,
		   opp_rank = excluded.opp_rank,
		   opf_rank = excluded.opf_rank,
		   fetched_at = excluded.fetched_at`,
		record.Username, toNullString(record.OPSBRank), toNullString(record.OPPRank),
		toNullString(record.OPFRank), record.FetchedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert entitlement: %w", err)
	}
	return nil
}

// DeleteFetchedBefore はfetched_atが指定時刻より古いランク情報を削除する。
func (r *SQLiteEntitlementRepo) DeleteFetchedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM entitlements WHERE fetched_at < ?`,
		before.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale entitlements: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// Ping はデータベースへの接続を確認する。
func (r *SQLiteEntitlementRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
