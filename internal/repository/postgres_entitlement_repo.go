package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/kitcourier/internal/model"
)

// PostgresEntitlementRepo はPostgreSQLを使用したランク情報リポジトリ。
type PostgresEntitlementRepo struct {
	db *sql.DB
}

// NewPostgresEntitlementRepo はPostgresEntitlementRepoを生成する。
func NewPostgresEntitlementRepo(db *sql.DB) *PostgresEntitlementRepo {
	return &PostgresEntitlementRepo{db: db}
}

var _ EntitlementRepository = (*PostgresEntitlementRepo)(nil)

// FindByUsername は指定ユーザー名のランク情報を取得する。見つからない場合はnilを返す。
func (r *PostgresEntitlementRepo) FindByUsername(ctx context.Context, username string) (*model.EntitlementRecord, error) {
	rec := &model.EntitlementRecord{}
	var opsb, opp, opf sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT username, opsb_rank, opp_rank, opf_rank, fetched_at
		 FROM entitlements WHERE username = $1`,
		username,
	).Scan(&rec.Username, &opsb, &opp, &opf, &rec.FetchedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find entitlement by username: %w", err)
	}

	rec.OPSBRank = fromNullString(opsb)
	rec.OPPRank = fromNullString(opp)
	rec.OPFRank = fromNullString(opf)
	return rec, nil
}

// Upsert はランク情報を作成または更新する。FetchedAtがゼロ値の場合は現在時刻を使う。
func (r *PostgresEntitlementRepo) Upsert(ctx context.Context, record *model.EntitlementRecord) error {
	if record.FetchedAt.IsZero() {
		record.FetchedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entitlements (username, opsb_rank, opp_rank, opf_rank, fetched_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (username) DO UPDATE SET
		   opsb_rank = EXCLUDED.opsb_rank,
		   opp_rank = EXCLUDED.opp_rank,
		   opf_rank = EXCLUDED.opf_rank,
		   fetched_at = EXCLUDED.fetched_at`,
		record.Username, toNullString(record.OPSBRank), toNullString(record.OPPRank),
		toNullString(record.OPFRank), record.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert entitlement: %w", err)
	}
	return nil
}

// DeleteFetchedBefore はfetched_atが指定時刻より古いランク情報を削除する。
func (r *PostgresEntitlementRepo) DeleteFetchedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM entitlements WHERE fetched_at < $1`,
		before,
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
func (r *PostgresEntitlementRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
