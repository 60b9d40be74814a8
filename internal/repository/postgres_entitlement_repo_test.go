package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/hitoshi/kitcourier/internal/database"
	"github.com/hitoshi/kitcourier/internal/model"
)

// NewPostgresEntitlementRepoが正しく初期化されることを検証
func TestNewPostgresEntitlementRepo_Initializes(t *testing.T) {
	repo := NewPostgresEntitlementRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewEntitlementRepository_SelectsByDialect(t *testing.T) {
	pg, err := NewEntitlementRepository(nil, database.DialectPostgres)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := pg.(*PostgresEntitlementRepo); !ok {
		t.Errorf("postgres dialect returned %T", pg)
	}

	lite, err := NewEntitlementRepository(nil, database.DialectSQLite)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := lite.(*SQLiteEntitlementRepo); !ok {
		t.Errorf("sqlite dialect returned %T", lite)
	}

	if _, err := NewEntitlementRepository(nil, database.Dialect("mysql")); err == nil {
		t.Error("unsupported dialect should return error")
	}
}

func TestNullStringConversion(t *testing.T) {
	if ns := toNullString(nil); ns.Valid {
		t.Error("nil should convert to invalid NullString")
	}
	if got := fromNullString(sql.NullString{}); got != nil {
		t.Errorf("invalid NullString should convert to nil, got %q", *got)
	}
	got := fromNullString(toNullString(strPtr("VIP")))
	if got == nil || *got != "VIP" {
		t.Errorf("round trip = %v, want VIP", got)
	}
}

// TestPostgresEntitlementRepo_Integration はTEST_DATABASE_URLが設定されている場合のみ実行する。
func TestPostgresEntitlementRepo_Integration(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	if err := database.RunMigrations(dbURL); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}
	db, _, err := database.Open(dbURL)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer db.Close()

	repo := NewPostgresEntitlementRepo(db)
	ctx := context.Background()
	t.Cleanup(func() {
		db.Exec(`DELETE FROM entitlements WHERE username = 'pg-test-user'`)
	})

	err = repo.Upsert(ctx, &model.EntitlementRecord{
		Username:  "pg-test-user",
		OPFRank:   strPtr("Legend"),
		FetchedAt: time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	rec, err := repo.FindByUsername(ctx, "pg-test-user")
	if err != nil {
		t.Fatalf("FindByUsername failed: %v", err)
	}
	if rec == nil || rec.OPFRank == nil || *rec.OPFRank != "Legend" {
		t.Errorf("unexpected record: %+v", rec)
	}
}
