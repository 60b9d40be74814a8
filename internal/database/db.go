package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect は接続先データベースの種類を表す。
type Dialect string

const (
	// DialectPostgres はPostgreSQL。
	DialectPostgres Dialect = "postgres"
	// DialectSQLite はSQLite（modernc.org/sqlite）。
	DialectSQLite Dialect = "sqlite"
)

// ParseURL はデータベースURLのスキームからDialectとdatabase/sql用のDSNを返す。
// postgres:// と postgresql:// はURLをそのまま、sqlite:// はパス部分をDSNとして使う。
func ParseURL(databaseURL string) (Dialect, string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DialectPostgres, databaseURL, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		dsn := strings.TrimPrefix(databaseURL, "sqlite://")
		if dsn == "" {
			return "", "", fmt.Errorf("empty sqlite path in database URL")
		}
		return DialectSQLite, dsn, nil
	default:
		return "", "", fmt.Errorf("unsupported database URL scheme: %q", databaseURL)
	}
}

// Open はデータベースURLに応じたドライバで接続を開く。
// sql.Openは接続を試行しないため、実際の接続確認にはdb.Ping()を使用すること。
func Open(databaseURL string) (*sql.DB, Dialect, error) {
	dialect, dsn, err := ParseURL(databaseURL)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	// SQLiteは書き込みを直列化する必要がある
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}

	return db, dialect, nil
}
