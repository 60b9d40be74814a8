package repository

import (
	"database/sql"
	"fmt"

	"github.com/hitoshi/kitcourier/internal/database"
)

// NewEntitlementRepository は接続先の種類に応じたEntitlementRepositoryを返す。
func NewEntitlementRepository(db *sql.DB, dialect database.Dialect) (EntitlementRepository, error) {
	switch dialect {
	case database.DialectPostgres:
		return NewPostgresEntitlementRepo(db), nil
	case database.DialectSQLite:
		return NewSQLiteEntitlementRepo(db), nil
	default:
		return nil, fmt.Errorf("unsupported database dialect: %q", dialect)
	}
}
