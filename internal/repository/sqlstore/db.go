package sqlstore

import (
	"context"
	"database/sql"
	"regexp"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// Dialect selects the bind parameter syntax of the database.
type Dialect int

const (
	// Postgres uses numbered $N parameters.
	Postgres Dialect = iota
	// SQLite uses positional ? parameters.
	SQLite
)

var numberedParam = regexp.MustCompile(`\$\d+`)

// DialectFor maps a configured driver name to its dialect.
func DialectFor(driver string) Dialect {
	if driver == "sqlite" {
		return SQLite
	}
	return Postgres
}

// rebind rewrites a query written with $N parameters for d. Queries must
// reference each parameter once, in order.
func (d Dialect) rebind(query string) string {
	if d != SQLite {
		return query
	}
	return numberedParam.ReplaceAllString(query, "?")
}

// schema is plain SQL understood by both PostgreSQL and SQLite.
const schema = `
CREATE TABLE IF NOT EXISTS meter_settings (
	meter_id    TEXT PRIMARY KEY,
	city        TEXT NOT NULL,
	custom_rate TEXT,
	payment_qr  TEXT,
	updated_at  BIGINT NOT NULL
)`

// EnsureSchema creates the tables the store needs.
func EnsureSchema(ctx context.Context, q Querier) error {
	_, err := q.ExecContext(ctx, schema)
	return err
}
