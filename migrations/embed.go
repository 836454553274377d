// Package migrations holds the SQL schema for both storage drivers.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// Up applies every pending migration for dialect (postgres or sqlite3) and
// returns the number applied.
func Up(ctx context.Context, db *sql.DB, dialect goose.Dialect) (int, error) {
	dir := "postgres"
	if dialect == goose.DialectSQLite3 {
		dir = "sqlite"
	}
	sub, err := fs.Sub(FS, dir)
	if err != nil {
		return 0, fmt.Errorf("migrations dir %s: %w", dir, err)
	}
	p, err := goose.NewProvider(dialect, db, sub)
	if err != nil {
		return 0, fmt.Errorf("goose provider: %w", err)
	}
	res, err := p.Up(ctx)
	if err != nil {
		return len(res), fmt.Errorf("migrate up: %w", err)
	}
	return len(res), nil
}
