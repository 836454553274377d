package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/NordCoder/Tokengate/migrations"
)

type Config struct {
	Path         string        `mapstructure:"sqlite_path"`
	BusyTimeout  time.Duration `mapstructure:"sqlite_busy_timeout"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

type DB struct {
	SQL          *sql.DB
	QueryTimeout time.Duration
}

// Open creates the file if needed, applies migrations and verifies the
// connection. SQLite has one writer, so the pool holds a single connection.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on&_journal_mode=WAL", cfg.Path, busy.Milliseconds())

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(hctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := migrations.Up(ctx, sqlDB, goose.DialectSQLite3); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &DB{SQL: sqlDB, QueryTimeout: cfg.QueryTimeout}, nil
}

func (db *DB) Close() error { return db.SQL.Close() }

func (db *DB) Ping(ctx context.Context) error { return db.SQL.PingContext(ctx) }

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.QueryTimeout)
}
