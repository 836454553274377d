package main

import (
	"context"
	"fmt"

	config "github.com/NordCoder/Tokengate/internal/config/auth-api"
	domainauth "github.com/NordCoder/Tokengate/internal/domain/auth"
	"github.com/NordCoder/Tokengate/internal/domain/user"
	"github.com/NordCoder/Tokengate/internal/outbox"
	pg "github.com/NordCoder/Tokengate/internal/repository/postgres"
	"github.com/NordCoder/Tokengate/internal/repository/sqlite"
	"github.com/NordCoder/Tokengate/internal/services/auth-api/auth"
	"go.uber.org/zap"
)

// stores bundles the adapters of whichever storage driver is configured.
type stores struct {
	users  user.Directory
	tokens domainauth.RefreshTokenRepo
	tx     auth.Transactor
	events domainauth.EventSink
	ping   func(context.Context) error
	close  func()
}

func initStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := pg.NewDB(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		var events domainauth.EventSink = outbox.NewLogSink(logger)
		if cfg.Outbox.Enable {
			events = outbox.NewSink(pg.NewOutboxRepo(db))
		}
		return &stores{
			users:  pg.NewUserRepo(db),
			tokens: pg.NewRefreshTokenRepo(db),
			tx:     pg.NewTransactor(db, logger),
			events: events,
			ping:   db.Ping,
			close:  db.Close,
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Storage.SQLite)
		if err != nil {
			return nil, err
		}
		return &stores{
			users:  sqlite.NewUserRepo(db),
			tokens: sqlite.NewRefreshTokenRepo(db),
			tx:     sqlite.NewTransactor(db, logger),
			events: outbox.NewLogSink(logger),
			ping:   db.Ping,
			close:  func() { _ = db.Close() },
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
