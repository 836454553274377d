package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	internalauth "github.com/NordCoder/Tokengate/internal/auth"
	config "github.com/NordCoder/Tokengate/internal/config/auth-api"
	"github.com/NordCoder/Tokengate/internal/i18n"
	"github.com/NordCoder/Tokengate/internal/obs"
	"github.com/NordCoder/Tokengate/internal/services/auth-api/auth"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", "config/auth-api.yaml", "path to YAML config (optional)")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := *cfgPath
	if _, err := os.Stat(path); err != nil {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := obs.NewLogger(cfg.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting auth-api",
		zap.String("env", cfg.App.Env),
		zap.String("ver", cfg.App.Version),
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("outbox", cfg.Outbox.Enable),
	)

	otelShutdown, err := initOTel(rootCtx, cfg)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	st, err := initStores(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("storage init", zap.Error(err))
	}
	defer st.close()

	issuer, err := internalauth.NewIssuer(cfg.Auth.AsIssuerConfig(), nil)
	if err != nil {
		logger.Fatal("issuer config", zap.Error(err))
	}
	catalog, err := i18n.NewCatalog(cfg.I18n.DefaultLang)
	if err != nil {
		logger.Fatal("i18n catalog", zap.Error(err))
	}

	uc := auth.NewUseCase(
		st.users,
		st.tokens,
		internalauth.NewBcryptHasher(cfg.Auth.Hasher),
		issuer,
		st.tx,
		st.events,
		auth.Config{
			RefreshTTL:          cfg.Auth.RefreshTTL,
			RevokeFamilyOnReuse: cfg.Auth.RevokeFamilyOnReuse,
			Logger:              logger,
		},
	)
	api := auth.NewServer(uc, st.users, catalog, auth.Opts{Logger: logger})

	httpSrv := buildHTTPServer(cfg, api.Routes(), st.ping)
	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, logger) }()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal")
	case runErr := <-httpErrCh:
		if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(runErr))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	logger.Info("bye")
}
