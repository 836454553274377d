package main

import (
	"context"
	"net/http"
	"time"

	config "github.com/NordCoder/Tokengate/internal/config/auth-api"
	"github.com/NordCoder/Tokengate/internal/obs"
	"go.uber.org/zap"
)

func buildHTTPServer(cfg *config.Config, api http.Handler, ping func(context.Context) error) *http.Server {
	root := http.NewServeMux()
	root.Handle("/v1/", obs.HTTPHandler(api, "auth-api"))
	root.Handle("/metrics", obs.MetricsHandler())
	root.Handle("/healthz", obs.HealthHandler(ping))

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           root,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

func serveHTTP(srv *http.Server, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", srv.Addr))
	return srv.ListenAndServe()
}
