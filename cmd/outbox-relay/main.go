package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/NordCoder/Tokengate/internal/config/outbox-relay"
	"github.com/NordCoder/Tokengate/internal/obs"
	"github.com/NordCoder/Tokengate/internal/obs/retry"
	"github.com/NordCoder/Tokengate/internal/outbox"
	"github.com/NordCoder/Tokengate/internal/repository/kafka"
	pg "github.com/NordCoder/Tokengate/internal/repository/postgres"
	"go.uber.org/zap"
)

func wire(cfg *config.Config, db *pg.DB, events *kafka.AuthEventsKafka, l *zap.Logger) *outbox.Runner {
	dispatch := outbox.MakeGlobalOutboxHandler(events, retry.DefaultPublishPolicy(l))
	return outbox.NewOutboxRunner(
		l,
		pg.NewOutboxRepo(db),
		dispatch,
		cfg.Relay.Workers,
		cfg.Relay.BatchSize,
		cfg.Relay.Interval,
		cfg.Relay.InProgressTTL,
	)
}

func main() {
	cfgPath := flag.String("config", "config/outbox-relay.yaml", "path to YAML config (optional)")
	flag.Parse()

	root, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := *cfgPath
	if _, err := os.Stat(path); err != nil {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()

	// otel
	otelCloser, err := obs.SetupOTel(root, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.NewDB(root, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, db.Ping, l)

	// kafka
	if err := kafka.EnsureTopic(root, cfg.Kafka.Brokers, kafka.TopicSpec{
		Name:          cfg.Kafka.Topic,
		NumPartitions: cfg.Kafka.Partitions,
	}, l); err != nil {
		l.Warn("ensure topic", zap.String("topic", cfg.Kafka.Topic), zap.Error(err))
	}
	prod := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic).WithLogger(l)
	defer func() { _ = prod.Close() }()

	runner := wire(cfg, db, kafka.NewAuthEventsKafka(prod), l)
	runner.Start(root)
	l.Info("outbox relay started",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.Int("workers", cfg.Relay.Workers),
	)

	<-root.Done()
	runner.Wait()

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
