package outbox_relay_config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetDefault("db.dsn", "")
	v.SetDefault("db.app_name", "outbox-relay")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 2)
	v.SetDefault("db.max_conn_lifetime", "30m")
	v.SetDefault("db.max_conn_idle_time", "10m")
	v.SetDefault("db.health_check_period", "30s")
	v.SetDefault("db.query_timeout", "2s")

	v.SetDefault("kafka.brokers", []string{"localhost:9094"})
	v.SetDefault("kafka.topic", "auth.events")
	v.SetDefault("kafka.partitions", 3)

	v.SetDefault("relay.workers", 4)
	v.SetDefault("relay.batch_size", 100)
	v.SetDefault("relay.interval", "2s")
	v.SetDefault("relay.in_progress_ttl", "30s")

	v.SetDefault("server.metrics_addr", ":8085")

	v.SetDefault("otel.enable", false)
	v.SetDefault("otel.service_name", "outbox-relay")
	v.SetDefault("otel.sample_ratio", 1.0)
	v.SetDefault("otel.otlp_endpoint", "localhost:4317")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	switch {
	case cfg.DB.DSN == "":
		return nil, ErrNoDSN
	case len(cfg.Kafka.Brokers) == 0:
		return nil, ErrNoBrokers
	case cfg.Kafka.Topic == "":
		return nil, ErrNoTopic
	}
	return &cfg, nil
}
