package outbox_relay_config

import (
	"time"

	"github.com/NordCoder/Tokengate/internal/obs"
	pg "github.com/NordCoder/Tokengate/internal/repository/postgres"
)

type Kafka struct {
	Brokers    []string `mapstructure:"brokers"`
	Topic      string   `mapstructure:"topic"`
	Partitions int      `mapstructure:"partitions"`
}

type Relay struct {
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	Interval      time.Duration `mapstructure:"interval"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl"`
}

type Server struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (lc *Log) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  lc.Level,
		Pretty: lc.Pretty,
		App:    "tokengate/outbox-relay",
	}
}

type Config struct {
	DB     pg.Config `mapstructure:"db"`
	Kafka  Kafka     `mapstructure:"kafka"`
	Relay  Relay     `mapstructure:"relay"`
	Server Server    `mapstructure:"server"`
	OTEL   OTEL      `mapstructure:"otel"`
	Log    Log       `mapstructure:"log"`
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }

const (
	ErrNoDSN     ErrConfig = "db.dsn is required"
	ErrNoBrokers ErrConfig = "kafka.brokers is required"
	ErrNoTopic   ErrConfig = "kafka.topic is required"
)
