package auth_api_config

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/NordCoder/Tokengate/internal/auth"
	"github.com/NordCoder/Tokengate/internal/obs"
	pg "github.com/NordCoder/Tokengate/internal/repository/postgres"
	"github.com/NordCoder/Tokengate/internal/repository/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type Storage struct {
	Driver string        `mapstructure:"driver"`
	SQLite sqlite.Config `mapstructure:",squash"`
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

type Auth struct {
	JWTSecret           string        `mapstructure:"jwt_secret"`
	Issuer              string        `mapstructure:"issuer"`
	Audience            string        `mapstructure:"audience"`
	AccessTTLMinutes    int           `mapstructure:"access_ttl_minutes"`
	RefreshTTL          time.Duration `mapstructure:"refresh_ttl"`
	RevokeFamilyOnReuse bool          `mapstructure:"revoke_family_on_reuse"`

	Hasher auth.HasherConfig `mapstructure:",squash"`
}

func (a *Auth) AsIssuerConfig() auth.IssuerConfig {
	return auth.IssuerConfig{
		Secret:    a.JWTSecret,
		Issuer:    a.Issuer,
		Audience:  a.Audience,
		AccessTTL: time.Duration(a.AccessTTLMinutes) * time.Minute,
	}
}

type I18n struct {
	DefaultLang string `mapstructure:"default_lang"`
}

// Outbox controls how auth events leave the process. With enable=false events
// are only logged.
type Outbox struct {
	Enable bool `mapstructure:"enable"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Config struct {
	App     App       `mapstructure:"app"`
	Server  Server    `mapstructure:"server"`
	DB      pg.Config `mapstructure:"db"`
	Storage Storage   `mapstructure:"storage"`
	OTEL    OTEL      `mapstructure:"otel"`
	Log     Log       `mapstructure:"log"`
	Auth    Auth      `mapstructure:"auth"`
	I18n    I18n      `mapstructure:"i18n"`
	Outbox  Outbox    `mapstructure:"outbox"`
	Kafka   Kafka     `mapstructure:"kafka"`
}

func (c *Config) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		App:    c.App.Name,
		Env:    c.App.Env,
		Ver:    c.App.Version,
	}
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }

const (
	ErrNoSecret     ErrConfig = "auth.jwt_secret is required"
	ErrNoIssuer     ErrConfig = "auth.issuer is required"
	ErrNoAudience   ErrConfig = "auth.audience is required"
	ErrBadAccessTTL ErrConfig = "auth.access_ttl_minutes must be positive"
	ErrBadDriver    ErrConfig = "storage.driver must be postgres or sqlite"
	ErrNoDSN        ErrConfig = "db.dsn is required for the postgres driver"
	ErrNoSQLitePath ErrConfig = "storage.sqlite_path is required for the sqlite driver"
	ErrOutboxSQLite ErrConfig = "outbox requires the postgres driver"
	ErrBadHashCost  ErrConfig = "auth.hash_cost must be 0 (default) or within bcrypt's 4..31"
)

func (c *Config) validate() error {
	switch {
	case c.Auth.JWTSecret == "":
		return ErrNoSecret
	case c.Auth.Issuer == "":
		return ErrNoIssuer
	case c.Auth.Audience == "":
		return ErrNoAudience
	case c.Auth.AccessTTLMinutes <= 0:
		return ErrBadAccessTTL
	case c.Auth.Hasher.Cost != 0 && (c.Auth.Hasher.Cost < bcrypt.MinCost || c.Auth.Hasher.Cost > bcrypt.MaxCost):
		return ErrBadHashCost
	}
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.DB.DSN == "" {
			return ErrNoDSN
		}
	case DriverSQLite:
		if c.Storage.SQLite.Path == "" {
			return ErrNoSQLitePath
		}
		if c.Outbox.Enable {
			return ErrOutboxSQLite
		}
	default:
		return ErrBadDriver
	}
	return nil
}
