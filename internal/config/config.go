package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type APIConfig struct {
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// Shared-secret bearer token. Empty disables the auth check entirely;
	// a demo convenience, not a production control.
	APIToken string `envconfig:"API_TOKEN"`

	// Base URL the scheduled dispatch/webhook actions post back to. Defaults
	// to the local listener when unset.
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL"`

	// Provider simulation knobs.
	ProviderDelayMsMin int     `envconfig:"PROVIDER_DELAY_MS_MIN" default:"800"`
	ProviderDelayMsMax int     `envconfig:"PROVIDER_DELAY_MS_MAX" default:"2200"`
	ProviderFailRate   float64 `envconfig:"PROVIDER_FAIL_RATE" default:"0.15"`

	// Dispatch trigger rate limit (loopback provider calls per second).
	DispatchRPS   float64 `envconfig:"DISPATCH_RPS" default:"10"`
	DispatchBurst int     `envconfig:"DISPATCH_BURST" default:"20"`

	// DB pool tuning. Zero durations keep the driver defaults.
	DBPoolMaxConns          int32         `envconfig:"DB_POOL_MAX_CONNS" default:"8"`
	DBPoolMinConns          int32         `envconfig:"DB_POOL_MIN_CONNS" default:"0"`
	DBPoolMaxConnLifetime   time.Duration `envconfig:"DB_POOL_MAX_CONN_LIFETIME"`
	DBPoolMaxConnIdleTime   time.Duration `envconfig:"DB_POOL_MAX_CONN_IDLE_TIME"`
	DBPoolHealthCheckPeriod time.Duration `envconfig:"DB_POOL_HEALTH_CHECK_PERIOD"`
}

type MigrateConfig struct {
	DBDSN          string `envconfig:"DB_DSN" required:"true"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"migrations"`
}

func LoadAPI() APIConfig {
	var cfg APIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadMigrate() MigrateConfig {
	var cfg MigrateConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}
