package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	IngestGRPCAddr string `env:"INGEST_GRPC_ADDR" envDefault:":4317"`
	QueryHTTPAddr  string `env:"QUERY_HTTP_ADDR" envDefault:":8080"`
	AdminAddr      string `env:"ADMIN_ADDR" envDefault:":9091"`

	BatchMaxSize     int           `env:"BATCH_MAX_SIZE" envDefault:"500"`
	BatchMaxAge      time.Duration `env:"BATCH_MAX_AGE" envDefault:"10s"`
	FlushInterval    time.Duration `env:"FLUSH_INTERVAL" envDefault:"5s"`
	SinkWriteTimeout time.Duration `env:"SINK_WRITE_TIMEOUT" envDefault:"30s"`

	ClickHouseAddr     string `env:"CLICKHOUSE_ADDR,required"`
	ClickHouseDatabase string `env:"CLICKHOUSE_DATABASE" envDefault:"default"`
	ClickHouseUser     string `env:"CLICKHOUSE_USER" envDefault:"default"`
	ClickHousePassword string `env:"CLICKHOUSE_PASSWORD" envDefault:""`
	ClickHouseTLS      bool   `env:"CLICKHOUSE_TLS" envDefault:"false"`

	// Live tail is disabled when no Redis address is configured.
	RedisAddr string `env:"REDIS_ADDR" envDefault:""`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
