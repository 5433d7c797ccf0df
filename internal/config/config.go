package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Pricing PricingConfig
	Redis   RedisConfig
	Engine  EngineConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
	RequestTimeout  time.Duration `envconfig:"SERVER_REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"5s"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

type PricingConfig struct {
	PaprikaBaseURL    string        `envconfig:"COINPAPRIKA_BASE_URL" default:"https://api.coinpaprika.com"`
	GeckoBaseURL      string        `envconfig:"COINGECKO_BASE_URL" default:"https://api.coingecko.com"`
	FetchTimeout      time.Duration `envconfig:"PRICE_FETCH_TIMEOUT" default:"5s"`
	SpotTTL           time.Duration `envconfig:"PRICE_SPOT_TTL" default:"60s"`
	SlowTTL           time.Duration `envconfig:"PRICE_HISTORY_TTL" default:"300s"`
	RequestsPerMinute int           `envconfig:"PRICE_REQUESTS_PER_MINUTE" default:"45"`
	TopCoinLimit      int           `envconfig:"TOP_COIN_LIMIT" default:"50"`
}

type RedisConfig struct {
	URL string `envconfig:"REDIS_URL"`
}

type EngineConfig struct {
	MaintenanceMarginPct decimal.Decimal `envconfig:"MAINTENANCE_MARGIN_PCT" default:"0.5"`
	FundingRate          decimal.Decimal `envconfig:"FUNDING_RATE" default:"0.0002"`
	UseLivePrices        bool            `envconfig:"USE_LIVE_PRICES" default:"true"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// Enabled reports whether a Redis price cache should be used.
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

// Load reads configuration from environment variables.
// It first tries to load a .env file (useful for local development).
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: process environment: %w", err)
	}

	return &cfg, nil
}
