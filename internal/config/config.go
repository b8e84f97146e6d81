package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	DBPath          string          `env:"DB_PATH" envDefault:"data.db"`
	ListenAddr      string          `env:"LISTEN_ADDR" envDefault:"8080"`
	JWTSecret       string          `env:"JWT_SECRET"`
	TokenTTL        time.Duration   `env:"TOKEN_TTL" envDefault:"24h"`
	StartingBalance decimal.Decimal `env:"STARTING_BALANCE" envDefault:"10000"`
	QuoteProvider   string          `env:"QUOTE_PROVIDER" envDefault:"yahoo"`
	QuoteBaseURL    string          `env:"QUOTE_BASE_URL"`
	QuoteTimeout    time.Duration   `env:"QUOTE_TIMEOUT" envDefault:"5s"`
	QuoteStatic     string          `env:"QUOTE_STATIC"`
	PollInterval    time.Duration   `env:"POLL_INTERVAL" envDefault:"100ms"`
	LogLevel        string          `env:"LOG_LEVEL" envDefault:"info"`
	LogDev          bool            `env:"LOG_DEV" envDefault:"false"`
}

// Load reads .env into the environment when the file exists, then parses
// the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}
	var cfg Config
	return cfg, env.Parse(&cfg)
}

// ValidateServer checks the settings only the HTTP server needs.
func (c Config) ValidateServer() error {
	if c.JWTSecret == "" {
		return errors.New(`required environment variable "JWT_SECRET" is not set`)
	}
	if !c.StartingBalance.IsPositive() {
		return errors.New("STARTING_BALANCE must be positive")
	}
	switch c.QuoteProvider {
	case "yahoo", "static":
	default:
		return errors.New(`QUOTE_PROVIDER must be "yahoo" or "static"`)
	}
	return nil
}
