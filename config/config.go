package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/model"
)

const (
	defaultEnvFile = ".env"

	// A full provider snapshot (about 160 rates) takes a few KiB and freecache
	// caps one entry at 1/1024 of its size.
	minMemoryCacheSize = 8 * 1024 * 1024
)

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`

	RatesAPIURL         string        `env:"RATES_API_URL" envDefault:"https://v6.exchangerate-api.com/v6"`
	RatesAPIKey         string        `env:"RATES_API_KEY"`
	RatesAPITimeout     time.Duration `env:"RATES_API_TIMEOUT" envDefault:"10s"`
	DefaultBaseCurrency string        `env:"DEFAULT_BASE_CURRENCY" envDefault:"USD"`

	DBDriver          string        `env:"DB_DRIVER" envDefault:"sqlite"`
	SQLitePath        string        `env:"SQLITE_PATH" envDefault:"currency_converter.db"`
	DBHost            string        `env:"DB_HOST" envDefault:"localhost"`
	DBPort            string        `env:"DB_PORT" envDefault:"5432"`
	DBUser            string        `env:"DB_USER"`
	DBPassword        string        `env:"DB_PASSWORD"`
	DBName            string        `env:"DB_NAME"`
	DBSSLMode         string        `env:"DB_SSL_MODE" envDefault:"disable"`
	DBConnectAttempts uint64        `env:"DB_CONNECT_ATTEMPTS" envDefault:"5"`
	DBConnectDelay    time.Duration `env:"DB_CONNECT_DELAY" envDefault:"200ms"`

	MemoryCacheSize int `env:"MEMORY_CACHE_SIZE" envDefault:"16777216"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"INFO"`

	ServiceName    string `env:"SERVICE_NAME" envDefault:"currency-converter"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
	Environment    string `env:"ENVIRONMENT" envDefault:"development"`

	EnableTracing bool   `env:"ENABLE_TRACING" envDefault:"false"`
	OTLPEndpoint  string `env:"OTLP_ENDPOINT" envDefault:"localhost:4317"`

	EnableMetrics   bool   `env:"ENABLE_METRICS" envDefault:"true"`
	MetricsHTTPAddr string `env:"METRICS_HTTP_ADDR" envDefault:"0.0.0.0:9090"`
}

// ReadConfig loads an optional .env file, then the environment, then command-line flags.
// Earlier sources never override variables that are already set.
func ReadConfig(args []string) (*Config, error) {
	return readConfig(defaultEnvFile, args)
}

func readConfig(envFile string, args []string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file error: %w", err)
	}

	config := Config{}
	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}

	fset := flag.NewFlagSet("currency-converter", flag.ContinueOnError)

	fset.StringVar(&config.HTTPAddr, "http-addr", config.HTTPAddr, "HTTP API listen address")
	fset.StringVar(&config.RatesAPIURL, "rates-api-url", config.RatesAPIURL, "Exchange rate API base URL")
	fset.StringVar(&config.RatesAPIKey, "rates-api-key", config.RatesAPIKey, "Exchange rate API key")
	fset.DurationVar(&config.RatesAPITimeout, "rates-api-timeout", config.RatesAPITimeout, "Exchange rate API request timeout")
	fset.StringVar(&config.DefaultBaseCurrency, "default-base", config.DefaultBaseCurrency, "Base currency used to list available currencies")

	fset.StringVar(&config.DBDriver, "db-driver", config.DBDriver, "Database driver (sqlite or postgres)")
	fset.StringVar(&config.SQLitePath, "sqlite-path", config.SQLitePath, "SQLite database file")
	fset.StringVar(&config.DBHost, "db-host", config.DBHost, "Database host")
	fset.StringVar(&config.DBPort, "db-port", config.DBPort, "Database port")
	fset.StringVar(&config.DBUser, "db-user", config.DBUser, "Database user")
	fset.StringVar(&config.DBPassword, "db-password", config.DBPassword, "Database password")
	fset.StringVar(&config.DBName, "db-name", config.DBName, "Database name")
	fset.StringVar(&config.DBSSLMode, "db-sslmode", config.DBSSLMode, "Database SSL mode")

	fset.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level")

	fset.BoolVar(&config.EnableTracing, "enable-tracing",
		config.EnableTracing, "Enable OpenTelemetry tracing")
	fset.StringVar(&config.OTLPEndpoint, "otlp-endpoint",
		config.OTLPEndpoint, "OpenTelemetry collector endpoint")
	fset.BoolVar(&config.EnableMetrics, "enable-metrics",
		config.EnableMetrics, "Enable Prometheus metrics")
	fset.StringVar(&config.MetricsHTTPAddr, "metrics-http-addr",
		config.MetricsHTTPAddr, "Prometheus metrics HTTP server address")

	if err := fset.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags error: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("http address is required")
	}
	if c.RatesAPIURL == "" {
		return errors.New("rates api url is required")
	}
	if c.RatesAPITimeout <= 0 {
		return fmt.Errorf("rates api timeout must be positive, got %s", c.RatesAPITimeout)
	}
	if c.MemoryCacheSize < 0 {
		return fmt.Errorf("memory cache size must not be negative, got %d", c.MemoryCacheSize)
	}
	if c.MemoryCacheSize > 0 && c.MemoryCacheSize < minMemoryCacheSize {
		return fmt.Errorf("memory cache size must be 0 (disabled) or at least %d bytes, got %d",
			minMemoryCacheSize, c.MemoryCacheSize)
	}

	base, err := model.NormalizeCurrency(c.DefaultBaseCurrency)
	if err != nil {
		return fmt.Errorf("invalid default base currency: %w", err)
	}
	c.DefaultBaseCurrency = base

	return nil
}

// GetDBConnString returns the DSN for the configured driver.
func (c *Config) GetDBConnString() string {
	if c.DBDriver != "postgres" && c.DBDriver != "pgx" && c.DBDriver != "postgresql" {
		return c.SQLitePath + "?_pragma=busy_timeout(5000)"
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)

	return connStr
}
