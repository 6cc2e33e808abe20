// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Durable tier backends.
const (
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
	BackendMemory   = "memory"
)

// Config holds all configuration values for the profiler.
type Config struct {
	// HTTP
	HTTPAddr       string
	RequestTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Solana
	SolanaRPCEndpoint string
	SolanaWSEndpoint  string

	// Upstream APIs
	HeliusAPIKey       string
	HeliusBaseURL      string
	DexScreenerBaseURL string

	// Hot tier
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Durable tier and ledger
	DurableBackend   string
	PostgresDSN      string
	PostgresMaxConns int
	ClickhouseDSN    string
	BadgerDir        string
	RunMigrations    bool

	// Events
	KafkaBrokers []string
	KafkaTopic   string

	// Computation
	FetchTimeout    time.Duration
	ComputeTimeout  time.Duration
	MaxTrades       int
	MaxFetchRecords int

	// Retry
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	RetryJitter      float64

	// TTL policy
	TTLVolatile      time.Duration
	TTLBehavioral    time.Duration
	TTLLowConfidence time.Duration

	// Watcher
	WatchWallets  []string
	WatchDebounce time.Duration
}

// Load reads configuration from environment variables with fallback to .env file.
// Priority order: Environment variables > .env file > hardcoded defaults
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 90*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		SolanaRPCEndpoint: getEnv("SOLANA_RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"),
		SolanaWSEndpoint:  getEnv("SOLANA_WS_ENDPOINT", ""),

		HeliusAPIKey:       getEnv("HELIUS_API_KEY", ""),
		HeliusBaseURL:      getEnv("HELIUS_BASE_URL", "https://api.helius.xyz"),
		DexScreenerBaseURL: getEnv("DEXSCREENER_BASE_URL", "https://api.dexscreener.com/latest/dex/tokens"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DurableBackend:   strings.ToLower(getEnv("DURABLE_BACKEND", BackendMemory)),
		PostgresDSN:      getEnv("POSTGRES_DSN", ""),
		PostgresMaxConns: getEnvInt("POSTGRES_MAX_CONNS", 10),
		ClickhouseDSN:    getEnv("CLICKHOUSE_DSN", ""),
		BadgerDir:        getEnv("BADGER_DIR", "./data/profiles"),
		RunMigrations:    getEnvBool("RUN_MIGRATIONS", true),

		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "wallet-profiles"),

		FetchTimeout:    getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		ComputeTimeout:  getEnvDuration("COMPUTE_TIMEOUT", 60*time.Second),
		MaxTrades:       getEnvInt("MAX_TRADES", 1000),
		MaxFetchRecords: getEnvInt("MAX_FETCH_RECORDS", 5000),

		RetryMaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 4),
		RetryBaseDelay:   getEnvDuration("RETRY_BASE_DELAY", 250*time.Millisecond),
		RetryMaxDelay:    getEnvDuration("RETRY_MAX_DELAY", 4*time.Second),
		RetryJitter:      getEnvFloat("RETRY_JITTER", 0.2),

		TTLVolatile:      getEnvDuration("TTL_VOLATILE", 5*time.Minute),
		TTLBehavioral:    getEnvDuration("TTL_BEHAVIORAL", 6*time.Hour),
		TTLLowConfidence: getEnvDuration("TTL_LOW_CONFIDENCE", 2*time.Minute),

		WatchWallets:  getEnvList("WATCH_WALLETS"),
		WatchDebounce: getEnvDuration("WATCH_DEBOUNCE", 5*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and consistent.
func (c *Config) Validate() error {
	var errs []error

	switch c.DurableBackend {
	case BackendPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required when DURABLE_BACKEND=postgres"))
		}
	case BackendBadger:
		if c.BadgerDir == "" {
			errs = append(errs, errors.New("BADGER_DIR is required when DURABLE_BACKEND=badger"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("DURABLE_BACKEND must be one of postgres, badger, memory (got %q)", c.DurableBackend))
	}

	if c.SolanaRPCEndpoint == "" {
		errs = append(errs, errors.New("SOLANA_RPC_ENDPOINT is required"))
	}
	if len(c.WatchWallets) > 0 && c.SolanaWSEndpoint == "" {
		errs = append(errs, errors.New("SOLANA_WS_ENDPOINT is required when WATCH_WALLETS is set"))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}

	if c.FetchTimeout <= 0 || c.ComputeTimeout <= 0 {
		errs = append(errs, errors.New("FETCH_TIMEOUT and COMPUTE_TIMEOUT must be positive"))
	} else if c.FetchTimeout > c.ComputeTimeout {
		errs = append(errs, errors.New("FETCH_TIMEOUT must not exceed COMPUTE_TIMEOUT"))
	}
	if c.MaxTrades < 1 {
		errs = append(errs, errors.New("MAX_TRADES must be at least 1"))
	}
	if c.MaxFetchRecords < 1 {
		errs = append(errs, errors.New("MAX_FETCH_RECORDS must be at least 1"))
	}

	if c.RetryMaxAttempts < 1 {
		errs = append(errs, errors.New("RETRY_MAX_ATTEMPTS must be at least 1"))
	}
	if c.RetryBaseDelay > c.RetryMaxDelay {
		errs = append(errs, errors.New("RETRY_BASE_DELAY must not exceed RETRY_MAX_DELAY"))
	}
	if c.RetryJitter < 0 || c.RetryJitter > 1 {
		errs = append(errs, errors.New("RETRY_JITTER must be between 0 and 1"))
	}

	if c.TTLVolatile <= 0 || c.TTLBehavioral <= 0 || c.TTLLowConfidence <= 0 {
		errs = append(errs, errors.New("TTL values must be positive"))
	}

	if c.RedisDB < 0 {
		errs = append(errs, errors.New("REDIS_DB must not be negative"))
	}

	return errors.Join(errs...)
}

// MaskedHeliusKey returns the API key with most characters hidden for logging.
func (c *Config) MaskedHeliusKey() string {
	return maskSecret(c.HeliusAPIKey)
}

// maskSecret hides all but the first and last 4 characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat retrieves an environment variable as a float64 or returns a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean or returns a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration parses Go duration syntax ("90s", "5m") or returns a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
