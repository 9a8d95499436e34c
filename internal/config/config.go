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

const (
	BackendPostgres = "postgres"
	BackendPebble   = "pebble"
	BackendMemory   = "memory"
)

type Config struct {
	DatabaseURL    string
	RawDatabaseURL string
	RedisURL       string
	MetricsPort    string
	WorkerCount    int
	LogLevel       string
	LogFormat      string

	StoreBackend string
	PebbleDir    string

	KafkaBrokers   string
	KafkaTopic     string
	ChangeFeedFile string

	EfficiencyTolerance float64
	RoundingPrecision   int32
	VersionRetries      int
	LockTTL             time.Duration
	GeoBrandsFile       string
}

// Load reads .env (project root, then the working directory) and the
// environment, applies defaults and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load("../../.env")
	_ = godotenv.Load()

	var p parser
	cfg := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
		WorkerCount:    p.int("WORKER_COUNT", 1),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		StoreBackend:   strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres)),
		PebbleDir:      getEnv("PEBBLE_DIR", "data/pebble"),
		KafkaBrokers:   os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "product-changes"),
		ChangeFeedFile: os.Getenv("CHANGEFEED_FILE"),
		GeoBrandsFile:  os.Getenv("GEO_BRANDS_FILE"),

		EfficiencyTolerance: p.float("EFFICIENCY_TOLERANCE", 5),
		RoundingPrecision:   int32(p.int("ROUNDING_PRECISION", 2)),
		VersionRetries:      p.int("VERSION_RETRIES", 3),
		LockTTL:             p.duration("LOCK_TTL", 30*time.Second),
	}
	cfg.RawDatabaseURL = getEnv("RAW_DATABASE_URL", cfg.DatabaseURL)

	if len(p.errs) > 0 {
		return nil, fmt.Errorf("config load: %s", strings.Join(p.errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required for the postgres backend")
		}
	case BackendPebble:
		if c.PebbleDir == "" {
			errs = append(errs, "PEBBLE_DIR is required for the pebble backend")
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Sprintf("STORE_BACKEND %q must be postgres, pebble or memory", c.StoreBackend))
	}

	if c.WorkerCount < 1 {
		errs = append(errs, fmt.Sprintf("WORKER_COUNT (%d) must be at least 1", c.WorkerCount))
	}
	if port, err := strconv.Atoi(c.MetricsPort); err != nil || port < 0 || port > 65535 {
		errs = append(errs, fmt.Sprintf("METRICS_PORT (%s) must be 0-65535", c.MetricsPort))
	}
	if c.EfficiencyTolerance < 0 {
		errs = append(errs, "EFFICIENCY_TOLERANCE must be non-negative")
	}
	if c.RoundingPrecision < 0 || c.RoundingPrecision > 6 {
		errs = append(errs, fmt.Sprintf("ROUNDING_PRECISION (%d) must be 0-6", c.RoundingPrecision))
	}
	if c.VersionRetries < 0 {
		errs = append(errs, "VERSION_RETRIES must be non-negative")
	}
	if c.LockTTL <= 0 {
		errs = append(errs, "LOCK_TTL must be positive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("LOG_LEVEL %q must be debug, info, warn or error", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("LOG_FORMAT %q must be text or json", c.LogFormat))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// parser collects conversion errors so Load can report them together.
type parser struct {
	errs []string
}

func (p *parser) int(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %q is not an integer", k, v))
		return d
	}
	return n
}

func (p *parser) float(k string, d float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %q is not a number", k, v))
		return d
	}
	return f
}

func (p *parser) duration(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	dur, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %q is not a duration", k, v))
		return d
	}
	return dur
}
