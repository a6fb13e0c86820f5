package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Gateway is the process configuration, read once at startup.
type Gateway struct {
	ServerAddr       string
	ConcurrencyLimit int
	AcquireTimeout   time.Duration
	ShutdownTimeout  time.Duration

	CatalogPath string
	CatalogDB   string

	RateRPS   float64
	RateBurst int

	StatsRedisAddr     string
	StatsRedisPassword string
	StatsRedisDB       int
	StatsPrefix        string

	LogLevel  string
	LogFormat string
}

// FromEnv reads the gateway configuration from the environment. Every
// malformed value is reported in the returned error; none is defaulted.
func FromEnv() (Gateway, error) {
	var (
		cfg  Gateway
		errs []error
	)

	cfg.ServerAddr = GetEnv("SERVER_ADDR", "127.0.0.1:3000")
	if _, _, err := net.SplitHostPort(cfg.ServerAddr); err != nil {
		errs = append(errs, fmt.Errorf("SERVER_ADDR %q: %w", cfg.ServerAddr, err))
	}

	cfg.ConcurrencyLimit = envInt("CONCURRENCY_LIMIT", 100, &errs)
	if cfg.ConcurrencyLimit < 1 {
		errs = append(errs, fmt.Errorf("CONCURRENCY_LIMIT must be >= 1, got %d", cfg.ConcurrencyLimit))
	}
	cfg.AcquireTimeout = envDuration("ACQUIRE_TIMEOUT", 0, &errs)
	cfg.ShutdownTimeout = envDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs)

	cfg.CatalogPath = os.Getenv("CATALOG_PATH")
	cfg.CatalogDB = os.Getenv("CATALOG_DB")

	cfg.RateRPS = envFloat("RATE_RPS", 0, &errs)
	cfg.RateBurst = envInt("RATE_BURST", 20, &errs)
	if cfg.RateRPS < 0 {
		errs = append(errs, fmt.Errorf("RATE_RPS must be >= 0, got %v", cfg.RateRPS))
	}
	if cfg.RateRPS > 0 && cfg.RateBurst <= 0 {
		errs = append(errs, fmt.Errorf("RATE_BURST must be > 0 when RATE_RPS is set, got %d", cfg.RateBurst))
	}

	cfg.StatsRedisAddr = strings.TrimSpace(os.Getenv("STATS_REDIS_ADDR"))
	cfg.StatsRedisPassword = os.Getenv("STATS_REDIS_PASSWORD")
	cfg.StatsRedisDB = envInt("STATS_REDIS_DB", 0, &errs)
	cfg.StatsPrefix = GetEnv("STATS_PREFIX", "gateway:stats")

	cfg.LogLevel = GetEnv("LOG_LEVEL", "info")
	cfg.LogFormat = GetEnv("LOG_FORMAT", "json")

	if err := errors.Join(errs...); err != nil {
		return Gateway{}, err
	}
	return cfg, nil
}

func envInt(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func envFloat(key string, def float64, errs *[]error) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a number", key, v))
		return def
	}
	return f
}

func envDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return def
	}
	if d < 0 {
		*errs = append(*errs, fmt.Errorf("%s must not be negative, got %s", key, d))
		return def
	}
	return d
}
