package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/precip-render-service/internal/domain"
)

// Data source kinds.
const (
	SourceHTTP = "http"
	SourceS3   = "s3"
	SourceDir  = "dir"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Data source selection and location.
	DataSource   string
	DataBaseURL  string
	DataDir      string
	DataVariable string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Prefix    string
	S3UseSSL    bool

	// Fetch resilience.
	FetchTimeout       time.Duration
	FetchMaxRetries    int
	FetchRetryInterval time.Duration
	BreakerMaxFailures int
	BreakerOpenTimeout time.Duration
	FetchConcurrency   int

	// Dedup cache bounds; 0 keeps everything.
	GridCacheSize   int
	RenderCacheSize int

	PrefetchEnabled  bool
	PrefetchInterval time.Duration
	PrefetchModes    []domain.VisualizationMode
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DataSource:   strings.ToLower(sharedcfg.EnvOrDefault("DATA_SOURCE", SourceHTTP)),
		DataBaseURL:  sharedcfg.EnvOrDefault("DATA_BASE_URL", "http://localhost:8000/precipitations/"),
		DataDir:      sharedcfg.EnvOrDefault("DATA_DIR", "./data/precipitations"),
		DataVariable: sharedcfg.EnvOrDefault("DATA_VARIABLE", "precipitation_amount_1hsum"),

		S3Endpoint:  sharedcfg.EnvOrDefault("S3_ENDPOINT", "localhost:9000"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Bucket:    sharedcfg.EnvOrDefault("S3_BUCKET", "precipitations"),
		S3Prefix:    os.Getenv("S3_PREFIX"),
	}

	if cfg.S3UseSSL, err = parseBool("S3_USE_SSL", false); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = parsePositiveDuration("FETCH_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.FetchMaxRetries, err = parseInt("FETCH_MAX_RETRIES", 0, 0); err != nil {
		return nil, err
	}
	if cfg.FetchRetryInterval, err = parsePositiveDuration("FETCH_RETRY_INTERVAL", "500ms"); err != nil {
		return nil, err
	}
	if cfg.BreakerMaxFailures, err = parseInt("BREAKER_MAX_FAILURES", 5, 1); err != nil {
		return nil, err
	}
	if cfg.BreakerOpenTimeout, err = parsePositiveDuration("BREAKER_OPEN_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.FetchConcurrency, err = parseInt("FETCH_CONCURRENCY", 8, 1); err != nil {
		return nil, err
	}
	if cfg.GridCacheSize, err = parseInt("GRID_CACHE_SIZE", 0, 0); err != nil {
		return nil, err
	}
	if cfg.RenderCacheSize, err = parseInt("RENDER_CACHE_SIZE", 0, 0); err != nil {
		return nil, err
	}
	if cfg.PrefetchEnabled, err = parseBool("PREFETCH_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.PrefetchInterval, err = parsePositiveDuration("PREFETCH_INTERVAL", "10m"); err != nil {
		return nil, err
	}
	if cfg.PrefetchModes, err = domain.ParseModes(sharedcfg.EnvOrDefault("PREFETCH_MODES", "max")); err != nil {
		return nil, fmt.Errorf("invalid PREFETCH_MODES: %w", err)
	}

	switch cfg.DataSource {
	case SourceHTTP:
		if cfg.DataBaseURL == "" {
			return nil, errors.New("DATA_BASE_URL is required")
		}
	case SourceS3:
		if cfg.S3Endpoint == "" || cfg.S3Bucket == "" {
			return nil, errors.New("S3_ENDPOINT and S3_BUCKET are required")
		}
	case SourceDir:
		if cfg.DataDir == "" {
			return nil, errors.New("DATA_DIR is required")
		}
	default:
		return nil, fmt.Errorf("invalid DATA_SOURCE %q: must be http, s3, or dir", cfg.DataSource)
	}
	if cfg.PrefetchEnabled && len(cfg.PrefetchModes) == 0 {
		return nil, errors.New("PREFETCH_ENABLED is true but PREFETCH_MODES is empty")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}
