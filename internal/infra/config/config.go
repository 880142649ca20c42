package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yanqian/chargemap/internal/domain/site"
)

// Source kinds.
const (
	SourceAPI         = "api"
	SourcePostgres    = "postgres"
	SourceObjectStore = "objectstore"
	SourceMemory      = "memory"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Source   SourceConfig   `yaml:"source"`
	Cache    CacheConfig    `yaml:"cache"`
	Explorer ExplorerConfig `yaml:"explorer"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	AllowedMethods []string        `yaml:"allowedMethods"`
	AllowedHeaders []string        `yaml:"allowedHeaders"`
	CORSMaxAge     time.Duration   `yaml:"corsMaxAge"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	Retry          RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// LogConfig sets the default log level; LOG_LEVEL still wins.
type LogConfig struct {
	Level string `yaml:"level"`
}

// SourceConfig selects and configures the site-data source.
type SourceConfig struct {
	Kind        string            `yaml:"kind"`
	API         APIConfig         `yaml:"api"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	ObjectStore ObjectStoreConfig `yaml:"objectStore"`
	FixturePath string            `yaml:"fixturePath"`
}

// APIConfig points at the remote site-data API.
type APIConfig struct {
	BaseURL           string        `yaml:"baseUrl"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// ObjectStoreConfig locates processed snapshots in S3-compatible storage.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
}

// CacheConfig controls collection caching in front of the source.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	Valkey  ValkeyConfig  `yaml:"valkey"`
}

// ValkeyConfig contains connection information for shared cache storage.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

// ExplorerConfig holds session defaults.
type ExplorerConfig struct {
	DefaultMetric   string        `yaml:"defaultMetric"`
	DefaultMinScore float64       `yaml:"defaultMinScore"`
	ThresholdPolicy string        `yaml:"thresholdPolicy"`
	TopN            int           `yaml:"topN"`
	SessionTTL      time.Duration `yaml:"sessionTtl"`
	MaxSessions     int           `yaml:"maxSessions"`
	DetailWaitMax   time.Duration `yaml:"detailWaitMax"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("HTTP_ALLOWED_METHODS"); v != "" {
		cfg.HTTP.AllowedMethods = splitList(v)
	}
	if v := os.Getenv("HTTP_ALLOWED_HEADERS"); v != "" {
		cfg.HTTP.AllowedHeaders = splitList(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_ENABLED"); v != "" {
		cfg.HTTP.Retry.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RETRY_MAX_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Retry.MaxAttempts = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_BASE_BACKOFF"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Retry.BaseBackoff = parsed
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SOURCE_KIND"); v != "" {
		cfg.Source.Kind = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("SOURCE_FIXTURE_PATH"); v != "" {
		cfg.Source.FixturePath = v
	}
	if v := os.Getenv("SITE_API_BASE_URL"); v != "" {
		cfg.Source.API.BaseURL = v
	}
	if v := os.Getenv("SITE_API_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Source.API.Timeout = parsed
		}
	}
	if v := os.Getenv("SITE_API_RPS"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Source.API.RequestsPerSecond = parsed
		}
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Source.Postgres.DSN = v
	}
	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Source.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Source.Postgres.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("OBJECT_STORE_ENDPOINT"); v != "" {
		cfg.Source.ObjectStore.Endpoint = v
	}
	if v := os.Getenv("OBJECT_STORE_ACCESS_KEY"); v != "" {
		cfg.Source.ObjectStore.AccessKey = v
	}
	if v := os.Getenv("OBJECT_STORE_SECRET_KEY"); v != "" {
		cfg.Source.ObjectStore.SecretKey = v
	}
	if v := os.Getenv("OBJECT_STORE_BUCKET"); v != "" {
		cfg.Source.ObjectStore.Bucket = v
	}
	if v := os.Getenv("OBJECT_STORE_REGION"); v != "" {
		cfg.Source.ObjectStore.Region = v
	}
	if v := os.Getenv("OBJECT_STORE_PREFIX"); v != "" {
		cfg.Source.ObjectStore.Prefix = v
	}
	if v := os.Getenv("CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = parsed
		}
	}
	if v := os.Getenv("VALKEY_ENABLED"); v != "" {
		cfg.Cache.Valkey.Enabled = parseBool(v)
	}
	if v := os.Getenv("VALKEY_ADDR"); v != "" {
		cfg.Cache.Valkey.Addr = v
	}
	if v := os.Getenv("EXPLORER_DEFAULT_METRIC"); v != "" {
		cfg.Explorer.DefaultMetric = v
	}
	if v := os.Getenv("EXPLORER_DEFAULT_MIN_SCORE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Explorer.DefaultMinScore = parsed
		}
	}
	if v := os.Getenv("EXPLORER_THRESHOLD_POLICY"); v != "" {
		cfg.Explorer.ThresholdPolicy = v
	}
	if v := os.Getenv("EXPLORER_TOP_N"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Explorer.TopN = parsed
		}
	}
	if v := os.Getenv("EXPLORER_SESSION_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Explorer.SessionTTL = parsed
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 35 * time.Second,
			AllowedMethods: []string{
				http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
			},
			AllowedHeaders: []string{"Content-Type"},
			CORSMaxAge:     10 * time.Minute,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             30,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 2,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					"/api/v1/sessions",
				},
			},
		},
		Log: LogConfig{Level: "info"},
		Source: SourceConfig{
			Kind: SourceMemory,
			API: APIConfig{
				BaseURL:           "http://localhost:8000/api",
				Timeout:           10 * time.Second,
				RequestsPerSecond: 10,
				Burst:             5,
			},
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
			ObjectStore: ObjectStoreConfig{
				Region: "auto",
				Prefix: "processed",
			},
			FixturePath: "configs/fixtures/sites.json",
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     10 * time.Minute,
			Valkey: ValkeyConfig{
				Prefix: "chargemap",
			},
		},
		Explorer: ExplorerConfig{
			DefaultMetric:   string(site.MetricOverall),
			DefaultMinScore: 50,
			ThresholdPolicy: string(site.ThresholdOverall),
			TopN:            site.DefaultTopN,
			SessionTTL:      30 * time.Minute,
			MaxSessions:     1000,
			DetailWaitMax:   30 * time.Second,
		},
	}
}

// DefaultFilter turns the explorer defaults into a filter configuration.
func (c ExplorerConfig) DefaultFilter() (site.FilterConfig, error) {
	metric, err := site.ParseMetric(c.DefaultMetric)
	if err != nil {
		return site.FilterConfig{}, err
	}
	cfg := site.FilterConfig{
		Metric:    metric,
		MinScore:  c.DefaultMinScore,
		Threshold: site.ThresholdPolicy(strings.ToLower(strings.TrimSpace(c.ThresholdPolicy))),
	}
	if err := cfg.Validate(); err != nil {
		return site.FilterConfig{}, err
	}
	return cfg, nil
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if len(c.HTTP.AllowedMethods) == 0 {
		return errors.New("http.allowedMethods cannot be empty")
	}
	if c.HTTP.CORSMaxAge < 0 {
		return errors.New("http.corsMaxAge cannot be negative")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	switch c.Source.Kind {
	case SourceAPI:
		if strings.TrimSpace(c.Source.API.BaseURL) == "" {
			return errors.New("source.api.baseUrl cannot be empty")
		}
		if c.Source.API.RequestsPerSecond < 0 {
			return errors.New("source.api.requestsPerSecond cannot be negative")
		}
	case SourcePostgres:
		if strings.TrimSpace(c.Source.Postgres.DSN) == "" {
			return errors.New("source.postgres.dsn cannot be empty")
		}
	case SourceObjectStore:
		if strings.TrimSpace(c.Source.ObjectStore.Endpoint) == "" || strings.TrimSpace(c.Source.ObjectStore.Bucket) == "" {
			return errors.New("source.objectStore.endpoint and bucket are required")
		}
	case SourceMemory:
	default:
		return fmt.Errorf("source.kind %q is not one of api, postgres, objectstore, memory", c.Source.Kind)
	}
	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl cannot be negative")
	}
	if c.Cache.Valkey.Enabled && strings.TrimSpace(c.Cache.Valkey.Addr) == "" {
		return errors.New("cache.valkey.addr cannot be empty when valkey is enabled")
	}
	if _, err := c.Explorer.DefaultFilter(); err != nil {
		return fmt.Errorf("explorer defaults: %w", err)
	}
	if c.Explorer.TopN <= 0 {
		return errors.New("explorer.topN must be positive")
	}
	if c.Explorer.SessionTTL <= 0 {
		return errors.New("explorer.sessionTtl must be positive")
	}
	if c.Explorer.MaxSessions <= 0 {
		return errors.New("explorer.maxSessions must be positive")
	}
	return nil
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
