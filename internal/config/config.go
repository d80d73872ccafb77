package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the anomaly engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Clients   ClientsConfig   `yaml:"clients"`
	Logging   LoggingConfig   `yaml:"logging"`
	Detection DetectionConfig `yaml:"detection"`
	Baseline  BaselineConfig  `yaml:"baseline"`
	Cache     CacheConfig     `yaml:"cache"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

// ClientsConfig groups upstream integrations.
type ClientsConfig struct {
	Store StoreClientConfig `yaml:"store"`
}

// StoreClientConfig configures access to the metric store's query APIs.
type StoreClientConfig struct {
	BaseURL    string        `yaml:"baseURL"`
	QueryPath  string        `yaml:"queryPath"`
	LatestPath string        `yaml:"latestPath"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DetectionConfig sets defaults the API applies when a request omits them.
type DetectionConfig struct {
	Metrics   []string `yaml:"metrics"`
	Threshold float64  `yaml:"threshold"`
}

// BaselineConfig controls baseline computation and caching.
type BaselineConfig struct {
	PeriodDays int           `yaml:"periodDays"`
	TTL        time.Duration `yaml:"ttl"`
}

// CacheConfig controls the Valkey-backed baseline cache. Disabled falls back
// to the in-process memory cache.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("PULSE_ANOMALY_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8085",
			MetricsAddress:  ":2112",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			GracefulTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Clients: ClientsConfig{
			Store: StoreClientConfig{
				QueryPath:  "/api/v1/metrics/query",
				LatestPath: "/api/v1/metrics/latest",
				Timeout:    5 * time.Second,
			},
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Detection: DetectionConfig{
			Metrics:   []string{"revenue", "views", "engagement", "conversions", "spend"},
			Threshold: 2.0,
		},
		Baseline: BaselineConfig{
			PeriodDays: 30,
			TTL:        5 * time.Minute,
		},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PULSE_ANOMALY_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("PULSE_ANOMALY_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("PULSE_ANOMALY_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitAndTrim(v)
	}
	if v := os.Getenv("PULSE_ANOMALY_STORE_BASE_URL"); v != "" {
		cfg.Clients.Store.BaseURL = v
	}
	if v := os.Getenv("PULSE_ANOMALY_STORE_QUERY_PATH"); v != "" {
		cfg.Clients.Store.QueryPath = v
	}
	if v := os.Getenv("PULSE_ANOMALY_STORE_LATEST_PATH"); v != "" {
		cfg.Clients.Store.LatestPath = v
	}
	if v := os.Getenv("PULSE_ANOMALY_STORE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Clients.Store.Timeout = d
		}
	}
	if v := os.Getenv("PULSE_ANOMALY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PULSE_ANOMALY_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("PULSE_ANOMALY_METRICS"); v != "" {
		cfg.Detection.Metrics = splitAndTrim(v)
	}
	if v := os.Getenv("PULSE_ANOMALY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Detection.Threshold = f
		}
	}
	if v := os.Getenv("PULSE_ANOMALY_BASELINE_PERIOD_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			cfg.Baseline.PeriodDays = days
		}
	}
	if v := os.Getenv("PULSE_ANOMALY_BASELINE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Baseline.TTL = d
		}
	}
	if v := os.Getenv("PULSE_ANOMALY_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("PULSE_ANOMALY_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("PULSE_ANOMALY_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("PULSE_ANOMALY_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("PULSE_ANOMALY_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("PULSE_ANOMALY_CACHE_TLS"); strings.EqualFold(v, "true") || strings.EqualFold(v, "1") {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("PULSE_ANOMALY_CACHE_DIAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.DialTimeout = d
		}
	}
	if v := os.Getenv("PULSE_ANOMALY_CACHE_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ReadTimeout = d
		}
	}
	if v := os.Getenv("PULSE_ANOMALY_CACHE_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.WriteTimeout = d
		}
	}
	if v := os.Getenv("PULSE_ANOMALY_CACHE_MAX_RETRIES"); v != "" {
		if retry, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxRetries = retry
		}
	}
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
