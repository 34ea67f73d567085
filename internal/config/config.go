// Package config loads the process-wide YAML configuration shared by both
// cmd/sentinel and cmd/sentinel-worker, with environment-variable overrides
// for the handful of values operators most often need to flip at deploy
// time without editing the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the observability HTTP listener.
type ServerConfig struct {
	MetricsPort string `yaml:"metrics_port"`
}

// DatastoreConfig configures the PostgreSQL connection.
type DatastoreConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig configures the shared Redis connection.
type CacheConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LLMConfig configures the language-model provider used for hypothesis
// generation.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	Endpoint    string        `yaml:"endpoint"`
	Timeout     time.Duration `yaml:"timeout"`
	RetryCount  int           `yaml:"retry_count"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
}

// KubernetesConfig configures the orchestrator client.
type KubernetesConfig struct {
	Context        string `yaml:"context"`
	Namespace      string `yaml:"namespace"`
	KubeconfigPath string `yaml:"kubeconfig_path"` // empty uses in-cluster config
}

// MonitorConfig configures the anomaly-monitor polling loop.
type MonitorConfig struct {
	Services          []string          `yaml:"services"`
	Queries           map[string]string `yaml:"queries"`
	MetricsBackendURL string            `yaml:"metrics_backend_url"`
	PollInterval      time.Duration     `yaml:"poll_interval"`
	Concurrency       int64             `yaml:"concurrency"`
	DedupWindow       time.Duration     `yaml:"dedup_window"`
	Lookback          time.Duration     `yaml:"lookback"`
	MinConfidence     float64           `yaml:"min_confidence"`
}

// ActionsConfig configures remediation execution behavior.
type ActionsConfig struct {
	DryRun         bool          `yaml:"dry_run"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
	CooldownPeriod time.Duration `yaml:"cooldown_period"`
}

// RateLimitConfig configures the sliding-window limiter.
type RateLimitConfig struct {
	WindowSeconds int64 `yaml:"window_seconds"`
	Limit         int64 `yaml:"limit"`
}

// LoggingConfig configures the ambient logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RunbooksConfig points at the declarative action allow-list and the
// service dependency graph, both loaded as YAML.
type RunbooksConfig struct {
	Path             string `yaml:"path"`
	DependencyGraph  string `yaml:"dependency_graph"`
}

// Config is the complete process configuration, loaded from one YAML file.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Datastore  DatastoreConfig  `yaml:"datastore"`
	Cache      CacheConfig      `yaml:"cache"`
	LLM        LLMConfig        `yaml:"llm"`
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Actions    ActionsConfig    `yaml:"actions"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Logging    LoggingConfig    `yaml:"logging"`
	Runbooks   RunbooksConfig   `yaml:"runbooks"`
}

// Load reads, parses, defaults, overrides-from-environment, and validates
// the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server:  ServerConfig{MetricsPort: "9090"},
		Cache:   CacheConfig{Addr: "localhost:6379"},
		LLM:     LLMConfig{Provider: "anthropic", Timeout: 30 * time.Second, RetryCount: 3, MaxTokens: 1000},
		Kubernetes: KubernetesConfig{Namespace: "default"},
		Monitor: MonitorConfig{
			MetricsBackendURL: "http://localhost:9090",
			PollInterval:      60 * time.Second,
			Concurrency:       5,
			DedupWindow:       10 * time.Minute,
			Lookback:          5 * time.Minute,
			MinConfidence:     0.75,
		},
		Actions:   ActionsConfig{MaxConcurrent: 5, CooldownPeriod: 5 * time.Minute},
		RateLimit: RateLimitConfig{WindowSeconds: 60, Limit: 100},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
	}
}

// loadFromEnv applies the handful of operator-facing overrides. Absent
// variables leave cfg untouched.
func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("DATASTORE_DSN"); v != "" {
		cfg.Datastore.DSN = v
	}
	if v := os.Getenv("CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("LLM_ENDPOINT"); v != "" {
		cfg.LLM.Endpoint = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		cfg.Server.MetricsPort = v
	}
	if v := os.Getenv("METRICS_BACKEND_URL"); v != "" {
		cfg.Monitor.MetricsBackendURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DRY_RUN"); v != "" {
		dryRun, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DRY_RUN must be a bool: %w", err)
		}
		cfg.Actions.DryRun = dryRun
	}
	return nil
}

func validate(cfg *Config) error {
	switch cfg.LLM.Provider {
	case "anthropic", "localai":
	default:
		return fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Endpoint == "" && cfg.LLM.Provider == "localai" {
		return fmt.Errorf("LLM endpoint is required for the localai provider")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 1 {
		return fmt.Errorf("LLM temperature must be between 0.0 and 1.0")
	}
	if cfg.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM max tokens must be greater than 0")
	}
	if cfg.Kubernetes.Namespace == "" {
		return fmt.Errorf("Kubernetes namespace is required")
	}
	if cfg.Actions.MaxConcurrent <= 0 {
		return fmt.Errorf("max concurrent actions must be greater than 0")
	}
	if cfg.Monitor.MinConfidence < 0 || cfg.Monitor.MinConfidence > 1 {
		return fmt.Errorf("monitor min_confidence must be between 0.0 and 1.0")
	}
	if cfg.Monitor.MetricsBackendURL == "" {
		return fmt.Errorf("monitor metrics_backend_url is required")
	}
	return nil
}
