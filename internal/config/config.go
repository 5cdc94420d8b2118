package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig
	GitHub    GitHubConfig
	Monitor   MonitorConfig
	Cache     CacheConfig
	Retry     RetryConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
}

// GitHubConfig configures GitHub API interactions.
type GitHubConfig struct {
	APIBaseURL     string
	RequestTimeout time.Duration
	Auth           GitHubAuthConfig
}

// GitHubAuthConfig configures how outbound GitHub calls authenticate.
// Mode "token" reads a bearer token from the GITHUB_TOKEN environment
// variable; mode "app" uses a GitHub App installation; mode "none" runs
// unauthenticated.
type GitHubAuthConfig struct {
	Mode           string `yaml:"mode"`
	AppID          int64  `yaml:"app_id"`
	InstallationID int64  `yaml:"installation_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
}

// MonitorConfig configures the monitored identity and scoring rules.
type MonitorConfig struct {
	Username          string
	WindowDays        int
	ThresholdHealthy  int
	ThresholdModerate int
	IncludeOrgs       bool
	MaxReposPerOrg    int
	RefreshHour       int
	ExcludedRepos     []string
	ExcludedOrgs      []string
}

// CacheConfig configures snapshot storage.
type CacheConfig struct {
	Backend            string
	RedisMode          string
	RedisAddr          string
	RedisMasterSet     string
	RedisSentinelAddrs []string
	RedisPassword      string
	RedisDB            int
	Namespace          string
	TTL                time.Duration
}

// RetryConfig configures retries.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// RateLimitConfig configures rate-limit controls.
type RateLimitConfig struct {
	MinRemainingThreshold int
	MinResetBuffer        time.Duration
	SecondaryLimitBackoff time.Duration
}

// TelemetryConfig configures OpenTelemetry behavior.
type TelemetryConfig struct {
	OTELEnabled          bool
	OTELTraceMode        string
	OTELTraceSampleRatio float64
}

// Load reads configuration from YAML and validates the result.
func Load(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("config reader is nil")
	}

	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	var raw rawConfig
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg := raw.toConfig()
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates configuration values.
func (c *Config) Validate() error {
	var errs []string

	if !slices.Contains(validLogLevels, c.Server.LogLevel) {
		errs = append(errs, "server.log_level must be one of debug|info|warn|error")
	}

	switch c.GitHub.Auth.Mode {
	case "none", "token":
	case "app":
		if c.GitHub.Auth.AppID <= 0 {
			errs = append(errs, "github.auth.app_id must be > 0 when github.auth.mode=app")
		}
		if c.GitHub.Auth.InstallationID <= 0 {
			errs = append(errs, "github.auth.installation_id must be > 0 when github.auth.mode=app")
		}
		if c.GitHub.Auth.PrivateKeyPath == "" {
			errs = append(errs, "github.auth.private_key_path is required when github.auth.mode=app")
		}
	default:
		errs = append(errs, "github.auth.mode must be one of none|token|app")
	}

	if strings.TrimSpace(c.Monitor.Username) == "" {
		errs = append(errs, "monitor.username is required")
	}
	if c.Monitor.WindowDays <= 0 {
		errs = append(errs, "monitor.window_days must be > 0")
	}
	if c.Monitor.ThresholdHealthy <= c.Monitor.ThresholdModerate {
		errs = append(errs, "monitor.threshold_healthy must be greater than monitor.threshold_moderate")
	}
	if c.Monitor.RefreshHour < 0 || c.Monitor.RefreshHour > 23 {
		errs = append(errs, "monitor.refresh_hour must be between 0 and 23")
	}
	if c.Monitor.IncludeOrgs && c.Monitor.MaxReposPerOrg <= 0 {
		errs = append(errs, "monitor.max_repos_per_org must be > 0 when monitor.include_orgs=true")
	}

	if c.Cache.Backend != "redis" && c.Cache.Backend != "memory" {
		errs = append(errs, "cache.backend must be redis or memory")
	}
	if c.Cache.RedisMode != "standalone" && c.Cache.RedisMode != "sentinel" {
		errs = append(errs, "cache.redis_mode must be standalone or sentinel")
	}
	if c.Cache.RedisMode == "sentinel" && len(c.Cache.RedisSentinelAddrs) == 0 {
		errs = append(errs, "cache.redis_sentinel_addrs is required when cache.redis_mode=sentinel")
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, "cache.ttl must be > 0")
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, "retry.max_attempts must be > 0")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Authenticated reports whether outbound GitHub calls will carry credentials.
// In token mode the decision depends on whether the token was actually
// resolved from the environment, so the caller passes it in.
func (c *Config) Authenticated(token string) bool {
	switch c.GitHub.Auth.Mode {
	case "app":
		return true
	case "token":
		return strings.TrimSpace(token) != ""
	default:
		return false
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.GitHub.Auth.Mode == "" {
		cfg.GitHub.Auth.Mode = "token"
	}
	if cfg.Monitor.WindowDays == 0 {
		cfg.Monitor.WindowDays = 30
	}
	if cfg.Monitor.ThresholdHealthy == 0 {
		cfg.Monitor.ThresholdHealthy = 15
	}
	if cfg.Monitor.ThresholdModerate == 0 {
		cfg.Monitor.ThresholdModerate = 5
	}
	if cfg.Monitor.MaxReposPerOrg == 0 {
		cfg.Monitor.MaxReposPerOrg = 5
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "redis"
	}
	if cfg.Cache.RedisMode == "" {
		cfg.Cache.RedisMode = "standalone"
	}
	if cfg.Cache.Namespace == "" {
		cfg.Cache.Namespace = "commitbadge"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 48 * time.Hour
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialBackoff == 0 {
		cfg.Retry.InitialBackoff = 1 * time.Second
	}
	if cfg.Retry.MaxBackoff == 0 {
		cfg.Retry.MaxBackoff = 60 * time.Second
	}
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind == 0 || strings.TrimSpace(value.Value) == "" {
		d.Duration = 0
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}

	parsed, err := parseFlexibleDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func parseFlexibleDuration(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}

	if standard, err := time.ParseDuration(trimmed); err == nil {
		return standard, nil
	}

	if strings.HasSuffix(trimmed, "d") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "d"), 24)
	}
	if strings.HasSuffix(trimmed, "w") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "w"), 24*7)
	}

	return 0, fmt.Errorf("parse duration %q: invalid unit", raw)
}

func parseDurationWithMultiplier(numeric string, multiplierHours float64) (time.Duration, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(numeric), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration value %q: %w", numeric, err)
	}

	nanos := value * multiplierHours * float64(time.Hour)
	if nanos > math.MaxInt64 || nanos < math.MinInt64 {
		return 0, fmt.Errorf("parse duration value %q: out of range", numeric)
	}
	return time.Duration(nanos), nil
}

type rawConfig struct {
	Server    ServerConfig `yaml:"server"`
	GitHub    rawGitHub    `yaml:"github"`
	Monitor   rawMonitor   `yaml:"monitor"`
	Cache     rawCache     `yaml:"cache"`
	Retry     rawRetry     `yaml:"retry"`
	RateLimit rawRateLimit `yaml:"rate_limit"`
	Telemetry rawTelemetry `yaml:"telemetry"`
}

type rawGitHub struct {
	APIBaseURL     string           `yaml:"api_base_url"`
	RequestTimeout duration         `yaml:"request_timeout"`
	Auth           GitHubAuthConfig `yaml:"auth"`
}

type rawMonitor struct {
	Username          string   `yaml:"username"`
	WindowDays        int      `yaml:"window_days"`
	ThresholdHealthy  int      `yaml:"threshold_healthy"`
	ThresholdModerate int      `yaml:"threshold_moderate"`
	IncludeOrgs       bool     `yaml:"include_orgs"`
	MaxReposPerOrg    int      `yaml:"max_repos_per_org"`
	RefreshHour       int      `yaml:"refresh_hour"`
	ExcludedRepos     []string `yaml:"excluded_repos"`
	ExcludedOrgs      []string `yaml:"excluded_orgs"`
}

type rawCache struct {
	Backend            string   `yaml:"backend"`
	RedisMode          string   `yaml:"redis_mode"`
	RedisAddr          string   `yaml:"redis_addr"`
	RedisMasterSet     string   `yaml:"redis_master_set"`
	RedisSentinelAddrs []string `yaml:"redis_sentinel_addrs"`
	RedisPassword      string   `yaml:"redis_password"`
	RedisDB            int      `yaml:"redis_db"`
	Namespace          string   `yaml:"namespace"`
	TTL                duration `yaml:"ttl"`
}

type rawRetry struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	InitialBackoff duration `yaml:"initial_backoff"`
	MaxBackoff     duration `yaml:"max_backoff"`
}

type rawRateLimit struct {
	MinRemainingThreshold int      `yaml:"min_remaining_threshold"`
	MinResetBuffer        duration `yaml:"min_reset_buffer"`
	SecondaryLimitBackoff duration `yaml:"secondary_limit_backoff"`
}

type rawTelemetry struct {
	OTELEnabled          bool    `yaml:"otel_enabled"`
	OTELTraceMode        string  `yaml:"otel_trace_mode"`
	OTELTraceSampleRatio float64 `yaml:"otel_trace_sample_ratio"`
}

func (r rawConfig) toConfig() *Config {
	return &Config{
		Server: r.Server,
		GitHub: GitHubConfig{
			APIBaseURL:     r.GitHub.APIBaseURL,
			RequestTimeout: r.GitHub.RequestTimeout.Duration,
			Auth:           r.GitHub.Auth,
		},
		Monitor: MonitorConfig{
			Username:          r.Monitor.Username,
			WindowDays:        r.Monitor.WindowDays,
			ThresholdHealthy:  r.Monitor.ThresholdHealthy,
			ThresholdModerate: r.Monitor.ThresholdModerate,
			IncludeOrgs:       r.Monitor.IncludeOrgs,
			MaxReposPerOrg:    r.Monitor.MaxReposPerOrg,
			RefreshHour:       r.Monitor.RefreshHour,
			ExcludedRepos:     r.Monitor.ExcludedRepos,
			ExcludedOrgs:      r.Monitor.ExcludedOrgs,
		},
		Cache: CacheConfig{
			Backend:            r.Cache.Backend,
			RedisMode:          r.Cache.RedisMode,
			RedisAddr:          r.Cache.RedisAddr,
			RedisMasterSet:     r.Cache.RedisMasterSet,
			RedisSentinelAddrs: r.Cache.RedisSentinelAddrs,
			RedisPassword:      r.Cache.RedisPassword,
			RedisDB:            r.Cache.RedisDB,
			Namespace:          r.Cache.Namespace,
			TTL:                r.Cache.TTL.Duration,
		},
		Retry: RetryConfig{
			MaxAttempts:    r.Retry.MaxAttempts,
			InitialBackoff: r.Retry.InitialBackoff.Duration,
			MaxBackoff:     r.Retry.MaxBackoff.Duration,
		},
		RateLimit: RateLimitConfig{
			MinRemainingThreshold: r.RateLimit.MinRemainingThreshold,
			MinResetBuffer:        r.RateLimit.MinResetBuffer.Duration,
			SecondaryLimitBackoff: r.RateLimit.SecondaryLimitBackoff.Duration,
		},
		Telemetry: TelemetryConfig{
			OTELEnabled:          r.Telemetry.OTELEnabled,
			OTELTraceMode:        r.Telemetry.OTELTraceMode,
			OTELTraceSampleRatio: r.Telemetry.OTELTraceSampleRatio,
		},
	}
}
