package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const validYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
github:
  api_base_url: https://api.github.com
  request_timeout: 10s
  auth:
    mode: token
monitor:
  username: octocat
  window_days: 30
  threshold_healthy: 15
  threshold_moderate: 5
  include_orgs: true
  max_repos_per_org: 5
  refresh_hour: 8
  excluded_repos:
    - scratch-pad
cache:
  backend: redis
  redis_addr: localhost:6379
  ttl: 2d
retry:
  max_attempts: 3
  initial_backoff: 1s
  max_backoff: 60s
rate_limit:
  min_remaining_threshold: 100
  min_reset_buffer: 5s
telemetry:
  otel_enabled: true
  otel_trace_mode: sampled
  otel_trace_sample_ratio: 0.25
`

func TestLoadValidConfig(t *testing.T) {
	t.Parallel()

	cfg, err := Load(strings.NewReader(validYAML))
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.Server.ListenAddr)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, 10*time.Second, cfg.GitHub.RequestTimeout)
	require.Equal(t, "token", cfg.GitHub.Auth.Mode)
	require.Equal(t, "octocat", cfg.Monitor.Username)
	require.Equal(t, 30, cfg.Monitor.WindowDays)
	require.True(t, cfg.Monitor.IncludeOrgs)
	require.Equal(t, []string{"scratch-pad"}, cfg.Monitor.ExcludedRepos)
	require.Equal(t, 8, cfg.Monitor.RefreshHour)
	// The "2d" day suffix is accepted alongside standard duration units.
	require.Equal(t, 48*time.Hour, cfg.Cache.TTL)
	require.Equal(t, 100, cfg.RateLimit.MinRemainingThreshold)
	require.Equal(t, "sampled", cfg.Telemetry.OTELTraceMode)
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(strings.NewReader(`
monitor:
  username: octocat
cache:
  backend: memory
`))
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Server.ListenAddr)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "token", cfg.GitHub.Auth.Mode)
	require.Equal(t, 30, cfg.Monitor.WindowDays)
	require.Equal(t, 15, cfg.Monitor.ThresholdHealthy)
	require.Equal(t, 5, cfg.Monitor.ThresholdModerate)
	require.Equal(t, 5, cfg.Monitor.MaxReposPerOrg)
	require.Equal(t, "standalone", cfg.Cache.RedisMode)
	require.Equal(t, "commitbadge", cfg.Cache.Namespace)
	require.Equal(t, 48*time.Hour, cfg.Cache.TTL)
	require.Equal(t, 3, cfg.Retry.MaxAttempts)
	require.Equal(t, time.Second, cfg.Retry.InitialBackoff)
	require.Equal(t, time.Minute, cfg.Retry.MaxBackoff)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := Load(strings.NewReader(`
monitor:
  username: octocat
  typo_field: true
`))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "missing_username",
			mutate:  func(cfg *Config) { cfg.Monitor.Username = "" },
			wantErr: "monitor.username is required",
		},
		{
			name:    "invalid_log_level",
			mutate:  func(cfg *Config) { cfg.Server.LogLevel = "verbose" },
			wantErr: "server.log_level",
		},
		{
			name:    "invalid_auth_mode",
			mutate:  func(cfg *Config) { cfg.GitHub.Auth.Mode = "oauth" },
			wantErr: "github.auth.mode",
		},
		{
			name:    "app_mode_requires_app_id",
			mutate:  func(cfg *Config) { cfg.GitHub.Auth.Mode = "app" },
			wantErr: "github.auth.app_id",
		},
		{
			name: "thresholds_must_be_ordered",
			mutate: func(cfg *Config) {
				cfg.Monitor.ThresholdHealthy = 5
				cfg.Monitor.ThresholdModerate = 5
			},
			wantErr: "threshold_healthy",
		},
		{
			name:    "refresh_hour_range",
			mutate:  func(cfg *Config) { cfg.Monitor.RefreshHour = 24 },
			wantErr: "monitor.refresh_hour",
		},
		{
			name: "org_pass_requires_per_org_cap",
			mutate: func(cfg *Config) {
				cfg.Monitor.IncludeOrgs = true
				cfg.Monitor.MaxReposPerOrg = 0
			},
			wantErr: "monitor.max_repos_per_org",
		},
		{
			name:    "invalid_cache_backend",
			mutate:  func(cfg *Config) { cfg.Cache.Backend = "dynamo" },
			wantErr: "cache.backend",
		},
		{
			name: "sentinel_requires_addrs",
			mutate: func(cfg *Config) {
				cfg.Cache.RedisMode = "sentinel"
				cfg.Cache.RedisSentinelAddrs = nil
			},
			wantErr: "cache.redis_sentinel_addrs",
		},
		{
			name:    "ttl_must_be_positive",
			mutate:  func(cfg *Config) { cfg.Cache.TTL = 0 },
			wantErr: "cache.ttl",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := Load(strings.NewReader(validYAML))
			require.NoError(t, err)

			testCase.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), testCase.wantErr)
		})
	}
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	t.Parallel()

	cfg, err := Load(strings.NewReader(validYAML))
	require.NoError(t, err)

	cfg.Monitor.Username = ""
	cfg.Cache.Backend = "dynamo"

	err = cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "monitor.username")
	require.Contains(t, err.Error(), "cache.backend")
}

func TestAuthenticated(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.GitHub.Auth.Mode = "token"
	require.True(t, cfg.Authenticated("ghp_secret"))
	require.False(t, cfg.Authenticated("   "))

	cfg.GitHub.Auth.Mode = "app"
	require.True(t, cfg.Authenticated(""))

	cfg.GitHub.Auth.Mode = "none"
	require.False(t, cfg.Authenticated("ghp_secret"))
}

func TestParseFlexibleDuration(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "90s", want: 90 * time.Second},
		{raw: "1.5h", want: 90 * time.Minute},
		{raw: "1d", want: 24 * time.Hour},
		{raw: "2w", want: 14 * 24 * time.Hour},
		{raw: "0.5d", want: 12 * time.Hour},
		{raw: "", want: 0},
		{raw: "fortnight", wantErr: true},
	}
	for _, testCase := range testCases {
		got, err := parseFlexibleDuration(testCase.raw)
		if testCase.wantErr {
			require.Error(t, err, "raw=%q", testCase.raw)
			continue
		}
		require.NoError(t, err, "raw=%q", testCase.raw)
		require.Equal(t, testCase.want, got, "raw=%q", testCase.raw)
	}
}
