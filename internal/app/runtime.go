package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/okanot/commitbadge/internal/activity"
	"github.com/okanot/commitbadge/internal/badge"
	"github.com/okanot/commitbadge/internal/cache"
	"github.com/okanot/commitbadge/internal/config"
	"github.com/okanot/commitbadge/internal/githubapi"
	"github.com/okanot/commitbadge/internal/health"
	"github.com/okanot/commitbadge/internal/metrics"
	"go.uber.org/zap"
)

// Runtime wires configuration, the provider clients, the snapshot store, and
// the cache controller into one HTTP-serving unit.
type Runtime struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *metrics.Metrics
	controller *cache.Controller
	rest       *githubapi.RESTClient
	evaluator  *health.StatusEvaluator
	backend    snapshotBackend

	mu                 sync.RWMutex
	githubClientUsable bool
	identityRejected   bool

	// Now is injected for deterministic tests.
	Now func() time.Time
}

// NewRuntime creates a runtime instance. The token is the resolved bearer
// credential for token auth mode; it may be empty.
func NewRuntime(cfg *config.Config, token string, logger *zap.Logger) (*Runtime, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient, err := newProviderHTTPClient(cfg, token)
	if err != nil {
		return nil, fmt.Errorf("build provider http client: %w", err)
	}

	requestClient := githubapi.NewClient(httpClient, githubapi.RetryConfig{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
	}, githubapi.RateLimitPolicy{
		MinRemainingThreshold: cfg.RateLimit.MinRemainingThreshold,
		MinResetBuffer:        cfg.RateLimit.MinResetBuffer,
		SecondaryLimitBackoff: cfg.RateLimit.SecondaryLimitBackoff,
	})

	m := metrics.New()
	dataClient, err := githubapi.NewDataClient(cfg.GitHub.APIBaseURL, requestClient, m.ProviderRequest)
	if err != nil {
		return nil, fmt.Errorf("build provider data client: %w", err)
	}

	counter := activity.NewCommitCounter(dataClient, logger)
	engine := activity.NewEngine(activity.EngineConfig{
		Username:       cfg.Monitor.Username,
		WindowDays:     cfg.Monitor.WindowDays,
		IncludeOrgs:    cfg.Monitor.IncludeOrgs,
		MaxReposPerOrg: cfg.Monitor.MaxReposPerOrg,
		ExcludedRepos:  cfg.Monitor.ExcludedRepos,
		ExcludedOrgs:   cfg.Monitor.ExcludedOrgs,
		Authenticated:  cfg.Authenticated(token),
	}, dataClient, counter, logger)

	backend := newSnapshotBackend(cfg, logger)
	controller := cache.NewController(cache.ControllerConfig{
		Username: cfg.Monitor.Username,
		Thresholds: activity.Thresholds{
			Healthy:  cfg.Monitor.ThresholdHealthy,
			Moderate: cfg.Monitor.ThresholdModerate,
		},
		TTL: cfg.Cache.TTL,
	}, backend.store, engine, cache.FreshnessPolicy{RefreshHour: cfg.Monitor.RefreshHour}, logger)
	controller.SetObserver(m)

	rest, err := githubapi.NewGitHubRESTClient(httpClient, cfg.GitHub.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("build provider rest client: %w", err)
	}

	return &Runtime{
		cfg:                cfg,
		logger:             logger,
		metrics:            m,
		controller:         controller,
		rest:               rest,
		evaluator:          health.NewStatusEvaluator(),
		backend:            backend,
		githubClientUsable: true,
		Now:                time.Now,
	}, nil
}

func newProviderHTTPClient(cfg *config.Config, token string) (*http.Client, error) {
	if cfg.GitHub.Auth.Mode == "app" {
		return githubapi.NewInstallationHTTPClient(githubapi.InstallationAuthConfig{
			AppID:          cfg.GitHub.Auth.AppID,
			InstallationID: cfg.GitHub.Auth.InstallationID,
			PrivateKeyPath: cfg.GitHub.Auth.PrivateKeyPath,
			Timeout:        cfg.GitHub.RequestTimeout,
		})
	}
	if cfg.GitHub.Auth.Mode != "token" {
		token = ""
	}
	return githubapi.NewTokenHTTPClient(githubapi.TokenAuthConfig{
		Token:   token,
		Timeout: cfg.GitHub.RequestTimeout,
	}), nil
}

// VerifyIdentity checks the monitored identity against the provider. A
// lookup failure marks the provider client unusable (the service keeps
// serving cached snapshots); a provider-classified bot account rejects all
// future computations.
func (r *Runtime) VerifyIdentity(ctx context.Context) error {
	user, err := r.rest.VerifyMonitoredUser(ctx, r.cfg.Monitor.Username)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.githubClientUsable = false
		return fmt.Errorf("verify monitored identity: %w", err)
	}

	r.githubClientUsable = true
	if user.IsBotAccount() {
		r.identityRejected = true
		r.logger.Warn("monitored identity is classified as a bot account by the provider",
			zap.String("login", user.Login))
		return nil
	}
	r.identityRejected = false
	r.logger.Info("monitored identity verified",
		zap.String("login", user.Login),
		zap.String("type", user.Type))
	return nil
}

// Controller exposes the cache controller.
func (r *Runtime) Controller() *cache.Controller {
	return r.controller
}

// Close releases the snapshot store backend.
func (r *Runtime) Close() error {
	return r.backend.close()
}

// CurrentStatus returns current health status.
func (r *Runtime) CurrentStatus(ctx context.Context) health.Status {
	r.mu.RLock()
	usable := r.githubClientUsable
	r.mu.RUnlock()

	return r.evaluator.Evaluate(health.Input{
		ConfigPresent:      r.cfg.Monitor.Username != "",
		StoreHealthy:       r.backend.healthy(ctx),
		GitHubClientUsable: usable,
	})
}

// Handler returns the combined HTTP handler.
func (r *Runtime) Handler() http.Handler {
	badgeHandler := http.HandlerFunc(r.handleBadge)
	statusHandler := http.HandlerFunc(r.handleStatus)
	healthHandler := health.NewHandler(r)
	return NewHTTPHandler(badgeHandler, statusHandler, r.metrics.Handler(), healthHandler)
}

func (r *Runtime) handleBadge(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	rejected := r.identityRejected
	r.mu.RUnlock()
	if rejected {
		writeJSONError(w, http.StatusUnprocessableEntity, "monitored identity is a bot account")
		return
	}

	snapshot, err := r.controller.Serve(req.Context())
	if err != nil {
		switch {
		case errors.Is(err, cache.ErrNoUsername):
			writeJSONError(w, http.StatusInternalServerError, "monitored username is not configured")
		case errors.Is(err, cache.ErrIdentityRejected):
			writeJSONError(w, http.StatusUnprocessableEntity, "monitored identity is a bot account")
		default:
			r.logger.Error("badge request failed", zap.Error(err))
			writeJSONError(w, http.StatusBadGateway, "activity computation failed")
		}
		return
	}

	style := badge.ParseStyle(req.URL.Query().Get("style"))
	payload := badge.Render(badge.Badge{
		Label:   "activity",
		Message: commitMessage(snapshot.CommitCount),
		Color:   badge.ColorForTier(snapshot.Tier),
	}, style)

	w.Header().Set("Content-Type", "image/svg+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Header().Set("X-Monitored-User", snapshot.Username)
	w.Header().Set("X-Commit-Count", fmt.Sprintf("%d", snapshot.CommitCount))
	w.Header().Set("X-Health-Tier", string(snapshot.Tier))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

type statusResponse struct {
	Username          string          `json:"username"`
	WindowDays        int             `json:"window_days"`
	ThresholdHealthy  int             `json:"threshold_healthy"`
	ThresholdModerate int             `json:"threshold_moderate"`
	IncludeOrgs       bool            `json:"include_orgs"`
	Snapshot          *statusSnapshot `json:"snapshot,omitempty"`
}

type statusSnapshot struct {
	CommitCount int       `json:"commit_count"`
	Tier        string    `json:"tier"`
	OwnedRepos  int       `json:"owned_repos"`
	OrgRepos    int       `json:"org_repos"`
	LastUpdated time.Time `json:"last_updated"`
}

// handleStatus reports the configured monitor and the stored snapshot, if
// any, without triggering a computation.
func (r *Runtime) handleStatus(w http.ResponseWriter, req *http.Request) {
	response := statusResponse{
		Username:          r.cfg.Monitor.Username,
		WindowDays:        r.cfg.Monitor.WindowDays,
		ThresholdHealthy:  r.cfg.Monitor.ThresholdHealthy,
		ThresholdModerate: r.cfg.Monitor.ThresholdModerate,
		IncludeOrgs:       r.cfg.Monitor.IncludeOrgs,
	}
	if snapshot, found := r.controller.Peek(req.Context()); found {
		response.Snapshot = &statusSnapshot{
			CommitCount: snapshot.CommitCount,
			Tier:        string(snapshot.Tier),
			OwnedRepos:  snapshot.OwnedRepos,
			OrgRepos:    snapshot.OrgRepos,
			LastUpdated: snapshot.LastUpdated,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

func commitMessage(count int) string {
	if count == 1 {
		return "1 commit"
	}
	return fmt.Sprintf("%d commits", count)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
