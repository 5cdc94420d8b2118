package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okanot/commitbadge/internal/activity"
	"go.uber.org/zap"
)

// ErrIdentityRejected reports that the monitored identity itself matches the
// automation-account patterns, so computing a fresh snapshot for it is
// refused.
var ErrIdentityRejected = errors.New("monitored identity looks like an automation account")

// ErrNoUsername reports that no monitored identity is configured.
var ErrNoUsername = errors.New("monitored username is not configured")

// Snapshot is the persisted result of one aggregation run plus its
// classification. One snapshot exists per monitored identity.
type Snapshot struct {
	Username    string        `json:"username"`
	CommitCount int           `json:"commit_count"`
	Tier        activity.Tier `json:"tier"`
	OwnedRepos  int           `json:"owned_repos"`
	OrgRepos    int           `json:"org_repos"`
	LastUpdated time.Time     `json:"last_updated"`
}

// SnapshotStore is the key-value persistence boundary for snapshots. Put
// replaces any prior entry atomically; the TTL is a safety net independent of
// the freshness policy.
type SnapshotStore interface {
	Get(ctx context.Context, key string) (Snapshot, bool, error)
	Put(ctx context.Context, key string, snapshot Snapshot, ttl time.Duration) error
}

// AggregationRunner runs one aggregation over the provider.
type AggregationRunner interface {
	Run(ctx context.Context) (activity.Result, error)
}

// LookupObserver records cache controller outcomes.
type LookupObserver interface {
	CacheLookup(outcome string)
	RunCompleted(trigger string, outcome string, elapsed time.Duration)
}

// ControllerConfig configures a cache controller.
type ControllerConfig struct {
	Username   string
	Thresholds activity.Thresholds
	TTL        time.Duration
}

// Controller implements stale-while-revalidate over the snapshot store: a
// present snapshot is always served immediately, a stale one additionally
// triggers a detached recomputation, and only an absent snapshot blocks the
// caller on the engine. Concurrent requests may redundantly schedule a second
// background run; that race is accepted rather than suppressed.
type Controller struct {
	cfg      ControllerConfig
	store    SnapshotStore
	engine   AggregationRunner
	policy   FreshnessPolicy
	observer LookupObserver
	logger   *zap.Logger

	// Schedule detaches a background task. The host keeps the process alive
	// until the server shuts down, which is the lifetime guarantee the
	// detached revalidation relies on. Injected for synchronous tests.
	Schedule func(task func())
	// Now is injected for deterministic tests.
	Now func() time.Time
}

// NewController creates a cache controller.
func NewController(cfg ControllerConfig, store SnapshotStore, engine AggregationRunner, policy FreshnessPolicy, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		cfg:    cfg,
		store:  store,
		engine: engine,
		policy: policy,
		logger: logger,
		Schedule: func(task func()) {
			go task()
		},
		Now: time.Now,
	}
}

// SetObserver injects an outcome observer.
func (c *Controller) SetObserver(observer LookupObserver) {
	c.observer = observer
}

// Serve returns the snapshot for the monitored identity, computing one
// synchronously only when the store has none.
func (c *Controller) Serve(ctx context.Context) (Snapshot, error) {
	if c.cfg.Username == "" {
		return Snapshot{}, ErrNoUsername
	}

	key := snapshotKey(c.cfg.Username)
	stored, found, err := c.store.Get(ctx, key)
	if err != nil {
		// A broken store degrades to the cold path rather than failing the
		// request.
		c.logger.Warn("snapshot lookup failed; treating as absent", zap.Error(err))
		found = false
	}

	if found {
		if !c.policy.IsStale(stored.LastUpdated) {
			c.observeLookup("fresh")
			return stored, nil
		}
		c.observeLookup("stale")
		c.Schedule(func() {
			c.revalidate(key)
		})
		return stored, nil
	}

	c.observeLookup("absent")
	if activity.IsBotIdentity(c.cfg.Username, "", "") {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrIdentityRejected, c.cfg.Username)
	}

	snapshot, err := c.compute(ctx, "synchronous")
	if err != nil {
		return Snapshot{}, err
	}
	if err := c.store.Put(ctx, key, snapshot, c.cfg.TTL); err != nil {
		// The computed snapshot is still served; the next request recomputes.
		c.logger.Error("snapshot persist failed", zap.Error(err))
	}
	return snapshot, nil
}

// Peek reads the stored snapshot without triggering any computation.
func (c *Controller) Peek(ctx context.Context) (Snapshot, bool) {
	if c.cfg.Username == "" {
		return Snapshot{}, false
	}
	stored, found, err := c.store.Get(ctx, snapshotKey(c.cfg.Username))
	if err != nil || !found {
		return Snapshot{}, false
	}
	return stored, true
}

// revalidate recomputes and overwrites the stored snapshot in the background.
// Every failure mode here is absorbed: the old snapshot stays in place for
// one more cycle and the next request's freshness check re-attempts.
func (c *Controller) revalidate(key string) {
	if activity.IsBotIdentity(c.cfg.Username, "", "") {
		c.logger.Warn("background revalidation skipped: identity matches automation patterns",
			zap.String("username", c.cfg.Username))
		return
	}

	ctx := context.Background()
	snapshot, err := c.compute(ctx, "background")
	if err != nil {
		c.logger.Error("background revalidation failed; keeping previous snapshot", zap.Error(err))
		return
	}
	if err := c.store.Put(ctx, key, snapshot, c.cfg.TTL); err != nil {
		c.logger.Error("background snapshot persist failed", zap.Error(err))
		return
	}
	c.logger.Info("snapshot refreshed",
		zap.String("username", c.cfg.Username),
		zap.Int("commit_count", snapshot.CommitCount),
		zap.String("tier", string(snapshot.Tier)),
	)
}

func (c *Controller) compute(ctx context.Context, trigger string) (Snapshot, error) {
	started := c.Now()
	result, err := c.engine.Run(ctx)
	if err != nil {
		c.observeRun(trigger, "error", c.Now().Sub(started))
		return Snapshot{}, fmt.Errorf("aggregation run: %w", err)
	}
	c.observeRun(trigger, "ok", c.Now().Sub(started))

	return Snapshot{
		Username:    c.cfg.Username,
		CommitCount: result.TotalCommits,
		Tier:        activity.Classify(result.TotalCommits, c.cfg.Thresholds),
		OwnedRepos:  result.OwnedRepos,
		OrgRepos:    result.OrgRepos,
		LastUpdated: c.Now().UTC(),
	}, nil
}

func (c *Controller) observeLookup(outcome string) {
	if c.observer == nil {
		return
	}
	c.observer.CacheLookup(outcome)
}

func (c *Controller) observeRun(trigger, outcome string, elapsed time.Duration) {
	if c.observer == nil {
		return
	}
	c.observer.RunCompleted(trigger, outcome, elapsed)
}

func snapshotKey(username string) string {
	return "activity:" + username
}
