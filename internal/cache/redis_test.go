package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/okanot/commitbadge/internal/activity"
	"github.com/redis/go-redis/v9"
)

type fakeRedisCommander struct {
	values  map[string]string
	getErr  error
	setErr  error
	pingErr error

	sets map[string]string
	ttls map[string]time.Duration
}

func newFakeRedisCommander() *fakeRedisCommander {
	return &fakeRedisCommander{
		values: make(map[string]string),
		sets:   make(map[string]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (c *fakeRedisCommander) Get(ctx context.Context, key string) *redis.StringCmd {
	if c.getErr != nil {
		cmd := redis.NewStringCmd(ctx)
		cmd.SetErr(c.getErr)
		return cmd
	}
	if value, ok := c.values[key]; ok {
		return redis.NewStringResult(value, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (c *fakeRedisCommander) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if c.setErr != nil {
		return redis.NewStatusResult("", c.setErr)
	}
	payload, _ := value.([]byte)
	c.sets[key] = string(payload)
	c.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (c *fakeRedisCommander) Ping(_ context.Context) *redis.StatusCmd {
	if c.pingErr != nil {
		return redis.NewStatusResult("", c.pingErr)
	}
	return redis.NewStatusResult("PONG", nil)
}

func newTestRedisStore(commander *fakeRedisCommander) *RedisSnapshotStore {
	return newRedisStoreFromCommander(commander, nil, RedisStoreConfig{Namespace: "test"})
}

func TestRedisSnapshotStorePutAndGet(t *testing.T) {
	t.Parallel()

	commander := newFakeRedisCommander()
	store := newTestRedisStore(commander)

	snapshot := Snapshot{
		Username:    "octocat",
		CommitCount: 12,
		Tier:        activity.TierModerate,
		LastUpdated: time.Date(2026, 2, 18, 3, 0, 0, 0, time.UTC),
	}
	if err := store.Put(context.Background(), "activity:octocat", snapshot, 48*time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}

	stored, ok := commander.sets["test:activity:octocat"]
	if !ok {
		t.Fatalf("value was not written under the namespaced key; wrote %v", commander.sets)
	}
	if commander.ttls["test:activity:octocat"] != 48*time.Hour {
		t.Fatalf("ttl = %v, want 48h", commander.ttls["test:activity:octocat"])
	}
	var decoded Snapshot
	if err := json.Unmarshal([]byte(stored), &decoded); err != nil {
		t.Fatalf("stored value is not json: %v", err)
	}

	commander.values["test:activity:octocat"] = stored
	got, found, err := store.Get(context.Background(), "activity:octocat")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatalf("expected snapshot to be found")
	}
	if got.CommitCount != 12 || got.Tier != activity.TierModerate {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestRedisSnapshotStoreGetMissing(t *testing.T) {
	t.Parallel()

	store := newTestRedisStore(newFakeRedisCommander())
	_, found, err := store.Get(context.Background(), "activity:ghost")
	if err != nil {
		t.Fatalf("missing key must not error: %v", err)
	}
	if found {
		t.Fatalf("expected not found")
	}
}

func TestRedisSnapshotStoreGetError(t *testing.T) {
	t.Parallel()

	commander := newFakeRedisCommander()
	commander.getErr = fmt.Errorf("connection refused")
	store := newTestRedisStore(commander)

	_, _, err := store.Get(context.Background(), "activity:octocat")
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestRedisSnapshotStoreUndecodableValueTreatedAsAbsent(t *testing.T) {
	t.Parallel()

	commander := newFakeRedisCommander()
	commander.values["test:activity:octocat"] = "not json"
	store := newTestRedisStore(commander)

	_, found, err := store.Get(context.Background(), "activity:octocat")
	if err != nil {
		t.Fatalf("undecodable value must not error: %v", err)
	}
	if found {
		t.Fatalf("undecodable value must read as absent")
	}
}

func TestRedisSnapshotStoreHealthy(t *testing.T) {
	t.Parallel()

	commander := newFakeRedisCommander()
	store := newTestRedisStore(commander)
	if !store.Healthy(context.Background()) {
		t.Fatalf("expected healthy")
	}

	commander.pingErr = fmt.Errorf("connection refused")
	if store.Healthy(context.Background()) {
		t.Fatalf("expected unhealthy on ping failure")
	}
}
