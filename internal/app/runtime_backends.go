package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okanot/commitbadge/internal/cache"
	"github.com/okanot/commitbadge/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// snapshotBackend bundles a snapshot store with its health probe and
// shutdown hook.
type snapshotBackend struct {
	store   cache.SnapshotStore
	healthy func(ctx context.Context) bool
	close   func() error
}

func newSnapshotBackend(cfg *config.Config, logger *zap.Logger) snapshotBackend {
	if cfg != nil && strings.EqualFold(strings.TrimSpace(cfg.Cache.Backend), "redis") {
		redisStore, err := newRedisStoreFromConfig(cfg)
		if err != nil {
			logger.Warn("failed to initialize redis snapshot store; falling back to in-memory store", zap.Error(err))
		} else {
			return snapshotBackend{
				store:   redisStore,
				healthy: redisStore.Healthy,
				close:   redisStore.Close,
			}
		}
	}

	return snapshotBackend{
		store:   cache.NewMemorySnapshotStore(),
		healthy: func(context.Context) bool { return true },
		close:   func() error { return nil },
	}
}

func newRedisStoreFromConfig(cfg *config.Config) (*cache.RedisSnapshotStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var redisClient redis.UniversalClient
	if strings.EqualFold(cfg.Cache.RedisMode, "sentinel") {
		redisClient = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    cfg.Cache.RedisMasterSet,
			SentinelAddrs: cfg.Cache.RedisSentinelAddrs,
			Password:      cfg.Cache.RedisPassword,
			DB:            cfg.Cache.RedisDB,
		})
	} else {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return cache.NewRedisSnapshotStore(redisClient, cache.RedisStoreConfig{
		Namespace: cfg.Cache.Namespace,
	}), nil
}
