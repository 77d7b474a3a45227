package quota

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const configCacheKey = "gas_station:config"

// configFetchTimeout bounds a refresh, which runs detached from the caller that
// happened to trigger it.
const configFetchTimeout = 5 * time.Second

type cachedConfig struct {
	Config    GasStationConfig `json:"config"`
	FetchedAt time.Time        `json:"fetched_at"`
}

/**
 * @description
 * ConfigCache is the process-wide GasStationConfig cache. An entry is served for at
 * most ttl after it was read from storage. When a Redis client is supplied, entries
 * are shared between replicas and carry their original fetch time, so an entry that
 * travels through Redis is never older than ttl either.
 *
 * @notes
 * - Concurrent misses collapse into one storage read.
 * - Redis failures degrade to a direct storage read; they are never fatal.
 */
type ConfigCache struct {
	store  Store
	redis  *redis.Client
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu    sync.RWMutex
	entry *cachedConfig
	group singleflight.Group
}

// NewConfigCache creates a cache over store. redisClient may be nil.
func NewConfigCache(store Store, redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) *ConfigCache {
	return &ConfigCache{
		store:  store,
		redis:  redisClient,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// Get returns the configuration, refreshing it when the cached copy is older than the TTL.
func (c *ConfigCache) Get(ctx context.Context) (GasStationConfig, error) {
	now := c.now()

	c.mu.RLock()
	entry := c.entry
	c.mu.RUnlock()
	if c.fresh(entry, now) {
		return entry.Config, nil
	}

	v, err, _ := c.group.Do(configCacheKey, func() (interface{}, error) {
		// Every waiter shares this result, so one caller's cancellation must not fail the rest.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), configFetchTimeout)
		defer cancel()

		if shared := c.readShared(ctx, now); shared != nil {
			c.set(shared)
			return shared.Config, nil
		}

		cfg, err := c.store.GetConfig(ctx)
		if err != nil {
			return GasStationConfig{}, err
		}
		fetched := &cachedConfig{Config: cfg, FetchedAt: c.now()}
		c.set(fetched)
		c.writeShared(ctx, fetched)
		return cfg, nil
	})
	if err != nil {
		return GasStationConfig{}, err
	}
	return v.(GasStationConfig), nil
}

// Invalidate drops the local copy and the shared one.
func (c *ConfigCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.entry = nil
	c.mu.Unlock()
	if c.redis != nil {
		if err := c.redis.Del(ctx, configCacheKey).Err(); err != nil {
			c.logger.Warn("failed to drop shared config cache", zap.Error(err))
		}
	}
}

func (c *ConfigCache) fresh(entry *cachedConfig, now time.Time) bool {
	return entry != nil && now.Sub(entry.FetchedAt) < c.ttl
}

func (c *ConfigCache) set(entry *cachedConfig) {
	c.mu.Lock()
	c.entry = entry
	c.mu.Unlock()
}

func (c *ConfigCache) readShared(ctx context.Context, now time.Time) *cachedConfig {
	if c.redis == nil {
		return nil
	}
	raw, err := c.redis.Get(ctx, configCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("failed to read shared config cache", zap.Error(err))
		}
		return nil
	}
	var entry cachedConfig
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("discarding malformed shared config cache entry", zap.Error(err))
		return nil
	}
	if !c.fresh(&entry, now) {
		return nil
	}
	return &entry
}

func (c *ConfigCache) writeShared(ctx context.Context, entry *cachedConfig) {
	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("failed to encode config for shared cache", zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, configCacheKey, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to write shared config cache", zap.Error(err))
	}
}
