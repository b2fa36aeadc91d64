// Package cache holds the in-process settings cache, kept fresh across
// replicas (or just across the admin/agent surfaces of a single process)
// by subscribing to a Redis pub/sub channel the way the teacher's policy
// service notified its memo enforcer on update.
package cache

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Namespace isolates this service's keys/channels inside a shared Redis
// instance.
const Namespace = "agentgate"

// ChannelSettingsUpdated is the channel Invalidate publishes to and Watch
// reloads on. No admin handler calls Invalidate, so a setting or
// capability change reaches the cache only through a peer's publish or an
// explicit Reload.
const ChannelSettingsUpdated = Namespace + ":settings:updated"

// SettingsCache holds the current settings snapshot in memory, refreshed
// on startup and whenever ChannelSettingsUpdated fires.
type SettingsCache struct {
	mu       sync.RWMutex
	values   map[string]interface{}
	rdb      *redis.Client
	log      *zap.Logger
	onReload func(ctx context.Context) (map[string]interface{}, error)
}

// New constructs a SettingsCache. onReload is called to repopulate the
// cache from the store, both at startup and whenever an invalidation
// message arrives.
func New(rdb *redis.Client, log *zap.Logger, onReload func(ctx context.Context) (map[string]interface{}, error)) *SettingsCache {
	return &SettingsCache{
		values:   make(map[string]interface{}),
		rdb:      rdb,
		log:      log,
		onReload: onReload,
	}
}

// Get returns the cached value for key, if present.
func (c *SettingsCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Reload refreshes the cache from the store synchronously.
func (c *SettingsCache) Reload(ctx context.Context) error {
	values, err := c.onReload(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.values = values
	c.mu.Unlock()
	return nil
}

// Invalidate publishes a reload signal to every process watching
// ChannelSettingsUpdated, including this one (the in-process Watch
// goroutine treats its own publish the same as a peer's).
func (c *SettingsCache) Invalidate(ctx context.Context, reason string) error {
	payload, err := json.Marshal(map[string]string{"reason": reason})
	if err != nil {
		return err
	}
	return c.rdb.Publish(ctx, ChannelSettingsUpdated, payload).Err()
}

// Watch subscribes to ChannelSettingsUpdated and reloads on every message
// until ctx is canceled. Intended to run in its own goroutine.
func (c *SettingsCache) Watch(ctx context.Context) {
	sub := c.rdb.Subscribe(ctx, ChannelSettingsUpdated)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := c.Reload(ctx); err != nil {
				c.log.Warn("settings cache reload failed", zap.Error(err), zap.String("trigger", msg.Payload))
				continue
			}
			c.log.Info("settings cache reloaded", zap.String("trigger", msg.Payload))
		}
	}
}
