package table

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheSize = 1024
	DefaultCacheTTL  = 10 * time.Minute
)

// Metrics receives table cache events.
type Metrics interface {
	CacheHit()
	CacheMiss()
	TableBuilt(d time.Duration, err error)
	Invalidated(reason string)
}

type nopMetrics struct{}

func (nopMetrics) CacheHit()                       {}
func (nopMetrics) CacheMiss()                      {}
func (nopMetrics) TableBuilt(time.Duration, error) {}
func (nopMetrics) Invalidated(string)              {}

// Invalidation is broadcast to other processes sharing a remote cache. An
// empty RoleID drops every table.
type Invalidation struct {
	Origin string `json:"origin"`
	RoleID string `json:"roleId,omitempty"`
}

// RemoteCache is a second cache level shared between processes.
type RemoteCache interface {
	Get(ctx context.Context, key string) (*Data, error)
	Set(ctx context.Context, key string, data Data) error
	Purge(ctx context.Context) error
	Publish(ctx context.Context, inv Invalidation) error
}

// Subscriber delivers invalidations published by other processes.
type Subscriber interface {
	Subscribe(ctx context.Context, fn func(Invalidation)) error
}

type cacheEntry struct {
	table   *DefaultTable
	roleIDs []string
}

// CacheConfig configures the in-process table cache.
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// Cache holds built tables by cache key. Concurrent builds of one key are
// collapsed. A build that races with an invalidation is returned to its
// callers but not stored.
type Cache struct {
	id      string
	lru     *lru.LRU[string, *cacheEntry]
	group   singleflight.Group
	mu      sync.Mutex
	gen     atomic.Uint64
	remote  RemoteCache
	metrics Metrics
	log     *logrus.Logger
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithRemote adds a shared second level.
func WithRemote(r RemoteCache) CacheOption {
	return func(c *Cache) { c.remote = r }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

// WithCacheLogger sets the logger.
func WithCacheLogger(log *logrus.Logger) CacheOption {
	return func(c *Cache) { c.log = log }
}

// NewCache creates a table cache.
func NewCache(cfg CacheConfig, opts ...CacheOption) *Cache {
	if cfg.Size <= 0 {
		cfg.Size = DefaultCacheSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheTTL
	}
	c := &Cache{
		id:      uuid.NewString(),
		lru:     lru.NewLRU[string, *cacheEntry](cfg.Size, nil, cfg.TTL),
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logrus.New()
	}
	return c
}

// Len returns the number of tables held in process.
func (c *Cache) Len() int { return c.lru.Len() }

// GetOrBuild returns the table stored under key, building it on a miss.
func (c *Cache) GetOrBuild(ctx context.Context, key string, roleIDs []string, build func(context.Context) (*DefaultTable, error)) (*DefaultTable, error) {
	if e, ok := c.lru.Get(key); ok {
		c.metrics.CacheHit()
		return e.table, nil
	}
	c.metrics.CacheMiss()

	gen := c.gen.Load()
	v, err, _ := c.group.Do(fmt.Sprintf("%d/%s", gen, key), func() (any, error) {
		if e, ok := c.lru.Get(key); ok {
			return e.table, nil
		}
		if t := c.fromRemote(ctx, key); t != nil {
			c.store(gen, key, roleIDs, t)
			return t, nil
		}

		start := time.Now()
		t, err := build(ctx)
		c.metrics.TableBuilt(time.Since(start), err)
		if err != nil {
			return nil, err
		}
		if c.store(gen, key, roleIDs, t) && c.remote != nil {
			if err := c.remote.Set(ctx, key, t.Data()); err != nil {
				c.log.WithError(err).WithField("key", key).Warn("Failed to store acl table in remote cache")
			}
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*DefaultTable), nil
}

func (c *Cache) fromRemote(ctx context.Context, key string) *DefaultTable {
	if c.remote == nil {
		return nil
	}
	data, err := c.remote.Get(ctx, key)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("Failed to read acl table from remote cache")
		return nil
	}
	if data == nil {
		return nil
	}
	return NewTable(*data)
}

func (c *Cache) store(gen uint64, key string, roleIDs []string, t *DefaultTable) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen.Load() != gen {
		return false
	}
	c.lru.Add(key, &cacheEntry{table: t, roleIDs: roleIDs})
	return true
}

// InvalidateRole drops every table built from the role, here and in other
// processes.
func (c *Cache) InvalidateRole(ctx context.Context, roleID string) error {
	n := c.dropRole(roleID)
	c.log.WithFields(logrus.Fields{"role_id": roleID, "tables": n}).Info("Invalidated acl tables of role")
	return c.propagate(ctx, Invalidation{Origin: c.id, RoleID: roleID})
}

// Purge drops every table, here and in other processes.
func (c *Cache) Purge(ctx context.Context) error {
	c.dropAll()
	c.log.Info("Purged acl table cache")
	return c.propagate(ctx, Invalidation{Origin: c.id})
}

func (c *Cache) propagate(ctx context.Context, inv Invalidation) error {
	if c.remote == nil {
		return nil
	}
	if err := c.remote.Purge(ctx); err != nil {
		return fmt.Errorf("failed to purge remote acl cache: %w", err)
	}
	if err := c.remote.Publish(ctx, inv); err != nil {
		return fmt.Errorf("failed to publish acl invalidation: %w", err)
	}
	return nil
}

func (c *Cache) dropRole(roleID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen.Add(1)
	n := 0
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		for _, id := range e.roleIDs {
			if id == roleID {
				c.lru.Remove(key)
				n++
				break
			}
		}
	}
	c.metrics.Invalidated("role")
	return n
}

func (c *Cache) dropAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen.Add(1)
	c.lru.Purge()
	c.metrics.Invalidated("purge")
}

// Apply applies an invalidation received from another process.
func (c *Cache) Apply(inv Invalidation) {
	if inv.Origin == c.id {
		return
	}
	if inv.RoleID != "" {
		c.dropRole(inv.RoleID)
		return
	}
	c.dropAll()
}

// Listen applies remote invalidations until ctx is done.
func (c *Cache) Listen(ctx context.Context, sub Subscriber) error {
	return sub.Subscribe(ctx, c.Apply)
}
