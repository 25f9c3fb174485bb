package table

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultKeyPrefix prefixes every key the Redis store writes.
const DefaultKeyPrefix = "crmacl:acl"

// RedisConfig configures the Redis connection of the shared table cache.
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB > 0 {
		opts.DB = cfg.DB
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisStore shares tables between processes. Keys embed an epoch counter:
// purging increments the epoch, which orphans every stored table until its
// TTL expires.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var (
	_ RemoteCache = (*RedisStore)(nil)
	_ Subscriber  = (*RedisStore)(nil)
)

// NewRedisStore creates a Redis backed table store.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) epochKey() string { return s.prefix + ":epoch" }

func (s *RedisStore) channel() string { return s.prefix + ":invalidate" }

func (s *RedisStore) tableKey(epoch int64, key string) string {
	return fmt.Sprintf("%s:table:%d:%s", s.prefix, epoch, key)
}

// Epoch returns the current epoch.
func (s *RedisStore) Epoch(ctx context.Context) (int64, error) {
	n, err := s.client.Get(ctx, s.epochKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get failed: %w", err)
	}
	return n, nil
}

// Get returns the table stored under key, nil on a miss.
func (s *RedisStore) Get(ctx context.Context, key string) (*Data, error) {
	epoch, err := s.Epoch(ctx)
	if err != nil {
		return nil, err
	}
	k := s.tableKey(epoch, key)
	raw, err := s.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		s.client.Del(ctx, k)
		return nil, fmt.Errorf("failed to unmarshal acl table: %w", err)
	}
	return &data, nil
}

// Set stores a table under key in the current epoch.
func (s *RedisStore) Set(ctx context.Context, key string, data Data) error {
	epoch, err := s.Epoch(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal acl table: %w", err)
	}
	return s.client.Set(ctx, s.tableKey(epoch, key), raw, s.ttl).Err()
}

// Purge starts a new epoch.
func (s *RedisStore) Purge(ctx context.Context) error {
	return s.client.Incr(ctx, s.epochKey()).Err()
}

// Publish broadcasts an invalidation.
func (s *RedisStore) Publish(ctx context.Context, inv Invalidation) error {
	raw, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation: %w", err)
	}
	return s.client.Publish(ctx, s.channel(), raw).Err()
}

// Subscribe calls fn for every invalidation until ctx is done.
func (s *RedisStore) Subscribe(ctx context.Context, fn func(Invalidation)) error {
	ps := s.client.Subscribe(ctx, s.channel())
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel(), err)
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var inv Invalidation
			if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
				continue
			}
			fn(inv)
		}
	}
}
