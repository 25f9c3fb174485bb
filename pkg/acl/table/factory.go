package table

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/crmacl/pkg/acl"
	"github.com/platinummonkey/crmacl/pkg/entity"
)

const tracerName = "github.com/platinummonkey/crmacl/pkg/acl/table"

// DefaultMaxRetries bounds the retries of role reads.
const DefaultMaxRetries = 3

// Factory returns the table of a user, building and caching it as needed.
type Factory struct {
	builder    *Builder
	store      RoleStore
	roles      RoleListProvider
	keys       CacheKeyProvider
	cache      *Cache
	tracer     trace.Tracer
	newBackOff func() backoff.BackOff
	log        *logrus.Logger
}

var _ acl.TableProvider = (*Factory)(nil)

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithRoleListProvider replaces the default role list provider.
func WithRoleListProvider(p RoleListProvider) FactoryOption {
	return func(f *Factory) { f.roles = p }
}

// WithCacheKeyProvider replaces the default cache key provider.
func WithCacheKeyProvider(p CacheKeyProvider) FactoryOption {
	return func(f *Factory) { f.keys = p }
}

// WithCache sets the table cache.
func WithCache(c *Cache) FactoryOption {
	return func(f *Factory) { f.cache = c }
}

// WithTracer sets the tracer used for table spans.
func WithTracer(t trace.Tracer) FactoryOption {
	return func(f *Factory) { f.tracer = t }
}

// WithRetry sets the retry policy of role reads.
func WithRetry(maxRetries uint64, initial time.Duration) FactoryOption {
	return func(f *Factory) {
		f.newBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			return backoff.WithMaxRetries(b, maxRetries)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) FactoryOption {
	return func(f *Factory) { f.log = log }
}

// NewFactory creates a table factory reading roles from store.
func NewFactory(builder *Builder, store RoleStore, opts ...FactoryOption) *Factory {
	f := &Factory{
		builder: builder,
		store:   store,
		roles:   DefaultRoleListProvider{Store: store},
		keys:    DefaultCacheKeyProvider{},
		tracer:  otel.Tracer(tracerName),
	}
	WithRetry(DefaultMaxRetries, 50*time.Millisecond)(f)
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = logrus.New()
	}
	if f.cache == nil {
		f.cache = NewCache(CacheConfig{}, WithCacheLogger(f.log))
	}
	return f
}

// Cache returns the table cache.
func (f *Factory) Cache() *Cache { return f.cache }

// Table returns the table of the user.
func (f *Factory) Table(ctx context.Context, user *entity.User) (acl.Table, error) {
	ctx, span := f.tracer.Start(ctx, "acl.Table", trace.WithAttributes(
		attribute.String("user.id", user.ID),
		attribute.String("user.type", string(user.Type)),
	))
	defer span.End()

	t, err := f.table(ctx, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return t, nil
}

func (f *Factory) table(ctx context.Context, user *entity.User) (*DefaultTable, error) {
	if user.IsAdmin() {
		key := f.keys.CacheKey(user, nil)
		return f.cache.GetOrBuild(ctx, key, nil, func(context.Context) (*DefaultTable, error) {
			return f.builder.Build(user, nil), nil
		})
	}

	ids, err := backoff.RetryWithData(func() ([]string, error) {
		return f.roles.RoleIDs(ctx, user)
	}, backoff.WithContext(f.newBackOff(), ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	key := f.keys.CacheKey(user, ids)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("acl.cache_key", key))

	return f.cache.GetOrBuild(ctx, key, ids, func(ctx context.Context) (*DefaultTable, error) {
		roles, err := backoff.RetryWithData(func() ([]Role, error) {
			return f.store.GetRoles(ctx, ids)
		}, backoff.WithContext(f.newBackOff(), ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to load roles: %w", err)
		}
		f.log.WithFields(logrus.Fields{
			"user_id": user.ID,
			"roles":   len(roles),
			"key":     key,
		}).Debug("Built acl table")
		return f.builder.Build(user, roles), nil
	})
}
