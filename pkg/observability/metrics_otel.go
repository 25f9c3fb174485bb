package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/platinummonkey/crmacl/pkg/acl"
)

const meterName = "github.com/platinummonkey/crmacl"

// OTelMetrics records ACL events through the OpenTelemetry meter.
type OTelMetrics struct {
	decisions     metric.Int64Counter
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
	buildDuration metric.Float64Histogram
	invalidations metric.Int64Counter
}

// NewOTelMetrics creates the instruments on the meter of provider, or on the
// global meter provider when provider is nil.
func NewOTelMetrics(provider metric.MeterProvider) (*OTelMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	m := &OTelMetrics{}
	var err error

	m.decisions, err = meter.Int64Counter(
		"acl.decisions",
		metric.WithDescription("Access decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create acl.decisions counter: %w", err)
	}

	m.cacheHits, err = meter.Int64Counter(
		"acl.table.cache.hits",
		metric.WithDescription("Permission table cache hits"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create acl.table.cache.hits counter: %w", err)
	}

	m.cacheMisses, err = meter.Int64Counter(
		"acl.table.cache.misses",
		metric.WithDescription("Permission table cache misses"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create acl.table.cache.misses counter: %w", err)
	}

	m.buildDuration, err = meter.Float64Histogram(
		"acl.table.build.duration",
		metric.WithDescription("Permission table build duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create acl.table.build.duration histogram: %w", err)
	}

	m.invalidations, err = meter.Int64Counter(
		"acl.table.invalidations",
		metric.WithDescription("Permission table cache invalidations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create acl.table.invalidations counter: %w", err)
	}

	return m, nil
}

func (m *OTelMetrics) RecordDecision(scope string, action acl.Action, allowed bool) {
	m.decisions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("acl.scope", scope),
		attribute.String("acl.action", string(action)),
		attribute.String("acl.result", result(allowed)),
	))
}

func (m *OTelMetrics) CacheHit() { m.cacheHits.Add(context.Background(), 1) }

func (m *OTelMetrics) CacheMiss() { m.cacheMisses.Add(context.Background(), 1) }

func (m *OTelMetrics) TableBuilt(d time.Duration, err error) {
	m.buildDuration.Record(context.Background(), d.Seconds(), metric.WithAttributes(
		attribute.Bool("error", err != nil),
	))
}

func (m *OTelMetrics) Invalidated(reason string) {
	m.invalidations.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// Recorder receives both access decisions and table cache events.
type Recorder interface {
	RecordDecision(scope string, action acl.Action, allowed bool)
	CacheHit()
	CacheMiss()
	TableBuilt(d time.Duration, err error)
	Invalidated(reason string)
}

// Recorders fans events out to several recorders.
type Recorders []Recorder

func (rs Recorders) RecordDecision(scope string, action acl.Action, allowed bool) {
	for _, r := range rs {
		r.RecordDecision(scope, action, allowed)
	}
}

func (rs Recorders) CacheHit() {
	for _, r := range rs {
		r.CacheHit()
	}
}

func (rs Recorders) CacheMiss() {
	for _, r := range rs {
		r.CacheMiss()
	}
}

func (rs Recorders) TableBuilt(d time.Duration, err error) {
	for _, r := range rs {
		r.TableBuilt(d, err)
	}
}

func (rs Recorders) Invalidated(reason string) {
	for _, r := range rs {
		r.Invalidated(reason)
	}
}
