package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/platinummonkey/crmacl/pkg/acl"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// ACL metrics
	DecisionsTotal     *prometheus.CounterVec
	TableCacheHits     prometheus.Counter
	TableCacheMisses   prometheus.Counter
	TableBuildsTotal   *prometheus.CounterVec
	TableBuildDuration prometheus.Histogram
	InvalidationsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
	DBWaitCount         prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmacl_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crmacl_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmacl_acl_decisions_total",
				Help: "Total number of access decisions",
			},
			[]string{"scope", "action", "result"},
		),
		TableCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crmacl_acl_table_cache_hits_total",
			Help: "Permission table cache hits",
		}),
		TableCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crmacl_acl_table_cache_misses_total",
			Help: "Permission table cache misses",
		}),
		TableBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmacl_acl_table_builds_total",
				Help: "Permission tables built from roles",
			},
			[]string{"status"},
		),
		TableBuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crmacl_acl_table_build_duration_seconds",
			Help:    "Permission table build duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		InvalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmacl_acl_table_invalidations_total",
				Help: "Permission table cache invalidations",
			},
			[]string{"reason"},
		),

		DBConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crmacl_db_connections_active",
			Help: "Connections in use on the primary",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crmacl_db_connections_idle",
			Help: "Idle connections on the primary",
		}),
		DBWaitCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crmacl_db_connections_wait_count",
			Help: "Total connections waited for on the primary",
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DecisionsTotal,
		m.TableCacheHits,
		m.TableCacheMisses,
		m.TableBuildsTotal,
		m.TableBuildDuration,
		m.InvalidationsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBWaitCount,
	)

	return m
}

func (m *Metrics) RecordDecision(scope string, action acl.Action, allowed bool) {
	m.DecisionsTotal.WithLabelValues(scope, string(action), result(allowed)).Inc()
}

func (m *Metrics) CacheHit() { m.TableCacheHits.Inc() }

func (m *Metrics) CacheMiss() { m.TableCacheMisses.Inc() }

func (m *Metrics) TableBuilt(d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.TableBuildsTotal.WithLabelValues(status).Inc()
	m.TableBuildDuration.Observe(d.Seconds())
}

func (m *Metrics) Invalidated(reason string) {
	m.InvalidationsTotal.WithLabelValues(reason).Inc()
}

// UpdateDBStats copies pool statistics into the database gauges.
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBWaitCount.Set(float64(stats.WaitCount))
}

func result(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments requests, labelled by route template so
// record ids do not blow up cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, gatherer prometheus.Gatherer) {
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}
