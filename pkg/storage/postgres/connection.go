package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/crmacl/pkg/observability"
)

// ConnectionConfig holds database connection configuration.
type ConnectionConfig struct {
	PrimaryURL  string
	ReplicaURLs []string
	MaxConns    int
	MinConns    int
	// Timeout bounds the initial connection attempts, retries included.
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
	Logger      *logrus.Logger
}

type replica struct {
	name string
	db   *sql.DB
	up   atomic.Bool
}

// ConnectionManager holds the primary used for writes and the read replicas
// that serve role loads, record lookups and filtered lists. A replica that
// fails a probe stops receiving reads until a later probe succeeds.
type ConnectionManager struct {
	primary  *sql.DB
	replicas []*replica
	next     atomic.Uint32
	log      *logrus.Logger
}

// NewConnectionManager connects to the primary, retrying until
// config.Timeout, and to every reachable replica.
func NewConnectionManager(config ConnectionConfig) (*ConnectionManager, error) {
	log := config.Logger
	if log == nil {
		log = logrus.New()
	}

	primary, err := connect(config, config.PrimaryURL, config.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("failed to ping primary: %w", err)
	}
	cm := &ConnectionManager{primary: primary, log: log}

	replicaConns := config.MaxConns / 2
	if replicaConns < 2 {
		replicaConns = 2
	}
	for i, url := range config.ReplicaURLs {
		db, err := connect(config, url, replicaConns)
		if err != nil {
			log.WithError(err).WithField("replica", i).Warn("Skipping read replica")
			continue
		}
		cm.addReplica(db)
	}

	log.WithField("replicas", len(cm.replicas)).Info("Database connections initialized")
	return cm, nil
}

// NewConnectionManagerFromDB wraps already opened handles. All replicas start
// up.
func NewConnectionManagerFromDB(primary *sql.DB, replicas ...*sql.DB) *ConnectionManager {
	cm := &ConnectionManager{primary: primary, log: logrus.New()}
	for _, db := range replicas {
		cm.addReplica(db)
	}
	return cm
}

func (cm *ConnectionManager) addReplica(db *sql.DB) {
	r := &replica{name: fmt.Sprintf("replica-%d", len(cm.replicas)), db: db}
	r.up.Store(true)
	cm.replicas = append(cm.replicas, r)
}

func connect(config ConnectionConfig, url string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(config.MinConns)
	db.SetConnMaxLifetime(config.MaxLifetime)
	db.SetConnMaxIdleTime(config.MaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = config.Timeout
	if err := backoff.Retry(func() error { return db.PingContext(ctx) }, backoff.WithContext(b, ctx)); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Primary returns the primary database connection (for writes)
func (cm *ConnectionManager) Primary() *sql.DB {
	return cm.primary
}

// Replica returns the next healthy replica in round-robin order, or the
// primary when none is healthy.
func (cm *ConnectionManager) Replica() *sql.DB {
	n := len(cm.replicas)
	if n == 0 {
		return cm.primary
	}
	start := cm.next.Add(1)
	for i := 0; i < n; i++ {
		r := cm.replicas[int((start+uint32(i))%uint32(n))]
		if r.up.Load() {
			return r.db
		}
	}
	return cm.primary
}

// UpReplicas returns the number of replicas currently serving reads.
func (cm *ConnectionManager) UpReplicas() int {
	up := 0
	for _, r := range cm.replicas {
		if r.up.Load() {
			up++
		}
	}
	return up
}

// ProbeReplicas pings every replica and updates which ones serve reads.
// It returns the names of the replicas that are down.
func (cm *ConnectionManager) ProbeReplicas(ctx context.Context) []string {
	var down []string
	for _, r := range cm.replicas {
		err := r.db.PingContext(ctx)
		was := r.up.Swap(err == nil)
		switch {
		case err != nil:
			down = append(down, r.name)
			if was {
				cm.log.WithError(err).WithField("replica", r.name).Warn("Read replica down")
			}
		case !was:
			cm.log.WithField("replica", r.name).Info("Read replica recovered")
		}
	}
	return down
}

// HealthCheck pings the primary and probes the replicas. Reads fall back to
// the primary, so only a failing primary is an error.
func (cm *ConnectionManager) HealthCheck(ctx context.Context) error {
	if err := cm.primary.PingContext(ctx); err != nil {
		return fmt.Errorf("primary unhealthy: %w", err)
	}
	if down := cm.ProbeReplicas(ctx); len(down) > 0 && len(down) == len(cm.replicas) {
		cm.log.WithField("replicas", strings.Join(down, ", ")).Warn("All read replicas down, reading from primary")
	}
	return nil
}

// Close closes all database connections
func (cm *ConnectionManager) Close() error {
	var errs []error
	if err := cm.primary.Close(); err != nil {
		errs = append(errs, fmt.Errorf("primary close error: %w", err))
	}
	for _, r := range cm.replicas {
		r.up.Store(false)
		if err := r.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s close error: %w", r.name, err))
		}
	}
	return errors.Join(errs...)
}

// StartHealthCheckRoutine probes the replicas every interval until ctx is
// done.
func (cm *ConnectionManager) StartHealthCheckRoutine(ctx context.Context, interval time.Duration) {
	if interval == 0 {
		interval = 30 * time.Second
	}

	go func() {
		defer observability.RecoverPanic(cm.log, "replica health check")
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				cm.ProbeReplicas(probeCtx)
				cancel()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// ParseReplicaURLs parses a comma-separated list of replica URLs
func ParseReplicaURLs(s string) []string {
	if s == "" {
		return nil
	}
	out := []string{}
	for _, url := range strings.Split(s, ",") {
		if url = strings.TrimSpace(url); url != "" {
			out = append(out, url)
		}
	}
	return out
}
