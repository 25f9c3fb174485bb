package main

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/crmacl/pkg/audit"
	"github.com/platinummonkey/crmacl/pkg/metadata"
	"github.com/platinummonkey/crmacl/pkg/observability"
	"github.com/platinummonkey/crmacl/pkg/storage/postgres"
)

const dbStatsInterval = 15 * time.Second

// jobs holds the periodic maintenance work of the server.
type jobs struct {
	ctx  context.Context
	cron *cron.Cron
	log  *logrus.Logger
}

func newJobs(ctx context.Context, log *logrus.Logger) *jobs {
	return &jobs{
		ctx: ctx,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		log: log,
	}
}

// every runs fn on a fixed interval.
func (j *jobs) every(d time.Duration, name string, fn func(context.Context) error) {
	j.cron.Schedule(cron.Every(d), j.job(name, fn))
}

// at runs fn on a cron schedule.
func (j *jobs) at(spec, name string, fn func(context.Context) error) error {
	if _, err := j.cron.AddJob(spec, j.job(name, fn)); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return nil
}

func (j *jobs) job(name string, fn func(context.Context) error) cron.Job {
	return cron.FuncJob(func() {
		defer observability.RecoverPanic(j.log, name)
		if j.ctx.Err() != nil {
			return
		}
		if err := fn(j.ctx); err != nil {
			j.log.WithError(err).WithField("job", name).Warn("Scheduled job failed")
		}
	})
}

// run starts the scheduler and stops it when ctx is done, waiting for
// running jobs.
func (j *jobs) run() {
	j.cron.Start()
	<-j.ctx.Done()
	<-j.cron.Stop().Done()
}

func syncMetadataJob(source *metadata.S3Source, store *metadata.Store) func(context.Context) error {
	return func(ctx context.Context) error {
		return source.Sync(ctx, store)
	}
}

func dbStatsJob(conns *postgres.ConnectionManager, metrics *observability.Metrics) func(context.Context) error {
	return func(context.Context) error {
		metrics.UpdateDBStats(conns.Primary().Stats())
		return nil
	}
}

func pruneAuditJob(db *audit.DBLogger, days int, log *logrus.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := db.Prune(ctx, time.Now().UTC().AddDate(0, 0, -days))
		if err != nil {
			return err
		}
		log.WithField("deleted", n).Info("Pruned audit log")
		return nil
	}
}
