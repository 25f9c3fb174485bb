// Command crmacl serves access decisions for the CRM over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/crmacl/pkg/acl"
	"github.com/platinummonkey/crmacl/pkg/acl/filters"
	"github.com/platinummonkey/crmacl/pkg/acl/table"
	"github.com/platinummonkey/crmacl/pkg/api"
	"github.com/platinummonkey/crmacl/pkg/audit"
	"github.com/platinummonkey/crmacl/pkg/config"
	"github.com/platinummonkey/crmacl/pkg/metadata"
	"github.com/platinummonkey/crmacl/pkg/middleware"
	"github.com/platinummonkey/crmacl/pkg/observability"
	"github.com/platinummonkey/crmacl/pkg/record"
	"github.com/platinummonkey/crmacl/pkg/storage/postgres"
)

var version = "dev"

func main() {
	migrate := flag.Bool("migrate", false, "Apply the database schema before serving")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	log := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	if err := run(cfg, log, *migrate); err != nil {
		log.WithError(err).Fatal("crmacl stopped")
	}
}

func run(cfg *config.Config, log *logrus.Logger, migrate bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel, log)
	if err != nil {
		return err
	}

	store, s3Source, err := loadMetadata(ctx, cfg.Metadata, log)
	if err != nil {
		return err
	}
	defs := metadata.NewDefs(store)

	cfg.Postgres.Logger = log
	conns, err := postgres.NewConnectionManager(cfg.Postgres)
	if err != nil {
		return err
	}
	if migrate {
		if err := postgres.Migrate(ctx, conns.Primary()); err != nil {
			return err
		}
		log.Info("Database schema applied")
	}
	repo := postgres.NewRepository(conns,
		postgres.WithLinkSource(filters.LinkSource{Meta: defs}),
		postgres.WithRepositoryLogger(log),
	)
	roles := postgres.NewRoleStore(conns)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promMetrics := observability.NewMetrics(promRegistry)
	otelMetrics, err := observability.NewOTelMetrics(nil)
	if err != nil {
		return err
	}
	recorder := observability.Recorders{promMetrics, otelMetrics}

	cacheOpts := []table.CacheOption{table.WithMetrics(recorder), table.WithCacheLogger(log)}
	var (
		redisClient *redis.Client
		redisStore  *table.RedisStore
	)
	if cfg.Redis.Enabled {
		redisClient, err = table.NewRedisClient(ctx, cfg.Redis.RedisConfig)
		if err != nil {
			return err
		}
		redisStore = table.NewRedisStore(redisClient, cfg.Redis.KeyPrefix, cfg.Redis.TableTTL)
		cacheOpts = append(cacheOpts, table.WithRemote(redisStore))
	}
	cache := table.NewCache(cfg.Cache, cacheOpts...)

	factory := table.NewFactory(table.NewBuilder(defs), roles,
		table.WithCache(cache),
		table.WithTracer(otel.Tracer("github.com/platinummonkey/crmacl")),
		table.WithLogger(log),
	)
	registry := acl.NewRegistry(defs, defs)
	manager := acl.NewManager(factory, registry,
		acl.WithDecisionRecorder(recorder),
		acl.WithLogger(log),
	)
	if err := acl.RegisterBuiltins(registry); err != nil {
		return fmt.Errorf("failed to register checkers: %w", err)
	}
	if err := registry.Freeze(); err != nil {
		return fmt.Errorf("invalid acl configuration: %w", err)
	}

	store.OnChange(func(v string) {
		entry := log.WithField("version", v)
		if err := registry.Rebuild(); err != nil {
			entry.WithError(err).Error("Metadata change rejected by acl registry")
			return
		}
		if err := cache.Purge(ctx); err != nil {
			entry.WithError(err).Error("Failed to purge permission tables")
		}
	})

	auditLog, auditDB, err := openAudit(ctx, cfg.Audit, conns)
	if err != nil {
		return err
	}

	hooks := record.NewHookManager(log)
	record.RegisterBuiltins(hooks, repo, cache)

	server := api.NewServer(api.Dependencies{
		ACL:     manager,
		Records: repo,
		Filter:  filters.NewApplier(manager, defs),
		Service: record.NewService(repo, roles, manager, hooks, log),
		Cache:   cache,
		Audit:   auditLog,
		Logger:  log,
	})

	router := server.Router()
	router.Use(
		middleware.RequestID,
		middleware.Logging(log),
		middleware.Recovery(log),
		observability.HTTPMetricsMiddleware(promMetrics),
		middleware.NewUserMiddleware(repo, false).Handler,
	)
	if cfg.Server.RateLimitEnabled {
		var limits *middleware.RateLimitMiddleware
		if redisClient != nil {
			limits = middleware.NewDistributedRateLimitMiddleware(redisClient, log)
		} else {
			limits = middleware.NewRateLimitMiddleware(log)
			limits.StartCleanup(ctx)
		}
		router.Use(limits.Handler)
	}

	healthRouter := mux.NewRouter()
	observability.RegisterHealthRoutes(healthRouter, observability.NewHealthChecker(conns.HealthCheck, redisClient, version))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthRouter, promRegistry)
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      otelhttp.NewHandler(router, "crmacl"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:     healthRouter,
		ReadTimeout: 5 * time.Second,
	}

	shutdown := observability.NewShutdownManager(log, apiServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("database", func(context.Context) error { return conns.Close() })
	if redisClient != nil {
		shutdown.RegisterShutdownFunc("redis", func(context.Context) error { return redisClient.Close() })
	}
	shutdown.RegisterShutdownFunc("audit", func(context.Context) error { return auditLog.Close() })
	shutdown.RegisterShutdownFunc("telemetry", providers.Shutdown)
	shutdown.RegisterShutdownFunc("health server", healthServer.Shutdown)

	var watcher *metadata.Watcher
	if s3Source == nil && cfg.Metadata.Watch {
		watcher, err = metadata.NewWatcher(store, cfg.Metadata.Debounce)
		if err != nil {
			return err
		}
		defer watcher.Close()
	}

	scheduler := newJobs(ctx, log)
	scheduler.every(dbStatsInterval, "db stats", dbStatsJob(conns, promMetrics))
	if s3Source != nil {
		scheduler.every(cfg.Metadata.SyncInterval, "metadata sync", syncMetadataJob(s3Source, store))
	}
	if auditDB != nil && cfg.Audit.RetentionDays > 0 {
		if err := scheduler.at(cfg.Audit.RetentionSchedule, "audit retention", pruneAuditJob(auditDB, cfg.Audit.RetentionDays, log)); err != nil {
			return err
		}
	}

	conns.StartHealthCheckRoutine(ctx, 30*time.Second)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(apiServer, log, "api") })
	g.Go(func() error { return serve(healthServer, log, "health") })
	g.Go(func() error {
		err := shutdown.WaitForShutdown(gctx)
		cancel()
		return err
	})
	if redisStore != nil {
		g.Go(func() error {
			defer observability.RecoverPanic(log, "table invalidation listener")
			if err := cache.Listen(ctx, redisStore); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("table invalidation listener: %w", err)
			}
			return nil
		})
	}
	if watcher != nil {
		g.Go(func() error {
			defer observability.RecoverPanic(log, "metadata watcher")
			watcher.Run(ctx)
			return nil
		})
	}
	g.Go(func() error {
		scheduler.run()
		return nil
	})

	return g.Wait()
}

// loadMetadata reads the metadata bundle from S3 when a bucket is configured,
// from the directories otherwise.
func loadMetadata(ctx context.Context, cfg config.MetadataConfig, log *logrus.Logger) (*metadata.Store, *metadata.S3Source, error) {
	if cfg.S3.Bucket == "" {
		store, err := metadata.LoadDirs(log, cfg.Dirs...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load metadata: %w", err)
		}
		return store, nil, nil
	}

	client, err := metadata.NewS3Client(ctx, cfg.S3)
	if err != nil {
		return nil, nil, err
	}
	source := metadata.NewS3Source(client, cfg.S3.Bucket, cfg.S3.Key)
	store := metadata.NewStore(nil, log)
	if err := source.Sync(ctx, store); err != nil {
		return nil, nil, fmt.Errorf("failed to load metadata from s3://%s/%s: %w", cfg.S3.Bucket, cfg.S3.Key, err)
	}
	return store, source, nil
}

// openAudit builds the audit trail from the configured destinations.
// The database logger is returned separately for pruning; it is nil unless
// enabled.
func openAudit(ctx context.Context, cfg config.AuditConfig, conns *postgres.ConnectionManager) (*audit.MultiLogger, *audit.DBLogger, error) {
	var (
		loggers []audit.Logger
		db      *audit.DBLogger
	)
	if cfg.File.BasePath != "" {
		file, err := audit.NewFileLogger(cfg.File)
		if err != nil {
			return nil, nil, err
		}
		loggers = append(loggers, file)
	}
	if cfg.Database {
		var err error
		if db, err = audit.NewDBLogger(conns.Primary()); err != nil {
			return nil, nil, err
		}
		if err := db.EnsureTable(ctx); err != nil {
			return nil, nil, err
		}
		loggers = append(loggers, db)
	}
	return audit.NewMultiLogger(loggers...), db, nil
}

func serve(srv *http.Server, log *logrus.Logger, name string) error {
	log.WithFields(logrus.Fields{"server": name, "addr": srv.Addr}).Info("Listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}
