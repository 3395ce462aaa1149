// Command flagkit-worker applies scheduled feature rule changes and delivers the
// resulting cache invalidations, audit events and experiment syncs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/flagkit/pkg/audit"
	"github.com/dmitrymomot/flagkit/pkg/config"
	"github.com/dmitrymomot/flagkit/pkg/logger"
	"github.com/dmitrymomot/flagkit/pkg/mongo"
	"github.com/dmitrymomot/flagkit/pkg/notify"
	"github.com/dmitrymomot/flagkit/pkg/organization"
	"github.com/dmitrymomot/flagkit/pkg/pg"
	"github.com/dmitrymomot/flagkit/pkg/probe"
	"github.com/dmitrymomot/flagkit/pkg/redis"
	"github.com/dmitrymomot/flagkit/pkg/webhook"
	"github.com/dmitrymomot/flagkit/svc/features"
)

// Config is the worker configuration read from the environment.
type Config struct {
	Log logger.Config

	ScanInterval      time.Duration `env:"FLAGKIT_SCAN_INTERVAL" envDefault:"1m"`
	OrgSettingsFile   string        `env:"FLAGKIT_ORG_SETTINGS_FILE" envDefault:"organizations.yaml"`
	CachePrefix       string        `env:"FLAGKIT_CACHE_PREFIX" envDefault:"flagkit"`
	BatchConcurrency  int           `env:"FLAGKIT_BATCH_CONCURRENCY" envDefault:"8"`
	EffectTimeout     time.Duration `env:"FLAGKIT_EFFECT_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout   time.Duration `env:"FLAGKIT_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	WebhookTimeout    time.Duration `env:"FLAGKIT_WEBHOOK_TIMEOUT" envDefault:"10s"`
	WebhookMaxRetries int           `env:"FLAGKIT_WEBHOOK_MAX_RETRIES" envDefault:"3"`

	Mongo mongo.Config
	Redis redis.Config
	PG    pg.Config
	Probe probe.Config
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.ScanInterval <= 0 {
		return errors.New("FLAGKIT_SCAN_INTERVAL must be positive")
	}
	if c.BatchConcurrency <= 0 {
		return errors.New("FLAGKIT_BATCH_CONCURRENCY must be positive")
	}
	return nil
}

func main() {
	cfg, err := config.Load[Config](".env")
	if err != nil {
		slog.Error("failed to load config", logger.Error(err))
		os.Exit(1)
	}

	log, err := logger.NewFromConfig(cfg.Log, "flagkit-worker",
		logger.WithContextExtractors(logger.ActorExtractor),
	)
	if err != nil {
		slog.Error("invalid logging config", logger.Error(err))
		os.Exit(1)
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.LogAttrs(ctx, slog.LevelError, "worker stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, log *slog.Logger) error {
	mongoClient, err := mongo.Connect(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.LogAttrs(ctx, slog.LevelWarn, "failed to disconnect mongo", logger.Error(err))
		}
	}()
	db := mongoClient.Database(cfg.Mongo.Database)
	if err := mongo.EnsureIndexes(ctx, db); err != nil {
		return err
	}

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool, audit.Migrations, audit.MigrationsDir, cfg.PG, log); err != nil {
		return err
	}

	checks := map[string]probe.Check{
		"mongo":    mongo.Healthcheck(mongoClient),
		"redis":    redis.Healthcheck(rdb),
		"postgres": pg.Healthcheck(pool),
	}
	if rep := probe.Evaluate(ctx, checks, cfg.Probe.CheckTimeout); !rep.Ready() {
		return fmt.Errorf("dependencies are not ready: %v", rep.Checks)
	}

	orgs, err := organization.NewFileProvider(cfg.OrgSettingsFile)
	if err != nil {
		return err
	}

	auditWriter := audit.NewAsyncWriter(audit.NewPGStorage(pool), audit.AsyncOptions{})
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := auditWriter.Close(closeCtx); err != nil {
			log.LogAttrs(ctx, slog.LevelWarn, "audit events not flushed", logger.Error(err))
		}
	}()

	notifier := notify.NewNotifier(
		notify.NewRedisInvalidator(rdb, cfg.CachePrefix),
		audit.NewLogger(auditWriter),
		notify.WithNotifierLogger(log),
	)
	syncer := notify.NewWebhookSyncer(
		webhook.NewSender(nil),
		orgs,
		webhook.WithTimeout(cfg.WebhookTimeout),
		webhook.WithMaxRetries(cfg.WebhookMaxRetries),
	)
	dispatcher := notify.NewDispatcher(notifier,
		notify.WithSyncer(syncer),
		notify.WithEffectTimeout(cfg.EffectTimeout),
		notify.WithDispatcherLogger(log),
	)
	defer dispatcher.Wait()

	svc := features.New(
		mongo.NewFeatureStore(db),
		mongo.NewRevisionStore(db),
		mongo.NewSafeRolloutStore(db),
		features.WithLogger(log),
		features.WithOrganizations(orgs),
		features.WithBatchConcurrency(cfg.BatchConcurrency),
	)
	runner := features.NewRunner(svc, dispatcher,
		features.WithInterval(cfg.ScanInterval),
		features.WithRunnerLogger(log),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(runner.Run(ctx))
	g.Go(reloadOnHangup(ctx, orgs, log))
	g.Go(probe.New(cfg.Probe, checks, probe.WithLogger(log)).Run(ctx))

	log.LogAttrs(ctx, slog.LevelInfo, "worker started",
		slog.Duration("scan_interval", cfg.ScanInterval),
		slog.String("org_settings_file", cfg.OrgSettingsFile),
	)
	return g.Wait()
}

// reloadOnHangup re-reads organization settings on SIGHUP.
func reloadOnHangup(ctx context.Context, orgs *organization.FileProvider, log *slog.Logger) func() error {
	return func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				if err := orgs.Reload(); err != nil {
					log.LogAttrs(ctx, slog.LevelError, "failed to reload organization settings", logger.Error(err))
					continue
				}
				log.InfoContext(ctx, "organization settings reloaded")
			}
		}
	}
}
