// Package app assembles the broadcast engine from configuration. The server,
// worker and campaignctl binaries all start from Open.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/ignite/line-broadcast/internal/audience"
	"github.com/ignite/line-broadcast/internal/config"
	"github.com/ignite/line-broadcast/internal/delivery"
	"github.com/ignite/line-broadcast/internal/executionlog"
	"github.com/ignite/line-broadcast/internal/line"
	"github.com/ignite/line-broadcast/internal/personalize"
	"github.com/ignite/line-broadcast/internal/pkg/distlock"
	"github.com/ignite/line-broadcast/internal/pkg/logger"
	"github.com/ignite/line-broadcast/internal/repository/postgres"
	"github.com/ignite/line-broadcast/internal/scheduler"
	"github.com/ignite/line-broadcast/internal/segmentation"
	"github.com/ignite/line-broadcast/internal/service/campaign"
)

const sweepLockKey = "scheduler:sweep"

// App holds the live connections and the wired services.
type App struct {
	Config    *config.Config
	DB        *sql.DB
	Redis     *redis.Client
	Queue     *scheduler.RedisQueue
	Campaigns *campaign.Service
}

// Open connects to PostgreSQL and Redis and wires every component.
// A missing LINE credential is not fatal: execution then fails with
// campaign.ErrNotConfigured while the rest of the API keeps working.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactEnabled())

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is not configured")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.Lifetime())

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to database", "component", "app")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		db.Close()
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("connected to redis", "component", "app", "addr", cfg.Redis.Addr)

	registry := segmentation.DefaultRegistry(cfg.Segmentation.PurchaseStatuses)
	queue := scheduler.NewRedisQueue(rdb, "")

	deps := campaign.Deps{
		Resolver:  audience.NewResolver(segmentation.NewEngine(db, registry)),
		Logs:      executionlog.New(postgres.NewExecutionLogRepo(db)),
		Scheduler: scheduler.NewService(queue, cfg.Scheduler.Queue),
		Catalog:   registry,
	}

	client, err := line.NewClient(cfg.LINE)
	switch {
	case err == nil:
		deps.Delivery = delivery.NewEngine(client,
			personalize.NewSubstituter(postgres.NewRecipientDirectory(db)),
			delivery.Options{
				ChunkSize:            cfg.Delivery.MulticastChunkSize,
				PersonalizeThreshold: cfg.Delivery.PersonalizeThreshold,
				PacingDelay:          cfg.Delivery.PacingDelay(),
			})
		deps.Quota = client
	default:
		logger.Warn("LINE client disabled", "component", "app", "error", err)
	}

	return &App{
		Config:    cfg,
		DB:        db,
		Redis:     rdb,
		Queue:     queue,
		Campaigns: campaign.NewService(postgres.NewCampaignRepo(db), deps),
	}, nil
}

// Dispatcher returns a dispatcher that fires scheduled campaigns.
func (a *App) Dispatcher() *scheduler.Dispatcher {
	return scheduler.NewDispatcher(a.Queue, a.Campaigns, a.Config.Scheduler.Queue,
		a.Config.Scheduler.PollInterval(), a.Config.Scheduler.VisibilityTimeout())
}

// Sweeper returns the recovery sweeper. Only one replica sweeps at a time.
func (a *App) Sweeper() *scheduler.Sweeper {
	cfg := a.Config.Scheduler
	return scheduler.NewSweeper(a.Queue, cfg.Queue, func() distlock.DistLock {
		return sweepLock(cfg, a.Redis, a.DB)
	})
}

func sweepLock(cfg config.SchedulerConfig, rdb *redis.Client, db *sql.DB) distlock.DistLock {
	if cfg.SweepLock == config.SweepLockPostgres {
		rdb = nil
	}
	return distlock.NewLock(rdb, db, sweepLockKey, cfg.VisibilityTimeout())
}

// RecoveryCron schedules the recovery sweep on the configured spec. The
// caller starts and stops the returned cron. Every process that dispatches
// runs one; the sweep lock keeps them from overlapping.
func (a *App) RecoveryCron(ctx context.Context) (*cron.Cron, error) {
	sweeper := a.Sweeper()
	c := cron.New()
	_, err := c.AddFunc(a.Config.Scheduler.RecoverySpec, func() {
		if _, err := sweeper.Sweep(ctx); err != nil {
			logger.Error("recovery sweep failed", "component", "app", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("recovery spec %q: %w", a.Config.Scheduler.RecoverySpec, err)
	}
	return c, nil
}

// Close releases the connections.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
