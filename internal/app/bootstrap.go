// Package app is the composition root: bootstrap stays orchestration-only.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"heartlink.io/trustengine/internal/api/handlers"
	"heartlink.io/trustengine/internal/audit"
	"heartlink.io/trustengine/internal/config"
	"heartlink.io/trustengine/internal/lifecycle"
	"heartlink.io/trustengine/internal/moderation"
	"heartlink.io/trustengine/internal/pkg/worker"
	"heartlink.io/trustengine/internal/ratelimit"
	"heartlink.io/trustengine/internal/scheduler"
	"heartlink.io/trustengine/internal/userdata"
)

// Application holds composed application dependencies.
type Application struct {
	Config    *config.Config
	Router    *gin.Engine
	Pools     *worker.Pools
	Scheduler *scheduler.Scheduler

	redisClient *redis.Client
	pgPool      *pgxpool.Pool
}

// Bootstrap initializes all dependencies using manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		AuditPoolSize:     cfg.Worker.AuditPoolSize,
		LifecyclePoolSize: cfg.Worker.LifecyclePoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	app := &Application{Config: cfg, Pools: pools}

	// Rate limiting: shared Redis counters when configured, in-process
	// counters otherwise.
	var counterStore ratelimit.CounterStore
	var memCounters *ratelimit.MemoryStore
	if cfg.Redis.Addr != "" {
		app.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := app.redisClient.Ping(ctx).Err(); err != nil {
			app.close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		counterStore = ratelimit.NewRedisStore(app.redisClient)
	} else {
		memCounters = ratelimit.NewMemoryStore()
		counterStore = memCounters
	}
	limiter := ratelimit.NewLimiter(counterStore, policiesFromConfig(cfg.RateLimit))

	// Audit: durable Postgres ledger when configured.
	var auditStore audit.Store
	if cfg.Database.URL != "" {
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("parse database url: %w", err)
		}
		poolCfg.MaxConns = cfg.Database.MaxConns
		poolCfg.MinConns = cfg.Database.MinConns
		app.pgPool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("connect database: %w", err)
		}
		auditStore = audit.NewPgStore(app.pgPool)
	} else {
		auditStore = audit.NewMemoryStore()
	}
	ledger := audit.NewLedger(auditStore, pools, audit.Config{
		Retention:        cfg.Audit.Retention,
		DefaultPageSize:  cfg.Audit.DefaultPageSize,
		MaxPageSize:      cfg.Audit.MaxPageSize,
		AnomalyLoginIPs:  cfg.Audit.AnomalyLoginIPs,
		AnomalyBurstSize: cfg.Audit.AnomalyBurstSize,
	})

	users := userdata.NewStore()

	// Moderation. No image classifier is wired by default: classification
	// fails safe and rejected uploads land in the human review queue.
	engine := moderation.NewEngine(moderation.Config{
		NSFWThreshold:             cfg.Moderation.NSFWThreshold,
		EscalationReportThreshold: cfg.Moderation.EscalationReportThreshold,
	}, moderation.DefaultPatterns(), nil, users, ledger)
	reviews := moderation.NewReviewQueue(users, ledger)

	manager := lifecycle.NewManager(lifecycle.Config{
		ExportExpiry: cfg.Lifecycle.ExportExpiry,
		GracePeriod:  cfg.Lifecycle.GracePeriod,
	}, lifecycle.Deps{
		Exports:   lifecycle.NewMemoryExportStore(),
		Deletions: lifecycle.NewMemoryDeletionStore(),
		Users:     users,
		Collector: users,
		Uploader:  lifecycle.NewMemoryUploader(),
		Purger:    users,
		Cleaner:   reviews,
		Ledger:    ledger,
		Pools:     pools,
	})

	// Counter cleanup only matters for the memory store; a nil cleaner
	// skips the job.
	var cleaner scheduler.CounterCleaner
	if memCounters != nil {
		cleaner = memCounters
	}
	sched, err := scheduler.New(scheduler.Config{
		SweepSchedule: cfg.Lifecycle.SweepSchedule,
		PurgeSchedule: cfg.Audit.PurgeSchedule,
	}, manager, ledger, cleaner)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("init scheduler: %w", err)
	}
	app.Scheduler = sched

	server := handlers.NewServer(handlers.Deps{
		Limiter:   limiter,
		Ledger:    ledger,
		Engine:    engine,
		Reviews:   reviews,
		Lifecycle: manager,
		Pools:     pools,
	})
	app.Router = newRouter(cfg, server, limiter)

	return app, nil
}

func policiesFromConfig(cfg config.RateLimitConfig) []ratelimit.Policy {
	return []ratelimit.Policy{
		{Name: ratelimit.PolicyAuth, Points: cfg.Auth.Points, Window: cfg.Auth.Window, Block: cfg.Auth.Block},
		{Name: ratelimit.PolicyAPI, Points: cfg.API.Points, Window: cfg.API.Window, Block: cfg.API.Block},
		{Name: ratelimit.PolicyUpload, Points: cfg.Upload.Points, Window: cfg.Upload.Window, Block: cfg.Upload.Block},
		{Name: ratelimit.PolicyMessage, Points: cfg.Message.Points, Window: cfg.Message.Window, Block: cfg.Message.Block},
		{Name: ratelimit.PolicyMatch, Points: cfg.Match.Points, Window: cfg.Match.Window, Block: cfg.Match.Block},
	}
}
