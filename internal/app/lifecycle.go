package app

import (
	"context"
	"time"

	"heartlink.io/trustengine/internal/pkg/logger"
)

// Start launches background services (the maintenance scheduler).
func (a *Application) Start(_ context.Context) error {
	if a.Scheduler != nil {
		a.Scheduler.Start()
	}
	return nil
}

// Shutdown gracefully shuts down all application components.
func (a *Application) Shutdown() {
	if a.Scheduler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		a.Scheduler.Stop(ctx)
		cancel()
	}
	if a.Pools != nil {
		a.Pools.Shutdown()
	}
	a.close()
	logger.Info("application stopped")
}

// close releases infrastructure clients. Safe on a partially built app.
func (a *Application) close() {
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	if a.pgPool != nil {
		a.pgPool.Close()
	}
}
