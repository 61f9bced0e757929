package workerapp

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ebuka-odih/nyem-sub003/internal/config"
	"github.com/ebuka-odih/nyem-sub003/internal/jobs/cleanup"
	pgrepo "github.com/ebuka-odih/nyem-sub003/internal/repo/postgres"
)

const defaultCleanupInterval = time.Hour

// Job is one periodic unit of background work.
type Job interface {
	Run(ctx context.Context) error
}

type App struct {
	logger     *zap.Logger
	postgres   *pgxpool.Pool
	cleanupJob Job
	interval   time.Duration
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	pool, err := pgrepo.NewPool(ctx, pgrepo.PoolConfig{
		DSN:      cfg.Postgres.DSN,
		MaxConns: cfg.Postgres.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("init postgres for worker app: %w", err)
	}

	app := NewWithJob(cleanup.New(pgrepo.NewSwipeRepo(pool), cfg.Cleanup.WishlistTTL, logger), cfg.Cleanup.Interval, logger)
	app.postgres = pool
	return app, nil
}

// NewWithJob builds a worker around an existing job.
func NewWithJob(job Job, interval time.Duration, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	return &App{
		logger:     logger,
		cleanupJob: job,
		interval:   interval,
	}
}

// Run executes the cleanup job immediately and then on every tick until ctx
// is done. A failed run is logged and retried on the next tick.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("worker app started", zap.Duration("cleanup_interval", a.interval))
	if a.cleanupJob == nil {
		<-ctx.Done()
		return nil
	}

	a.runOnce(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("worker app stopped")
			return nil
		case <-ticker.C:
			a.runOnce(ctx)
		}
	}
}

func (a *App) runOnce(ctx context.Context) {
	if err := a.cleanupJob.Run(ctx); err != nil && ctx.Err() == nil {
		a.logger.Error("cleanup run failed", zap.Error(err))
	}
}

func (a *App) Close() {
	if a.postgres != nil {
		a.postgres.Close()
	}
}
