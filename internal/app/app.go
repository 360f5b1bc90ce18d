package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/config"
)

// cleanupBatchSize bounds how many expired idempotency records one
// housekeeping pass deletes.
const cleanupBatchSize = 1000

// IdempotencyCleaner removes expired idempotency records. The Redis store
// expires keys natively, so only the database-backed store implements it.
type IdempotencyCleaner interface {
	CleanupExpired(ctx context.Context, now time.Time, batchSize int) (int64, error)
}

type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Server  *http.Server
	cleaner IdempotencyCleaner
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server, cleaner IdempotencyCleaner) *App {
	return &App{Config: cfg, Logger: logger, Server: server, cleaner: cleaner}
}

// RunHousekeeping sweeps expired idempotency records until the context is
// cancelled. Without it, crashed in-progress records would answer the same
// key and body with a conflict forever.
func (a *App) RunHousekeeping(ctx context.Context, interval time.Duration) {
	if a.cleaner == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := a.cleaner.CleanupExpired(ctx, time.Now().UTC(), cleanupBatchSize)
			if err != nil {
				a.Logger.Error("idempotency cleanup failed", slog.String("error", err.Error()))
				continue
			}
			if removed > 0 {
				a.Logger.Info("idempotency cleanup", slog.Int64("removed", removed))
			}
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.Server.Shutdown(ctx)
}
