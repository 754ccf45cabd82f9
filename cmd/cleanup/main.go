// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/carterperez-dev/arphoto/backend/internal/config"
	"github.com/carterperez-dev/arphoto/backend/internal/core"
	"github.com/carterperez-dev/arphoto/backend/internal/reset"
	"github.com/carterperez-dev/arphoto/backend/internal/throttle"
)

// cleanup is meant for cron. It purges expired reset codes and attempt
// records older than the block window.
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	timeout := flag.Duration("timeout", time.Minute, "overall deadline")
	flag.Parse()

	if err := run(*configPath, *timeout); err != nil {
		slog.Error("cleanup failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // process exit

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redis.Close() //nolint:errcheck // process exit

	store, err := throttle.NewStore(cfg.Throttle.Backend, db.DB, redis.Client)
	if err != nil {
		return err
	}
	limiter := throttle.NewLimiter(store, cfg.Throttle)

	// Request-time collaborators are unused by the purge.
	resets := reset.NewService(
		reset.NewRepository(db.DB),
		nil,
		nil,
		limiter,
		reset.NewLogMailer(slog.Default()),
		cfg.Reset,
	)

	codes, err := resets.PurgeExpired(ctx)
	if err != nil {
		return err
	}

	attempts, err := limiter.Purge(ctx)
	if err != nil {
		return err
	}

	slog.Info("cleanup complete",
		"reset_codes", codes,
		"attempt_records", attempts,
		"throttle_backend", cfg.Throttle.Backend,
	)
	return nil
}
