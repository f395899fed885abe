// Command dirctl runs maintenance tasks against the directory database:
// migrations, seeding, admin promotion, slug backfill and aggregate repair.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"casinodir/internal/config"
	"casinodir/internal/db"
	"casinodir/internal/directory"
	"casinodir/internal/domain/storage"
	"casinodir/internal/logger"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	d := deps{
		out:        os.Stdout,
		loadConfig: config.Load,
		open:       openService,
		migrate:    migrate,
	}

	if err := rootCommand(d).Run(context.Background(), args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openService(_ context.Context, cfg *config.Config) (*directory.Service, func(), error) {
	log, err := logger.New(cfg.Log.Level, cfg.Log.Dir)
	if err != nil {
		return nil, nil, err
	}

	pool, err := db.New(cfg.DB.Addr, cfg.DB.MaxConns, cfg.DB.MaxIdleTime)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}

	svc := directory.NewFromContainer(storage.NewContainer(pool), log, directory.WithDashboardTimeout(cfg.DashboardTimeout))
	closeFn := func() {
		pool.Close()
		_ = log.Sync()
	}
	return svc, closeFn, nil
}

func migrate(ctx context.Context, cfg *config.Config) (int64, error) {
	pool, err := db.New(cfg.DB.Addr, cfg.DB.MaxConns, cfg.DB.MaxIdleTime)
	if err != nil {
		return 0, fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if err := db.Migrate(ctx, pool); err != nil {
		return 0, err
	}
	return db.MigrationVersion(ctx, pool)
}
