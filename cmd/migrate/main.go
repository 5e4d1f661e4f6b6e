package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/wayneindustries/resourcemgmt/db"
	"github.com/wayneindustries/resourcemgmt/internal/app/migrate"
	"github.com/wayneindustries/resourcemgmt/pkg/config"
	"github.com/wayneindustries/resourcemgmt/pkg/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var timeout time.Duration
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply or inspect database schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "command timeout")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRunner(cmd.Context(), timeout, func(ctx context.Context, r migrate.Runner) error {
				return r.Ensure(ctx)
			})
		},
	}
	status := &cobra.Command{
		Use:   "status",
		Short: "Print applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRunner(cmd.Context(), timeout, func(ctx context.Context, r migrate.Runner) error {
				return r.Status(ctx)
			})
		},
	}
	var target int64
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back one migration, or down to --target",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRunner(cmd.Context(), timeout, func(ctx context.Context, r migrate.Runner) error {
				return r.Down(ctx, target)
			})
		},
	}
	down.Flags().Int64Var(&target, "target", 0, "version to roll back to")

	root.AddCommand(up, status, down)
	return root
}

func withRunner(parent context.Context, timeout time.Duration, fn func(context.Context, migrate.Runner) error) error {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log := logger.New("migrate", logger.ParseLevel(cfg.LogLevel))

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	runner, err := migrate.New(pool, cfg.DatabaseURL, db.Migrations, log)
	if err != nil {
		pool.Close()
		return fmt.Errorf("configure migration runner: %w", err)
	}
	defer runner.Close()

	started := time.Now()
	if err := fn(ctx, runner); err != nil {
		return err
	}
	log.Info("migration command completed", slog.Duration("elapsed", time.Since(started)))
	return nil
}
