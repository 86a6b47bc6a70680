// Package main runs the recurrence, reminder and notification engine: the
// reminder scheduler, the notification dispatcher, the recurring task
// regenerator and the outbox relay, plus a small ops HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/config"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/platform/logger"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/redact"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("engine exited with error", "error", redact.Error(err))
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	configPath string
	envFile    string
	migrate    string
}

func parseFlags(args []string) (options, error) {
	var o options
	flags := pflag.NewFlagSet("engine", pflag.ContinueOnError)
	flags.StringVarP(&o.configPath, "config", "c", "", "path to a YAML config file (default ./config.yaml if present)")
	flags.StringVar(&o.envFile, "env-file", ".env", "dotenv file loaded before configuration, ignored if missing")
	flags.StringVar(&o.migrate, "migrate", "", "run a migration command (up, down, status, version, redo, reset) and exit")

	if err := flags.Parse(args); err != nil {
		return options{}, err
	}
	if o.migrate != "" && !isMigrateCommand(o.migrate) {
		return options{}, fmt.Errorf("unknown migrate command %q", o.migrate)
	}
	return o, nil
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	if err := loadEnvFile(opts.envFile); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"bus_driver", cfg.Bus.Driver,
		"ledger_driver", cfg.Ledger.Driver,
		"lease_driver", cfg.Lease.Driver,
		"database", redact.URL(cfg.Database.URL))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := setupAppDatabase(ctx, cfg.Database, log)
	if err != nil {
		return err
	}

	if opts.migrate != "" {
		defer func() { _ = db.Close() }()
		return runMigrations(ctx, db, opts.migrate, log)
	}

	app, err := newApplication(ctx, cfg, log, db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
