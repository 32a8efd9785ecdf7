package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"rendezvous-api/internal/config"
	"rendezvous-api/internal/logger"
	"rendezvous-api/internal/store/postgres"
)

type Command string

const (
	CommandServe   Command = "serve"
	CommandMigrate Command = "migrate"
)

// ParseCommand returns the subcommand in args, defaulting to serve.
func ParseCommand(args []string) Command {
	if len(args) > 0 && args[0] == string(CommandMigrate) {
		return CommandMigrate
	}
	return CommandServe
}

// Run loads config, sets up logging and runs the requested subcommand until
// ctx is cancelled.
func Run(ctx context.Context, w io.Writer, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.SetDefault(w, cfg.Env)

	cmd := ParseCommand(args)
	log.Info("starting",
		slog.String("command", string(cmd)),
		slog.String("env", cfg.Env),
		slog.String("store", cfg.StoreDriver),
	)

	switch cmd {
	case CommandMigrate:
		if cfg.StoreDriver != config.DriverPostgres {
			return fmt.Errorf("migrate only applies to STORE_DRIVER=postgres, got %q", cfg.StoreDriver)
		}
		if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		log.Info("migrations applied")
		return nil
	default:
		a, err := New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Serve(ctx)
	}
}
