package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

var rootCmd = &cobra.Command{
	Use:           "helpdesk-service",
	Short:         "Helpdesk ticket lifecycle, audit and chat service",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(usersCmd)
}

// runtime holds what every command needs after startup.
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	pg     *persistence.Postgres
	store  *repository.Store
	tx     *repository.PgTxRunner
}

func bootstrap(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &runtime{
		cfg:    cfg,
		logger: logger,
		pg:     pg,
		store:  repository.NewStore(pg.Pool),
		tx:     repository.NewPgTxRunner(pg.Pool),
	}, nil
}

func (r *runtime) Close() {
	r.pg.Close()
	_ = r.logger.Sync()
}
