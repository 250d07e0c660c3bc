package node

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"pubsubnode/internal/config"
	"pubsubnode/internal/credential"
	"pubsubnode/internal/metrics"
	"pubsubnode/internal/repository"
)

// NewFromConfig wires an Executor from the environment: metrics on reg, the
// execution history when a database is configured and Secret Manager when the
// private key lives there. The returned cleanup releases what was opened.
func NewFromConfig(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger zerolog.Logger) (*Executor, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn().Err(err).Msg("Cleanup failed")
			}
		}
	}

	m, err := metrics.New(reg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	var repo repository.ExecutionRepository = repository.NopExecutionRepository{}
	if cfg.DBConnectionString != "" {
		var db *sql.DB
		db, err = repository.Open(ctx, cfg.DBConnectionString, cfg.Environment)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, db.Close)
		if err := repository.EnsureSchema(ctx, db); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to create executions table: %w", err)
		}
		repo = repository.NewExecutionRepository(db)
		logger.Info().Msg("Execution history enabled")
	}

	var secrets credential.SecretStore
	if cfg.GooglePrivateKeySecret != "" && !cfg.IsLocal() {
		secrets, err = credential.NewSecretManagerStore(ctx)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, secrets.Close)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	exec := NewExecutor(NewTransportFactory(cfg, secrets), OptionsFromConfig(cfg), validate, repo, m, logger)
	return exec, cleanup, nil
}
