package repository

import (
	"context"
	"database/sql"

	"pubsubnode/internal/model"
)

const executionsSchema = `
CREATE TABLE IF NOT EXISTS connector_executions (
    id           UUID PRIMARY KEY,
    resource     TEXT NOT NULL,
    operation    TEXT NOT NULL,
    project_id   TEXT NOT NULL,
    item_count   INTEGER NOT NULL,
    failed_count INTEGER NOT NULL,
    error        TEXT,
    started_at   TIMESTAMPTZ NOT NULL,
    finished_at  TIMESTAMPTZ NOT NULL
)`

type ExecutionRepository interface {
	Create(ctx context.Context, execution *model.Execution) error
	ListRecent(ctx context.Context, limit int) ([]model.Execution, error)
}

type executionRepository struct {
	db *sql.DB
}

func NewExecutionRepository(db *sql.DB) ExecutionRepository {
	return &executionRepository{db: db}
}

// EnsureSchema creates the executions table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, executionsSchema)
	return err
}

func (r *executionRepository) Create(ctx context.Context, execution *model.Execution) error {
	query := `
        INSERT INTO connector_executions (id, resource, operation, project_id, item_count, failed_count, error, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	_, err := r.db.ExecContext(
		ctx,
		query,
		execution.ID,
		execution.Resource,
		execution.Operation,
		execution.ProjectID,
		execution.ItemCount,
		execution.FailedCount,
		execution.Error,
		execution.StartedAt,
		execution.FinishedAt,
	)
	return err
}

func (r *executionRepository) ListRecent(ctx context.Context, limit int) ([]model.Execution, error) {
	query := `
        SELECT id, resource, operation, project_id, item_count, failed_count, error, started_at, finished_at
        FROM connector_executions
        ORDER BY started_at DESC
        LIMIT $1
    `
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []model.Execution
	for rows.Next() {
		var e model.Execution
		if err := rows.Scan(
			&e.ID,
			&e.Resource,
			&e.Operation,
			&e.ProjectID,
			&e.ItemCount,
			&e.FailedCount,
			&e.Error,
			&e.StartedAt,
			&e.FinishedAt,
		); err != nil {
			return nil, err
		}
		executions = append(executions, e)
	}
	return executions, rows.Err()
}

// NopExecutionRepository discards execution records. It is used when no
// database is configured.
type NopExecutionRepository struct{}

func (NopExecutionRepository) Create(context.Context, *model.Execution) error { return nil }

func (NopExecutionRepository) ListRecent(context.Context, int) ([]model.Execution, error) {
	return nil, nil
}
