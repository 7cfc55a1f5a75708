package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Conveyor/internal/domain"
)

// ExecContextRepo — репозиторий для работы с exec contexts.
type ExecContextRepo struct {
	pool *pgxpool.Pool
}

// NewExecContextRepo создаёт новый ExecContextRepo.
func NewExecContextRepo(pool *pgxpool.Pool) *ExecContextRepo {
	return &ExecContextRepo{pool: pool}
}

const execContextColumns = `
	id, source_code_id, state, graph, error, started_at, completed_on, created_at`

// ExecContextFilter — параметры фильтрации exec contexts.
type ExecContextFilter struct {
	SourceCodeID *uuid.UUID
	State        domain.ExecContextState
	Limit        int
	Offset       int
}

// Create создаёт новый exec context.
func (r *ExecContextRepo) Create(ctx context.Context, ec *domain.ExecContext) error {
	query := `
		INSERT INTO exec_contexts (id, source_code_id, state, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query,
		ec.ID,
		ec.SourceCodeID,
		ec.State,
		ec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert exec context: %w", err)
	}
	return nil
}

// GetByID возвращает exec context по ID.
func (r *ExecContextRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ExecContext, error) {
	query := `SELECT ` + execContextColumns + ` FROM exec_contexts WHERE id = $1`
	return scanExecContext(r.pool.QueryRow(ctx, query, id))
}

// List возвращает exec contexts с фильтрацией.
func (r *ExecContextRepo) List(ctx context.Context, filter ExecContextFilter) ([]domain.ExecContext, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	query := `SELECT ` + execContextColumns + `
		FROM exec_contexts
		WHERE ($1::uuid IS NULL OR source_code_id = $1)
		  AND ($2::text IS NULL OR state = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.SourceCodeID),
		nullString(string(filter.State)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list exec contexts: %w", err)
	}
	return collectExecContexts(rows)
}

// ListByState возвращает exec contexts в заданном состоянии, старые первыми.
func (r *ExecContextRepo) ListByState(ctx context.Context, state domain.ExecContextState, limit int) ([]domain.ExecContext, error) {
	query := `SELECT ` + execContextColumns + `
		FROM exec_contexts
		WHERE state = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, state, limit)
	if err != nil {
		return nil, fmt.Errorf("list exec contexts by state: %w", err)
	}
	return collectExecContexts(rows)
}

// Update сохраняет состояние, граф и временные метки exec context'а.
func (r *ExecContextRepo) Update(ctx context.Context, ec *domain.ExecContext) error {
	query := `
		UPDATE exec_contexts
		SET state = $2, graph = $3, error = $4, started_at = $5, completed_on = $6
		WHERE id = $1
	`
	var graph []byte
	if len(ec.Graph) > 0 {
		graph = ec.Graph
	}
	result, err := r.pool.Exec(ctx, query,
		ec.ID,
		ec.State,
		graph,
		nullString(ec.Error),
		ec.StartedAt,
		ec.CompletedOn,
	)
	if err != nil {
		return fmt.Errorf("update exec context: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateState переводит exec context из одного состояния в другое.
// Возвращает ErrNotFound, если exec context не в состоянии from.
func (r *ExecContextRepo) UpdateState(ctx context.Context, id uuid.UUID, from, to domain.ExecContextState) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE exec_contexts SET state = $3 WHERE id = $1 AND state = $2
	`, id, from, to)
	if err != nil {
		return fmt.Errorf("update exec context state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateGraph сохраняет сериализованный граф.
func (r *ExecContextRepo) UpdateGraph(ctx context.Context, id uuid.UUID, graph []byte) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE exec_contexts SET graph = $2 WHERE id = $1
	`, id, graph)
	if err != nil {
		return fmt.Errorf("update exec context graph: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func collectExecContexts(rows pgx.Rows) ([]domain.ExecContext, error) {
	defer rows.Close()

	var out []domain.ExecContext
	for rows.Next() {
		ec, err := scanExecContext(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ec)
	}
	return out, rows.Err()
}

func scanExecContext(row pgx.Row) (*domain.ExecContext, error) {
	var ec domain.ExecContext
	var state string
	var graph []byte
	var ecError *string

	err := row.Scan(
		&ec.ID,
		&ec.SourceCodeID,
		&state,
		&graph,
		&ecError,
		&ec.StartedAt,
		&ec.CompletedOn,
		&ec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan exec context: %w", err)
	}

	ec.State = domain.ExecContextState(state)
	ec.Graph = graph
	ec.Error = derefString(ecError)
	return &ec, nil
}
