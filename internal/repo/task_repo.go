package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Conveyor/internal/domain"
)

// TaskRepo — репозиторий для работы с tasks.
//
// Save использует optimistic locking по колонке version.
type TaskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

const taskColumns = `
	id, exec_context_id, version, params, exec_state, core_id, assigned_on,
	completed, completed_on, function_exec_results, metrics, result_received,
	result_resource_scheduled_on, created_at`

// Create создаёт новый task.
func (r *TaskRepo) Create(ctx context.Context, task *domain.Task) error {
	query := `
		INSERT INTO tasks (id, exec_context_id, version, params, exec_state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		task.ID,
		task.ExecContextID,
		task.Version,
		task.Params,
		task.ExecState,
		task.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// FindByID возвращает task по ID.
func (r *TaskRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

// Save сохраняет task, если его версия в БД не изменилась с момента чтения.
// При успехе увеличивает task.Version.
func (r *TaskRepo) Save(ctx context.Context, task *domain.Task) error {
	query := `
		UPDATE tasks
		SET params = $3, exec_state = $4, core_id = $5, assigned_on = $6,
		    completed = $7, completed_on = $8, function_exec_results = $9,
		    metrics = $10, result_received = $11, result_resource_scheduled_on = $12,
		    version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version
	`
	var version int64
	err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.Version,
		task.Params,
		task.ExecState,
		nullUUID(task.CoreID),
		task.AssignedOn,
		task.Completed,
		task.CompletedOn,
		nullString(task.FunctionExecResults),
		nullString(task.Metrics),
		task.ResultReceived,
		task.ResultResourceScheduledOn,
	).Scan(&version)

	if errors.Is(err, pgx.ErrNoRows) {
		exists, existsErr := r.exists(ctx, task.ID)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return ErrNotFound
		}
		return fmt.Errorf("%w: task %s version %d", ErrConcurrentModification, task.ID, task.Version)
	}
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	task.Version = version
	return nil
}

// DeleteByID удаляет task.
func (r *TaskRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByExecContextID удаляет все tasks exec context'а.
func (r *TaskRepo) DeleteByExecContextID(ctx context.Context, execContextID uuid.UUID) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE exec_context_id = $1`, execContextID)
	if err != nil {
		return 0, fmt.Errorf("delete tasks: %w", err)
	}
	return result.RowsAffected(), nil
}

// ListByExecContextID возвращает все tasks exec context'а.
func (r *TaskRepo) ListByExecContextID(ctx context.Context, execContextID uuid.UUID) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE exec_context_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, execContextID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by exec_context_id: %w", err)
	}
	return collectTasks(rows)
}

// ExecStates возвращает состояния всех tasks exec context'а.
func (r *TaskRepo) ExecStates(ctx context.Context, execContextID uuid.UUID) (map[uuid.UUID]domain.ExecState, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, exec_state FROM tasks WHERE exec_context_id = $1
	`, execContextID)
	if err != nil {
		return nil, fmt.Errorf("list exec states: %w", err)
	}
	defer rows.Close()

	states := make(map[uuid.UUID]domain.ExecState)
	for rows.Next() {
		var id uuid.UUID
		var state string
		if err := rows.Scan(&id, &state); err != nil {
			return nil, fmt.Errorf("scan exec state: %w", err)
		}
		states[id] = domain.ParseExecState(state)
	}
	return states, rows.Err()
}

// ListStaleAssigned возвращает tasks в IN_PROGRESS без результата,
// назначенные раньше before.
func (r *TaskRepo) ListStaleAssigned(ctx context.Context, before time.Time, limit int) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE exec_state = 'IN_PROGRESS' AND completed = FALSE AND assigned_on < $1
		ORDER BY assigned_on ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale tasks: %w", err)
	}
	return collectTasks(rows)
}

func (r *TaskRepo) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check task: %w", err)
	}
	return exists, nil
}

// --- Helpers ---

func collectTasks(rows pgx.Rows) ([]domain.Task, error) {
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// scanTask сканирует строку в Task. pgx.Rows тоже реализует pgx.Row.
func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	var state string
	var execResults, metrics *string

	err := row.Scan(
		&task.ID,
		&task.ExecContextID,
		&task.Version,
		&task.Params,
		&state,
		&task.CoreID,
		&task.AssignedOn,
		&task.Completed,
		&task.CompletedOn,
		&execResults,
		&metrics,
		&task.ResultReceived,
		&task.ResultResourceScheduledOn,
		&task.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	task.ExecState = domain.ParseExecState(state)
	task.FunctionExecResults = derefString(execResults)
	task.Metrics = derefString(metrics)
	return &task, nil
}
