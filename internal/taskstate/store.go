package taskstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// NumberOfTries — попыток read-modify-write на одну операцию.
const NumberOfTries = 2

// TaskRepository — хранилище task'ов.
//
// Save обязан сравнить версию записи и вернуть repo.ErrConcurrentModification
// при несовпадении; при успехе Save увеличивает task.Version.
type TaskRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	Save(ctx context.Context, task *domain.Task) error
}

// Config — настройки Store.
type Config struct {
	Repo TaskRepository

	// Attempts — попыток на операцию (по умолчанию NumberOfTries).
	Attempts int

	// Stripes — размер таблицы блокировок.
	Stripes int

	Logger  *slog.Logger
	Metrics *telemetry.Metrics

	// Now — источник времени (для тестов).
	Now func() time.Time
}

// Store — охраняемые операции над task'ами.
type Store struct {
	repo     TaskRepository
	attempts int
	locks    *stripedLock
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	now      func() time.Time
}

// New создаёт Store.
func New(cfg Config) *Store {
	if cfg.Attempts <= 0 {
		cfg.Attempts = NumberOfTries
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Store{
		repo:     cfg.Repo,
		attempts: cfg.Attempts,
		locks:    newStripedLock(cfg.Stripes),
		logger:   cfg.Logger.With("component", "taskstate"),
		metrics:  cfg.Metrics,
		now:      cfg.Now,
	}
}

// SetParams перезаписывает параметры task'а.
func (s *Store) SetParams(ctx context.Context, taskID uuid.UUID, params string) (*domain.Task, error) {
	return s.mutate(ctx, "set_params", taskID, func(t *domain.Task) error {
		t.Params = params
		return nil
	})
}

// Assign назначает task ядру processor'а.
//
// Назначить можно только task в состоянии NONE: повторное назначение
// возвращает ErrTaskAlreadyAssigned.
func (s *Store) Assign(ctx context.Context, taskID, coreID uuid.UUID) (*domain.Task, error) {
	return s.mutate(ctx, "assign", taskID, func(t *domain.Task) error {
		if t.ExecState != domain.ExecStateNone {
			return fmt.Errorf("%w: task %s is %s", ErrTaskAlreadyAssigned, t.ID, t.ExecState)
		}
		t.Assign(coreID, s.now())
		return nil
	})
}

// MarkCompleted сохраняет результат выполнения.
// Итоговое состояние (OK или ERROR) определяется по результатам функций.
func (s *Store) MarkCompleted(ctx context.Context, result domain.TaskExecResult) (*domain.Task, error) {
	return s.mutate(ctx, "mark_completed", result.TaskID, func(t *domain.Task) error {
		if t.ExecState == domain.ExecStateNone {
			return fmt.Errorf("%w: task %s", ErrTaskWasReset, t.ID)
		}
		t.Complete(result, s.now())
		if t.ExecState == domain.ExecStateError {
			s.logger.Warn("task finished with error", "task_id", t.ID)
		}
		return nil
	})
}

// Reset возвращает task в NONE и очищает результаты выполнения.
func (s *Store) Reset(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	s.logger.Info("resetting task", "task_id", taskID)
	return s.mutate(ctx, "reset", taskID, func(t *domain.Task) error {
		t.Reset()
		return nil
	})
}

// SetResultReceived отмечает, что результат task'а получен dispatcher'ом.
//
// Ожидаемые исходы (TASK_NOT_FOUND, TASK_WAS_RESET) возвращаются статусом
// без ошибки. CONCURRENT_MODIFICATION_EXHAUSTED сопровождается
// ErrConcurrentModification.
func (s *Store) SetResultReceived(ctx context.Context, taskID uuid.UUID, value bool) (domain.UploadStatus, error) {
	_, err := s.mutate(ctx, "set_result_received", taskID, func(t *domain.Task) error {
		if t.ExecState == domain.ExecStateNone {
			s.logger.Warn("task was reset, can't set result received", "task_id", t.ID)
			return ErrTaskWasReset
		}
		t.ResultReceived = value
		return nil
	})

	switch {
	case err == nil:
		return domain.UploadStatusOK, nil
	case errors.Is(err, ErrTaskNotFound):
		return domain.UploadStatusTaskNotFound, nil
	case errors.Is(err, ErrTaskWasReset):
		return domain.UploadStatusTaskWasReset, nil
	case errors.Is(err, ErrConcurrentModification):
		return domain.UploadStatusConcurrentModificationExhausted, err
	default:
		return "", err
	}
}

// mutate — цикл read-modify-write под lock'ом task'а.
// Ошибка fn прерывает операцию без сохранения и без повтора.
func (s *Store) mutate(ctx context.Context, op string, taskID uuid.UUID, fn func(*domain.Task) error) (*domain.Task, error) {
	unlock := s.locks.lock(taskID)
	defer unlock()

	logger := s.logger.With("op", op, "task_id", taskID)

	for attempt := 1; attempt <= s.attempts; attempt++ {
		task, err := s.repo.FindByID(ctx, taskID)
		if errors.Is(err, repo.ErrNotFound) {
			logger.Warn("task wasn't found")
			s.metrics.TaskOp(op, "not_found")
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		if err != nil {
			s.metrics.TaskOp(op, "error")
			return nil, fmt.Errorf("find task: %w", err)
		}

		if err := fn(task); err != nil {
			s.metrics.TaskOp(op, "rejected")
			return nil, err
		}

		err = s.repo.Save(ctx, task)
		switch {
		case err == nil:
			s.metrics.TaskOp(op, "ok")
			return task, nil
		case errors.Is(err, repo.ErrConcurrentModification):
			logger.Debug("concurrent modification, retrying", "attempt", attempt)
			continue
		case errors.Is(err, repo.ErrNotFound):
			logger.Warn("task was deleted concurrently")
			s.metrics.TaskOp(op, "not_found")
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		default:
			s.metrics.TaskOp(op, "error")
			return nil, fmt.Errorf("save task: %w", err)
		}
	}

	logger.Error("concurrent modification retries exhausted", "attempts", s.attempts)
	s.metrics.TaskOp(op, "exhausted")
	return nil, fmt.Errorf("%w: task %s after %d attempts", ErrConcurrentModification, taskID, s.attempts)
}
