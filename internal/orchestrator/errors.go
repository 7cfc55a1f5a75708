package orchestrator

import "errors"

var (
	// ErrExecContextNotFound — exec context не найден.
	ErrExecContextNotFound = errors.New("exec context not found")

	// ErrExecContextNotPending — exec context уже запущен или завершён.
	ErrExecContextNotPending = errors.New("exec context is not pending")

	// ErrExecContextNotStarted — exec context не раздаёт tasks.
	ErrExecContextNotStarted = errors.New("exec context is not started")

	// ErrSourceCodeNotFound — source code exec context'а не найден.
	ErrSourceCodeNotFound = errors.New("source code not found")

	// ErrTaskNotFound — task не найден.
	ErrTaskNotFound = errors.New("task not found")

	// ErrEventDropped — событие не было обработано (прерывание или panic).
	ErrEventDropped = errors.New("event dropped")
)
