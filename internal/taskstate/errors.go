package taskstate

import "errors"

var (
	// ErrTaskNotFound — task отсутствует в хранилище.
	ErrTaskNotFound = errors.New("task not found")

	// ErrConcurrentModification — попытки сохранить task исчерпаны
	// из-за конфликтов версий.
	ErrConcurrentModification = errors.New("concurrent modification retries exhausted")

	// ErrTaskAlreadyAssigned — task уже назначен или завершён.
	ErrTaskAlreadyAssigned = errors.New("task already assigned")

	// ErrTaskWasReset — task сброшен в NONE, пока шла операция.
	ErrTaskWasReset = errors.New("task was reset")
)
