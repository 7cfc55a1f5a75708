package engine

import (
	"errors"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Ошибки валидации source code.
var (
	// ErrEmptyProcesses — source code не содержит процессов.
	ErrEmptyProcesses = errors.New("source code has no processes")

	// ErrEmptyUID — у source code нет uid.
	ErrEmptyUID = errors.New("source code has empty uid")

	// ErrEmptyProcessCode — процесс без кода.
	ErrEmptyProcessCode = errors.New("process has empty code")

	// ErrDuplicateProcessCode — несколько процессов с одинаковым кодом.
	ErrDuplicateProcessCode = errors.New("duplicate process code")

	// ErrEmptyFunctionCode — процесс не ссылается на функцию.
	ErrEmptyFunctionCode = errors.New("process has empty function code")

	// ErrUnknownFunctionContext — неизвестный контекст функции.
	ErrUnknownFunctionContext = errors.New("unknown function context")

	// ErrTooManyLevels — вложенные процессы внутри вложенных процессов.
	ErrTooManyLevels = errors.New("too many levels of sub-processes")
)

// Ошибки графа.
var (
	// ErrUnknownVertex — ребро ссылается на вершину, которой нет в графе.
	ErrUnknownVertex = errors.New("unknown vertex")
)

// Ошибки построения графа.
var (
	// ErrProducingFailed — создание tasks для процесса завершилось не OK.
	ErrProducingFailed = errors.New("task producing failed")
)

// ValidationError — ошибка валидации с контекстом процесса.
type ValidationError struct {
	Process string // код процесса, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Process != "" {
		return "process " + e.Process + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(process, field, message string, err error) *ValidationError {
	return &ValidationError{
		Process: process,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// ProducingError — процесс не удалось развернуть в tasks.
type ProducingError struct {
	Process string
	Status  domain.ProducingStatus
	Err     error
}

// Error реализует интерфейс error.
func (e *ProducingError) Error() string {
	msg := "process " + e.Process + ": " + string(e.Status)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is позволяет проверять errors.Is(err, ErrProducingFailed).
func (e *ProducingError) Is(target error) bool {
	return target == ErrProducingFailed
}

// Unwrap возвращает причину.
func (e *ProducingError) Unwrap() error {
	return e.Err
}
