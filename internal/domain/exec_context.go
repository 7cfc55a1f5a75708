package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExecContext — экземпляр выполнения source code.
//
// Для exec context строится граф tasks. Все мутирующие события
// (назначение, завершение, сброс tasks) одного exec context
// обрабатываются последовательно.
type ExecContext struct {
	// ID — уникальный идентификатор exec context.
	ID uuid.UUID `json:"id"`

	// SourceCodeID — source code, по которому строится граф.
	SourceCodeID uuid.UUID `json:"source_code_id"`

	// State — текущее состояние.
	State ExecContextState `json:"state"`

	// Graph — сериализованный граф tasks (JSON).
	// Пуст, пока граф не построен.
	Graph json.RawMessage `json:"graph,omitempty"`

	// Error — причина перехода в ERROR.
	Error string `json:"error,omitempty"`

	// StartedAt — время окончания построения графа.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedOn — время завершения.
	CompletedOn *time.Time `json:"completed_on,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// IsFinished возвращает true, если exec context завершён.
func (ec *ExecContext) IsFinished() bool {
	return ec.State.IsTerminal()
}

// MarkStarted переводит exec context в STARTED.
func (ec *ExecContext) MarkStarted() {
	now := time.Now()
	ec.State = ExecContextStateStarted
	ec.StartedAt = &now
}

// MarkFinished переводит exec context в FINISHED.
func (ec *ExecContext) MarkFinished() {
	now := time.Now()
	ec.State = ExecContextStateFinished
	ec.CompletedOn = &now
}

// MarkError переводит exec context в ERROR с причиной.
func (ec *ExecContext) MarkError(reason string) {
	now := time.Now()
	ec.State = ExecContextStateError
	ec.CompletedOn = &now
	ec.Error = reason
}
