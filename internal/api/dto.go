package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Source code DTOs

// SourceCodeResponse — ответ с source code.
type SourceCodeResponse struct {
	ID        uuid.UUID             `json:"id"`
	UID       string                `json:"uid"`
	Processes int                   `json:"processes"`
	Spec      domain.SourceCodeSpec `json:"spec"`
	CreatedAt time.Time             `json:"created_at"`
}

// SourceCodeFromDomain конвертирует domain.SourceCode в SourceCodeResponse.
func SourceCodeFromDomain(sc domain.SourceCode) SourceCodeResponse {
	return SourceCodeResponse{
		ID:        sc.ID,
		UID:       sc.UID,
		Processes: len(sc.Spec.Source.Processes),
		Spec:      sc.Spec,
		CreatedAt: sc.CreatedAt,
	}
}

// Exec context DTOs

// ExecContextResponse — ответ с exec context.
type ExecContextResponse struct {
	ID           uuid.UUID       `json:"id"`
	SourceCodeID uuid.UUID       `json:"source_code_id"`
	State        string          `json:"state"`
	Graph        json.RawMessage `json:"graph,omitempty"`
	Error        string          `json:"error,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedOn  *time.Time      `json:"completed_on,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ExecContextFromDomain конвертирует domain.ExecContext в ExecContextResponse.
func ExecContextFromDomain(ec domain.ExecContext) ExecContextResponse {
	return ExecContextResponse{
		ID:           ec.ID,
		SourceCodeID: ec.SourceCodeID,
		State:        string(ec.State),
		Graph:        ec.Graph,
		Error:        ec.Error,
		StartedAt:    ec.StartedAt,
		CompletedOn:  ec.CompletedOn,
		CreatedAt:    ec.CreatedAt,
	}
}

// Task DTOs

// TaskResponse — ответ с task.
type TaskResponse struct {
	ID             uuid.UUID  `json:"id"`
	ExecContextID  uuid.UUID  `json:"exec_context_id"`
	Version        int64      `json:"version"`
	ExecState      string     `json:"exec_state"`
	CoreID         *uuid.UUID `json:"core_id,omitempty"`
	AssignedOn     *time.Time `json:"assigned_on,omitempty"`
	Completed      bool       `json:"completed"`
	CompletedOn    *time.Time `json:"completed_on,omitempty"`
	ResultReceived bool       `json:"result_received"`
	Params         string     `json:"params,omitempty"`
	Result         string     `json:"result,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
func TaskFromDomain(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:             t.ID,
		ExecContextID:  t.ExecContextID,
		Version:        t.Version,
		ExecState:      string(t.ExecState),
		CoreID:         t.CoreID,
		AssignedOn:     t.AssignedOn,
		Completed:      t.Completed,
		CompletedOn:    t.CompletedOn,
		ResultReceived: t.ResultReceived,
		Params:         t.Params,
		Result:         t.FunctionExecResults,
		CreatedAt:      t.CreatedAt,
	}
}

// Southbridge DTOs

// ExchangeRequest — запрос processor'а к dispatcher'у.
type ExchangeRequest struct {
	ProcessorID string        `json:"processor_id"`
	Cores       []CoreRequest `json:"cores"`
}

// CoreRequest — состояние одного ядра processor'а.
type CoreRequest struct {
	CoreID uuid.UUID `json:"core_id"`

	// RequestTask — ядро свободно и готово принять task.
	RequestTask bool `json:"request_task"`

	// Reports — результаты выполненных tasks.
	Reports []TaskReport `json:"reports,omitempty"`
}

// TaskReport — результат выполнения task'а.
type TaskReport struct {
	TaskID        uuid.UUID `json:"task_id"`
	ExecContextID uuid.UUID `json:"exec_context_id"`
	Result        string    `json:"result"`
	Metrics       string    `json:"metrics,omitempty"`
}

// ExchangeResponse — ответ dispatcher'а processor'у.
type ExchangeResponse struct {
	Cores []CoreResponse `json:"cores"`
}

// CoreResponse — ответ для одного ядра.
type CoreResponse struct {
	CoreID uuid.UUID `json:"core_id"`

	// Assigned — назначенный ядру task.
	Assigned *AssignedTask `json:"assigned,omitempty"`

	// Accepted — отчёты приняты, результат можно загружать.
	Accepted []uuid.UUID `json:"accepted,omitempty"`

	// Rejected — отчёты отвергнуты (task сброшен или удалён).
	Rejected []uuid.UUID `json:"rejected,omitempty"`
}

// AssignedTask — task для выполнения.
type AssignedTask struct {
	TaskID        uuid.UUID `json:"task_id"`
	ExecContextID uuid.UUID `json:"exec_context_id"`
	Params        string    `json:"params"`
}

// UploadResponse — результат загрузки результата task'а.
type UploadResponse struct {
	TaskID uuid.UUID           `json:"task_id"`
	Status domain.UploadStatus `json:"status"`
}
