package domain

import (
	"time"

	"github.com/google/uuid"
)

// Task — единица работы внутри exec context.
//
// Task создаётся GraphBuilder'ом при построении графа, назначается ядру
// processor'а (Assign), завершается отчётом processor'а (Complete) и может
// быть сброшен обратно в NONE (Reset).
//
// Инварианты после любой операции TaskStateStore:
//   - ExecState == NONE ⇒ CoreID == nil, AssignedOn == nil, !Completed
//   - Completed ⇒ ExecState ∈ {OK, ERROR}
//   - ResultReceived ⇒ ExecState != NONE
//
// После Reset ResultResourceScheduledOn == nil: загрузка результата не
// запланирована (в БД — NULL, нулевой момент времени не используется).
type Task struct {
	// ID — уникальный идентификатор task.
	ID uuid.UUID `json:"id"`

	// ExecContextID — exec context, к которому принадлежит task.
	ExecContextID uuid.UUID `json:"exec_context_id"`

	// Version — версия записи для optimistic locking.
	// Увеличивается на 1 при каждом успешном сохранении.
	Version int64 `json:"version"`

	// Params — параметры task в формате YAML (см. TaskParams).
	Params string `json:"params"`

	// ExecState — текущее состояние выполнения.
	ExecState ExecState `json:"exec_state"`

	// CoreID — ядро processor'а, которому назначен task.
	CoreID *uuid.UUID `json:"core_id,omitempty"`

	// AssignedOn — время назначения.
	AssignedOn *time.Time `json:"assigned_on,omitempty"`

	// Completed — processor прислал результат выполнения.
	Completed bool `json:"completed"`

	// CompletedOn — время получения результата.
	CompletedOn *time.Time `json:"completed_on,omitempty"`

	// FunctionExecResults — результаты запуска функций (JSON, см. FunctionExec).
	FunctionExecResults string `json:"function_exec_results,omitempty"`

	// Metrics — метрики выполнения, присланные processor'ом.
	Metrics string `json:"metrics,omitempty"`

	// ResultReceived — выходные данные task загружены на dispatcher.
	ResultReceived bool `json:"result_received"`

	// ResultResourceScheduledOn — когда processor запланировал загрузку результата.
	ResultResourceScheduledOn *time.Time `json:"result_resource_scheduled_on,omitempty"`

	// CreatedAt — время создания task.
	CreatedAt time.Time `json:"created_at"`
}

// TaskExecResult — отчёт processor'а о выполнении task.
type TaskExecResult struct {
	TaskID  uuid.UUID `json:"task_id"`
	Result  string    `json:"result"`
	Metrics string    `json:"metrics,omitempty"`
}

// Duration возвращает время от назначения до получения результата.
func (t *Task) Duration() time.Duration {
	if t.AssignedOn == nil || t.CompletedOn == nil {
		return 0
	}
	return t.CompletedOn.Sub(*t.AssignedOn)
}

// IsFinished возвращает true, если task завершён.
func (t *Task) IsFinished() bool {
	return t.ExecState.IsTerminal()
}

// Assign назначает task ядру processor'а.
func (t *Task) Assign(coreID uuid.UUID, now time.Time) {
	t.CoreID = &coreID
	t.AssignedOn = &now
	t.ExecState = ExecStateInProgress
	t.ResultResourceScheduledOn = &now
}

// Complete записывает результат выполнения.
// Состояние (OK или ERROR) определяется по результатам функций.
func (t *Task) Complete(result TaskExecResult, now time.Time) {
	t.FunctionExecResults = result.Result
	t.Metrics = result.Metrics
	t.Completed = true
	t.CompletedOn = &now
	t.ExecState = ExecStateError
	if exec, err := ParseFunctionExec(result.Result); err == nil && exec.AllFunctionsAreOk() {
		t.ExecState = ExecStateOK
	}
}

// Reset возвращает task в исходное состояние NONE.
func (t *Task) Reset() {
	t.FunctionExecResults = ""
	t.Metrics = ""
	t.CoreID = nil
	t.AssignedOn = nil
	t.Completed = false
	t.CompletedOn = nil
	t.ExecState = ExecStateNone
	t.ResultReceived = false
	t.ResultResourceScheduledOn = nil
}
