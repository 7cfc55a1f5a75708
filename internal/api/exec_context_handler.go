package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/repo"
)

// CreateExecContext создаёт exec context для source code и запускает его.
// POST /rest/v1/source-codes/{id}/exec-contexts
//
// При наличии RabbitMQ построение графа идёт асинхронно (202),
// иначе — синхронно (201).
func (h *Handler) CreateExecContext(w http.ResponseWriter, r *http.Request) {
	sourceCodeID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid source code id")
		return
	}

	sc, err := h.sourceCodes.GetByID(r.Context(), sourceCodeID)
	if HandleError(w, h.log(r.Context()), err, "source code not found") {
		return
	}

	ec := &domain.ExecContext{
		ID:           uuid.New(),
		SourceCodeID: sc.ID,
		State:        domain.ExecContextStateNone,
		CreatedAt:    time.Now().UTC(),
	}
	if HandleError(w, h.log(r.Context()), h.execContexts.Create(r.Context(), ec), "") {
		return
	}

	if h.publisher != nil {
		if err := h.publisher.PublishExecContextPending(r.Context(), ec.ID); err != nil {
			// Exec context в БД — orchestrator подхватит его через polling.
			h.log(r.Context()).Warn("failed to publish exec_context.pending",
				"exec_context_id", ec.ID,
				"error", err,
			)
		}
		Accepted(w, ExecContextFromDomain(*ec))
		return
	}

	startErr := h.dispatcher.StartExecContext(r.Context(), ec.ID)

	// Возвращаем актуальное состояние, даже если построение упало.
	current, err := h.execContexts.GetByID(r.Context(), ec.ID)
	if HandleError(w, h.log(r.Context()), err, "exec context not found") {
		return
	}
	if startErr != nil {
		h.log(r.Context()).Warn("exec context failed to start", "exec_context_id", ec.ID, "error", startErr)
	}
	Created(w, ExecContextFromDomain(*current))
}

// ListExecContexts возвращает exec contexts с фильтрацией.
// GET /rest/v1/exec-contexts?source_code_id=...&state=...&limit=...&offset=...
func (h *Handler) ListExecContexts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repo.ExecContextFilter{
		State:  domain.ExecContextState(q.Get("state")),
		Limit:  parseInt(q.Get("limit"), 50),
		Offset: parseInt(q.Get("offset"), 0),
	}
	if s := q.Get("source_code_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			BadRequest(w, "invalid source_code_id")
			return
		}
		filter.SourceCodeID = &id
	}

	ecs, err := h.execContexts.List(r.Context(), filter)
	if HandleError(w, h.log(r.Context()), err, "") {
		return
	}

	result := make([]ExecContextResponse, len(ecs))
	for i, ec := range ecs {
		result[i] = ExecContextFromDomain(ec)
	}
	List(w, result, len(result))
}

// GetExecContext возвращает exec context по ID.
// GET /rest/v1/exec-contexts/{id}
func (h *Handler) GetExecContext(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid exec context id")
		return
	}

	ec, err := h.execContexts.GetByID(r.Context(), id)
	if HandleError(w, h.log(r.Context()), err, "exec context not found") {
		return
	}
	Success(w, ExecContextFromDomain(*ec))
}

// ListExecContextTasks возвращает tasks exec context'а.
// GET /rest/v1/exec-contexts/{id}/tasks
func (h *Handler) ListExecContextTasks(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid exec context id")
		return
	}

	if _, err := h.execContexts.GetByID(r.Context(), id); HandleError(w, h.log(r.Context()), err, "exec context not found") {
		return
	}

	tasks, err := h.tasks.ListByExecContextID(r.Context(), id)
	if HandleError(w, h.log(r.Context()), err, "") {
		return
	}

	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = TaskFromDomain(t)
	}
	List(w, result, len(result))
}

// StopExecContext останавливает exec context.
// POST /rest/v1/exec-contexts/{id}/stop
func (h *Handler) StopExecContext(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid exec context id")
		return
	}

	if HandleError(w, h.log(r.Context()), h.dispatcher.StopExecContext(r.Context(), id), "exec context not found") {
		return
	}

	ec, err := h.execContexts.GetByID(r.Context(), id)
	if HandleError(w, h.log(r.Context()), err, "exec context not found") {
		return
	}
	Success(w, ExecContextFromDomain(*ec))
}

// ResetTask сбрасывает task и все зависящие от него tasks.
// POST /rest/v1/tasks/{id}/reset
func (h *Handler) ResetTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	if HandleError(w, h.log(r.Context()), h.dispatcher.ResetTask(r.Context(), id), "task not found") {
		return
	}
	NoContent(w)
}
