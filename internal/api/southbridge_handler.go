package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/orchestrator"
	"github.com/shaiso/Conveyor/internal/taskstate"
)

// maxUploadSize — ограничение на размер загружаемого результата.
const maxUploadSize = 64 << 20

// reportOutcome — судьба отчёта processor'а.
type reportOutcome int

const (
	reportAccepted reportOutcome = iota
	reportRejected
	// reportRetry — отчёт не обработан, processor пришлёт его снова.
	reportRetry
)

// Exchange — основной обмен с processor'ом.
// POST /rest/v1/srv
//
// Запрос проверяется целиком до любых изменений. Затем для каждого ядра:
// принимает отчёты о выполненных tasks и, если ядро свободно, назначает
// ему новый task.
func (h *Handler) Exchange(w http.ResponseWriter, r *http.Request) {
	var req ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	for i, core := range req.Cores {
		if core.CoreID == uuid.Nil {
			BadRequest(w, fmt.Sprintf("cores[%d]: core_id is required", i))
			return
		}
	}

	logger := h.log(r.Context()).With("processor_id", req.ProcessorID)
	resp := ExchangeResponse{Cores: make([]CoreResponse, 0, len(req.Cores))}

	for _, core := range req.Cores {
		out := CoreResponse{CoreID: core.CoreID}

		for _, report := range core.Reports {
			switch h.acceptReport(r.Context(), report) {
			case reportAccepted:
				out.Accepted = append(out.Accepted, report.TaskID)
			case reportRejected:
				out.Rejected = append(out.Rejected, report.TaskID)
			}
		}

		if core.RequestTask {
			task, err := h.dispatcher.AssignTask(r.Context(), core.CoreID)
			if err != nil {
				logger.Error("failed to assign task", "core_id", core.CoreID, "error", err)
			} else if task != nil {
				out.Assigned = &AssignedTask{
					TaskID:        task.ID,
					ExecContextID: task.ExecContextID,
					Params:        task.Params,
				}
			}
		}

		resp.Cores = append(resp.Cores, out)
	}

	JSON(w, http.StatusOK, resp)
}

func (h *Handler) acceptReport(ctx context.Context, report TaskReport) reportOutcome {
	logger := h.log(ctx).With("task_id", report.TaskID)

	if h.publisher != nil {
		err := h.publisher.PublishTaskResult(ctx, mq.TaskResultPayload{
			TaskID:        report.TaskID,
			ExecContextID: report.ExecContextID,
			Result:        report.Result,
			Metrics:       report.Metrics,
		})
		if err != nil {
			logger.Warn("failed to publish task.result", "error", err)
			return reportRetry
		}
		return reportAccepted
	}

	_, err := h.dispatcher.ReportResult(ctx, domain.TaskExecResult{
		TaskID:  report.TaskID,
		Result:  report.Result,
		Metrics: report.Metrics,
	})
	switch {
	case err == nil:
		return reportAccepted
	case errors.Is(err, taskstate.ErrTaskWasReset),
		errors.Is(err, taskstate.ErrTaskNotFound),
		errors.Is(err, orchestrator.ErrTaskNotFound):
		logger.Info("report rejected", "reason", err)
		return reportRejected
	default:
		logger.Error("failed to store report", "error", err)
		return reportRetry
	}
}

// UploadResult принимает результат task'а и отмечает его полученным.
// POST /rest/v1/upload/{taskId}
func (h *Handler) UploadResult(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(r.PathValue("taskId"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	size, err := io.Copy(io.Discard, io.LimitReader(r.Body, maxUploadSize))
	if err != nil {
		BadRequest(w, "failed to read upload")
		return
	}

	status, err := h.dispatcher.UploadResult(r.Context(), taskID)
	if err != nil && status == "" {
		InternalError(w, h.log(r.Context()), err)
		return
	}

	h.log(r.Context()).Debug("result uploaded", "task_id", taskID, "bytes", size, "status", status)
	Success(w, UploadResponse{TaskID: taskID, Status: status})
}
