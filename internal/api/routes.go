package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	northbridge := Chain(
		RequestLogger(h.logger),
		Recovery(),
		AccessLog(false),
		Instrument(h.metrics),
	)
	southbridge := Chain(
		RequestLogger(h.logger),
		Recovery(),
		AccessLog(true),
		Instrument(h.metrics),
		BasicAuth(h.username, h.password),
	)

	// Source codes
	mux.Handle("GET /rest/v1/source-codes", northbridge(http.HandlerFunc(h.ListSourceCodes)))
	mux.Handle("POST /rest/v1/source-codes", northbridge(http.HandlerFunc(h.CreateSourceCode)))
	mux.Handle("GET /rest/v1/source-codes/{id}", northbridge(http.HandlerFunc(h.GetSourceCode)))
	mux.Handle("POST /rest/v1/source-codes/{id}/exec-contexts", northbridge(http.HandlerFunc(h.CreateExecContext)))

	// Exec contexts
	mux.Handle("GET /rest/v1/exec-contexts", northbridge(http.HandlerFunc(h.ListExecContexts)))
	mux.Handle("GET /rest/v1/exec-contexts/{id}", northbridge(http.HandlerFunc(h.GetExecContext)))
	mux.Handle("GET /rest/v1/exec-contexts/{id}/tasks", northbridge(http.HandlerFunc(h.ListExecContextTasks)))
	mux.Handle("POST /rest/v1/exec-contexts/{id}/stop", northbridge(http.HandlerFunc(h.StopExecContext)))

	// Tasks
	mux.Handle("POST /rest/v1/tasks/{id}/reset", northbridge(http.HandlerFunc(h.ResetTask)))

	// Southbridge
	mux.Handle("POST /rest/v1/srv", southbridge(http.HandlerFunc(h.Exchange)))
	mux.Handle("POST /rest/v1/upload/{taskId}", southbridge(http.HandlerFunc(h.UploadResult)))
}
