package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/orchestrator"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/taskstate"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInvalidState  ErrorCode = "INVALID_STATE"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse — структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — ответ со списком; Total — размер выборки.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created отправляет ответ о создании ресурса.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, DataResponse{Data: data})
}

// Accepted отправляет ответ 202: операция будет выполнена асинхронно.
func Accepted(w http.ResponseWriter, data any) {
	JSON(w, http.StatusAccepted, DataResponse{Data: data})
}

// NoContent отправляет ответ без тела (204).
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// List отправляет ответ со списком.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// Unauthorized отправляет ошибку 401.
func Unauthorized(w http.ResponseWriter) {
	Error(w, http.StatusUnauthorized, ErrCodeUnauthorized, "unauthorized")
}

// NotFound отправляет ошибку 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// InternalError логирует err и отправляет 500 без подробностей.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// errorMapping — класс доменных ошибок и его HTTP представление.
type errorMapping struct {
	targets []error
	status  int
	code    ErrorCode
}

// errorMappings проверяются по порядку; первое совпадение побеждает.
var errorMappings = []errorMapping{
	{
		targets: []error{
			orchestrator.ErrExecContextNotFound,
			orchestrator.ErrSourceCodeNotFound,
			orchestrator.ErrTaskNotFound,
			taskstate.ErrTaskNotFound,
		},
		status: http.StatusNotFound,
		code:   ErrCodeNotFound,
	},
	{
		targets: []error{repo.ErrAlreadyExists},
		status:  http.StatusConflict,
		code:    ErrCodeConflict,
	},
	{
		targets: []error{
			orchestrator.ErrExecContextNotPending,
			orchestrator.ErrExecContextNotStarted,
			engine.ErrProducingFailed,
		},
		status: http.StatusUnprocessableEntity,
		code:   ErrCodeInvalidState,
	},
	{
		targets: []error{engine.ErrEmptyProcesses},
		status:  http.StatusBadRequest,
		code:    ErrCodeBadRequest,
	},
}

// HandleError пишет ответ для ошибки хранилища, orchestrator'а или графа.
// repo.ErrNotFound отдаётся с notFoundMsg, чтобы не светить текст БД.
// Возвращает false, если err == nil.
func HandleError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, repo.ErrNotFound) {
		NotFound(w, notFoundMsg)
		return true
	}
	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		BadRequest(w, err.Error())
		return true
	}
	for _, m := range errorMappings {
		for _, target := range m.targets {
			if errors.Is(err, target) {
				Error(w, m.status, m.code, err.Error())
				return true
			}
		}
	}
	InternalError(w, logger, err)
	return true
}
