package api

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// SourceCodeStore — хранилище source codes.
type SourceCodeStore interface {
	Create(ctx context.Context, sc *domain.SourceCode) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SourceCode, error)
	List(ctx context.Context) ([]domain.SourceCode, error)
}

// ExecContextStore — хранилище exec contexts.
type ExecContextStore interface {
	Create(ctx context.Context, ec *domain.ExecContext) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ExecContext, error)
	List(ctx context.Context, filter repo.ExecContextFilter) ([]domain.ExecContext, error)
}

// TaskLister — чтение tasks exec context'а.
type TaskLister interface {
	ListByExecContextID(ctx context.Context, execContextID uuid.UUID) ([]domain.Task, error)
}

// Dispatcher — операции orchestrator'а, доступные через API.
type Dispatcher interface {
	StartExecContext(ctx context.Context, id uuid.UUID) error
	StopExecContext(ctx context.Context, id uuid.UUID) error
	AssignTask(ctx context.Context, coreID uuid.UUID) (*domain.Task, error)
	ReportResult(ctx context.Context, result domain.TaskExecResult) (*domain.Task, error)
	ResetTask(ctx context.Context, taskID uuid.UUID) error
	UploadResult(ctx context.Context, taskID uuid.UUID) (domain.UploadStatus, error)
}

// EventPublisher публикует события для orchestrator'а.
type EventPublisher interface {
	PublishExecContextPending(ctx context.Context, execContextID uuid.UUID) error
	PublishTaskResult(ctx context.Context, payload mq.TaskResultPayload) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	sourceCodes  SourceCodeStore
	execContexts ExecContextStore
	tasks        TaskLister
	dispatcher   Dispatcher
	publisher    EventPublisher
	username     string
	password     string
	metrics      *telemetry.Metrics
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	SourceCodes  SourceCodeStore
	ExecContexts ExecContextStore
	Tasks        TaskLister
	Dispatcher   Dispatcher

	// Publisher — если nil, события передаются orchestrator'у напрямую.
	Publisher EventPublisher

	// Username и Password защищают southbridge (basic auth).
	// Пустой Username отключает проверку.
	Username string
	Password string

	// Metrics — nil отключает HTTP метрики.
	Metrics *telemetry.Metrics

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sourceCodes:  cfg.SourceCodes,
		execContexts: cfg.ExecContexts,
		tasks:        cfg.Tasks,
		dispatcher:   cfg.Dispatcher,
		publisher:    cfg.Publisher,
		username:     cfg.Username,
		password:     cfg.Password,
		metrics:      cfg.Metrics,
		logger:       logger.With("component", "api"),
	}
}

// log возвращает логгер запроса, если его положил RequestLogger.
func (h *Handler) log(ctx context.Context) *slog.Logger {
	if logger, ok := telemetry.LoggerFromContext(ctx); ok {
		return logger
	}
	return h.logger
}

// parseInt разбирает query-параметр, при ошибке возвращает def.
func parseInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
