package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/taskstate"
	"github.com/shaiso/Conveyor/internal/telemetry"
	"github.com/shaiso/Conveyor/internal/tenantqueue"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 100

	// releaseTimeout ограничивает откат недоставленного назначения.
	releaseTimeout = 5 * time.Second
)

// TaskRepository — хранилище tasks, нужное orchestrator'у.
type TaskRepository interface {
	taskstate.TaskRepository
	Create(ctx context.Context, task *domain.Task) error
	ExecStates(ctx context.Context, execContextID uuid.UUID) (map[uuid.UUID]domain.ExecState, error)
}

// ExecContextRepository — хранилище exec contexts.
type ExecContextRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ExecContext, error)
	ListByState(ctx context.Context, state domain.ExecContextState, limit int) ([]domain.ExecContext, error)
	Update(ctx context.Context, ec *domain.ExecContext) error
	UpdateState(ctx context.Context, id uuid.UUID, from, to domain.ExecContextState) error
}

// SourceCodeRepository — хранилище source codes.
type SourceCodeRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SourceCode, error)
}

// Orchestrator управляет exec contexts и раздачей tasks.
//
// Orchestrator:
//   - Строит граф tasks для новых exec contexts (event-driven + polling fallback)
//   - Назначает готовые tasks ядрам processor'ов
//   - Принимает результаты и финализирует exec contexts (FINISHED/ERROR)
//   - Сбрасывает tasks вместе с зависимыми от них
type Orchestrator struct {
	tasks        TaskRepository
	execContexts ExecContextRepository
	sourceCodes  SourceCodeRepository

	store   *taskstate.Store
	builder *engine.Builder
	queue   *tenantqueue.Queue[uuid.UUID, event]
	graphs  *graphCache

	conn *mq.Connection

	pollInterval time.Duration
	batchSize    int

	logger  *slog.Logger
	metrics *telemetry.Metrics

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Orchestrator.
type Config struct {
	Tasks        TaskRepository
	ExecContexts ExecContextRepository
	SourceCodes  SourceCodeRepository

	// Producer создаёт tasks процесса. По умолчанию — NewProducer(Tasks).
	Producer engine.TaskProducer

	// Conn — соединение с RabbitMQ. nil — работа только через polling
	// и прямые вызовы.
	Conn *mq.Connection

	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // exec contexts за один poll (default: 100)

	// IdleTimeout — простой worker'а exec context'а до остановки.
	IdleTimeout time.Duration

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Producer == nil {
		cfg.Producer = NewProducer(cfg.Tasks, cfg.Logger)
	}

	o := &Orchestrator{
		tasks:        cfg.Tasks,
		execContexts: cfg.ExecContexts,
		sourceCodes:  cfg.SourceCodes,
		store: taskstate.New(taskstate.Config{
			Repo:    cfg.Tasks,
			Logger:  cfg.Logger,
			Metrics: cfg.Metrics,
		}),
		builder:      engine.NewBuilder(cfg.Producer, cfg.Logger, cfg.Metrics),
		graphs:       newGraphCache(),
		conn:         cfg.Conn,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		logger:       telemetry.WithComponent(cfg.Logger, "orchestrator"),
		metrics:      cfg.Metrics,
	}
	o.queue = tenantqueue.New(tenantqueue.Config[uuid.UUID, event]{
		Handler:     o.handle,
		IdleTimeout: cfg.IdleTimeout,
		Dedup:       sameProduce,
		Logger:      cfg.Logger,
		Metrics:     cfg.Metrics,
	})
	return o
}

// Start запускает consumers (если есть соединение с RabbitMQ) и polling.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	o.logger.Info("starting orchestrator",
		"poll_interval", o.pollInterval,
		"batch_size", o.batchSize,
		"mq", o.conn != nil,
	)

	if o.conn != nil {
		consumers := []*mq.Consumer{
			mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
				Queue:    mq.QueueExecContextsPending,
				Handler:  o.handleExecContextPending,
				Prefetch: 10,
			}),
			mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
				Queue:    mq.QueueTaskResults,
				Handler:  o.handleTaskResult,
				Prefetch: 10,
			}),
		}
		for _, c := range consumers {
			o.wg.Add(1)
			go func() {
				defer o.wg.Done()
				if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					o.logger.Error("consumer stopped", "error", err)
				}
			}()
		}
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.pollLoop(ctx)
	}()

	o.logger.Info("orchestrator started")
	return nil
}

// Stop останавливает consumers, polling и workers очереди.
func (o *Orchestrator) Stop() {
	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}
	o.wg.Wait()
	o.queue.Close()

	o.logger.Info("orchestrator stopped", "cached_graphs", o.graphs.len())
}

// StartExecContext строит граф tasks exec context'а и переводит его в STARTED.
// При ошибке построения exec context переходит в ERROR.
func (o *Orchestrator) StartExecContext(ctx context.Context, id uuid.UUID) error {
	_, err := o.call(ctx, id, event{kind: eventProduce})
	return err
}

// StopExecContext прерывает обработку exec context'а и переводит его в STOPPED.
func (o *Orchestrator) StopExecContext(ctx context.Context, id uuid.UUID) error {
	if o.queue.Interrupt(id) {
		o.logger.Info("exec context worker interrupted", "exec_context_id", id)
	}
	_, err := o.call(ctx, id, event{kind: eventStop})
	return err
}

// AssignTask назначает ядру первый готовый task среди запущенных exec contexts.
// Если готовых tasks нет, возвращает (nil, nil).
func (o *Orchestrator) AssignTask(ctx context.Context, coreID uuid.UUID) (*domain.Task, error) {
	started, err := o.execContexts.ListByState(ctx, domain.ExecContextStateStarted, o.batchSize)
	if err != nil {
		return nil, fmt.Errorf("list started exec contexts: %w", err)
	}

	for i := range started {
		id := started[i].ID
		task, err := o.call(ctx, id, event{kind: eventAssign, coreID: coreID})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			o.logger.Warn("assign failed", "exec_context_id", id, "core_id", coreID, "error", err)
			continue
		}
		if task != nil {
			return task, nil
		}
	}
	return nil, nil
}

// ReportResult сохраняет результат выполнения task'а и проверяет,
// не завершился ли exec context.
func (o *Orchestrator) ReportResult(ctx context.Context, result domain.TaskExecResult) (*domain.Task, error) {
	execContextID, err := o.execContextOf(ctx, result.TaskID)
	if err != nil {
		return nil, err
	}
	return o.call(ctx, execContextID, event{kind: eventComplete, taskID: result.TaskID, result: result})
}

// ResetTask сбрасывает task и все зависящие от него tasks в NONE.
func (o *Orchestrator) ResetTask(ctx context.Context, taskID uuid.UUID) error {
	execContextID, err := o.execContextOf(ctx, taskID)
	if err != nil {
		return err
	}
	_, err = o.call(ctx, execContextID, event{kind: eventReset, taskID: taskID})
	return err
}

// UploadResult отмечает, что результат task'а загружен на dispatcher.
func (o *Orchestrator) UploadResult(ctx context.Context, taskID uuid.UUID) (domain.UploadStatus, error) {
	return o.store.SetResultReceived(ctx, taskID, true)
}

// call ставит событие в очередь exec context'а и ждёт ответа.
// Назначение, на которое вызывающий не дождался ответа, откатывается
// worker'ом (см. handle).
func (o *Orchestrator) call(ctx context.Context, id uuid.UUID, ev event) (*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ev.reply = newHandoff()
	if err := o.queue.Submit(id, ev); err != nil {
		return nil, err
	}

	select {
	case r := <-ev.reply.ch:
		return r.task, r.err
	case <-ctx.Done():
		if r, ok := ev.reply.abandon(); ok {
			return r.task, r.err
		}
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) execContextOf(ctx context.Context, taskID uuid.UUID) (uuid.UUID, error) {
	task, err := o.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return uuid.Nil, fmt.Errorf("get task: %w", err)
	}
	return task.ExecContextID, nil
}

// pollLoop — цикл polling для fallback.
func (o *Orchestrator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу: подхватываем exec contexts, созданные пока были выключены.
	o.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// poll ставит построение графа для exec contexts в состоянии NONE.
func (o *Orchestrator) poll(ctx context.Context) {
	pending, err := o.execContexts.ListByState(ctx, domain.ExecContextStateNone, o.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			o.logger.Error("failed to list pending exec contexts", "error", err)
		}
		return
	}
	if len(pending) == 0 {
		return
	}

	o.logger.Debug("poll found pending exec contexts", "count", len(pending))
	for i := range pending {
		if err := o.queue.Submit(pending[i].ID, event{kind: eventProduce}); err != nil {
			o.logger.Warn("failed to submit produce event", "exec_context_id", pending[i].ID, "error", err)
			return
		}
	}
}
