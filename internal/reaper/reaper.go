package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

const (
	defaultSchedule          = "@every 1m"
	defaultAssignmentTimeout = 10 * time.Minute
	defaultBatchSize         = 100
	defaultTickTimeout       = 30 * time.Second
)

// cronParser — парсер расписания: стандартные 5 полей и дескрипторы (@every, @hourly).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// StaleTaskLister — источник зависших назначений.
type StaleTaskLister interface {
	ListStaleAssigned(ctx context.Context, before time.Time, limit int) ([]domain.Task, error)
}

// TaskResetter сбрасывает task вместе с потомками.
type TaskResetter interface {
	ResetTask(ctx context.Context, taskID uuid.UUID) error
}

// Config — конфигурация Reaper.
type Config struct {
	Tasks    StaleTaskLister
	Resetter TaskResetter

	// Schedule — cron-выражение (default: "@every 1m").
	Schedule string

	// AssignmentTimeout — сколько task может быть назначен без отчёта (default: 10m).
	AssignmentTimeout time.Duration

	// BatchSize — tasks за один тик (default: 100).
	BatchSize int

	Logger  *slog.Logger
	Metrics *telemetry.Metrics

	// Now — источник времени; nil — time.Now.
	Now func() time.Time
}

// Reaper — периодический сброс зависших назначений.
type Reaper struct {
	tasks     StaleTaskLister
	resetter  TaskResetter
	timeout   time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	now       func() time.Time

	cron *cron.Cron
}

// New создаёт Reaper. Возвращает ошибку, если расписание невалидно.
func New(cfg Config) (*Reaper, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = defaultSchedule
	}
	if cfg.AssignmentTimeout <= 0 {
		cfg.AssignmentTimeout = defaultAssignmentTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	schedule, err := cronParser.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid reaper schedule %q: %w", cfg.Schedule, err)
	}

	r := &Reaper{
		tasks:     cfg.Tasks,
		resetter:  cfg.Resetter,
		timeout:   cfg.AssignmentTimeout,
		batchSize: cfg.BatchSize,
		logger:    telemetry.WithComponent(cfg.Logger, "reaper"),
		metrics:   cfg.Metrics,
		now:       cfg.Now,
		cron:      cron.New(cron.WithParser(cronParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	r.cron.Schedule(schedule, cron.FuncJob(r.run))
	return r, nil
}

// Start запускает расписание в фоне.
func (r *Reaper) Start() {
	r.logger.Info("reaper started", "assignment_timeout", r.timeout)
	r.cron.Start()
}

// Stop останавливает расписание и ждёт завершения текущего тика.
func (r *Reaper) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info("reaper stopped")
}

func (r *Reaper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTickTimeout)
	defer cancel()

	if _, err := r.Tick(ctx); err != nil {
		r.logger.Error("reaper tick failed", "error", err)
	}
}

// Tick выполняет один проход. Возвращает число сброшенных tasks.
//
// Ошибка сброса одного task'а не блокирует остальные.
func (r *Reaper) Tick(ctx context.Context) (int, error) {
	before := r.now().Add(-r.timeout)

	stale, err := r.tasks.ListStaleAssigned(ctx, before, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale assignments: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	r.logger.Debug("found stale assignments", "count", len(stale))

	var reset int
	for i := range stale {
		task := &stale[i]
		if err := r.resetter.ResetTask(ctx, task.ID); err != nil {
			r.logger.Warn("failed to reset stale task",
				"task_id", task.ID,
				"exec_context_id", task.ExecContextID,
				"error", err,
			)
			continue
		}
		reset++
		r.metrics.ReaperReset()
		r.logger.Info("stale task reset",
			"task_id", task.ID,
			"exec_context_id", task.ExecContextID,
		)
	}

	r.logger.Info("reaper tick completed", "stale", len(stale), "reset", reset)
	return reset, nil
}
