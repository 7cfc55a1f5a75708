package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Conveyor/internal/api"
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/selector"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultCores        = 1
)

// Exchanger — транспорт к dispatcher'у.
type Exchanger interface {
	Exchange(ctx context.Context, ep selector.Endpoint, req api.ExchangeRequest) (*api.ExchangeResponse, error)
	Upload(ctx context.Context, ep selector.Endpoint, taskID uuid.UUID, data []byte) (domain.UploadStatus, error)
}

// Config — конфигурация Processor.
type Config struct {
	// ID — идентификатор processor'а; пустой — генерируется.
	ID string

	// Cores — число ядер (default: 1).
	Cores int

	// PollInterval — интервал обмена с dispatcher'ом (default: 5s).
	PollInterval time.Duration

	Selector *selector.Selector

	// Client — транспорт; nil — NewClient(0).
	Client Exchanger

	// Registry — executor'ы; nil — NewRegistry().
	Registry *Registry

	Logger *slog.Logger
}

// assignment — task, выданный ядру, и dispatcher, который его выдал.
type assignment struct {
	task   api.AssignedTask
	origin selector.Endpoint
}

// report — результат выполнения, ожидающий отправки.
type report struct {
	api.TaskReport
	origin  string
	outputs []byte
	coreID  uuid.UUID

	// accepted — dispatcher принял отчёт, осталось загрузить результат.
	accepted bool
}

type core struct {
	id    uuid.UUID
	tasks chan assignment
}

// Processor выполняет tasks, полученные от dispatcher'ов.
type Processor struct {
	id           string
	pollInterval time.Duration
	selector     *selector.Selector
	client       Exchanger
	registry     *Registry
	logger       *slog.Logger

	cores []*core

	mu      sync.Mutex
	busy    map[uuid.UUID]bool
	reports map[uuid.UUID]*report
	order   []uuid.UUID
}

// New создаёт Processor.
func New(cfg Config) *Processor {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Cores <= 0 {
		cfg.Cores = defaultCores
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Client == nil {
		cfg.Client = NewClient(0)
	}
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	p := &Processor{
		id:           cfg.ID,
		pollInterval: cfg.PollInterval,
		selector:     cfg.Selector,
		client:       cfg.Client,
		registry:     cfg.Registry,
		logger:       cfg.Logger.With("component", "processor", "processor_id", cfg.ID),
		busy:         make(map[uuid.UUID]bool),
		reports:      make(map[uuid.UUID]*report),
	}
	for range cfg.Cores {
		p.cores = append(p.cores, &core{id: uuid.New(), tasks: make(chan assignment, 1)})
	}
	return p
}

// ID возвращает идентификатор processor'а.
func (p *Processor) ID() string {
	return p.id
}

// Run запускает ядра и цикл обмена. Блокируется до отмены ctx.
func (p *Processor) Run(ctx context.Context) error {
	p.logger.Info("starting processor",
		"cores", len(p.cores),
		"poll_interval", p.pollInterval,
		"dispatchers", p.selector.Len(),
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range p.cores {
		g.Go(func() error { return p.runCore(ctx, c) })
	}
	g.Go(func() error { return p.exchangeLoop(ctx) })

	err := g.Wait()
	p.logger.Info("processor stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Processor) exchangeLoop(ctx context.Context) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		if err := p.ExchangeOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("exchange failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ExchangeOnce выполняет один обмен. Недоступный dispatcher пропускается,
// и обмен пробуется со следующим.
func (p *Processor) ExchangeOnce(ctx context.Context) error {
	for range p.selector.Len() {
		ep, err := p.selector.Next()
		if err != nil {
			return err
		}

		resp, err := p.client.Exchange(ctx, ep, p.buildRequest(ep.URL))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("dispatcher unavailable, trying next", "dispatcher", ep.URL, "error", err)
			continue
		}

		p.applyResponse(ep, resp)
		p.uploadAccepted(ctx, ep)
		return nil
	}
	return ErrDispatcherUnavailable
}

// buildRequest собирает запрос: отчёты для dispatcher'а origin и запросы tasks.
func (p *Processor) buildRequest(origin string) api.ExchangeRequest {
	p.mu.Lock()
	defer p.mu.Unlock()

	req := api.ExchangeRequest{ProcessorID: p.id}
	byCore := make(map[uuid.UUID][]api.TaskReport)
	var orphaned []api.TaskReport
	for _, id := range p.order {
		r := p.reports[id]
		if r.accepted || r.origin != origin {
			continue
		}
		if r.coreID == uuid.Nil {
			orphaned = append(orphaned, r.TaskReport)
			continue
		}
		byCore[r.coreID] = append(byCore[r.coreID], r.TaskReport)
	}

	for i, c := range p.cores {
		cr := api.CoreRequest{
			CoreID:      c.id,
			RequestTask: !p.busy[c.id],
			Reports:     byCore[c.id],
		}
		if i == 0 {
			cr.Reports = append(cr.Reports, orphaned...)
		}
		req.Cores = append(req.Cores, cr)
	}
	return req
}

func (p *Processor) applyResponse(ep selector.Endpoint, resp *api.ExchangeResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, cr := range resp.Cores {
		for _, id := range cr.Accepted {
			if r, ok := p.reports[id]; ok {
				r.accepted = true
			}
		}
		for _, id := range cr.Rejected {
			p.logger.Info("report rejected by dispatcher", "task_id", id, "dispatcher", ep.URL)
			p.dropReportLocked(id)
		}

		if cr.Assigned == nil {
			continue
		}
		c := p.coreLocked(cr.CoreID)
		if c == nil || p.busy[c.id] {
			p.logger.Warn("assignment for unavailable core dropped",
				"core_id", cr.CoreID,
				"task_id", cr.Assigned.TaskID,
			)
			continue
		}
		p.busy[c.id] = true
		c.tasks <- assignment{task: *cr.Assigned, origin: ep}
		p.logger.Info("task received",
			"task_id", cr.Assigned.TaskID,
			"core_id", c.id,
			"dispatcher", ep.URL,
		)
	}
}

// uploadAccepted загружает результаты принятых отчётов на dispatcher ep.
func (p *Processor) uploadAccepted(ctx context.Context, ep selector.Endpoint) {
	p.mu.Lock()
	var pending []*report
	for _, id := range p.order {
		if r := p.reports[id]; r.accepted && r.origin == ep.URL {
			pending = append(pending, r)
		}
	}
	p.mu.Unlock()

	for _, r := range pending {
		status, err := p.client.Upload(ctx, ep, r.TaskID, r.outputs)
		if err != nil {
			p.logger.Warn("upload failed, will retry", "task_id", r.TaskID, "error", err)
			continue
		}
		if status == domain.UploadStatusConcurrentModificationExhausted {
			p.logger.Warn("upload not recorded, will retry", "task_id", r.TaskID, "status", status)
			continue
		}

		p.logger.Debug("result uploaded", "task_id", r.TaskID, "status", status)
		p.mu.Lock()
		p.dropReportLocked(r.TaskID)
		p.mu.Unlock()
	}
}

func (p *Processor) runCore(ctx context.Context, c *core) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a := <-c.tasks:
			p.execute(ctx, c, a)
		}
	}
}

// execute выполняет task и сохраняет отчёт.
func (p *Processor) execute(ctx context.Context, c *core, a assignment) {
	logger := p.logger.With("task_id", a.task.TaskID, "core_id", c.id)
	start := time.Now()

	fe, outputs := p.run(ctx, a.task)

	data, err := json.Marshal(outputs)
	if err != nil {
		data = []byte("{}")
	}
	metrics, _ := json.Marshal(map[string]any{"duration_ms": time.Since(start).Milliseconds()})

	p.mu.Lock()
	p.storeReportLocked(&report{
		TaskReport: api.TaskReport{
			TaskID:        a.task.TaskID,
			ExecContextID: a.task.ExecContextID,
			Result:        fe.String(),
			Metrics:       string(metrics),
		},
		origin:  a.origin.URL,
		outputs: data,
		coreID:  c.id,
	})
	p.busy[c.id] = false
	p.mu.Unlock()

	logger.Info("task executed", "ok", fe.AllFunctionsAreOk(), "duration", time.Since(start))
}

// run выполняет функцию task'а и переводит исход в FunctionExec.
func (p *Processor) run(ctx context.Context, task api.AssignedTask) (*domain.FunctionExec, map[string]any) {
	params, err := domain.ParseTaskParams(task.Params)
	if err != nil {
		return generalFailure("", err), nil
	}
	code := params.Function.Code

	executor, err := p.registry.Get(code)
	if err != nil {
		return generalFailure(code, err), nil
	}

	if params.TimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(params.TimeoutSec)*time.Second)
		defer cancel()
	}

	res, err := executor.Execute(ctx, params)
	switch {
	case err != nil:
		return &domain.FunctionExec{Exec: &domain.SystemExecResult{
			FunctionCode: code,
			ExitCode:     -1,
			Console:      err.Error(),
		}}, nil
	case res.Error != "":
		return &domain.FunctionExec{Exec: &domain.SystemExecResult{
			FunctionCode: code,
			ExitCode:     1,
			Console:      res.Error,
		}}, res.Outputs
	default:
		return &domain.FunctionExec{Exec: &domain.SystemExecResult{
			FunctionCode: code,
			IsOk:         true,
		}}, res.Outputs
	}
}

func generalFailure(code string, err error) *domain.FunctionExec {
	return &domain.FunctionExec{GeneralExec: &domain.SystemExecResult{
		FunctionCode: code,
		ExitCode:     -1,
		Console:      fmt.Sprintf("task can't be started: %v", err),
	}}
}

func (p *Processor) storeReportLocked(r *report) {
	if _, ok := p.reports[r.TaskID]; !ok {
		p.order = append(p.order, r.TaskID)
	}
	p.reports[r.TaskID] = r
}

func (p *Processor) dropReportLocked(id uuid.UUID) {
	if _, ok := p.reports[id]; !ok {
		return
	}
	delete(p.reports, id)
	for i, v := range p.order {
		if v == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *Processor) coreLocked(id uuid.UUID) *core {
	for _, c := range p.cores {
		if c.id == id {
			return c
		}
	}
	return nil
}

// Pending возвращает число неотправленных или незагруженных отчётов.
func (p *Processor) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reports)
}
