package tenantqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Conveyor/internal/telemetry"
)

// DefaultIdleTimeout — сколько worker ждёт новых событий перед остановкой.
const DefaultIdleTimeout = 2 * time.Second

// Handler обрабатывает одно событие tenant'а.
// ctx отменяется при Interrupt и Close.
type Handler[K comparable, E any] func(ctx context.Context, key K, event E) error

// Config — настройки очереди.
type Config[K comparable, E any] struct {
	// Handler — обработчик событий (обязателен).
	Handler Handler[K, E]

	// IdleTimeout — время простоя до остановки worker'а.
	IdleTimeout time.Duration

	// Dedup — если задан, событие не ставится, когда равное ему
	// уже ждёт в очереди tenant'а.
	Dedup func(a, b E) bool

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// Queue — очередь событий, разбитая по tenant'ам.
type Queue[K comparable, E any] struct {
	handler Handler[K, E]
	idle    time.Duration
	dedup   func(a, b E) bool
	logger  *slog.Logger
	metrics *telemetry.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	tenants map[K]*tenant[E]
	closed  bool
}

// tenant — события одного ключа и его worker (nil, если worker'а нет).
type tenant[E any] struct {
	events []E
	worker *worker

	// restart — после выхода прерванного worker'а нужно поднять новый.
	restart bool
}

type worker struct {
	ctx         context.Context
	cancel      context.CancelFunc
	wake        chan struct{}
	interrupted bool
}

// New создаёт очередь.
func New[K comparable, E any](cfg Config[K, E]) *Queue[K, E] {
	if cfg.Handler == nil {
		panic("tenantqueue: nil handler")
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue[K, E]{
		handler: cfg.Handler,
		idle:    cfg.IdleTimeout,
		dedup:   cfg.Dedup,
		logger:  cfg.Logger.With("component", "tenantqueue"),
		metrics: cfg.Metrics,
		ctx:     ctx,
		cancel:  cancel,
		tenants: make(map[K]*tenant[E]),
	}
}

// Submit ставит событие и гарантирует, что у tenant'а есть worker.
func (q *Queue[K, E]) Submit(key K, event E) error {
	if err := q.Put(key, event); err != nil {
		return err
	}
	q.ProcessTenant(key)
	return nil
}

// Put ставит событие в очередь tenant'а, не поднимая worker.
// Живой worker будится сразу.
func (q *Queue[K, E]) Put(key K, event E) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	t := q.tenantLocked(key)
	if q.dedup != nil {
		for _, pending := range t.events {
			if q.dedup(pending, event) {
				q.logger.Debug("duplicate event skipped", "tenant", fmt.Sprint(key))
				return nil
			}
		}
	}
	t.events = append(t.events, event)

	if t.worker != nil {
		select {
		case t.worker.wake <- struct{}{}:
		default:
		}
	}
	return nil
}

// ProcessTenant поднимает worker для tenant'а, если его нет.
// Повторный вызов при живом worker'е ничего не делает.
func (q *Queue[K, E]) ProcessTenant(key K) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	t := q.tenantLocked(key)
	if t.worker != nil {
		if t.worker.interrupted {
			t.restart = true
		}
		return
	}
	q.startLocked(key, t)
}

// Interrupt прерывает worker tenant'а.
// Событие в обработке теряется, ожидающие события остаются.
func (q *Queue[K, E]) Interrupt(key K) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tenants[key]
	if !ok || t.worker == nil {
		return false
	}
	t.worker.interrupted = true
	t.worker.cancel()
	return true
}

// Clear удаляет все ожидающие события всех tenant'ов.
// Tenant'ы без worker'а удаляются целиком.
func (q *Queue[K, E]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for key, t := range q.tenants {
		t.events = nil
		t.restart = false
		if t.worker == nil {
			delete(q.tenants, key)
		}
	}
}

// HasWorker возвращает true, если у tenant'а есть живой worker.
func (q *Queue[K, E]) HasWorker(key K) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tenants[key]
	return ok && t.worker != nil
}

// Pending возвращает число ожидающих событий tenant'а.
func (q *Queue[K, E]) Pending(key K) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if t, ok := q.tenants[key]; ok {
		return len(t.events)
	}
	return 0
}

// Workers возвращает число живых worker'ов.
func (q *Queue[K, E]) Workers() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, t := range q.tenants {
		if t.worker != nil {
			n++
		}
	}
	return n
}

// Close прерывает все worker'ы и ждёт их завершения.
func (q *Queue[K, E]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}

func (q *Queue[K, E]) tenantLocked(key K) *tenant[E] {
	t, ok := q.tenants[key]
	if !ok {
		t = &tenant[E]{}
		q.tenants[key] = t
	}
	return t
}

func (q *Queue[K, E]) startLocked(key K, t *tenant[E]) {
	ctx, cancel := context.WithCancel(q.ctx)
	w := &worker{
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
	}
	t.worker = w
	t.restart = false

	q.wg.Add(1)
	q.metrics.WorkerStarted()
	go q.run(key, t, w)
}

// run — цикл worker'а: забирает события под lock'ом, обрабатывает без него.
func (q *Queue[K, E]) run(key K, t *tenant[E], w *worker) {
	defer q.wg.Done()
	defer q.metrics.WorkerStopped()
	defer w.cancel()

	timer := time.NewTimer(q.idle)
	timer.Stop()
	defer timer.Stop()

	for {
		q.mu.Lock()
		if w.ctx.Err() != nil {
			q.detachLocked(key, t, w)
			q.mu.Unlock()
			return
		}
		if len(t.events) > 0 {
			event := t.events[0]
			var zero E
			t.events[0] = zero
			t.events = t.events[1:]
			q.mu.Unlock()

			q.handle(w.ctx, key, event)
			continue
		}
		q.mu.Unlock()

		timer.Reset(q.idle)
		select {
		case <-w.ctx.Done():
			timer.Stop()
		case <-w.wake:
			timer.Stop()
		case <-timer.C:
			q.mu.Lock()
			if len(t.events) == 0 {
				q.detachLocked(key, t, w)
				q.mu.Unlock()
				q.logger.Debug("tenant worker idle, stopped", "tenant", fmt.Sprint(key))
				return
			}
			q.mu.Unlock()
		}
	}
}

// detachLocked снимает worker с tenant'а. Если после Interrupt кто-то
// запросил обработку, сразу поднимается новый worker.
func (q *Queue[K, E]) detachLocked(key K, t *tenant[E], w *worker) {
	if t.worker != w {
		return
	}
	t.worker = nil
	if t.restart && !q.closed && len(t.events) > 0 {
		q.startLocked(key, t)
	}
	t.restart = false
}

func (q *Queue[K, E]) handle(ctx context.Context, key K, event E) {
	defer func() {
		if r := recover(); r != nil {
			q.metrics.QueueEvent("panic")
			q.logger.Error("tenant event handler panicked",
				"tenant", fmt.Sprint(key),
				"panic", fmt.Sprint(r),
			)
		}
	}()

	if err := q.handler(ctx, key, event); err != nil {
		q.metrics.QueueEvent("error")
		q.logger.Error("tenant event handler failed",
			"tenant", fmt.Sprint(key),
			"error", err,
		)
		return
	}
	q.metrics.QueueEvent("ok")
}
