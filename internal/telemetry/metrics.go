package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — набор Prometheus метрик процесса.
//
// Все методы безопасны для nil-получателя: компоненты, собранные без метрик
// (например, в тестах), просто ничего не записывают.
type Metrics struct {
	queueEvents    *prometheus.CounterVec
	queueWorkers   prometheus.Gauge
	taskOps        *prometheus.CounterVec
	tasksProduced  prometheus.Counter
	selectorRearms prometheus.Counter
	reaperResets   prometheus.Counter
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewMetrics создаёт и регистрирует метрики в reg.
// Если reg == nil, используется prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		queueEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conveyor_tenantqueue_events_total",
			Help: "Events processed by tenant queue workers, by result",
		}, []string{"result"}),
		queueWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "conveyor_tenantqueue_workers",
			Help: "Live tenant queue workers",
		}),
		taskOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conveyor_task_transitions_total",
			Help: "Guarded task state operations, by operation and result",
		}, []string{"op", "result"}),
		tasksProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conveyor_graph_tasks_produced_total",
			Help: "Tasks added to exec context graphs",
		}),
		selectorRearms: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conveyor_selector_rearms_total",
			Help: "Full round-robin cycles completed by the dispatcher selector",
		}),
		reaperResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conveyor_reaper_resets_total",
			Help: "Stale assignments reset by the reaper",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conveyor_http_requests_total",
			Help: "HTTP requests served by the dispatcher API, by route and status code",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "conveyor_http_request_duration_seconds",
			Help:    "Dispatcher API request latency, by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.queueEvents,
		m.queueWorkers,
		m.taskOps,
		m.tasksProduced,
		m.selectorRearms,
		m.reaperResets,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// QueueEvent учитывает обработанное событие: result = "ok", "error" или "panic".
func (m *Metrics) QueueEvent(result string) {
	if m == nil {
		return
	}
	m.queueEvents.WithLabelValues(result).Inc()
}

// WorkerStarted увеличивает число живых worker'ов.
func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.queueWorkers.Inc()
}

// WorkerStopped уменьшает число живых worker'ов.
func (m *Metrics) WorkerStopped() {
	if m == nil {
		return
	}
	m.queueWorkers.Dec()
}

// TaskOp учитывает операцию над task.
func (m *Metrics) TaskOp(op, result string) {
	if m == nil {
		return
	}
	m.taskOps.WithLabelValues(op, result).Inc()
}

// TasksProduced учитывает созданные вершины графа.
func (m *Metrics) TasksProduced(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.tasksProduced.Add(float64(n))
}

// SelectorRearmed учитывает перезапуск round-robin цикла.
func (m *Metrics) SelectorRearmed() {
	if m == nil {
		return
	}
	m.selectorRearms.Inc()
}

// ReaperReset учитывает сброшенное назначение.
func (m *Metrics) ReaperReset() {
	if m == nil {
		return
	}
	m.reaperResets.Inc()
}

// HTTPRequest учитывает обслуженный запрос к API.
func (m *Metrics) HTTPRequest(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
