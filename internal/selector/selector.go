package selector

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Conveyor/internal/telemetry"
)

// ErrNoDispatchers — нет ни одного включённого dispatcher'а.
var ErrNoDispatchers = errors.New("no dispatchers available")

// ErrUnknownStrategy — неизвестная стратегия сортировки.
var ErrUnknownStrategy = errors.New("unknown selection strategy")

// Strategy — порядок обхода endpoint'ов.
type Strategy string

const (
	// StrategyPriority — по убыванию приоритета; равные сохраняют порядок конфигурации.
	StrategyPriority Strategy = "priority"

	// StrategyAlphabet — по URL по возрастанию.
	StrategyAlphabet Strategy = "alphabet"
)

// ParseStrategy парсит строку в Strategy. Пустая строка — priority.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyPriority:
		return StrategyPriority, nil
	case StrategyAlphabet:
		return StrategyAlphabet, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownStrategy, s)
	}
}

// Endpoint — один dispatcher.
type Endpoint struct {
	URL      string
	Disabled bool
	Priority int

	// Username и Password — basic auth для REST API dispatcher'а.
	Username string
	Password string
}

type record struct {
	Endpoint
	available bool
}

// Selector — round-robin выбор dispatcher'а.
type Selector struct {
	mu       sync.Mutex
	records  []record
	strategy Strategy
	metrics  *telemetry.Metrics
}

// New создаёт Selector. Отключённые endpoint'ы отбрасываются.
func New(endpoints []Endpoint, strategy Strategy, metrics *telemetry.Metrics) *Selector {
	records := make([]record, 0, len(endpoints))
	for _, e := range endpoints {
		if e.Disabled {
			continue
		}
		records = append(records, record{Endpoint: e, available: true})
	}

	switch strategy {
	case StrategyAlphabet:
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].URL < records[j].URL
		})
	default:
		strategy = StrategyPriority
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Priority > records[j].Priority
		})
	}

	return &Selector{records: records, strategy: strategy, metrics: metrics}
}

// Next возвращает следующий endpoint и помечает его использованным.
// Когда все использованы, цикл перезапускается.
func (s *Selector) Next() (Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) == 0 {
		return Endpoint{}, ErrNoDispatchers
	}

	if e, ok := s.takeLocked(); ok {
		return e, nil
	}
	s.resetLocked()
	s.metrics.SelectorRearmed()
	e, _ := s.takeLocked()
	return e, nil
}

// Reset делает все endpoint'ы снова доступными.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// Len возвращает число включённых endpoint'ов.
func (s *Selector) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Strategy возвращает применённую стратегию.
func (s *Selector) Strategy() Strategy {
	return s.strategy
}

// Endpoints возвращает endpoint'ы в порядке обхода.
func (s *Selector) Endpoints() []Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Endpoint, len(s.records))
	for i, r := range s.records {
		out[i] = r.Endpoint
	}
	return out
}

// Lookup ищет включённый endpoint по URL.
func (s *Selector) Lookup(url string) (Endpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.URL == url {
			return r.Endpoint, true
		}
	}
	return Endpoint{}, false
}

func (s *Selector) takeLocked() (Endpoint, bool) {
	for i := range s.records {
		if s.records[i].available {
			s.records[i].available = false
			return s.records[i].Endpoint, true
		}
	}
	return Endpoint{}, false
}

func (s *Selector) resetLocked() {
	for i := range s.records {
		s.records[i].available = true
	}
}
