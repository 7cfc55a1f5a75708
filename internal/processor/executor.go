package processor

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Executor выполняет функцию task'а.
//
// Инфраструктурные ошибки возвращаются через error, логические —
// через ExecutionResult.Error.
type Executor interface {
	Execute(ctx context.Context, params *domain.TaskParams) (*ExecutionResult, error)
}

// ExecutorFunc — адаптер функции к Executor.
type ExecutorFunc func(ctx context.Context, params *domain.TaskParams) (*ExecutionResult, error)

// Execute реализует Executor.
func (f ExecutorFunc) Execute(ctx context.Context, params *domain.TaskParams) (*ExecutionResult, error) {
	return f(ctx, params)
}

// ExecutionResult — результат выполнения функции.
type ExecutionResult struct {
	// Outputs — выходные данные, загружаются на dispatcher.
	Outputs map[string]any

	// Error — логическая ошибка выполнения.
	Error string
}

// Registry — реестр executor'ов по коду функции.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry создаёт реестр с executor'ами delay и http.
func NewRegistry() *Registry {
	r := &Registry{executors: make(map[string]Executor)}
	r.Register("delay", &DelayExecutor{})
	r.Register("http", &HTTPExecutor{})
	return r
}

// Register добавляет executor для функции.
func (r *Registry) Register(functionCode string, executor Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[functionCode] = executor
}

// Get возвращает executor для функции.
func (r *Registry) Get(functionCode string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	executor, ok := r.executors[functionCode]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, functionCode)
	}
	return executor, nil
}

// paramFloat читает число из параметров функции.
func paramFloat(params map[string]string, key string, def float64) (float64, error) {
	raw, ok := params[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidParams, key, raw)
	}
	return v, nil
}
