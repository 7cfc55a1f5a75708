package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// VariablePools — выходные переменные уже развёрнутых процессов по имени.
type VariablePools map[string][]domain.VariableRef

// Merge добавляет переменные в пулы.
func (p VariablePools) Merge(outputs map[string][]domain.VariableRef) {
	for name, refs := range outputs {
		p[name] = append(p[name], refs...)
	}
}

// Clone возвращает копию пулов.
func (p VariablePools) Clone() VariablePools {
	out := make(VariablePools, len(p))
	for name, refs := range p {
		out[name] = append([]domain.VariableRef(nil), refs...)
	}
	return out
}

// StepRequest — запрос на создание tasks одного процесса.
type StepRequest struct {
	ExecContextID uuid.UUID
	Process       *domain.Process

	// Frontier — tasks, от которых будут зависеть новые tasks.
	Frontier []uuid.UUID

	// Pools — выходы предыдущих процессов, доступные как входы.
	Pools VariablePools
}

// ProducedTasks — результат создания tasks процесса.
type ProducedTasks struct {
	TaskIDs []uuid.UUID
	Status  domain.ProducingStatus
	Outputs map[string][]domain.VariableRef
}

// TaskProducer создаёт записи tasks для одного процесса.
type TaskProducer interface {
	ProduceTasks(ctx context.Context, req StepRequest) (*ProducedTasks, error)
}

// TaskProducerFunc — адаптер функции к TaskProducer.
type TaskProducerFunc func(ctx context.Context, req StepRequest) (*ProducedTasks, error)

// ProduceTasks реализует TaskProducer.
func (f TaskProducerFunc) ProduceTasks(ctx context.Context, req StepRequest) (*ProducedTasks, error) {
	return f(ctx, req)
}

// ProduceRequest — запрос на построение (или продолжение) графа.
type ProduceRequest struct {
	ExecContextID uuid.UUID
	Spec          *domain.SourceCodeSpec

	// Graph — граф для продолжения; nil — новый граф.
	Graph *Graph

	// Frontier — стартовый набор родителей. Все ID должны быть вершинами Graph.
	Frontier []uuid.UUID
}

// ProduceResult — итог построения.
//
// При ошибке Graph содержит всё, что успели построить предыдущие процессы.
type ProduceResult struct {
	Graph    *Graph
	Status   domain.ProducingStatus
	Frontier []uuid.UUID
	Pools    VariablePools
	Produced int
}

// Builder — GraphBuilder.
type Builder struct {
	producer TaskProducer
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

// NewBuilder создаёт Builder.
func NewBuilder(producer TaskProducer, logger *slog.Logger, metrics *telemetry.Metrics) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		producer: producer,
		logger:   logger.With("component", "graph_builder"),
		metrics:  metrics,
	}
}

// Produce разворачивает процессы source code в tasks по порядку объявления.
//
// Для каждого процесса:
//  1. producer создаёт tasks;
//  2. статус не OK прерывает построение (вершины процесса не добавляются);
//  3. новые tasks становятся вершинами, от каждой вершины frontier к каждой
//     новой вершине проводится ребро;
//  4. frontier заменяется новыми tasks;
//  5. выходные переменные процесса попадают в пулы.
func (b *Builder) Produce(ctx context.Context, req ProduceRequest) (*ProduceResult, error) {
	graph := req.Graph
	if graph == nil {
		graph = NewGraph()
	}

	res := &ProduceResult{
		Graph:    graph,
		Status:   domain.ProducingStatusOK,
		Frontier: append([]uuid.UUID(nil), req.Frontier...),
		Pools:    make(VariablePools),
	}

	if req.Spec == nil {
		res.Status = domain.ProducingStatusError
		return res, &ProducingError{Status: res.Status, Err: ErrEmptyProcesses}
	}

	for _, id := range res.Frontier {
		if !graph.HasVertex(id) {
			res.Status = domain.ProducingStatusError
			return res, &ProducingError{Status: res.Status, Err: fmt.Errorf("%w: frontier %s", ErrUnknownVertex, id)}
		}
	}

	logger := b.logger.With("exec_context_id", req.ExecContextID)

	for i := range req.Spec.Source.Processes {
		if err := ctx.Err(); err != nil {
			res.Status = domain.ProducingStatusError
			return res, err
		}

		p := &req.Spec.Source.Processes[i]
		produced, err := b.producer.ProduceTasks(ctx, StepRequest{
			ExecContextID: req.ExecContextID,
			Process:       p,
			Frontier:      append([]uuid.UUID(nil), res.Frontier...),
			Pools:         res.Pools.Clone(),
		})

		status := domain.ProducingStatusError
		if produced != nil && produced.Status != "" && (err == nil || produced.Status != domain.ProducingStatusOK) {
			status = produced.Status
		}

		if err != nil || status != domain.ProducingStatusOK {
			res.Status = status
			logger.Error("producing aborted",
				"process", p.Code,
				"status", status,
				"error", err,
			)
			return res, &ProducingError{Process: p.Code, Status: status, Err: err}
		}

		for _, id := range produced.TaskIDs {
			graph.AddVertex(id)
		}
		for _, parent := range res.Frontier {
			for _, child := range produced.TaskIDs {
				if err := graph.AddEdge(parent, child); err != nil {
					res.Status = domain.ProducingStatusError
					return res, &ProducingError{Process: p.Code, Status: res.Status, Err: err}
				}
			}
		}

		res.Frontier = append([]uuid.UUID(nil), produced.TaskIDs...)
		res.Pools.Merge(produced.Outputs)
		res.Produced += len(produced.TaskIDs)
		b.metrics.TasksProduced(len(produced.TaskIDs))

		logger.Debug("process produced",
			"process", p.Code,
			"tasks", len(produced.TaskIDs),
		)
	}

	return res, nil
}
