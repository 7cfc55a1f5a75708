package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

// taskParamsVersion — версия формата TaskParams.
const taskParamsVersion = 1

// TaskCreator сохраняет новые tasks.
type TaskCreator interface {
	Create(ctx context.Context, task *domain.Task) error
}

// Producer — TaskProducer по умолчанию.
//
// Один task на внешний процесс и по одному на каждый вложенный процесс.
// Функции с контекстом internal dispatcher не выполняет.
type Producer struct {
	tasks  TaskCreator
	logger *slog.Logger
	now    func() time.Time
}

// NewProducer создаёт Producer.
func NewProducer(tasks TaskCreator, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		tasks:  tasks,
		logger: logger.With("component", "task_producer"),
		now:    time.Now,
	}
}

// ProduceTasks реализует engine.TaskProducer.
func (p *Producer) ProduceTasks(ctx context.Context, req engine.StepRequest) (*engine.ProducedTasks, error) {
	if req.Process == nil {
		return &engine.ProducedTasks{Status: domain.ProducingStatusProcessNotFound}, nil
	}

	processes := []*domain.Process{req.Process}
	if sub := req.Process.SubProcesses; sub != nil {
		for i := range sub.Processes {
			child := &sub.Processes[i]
			if child.SubProcesses != nil && len(child.SubProcesses.Processes) > 0 {
				return &engine.ProducedTasks{Status: domain.ProducingStatusTooManyLevelsOfSubProcess}, nil
			}
			processes = append(processes, child)
		}
	}

	// Проверяем все процессы до создания первой записи.
	for _, proc := range processes {
		if proc.Function.IsInternal() {
			p.logger.Warn("internal function is not supported",
				"process", proc.Code,
				"function", proc.Function.Code,
			)
			return &engine.ProducedTasks{Status: domain.ProducingStatusInternalFunctionNotSupp}, nil
		}
	}

	out := &engine.ProducedTasks{
		Status:  domain.ProducingStatusOK,
		Outputs: make(map[string][]domain.VariableRef),
	}

	for _, proc := range processes {
		task, outputs, err := p.buildTask(req, proc)
		if err != nil {
			return &engine.ProducedTasks{Status: domain.ProducingStatusError}, err
		}
		if err := p.tasks.Create(ctx, task); err != nil {
			return &engine.ProducedTasks{Status: domain.ProducingStatusError}, fmt.Errorf("create task for %s: %w", proc.Code, err)
		}

		out.TaskIDs = append(out.TaskIDs, task.ID)
		for _, ref := range outputs {
			out.Outputs[ref.Name] = append(out.Outputs[ref.Name], ref)
		}
	}

	return out, nil
}

func (p *Producer) buildTask(req engine.StepRequest, proc *domain.Process) (*domain.Task, []domain.VariableRef, error) {
	taskID := uuid.New()

	inputs := make(map[string][]domain.VariableRef, len(proc.Inputs))
	for _, v := range proc.Inputs {
		if refs, ok := req.Pools[v.Name]; ok {
			inputs[v.Name] = refs
			continue
		}
		// Входы exec context'а: id стабилен в пределах exec context'а.
		inputs[v.Name] = []domain.VariableRef{{
			ID:       uuid.NewSHA1(req.ExecContextID, []byte(v.Name)),
			Name:     v.Name,
			Sourcing: v.Sourcing,
		}}
	}

	outputs := make([]domain.VariableRef, 0, len(proc.Outputs))
	for _, v := range proc.Outputs {
		id := taskID
		outputs = append(outputs, domain.VariableRef{
			ID:       uuid.New(),
			Name:     v.Name,
			Sourcing: v.Sourcing,
			TaskID:   &id,
		})
	}

	params := &domain.TaskParams{
		Version:       taskParamsVersion,
		ExecContextID: req.ExecContextID,
		ProcessCode:   proc.Code,
		Function:      proc.Function,
		Inputs:        inputs,
		Outputs:       outputs,
		TimeoutSec:    proc.TimeoutSec,
	}
	raw, err := params.String()
	if err != nil {
		return nil, nil, err
	}

	task := &domain.Task{
		ID:            taskID,
		ExecContextID: req.ExecContextID,
		Params:        raw,
		ExecState:     domain.ExecStateNone,
		CreatedAt:     p.now(),
	}
	return task, outputs, nil
}
