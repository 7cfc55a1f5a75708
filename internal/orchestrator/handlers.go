package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/taskstate"
)

// handleExecContextPending обрабатывает событие о новом exec context'е.
func (o *Orchestrator) handleExecContextPending(ctx context.Context, msg *mq.Message) error {
	payload, err := mq.ParsePayload[mq.ExecContextPendingPayload](msg)
	if err != nil {
		return err
	}

	o.logger.Debug("received exec_context.pending event", "exec_context_id", payload.ExecContextID)

	err = o.StartExecContext(ctx, payload.ExecContextID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrExecContextNotPending):
		o.logger.Debug("exec context not processed", "exec_context_id", payload.ExecContextID, "reason", err)
		return nil
	case errors.Is(err, ErrExecContextNotFound), errors.Is(err, engine.ErrProducingFailed):
		return fmt.Errorf("%w: %v", mq.ErrPermanent, err)
	default:
		return err
	}
}

// handleTaskResult обрабатывает результат выполнения task'а.
func (o *Orchestrator) handleTaskResult(ctx context.Context, msg *mq.Message) error {
	payload, err := mq.ParsePayload[mq.TaskResultPayload](msg)
	if err != nil {
		return err
	}

	o.logger.Debug("received task.result event",
		"task_id", payload.TaskID,
		"exec_context_id", payload.ExecContextID,
	)

	_, err = o.ReportResult(ctx, domain.TaskExecResult{
		TaskID:  payload.TaskID,
		Result:  payload.Result,
		Metrics: payload.Metrics,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTaskNotFound), errors.Is(err, taskstate.ErrTaskNotFound):
		return fmt.Errorf("%w: %v", mq.ErrPermanent, err)
	case errors.Is(err, taskstate.ErrTaskWasReset):
		// Результат для сброшенного task'а больше не нужен.
		o.logger.Info("result for reset task dropped", "task_id", payload.TaskID)
		return nil
	default:
		return err
	}
}

// handle — обработчик событий очереди exec context'а.
// Ответ отправляется всегда, даже если обработчик упал.
func (o *Orchestrator) handle(ctx context.Context, id uuid.UUID, ev event) error {
	res := reply{err: ErrEventDropped}
	if ev.reply != nil {
		defer func() {
			if !ev.reply.deliver(res) && ev.kind == eventAssign && res.task != nil {
				o.releaseUndelivered(ctx, id, res.task)
			}
		}()
	}

	switch ev.kind {
	case eventProduce:
		res.err = o.produce(ctx, id)
	case eventAssign:
		if ev.reply != nil && ev.reply.gone() {
			res.err = context.Canceled
			break
		}
		res.task, res.err = o.assign(ctx, id, ev.coreID)
	case eventComplete:
		res.task, res.err = o.complete(ctx, id, ev.result)
	case eventReset:
		res.err = o.reset(ctx, id, ev.taskID)
	case eventStop:
		res.err = o.stop(ctx, id)
	default:
		res.err = fmt.Errorf("unknown event kind %d", ev.kind)
	}

	if res.err != nil && ev.reply != nil {
		// Ошибку получит вызывающий, в очереди она не нужна.
		return nil
	}
	return res.err
}

// produce строит граф tasks exec context'а.
func (o *Orchestrator) produce(ctx context.Context, id uuid.UUID) error {
	ec, err := o.loadExecContext(ctx, id)
	if err != nil {
		return err
	}
	if ec.State != domain.ExecContextStateNone {
		return fmt.Errorf("%w: %s is %s", ErrExecContextNotPending, id, ec.State)
	}

	if err := o.execContexts.UpdateState(ctx, id, domain.ExecContextStateNone, domain.ExecContextStateProducing); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrExecContextNotPending, id)
		}
		return fmt.Errorf("mark producing: %w", err)
	}
	ec.State = domain.ExecContextStateProducing

	logger := o.logger.With("exec_context_id", id)

	sc, err := o.sourceCodes.GetByID(ctx, ec.SourceCodeID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			err = fmt.Errorf("%w: %s", ErrSourceCodeNotFound, ec.SourceCodeID)
			return o.failExecContext(ctx, ec, err.Error(), err)
		}
		return fmt.Errorf("get source code: %w", err)
	}

	res, err := o.builder.Produce(ctx, engine.ProduceRequest{
		ExecContextID: id,
		Spec:          &sc.Spec,
	})
	if res != nil && res.Graph != nil {
		if data, merr := json.Marshal(res.Graph); merr == nil {
			ec.Graph = data
		}
	}
	if err != nil {
		return o.failExecContext(ctx, ec, fmt.Sprintf("%s: %v", res.Status, err), err)
	}

	ec.MarkStarted()
	if err := o.execContexts.Update(ctx, ec); err != nil {
		return fmt.Errorf("mark started: %w", err)
	}
	o.graphs.put(id, res.Graph)

	logger.Info("exec context started", "tasks", res.Produced)
	return nil
}

// assign назначает ядру первый готовый task exec context'а.
func (o *Orchestrator) assign(ctx context.Context, id, coreID uuid.UUID) (*domain.Task, error) {
	if _, ok := o.graphs.get(id); !ok {
		ec, err := o.loadExecContext(ctx, id)
		if err != nil {
			return nil, err
		}
		if ec.State != domain.ExecContextStateStarted {
			return nil, fmt.Errorf("%w: %s is %s", ErrExecContextNotStarted, id, ec.State)
		}
	}

	graph, err := o.graph(ctx, id)
	if err != nil {
		return nil, err
	}

	states, err := o.tasks.ExecStates(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load exec states: %w", err)
	}

	for _, taskID := range graph.ReadyVertices(states) {
		task, err := o.store.Assign(ctx, taskID, coreID)
		switch {
		case err == nil:
			o.logger.Info("task assigned",
				"task_id", taskID,
				"exec_context_id", id,
				"core_id", coreID,
			)
			return task, nil
		case errors.Is(err, taskstate.ErrTaskAlreadyAssigned), errors.Is(err, taskstate.ErrTaskNotFound):
			continue
		default:
			return nil, err
		}
	}
	return nil, nil
}

// releaseUndelivered возвращает в NONE task, назначенный ядру, которое
// так и не получило ответ.
func (o *Orchestrator) releaseUndelivered(ctx context.Context, id uuid.UUID, task *domain.Task) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if _, err := o.store.Reset(ctx, task.ID); err != nil {
		o.logger.Error("failed to release undelivered assignment",
			"task_id", task.ID,
			"exec_context_id", id,
			"error", err,
		)
		return
	}
	o.logger.Warn("assignment not delivered, task released",
		"task_id", task.ID,
		"exec_context_id", id,
		"core_id", task.CoreID,
	)
}

// complete сохраняет результат task'а и финализирует exec context,
// если все tasks завершены или один из них упал.
func (o *Orchestrator) complete(ctx context.Context, id uuid.UUID, result domain.TaskExecResult) (*domain.Task, error) {
	task, err := o.store.MarkCompleted(ctx, result)
	if err != nil {
		return nil, err
	}

	if err := o.checkFinished(ctx, id); err != nil {
		return task, err
	}
	return task, nil
}

func (o *Orchestrator) checkFinished(ctx context.Context, id uuid.UUID) error {
	ec, err := o.loadExecContext(ctx, id)
	if err != nil {
		return err
	}
	if ec.State != domain.ExecContextStateStarted {
		return nil
	}

	graph, err := o.graph(ctx, id)
	if err != nil {
		return err
	}
	states, err := o.tasks.ExecStates(ctx, id)
	if err != nil {
		return fmt.Errorf("load exec states: %w", err)
	}

	switch {
	case graph.HasError(states):
		ec.MarkError("task finished with error")
		o.logger.Warn("exec context failed", "exec_context_id", id)
	case graph.IsComplete(states):
		ec.MarkFinished()
		o.logger.Info("exec context finished", "exec_context_id", id)
	default:
		return nil
	}

	if err := o.execContexts.Update(ctx, ec); err != nil {
		return fmt.Errorf("update exec context: %w", err)
	}
	o.graphs.drop(id)
	return nil
}

// reset сбрасывает task и его потомков. Завершённый exec context
// снова становится STARTED.
func (o *Orchestrator) reset(ctx context.Context, id, taskID uuid.UUID) error {
	graph, err := o.graph(ctx, id)
	if err != nil {
		return err
	}

	ids := append([]uuid.UUID{taskID}, graph.Descendants(taskID)...)
	for _, tid := range ids {
		if _, err := o.store.Reset(ctx, tid); err != nil {
			return fmt.Errorf("reset task %s: %w", tid, err)
		}
	}

	ec, err := o.loadExecContext(ctx, id)
	if err != nil {
		return err
	}
	if ec.State == domain.ExecContextStateFinished || ec.State == domain.ExecContextStateError {
		ec.State = domain.ExecContextStateStarted
		ec.CompletedOn = nil
		ec.Error = ""
		if err := o.execContexts.Update(ctx, ec); err != nil {
			return fmt.Errorf("reopen exec context: %w", err)
		}
		o.graphs.put(id, graph)
	}

	o.logger.Info("tasks reset", "exec_context_id", id, "task_id", taskID, "count", len(ids))
	return nil
}

func (o *Orchestrator) stop(ctx context.Context, id uuid.UUID) error {
	ec, err := o.loadExecContext(ctx, id)
	if err != nil {
		return err
	}
	if ec.IsFinished() {
		return nil
	}

	ec.State = domain.ExecContextStateStopped
	if err := o.execContexts.Update(ctx, ec); err != nil {
		return fmt.Errorf("stop exec context: %w", err)
	}
	o.graphs.drop(id)
	o.logger.Info("exec context stopped", "exec_context_id", id)
	return nil
}

// failExecContext переводит exec context в ERROR и возвращает cause.
func (o *Orchestrator) failExecContext(ctx context.Context, ec *domain.ExecContext, reason string, cause error) error {
	ec.MarkError(reason)
	if err := o.execContexts.Update(ctx, ec); err != nil {
		return fmt.Errorf("mark error: %w (cause: %v)", err, cause)
	}
	o.logger.Warn("exec context failed", "exec_context_id", ec.ID, "error", reason)
	return cause
}

// graph возвращает граф exec context'а, при необходимости восстанавливая его из БД.
func (o *Orchestrator) graph(ctx context.Context, id uuid.UUID) (*engine.Graph, error) {
	if g, ok := o.graphs.get(id); ok {
		return g, nil
	}

	ec, err := o.loadExecContext(ctx, id)
	if err != nil {
		return nil, err
	}
	g, err := engine.ParseGraph(ec.Graph)
	if err != nil {
		return nil, err
	}
	if ec.State == domain.ExecContextStateStarted {
		o.graphs.put(id, g)
		o.logger.Debug("graph restored", "exec_context_id", id, "vertices", g.Size())
	}
	return g, nil
}

func (o *Orchestrator) loadExecContext(ctx context.Context, id uuid.UUID) (*domain.ExecContext, error) {
	ec, err := o.execContexts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrExecContextNotFound, id)
		}
		return nil, fmt.Errorf("get exec context: %w", err)
	}
	return ec, nil
}
