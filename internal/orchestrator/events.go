package orchestrator

import (
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
)

type eventKind int

const (
	eventProduce eventKind = iota
	eventAssign
	eventComplete
	eventReset
	eventStop
)

func (k eventKind) String() string {
	switch k {
	case eventProduce:
		return "produce"
	case eventAssign:
		return "assign"
	case eventComplete:
		return "complete"
	case eventReset:
		return "reset"
	case eventStop:
		return "stop"
	default:
		return "unknown"
	}
}

// event — мутирующее событие exec context'а.
type event struct {
	kind   eventKind
	taskID uuid.UUID
	coreID uuid.UUID
	result domain.TaskExecResult

	// reply — ответ вызывающему; nil для fire-and-forget событий.
	reply *handoff
}

type reply struct {
	task *domain.Task
	err  error
}

// handoff передаёт ответ worker'а вызывающему. Вызывающий, ушедший по
// отмене ctx, бросает handoff; после этого deliver ответ не принимает.
type handoff struct {
	mu        sync.Mutex
	abandoned bool
	ch        chan reply
}

func newHandoff() *handoff {
	return &handoff{ch: make(chan reply, 1)}
}

// deliver отдаёт ответ. false — вызывающий уже ушёл и ответ никто не прочтёт.
func (h *handoff) deliver(r reply) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.abandoned {
		return false
	}
	h.ch <- r
	return true
}

// abandon бросает handoff. Если ответ успел прийти, он возвращается.
func (h *handoff) abandon() (reply, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.abandoned = true
	select {
	case r := <-h.ch:
		return r, true
	default:
		return reply{}, false
	}
}

func (h *handoff) gone() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.abandoned
}

// sameProduce склеивает повторные запросы на построение графа.
func sameProduce(a, b event) bool {
	return a.kind == eventProduce && b.kind == eventProduce && a.reply == nil && b.reply == nil
}
