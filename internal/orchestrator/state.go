package orchestrator

import (
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/engine"
)

// graphCache — графы запущенных exec contexts.
// После рестарта граф восстанавливается из exec_contexts.graph.
type graphCache struct {
	mu     sync.RWMutex
	graphs map[uuid.UUID]*engine.Graph
}

func newGraphCache() *graphCache {
	return &graphCache{graphs: make(map[uuid.UUID]*engine.Graph)}
}

func (c *graphCache) get(id uuid.UUID) (*engine.Graph, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.graphs[id]
	return g, ok
}

func (c *graphCache) put(id uuid.UUID, g *engine.Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.graphs[id] = g
}

func (c *graphCache) drop(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.graphs, id)
}

func (c *graphCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.graphs)
}
