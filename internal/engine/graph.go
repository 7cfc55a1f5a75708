package engine

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Edge — ребро parent → child.
type Edge struct {
	From uuid.UUID `json:"from"`
	To   uuid.UUID `json:"to"`
}

// Graph — граф tasks одного exec context'а.
//
// Вершины — ID tasks, хранятся в порядке добавления. Смежность хранится
// отдельно (children и обратный индекс parents), сами tasks живут
// в хранилище.
//
// Graph не потокобезопасен: им владеет один exec context, все изменения
// идут через его очередь событий.
type Graph struct {
	order    []uuid.UUID
	vertices map[uuid.UUID]struct{}
	children map[uuid.UUID][]uuid.UUID
	parents  map[uuid.UUID][]uuid.UUID
	edges    map[Edge]struct{}
}

// NewGraph создаёт пустой граф.
func NewGraph() *Graph {
	return &Graph{
		vertices: make(map[uuid.UUID]struct{}),
		children: make(map[uuid.UUID][]uuid.UUID),
		parents:  make(map[uuid.UUID][]uuid.UUID),
		edges:    make(map[Edge]struct{}),
	}
}

// AddVertex добавляет вершину. Возвращает false, если она уже есть.
func (g *Graph) AddVertex(id uuid.UUID) bool {
	if _, ok := g.vertices[id]; ok {
		return false
	}
	g.vertices[id] = struct{}{}
	g.order = append(g.order, id)
	return true
}

// AddEdge добавляет ребро from → to. Обе вершины должны уже быть в графе.
// Повторное добавление ребра ничего не меняет.
func (g *Graph) AddEdge(from, to uuid.UUID) error {
	if !g.HasVertex(from) {
		return fmt.Errorf("%w: %s", ErrUnknownVertex, from)
	}
	if !g.HasVertex(to) {
		return fmt.Errorf("%w: %s", ErrUnknownVertex, to)
	}

	e := Edge{From: from, To: to}
	if _, ok := g.edges[e]; ok {
		return nil
	}
	g.edges[e] = struct{}{}
	g.children[from] = append(g.children[from], to)
	g.parents[to] = append(g.parents[to], from)
	return nil
}

// HasVertex проверяет наличие вершины.
func (g *Graph) HasVertex(id uuid.UUID) bool {
	_, ok := g.vertices[id]
	return ok
}

// HasEdge проверяет наличие ребра.
func (g *Graph) HasEdge(from, to uuid.UUID) bool {
	_, ok := g.edges[Edge{From: from, To: to}]
	return ok
}

// Size возвращает количество вершин.
func (g *Graph) Size() int {
	return len(g.order)
}

// Vertices возвращает вершины в порядке добавления.
func (g *Graph) Vertices() []uuid.UUID {
	return append([]uuid.UUID(nil), g.order...)
}

// Edges возвращает все рёбра в порядке добавления вершин-родителей.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, len(g.edges))
	for _, from := range g.order {
		for _, to := range g.children[from] {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	return edges
}

// Children возвращает прямых потомков вершины.
func (g *Graph) Children(id uuid.UUID) []uuid.UUID {
	return append([]uuid.UUID(nil), g.children[id]...)
}

// Parents возвращает прямых предков вершины.
func (g *Graph) Parents(id uuid.UUID) []uuid.UUID {
	return append([]uuid.UUID(nil), g.parents[id]...)
}

// Roots возвращает вершины без предков.
func (g *Graph) Roots() []uuid.UUID {
	var roots []uuid.UUID
	for _, id := range g.order {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves возвращает вершины без потомков.
// Это frontier для продолжения построения графа.
func (g *Graph) Leaves() []uuid.UUID {
	var leaves []uuid.UUID
	for _, id := range g.order {
		if len(g.children[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// Descendants возвращает всех потомков вершины (без неё самой) в порядке обхода в ширину.
func (g *Graph) Descendants(id uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]bool{id: true}
	queue := []uuid.UUID{id}
	var out []uuid.UUID

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range g.children[cur] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// ReadyVertices возвращает вершины, готовые к назначению: сама вершина в NONE,
// все предки в OK. Вершины без состояния считаются NONE.
func (g *Graph) ReadyVertices(states map[uuid.UUID]domain.ExecState) []uuid.UUID {
	var ready []uuid.UUID
	for _, id := range g.order {
		if st, ok := states[id]; ok && st != domain.ExecStateNone {
			continue
		}
		allOK := true
		for _, p := range g.parents[id] {
			if states[p] != domain.ExecStateOK {
				allOK = false
				break
			}
		}
		if allOK {
			ready = append(ready, id)
		}
	}
	return ready
}

// IsComplete проверяет, что все вершины в финальном состоянии.
func (g *Graph) IsComplete(states map[uuid.UUID]domain.ExecState) bool {
	for _, id := range g.order {
		if !states[id].IsTerminal() {
			return false
		}
	}
	return true
}

// HasError проверяет, есть ли вершина в ERROR.
func (g *Graph) HasError(states map[uuid.UUID]domain.ExecState) bool {
	for _, id := range g.order {
		if states[id] == domain.ExecStateError {
			return true
		}
	}
	return false
}

// graphJSON — представление графа для хранения в exec_contexts.graph.
type graphJSON struct {
	Vertices []uuid.UUID `json:"vertices"`
	Edges    []Edge      `json:"edges"`
}

// MarshalJSON реализует json.Marshaler.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(graphJSON{
		Vertices: g.Vertices(),
		Edges:    g.Edges(),
	})
}

// UnmarshalJSON реализует json.Unmarshaler.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var raw graphJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*g = *NewGraph()
	for _, id := range raw.Vertices {
		g.AddVertex(id)
	}
	for _, e := range raw.Edges {
		if err := g.AddEdge(e.From, e.To); err != nil {
			return err
		}
	}
	return nil
}

// ParseGraph восстанавливает граф из JSON. Пустые данные дают пустой граф.
func ParseGraph(data []byte) (*Graph, error) {
	g := NewGraph()
	if len(data) == 0 || string(data) == "null" {
		return g, nil
	}
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("unmarshal graph: %w", err)
	}
	return g, nil
}
