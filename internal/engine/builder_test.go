package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"pgregory.net/rapid"

	"github.com/shaiso/Conveyor/internal/domain"
)

// scriptedProducer возвращает заранее заданные tasks по коду процесса.
type scriptedProducer struct {
	tasks    map[string][]uuid.UUID
	status   map[string]domain.ProducingStatus
	outputs  map[string]map[string][]domain.VariableRef
	requests []StepRequest
}

func (p *scriptedProducer) ProduceTasks(_ context.Context, req StepRequest) (*ProducedTasks, error) {
	p.requests = append(p.requests, req)
	status := domain.ProducingStatusOK
	if s, ok := p.status[req.Process.Code]; ok {
		status = s
	}
	return &ProducedTasks{
		TaskIDs: p.tasks[req.Process.Code],
		Status:  status,
		Outputs: p.outputs[req.Process.Code],
	}, nil
}

func specOf(codes ...string) *domain.SourceCodeSpec {
	spec := &domain.SourceCodeSpec{Source: domain.Source{UID: "test"}}
	for _, c := range codes {
		spec.Source.Processes = append(spec.Source.Processes, domain.Process{
			Code:     c,
			Function: domain.FunctionRef{Code: "delay"},
		})
	}
	return spec
}

func TestBuilder_WiresFrontierToNewTasks(t *testing.T) {
	v := ids(3)
	t1, t2, t3 := v[0], v[1], v[2]
	producer := &scriptedProducer{tasks: map[string][]uuid.UUID{
		"s1": {t1, t2},
		"s2": {t3},
	}}

	res, err := NewBuilder(producer, nil, nil).Produce(context.Background(), ProduceRequest{
		ExecContextID: uuid.New(),
		Spec:          specOf("s1", "s2"),
	})
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}

	want := []Edge{{From: t1, To: t3}, {From: t2, To: t3}}
	got := res.Graph.Edges()
	if len(got) != len(want) {
		t.Fatalf("edges = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("edge %d = %v, want %v", i, got[i], want[i])
		}
	}
	if res.Status != domain.ProducingStatusOK || res.Produced != 3 {
		t.Errorf("status = %s, produced = %d", res.Status, res.Produced)
	}
	if len(res.Frontier) != 1 || res.Frontier[0] != t3 {
		t.Errorf("frontier = %v, want [t3]", res.Frontier)
	}
}

func TestBuilder_EmptyStepClearsFrontier(t *testing.T) {
	v := ids(2)
	producer := &scriptedProducer{tasks: map[string][]uuid.UUID{
		"s1": {v[0]},
		"s3": {v[1]},
	}}

	res, err := NewBuilder(producer, nil, nil).Produce(context.Background(), ProduceRequest{
		Spec: specOf("s1", "empty", "s3"),
	})
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if len(producer.requests[2].Frontier) != 0 {
		t.Errorf("frontier after empty step = %v, want empty", producer.requests[2].Frontier)
	}
	if edges := res.Graph.Edges(); len(edges) != 0 {
		t.Errorf("edges = %v, want none", edges)
	}
	if res.Graph.Size() != 2 {
		t.Errorf("size = %d, want 2", res.Graph.Size())
	}
}

func TestBuilder_AbortKeepsPriorSteps(t *testing.T) {
	v := ids(3)
	producer := &scriptedProducer{
		tasks: map[string][]uuid.UUID{
			"s1": {v[0]},
			"s2": {v[1]},
			"s3": {v[2]},
		},
		status: map[string]domain.ProducingStatus{
			"s2": domain.ProducingStatusTooManyLevelsOfSubProcess,
		},
	}

	res, err := NewBuilder(producer, nil, nil).Produce(context.Background(), ProduceRequest{
		Spec: specOf("s1", "s2", "s3"),
	})
	if !errors.Is(err, ErrProducingFailed) {
		t.Fatalf("expected ErrProducingFailed, got %v", err)
	}

	var pErr *ProducingError
	if !errors.As(err, &pErr) || pErr.Process != "s2" {
		t.Errorf("expected ProducingError for s2, got %v", err)
	}
	if res.Status != domain.ProducingStatusTooManyLevelsOfSubProcess {
		t.Errorf("status = %s", res.Status)
	}
	if !res.Graph.HasVertex(v[0]) {
		t.Error("vertices of prior steps must remain")
	}
	if res.Graph.HasVertex(v[1]) || res.Graph.HasVertex(v[2]) {
		t.Error("failing and later steps must not add vertices")
	}
	if len(producer.requests) != 2 {
		t.Errorf("producer calls = %d, want 2", len(producer.requests))
	}
}

func TestBuilder_ProducerError(t *testing.T) {
	boom := errors.New("db down")
	producer := TaskProducerFunc(func(context.Context, StepRequest) (*ProducedTasks, error) {
		return nil, boom
	})

	res, err := NewBuilder(producer, nil, nil).Produce(context.Background(), ProduceRequest{
		Spec: specOf("s1"),
	})
	if !errors.Is(err, boom) || !errors.Is(err, ErrProducingFailed) {
		t.Fatalf("expected wrapped producer error, got %v", err)
	}
	if res.Status != domain.ProducingStatusError {
		t.Errorf("status = %s, want PRODUCING_ERROR", res.Status)
	}
}

func TestBuilder_ContinuesExistingGraph(t *testing.T) {
	g := NewGraph()
	root := uuid.New()
	g.AddVertex(root)

	child := uuid.New()
	producer := &scriptedProducer{tasks: map[string][]uuid.UUID{"s1": {child}}}

	res, err := NewBuilder(producer, nil, nil).Produce(context.Background(), ProduceRequest{
		Spec:     specOf("s1"),
		Graph:    g,
		Frontier: []uuid.UUID{root},
	})
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if !res.Graph.HasEdge(root, child) {
		t.Error("expected edge from starting frontier")
	}
}

func TestBuilder_UnknownFrontier(t *testing.T) {
	producer := &scriptedProducer{}
	_, err := NewBuilder(producer, nil, nil).Produce(context.Background(), ProduceRequest{
		Spec:     specOf("s1"),
		Frontier: []uuid.UUID{uuid.New()},
	})
	if !errors.Is(err, ErrUnknownVertex) {
		t.Errorf("expected ErrUnknownVertex, got %v", err)
	}
	if len(producer.requests) != 0 {
		t.Error("producer must not be called")
	}
}

func TestBuilder_AccumulatesPools(t *testing.T) {
	ref := domain.VariableRef{ID: uuid.New(), Name: "raw"}
	producer := &scriptedProducer{
		tasks: map[string][]uuid.UUID{"s1": {uuid.New()}, "s2": {uuid.New()}},
		outputs: map[string]map[string][]domain.VariableRef{
			"s1": {"raw": {ref}},
		},
	}

	res, err := NewBuilder(producer, nil, nil).Produce(context.Background(), ProduceRequest{
		Spec: specOf("s1", "s2"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := producer.requests[1].Pools["raw"]; len(got) != 1 || got[0].ID != ref.ID {
		t.Errorf("second step pools = %v, want raw", got)
	}
	if len(res.Pools["raw"]) != 1 {
		t.Error("result pools should contain raw")
	}
}

// TestProperty_BipartiteWiring: рёбра графа — ровно объединение полных
// двудольных связей между соседними процессами.
func TestProperty_BipartiteWiring(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sizes := rapid.SliceOfN(rapid.IntRange(0, 4), 1, 6).Draw(rt, "sizes")

		producer := &scriptedProducer{tasks: make(map[string][]uuid.UUID)}
		var codes []string
		var steps [][]uuid.UUID
		for i, n := range sizes {
			code := string(rune('a' + i))
			codes = append(codes, code)
			step := ids(n)
			steps = append(steps, step)
			producer.tasks[code] = step
		}

		res, err := NewBuilder(producer, nil, nil).Produce(context.Background(), ProduceRequest{
			Spec: specOf(codes...),
		})
		if err != nil {
			rt.Fatalf("Produce: %v", err)
		}

		wantEdges := 0
		for i := 1; i < len(steps); i++ {
			for _, p := range steps[i-1] {
				for _, c := range steps[i] {
					if !res.Graph.HasEdge(p, c) {
						rt.Fatalf("missing edge %s → %s", p, c)
					}
					wantEdges++
				}
			}
		}
		if got := len(res.Graph.Edges()); got != wantEdges {
			rt.Fatalf("edges = %d, want %d", got, wantEdges)
		}
	})
}
