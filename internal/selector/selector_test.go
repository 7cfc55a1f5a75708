package selector

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pgregory.net/rapid"
)

func urls(t *testing.T, s *Selector, n int) []string {
	t.Helper()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		e, err := s.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, e.URL)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSelector_PriorityRoundRobin(t *testing.T) {
	s := New([]Endpoint{
		{URL: "B", Priority: 1},
		{URL: "A", Priority: 2},
	}, StrategyPriority, nil)

	if got := urls(t, s, 3); !equal(got, []string{"A", "B", "A"}) {
		t.Errorf("got %v, want [A B A]", got)
	}
}

func TestSelector_Alphabet(t *testing.T) {
	s := New([]Endpoint{
		{URL: "http://c", Priority: 9},
		{URL: "http://a"},
		{URL: "http://b"},
	}, StrategyAlphabet, nil)

	want := []string{"http://a", "http://b", "http://c", "http://a"}
	if got := urls(t, s, 4); !equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSelector_DisabledExcluded(t *testing.T) {
	s := New([]Endpoint{
		{URL: "A", Priority: 5, Disabled: true},
		{URL: "B", Priority: 1},
	}, StrategyPriority, nil)

	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	if got := urls(t, s, 3); !equal(got, []string{"B", "B", "B"}) {
		t.Errorf("single endpoint must always be returned, got %v", got)
	}
	if _, ok := s.Lookup("A"); ok {
		t.Error("disabled endpoint must not be found")
	}
}

func TestSelector_Empty(t *testing.T) {
	s := New(nil, StrategyPriority, nil)
	if _, err := s.Next(); !errors.Is(err, ErrNoDispatchers) {
		t.Errorf("expected ErrNoDispatchers, got %v", err)
	}

	s = New([]Endpoint{{URL: "A", Disabled: true}}, StrategyPriority, nil)
	if _, err := s.Next(); !errors.Is(err, ErrNoDispatchers) {
		t.Errorf("expected ErrNoDispatchers when all disabled, got %v", err)
	}
}

func TestSelector_Reset(t *testing.T) {
	s := New([]Endpoint{{URL: "A", Priority: 2}, {URL: "B", Priority: 1}}, StrategyPriority, nil)

	_ = urls(t, s, 1)
	s.Reset()
	if got := urls(t, s, 1); !equal(got, []string{"A"}) {
		t.Errorf("after Reset got %v, want [A]", got)
	}
}

func TestSelector_StablePriorityTies(t *testing.T) {
	s := New([]Endpoint{{URL: "x"}, {URL: "y"}, {URL: "z"}}, StrategyPriority, nil)
	if got := urls(t, s, 3); !equal(got, []string{"x", "y", "z"}) {
		t.Errorf("equal priorities must keep config order, got %v", got)
	}
}

func TestProperty_EachEndpointOncePerCycle(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(rt, "n")
		endpoints := make([]Endpoint, n)
		for i := range endpoints {
			endpoints[i] = Endpoint{
				URL:      rapid.StringMatching(`http://[a-z]{1,6}`).Draw(rt, "url") + string(rune('0'+i)),
				Priority: rapid.IntRange(0, 3).Draw(rt, "priority"),
			}
		}
		s := New(endpoints, StrategyPriority, nil)

		cycles := rapid.IntRange(1, 4).Draw(rt, "cycles")
		for c := 0; c < cycles; c++ {
			seen := make(map[string]bool)
			prev := int(^uint(0) >> 1)
			for i := 0; i < n; i++ {
				e, err := s.Next()
				if err != nil {
					rt.Fatalf("Next: %v", err)
				}
				if seen[e.URL] {
					rt.Fatalf("endpoint %s returned twice in one cycle", e.URL)
				}
				if e.Priority > prev {
					rt.Fatalf("priority order violated: %d after %d", e.Priority, prev)
				}
				prev = e.Priority
				seen[e.URL] = true
			}
		}
	})
}

func TestParseConfig(t *testing.T) {
	data := []byte(`
strategy: alphabet
dispatchers:
  - url: http://b:8080
    priority: 1
    restUsername: proc
    restPassword: secret
  - url: http://a:8080
  - url: http://c:8080
    disabled: true
`)
	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	s, err := FromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if s.Strategy() != StrategyAlphabet {
		t.Errorf("strategy = %s", s.Strategy())
	}
	got := s.Endpoints()
	if len(got) != 2 || got[0].URL != "http://a:8080" || got[1].Username != "proc" {
		t.Errorf("endpoints = %+v", got)
	}
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"no dispatchers", "strategy: priority\n"},
		{"unknown property", "dispatchers:\n  - url: http://a\n    signature: x\n"},
		{"unknown strategy", "strategy: random\ndispatchers:\n  - url: http://a\n"},
		{"empty url", "dispatchers:\n  - priority: 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFromConfig_AllDisabled(t *testing.T) {
	cfg := &Config{Dispatchers: []DispatcherConfig{{URL: "http://a", Disabled: true}}}
	if _, err := FromConfig(cfg, nil); !errors.Is(err, ErrNoDispatchers) {
		t.Errorf("expected ErrNoDispatchers, got %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatcher.yaml")
	if err := os.WriteFile(path, []byte("dispatchers:\n  - url: http://a\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Dispatchers[0].URL != "http://a" {
		t.Errorf("url = %q", cfg.Dispatchers[0].URL)
	}
}
