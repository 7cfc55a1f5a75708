package tenantqueue

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// TestProperty_PerTenantOrdering: для любой последовательности событий по
// нескольким tenant'ам каждый tenant видит свои события в порядке постановки.
func TestProperty_PerTenantOrdering(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		keys := rapid.SliceOfN(rapid.IntRange(0, 4), 1, 60).Draw(rt, "keys")

		var mu sync.Mutex
		got := make(map[int][]string)
		var done sync.WaitGroup
		done.Add(len(keys))

		q := New(Config[int, string]{
			Handler: func(_ context.Context, key int, event string) error {
				mu.Lock()
				got[key] = append(got[key], event)
				mu.Unlock()
				done.Done()
				return nil
			},
			IdleTimeout: time.Millisecond,
		})
		defer q.Close()

		want := make(map[int][]string)
		for i, k := range keys {
			e := fmt.Sprintf("%d-%d", k, i)
			want[k] = append(want[k], e)
			if err := q.Submit(k, e); err != nil {
				rt.Fatalf("Submit: %v", err)
			}
		}

		finished := make(chan struct{})
		go func() {
			done.Wait()
			close(finished)
		}()
		select {
		case <-finished:
		case <-time.After(5 * time.Second):
			rt.Fatalf("not all events were delivered")
		}

		mu.Lock()
		defer mu.Unlock()
		if !reflect.DeepEqual(got, want) {
			rt.Fatalf("per-tenant logs = %v, want %v", got, want)
		}
	})
}
