package processor

import (
	"context"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
)

// DelayExecutor — функция "delay".
//
// Params:
//   - duration_sec: длительность задержки в секундах (default: 1)
type DelayExecutor struct{}

// Execute выполняет задержку.
func (e *DelayExecutor) Execute(ctx context.Context, params *domain.TaskParams) (*ExecutionResult, error) {
	durationSec, err := paramFloat(params.Function.Params, "duration_sec", 1)
	if err != nil {
		return nil, err
	}
	if durationSec < 0 {
		durationSec = 0
	}

	timer := time.NewTimer(time.Duration(durationSec * float64(time.Second)))
	defer timer.Stop()

	select {
	case <-timer.C:
		return &ExecutionResult{
			Outputs: map[string]any{"delayed_sec": durationSec},
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
