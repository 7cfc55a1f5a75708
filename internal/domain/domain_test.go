package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func okResult() string {
	return (&FunctionExec{Exec: &SystemExecResult{FunctionCode: "delay", IsOk: true}}).String()
}

func TestTask_Lifecycle(t *testing.T) {
	task := &Task{ID: uuid.New(), ExecState: ExecStateNone}
	coreID := uuid.New()
	assigned := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	task.Assign(coreID, assigned)
	if task.ExecState != ExecStateInProgress {
		t.Fatalf("state after assign = %s", task.ExecState)
	}
	if task.CoreID == nil || *task.CoreID != coreID {
		t.Errorf("core not recorded: %v", task.CoreID)
	}

	task.Complete(TaskExecResult{TaskID: task.ID, Result: okResult(), Metrics: `{"duration_ms":5}`}, assigned.Add(3*time.Second))
	if task.ExecState != ExecStateOK || !task.Completed {
		t.Fatalf("state after complete = %s, completed = %v", task.ExecState, task.Completed)
	}
	if !task.IsFinished() {
		t.Error("completed task must be finished")
	}
	if task.Duration() != 3*time.Second {
		t.Errorf("duration = %v, want 3s", task.Duration())
	}

	task.ResultReceived = true
	task.Reset()
	if task.ExecState != ExecStateNone || task.CoreID != nil || task.AssignedOn != nil || task.Completed || task.ResultReceived {
		t.Errorf("reset left state behind: %+v", task)
	}
	if task.Duration() != 0 {
		t.Errorf("duration after reset = %v", task.Duration())
	}
	if task.ResultResourceScheduledOn != nil {
		t.Errorf("result resource schedule must be cleared, got %v", task.ResultResourceScheduledOn)
	}
}

func TestTask_CompleteClassifiesResult(t *testing.T) {
	tests := []struct {
		name   string
		result string
		want   ExecState
	}{
		{"ok", okResult(), ExecStateOK},
		{"exec failed", (&FunctionExec{Exec: &SystemExecResult{ExitCode: 1}}).String(), ExecStateError},
		{"general failure", (&FunctionExec{
			Exec:        &SystemExecResult{IsOk: true},
			GeneralExec: &SystemExecResult{ExitCode: -1},
		}).String(), ExecStateError},
		{"empty", "", ExecStateError},
		{"garbage", "{not json", ExecStateError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{}
			task.Assign(uuid.New(), time.Now())
			task.Complete(TaskExecResult{Result: tt.result}, time.Now())
			if task.ExecState != tt.want {
				t.Errorf("state = %s, want %s", task.ExecState, tt.want)
			}
		})
	}
}

func TestFunctionExec_AllFunctionsAreOk(t *testing.T) {
	ok := SystemExecResult{IsOk: true}
	bad := SystemExecResult{ExitCode: 2}

	tests := []struct {
		name string
		fe   FunctionExec
		want bool
	}{
		{"empty", FunctionExec{}, false},
		{"main ok", FunctionExec{Exec: &ok}, true},
		{"main failed", FunctionExec{Exec: &bad}, false},
		{"pre failed", FunctionExec{Exec: &ok, PreExecs: []SystemExecResult{ok, bad}}, false},
		{"post failed", FunctionExec{Exec: &ok, PostExecs: []SystemExecResult{bad}}, false},
		{"all ok", FunctionExec{Exec: &ok, PreExecs: []SystemExecResult{ok}, PostExecs: []SystemExecResult{ok}}, true},
		{"general overrides exec", FunctionExec{Exec: &ok, GeneralExec: &bad}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fe.AllFunctionsAreOk(); got != tt.want {
				t.Errorf("AllFunctionsAreOk() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseFunctionExec_Empty(t *testing.T) {
	if _, err := ParseFunctionExec("  "); !errors.Is(err, ErrEmptyFunctionExec) {
		t.Fatalf("expected ErrEmptyFunctionExec, got %v", err)
	}
}

func TestTaskParams_YAML(t *testing.T) {
	taskID := uuid.New()
	tp := &TaskParams{
		Version:       1,
		ExecContextID: uuid.New(),
		ProcessCode:   "fetch",
		Function:      FunctionRef{Code: "http", Params: map[string]string{"url": "http://example.com"}},
		Inputs:        map[string][]VariableRef{"in": {{ID: uuid.New(), Name: "in"}}},
		Outputs:       []VariableRef{{ID: uuid.New(), Name: "out", TaskID: &taskID}},
		TimeoutSec:    30,
	}

	raw, err := tp.String()
	if err != nil {
		t.Fatalf("String: %v", err)
	}
	got, err := ParseTaskParams(raw)
	if err != nil {
		t.Fatalf("ParseTaskParams: %v", err)
	}
	if got.ExecContextID != tp.ExecContextID || got.Function.Params["url"] != "http://example.com" {
		t.Errorf("params mismatch: %+v", got)
	}
	if got.Outputs[0].TaskID == nil || *got.Outputs[0].TaskID != taskID {
		t.Errorf("output task id lost: %+v", got.Outputs)
	}
	if got.TimeoutSec != 30 {
		t.Errorf("timeout = %d, want 30", got.TimeoutSec)
	}
}

func TestSourceCodeSpec_FindProcess(t *testing.T) {
	spec := &SourceCodeSpec{Source: Source{Processes: []Process{
		{Code: "a"},
		{Code: "b", SubProcesses: &SubProcesses{Processes: []Process{{Code: "b1"}}}},
	}}}

	if p := spec.FindProcess("b1"); p == nil || p.Code != "b1" {
		t.Errorf("nested process not found: %v", p)
	}
	if p := spec.FindProcess("a"); p == nil {
		t.Error("top-level process not found")
	}
	if p := spec.FindProcess("zzz"); p != nil {
		t.Errorf("unexpected process: %v", p)
	}
}

func TestExecContextState_IsTerminal(t *testing.T) {
	for _, s := range []ExecContextState{ExecContextStateFinished, ExecContextStateError, ExecContextStateStopped} {
		if !s.IsTerminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
	for _, s := range []ExecContextState{ExecContextStateNone, ExecContextStateProducing, ExecContextStateStarted} {
		if s.IsTerminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}
}

func TestParseExecState_UnknownIsNone(t *testing.T) {
	if ParseExecState("BOGUS") != ExecStateNone {
		t.Error("unknown exec state must parse as NONE")
	}
	if ParseExecState("IN_PROGRESS") != ExecStateInProgress {
		t.Error("IN_PROGRESS not parsed")
	}
}
