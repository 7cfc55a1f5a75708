package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Conveyor/internal/domain"
)

const validSourceCode = `
version: 1
source:
  uid: scoring
  variables:
    inputs:
      - name: dataset
        sourcing: dispatcher
  processes:
    - code: fetch
      name: Fetch dataset
      function:
        code: http
        params:
          url: http://example.com/data
      outputs:
        - name: raw
    - code: train
      function:
        code: delay
      inputs:
        - name: raw
      outputs:
        - name: model
      subProcesses:
        logic: and
        processes:
          - code: validate
            function:
              code: delay
`

func TestParseSourceCode_Valid(t *testing.T) {
	spec, err := ParseSourceCode([]byte(validSourceCode))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if spec.Source.UID != "scoring" {
		t.Errorf("uid = %q, want scoring", spec.Source.UID)
	}
	if len(spec.Source.Processes) != 2 {
		t.Fatalf("processes = %d, want 2", len(spec.Source.Processes))
	}
	if spec.Source.Processes[0].Function.Params["url"] != "http://example.com/data" {
		t.Error("function params should be parsed")
	}
	if p := spec.FindProcess("validate"); p == nil || p.Function.Code != "delay" {
		t.Error("sub-process should be found by code")
	}
	if spec.Source.Variables.Inputs[0].Sourcing != domain.SourcingDispatcher {
		t.Error("variable sourcing should be parsed")
	}
}

func TestParseSourceCode_UnknownField(t *testing.T) {
	data := []byte("source:\n  uid: x\n  processes:\n    - code: a\n      function: {code: delay}\n      retries: 3\n")
	if _, err := ParseSourceCode(data); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseSourceCode_Empty(t *testing.T) {
	if _, err := ParseSourceCode(nil); !errors.Is(err, ErrEmptyProcesses) {
		t.Errorf("expected ErrEmptyProcesses, got %v", err)
	}
}

func TestValidate_EmptyProcesses(t *testing.T) {
	tests := []struct {
		name string
		spec *domain.SourceCodeSpec
	}{
		{name: "nil spec", spec: nil},
		{name: "no processes", spec: &domain.SourceCodeSpec{Source: domain.Source{UID: "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(tt.spec); !errors.Is(err, ErrEmptyProcesses) {
				t.Errorf("expected ErrEmptyProcesses, got %v", err)
			}
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	proc := func(code, fn string) domain.Process {
		return domain.Process{Code: code, Function: domain.FunctionRef{Code: fn}}
	}

	tests := []struct {
		name      string
		uid       string
		processes []domain.Process
		want      error
	}{
		{
			name:      "empty uid",
			processes: []domain.Process{proc("a", "delay")},
			want:      ErrEmptyUID,
		},
		{
			name:      "empty code",
			uid:       "x",
			processes: []domain.Process{proc("", "delay")},
			want:      ErrEmptyProcessCode,
		},
		{
			name:      "duplicate code",
			uid:       "x",
			processes: []domain.Process{proc("a", "delay"), proc("a", "http")},
			want:      ErrDuplicateProcessCode,
		},
		{
			name:      "empty function",
			uid:       "x",
			processes: []domain.Process{proc("a", "")},
			want:      ErrEmptyFunctionCode,
		},
		{
			name: "unknown context",
			uid:  "x",
			processes: []domain.Process{{
				Code:     "a",
				Function: domain.FunctionRef{Code: "delay", Context: "remote"},
			}},
			want: ErrUnknownFunctionContext,
		},
		{
			name: "duplicate code in sub-process",
			uid:  "x",
			processes: []domain.Process{{
				Code:         "a",
				Function:     domain.FunctionRef{Code: "delay"},
				SubProcesses: &domain.SubProcesses{Processes: []domain.Process{proc("a", "delay")}},
			}},
			want: ErrDuplicateProcessCode,
		},
		{
			name: "nested sub-processes",
			uid:  "x",
			processes: []domain.Process{{
				Code:     "a",
				Function: domain.FunctionRef{Code: "delay"},
				SubProcesses: &domain.SubProcesses{Processes: []domain.Process{{
					Code:         "b",
					Function:     domain.FunctionRef{Code: "delay"},
					SubProcesses: &domain.SubProcesses{Processes: []domain.Process{proc("c", "delay")}},
				}}},
			}},
			want: ErrTooManyLevels,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := &domain.SourceCodeSpec{Source: domain.Source{UID: tt.uid, Processes: tt.processes}}
			err := Validate(spec)

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %T (%v)", err, err)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestMarshalSourceCode_RoundTrip(t *testing.T) {
	spec, err := ParseSourceCode([]byte(validSourceCode))
	if err != nil {
		t.Fatal(err)
	}
	data, err := MarshalSourceCode(spec)
	if err != nil {
		t.Fatal(err)
	}
	again, err := ParseSourceCode(data)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if len(again.Source.Processes) != len(spec.Source.Processes) {
		t.Error("processes lost in round trip")
	}
}
