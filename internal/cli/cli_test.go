package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	scID   = "0b8f3c2e-6d0e-4c5e-9a55-3f1f0d6f1a01"
	ecID   = "6a1d4f40-2f5b-4a8b-8f2e-7c8d0f4b9e02"
	taskID = "9c2e7b1a-3d4f-4e5a-b6c7-d8e9f0a1b203"
)

const sourceYAML = `version: 1
source:
  uid: demo
  processes:
    - code: wait
      function:
        code: delay
`

// fakeAPI — минимальная эмуляция REST API dispatcher'а.
type fakeAPI struct {
	t        *testing.T
	uploaded []byte
	resets   []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	write := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}
	sc := map[string]any{"id": scID, "uid": "demo", "processes": 1, "created_at": "2024-05-01T12:00:00Z",
		"spec": map[string]any{"version": 1, "source": map[string]any{"uid": "demo"}}}
	ec := map[string]any{"id": ecID, "source_code_id": scID, "state": "STARTED", "created_at": "2024-05-01T12:00:00Z"}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/rest/v1/source-codes":
		if ct := r.Header.Get("Content-Type"); ct != "application/yaml" {
			f.t.Errorf("content type = %q, want application/yaml", ct)
		}
		f.uploaded, _ = io.ReadAll(r.Body)
		write(http.StatusCreated, map[string]any{"data": sc})
	case r.Method == http.MethodGet && r.URL.Path == "/rest/v1/source-codes":
		write(http.StatusOK, map[string]any{"data": []any{sc}, "total": 1})
	case r.Method == http.MethodGet && r.URL.Path == "/rest/v1/source-codes/"+scID:
		write(http.StatusOK, map[string]any{"data": sc})
	case r.Method == http.MethodPost && r.URL.Path == "/rest/v1/source-codes/"+scID+"/exec-contexts":
		write(http.StatusCreated, map[string]any{"data": ec})
	case r.Method == http.MethodGet && r.URL.Path == "/rest/v1/exec-contexts":
		if got := r.URL.Query().Get("state"); got != "STARTED" {
			f.t.Errorf("state filter = %q, want STARTED", got)
		}
		write(http.StatusOK, map[string]any{"data": []any{ec}, "total": 1})
	case r.Method == http.MethodGet && r.URL.Path == "/rest/v1/exec-contexts/"+ecID+"/tasks":
		write(http.StatusOK, map[string]any{"data": []any{map[string]any{
			"id": taskID, "exec_context_id": ecID, "version": 2, "exec_state": "IN_PROGRESS",
			"completed": false, "result_received": false, "created_at": "2024-05-01T12:00:00Z",
		}}, "total": 1})
	case r.Method == http.MethodPost && r.URL.Path == "/rest/v1/tasks/"+taskID+"/reset":
		f.resets = append(f.resets, taskID)
		w.WriteHeader(http.StatusNoContent)
	default:
		write(http.StatusNotFound, map[string]any{"error": map[string]any{"code": "NOT_FOUND", "message": "exec context not found"}})
	}
}

func run(t *testing.T, api *fakeAPI, stdin string, args ...string) (string, string, error) {
	t.Helper()
	server := httptest.NewServer(api)
	defer server.Close()

	var stdout, stderr bytes.Buffer
	root := NewRootCmd("test")
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--api-url", server.URL}, args...))

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestSourceCodeCreate_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	if err := os.WriteFile(path, []byte(sourceYAML), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	api := &fakeAPI{t: t}
	stdout, stderr, err := run(t, api, "", "source-code", "create", "-f", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(api.uploaded) != sourceYAML {
		t.Errorf("uploaded body mismatch:\n%s", api.uploaded)
	}
	if !strings.Contains(stderr, "Source code created: "+scID) {
		t.Errorf("expected success message, got %q", stderr)
	}
	if !strings.Contains(stdout, "demo") || !strings.Contains(stdout, "PROCESSES") {
		t.Errorf("expected table output, got %q", stdout)
	}
}

func TestSourceCodeCreate_FromStdin(t *testing.T) {
	api := &fakeAPI{t: t}
	if _, _, err := run(t, api, sourceYAML, "sc", "create", "--file", "-"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(api.uploaded) != sourceYAML {
		t.Errorf("uploaded body mismatch:\n%s", api.uploaded)
	}
}

func TestSourceCodeCreate_InvalidYAML(t *testing.T) {
	api := &fakeAPI{t: t}
	_, _, err := run(t, api, "source: [unclosed", "source-code", "create", "-f", "-")
	if err == nil || !strings.Contains(err.Error(), "not valid YAML") {
		t.Fatalf("expected YAML error, got %v", err)
	}
	if api.uploaded != nil {
		t.Error("invalid YAML must not be uploaded")
	}
}

func TestSourceCodeList_JSON(t *testing.T) {
	stdout, _, err := run(t, &fakeAPI{t: t}, "", "--json", "source-code", "list")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var codes []SourceCodeResponse
	if err := json.Unmarshal([]byte(stdout), &codes); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if len(codes) != 1 || codes[0].ID != scID {
		t.Errorf("unexpected codes: %+v", codes)
	}
}

func TestSourceCodeShow_RendersSpec(t *testing.T) {
	stdout, _, err := run(t, &fakeAPI{t: t}, "", "source-code", "show", scID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "uid: demo") {
		t.Errorf("expected YAML spec in output, got %q", stdout)
	}
}

func TestExecContextStartAndList(t *testing.T) {
	api := &fakeAPI{t: t}

	stdout, stderr, err := run(t, api, "", "exec-context", "start", scID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !strings.Contains(stderr, "Exec context started: "+ecID) || !strings.Contains(stdout, "STARTED") {
		t.Errorf("unexpected start output: %q / %q", stdout, stderr)
	}

	stdout, _, err = run(t, api, "", "ec", "list", "--state", "STARTED")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(stdout, ecID) {
		t.Errorf("expected exec context in list, got %q", stdout)
	}
}

func TestExecContextTasks(t *testing.T) {
	stdout, _, err := run(t, &fakeAPI{t: t}, "", "exec-context", "tasks", ecID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{taskID, "IN_PROGRESS", "RESULT_RECEIVED"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output:\n%s", want, stdout)
		}
	}
}

func TestExecContextShow_APIError(t *testing.T) {
	_, _, err := run(t, &fakeAPI{t: t}, "", "exec-context", "show", "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "NOT_FOUND: exec context not found" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTaskReset(t *testing.T) {
	api := &fakeAPI{t: t}
	_, stderr, err := run(t, api, "", "task", "reset", taskID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.resets) != 1 {
		t.Errorf("expected one reset call, got %d", len(api.resets))
	}
	if !strings.Contains(stderr, "Task reset: "+taskID) {
		t.Errorf("expected success message, got %q", stderr)
	}
}

func TestOutput_TableDashesEmptyCells(t *testing.T) {
	var buf bytes.Buffer
	NewOutputTo(&buf, io.Discard, false).Table([]string{"A", "B"}, [][]string{{"x", ""}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[2]), "-") {
		t.Errorf("empty cell must render as '-', got %q", lines[2])
	}
}

func TestOutput_RecordIsVertical(t *testing.T) {
	var buf bytes.Buffer
	NewOutputTo(&buf, io.Discard, false).Record([]string{"ID", "STATE", "ERROR"}, []string{"ec-1", "STARTED"}, nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected one line per field, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[1], "STATE:") || !strings.HasSuffix(lines[1], "STARTED") {
		t.Errorf("unexpected field line %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], "-") {
		t.Errorf("missing value must render as '-', got %q", lines[2])
	}
}

func TestOutput_RecordJSON(t *testing.T) {
	var buf bytes.Buffer
	NewOutputTo(&buf, io.Discard, true).Record([]string{"ID"}, []string{"x"}, map[string]string{"id": "x"})
	if !strings.Contains(buf.String(), `"id": "x"`) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}
