package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/orchestrator"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/taskstate"
)

// --- Fakes ---

type fakeSourceCodes struct {
	mu    sync.Mutex
	codes map[uuid.UUID]domain.SourceCode
}

func (f *fakeSourceCodes) Create(_ context.Context, sc *domain.SourceCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.codes {
		if existing.UID == sc.UID {
			return repo.ErrAlreadyExists
		}
	}
	f.codes[sc.ID] = *sc
	return nil
}

func (f *fakeSourceCodes) GetByID(_ context.Context, id uuid.UUID) (*domain.SourceCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sc, ok := f.codes[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &sc, nil
}

func (f *fakeSourceCodes) List(context.Context) ([]domain.SourceCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.SourceCode, 0, len(f.codes))
	for _, sc := range f.codes {
		out = append(out, sc)
	}
	return out, nil
}

type fakeExecContexts struct {
	mu  sync.Mutex
	ecs map[uuid.UUID]domain.ExecContext
}

func (f *fakeExecContexts) Create(_ context.Context, ec *domain.ExecContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ecs[ec.ID] = *ec
	return nil
}

func (f *fakeExecContexts) GetByID(_ context.Context, id uuid.UUID) (*domain.ExecContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ec, ok := f.ecs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &ec, nil
}

func (f *fakeExecContexts) List(_ context.Context, filter repo.ExecContextFilter) ([]domain.ExecContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ExecContext
	for _, ec := range f.ecs {
		if filter.State != "" && ec.State != filter.State {
			continue
		}
		out = append(out, ec)
	}
	return out, nil
}

func (f *fakeExecContexts) setState(id uuid.UUID, state domain.ExecContextState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ec := f.ecs[id]
	ec.State = state
	f.ecs[id] = ec
}

type fakeTasks map[uuid.UUID][]domain.Task

func (f fakeTasks) ListByExecContextID(_ context.Context, id uuid.UUID) ([]domain.Task, error) {
	return f[id], nil
}

type fakeDispatcher struct {
	mu       sync.Mutex
	ecs      *fakeExecContexts
	next     *domain.Task
	reports  []domain.TaskExecResult
	reportFn func(domain.TaskExecResult) error
	resets   []uuid.UUID
	uploads  map[uuid.UUID]domain.UploadStatus
}

func (d *fakeDispatcher) StartExecContext(_ context.Context, id uuid.UUID) error {
	d.ecs.setState(id, domain.ExecContextStateStarted)
	return nil
}

func (d *fakeDispatcher) StopExecContext(_ context.Context, id uuid.UUID) error {
	if _, err := d.ecs.GetByID(context.Background(), id); err != nil {
		return orchestrator.ErrExecContextNotFound
	}
	d.ecs.setState(id, domain.ExecContextStateStopped)
	return nil
}

func (d *fakeDispatcher) AssignTask(_ context.Context, coreID uuid.UUID) (*domain.Task, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	task := d.next
	d.next = nil
	if task != nil {
		task.CoreID = &coreID
	}
	return task, nil
}

func (d *fakeDispatcher) ReportResult(_ context.Context, result domain.TaskExecResult) (*domain.Task, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reportFn != nil {
		if err := d.reportFn(result); err != nil {
			return nil, err
		}
	}
	d.reports = append(d.reports, result)
	return &domain.Task{ID: result.TaskID}, nil
}

func (d *fakeDispatcher) ResetTask(_ context.Context, taskID uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets = append(d.resets, taskID)
	return nil
}

func (d *fakeDispatcher) UploadResult(_ context.Context, taskID uuid.UUID) (domain.UploadStatus, error) {
	if status, ok := d.uploads[taskID]; ok {
		return status, nil
	}
	return domain.UploadStatusTaskNotFound, nil
}

type fakePublisher struct {
	mu      sync.Mutex
	pending []uuid.UUID
	results []mq.TaskResultPayload
	err     error
}

func (p *fakePublisher) PublishExecContextPending(_ context.Context, id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, id)
	return p.err
}

func (p *fakePublisher) PublishTaskResult(_ context.Context, payload mq.TaskResultPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.results = append(p.results, payload)
	return nil
}

type testServer struct {
	*httptest.Server
	sources    *fakeSourceCodes
	ecs        *fakeExecContexts
	tasks      fakeTasks
	dispatcher *fakeDispatcher
}

func newTestServer(t *testing.T, publisher EventPublisher, username, password string) *testServer {
	t.Helper()
	ecs := &fakeExecContexts{ecs: make(map[uuid.UUID]domain.ExecContext)}
	ts := &testServer{
		sources:    &fakeSourceCodes{codes: make(map[uuid.UUID]domain.SourceCode)},
		ecs:        ecs,
		tasks:      make(fakeTasks),
		dispatcher: &fakeDispatcher{ecs: ecs, uploads: make(map[uuid.UUID]domain.UploadStatus)},
	}

	cfg := Config{
		SourceCodes:  ts.sources,
		ExecContexts: ts.ecs,
		Tasks:        ts.tasks,
		Dispatcher:   ts.dispatcher,
		Username:     username,
		Password:     password,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if publisher != nil {
		cfg.Publisher = publisher
	}

	mux := http.NewServeMux()
	NewHandler(cfg).RegisterRoutes(mux)
	ts.Server = httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func decodeData[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var body struct {
		Data T `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body.Data
}

const sourceYAML = `
version: 1
source:
  uid: api-test
  processes:
    - code: p1
      function:
        code: delay
`

// --- Tests ---

func TestCreateSourceCode(t *testing.T) {
	ts := newTestServer(t, nil, "", "")

	resp, err := http.Post(ts.URL+"/rest/v1/source-codes", "application/yaml", strings.NewReader(sourceYAML))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	sc := decodeData[SourceCodeResponse](t, resp)
	if sc.UID != "api-test" || sc.Processes != 1 {
		t.Errorf("unexpected source code: %+v", sc)
	}

	// Повторный uid — конфликт.
	resp, err = http.Post(ts.URL+"/rest/v1/source-codes", "application/yaml", strings.NewReader(sourceYAML))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate uid: status = %d, want 409", resp.StatusCode)
	}
}

func TestCreateSourceCode_Invalid(t *testing.T) {
	ts := newTestServer(t, nil, "", "")

	resp, err := http.Post(ts.URL+"/rest/v1/source-codes", "application/yaml",
		strings.NewReader("version: 1\nsource:\n  uid: x\n  processes: []\n"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetSourceCode_NotFound(t *testing.T) {
	ts := newTestServer(t, nil, "", "")

	resp, err := http.Get(ts.URL + "/rest/v1/source-codes/" + uuid.NewString())
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func seedSourceCode(t *testing.T, ts *testServer) uuid.UUID {
	t.Helper()
	sc := domain.SourceCode{ID: uuid.New(), UID: "seeded"}
	if err := ts.sources.Create(context.Background(), &sc); err != nil {
		t.Fatal(err)
	}
	return sc.ID
}

func TestCreateExecContext_Sync(t *testing.T) {
	ts := newTestServer(t, nil, "", "")
	scID := seedSourceCode(t, ts)

	resp, err := http.Post(ts.URL+"/rest/v1/source-codes/"+scID.String()+"/exec-contexts", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	ec := decodeData[ExecContextResponse](t, resp)
	if ec.State != string(domain.ExecContextStateStarted) {
		t.Errorf("state = %s, want STARTED", ec.State)
	}
}

func TestCreateExecContext_Async(t *testing.T) {
	pub := &fakePublisher{}
	ts := newTestServer(t, pub, "", "")
	scID := seedSourceCode(t, ts)

	resp, err := http.Post(ts.URL+"/rest/v1/source-codes/"+scID.String()+"/exec-contexts", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	ec := decodeData[ExecContextResponse](t, resp)
	if ec.State != string(domain.ExecContextStateNone) {
		t.Errorf("state = %s, want NONE", ec.State)
	}
	if len(pub.pending) != 1 || pub.pending[0] != ec.ID {
		t.Errorf("expected exec_context.pending for %s, got %v", ec.ID, pub.pending)
	}
}

func TestListExecContextTasks(t *testing.T) {
	ts := newTestServer(t, nil, "", "")
	ec := domain.ExecContext{ID: uuid.New(), State: domain.ExecContextStateStarted}
	_ = ts.ecs.Create(context.Background(), &ec)
	ts.tasks[ec.ID] = []domain.Task{
		{ID: uuid.New(), ExecContextID: ec.ID, ExecState: domain.ExecStateNone},
		{ID: uuid.New(), ExecContextID: ec.ID, ExecState: domain.ExecStateOK},
	}

	resp, err := http.Get(ts.URL + "/rest/v1/exec-contexts/" + ec.ID.String() + "/tasks")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	tasks := decodeData[[]TaskResponse](t, resp)
	if len(tasks) != 2 || tasks[1].ExecState != "OK" {
		t.Errorf("unexpected tasks: %+v", tasks)
	}
}

func TestStopExecContext(t *testing.T) {
	ts := newTestServer(t, nil, "", "")
	ec := domain.ExecContext{ID: uuid.New(), State: domain.ExecContextStateStarted}
	_ = ts.ecs.Create(context.Background(), &ec)

	resp, err := http.Post(ts.URL+"/rest/v1/exec-contexts/"+ec.ID.String()+"/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	got := decodeData[ExecContextResponse](t, resp)
	if got.State != string(domain.ExecContextStateStopped) {
		t.Errorf("state = %s, want STOPPED", got.State)
	}

	resp, err = http.Post(ts.URL+"/rest/v1/exec-contexts/"+uuid.NewString()+"/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown exec context: status = %d, want 404", resp.StatusCode)
	}
}

func TestResetTask(t *testing.T) {
	ts := newTestServer(t, nil, "", "")
	taskID := uuid.New()

	resp, err := http.Post(ts.URL+"/rest/v1/tasks/"+taskID.String()+"/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if len(ts.dispatcher.resets) != 1 || ts.dispatcher.resets[0] != taskID {
		t.Errorf("expected reset of %s, got %v", taskID, ts.dispatcher.resets)
	}
}

func postExchange(t *testing.T, ts *testServer, req ExchangeRequest, user, pass string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(req)
	httpReq, _ := http.NewRequest(http.MethodPost, ts.URL+"/rest/v1/srv", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	if user != "" {
		httpReq.SetBasicAuth(user, pass)
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		t.Fatalf("POST /srv: %v", err)
	}
	return resp
}

func TestExchange_AssignsAndAcceptsReports(t *testing.T) {
	ts := newTestServer(t, nil, "", "")

	reset := uuid.New()
	ts.dispatcher.reportFn = func(r domain.TaskExecResult) error {
		if r.TaskID == reset {
			return taskstate.ErrTaskWasReset
		}
		return nil
	}
	next := &domain.Task{ID: uuid.New(), ExecContextID: uuid.New(), Params: "version: 1\n"}
	ts.dispatcher.next = next

	done := uuid.New()
	coreA, coreB := uuid.New(), uuid.New()
	resp := postExchange(t, ts, ExchangeRequest{
		ProcessorID: "proc-1",
		Cores: []CoreRequest{
			{CoreID: coreA, Reports: []TaskReport{{TaskID: done, Result: "{}"}, {TaskID: reset, Result: "{}"}}},
			{CoreID: coreB, RequestTask: true},
		},
	}, "", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out ExchangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Cores) != 2 {
		t.Fatalf("expected 2 cores, got %d", len(out.Cores))
	}

	a := out.Cores[0]
	if len(a.Accepted) != 1 || a.Accepted[0] != done {
		t.Errorf("accepted = %v, want [%s]", a.Accepted, done)
	}
	if len(a.Rejected) != 1 || a.Rejected[0] != reset {
		t.Errorf("rejected = %v, want [%s]", a.Rejected, reset)
	}
	if a.Assigned != nil {
		t.Error("core A did not request a task")
	}

	b := out.Cores[1]
	if b.Assigned == nil || b.Assigned.TaskID != next.ID || b.Assigned.Params != next.Params {
		t.Errorf("core B should get task %s, got %+v", next.ID, b.Assigned)
	}
}

func TestExchange_PublishesReports(t *testing.T) {
	pub := &fakePublisher{}
	ts := newTestServer(t, pub, "", "")

	taskID, ecID := uuid.New(), uuid.New()
	resp := postExchange(t, ts, ExchangeRequest{
		Cores: []CoreRequest{{
			CoreID:  uuid.New(),
			Reports: []TaskReport{{TaskID: taskID, ExecContextID: ecID, Result: "{}"}},
		}},
	}, "", "")
	resp.Body.Close()

	if len(pub.results) != 1 || pub.results[0].TaskID != taskID || pub.results[0].ExecContextID != ecID {
		t.Errorf("unexpected published results: %+v", pub.results)
	}
	if len(ts.dispatcher.reports) != 0 {
		t.Error("reports must go through the publisher")
	}
}

func TestExchange_PublishFailureIsRetried(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	ts := newTestServer(t, pub, "", "")

	resp := postExchange(t, ts, ExchangeRequest{
		Cores: []CoreRequest{{CoreID: uuid.New(), Reports: []TaskReport{{TaskID: uuid.New()}}}},
	}, "", "")
	defer resp.Body.Close()

	var out ExchangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Cores[0].Accepted) != 0 || len(out.Cores[0].Rejected) != 0 {
		t.Errorf("report should be neither accepted nor rejected: %+v", out.Cores[0])
	}
}

func TestExchange_InvalidCoreHasNoSideEffects(t *testing.T) {
	ts := newTestServer(t, nil, "", "")
	task := &domain.Task{ID: uuid.New(), ExecContextID: uuid.New()}
	ts.dispatcher.next = task

	resp := postExchange(t, ts, ExchangeRequest{Cores: []CoreRequest{
		{CoreID: uuid.New(), RequestTask: true, Reports: []TaskReport{{TaskID: uuid.New()}}},
		{CoreID: uuid.Nil, RequestTask: true},
	}}, "", "")
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	ts.dispatcher.mu.Lock()
	defer ts.dispatcher.mu.Unlock()
	if ts.dispatcher.next != task || task.CoreID != nil {
		t.Error("rejected request must not assign a task")
	}
	if len(ts.dispatcher.reports) != 0 {
		t.Errorf("rejected request must not store reports, got %d", len(ts.dispatcher.reports))
	}
}

func TestExchange_BasicAuth(t *testing.T) {
	ts := newTestServer(t, nil, "proc", "secret")
	req := ExchangeRequest{Cores: []CoreRequest{{CoreID: uuid.New()}}}

	resp := postExchange(t, ts, req, "", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no credentials: status = %d, want 401", resp.StatusCode)
	}

	resp = postExchange(t, ts, req, "proc", "wrong")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password: status = %d, want 401", resp.StatusCode)
	}

	resp = postExchange(t, ts, req, "proc", "secret")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("valid credentials: status = %d, want 200", resp.StatusCode)
	}
}

func TestUploadResult(t *testing.T) {
	ts := newTestServer(t, nil, "", "")
	taskID := uuid.New()
	ts.dispatcher.uploads[taskID] = domain.UploadStatusOK

	resp, err := http.Post(ts.URL+"/rest/v1/upload/"+taskID.String(), "application/octet-stream", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	got := decodeData[UploadResponse](t, resp)
	if got.Status != domain.UploadStatusOK || got.TaskID != taskID {
		t.Errorf("unexpected upload response: %+v", got)
	}

	resp, err = http.Post(ts.URL+"/rest/v1/upload/"+uuid.NewString(), "application/octet-stream", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	got = decodeData[UploadResponse](t, resp)
	if got.Status != domain.UploadStatusTaskNotFound {
		t.Errorf("status = %s, want TASK_NOT_FOUND", got.Status)
	}
}
