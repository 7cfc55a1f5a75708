package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// SourceCodeResponse — source code из API.
type SourceCodeResponse struct {
	ID        string         `json:"id"`
	UID       string         `json:"uid"`
	Processes int            `json:"processes"`
	Spec      map[string]any `json:"spec,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// ExecContextResponse — exec context из API.
type ExecContextResponse struct {
	ID           string          `json:"id"`
	SourceCodeID string          `json:"source_code_id"`
	State        string          `json:"state"`
	Graph        json.RawMessage `json:"graph,omitempty"`
	Error        string          `json:"error,omitempty"`
	StartedAt    string          `json:"started_at,omitempty"`
	CompletedOn  string          `json:"completed_on,omitempty"`
	CreatedAt    string          `json:"created_at"`
}

// TaskResponse — task из API.
type TaskResponse struct {
	ID             string `json:"id"`
	ExecContextID  string `json:"exec_context_id"`
	Version        int64  `json:"version"`
	ExecState      string `json:"exec_state"`
	CoreID         string `json:"core_id,omitempty"`
	AssignedOn     string `json:"assigned_on,omitempty"`
	Completed      bool   `json:"completed"`
	CompletedOn    string `json:"completed_on,omitempty"`
	ResultReceived bool   `json:"result_received"`
	Params         string `json:"params,omitempty"`
	Result         string `json:"result,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// ListExecContextsOpts — параметры фильтрации exec contexts.
type ListExecContextsOpts struct {
	SourceCodeID string
	State        string
	Limit        int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент REST API dispatcher'а.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Source codes ---

// ListSourceCodes возвращает все source codes.
func (c *Client) ListSourceCodes(ctx context.Context) ([]SourceCodeResponse, error) {
	var codes []SourceCodeResponse
	err := c.list(ctx, "/rest/v1/source-codes", nil, &codes)
	return codes, err
}

// CreateSourceCode загружает source code в YAML.
func (c *Client) CreateSourceCode(ctx context.Context, yamlSpec []byte) (*SourceCodeResponse, error) {
	var sc SourceCodeResponse
	err := c.doData(ctx, http.MethodPost, "/rest/v1/source-codes", "application/yaml", yamlSpec, &sc)
	return &sc, err
}

// GetSourceCode возвращает source code по ID.
func (c *Client) GetSourceCode(ctx context.Context, id string) (*SourceCodeResponse, error) {
	var sc SourceCodeResponse
	err := c.get(ctx, "/rest/v1/source-codes/"+id, &sc)
	return &sc, err
}

// --- Exec contexts ---

// StartExecContext создаёт и запускает exec context для source code.
func (c *Client) StartExecContext(ctx context.Context, sourceCodeID string) (*ExecContextResponse, error) {
	var ec ExecContextResponse
	err := c.post(ctx, "/rest/v1/source-codes/"+sourceCodeID+"/exec-contexts", &ec)
	return &ec, err
}

// ListExecContexts возвращает exec contexts с фильтрацией.
func (c *Client) ListExecContexts(ctx context.Context, opts ListExecContextsOpts) ([]ExecContextResponse, error) {
	params := url.Values{}
	if opts.SourceCodeID != "" {
		params.Set("source_code_id", opts.SourceCodeID)
	}
	if opts.State != "" {
		params.Set("state", opts.State)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var ecs []ExecContextResponse
	err := c.list(ctx, "/rest/v1/exec-contexts", params, &ecs)
	return ecs, err
}

// GetExecContext возвращает exec context по ID.
func (c *Client) GetExecContext(ctx context.Context, id string) (*ExecContextResponse, error) {
	var ec ExecContextResponse
	err := c.get(ctx, "/rest/v1/exec-contexts/"+id, &ec)
	return &ec, err
}

// StopExecContext останавливает exec context.
func (c *Client) StopExecContext(ctx context.Context, id string) (*ExecContextResponse, error) {
	var ec ExecContextResponse
	err := c.post(ctx, "/rest/v1/exec-contexts/"+id+"/stop", &ec)
	return &ec, err
}

// ListTasks возвращает tasks exec context'а.
func (c *Client) ListTasks(ctx context.Context, execContextID string) ([]TaskResponse, error) {
	var tasks []TaskResponse
	err := c.list(ctx, "/rest/v1/exec-contexts/"+execContextID+"/tasks", nil, &tasks)
	return tasks, err
}

// --- Tasks ---

// ResetTask сбрасывает task и зависящие от него tasks.
func (c *Client) ResetTask(ctx context.Context, id string) error {
	return c.post(ctx, "/rest/v1/tasks/"+id+"/reset", nil)
}

// --- HTTP helpers ---

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.doData(ctx, http.MethodGet, path, "", nil, result)
}

func (c *Client) post(ctx context.Context, path string, result any) error {
	return c.doData(ctx, http.MethodPost, path, "", nil, result)
}

func (c *Client) list(ctx context.Context, path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(ctx context.Context, method, path, contentType string, body []byte, result any) error {
	resp, err := c.do(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent || result == nil {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return json.Unmarshal(dr.Data, result)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error.Code == "" {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
