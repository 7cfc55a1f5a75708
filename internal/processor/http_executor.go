package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	headerParamPrefix  = "header."
	maxResponseBody    = 1 << 20
)

// HTTPExecutor — функция "http".
//
// Params:
//   - url: URL запроса (обязательно)
//   - method: HTTP-метод (default: GET)
//   - body: тело запроса как есть
//   - timeout_sec: таймаут запроса (default: 30)
//   - header.<Name>: заголовок запроса
//
// Outputs: status_code, headers, body (JSON или строка).
// HTTP >= 400 — логическая ошибка.
type HTTPExecutor struct {
	// Client — HTTP-клиент; nil — http.DefaultClient.
	Client *http.Client
}

// Execute выполняет HTTP-запрос.
func (e *HTTPExecutor) Execute(ctx context.Context, params *domain.TaskParams) (*ExecutionResult, error) {
	p := params.Function.Params
	url := p["url"]
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidParams)
	}
	method := strings.ToUpper(p["method"])
	if method == "" {
		method = http.MethodGet
	}

	timeoutSec, err := paramFloat(p, "timeout_sec", defaultHTTPTimeout.Seconds())
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec*float64(time.Second)))
	defer cancel()

	var body io.Reader
	if b := p["body"]; b != "" {
		body = strings.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrHTTPRequest, err)
	}
	for key, val := range p {
		if name, ok := strings.CutPrefix(key, headerParamPrefix); ok {
			req.Header.Set(name, val)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrHTTPRequest, err)
	}

	outputs := buildOutputs(resp, respBody)
	if resp.StatusCode >= 400 {
		return &ExecutionResult{
			Outputs: outputs,
			Error:   fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
		}, nil
	}
	return &ExecutionResult{Outputs: outputs}, nil
}

// buildOutputs формирует outputs из HTTP-ответа.
func buildOutputs(resp *http.Response, body []byte) map[string]any {
	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	// JSON, иначе строка
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		parsed = string(body)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        parsed,
	}
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
