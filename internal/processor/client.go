package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/api"
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/selector"
)

const defaultClientTimeout = 30 * time.Second

// Client — HTTP-клиент southbridge dispatcher'а.
type Client struct {
	httpClient *http.Client
}

// NewClient создаёт Client.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// Exchange выполняет обмен с dispatcher'ом.
func (c *Client) Exchange(ctx context.Context, ep selector.Endpoint, req api.ExchangeRequest) (*api.ExchangeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal exchange request: %w", err)
	}

	var resp api.ExchangeResponse
	if err := c.do(ctx, ep, "/rest/v1/srv", "application/json", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Upload загружает результат task'а.
func (c *Client) Upload(ctx context.Context, ep selector.Endpoint, taskID uuid.UUID, data []byte) (domain.UploadStatus, error) {
	var resp struct {
		Data api.UploadResponse `json:"data"`
	}
	if err := c.do(ctx, ep, "/rest/v1/upload/"+taskID.String(), "application/octet-stream", data, &resp); err != nil {
		return "", err
	}
	return resp.Data.Status, nil
}

func (c *Client) do(ctx context.Context, ep selector.Endpoint, path, contentType string, body []byte, result any) error {
	url := strings.TrimRight(ep.URL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if ep.Username != "" {
		req.SetBasicAuth(ep.Username, ep.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var errResp api.ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error.Message != "" {
			return fmt.Errorf("dispatcher %s: %s (HTTP %d)", ep.URL, errResp.Error.Message, resp.StatusCode)
		}
		return fmt.Errorf("dispatcher %s: HTTP %d", ep.URL, resp.StatusCode)
	}

	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
