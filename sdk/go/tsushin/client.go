package tsushin

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

	"github.com/google/uuid"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the Tsushin server (e.g. "http://localhost:5001").
	BaseURL string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with Timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 10 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the Tsushin coordination API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Client from the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("tsushin: BaseURL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  httpClient,
	}, nil
}

// Update publishes the agent's current snapshot. state must carry an "id".
func (c *Client) Update(ctx context.Context, state map[string]any) error {
	if _, ok := state["id"]; !ok {
		return fmt.Errorf("tsushin: state has no id")
	}
	return c.post(ctx, "/update", state, nil)
}

// Agents returns every agent that reported within the staleness window.
func (c *Client) Agents(ctx context.Context) ([]AgentState, error) {
	var agents []AgentState
	if err := c.get(ctx, "/agents", &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// Remove drops an agent from the registry. It reports false if the agent
// was not present.
func (c *Client) Remove(ctx context.Context, agentID string) (bool, error) {
	err := c.do(ctx, http.MethodDelete, "/remove/"+url.PathEscape(agentID), nil, nil)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ClearAgents removes every agent.
func (c *Client) ClearAgents(ctx context.Context) error {
	return c.post(ctx, "/clear", nil, nil)
}

// Debug posts a debug event.
func (c *Client) Debug(ctx context.Context, ev DebugEvent) error {
	if ev.AgentID == "" || ev.Message == "" {
		return fmt.Errorf("tsushin: debug event needs agent_id and message")
	}
	return c.post(ctx, "/debug", ev, nil)
}

// DebugEvents returns recent debug events, oldest first. A nil query uses
// the server's defaults.
func (c *Client) DebugEvents(ctx context.Context, q *DebugQuery) ([]DebugEvent, error) {
	params := url.Values{}
	if q != nil {
		if q.AgentID != "" {
			params.Set("agent_id", q.AgentID)
		}
		if q.Level != "" {
			params.Set("level", q.Level)
		}
		if q.Limit > 0 {
			params.Set("limit", strconv.Itoa(q.Limit))
		}
	}
	path := "/debug"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var events []DebugEvent
	if err := c.get(ctx, path, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// ClearDebug empties the debug log.
func (c *Client) ClearDebug(ctx context.Context) error {
	return c.post(ctx, "/debug/clear", nil, nil)
}

// Control returns the simulation control record.
func (c *Client) Control(ctx context.Context) (Control, error) {
	var ctl Control
	err := c.get(ctx, "/control", &ctl)
	return ctl, err
}

// SetControl applies patch and returns the resulting record.
func (c *Client) SetControl(ctx context.Context, patch ControlPatch) (Control, error) {
	var ctl Control
	err := c.post(ctx, "/control", patch, &ctl)
	return ctl, err
}

// AddClient asks the server to launch a new client agent and returns the
// allocated name.
func (c *Client) AddClient(ctx context.Context) (string, error) {
	var resp addClientResponse
	if err := c.post(ctx, "/add_client", nil, &resp); err != nil {
		return "", err
	}
	return resp.ClientName, nil
}

// Health returns the server's health report.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.get(ctx, "/health", &h)
	return h, err
}

// Heartbeat calls Update with snapshot() every interval until ctx is done,
// keeping the agent visible in the registry. Failed updates are passed to
// onError (if non-nil) and do not stop the loop. A non-positive interval is
// an error and sends nothing.
func (c *Client) Heartbeat(ctx context.Context, interval time.Duration, snapshot func() map[string]any, onError func(error)) error {
	if interval <= 0 {
		return fmt.Errorf("tsushin: heartbeat interval must be positive, got %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := c.Update(ctx, snapshot()); err != nil && onError != nil && ctx.Err() == nil {
			onError(err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	return c.do(ctx, http.MethodPost, path, body, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	return c.do(ctx, http.MethodGet, path, nil, dest)
}

func (c *Client) do(ctx context.Context, method, path string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("tsushin: marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("tsushin: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("tsushin: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("tsushin: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, dest); err != nil {
		return fmt.Errorf("tsushin: decode response: %w", err)
	}
	return nil
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var sr statusResponse
	if err := json.Unmarshal(body, &sr); err == nil && sr.Status != "" {
		apiErr.Status = sr.Status
		apiErr.Message = sr.Message
	} else {
		apiErr.Status = http.StatusText(statusCode)
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
