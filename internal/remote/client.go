// Package remote forwards tasks and offline results to the remote service
// over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/Iron-Ham/edgeshift/internal/errors"
	"github.com/Iron-Ham/edgeshift/internal/logging"
	"github.com/Iron-Ham/edgeshift/internal/task"
	"github.com/google/uuid"
)

const (
	// DefaultTimeout bounds each HTTP request when the caller sets no deadline.
	DefaultTimeout = 10 * time.Second

	// SyncPath is appended to the base URL for batch result pushes.
	SyncPath = "/sync"

	// maxErrorBody caps how much of a failed response is kept in the error.
	maxErrorBody = 512
)

// Client posts tasks and sync batches to the remote service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
	newBatchID func() string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithToken sends token as a bearer Authorization header.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l.WithComponent("remote")
		}
	}
}

// NewClient creates a Client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:     logging.NopLogger(),
		newBatchID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the service root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// taskRequest is the body of a task forward.
type taskRequest struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Operation  string     `json:"operation"`
	Payload    any        `json:"payload,omitempty"`
	Complexity task.Level `json:"complexity,omitempty"`
	Priority   task.Level `json:"priority,omitempty"`
}

// taskResponse is the body returned for a forwarded task.
type taskResponse struct {
	Result any    `json:"result"`
	Error  string `json:"error,omitempty"`
}

// syncRequest is the body of a batch push.
type syncRequest struct {
	BatchID string         `json:"batchId"`
	Results map[string]any `json:"results"`
}

// syncResponse lists the task IDs the service accepted. An empty list means
// the whole batch was accepted.
type syncResponse struct {
	Acknowledged []string `json:"acknowledged,omitempty"`
}

// Endpoint returns the URL a task is posted to: the task's RemoteEndpoint
// when set (absolute, or relative to the base URL), otherwise
// {base}/tasks/{kind}/{operation}.
func (c *Client) Endpoint(t task.Task) string {
	ep := strings.TrimSpace(t.RemoteEndpoint)
	switch {
	case ep == "":
		return fmt.Sprintf("%s/tasks/%s/%s", c.baseURL, url.PathEscape(t.Kind), url.PathEscape(t.Operation))
	case strings.HasPrefix(ep, "http://"), strings.HasPrefix(ep, "https://"):
		return ep
	default:
		return c.baseURL + "/" + strings.TrimLeft(ep, "/")
	}
}

// Send forwards t and returns the remote result. Every failure is a
// *errors.RemoteError.
func (c *Client) Send(ctx context.Context, t task.Task) (any, error) {
	endpoint := c.Endpoint(t)
	body := taskRequest{
		ID:         t.ID,
		Kind:       t.Kind,
		Operation:  t.Operation,
		Payload:    t.Payload,
		Complexity: t.Complexity,
		Priority:   t.Priority,
	}

	var resp taskResponse
	if err := c.post(ctx, endpoint, body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.NewRemoteError(resp.Error, nil).WithEndpoint(endpoint)
	}

	c.logger.WithTask(t.ID).Debug("task forwarded", "endpoint", endpoint)
	return resp.Result, nil
}

// SyncBatch pushes results produced offline, keyed by task ID, and returns
// the IDs the service acknowledged.
func (c *Client) SyncBatch(ctx context.Context, results map[string]any) (string, []string, error) {
	batchID := c.newBatchID()
	if len(results) == 0 {
		return batchID, nil, nil
	}
	endpoint := c.baseURL + SyncPath

	var resp syncResponse
	if err := c.post(ctx, endpoint, syncRequest{BatchID: batchID, Results: results}, &resp); err != nil {
		return batchID, nil, err
	}

	acked := resp.Acknowledged
	if len(acked) == 0 {
		acked = make([]string, 0, len(results))
		for id := range results {
			acked = append(acked, id)
		}
	} else {
		// Ignore IDs the service made up.
		acked = slices.DeleteFunc(slices.Clone(acked), func(id string) bool {
			_, sent := results[id]
			return !sent
		})
	}
	slices.Sort(acked)

	c.logger.Info("sync batch accepted", "batch_id", batchID, "sent", len(results), "acknowledged", len(acked))
	return batchID, acked, nil
}

// post sends body as JSON to endpoint and decodes a 2xx response into out.
func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return errors.NewRemoteError("marshal request", err).WithEndpoint(endpoint)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return errors.NewRemoteError("create request", err).WithEndpoint(endpoint)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewRemoteError("send request", err).WithEndpoint(endpoint)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewRemoteError("read response", err).WithEndpoint(endpoint).WithStatusCode(resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(respBody))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return errors.NewRemoteError(msg, nil).WithEndpoint(endpoint).WithStatusCode(resp.StatusCode)
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.NewRemoteError("unmarshal response", err).WithEndpoint(endpoint).WithStatusCode(resp.StatusCode)
	}
	return nil
}
