// Package prediction is the client of the external prediction service that
// scores tasks and proposes project staffing.
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/taskhub/pkg/observability"
)

// ErrDisabled is returned when no service URL is configured
var ErrDisabled = errors.New("prediction service is not configured")

// Endpoints of the prediction service
const (
	EndpointProject = "/predict/project"
	EndpointTask    = "/predict/task"
)

// maxResponseBytes caps how much of a response body is read
const maxResponseBytes = 4 << 20

// Client calls the prediction service over HTTP
type Client struct {
	baseURL string
	http    *http.Client
	metrics *observability.Metrics
}

// NewClient creates a client for baseURL. An empty baseURL yields a client
// whose calls fail with ErrDisabled. metrics may be nil.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		metrics: metrics,
	}
}

// Enabled reports whether a service URL is configured
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// ProjectRequest asks for a staffing plan for a project
type ProjectRequest struct {
	ProjectTitle       string `json:"project_title"`
	ProjectDescription string `json:"project_description"`
	MaxWorkersPerTask  int    `json:"max_workers_per_task"`
	WorkspaceID        string `json:"workspace_id"`
}

// TaskPrediction holds the scores the service assigns to a task
type TaskPrediction struct {
	Complexity float64 `json:"complexity"`
	Risk       float64 `json:"risk"`
	Priority   float64 `json:"priority"`
}

// PredictProject returns the service's analysis of a project. The body is
// passed through unchanged.
func (c *Client) PredictProject(ctx context.Context, req ProjectRequest) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.post(ctx, EndpointProject, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PredictTask scores a task from its text
func (c *Client) PredictTask(ctx context.Context, taskText string) (*TaskPrediction, error) {
	out := &TaskPrediction{}
	body := map[string]string{"task_text": taskText}
	if err := c.post(ctx, EndpointTask, body, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, endpoint string, in, out any) (err error) {
	if !c.Enabled() {
		return ErrDisabled
	}

	start := time.Now()
	defer func() {
		c.metrics.RecordPrediction(endpoint, time.Since(start), err)
	}()

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call prediction service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read prediction response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("prediction service returned status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode prediction response: %w", err)
	}
	return nil
}
