// Package client is a Go client for the kektorflow HTTP API.
//
// It runs the retrieval and speech tasks (inline or as asynchronous runs),
// lists task descriptors and reads or replaces the server's data cluster.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sanonone/kektorflow/pkg/core/types"
	"github.com/sanonone/kektorflow/pkg/engine"
	"github.com/sanonone/kektorflow/pkg/tasks"
)

// APIError is an error returned by the server (status >= 400). For failed
// task runs Run holds the partial report.
type APIError struct {
	StatusCode int
	Message    string
	Run        *RunResponse
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// Step is one executed node of a run.
type Step struct {
	Node           string                 `json:"node"`
	ExitCode       engine.ExitCode        `json:"exit_code"`
	ExecutionOrder int                    `json:"execution_order"`
	Retry          bool                   `json:"retry,omitempty"`
	Message        string                 `json:"message,omitempty"`
	Files          []*types.FileReference `json:"files,omitempty"`
	Chunks         int                    `json:"chunks,omitempty"`
}

// RunResponse is the report of a finished task run.
type RunResponse struct {
	TaskID    string                 `json:"task_id"`
	Task      string                 `json:"task"`
	Succeeded bool                   `json:"succeeded"`
	Error     string                 `json:"error,omitempty"`
	Steps     []Step                 `json:"steps"`
	Chunks    []types.EmbeddingChunk `json:"chunks,omitempty"`
	Files     []*types.FileReference `json:"files,omitempty"`
	Cluster   *types.Stats           `json:"cluster,omitempty"`
}

// Cluster is the body of the cluster endpoints.
type Cluster struct {
	Stats   types.Stats        `json:"stats"`
	Cluster *types.DataCluster `json:"cluster,omitempty"`
}

// Run is an asynchronous task run on the server.
type Run struct {
	ID        string       `json:"id"`
	Task      string       `json:"task"`
	Status    string       `json:"status"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
	Error     string       `json:"error,omitempty"`
	Result    *RunResponse `json:"result,omitempty"`

	client *Client
}

// Client talks to one kektorflow server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client for baseURL (e.g. "http://localhost:9093"). An empty
// token sends no Authorization header.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		// Task runs call remote models; the context bounds them, not the client.
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.httpClient = h
	return c
}

// jsonRequest executes a request and decodes the JSON answer into out.
func (c *Client) jsonRequest(ctx context.Context, method, endpoint string, payload, out any) error {
	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal JSON payload: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connection error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		var run RunResponse
		if json.Unmarshal(respBody, &run) == nil && run.Error != "" {
			apiErr.Message = run.Error
			if run.TaskID != "" {
				apiErr.Run = &run
			}
		}
		return apiErr
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Health reports whether the server answers /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.jsonRequest(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Tasks lists the task descriptors.
func (c *Client) Tasks(ctx context.Context) ([]tasks.Descriptor, error) {
	var out struct {
		Tasks []tasks.Descriptor `json:"tasks"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/tasks", nil, &out)
	return out.Tasks, err
}

// Retrieve runs the retrieval task and waits for it.
func (c *Client) Retrieve(ctx context.Context, p tasks.RetrievalParams) (*RunResponse, error) {
	var out RunResponse
	if err := c.jsonRequest(ctx, http.MethodPost, "/v1/tasks/retrieval", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Speak runs the speech task and waits for it.
func (c *Client) Speak(ctx context.Context, p tasks.SpeechParams) (*RunResponse, error) {
	var out RunResponse
	if err := c.jsonRequest(ctx, http.MethodPost, "/v1/tasks/speech", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartRetrieval starts the retrieval task in the background.
func (c *Client) StartRetrieval(ctx context.Context, p tasks.RetrievalParams) (*Run, error) {
	return c.start(ctx, "/v1/tasks/retrieval?async=true", p)
}

// StartSpeech starts the speech task in the background.
func (c *Client) StartSpeech(ctx context.Context, p tasks.SpeechParams) (*Run, error) {
	return c.start(ctx, "/v1/tasks/speech?async=true", p)
}

func (c *Client) start(ctx context.Context, endpoint string, payload any) (*Run, error) {
	run := &Run{client: c}
	if err := c.jsonRequest(ctx, http.MethodPost, endpoint, payload, run); err != nil {
		return nil, err
	}
	return run, nil
}

// GetRun fetches an asynchronous run.
func (c *Client) GetRun(ctx context.Context, id string) (*Run, error) {
	run := &Run{client: c}
	if err := c.jsonRequest(ctx, http.MethodGet, "/v1/runs/"+url.PathEscape(id), nil, run); err != nil {
		return nil, err
	}
	return run, nil
}

// Cluster fetches the cluster stats, and the cluster itself when full is set.
func (c *Client) Cluster(ctx context.Context, full bool) (*Cluster, error) {
	endpoint := "/v1/cluster"
	if full {
		endpoint += "?full=true"
	}
	var out Cluster
	if err := c.jsonRequest(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReplaceCluster uploads a new cluster.
func (c *Client) ReplaceCluster(ctx context.Context, dc *types.DataCluster) (*Cluster, error) {
	var out Cluster
	if err := c.jsonRequest(ctx, http.MethodPut, "/v1/cluster", dc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh updates the run from the server.
func (r *Run) Refresh(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("client is not associated with the run")
	}
	updated, err := r.client.GetRun(ctx, r.ID)
	if err != nil {
		return err
	}
	client := r.client
	*r = *updated
	r.client = client
	return nil
}

// Wait polls until the run ends or ctx is done.
func (r *Run) Wait(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for run %s: %w", r.ID, ctx.Err())
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				return err
			}
			switch r.Status {
			case "completed":
				return nil
			case "failed":
				return fmt.Errorf("run %s failed with error: %s", r.ID, r.Error)
			case "running", "started":
			default:
				return fmt.Errorf("unknown run status: %s", r.Status)
			}
		}
	}
}
