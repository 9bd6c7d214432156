package server

import (
	"strings"

	"github.com/sanonone/kektorflow/pkg/core/types"
	"github.com/sanonone/kektorflow/pkg/engine"
	"github.com/sanonone/kektorflow/pkg/tasks"
)

// StepSummary is one executed node as reported over HTTP. Vectors and the
// full cluster are left out; failure traces stay in the server log.
type StepSummary struct {
	Node           string                 `json:"node"`
	ExitCode       engine.ExitCode        `json:"exit_code"`
	ExecutionOrder int                    `json:"execution_order"`
	Retry          bool                   `json:"retry,omitempty"`
	Message        string                 `json:"message,omitempty"`
	Files          []*types.FileReference `json:"files,omitempty"`
	Chunks         int                    `json:"chunks,omitempty"`
}

// RunResponse is the body returned by the task endpoints.
type RunResponse struct {
	TaskID    string                 `json:"task_id"`
	Task      string                 `json:"task"`
	Succeeded bool                   `json:"succeeded"`
	Error     string                 `json:"error,omitempty"`
	Steps     []StepSummary          `json:"steps"`
	Chunks    []types.EmbeddingChunk `json:"chunks,omitempty"`
	Files     []*types.FileReference `json:"files,omitempty"`
	Cluster   *types.Stats           `json:"cluster,omitempty"`
}

// ClusterResponse is the body of GET /v1/cluster.
type ClusterResponse struct {
	Stats   types.Stats        `json:"stats"`
	Cluster *types.DataCluster `json:"cluster,omitempty"`
}

// TasksResponse lists the available tasks.
type TasksResponse struct {
	Tasks []tasks.Descriptor `json:"tasks"`
}

func summarize(task string, res engine.Result, err error) *RunResponse {
	out := &RunResponse{
		TaskID:    res.TaskID,
		Task:      task,
		Succeeded: err == nil && res.Succeeded(),
		Steps:     make([]StepSummary, 0, len(res.History)),
	}
	if err != nil {
		out.Error = err.Error()
	}
	for _, resp := range res.History {
		msg, _, _ := strings.Cut(resp.Message(), "\n")
		out.Steps = append(out.Steps, StepSummary{
			Node:           resp.NodeName,
			ExitCode:       resp.ExitCode,
			ExecutionOrder: resp.ExecutionOrder,
			Retry:          resp.Retry,
			Message:        msg,
			Files:          resp.References.Files,
			Chunks:         len(resp.References.Embeddings),
		})
	}
	if last, ok := res.Last(); ok && last.Succeeded() {
		out.Files = last.References.Files
	}
	return out
}
