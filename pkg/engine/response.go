package engine

import (
	"fmt"

	"github.com/sanonone/kektorflow/pkg/core/types"
)

// ExitCode is a node outcome. It carries meaning only through the routing table.
type ExitCode int

const (
	ExitSuccess ExitCode = 0
	ExitFailure ExitCode = 1
)

// NodeResponse is the record of one node execution. The engine stamps the
// task id, node name, execution order and retry flag; after it is appended to
// the history it is never modified.
type NodeResponse struct {
	ParentTaskID   string           `json:"parent_task_id"`
	NodeName       string           `json:"node_name"`
	ExitCode       ExitCode         `json:"exit_code"`
	References     types.References `json:"references"`
	ExecutionOrder int              `json:"execution_order"`
	Retry          bool             `json:"retry"`
}

// Succeeded reports whether the node exited with ExitSuccess.
func (r NodeResponse) Succeeded() bool { return r.ExitCode == ExitSuccess }

// Message returns the first message in the payload, if any.
func (r NodeResponse) Message() string {
	if len(r.References.Messages) == 0 {
		return ""
	}
	return r.References.Messages[0].Content
}

// Success builds a successful response carrying refs.
func Success(refs types.References) NodeResponse {
	return NodeResponse{ExitCode: ExitSuccess, References: refs}
}

// Failure builds an ExitFailure response whose payload is a single system message.
func Failure(format string, args ...any) NodeResponse {
	return NodeResponse{
		ExitCode:   ExitFailure,
		References: types.SystemMessage(fmt.Sprintf(format, args...)),
	}
}

// History is what a node sees of the run so far.
type History struct {
	// Execution holds every response recorded in this run, in order.
	Execution []NodeResponse
	// Node holds the prior responses of the node being executed.
	Node []NodeResponse
}

// Attempt is the 1-based attempt number of the node about to run.
func (h History) Attempt() int { return len(h.Node) + 1 }

// Result is the outcome of a run.
type Result struct {
	TaskID  string
	History []NodeResponse
}

// Last returns the final recorded response.
func (r Result) Last() (NodeResponse, bool) {
	if len(r.History) == 0 {
		return NodeResponse{}, false
	}
	return r.History[len(r.History)-1], true
}

// Succeeded reports whether the run ended on a successful response.
func (r Result) Succeeded() bool {
	last, ok := r.Last()
	return ok && last.Succeeded()
}
