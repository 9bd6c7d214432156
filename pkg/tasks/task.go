// Package tasks defines the concrete tasks run by the routing engine: a
// two-node retrieval task and a single-node text-to-speech task.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/sanonone/kektorflow/pkg/agent"
	"github.com/sanonone/kektorflow/pkg/engine"
)

// Descriptor describes a task to callers such as the HTTP and MCP servers.
type Descriptor struct {
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	StartNode    string              `json:"start_node"`
	Routes       engine.RoutingTable `json:"routes"`
	RequiredAPIs []agent.API         `json:"required_apis"`
	InputSchema  *jsonschema.Schema  `json:"input_schema"`
}

// failure logs err with the node context and builds the failure response,
// whose message carries a stack trace for diagnosis.
func failure(logger *slog.Logger, node, summary string, err error) engine.NodeResponse {
	logger.Error("[Task] Node failed", "node", node, "error", err)
	return engine.Failure("%s: %v\n\n%s", summary, err, debug.Stack())
}

// guard turns a panic inside a node into a failure response so nothing
// escapes the node boundary.
func guard[C any](logger *slog.Logger, name string, fn engine.NodeFunc[C]) engine.Node[C] {
	return engine.Node[C]{
		Name: name,
		Execute: func(ctx context.Context, h engine.History, c C) (resp engine.NodeResponse) {
			defer func() {
				if r := recover(); r != nil {
					resp = failure(logger, name, "node panicked", fmt.Errorf("%v", r))
				}
			}()
			return fn(ctx, h, c)
		},
	}
}
