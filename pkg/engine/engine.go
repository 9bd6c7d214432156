// Package engine runs tasks expressed as named nodes connected by a routing
// table. Each node returns an exit code; the table maps (node, exit code) to
// the next node or to termination.
//
// Basic usage:
//
//	eng, err := engine.NewEngine("greet", nodes, engine.RoutingTable{
//	    "hello": {engine.ExitSuccess: {}, engine.ExitFailure: {Next: "hello", Retry: true}},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := eng.Run(ctx, "hello", taskCtx)
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sanonone/kektorflow/pkg/metrics"
)

// NodeFunc is a node's execution function. It is the error boundary: it must
// turn every failure into a non-zero exit code instead of returning an error.
type NodeFunc[C any] func(ctx context.Context, h History, c C) NodeResponse

// Node is a named unit of task execution.
type Node[C any] struct {
	Name    string
	Execute NodeFunc[C]
}

// Route is the routing decision for one exit code. An empty Next terminates
// the run.
type Route struct {
	Next  string `json:"next,omitempty" yaml:"next,omitempty"`
	Retry bool   `json:"retry,omitempty" yaml:"retry,omitempty"`
}

// RoutingTable maps node name -> exit code -> route.
type RoutingTable map[string]map[ExitCode]Route

// Lookup returns the route for a node's exit code.
func (t RoutingTable) Lookup(node string, code ExitCode) (Route, bool) {
	routes, ok := t[node]
	if !ok {
		return Route{}, false
	}
	r, ok := routes[code]
	return r, ok
}

type options struct {
	observer Observer
	maxSteps int
	logger   *slog.Logger
	newID    func() string
}

// Option configures an Engine during construction.
type Option func(*options)

// WithObserver attaches an observer that receives every run event.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithMaxSteps bounds the number of node executions per run. Zero, the
// default, means unbounded: a node that always routes back to itself loops
// until ctx is cancelled.
func WithMaxSteps(n int) Option {
	return func(o *options) { o.maxSteps = n }
}

// WithLogger sets the logger used for engine-level messages.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithIDGenerator overrides how task ids are created.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// Engine executes runs of one task definition. It holds no per-run state and
// may be used for concurrent runs as long as the task contexts are distinct.
type Engine[C any] struct {
	name   string
	nodes  map[string]Node[C]
	routes RoutingTable
	opts   options
}

// NewEngine validates the routing table against the registered nodes. Every
// table key and every non-empty route target must name a registered node.
func NewEngine[C any](name string, nodes []Node[C], routes RoutingTable, opts ...Option) (*Engine[C], error) {
	e := &Engine[C]{
		name:   name,
		nodes:  make(map[string]Node[C], len(nodes)),
		routes: routes,
		opts: options{
			logger: slog.Default(),
			newID:  uuid.NewString,
		},
	}
	for _, opt := range opts {
		opt(&e.opts)
	}

	for _, n := range nodes {
		if n.Execute == nil {
			return nil, fmt.Errorf("engine %s: node %q has no execution function", name, n.Name)
		}
		if _, dup := e.nodes[n.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateNode, n.Name)
		}
		e.nodes[n.Name] = n
	}

	// Sorted so the reported error is deterministic.
	keys := make([]string, 0, len(routes))
	for k := range routes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, from := range keys {
		if _, ok := e.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: routing table references source %q", ErrNodeNotFound, from)
		}
		for code, r := range routes[from] {
			if r.Next == "" {
				continue
			}
			if _, ok := e.nodes[r.Next]; !ok {
				return nil, fmt.Errorf("%w: route %s/%d references target %q", ErrNodeNotFound, from, code, r.Next)
			}
		}
	}

	return e, nil
}

// Name returns the task name the engine was built for.
func (e *Engine[C]) Name() string { return e.name }

// Routes returns the routing table.
func (e *Engine[C]) Routes() RoutingTable { return e.routes }

// Run executes nodes starting at start until a route declares termination.
// The returned Result always holds the responses recorded so far, also when
// an error is returned.
func (e *Engine[C]) Run(ctx context.Context, start string, c C) (Result, error) {
	obs := e.opts.observer
	res := Result{TaskID: e.opts.newID()}
	base := Event{Task: e.name, TaskID: res.TaskID}

	fail := func(ev Event, err error) (Result, error) {
		ev.Type = EventRunError
		ev.Error = err
		emitEvent(obs, ev)
		return res, err
	}

	node, ok := e.nodes[start]
	if !ok {
		ev := base
		ev.Node = start
		return fail(ev, fmt.Errorf("%w: start node %q", ErrNodeNotFound, start))
	}

	perNode := make(map[string][]NodeResponse)

	for step := 0; ; step++ {
		ev := base
		ev.Node = node.Name

		if err := ctx.Err(); err != nil {
			return fail(ev, fmt.Errorf("engine %s: run %s cancelled at node %q: %w", e.name, res.TaskID, node.Name, err))
		}
		if e.opts.maxSteps > 0 && step >= e.opts.maxSteps {
			return fail(ev, fmt.Errorf("%w: %d steps at node %q", ErrMaxSteps, e.opts.maxSteps, node.Name))
		}

		enter := ev
		enter.Type = EventNodeEnter
		emitEvent(obs, enter)

		h := History{
			Execution: append([]NodeResponse(nil), res.History...),
			Node:      append([]NodeResponse(nil), perNode[node.Name]...),
		}
		started := time.Now()
		resp := node.Execute(ctx, h, c)
		elapsed := time.Since(started)

		resp.ParentTaskID = res.TaskID
		resp.NodeName = node.Name
		resp.ExecutionOrder = len(res.History)

		route, routed := e.routes.Lookup(node.Name, resp.ExitCode)
		resp.Retry = routed && route.Retry

		res.History = append(res.History, resp)
		perNode[node.Name] = append(perNode[node.Name], resp)

		metrics.NodeExecutionsTotal.WithLabelValues(e.name, node.Name, strconv.Itoa(int(resp.ExitCode))).Inc()
		metrics.NodeDuration.WithLabelValues(e.name, node.Name).Observe(elapsed.Seconds())

		exit := ev
		exit.Type = EventNodeExit
		exit.ExitCode = resp.ExitCode
		exit.Elapsed = elapsed
		exit.Response = &res.History[len(res.History)-1]
		emitEvent(obs, exit)

		if !routed {
			ev.ExitCode = resp.ExitCode
			return fail(ev, fmt.Errorf("%w: node %q exit code %d", ErrNoRoute, node.Name, resp.ExitCode))
		}

		if route.Next == "" {
			done := ev
			done.Type = EventRunComplete
			done.ExitCode = resp.ExitCode
			emitEvent(obs, done)
			return res, nil
		}

		tr := ev
		tr.Type = EventTransition
		tr.ExitCode = resp.ExitCode
		tr.Next = route.Next
		tr.Retry = route.Retry
		emitEvent(obs, tr)

		if route.Retry {
			e.opts.logger.Debug("[Engine] Retrying node", "task", e.name, "node", node.Name, "attempt", h.Attempt()+1)
		}

		// Targets were validated in NewEngine.
		node = e.nodes[route.Next]
	}
}
