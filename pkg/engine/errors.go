package engine

import "errors"

var (
	// ErrNodeNotFound is returned when a start node or route target is not registered.
	ErrNodeNotFound = errors.New("engine: node not found")

	// ErrDuplicateNode is returned when two nodes share a name.
	ErrDuplicateNode = errors.New("engine: duplicate node")

	// ErrNoRoute is returned when the routing table has no entry for the exit
	// code a node produced. Termination must be declared explicitly.
	ErrNoRoute = errors.New("engine: no route for exit code")

	// ErrMaxSteps is returned when a run exceeds the configured step budget.
	ErrMaxSteps = errors.New("engine: max steps exceeded")
)
