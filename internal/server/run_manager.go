package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunStatus defines the possible states of an asynchronous run.
type RunStatus string

const (
	RunStatusStarted   RunStatus = "started"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// maxFinishedRuns bounds how many finished runs are remembered.
const maxFinishedRuns = 256

// RunInfo describes a task started with ?async=true.
type RunInfo struct {
	ID        string       `json:"id"`
	Task      string       `json:"task"`
	Status    RunStatus    `json:"status"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
	Error     string       `json:"error,omitempty"`
	Result    *RunResponse `json:"result,omitempty"`
}

// Run is a tracked asynchronous run.
type Run struct {
	mu   sync.RWMutex
	info RunInfo
}

// RunManager tracks asynchronous runs.
type RunManager struct {
	mu       sync.RWMutex
	runs     map[string]*Run
	finished []string
}

func NewRunManager() *RunManager {
	return &RunManager{runs: make(map[string]*Run)}
}

// NewRun registers a run of task and returns it.
func (m *RunManager) NewRun(task string) *Run {
	m.mu.Lock()
	defer m.mu.Unlock()

	run := &Run{info: RunInfo{
		ID:        uuid.NewString(),
		Task:      task,
		Status:    RunStatusStarted,
		StartedAt: time.Now().UTC(),
	}}
	m.runs[run.info.ID] = run
	return run
}

// Get returns a run by ID.
func (m *RunManager) Get(id string) (*Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	return run, ok
}

// finish records that id ended and forgets the oldest finished runs.
func (m *RunManager) finish(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, id)
	for len(m.finished) > maxFinishedRuns {
		delete(m.runs, m.finished[0])
		m.finished = m.finished[1:]
	}
}

// ID returns the run ID.
func (r *Run) ID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.info.ID
}

func (r *Run) SetStatus(status RunStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info.Status = status
}

// Complete stores the outcome. err marks the run as failed.
func (r *Run) Complete(res *RunResponse, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	r.info.EndedAt = &now
	r.info.Result = res
	if err != nil {
		r.info.Status = RunStatusFailed
		r.info.Error = err.Error()
		return
	}
	r.info.Status = RunStatusCompleted
}

// Info returns a copy of the run state.
func (r *Run) Info() RunInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.info
}
