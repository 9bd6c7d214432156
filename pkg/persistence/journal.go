package persistence

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/sanonone/kektorflow/pkg/core/types"
	"github.com/sanonone/kektorflow/pkg/engine"
)

// Record is one journal entry. Node records summarize a NodeResponse; the
// vectors of the cluster are not journaled, only its stats.
type Record struct {
	Op             OpCode          `json:"-"`
	Time           time.Time       `json:"time"`
	Task           string          `json:"task"`
	TaskID         string          `json:"task_id"`
	Node           string          `json:"node,omitempty"`
	ExitCode       engine.ExitCode `json:"exit_code"`
	ExecutionOrder int             `json:"execution_order"`
	Retry          bool            `json:"retry,omitempty"`
	Elapsed        time.Duration   `json:"elapsed_ns,omitempty"`
	Message        string          `json:"message,omitempty"`
	Files          []string        `json:"files,omitempty"`
	Chunks         int             `json:"chunks,omitempty"`
	Cluster        *types.Stats    `json:"cluster,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// NewNodeRecord summarizes a recorded node response.
func NewNodeRecord(task string, resp engine.NodeResponse, elapsed time.Duration) Record {
	rec := Record{
		Op:             OpNodeResponse,
		Task:           task,
		TaskID:         resp.ParentTaskID,
		Node:           resp.NodeName,
		ExitCode:       resp.ExitCode,
		ExecutionOrder: resp.ExecutionOrder,
		Retry:          resp.Retry,
		Elapsed:        elapsed,
		Message:        firstLine(resp.Message()),
		Chunks:         len(resp.References.Embeddings),
	}
	for _, f := range resp.References.Files {
		name := f.Path
		if name == "" {
			name = f.FileName()
		}
		rec.Files = append(rec.Files, name)
	}
	if resp.References.Cluster != nil {
		st := resp.References.Cluster.Stats()
		rec.Cluster = &st
	}
	return rec
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}

// Journal appends run records to a file. It implements engine.Observer and
// is safe for concurrent runs.
type Journal struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	fw     *FrameWriter
	path   string
	logger *slog.Logger
	now    func() time.Time
	err    error

	periodic bool
	stopCh   chan struct{}
	done     chan struct{}
}

// JournalOption configures a Journal.
type JournalOption func(*Journal)

// WithJournalLogger sets the logger used for write failures.
func WithJournalLogger(l *slog.Logger) JournalOption {
	return func(j *Journal) { j.logger = l }
}

// WithSyncInterval starts a background fsync every d. Without it the journal
// syncs at the end of every run.
func WithSyncInterval(d time.Duration) JournalOption {
	return func(j *Journal) {
		if d > 0 {
			j.periodic = true
			j.stopCh = make(chan struct{})
			j.done = make(chan struct{})
			go j.syncLoop(d)
		}
	}
}

// OpenJournal opens or creates the journal at path for appending.
func OpenJournal(path string, opts ...JournalOption) (*Journal, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	buf := bufio.NewWriter(file)
	j := &Journal{
		file:   file,
		buf:    buf,
		fw:     NewFrameWriter(buf),
		path:   path,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string { return j.path }

// Append writes rec. Data reaches the OS on Flush, Sync or Close.
func (j *Journal) Append(rec Record) error {
	if rec.Time.IsZero() {
		rec.Time = j.now()
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode journal record: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return os.ErrClosed
	}
	return j.fw.WriteFrame(rec.Op, payload)
}

// OnEvent journals node exits and run ends.
func (j *Journal) OnEvent(e engine.Event) {
	var err error
	switch e.Type {
	case engine.EventNodeExit:
		if e.Response == nil {
			return
		}
		err = j.Append(NewNodeRecord(e.Task, *e.Response, e.Elapsed))
	case engine.EventRunComplete, engine.EventRunError:
		rec := Record{Op: OpRunEnd, Task: e.Task, TaskID: e.TaskID, Node: e.Node, ExitCode: e.ExitCode}
		if e.Error != nil {
			rec.Error = e.Error.Error()
		}
		err = j.Append(rec)
		if err == nil {
			if j.periodic {
				err = j.Flush()
			} else {
				err = j.Sync()
			}
		}
	default:
		return
	}
	if err != nil {
		j.logger.Error("[Journal] write failed", "path", j.path, "task_id", e.TaskID, "error", err)
		j.mu.Lock()
		j.err = err
		j.mu.Unlock()
	}
}

// Err returns the last write error seen by OnEvent.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Flush moves buffered frames to the OS.
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return os.ErrClosed
	}
	return j.buf.Flush()
}

// Sync flushes and fsyncs the file.
func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return os.ErrClosed
	}
	if err := j.buf.Flush(); err != nil {
		return err
	}
	return j.file.Sync()
}

func (j *Journal) syncLoop(d time.Duration) {
	defer close(j.done)
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := j.Sync(); err != nil && !errors.Is(err, os.ErrClosed) {
				j.logger.Warn("[Journal] periodic sync failed", "error", err)
			}
		case <-j.stopCh:
			return
		}
	}
}

// Close stops the sync loop, flushes and closes the file.
func (j *Journal) Close() error {
	if j.stopCh != nil {
		close(j.stopCh)
		<-j.done
		j.stopCh = nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	ferr := j.buf.Flush()
	serr := j.file.Sync()
	cerr := j.file.Close()
	j.file = nil
	return errors.Join(ferr, serr, cerr)
}

// ReplayStats describes what Replay read.
type ReplayStats struct {
	Records int
	Bytes   int64
	// Truncated is set when the journal ended inside a frame. The records
	// before it are still delivered.
	Truncated bool
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Replay calls fn for every record in r, in write order. A truncated final
// frame ends the replay without error. Corruption before the tail is an error.
func Replay(r io.Reader, fn func(Record) error) (ReplayStats, error) {
	cr := &countingReader{r: bufio.NewReader(r)}
	var st ReplayStats
	for {
		op, payload, err := ReadFrame(cr)
		switch {
		case err == io.EOF:
			st.Bytes = cr.n
			return st, nil
		case errors.Is(err, ErrIncompleteFrame):
			st.Truncated = true
			st.Bytes = cr.n
			return st, nil
		case err != nil:
			return st, fmt.Errorf("journal record %d: %w", st.Records, err)
		}

		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return st, fmt.Errorf("journal record %d: %w", st.Records, err)
		}
		rec.Op = op
		st.Records++
		if err := fn(rec); err != nil {
			return st, err
		}
	}
}

// ReplayFile replays the journal stored at path.
func ReplayFile(path string, fn func(Record) error) (ReplayStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ReplayStats{}, err
	}
	defer f.Close()
	return Replay(f, fn)
}
