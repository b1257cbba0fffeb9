// Package runlog keeps a bounded in-memory history of backtest runs.
package runlog

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newthinker/tradeledger/internal/core"
)

// Status represents run status.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one recorded trigger invocation.
type Run struct {
	ID              string      `json:"id"`
	Status          Status      `json:"status"`
	TradesProcessed int         `json:"trades_processed"`
	Summary         any         `json:"summary,omitempty"`
	ArchiveKey      string      `json:"archive_key,omitempty"`
	Error           *core.Error `json:"error,omitempty"`
	StartedAt       time.Time   `json:"started_at"`
	FinishedAt      *time.Time  `json:"finished_at,omitempty"`
}

// Log is a bounded run history. The oldest run is evicted once maxSize is
// reached.
type Log struct {
	runs    map[string]*Run
	order   []string
	maxSize int
	now     func() time.Time
	mu      sync.RWMutex
}

// New creates a run log holding at most maxSize runs. A nil clock uses
// time.Now.
func New(maxSize int, now func() time.Time) *Log {
	if maxSize < 1 {
		maxSize = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Log{
		runs:    make(map[string]*Run),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		now:     now,
	}
}

// Start records a new running run and returns a copy of it.
func (l *Log) Start() Run {
	l.mu.Lock()
	defer l.mu.Unlock()

	run := &Run{
		ID:        uuid.NewString(),
		Status:    StatusRunning,
		StartedAt: l.now().UTC(),
	}

	if len(l.order) >= l.maxSize {
		oldest := l.order[0]
		delete(l.runs, oldest)
		l.order = l.order[1:]
	}

	l.runs[run.ID] = run
	l.order = append(l.order, run.ID)
	return *run
}

// Succeed marks a run as succeeded.
func (l *Log) Succeed(id string, trades int, summary any, archiveKey string) error {
	return l.finish(id, func(r *Run) {
		r.Status = StatusSucceeded
		r.TradesProcessed = trades
		r.Summary = summary
		r.ArchiveKey = archiveKey
	})
}

// Fail marks a run as failed.
func (l *Log) Fail(id string, err *core.Error) error {
	return l.finish(id, func(r *Run) {
		r.Status = StatusFailed
		r.Error = err
	})
}

func (l *Log) finish(id string, fn func(*Run)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	run, ok := l.runs[id]
	if !ok {
		return core.ErrNotFound
	}

	fn(run)
	finished := l.now().UTC()
	run.FinishedAt = &finished
	return nil
}

// Get returns a copy of the run with the given id.
func (l *Log) Get(id string) (Run, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	run, ok := l.runs[id]
	if !ok {
		return Run{}, core.ErrNotFound
	}
	return *run, nil
}

// List returns all retained runs, newest first.
func (l *Log) List() []Run {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]Run, 0, len(l.order))
	for i := len(l.order) - 1; i >= 0; i-- {
		result = append(result, *l.runs[l.order[i]])
	}
	return result
}
