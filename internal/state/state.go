// Package state provides a thread-safe, in-memory record of step
// execution state for a single run. It is created fresh per run and
// never persisted; the execution log is the durable record.
package state

import (
	"context"
	"sync"
	"time"
)

// Status is the lifecycle state of one pipeline step.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Store keeps per-step status, outputs, errors and timings keyed by the
// step's ID ("runner.name"). It uses sync.Map so the pipeline can write
// while a summary reader walks the same keys.
type Store struct {
	statuses  sync.Map // Key: step ID, Value: Status
	outputs   sync.Map // Key: step ID, Value: any
	errors    sync.Map // Key: step ID, Value: error
	durations sync.Map // Key: step ID, Value: time.Duration
}

// New creates a new, empty run state store.
func New() *Store {
	return &Store{}
}

// SetStatus updates the execution status of a step.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) {
	s.statuses.Store(id, status)
}

// GetStatus retrieves the execution status of a step. Steps that have
// not been touched yet report StatusPending.
func (s *Store) GetStatus(ctx context.Context, id string) Status {
	status, ok := s.statuses.Load(id)
	if !ok {
		return StatusPending
	}
	return status.(Status)
}

// SetOutput records the successful output of a step.
func (s *Store) SetOutput(ctx context.Context, id string, output any) {
	s.outputs.Store(id, output)
}

// GetOutput retrieves the recorded output of a completed step, or nil.
func (s *Store) GetOutput(ctx context.Context, id string) any {
	output, ok := s.outputs.Load(id)
	if !ok {
		return nil
	}
	return output
}

// SetError records the failure error of a step.
func (s *Store) SetError(ctx context.Context, id string, stepErr error) {
	s.errors.Store(id, stepErr)
}

// GetError retrieves the recorded error of a failed step, or nil.
func (s *Store) GetError(ctx context.Context, id string) error {
	err, ok := s.errors.Load(id)
	if !ok {
		return nil
	}
	return err.(error)
}

// SetDuration records how long a step took.
func (s *Store) SetDuration(ctx context.Context, id string, d time.Duration) {
	s.durations.Store(id, d)
}

// GetDuration retrieves a step's recorded duration, or zero.
func (s *Store) GetDuration(ctx context.Context, id string) time.Duration {
	d, ok := s.durations.Load(id)
	if !ok {
		return 0
	}
	return d.(time.Duration)
}
