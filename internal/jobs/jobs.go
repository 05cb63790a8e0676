// Package jobs tracks background realignment runs for the process lifetime.
// Records are in-memory only; jobs are meant to complete within one run.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"clipflow/internal/domain"
)

type Status string

const (
	StatusPlanning  Status = "planning"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Progress mirrors the executor's per-item reporting.
type Progress struct {
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Phase     string `json:"phase,omitempty"`
}

// Record is one background job's observable state.
type Record struct {
	ID        string                `json:"job_id"`
	Kind      string                `json:"kind"`
	Status    Status                `json:"status"`
	Progress  Progress              `json:"progress"`
	Plan      *domain.RealignPlan   `json:"plan,omitempty"`
	Result    *domain.ExecuteResult `json:"result,omitempty"`
	Error     string                `json:"error,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Store is a mutex-guarded job map, constructed at startup and passed by
// reference. Readers get copies; the store owns the live records.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{records: make(map[string]*Record), now: time.Now}
}

// Create registers a new job in planning state and returns its id.
func (s *Store) Create(kind string) string {
	id := uuid.New().String()
	now := s.now()
	s.mu.Lock()
	s.records[id] = &Record{ID: id, Kind: kind, Status: StatusPlanning, CreatedAt: now, UpdatedAt: now}
	s.mu.Unlock()
	return id
}

// Get returns a copy of the job record.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

func (s *Store) update(id string, fn func(*Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return
	}
	fn(rec)
	rec.UpdatedAt = s.now()
}

func (s *Store) SetStatus(id string, status Status) {
	s.update(id, func(r *Record) { r.Status = status })
}

func (s *Store) SetPlan(id string, plan domain.RealignPlan) {
	s.update(id, func(r *Record) { r.Plan = &plan })
}

func (s *Store) SetProgress(id string, completed, total int, phase string) {
	s.update(id, func(r *Record) {
		r.Progress = Progress{Completed: completed, Total: total, Phase: phase}
	})
}

func (s *Store) Complete(id string, result *domain.ExecuteResult) {
	s.update(id, func(r *Record) {
		r.Status = StatusCompleted
		r.Result = result
	})
}

func (s *Store) Fail(id string, err error) {
	s.update(id, func(r *Record) {
		r.Status = StatusFailed
		r.Error = err.Error()
	})
}

// Run spawns fn as a detached background task and returns the job id
// immediately. There is no mid-flight cancellation; a job runs to completion
// or failure.
func Run(store *Store, kind string, logger logrus.FieldLogger, fn func(ctx context.Context, jobID string) error) string {
	jobID := store.Create(kind)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				store.Fail(jobID, fmt.Errorf("panic: %v", r))
				if logger != nil {
					logger.WithField("job_id", jobID).Errorf("Job panicked: %v", r)
				}
			}
		}()
		if err := fn(context.Background(), jobID); err != nil {
			store.Fail(jobID, err)
			if logger != nil {
				logger.WithError(err).WithField("job_id", jobID).Error("Job failed")
			}
		}
	}()
	return jobID
}
