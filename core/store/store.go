// Package store persists job records. A transition is committed only once
// Save has returned without error.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/kilianp07/techdispatch/core/model"
)

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("job not found")

// Query filters List results. Zero values match everything.
// TechnicianID matches the technician the job is assigned to.
type Query struct {
	Status       []model.Status
	Tier         *model.Tier
	TechnicianID string
	Limit        int
}

// Matches reports whether j passes the filter.
func (q Query) Matches(j model.Job) bool {
	if q.Tier != nil && j.Tier != *q.Tier {
		return false
	}
	if q.TechnicianID != "" && j.AssignedTechnician != q.TechnicianID {
		return false
	}
	if len(q.Status) == 0 {
		return true
	}
	for _, s := range q.Status {
		if j.Status == s {
			return true
		}
	}
	return false
}

// JobStore is the persistence boundary of the dispatch coordinator.
type JobStore interface {
	Save(ctx context.Context, j model.Job) error
	Get(ctx context.Context, id string) (model.Job, error)
	List(ctx context.Context, q Query) ([]model.Job, error)
	Close() error
}

// MemoryStore keeps jobs in a map. It is the default store.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]model.Job
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]model.Job)}
}

func (s *MemoryStore) Save(ctx context.Context, j model.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.jobs[j.ID] = j.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return model.Job{}, ErrNotFound
	}
	return j.Clone(), nil
}

// List returns matching jobs ordered by creation time then id.
func (s *MemoryStore) List(_ context.Context, q Query) ([]model.Job, error) {
	s.mu.RLock()
	res := make([]model.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if q.Matches(j) {
			res = append(res, j.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(res, func(a, b int) bool {
		if !res[a].CreatedAt.Equal(res[b].CreatedAt) {
			return res[a].CreatedAt.Before(res[b].CreatedAt)
		}
		return res[a].ID < res[b].ID
	})
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[:q.Limit]
	}
	return res, nil
}

func (s *MemoryStore) Close() error { return nil }
