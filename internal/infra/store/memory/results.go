// Package memory holds process-local stores. Nothing here is durable and
// nothing is ever evicted.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/bryanwahyu/judgeproxy/internal/domain/analysis"
)

// ResultStore implements analysis.ResultStore over a map. The mutex only
// keeps the map consistent; two writers on the same id still race and the
// last one wins.
type ResultStore struct {
	mu      sync.RWMutex
	records map[string]analysis.Record
}

func NewResultStore() *ResultStore {
	return &ResultStore{records: make(map[string]analysis.Record)}
}

func (s *ResultStore) Put(_ context.Context, rec analysis.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *ResultStore) Get(_ context.Context, id string) (analysis.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return analysis.Record{}, analysis.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *ResultStore) Merge(_ context.Context, id string, fields map[string]any, at time.Time) (analysis.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return analysis.Record{}, analysis.ErrNotFound
	}
	rec = rec.Clone()
	if rec.Result.Data == nil {
		rec.Result.Data = make(map[string]any, len(fields))
	}
	maps.Copy(rec.Result.Data, fields)
	rec.UpdatedAt = at
	s.records[id] = rec
	return rec.Clone(), nil
}

// List returns every record ordered by creation time, then id.
func (s *ResultStore) List(_ context.Context) ([]analysis.Record, error) {
	s.mu.RLock()
	out := make([]analysis.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Len is used by the metrics gauge.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
