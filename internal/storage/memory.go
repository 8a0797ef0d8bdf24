package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"spatialengine/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, record model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	if record.RunID == "" {
		return errors.New("run id is required")
	}
	s.runs[record.RunID] = cloneRun(record)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, runID string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.runs[runID]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	return cloneRun(record), true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.RunRecord, 0, len(s.runs))
	for _, record := range s.runs {
		records = append(records, cloneRun(record))
	}
	sortNewestFirst(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func sortNewestFirst(records []model.RunRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAtUTC != records[j].CreatedAtUTC {
			return records[i].CreatedAtUTC > records[j].CreatedAtUTC
		}
		return records[i].RunID > records[j].RunID
	})
}

// cloneRun copies the slices so callers cannot mutate stored records.
func cloneRun(r model.RunRecord) model.RunRecord {
	out := r
	out.Evaluations = append([]model.EvaluationStats(nil), r.Evaluations...)
	out.Queries = append([]model.QuerySummary(nil), r.Queries...)
	if r.MaxDistance != nil {
		d := *r.MaxDistance
		out.MaxDistance = &d
	}
	return out
}
