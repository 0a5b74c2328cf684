package storage

import (
	"context"
	"sort"
	"sync"

	"mercator-hq/vigil/pkg/history"
)

// MemoryStorage implements history.Storage using an in-memory map.
type MemoryStorage struct {
	records map[string]*history.Record
	mu      sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*history.Record),
	}
}

// Store persists a copy of record.
func (s *MemoryStorage) Store(ctx context.Context, record *history.Record) error {
	if record.ID == "" {
		return history.NewStorageError("memory", "store", errMissingID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recordCopy := *record
	recordCopy.Violations = append([]history.ViolationRecord(nil), record.Violations...)
	s.records[record.ID] = &recordCopy
	return nil
}

// Query retrieves copies of the records matching the query filters.
func (s *MemoryStorage) Query(ctx context.Context, query *history.Query) ([]*history.Record, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	results := s.matching(query)
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if !a.RecordedAt.Equal(b.RecordedAt) {
			if query.Ascending() {
				return a.RecordedAt.Before(b.RecordedAt)
			}
			return a.RecordedAt.After(b.RecordedAt)
		}
		if query.Ascending() {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})

	start := query.Offset
	if start > len(results) {
		return []*history.Record{}, nil
	}
	end := len(results)
	if query.Limit > 0 && start+query.Limit < end {
		end = start + query.Limit
	}
	return results[start:end], nil
}

// Count returns the number of records matching the query filters.
func (s *MemoryStorage) Count(ctx context.Context, query *history.Query) (int64, error) {
	return int64(len(s.matching(query))), nil
}

// Delete removes records matching the query filters.
func (s *MemoryStorage) Delete(ctx context.Context, query *history.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, record := range s.records {
		if query.Matches(record) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close clears all records.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*history.Record)
	return nil
}

func (s *MemoryStorage) matching(query *history.Query) []*history.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []*history.Record{}
	for _, record := range s.records {
		if query.Matches(record) {
			recordCopy := *record
			results = append(results, &recordCopy)
		}
	}
	return results
}
