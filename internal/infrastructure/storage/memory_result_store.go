package storage

import (
	"context"
	"fmt"
	"sync"

	"vision-relay/internal/domain/entity"
	"vision-relay/internal/domain/port"
)

// MemoryResultStore хранит итоги в памяти в том же формате, что и внешние хранилища
type MemoryResultStore struct {
	mu      sync.RWMutex
	records map[string]entity.SummaryRecord
}

// NewMemoryResultStore создаёт пустое хранилище
func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{records: make(map[string]entity.SummaryRecord)}
}

// Put сохраняет итог, перезаписывая запись с тем же job_id
func (s *MemoryResultStore) Put(ctx context.Context, summary *entity.JobSummary) error {
	rec := summary.ToRecord()

	s.mu.Lock()
	s.records[rec.PredictionID] = rec
	s.mu.Unlock()
	return nil
}

// Get возвращает итог по job_id
func (s *MemoryResultStore) Get(ctx context.Context, jobID string) (*entity.JobSummary, error) {
	s.mu.RLock()
	rec, ok := s.records[jobID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrSummaryNotFound, jobID)
	}
	return rec.ToSummary()
}

// Len возвращает количество записей
func (s *MemoryResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

var _ port.ResultStore = (*MemoryResultStore)(nil)
