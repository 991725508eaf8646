package store

import (
	"sync"

	"github.com/mrumy-dev/stylesync-telemetry/internal/models"

	"go.uber.org/zap"
)

// EventStore is a bounded FIFO buffer of pending records for one telemetry
// kind. All access is serialized through a single mutex so producers on
// different goroutines never observe a partial mutation.
type EventStore struct {
	kind        models.Kind
	maxCapacity int
	records     []models.Record
	logger      *zap.Logger
	mu          sync.Mutex
}

// NewEventStore creates a new event store for one record kind
func NewEventStore(kind models.Kind, maxCapacity int, logger *zap.Logger) *EventStore {
	return &EventStore{
		kind:        kind,
		maxCapacity: maxCapacity,
		logger:      logger,
	}
}

// Append inserts a record at the tail. If the store exceeds capacity the
// oldest entries are dropped until it fits; overflow is not an error. The
// ids of dropped records are returned so callers holding them in other
// storage (the analytics journal) can discard them too.
func (s *EventStore) Append(record models.Record) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record)
	over := len(s.records) - s.maxCapacity
	if over <= 0 {
		return nil
	}

	dropped := make([]string, over)
	for i, r := range s.records[:over] {
		dropped[i] = r.ID
	}
	s.records = s.records[over:]

	s.logger.Debug("Dropped oldest records over capacity",
		zap.String("kind", string(s.kind)),
		zap.Int("dropped", over),
		zap.Int("capacity", s.maxCapacity),
	)
	return dropped
}

// DrainBatch returns up to n oldest records in insertion order without
// removing them. The caller removes them only after a confirmed submission.
func (s *EventStore) DrainBatch(n int) []models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n > len(s.records) {
		n = len(s.records)
	}
	if n <= 0 {
		return nil
	}
	batch := make([]models.Record, n)
	copy(batch, s.records[:n])
	return batch
}

// Remove deletes the records whose ids are in ids, preserving the order of
// everything else
func (s *EventStore) Remove(ids []string) int {
	if len(ids) == 0 {
		return 0
	}

	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	removed := 0
	for _, r := range s.records {
		if _, ok := idSet[r.ID]; ok {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept

	if removed > 0 {
		s.logger.Debug("Records removed from store",
			zap.String("kind", string(s.kind)),
			zap.Int("count", removed),
		)
	}
	return removed
}

// RequeueFront reinserts records at the head, preserving their relative
// order, so a failed batch is retried before anything newer. Records that
// are still present (DrainBatch does not remove) are not duplicated.
func (s *EventStore) RequeueFront(records []models.Record) {
	if len(records) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	present := make(map[string]struct{}, len(s.records))
	for _, r := range s.records {
		present[r.ID] = struct{}{}
	}

	var front []models.Record
	for _, r := range records {
		if _, ok := present[r.ID]; ok {
			continue
		}
		front = append(front, r)
	}
	if len(front) == 0 {
		return
	}

	s.records = append(front, s.records...)
	if over := len(s.records) - s.maxCapacity; over > 0 {
		s.records = s.records[over:]
	}
}

// Count returns the number of pending records
func (s *EventStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
