package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirosfoundation/go-httpservice/internal/storage"
)

// DefaultMaxRecords bounds the in-memory audit trail
const DefaultMaxRecords = 10000

// Store implements an in-memory storage
type Store struct {
	audit *AuditStore
}

// NewStore creates a new in-memory store keeping at most maxRecords audit
// records (DefaultMaxRecords when <= 0)
func NewStore(maxRecords int) *Store {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &Store{
		audit: &AuditStore{
			byID: make(map[string]*storage.AuditRecord),
			max:  maxRecords,
		},
	}
}

func (s *Store) Audit() storage.AuditStore      { return s.audit }
func (s *Store) Close() error                   { return nil }
func (s *Store) Ping(ctx context.Context) error { return nil }

// AuditStore implements in-memory audit storage. Records are kept in
// append order; the oldest are evicted past the size bound.
type AuditStore struct {
	mu      sync.RWMutex
	records []*storage.AuditRecord
	byID    map[string]*storage.AuditRecord
	max     int
}

func (s *AuditStore) Append(ctx context.Context, rec *storage.AuditRecord) error {
	if rec == nil || rec.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[rec.ID]; exists {
		return storage.ErrAlreadyExists
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}

	cp := *rec
	s.records = append(s.records, &cp)
	s.byID[cp.ID] = &cp

	if over := len(s.records) - s.max; over > 0 {
		for _, old := range s.records[:over] {
			delete(s.byID, old.ID)
		}
		s.records = append([]*storage.AuditRecord(nil), s.records[over:]...)
	}
	return nil
}

func (s *AuditStore) GetByID(ctx context.Context, id string) (*storage.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *AuditStore) List(ctx context.Context, filter storage.AuditFilter) ([]*storage.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.EffectiveLimit()
	var out []*storage.AuditRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]
		if !filter.Matches(rec) {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	// Append order is commit order, but callers may backdate Time.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *AuditStore) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var removed int64
	for _, rec := range s.records {
		if rec.Time.Before(t) {
			delete(s.byID, rec.ID)
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	return removed, nil
}
