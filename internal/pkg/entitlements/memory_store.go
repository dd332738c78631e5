package entitlements

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. Used for local development
// without MySQL and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Get(ctx context.Context, accountID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[accountID]
	if !ok {
		return DefaultRecord(accountID), nil
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) Put(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.AccountID] = cloneRecord(rec)
	return nil
}

func (s *MemoryStore) MarkExpired(ctx context.Context, seen Record) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[seen.AccountID]
	if !ok || rec.Status != seen.Status || rec.PlanID != seen.PlanID ||
		!sameTime(rec.TrialEndsAt, seen.TrialEndsAt) || !sameTime(rec.PeriodEndsAt, seen.PeriodEndsAt) {
		return false, nil
	}
	rec.Status = StatusExpired
	s.records[seen.AccountID] = rec
	return true, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// cloneRecord copies time pointers so callers cannot mutate stored state.
func cloneRecord(r Record) Record {
	r.TrialEndsAt = copyTime(r.TrialEndsAt)
	r.PeriodEndsAt = copyTime(r.PeriodEndsAt)
	r.TrialUsedAt = copyTime(r.TrialUsedAt)
	r.LastSyncedAt = copyTime(r.LastSyncedAt)
	return r
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
