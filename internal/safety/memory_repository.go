package safety

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is a mutex-guarded Repository for local runs and tests.
type MemoryRepository struct {
	mu         sync.Mutex
	records    map[string]*Record
	violations map[string][]Violation
	now        func() time.Time
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records:    make(map[string]*Record),
		violations: make(map[string][]Violation),
		now:        time.Now,
	}
}

func (m *MemoryRepository) Create(ctx context.Context, accountID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[accountID]; ok {
		return *rec, nil
	}
	rec := NewRecord(accountID, m.now().UTC())
	m.records[accountID] = &rec
	return rec, nil
}

func (m *MemoryRepository) Get(ctx context.Context, accountID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[accountID]
	if !ok {
		return Record{}, ErrAccountNotFound
	}
	return *rec, nil
}

func (m *MemoryRepository) ApplyViolation(ctx context.Context, v Violation, penalty int) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[v.AccountID]
	if !ok {
		return Record{}, ErrAccountNotFound
	}
	m.violations[v.AccountID] = append(m.violations[v.AccountID], v)
	rec.SafetyScore = max(rec.SafetyScore-penalty, 0)
	rec.WarningCount++
	rec.UpdatedAt = m.now().UTC()
	return *rec, nil
}

func (m *MemoryRepository) Suspend(ctx context.Context, accountID string, until time.Time) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[accountID]
	if !ok {
		return Record{}, ErrAccountNotFound
	}
	rec.IsSuspended = true
	rec.SuspensionEndDate = &until
	rec.SuspensionCount++
	rec.UpdatedAt = m.now().UTC()
	return *rec, nil
}

func (m *MemoryRepository) Terminate(ctx context.Context, accountID string, at time.Time) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[accountID]
	if !ok {
		return Record{}, ErrAccountNotFound
	}
	rec.IsTerminated = true
	if rec.TerminatedAt == nil {
		rec.TerminatedAt = &at
	}
	rec.UpdatedAt = m.now().UTC()
	return *rec, nil
}

func (m *MemoryRepository) ListViolations(ctx context.Context, accountID string, limit int) ([]Violation, error) {
	m.mu.Lock()
	src := m.violations[accountID]
	out := make([]Violation, len(src))
	copy(out, src)
	m.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Repository = (*MemoryRepository)(nil)
