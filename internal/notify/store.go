package notify

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
)

// Store persists user notifications.
type Store interface {
	Save(ctx context.Context, n Notification) error
	ListByAccount(ctx context.Context, accountID string, limit int) ([]Notification, error)
}

// SQLStore keeps notifications in the notifications table.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a database/sql backed store.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Save inserts n.
func (s *SQLStore) Save(ctx context.Context, n Notification) error {
	query := `
		INSERT INTO notifications (id, account_id, type, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.db.ExecContext(ctx, query, n.ID, n.AccountID, n.Type, n.Message, n.CreatedAt); err != nil {
		return fmt.Errorf("notify: insert notification: %w", err)
	}
	return nil
}

// ListByAccount returns the newest notifications first.
func (s *SQLStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]Notification, error) {
	query := `
		SELECT id, account_id, type, message, created_at
		FROM notifications
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("notify: query notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.AccountID, &n.Type, &n.Message, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notify: scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notify: iterate notifications: %w", err)
	}
	return out, nil
}

// MemoryStore is an in-process Store for local runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]Notification
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]Notification)}
}

func (m *MemoryStore) Save(ctx context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[n.AccountID] = append(m.items[n.AccountID], n)
	return nil
}

func (m *MemoryStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]Notification, error) {
	m.mu.RLock()
	src := m.items[accountID]
	out := make([]Notification, len(src))
	copy(out, src)
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
