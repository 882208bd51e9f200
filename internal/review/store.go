package review

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PgxExecer is the subset of pgxpool.Pool used by PostgresStore.
type PgxExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore writes flagged items to the flagged_content table.
type PostgresStore struct {
	pool PgxExecer
}

// NewPostgresStore creates a store.
func NewPostgresStore(pool PgxExecer) *PostgresStore {
	if pool == nil {
		panic("review: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

// InsertFlagged stores item as pending review. Redelivered items are ignored.
func (s *PostgresStore) InsertFlagged(ctx context.Context, item Item, archiveKey string) (bool, error) {
	query := `
		INSERT INTO flagged_content (id, account_id, kind, text, image_ref, reason, score, archive_key, review_status, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''), $9, $10)
		ON CONFLICT (id) DO NOTHING`
	tag, err := s.pool.Exec(ctx, query,
		item.ID, item.AccountID, item.Kind, item.Text, item.ImageRef,
		item.Reason, item.Score, archiveKey, StatusPending, item.FlaggedAt,
	)
	if err != nil {
		return false, fmt.Errorf("review: insert flagged content: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
