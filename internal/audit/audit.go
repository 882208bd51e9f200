// Package audit keeps an append-only trail of moderation decisions.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/wolfman30/loop-safety/internal/moderation"
)

// Entry is one stored moderation decision.
type Entry struct {
	ID             int64     `json:"id"`
	AccountID      string    `json:"accountId,omitempty"`
	Kind           string    `json:"kind,omitempty"`
	Status         string    `json:"status"`
	Score          float64   `json:"score"`
	Reason         string    `json:"reason,omitempty"`
	Path           string    `json:"path"`
	HateConfidence int       `json:"hateConfidence"`
	HateCategory   string    `json:"hateCategory,omitempty"`
	SentimentLabel string    `json:"sentimentLabel"`
	Keywords       []string  `json:"keywords"`
	ImageRef       string    `json:"imageRef,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Filter narrows Query results.
type Filter struct {
	AccountID string
	Status    string
	Since     time.Time
	Limit     int
}

// AuditService writes moderation decisions to moderation_audit.
type AuditService struct {
	db *sql.DB
}

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// RecordDecision appends d to the trail.
func (s *AuditService) RecordDecision(ctx context.Context, d moderation.Decision) error {
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now().UTC()
	}
	keywords := d.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	query := `
		INSERT INTO moderation_audit (
			account_id, kind, status, score, reason, path,
			hate_confidence, hate_category, sentiment_label, keywords, image_ref, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		nullString(d.AccountID),
		nullString(d.Kind),
		string(d.Status),
		d.Score,
		nullString(d.Reason),
		string(d.Path),
		d.HateConfidence,
		nullString(d.HateCategory),
		d.SentimentLabel,
		pq.Array(keywords),
		nullString(d.ImageRef),
		d.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to record decision: %w", err)
	}
	return nil
}

// Query returns decisions newest first.
func (s *AuditService) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT id, account_id, kind, status, score, reason, path,
			   hate_confidence, hate_category, sentiment_label, keywords, image_ref, created_at
		FROM moderation_audit
		WHERE 1=1
	`
	var args []any
	argIdx := 1

	if filter.AccountID != "" {
		query += fmt.Sprintf(" AND account_id = $%d", argIdx)
		args = append(args, filter.AccountID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.Since)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query decisions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var accountID, kind, reason, category, imageRef sql.NullString
		err := rows.Scan(
			&e.ID, &accountID, &kind, &e.Status, &e.Score, &reason, &e.Path,
			&e.HateConfidence, &category, &e.SentimentLabel, pq.Array(&e.Keywords), &imageRef, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to scan decision: %w", err)
		}
		e.AccountID = accountID.String
		e.Kind = kind.String
		e.Reason = reason.String
		e.HateCategory = category.String
		e.ImageRef = imageRef.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: failed to iterate decisions: %w", err)
	}
	return entries, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ moderation.Recorder = (*AuditService)(nil)
