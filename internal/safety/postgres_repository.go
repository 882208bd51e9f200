package safety

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool used by PostgresRepository.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const recordColumns = `account_id, safety_score, warning_count, suspension_count, is_suspended,
	suspension_end_date, is_terminated, terminated_at, created_at, updated_at`

// PostgresRepository stores safety records in the account_safety and
// violations tables.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository creates a Postgres-backed repository.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("safety: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.AccountID, &rec.SafetyScore, &rec.WarningCount, &rec.SuspensionCount, &rec.IsSuspended,
		&rec.SuspensionEndDate, &rec.IsTerminated, &rec.TerminatedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrAccountNotFound
	}
	return rec, err
}

func (r *PostgresRepository) Create(ctx context.Context, accountID string) (Record, error) {
	query := `
		INSERT INTO account_safety (account_id, safety_score)
		VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET account_id = EXCLUDED.account_id
		RETURNING ` + recordColumns
	rec, err := scanRecord(r.pool.QueryRow(ctx, query, accountID, InitialSafetyScore))
	if err != nil {
		return Record{}, fmt.Errorf("safety: create record: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Get(ctx context.Context, accountID string) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM account_safety WHERE account_id = $1`
	rec, err := scanRecord(r.pool.QueryRow(ctx, query, accountID))
	if err != nil {
		return Record{}, fmt.Errorf("safety: get record: %w", err)
	}
	return rec, nil
}

// ApplyViolation updates the counters and logs the violation in one
// transaction.
func (r *PostgresRepository) ApplyViolation(ctx context.Context, v Violation, penalty int) (Record, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("safety: begin tx: %w", err)
	}

	update := `
		UPDATE account_safety
		SET safety_score = GREATEST(safety_score - $2, 0),
			warning_count = warning_count + 1,
			updated_at = $3
		WHERE account_id = $1
		RETURNING ` + recordColumns
	rec, err := scanRecord(tx.QueryRow(ctx, update, v.AccountID, penalty, v.CreatedAt))
	if err != nil {
		_ = tx.Rollback(ctx)
		return Record{}, fmt.Errorf("safety: apply violation: %w", err)
	}

	insert := `
		INSERT INTO violations (id, account_id, content, type, language, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.Exec(ctx, insert, v.ID, v.AccountID, v.Content, v.Type, v.Language, v.CreatedAt); err != nil {
		_ = tx.Rollback(ctx)
		return Record{}, fmt.Errorf("safety: insert violation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("safety: commit violation: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Suspend(ctx context.Context, accountID string, until time.Time) (Record, error) {
	query := `
		UPDATE account_safety
		SET is_suspended = TRUE,
			suspension_end_date = $2,
			suspension_count = suspension_count + 1,
			updated_at = NOW()
		WHERE account_id = $1
		RETURNING ` + recordColumns
	rec, err := scanRecord(r.pool.QueryRow(ctx, query, accountID, until))
	if err != nil {
		return Record{}, fmt.Errorf("safety: suspend: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Terminate(ctx context.Context, accountID string, at time.Time) (Record, error) {
	query := `
		UPDATE account_safety
		SET is_terminated = TRUE,
			terminated_at = COALESCE(terminated_at, $2),
			updated_at = NOW()
		WHERE account_id = $1
		RETURNING ` + recordColumns
	rec, err := scanRecord(r.pool.QueryRow(ctx, query, accountID, at))
	if err != nil {
		return Record{}, fmt.Errorf("safety: terminate: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) ListViolations(ctx context.Context, accountID string, limit int) ([]Violation, error) {
	query := `
		SELECT id, account_id, content, type, language, created_at
		FROM violations
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("safety: list violations: %w", err)
	}
	defer rows.Close()

	var out []Violation
	for rows.Next() {
		var v Violation
		if err := rows.Scan(&v.ID, &v.AccountID, &v.Content, &v.Type, &v.Language, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("safety: scan violation: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("safety: iterate violations: %w", err)
	}
	return out, nil
}

var _ Repository = (*PostgresRepository)(nil)
