// Package safety tracks per-account safety standing and escalates repeated
// hate-speech violations from warning to suspension to termination.
package safety

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAccountNotFound is returned when no safety record exists for an account.
	ErrAccountNotFound = errors.New("safety: account not found")
	// ErrInvalidAccountID is returned for blank account identifiers.
	ErrInvalidAccountID = errors.New("safety: invalid account id")
)

// Record defaults and penalties.
const (
	InitialSafetyScore = 100
	ViolationPenalty   = 15
)

// ViolationHateSpeech is the only violation type the policy records.
const ViolationHateSpeech = "hate_speech"

// Record is an account's safety standing.
type Record struct {
	AccountID         string     `json:"accountId"`
	SafetyScore       int        `json:"safetyScore"`
	WarningCount      int        `json:"warningCount"`
	SuspensionCount   int        `json:"suspensionCount"`
	IsSuspended       bool       `json:"isSuspended"`
	SuspensionEndDate *time.Time `json:"suspensionEndDate,omitempty"`
	IsTerminated      bool       `json:"isTerminated"`
	TerminatedAt      *time.Time `json:"terminatedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// NewRecord returns the default record for a freshly created account.
func NewRecord(accountID string, now time.Time) Record {
	return Record{
		AccountID:   accountID,
		SafetyScore: InitialSafetyScore,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Restricted reports whether the account may not post.
func (r Record) Restricted() bool {
	return r.IsSuspended || r.IsTerminated
}

// Violation is one entry in an account's violation log.
type Violation struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository stores safety records. Counter updates must be atomic per call;
// escalation across concurrent calls is not serialized.
type Repository interface {
	// Create inserts the default record, or returns the existing one.
	Create(ctx context.Context, accountID string) (Record, error)
	Get(ctx context.Context, accountID string) (Record, error)
	// ApplyViolation logs v, lowers the score by penalty (floored at 0) and
	// increments the warning count, returning the updated record.
	ApplyViolation(ctx context.Context, v Violation, penalty int) (Record, error)
	// Suspend sets the suspension end date and increments the suspension count.
	Suspend(ctx context.Context, accountID string, until time.Time) (Record, error)
	// Terminate marks the account terminated. The first termination time is kept.
	Terminate(ctx context.Context, accountID string, at time.Time) (Record, error)
	// ListViolations returns the newest violations first.
	ListViolations(ctx context.Context, accountID string, limit int) ([]Violation, error)
}
