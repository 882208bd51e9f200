// Package review carries flagged content from the submission gate to human
// review: queue transport, S3 snapshots and the flagged_content table.
package review

import (
	"errors"
	"strings"
	"time"
)

// StatusPending is the review status of a newly stored item.
const StatusPending = "pending"

// Item is a flagged submission awaiting human review.
type Item struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	ImageRef  string    `json:"imageRef,omitempty"`
	Reason    string    `json:"reason"`
	Score     float64   `json:"score"`
	FlaggedAt time.Time `json:"flaggedAt"`
}

// Validate checks the fields the worker relies on.
func (i Item) Validate() error {
	var errs []error
	if strings.TrimSpace(i.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if strings.TrimSpace(i.AccountID) == "" {
		errs = append(errs, errors.New("accountId is required"))
	}
	if i.FlaggedAt.IsZero() {
		errs = append(errs, errors.New("flaggedAt is required"))
	}
	return errors.Join(errs...)
}
