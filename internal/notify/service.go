// Package notify records user-facing safety notifications and alerts the
// trust-and-safety operators when an account is restricted.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/loop-safety/pkg/logging"
)

// Notification types.
const (
	TypeWarning     = "warning"
	TypeSuspension  = "suspension"
	TypeTermination = "termination"
)

// Notification is a message shown to an account holder.
type Notification struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service persists notifications and emails operators about restrictions.
type Service struct {
	store    Store
	email    EmailSender
	opsEmail string
	logger   *logging.Logger
	now      func() time.Time
}

// NewService creates a notification service. Operator email is skipped when
// email is nil or opsEmail is empty.
func NewService(store Store, email EmailSender, opsEmail string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:    store,
		email:    email,
		opsEmail: strings.TrimSpace(opsEmail),
		logger:   logger,
		now:      time.Now,
	}
}

// Notify stores n and, for suspensions and terminations, emails operators.
// An email failure is logged but not returned.
func (s *Service) Notify(ctx context.Context, n Notification) error {
	if n.AccountID == "" {
		return fmt.Errorf("notify: account id required")
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}

	if err := s.store.Save(ctx, n); err != nil {
		s.logger.Error("notify: failed to store notification", "error", err, "account_id", n.AccountID, "type", n.Type)
		return err
	}

	if n.Type != TypeSuspension && n.Type != TypeTermination {
		return nil
	}
	if s.email == nil || s.opsEmail == "" {
		s.logger.Debug("notify: operator email not configured, skipping", "account_id", n.AccountID)
		return nil
	}

	msg, err := Escalation{
		AccountID:  n.AccountID,
		Action:     n.Type,
		Message:    n.Message,
		OccurredAt: n.CreatedAt,
	}.Render(s.opsEmail)
	if err != nil {
		s.logger.Error("notify: failed to render operator email", "error", err, "account_id", n.AccountID)
		return nil
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notify: operator email failed", "error", err, "account_id", n.AccountID, "type", n.Type)
	}
	return nil
}

// List returns the newest notifications for an account.
func (s *Service) List(ctx context.Context, accountID string, limit int) ([]Notification, error) {
	return s.store.ListByAccount(ctx, accountID, limit)
}
