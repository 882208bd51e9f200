package safety

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/loop-safety/internal/notify"
	"github.com/wolfman30/loop-safety/pkg/logging"
)

type recordingNotifier struct {
	sent []notify.Notification
	err  error
}

func (r *recordingNotifier) Notify(ctx context.Context, n notify.Notification) error {
	r.sent = append(r.sent, n)
	return r.err
}

type countingObserver struct {
	actions []string
}

func (c *countingObserver) ObserveViolation(action string) {
	c.actions = append(c.actions, action)
}

var policyNow = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func newTestPolicy(t *testing.T, repo Repository, n Notifier, opts ...PolicyOption) *Policy {
	t.Helper()
	opts = append([]PolicyOption{WithClock(func() time.Time { return policyNow })}, opts...)
	return NewPolicy(repo, n, logging.Discard(), opts...)
}

func TestPolicy_EscalatesWarningSuspensionTermination(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	_, err := repo.Create(ctx, "acct-1")
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	observer := &countingObserver{}
	policy := newTestPolicy(t, repo, notifier, WithObserver(observer))

	first, err := policy.HandleHateSpeechViolation(ctx, "acct-1", "hateful post", "en")
	require.NoError(t, err)
	assert.Equal(t, ActionWarning, first.Action)
	assert.Equal(t, MessageWarning, first.Message)
	assert.Equal(t, 85, first.Record.SafetyScore)
	assert.Equal(t, 1, first.Record.WarningCount)
	assert.False(t, first.Record.IsSuspended)
	assert.False(t, first.Record.IsTerminated)

	second, err := policy.HandleHateSpeechViolation(ctx, "acct-1", "hateful again", "en")
	require.NoError(t, err)
	assert.Equal(t, ActionSuspension, second.Action)
	assert.Equal(t, 70, second.Record.SafetyScore)
	assert.Equal(t, 2, second.Record.WarningCount)
	assert.Equal(t, 1, second.Record.SuspensionCount)
	assert.True(t, second.Record.IsSuspended)
	require.NotNil(t, second.Record.SuspensionEndDate)
	assert.Equal(t, policyNow.Add(96*time.Hour), *second.Record.SuspensionEndDate)

	third, err := policy.HandleHateSpeechViolation(ctx, "acct-1", "and again", "te")
	require.NoError(t, err)
	assert.Equal(t, ActionTermination, third.Action)
	assert.Equal(t, 55, third.Record.SafetyScore)
	assert.Equal(t, 3, third.Record.WarningCount)
	assert.True(t, third.Record.IsTerminated)
	require.NotNil(t, third.Record.TerminatedAt)
	assert.Equal(t, policyNow, *third.Record.TerminatedAt)

	require.Len(t, notifier.sent, 3)
	assert.Equal(t, notify.TypeWarning, notifier.sent[0].Type)
	assert.Equal(t, MessageSuspension, notifier.sent[1].Message)
	assert.Equal(t, MessageTermination, notifier.sent[2].Message)
	assert.Equal(t, "acct-1", notifier.sent[2].AccountID)

	assert.Equal(t, []string{"warning", "suspension", "termination"}, observer.actions)

	violations, err := repo.ListViolations(ctx, "acct-1", 10)
	require.NoError(t, err)
	require.Len(t, violations, 3)
	for _, v := range violations {
		assert.Equal(t, ViolationHateSpeech, v.Type)
		assert.NotEmpty(t, v.ID)
	}
}

func TestPolicy_ScoreFloorsAtZeroAndTerminationTimeIsKept(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	_, err := repo.Create(ctx, "acct-1")
	require.NoError(t, err)

	clock := policyNow
	policy := NewPolicy(repo, nil, logging.Discard(), WithClock(func() time.Time { return clock }))

	var out Outcome
	for i := 0; i < 8; i++ {
		out, err = policy.HandleHateSpeechViolation(ctx, "acct-1", "text", "en")
		require.NoError(t, err)
		clock = clock.Add(time.Hour)
	}
	assert.Equal(t, 0, out.Record.SafetyScore)
	assert.Equal(t, 8, out.Record.WarningCount)
	assert.Equal(t, ActionTermination, out.Action)
	assert.Equal(t, 1, out.Record.SuspensionCount)
	require.NotNil(t, out.Record.TerminatedAt)
	assert.Equal(t, policyNow.Add(2*time.Hour), *out.Record.TerminatedAt)
}

func TestPolicy_SuspensionLengthOverride(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	_, _ = repo.Create(ctx, "acct-1")
	policy := newTestPolicy(t, repo, nil, WithSuspension(time.Hour))

	_, err := policy.HandleHateSpeechViolation(ctx, "acct-1", "a", "en")
	require.NoError(t, err)
	out, err := policy.HandleHateSpeechViolation(ctx, "acct-1", "b", "en")
	require.NoError(t, err)
	assert.Equal(t, policyNow.Add(time.Hour), *out.Record.SuspensionEndDate)
}

func TestPolicy_UnknownAccount(t *testing.T) {
	notifier := &recordingNotifier{}
	policy := newTestPolicy(t, NewMemoryRepository(), notifier)

	_, err := policy.HandleHateSpeechViolation(context.Background(), "ghost", "text", "en")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.Empty(t, notifier.sent)
}

func TestPolicy_BlankAccount(t *testing.T) {
	policy := newTestPolicy(t, NewMemoryRepository(), nil)

	_, err := policy.HandleHateSpeechViolation(context.Background(), "  ", "text", "en")
	assert.ErrorIs(t, err, ErrInvalidAccountID)
}

func TestPolicy_NotifierFailureDoesNotFail(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	_, _ = repo.Create(ctx, "acct-1")
	policy := newTestPolicy(t, repo, &recordingNotifier{err: errors.New("store down")})

	out, err := policy.HandleHateSpeechViolation(ctx, "acct-1", "text", "en")
	require.NoError(t, err)
	assert.Equal(t, ActionWarning, out.Action)
}

func TestMemoryRepository_CreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	first, err := repo.Create(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, InitialSafetyScore, first.SafetyScore)

	_, err = repo.ApplyViolation(ctx, Violation{ID: "v1", AccountID: "acct-1"}, ViolationPenalty)
	require.NoError(t, err)

	again, err := repo.Create(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.WarningCount)
}

func TestMemoryRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	_, err = repo.Suspend(ctx, "nope", policyNow)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	_, err = repo.Terminate(ctx, "nope", policyNow)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestRecord_Restricted(t *testing.T) {
	assert.False(t, NewRecord("a", policyNow).Restricted())
	assert.True(t, Record{IsSuspended: true}.Restricted())
	assert.True(t, Record{IsTerminated: true}.Restricted())
}
