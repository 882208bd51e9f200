package submission

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/loop-safety/internal/hatespeech"
	"github.com/wolfman30/loop-safety/internal/moderation"
	"github.com/wolfman30/loop-safety/internal/review"
	"github.com/wolfman30/loop-safety/internal/safety"
	"github.com/wolfman30/loop-safety/internal/sentiment"
	"github.com/wolfman30/loop-safety/pkg/logging"
)

var gateNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type stubEvaluator struct {
	ev    moderation.Evaluation
	calls int
}

func (s *stubEvaluator) Evaluate(context.Context, moderation.Request) moderation.Evaluation {
	s.calls++
	return s.ev
}

type stubHate struct{ result hatespeech.Result }

func (s stubHate) Detect(context.Context, string) hatespeech.Result { return s.result }

type stubSentiment struct{ result sentiment.Result }

func (s stubSentiment) Analyze(context.Context, string) sentiment.Result { return s.result }

type stubPolicy struct {
	calls     int
	languages []string
	err       error
}

func (s *stubPolicy) HandleHateSpeechViolation(_ context.Context, accountID, _, language string) (safety.Outcome, error) {
	s.calls++
	s.languages = append(s.languages, language)
	if s.err != nil {
		return safety.Outcome{}, s.err
	}
	return safety.Outcome{Action: safety.ActionWarning, Message: safety.MessageWarning, Record: safety.Record{AccountID: accountID, WarningCount: 1}}, nil
}

type stubPublisher struct {
	items []review.Item
	err   error
}

func (s *stubPublisher) Enqueue(_ context.Context, item review.Item) error {
	if s.err != nil {
		return s.err
	}
	s.items = append(s.items, item)
	return nil
}

type countingObserver struct {
	submissions  []string
	policyErrors int
}

func (c *countingObserver) ObserveSubmission(kind string, accepted bool) {
	if accepted {
		c.submissions = append(c.submissions, kind+":accepted")
		return
	}
	c.submissions = append(c.submissions, kind+":rejected")
}

func (c *countingObserver) ObservePolicyError() { c.policyErrors++ }

type fixture struct {
	accounts  *safety.MemoryRepository
	evaluator *stubEvaluator
	hate      stubHate
	sent      stubSentiment
	policy    *stubPolicy
	reviews   *stubPublisher
	observer  *countingObserver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := safety.NewMemoryRepository()
	_, err := repo.Create(context.Background(), "acct-1")
	require.NoError(t, err)
	return &fixture{
		accounts:  repo,
		evaluator: &stubEvaluator{},
		sent:      stubSentiment{result: sentiment.Result{Score: 50, Label: sentiment.Neutral}},
		policy:    &stubPolicy{},
		reviews:   &stubPublisher{},
		observer:  &countingObserver{},
	}
}

func (f *fixture) gate() *Gate {
	return NewGate(f.accounts, f.evaluator, f.hate, f.sent, f.policy, logging.Discard(),
		WithReviewPublisher(f.reviews),
		WithObserver(f.observer),
		WithClock(func() time.Time { return gateNow }),
	)
}

func evaluation(status moderation.Status, score float64, hate hatespeech.Result) moderation.Evaluation {
	return moderation.Evaluation{
		Result:     moderation.Result{Status: status, Score: score, Reason: "reason"},
		HateSpeech: hate,
		Sentiment:  sentiment.Result{Score: 40, Label: sentiment.Neutral},
	}
}

var (
	noHate   = hatespeech.Result{Language: "en"}
	mildHate = hatespeech.Result{IsHateSpeech: true, Confidence: 60, Category: "insult", Language: "es"}
	hardHate = hatespeech.Result{IsHateSpeech: true, Confidence: 95, Category: "racial", Language: "en"}
)

func TestGate_SubmitContentKinds(t *testing.T) {
	tests := []struct {
		name         string
		kind         Kind
		ev           moderation.Evaluation
		wantAccepted bool
		wantReason   string
		wantQueued   bool
		wantPolicy   int
	}{
		{name: "approved post", kind: KindPost, ev: evaluation(moderation.StatusApproved, 90, noHate), wantAccepted: true},
		{name: "flagged post is queued", kind: KindPost, ev: evaluation(moderation.StatusFlagged, 45, noHate), wantAccepted: true, wantQueued: true},
		{name: "removed post", kind: KindPost, ev: evaluation(moderation.StatusRemoved, 0, hardHate), wantReason: ReasonPostRemoved, wantPolicy: 1},
		{name: "post with mild hate still approved", kind: KindPost, ev: evaluation(moderation.StatusApproved, 70, mildHate), wantAccepted: true, wantPolicy: 1},
		{name: "comment with any hate", kind: KindComment, ev: evaluation(moderation.StatusApproved, 70, mildHate), wantReason: ReasonCommentHate, wantPolicy: 1},
		{name: "clean comment", kind: KindComment, ev: evaluation(moderation.StatusApproved, 88, noHate), wantAccepted: true},
		{name: "removed comment without hate", kind: KindComment, ev: evaluation(moderation.StatusRemoved, 10, noHate), wantReason: ReasonPostRemoved},
		{name: "share with any hate", kind: KindShare, ev: evaluation(moderation.StatusFlagged, 50, mildHate), wantReason: ReasonShareHate, wantPolicy: 1},
		{name: "flagged share is queued", kind: KindShare, ev: evaluation(moderation.StatusFlagged, 50, noHate), wantAccepted: true, wantQueued: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.evaluator.ev = tt.ev

			d, err := f.gate().Submit(context.Background(), Submission{AccountID: "acct-1", Kind: tt.kind, Text: "some text"})
			require.NoError(t, err)

			assert.NotEmpty(t, d.ID)
			assert.Equal(t, tt.wantAccepted, d.Accepted)
			assert.Equal(t, tt.wantReason, d.Reason)
			assert.Equal(t, tt.wantQueued, d.QueuedForReview)
			require.NotNil(t, d.Moderation)
			assert.Equal(t, tt.ev.Result.Status, d.Moderation.Status)
			assert.Equal(t, tt.wantPolicy, f.policy.calls)
			if tt.wantPolicy > 0 {
				require.NotNil(t, d.Punishment)
				assert.Equal(t, []string{tt.ev.HateSpeech.Language}, f.policy.languages)
			} else {
				assert.Nil(t, d.Punishment)
			}
			if tt.wantQueued {
				require.Len(t, f.reviews.items, 1)
				item := f.reviews.items[0]
				assert.Equal(t, d.ID, item.ID)
				assert.Equal(t, "acct-1", item.AccountID)
				assert.Equal(t, string(tt.kind), item.Kind)
				assert.Equal(t, gateNow, item.FlaggedAt)
				assert.InDelta(t, tt.ev.Result.Score, item.Score, 0.001)
			} else {
				assert.Empty(t, f.reviews.items)
			}
		})
	}
}

func TestGate_SubmitMessage(t *testing.T) {
	tests := []struct {
		name         string
		hate         hatespeech.Result
		wantAccepted bool
		wantPolicy   int
	}{
		{name: "clean message", hate: noHate, wantAccepted: true},
		{name: "mild hate is delivered but punished", hate: mildHate, wantAccepted: true, wantPolicy: 1},
		{name: "confidence at ceiling is delivered", hate: hatespeech.Result{IsHateSpeech: true, Confidence: 80, Language: "en"}, wantAccepted: true, wantPolicy: 1},
		{name: "confident hate is blocked", hate: hardHate, wantPolicy: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.hate = stubHate{result: tt.hate}

			d, err := f.gate().Submit(context.Background(), Submission{AccountID: "acct-1", Kind: KindMessage, Text: "hello"})
			require.NoError(t, err)

			assert.Equal(t, tt.wantAccepted, d.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, ReasonMessageHate, d.Reason)
			}
			assert.Nil(t, d.Moderation)
			assert.Equal(t, sentiment.Neutral, d.Sentiment.Label)
			assert.Zero(t, f.evaluator.calls)
			assert.Equal(t, tt.wantPolicy, f.policy.calls)
		})
	}
}

func TestGate_RejectsRestrictedAccount(t *testing.T) {
	f := newFixture(t)
	_, err := f.accounts.Suspend(context.Background(), "acct-1", gateNow.Add(96*time.Hour))
	require.NoError(t, err)

	_, err = f.gate().Submit(context.Background(), Submission{AccountID: "acct-1", Kind: KindPost, Text: "hi"})
	require.ErrorIs(t, err, ErrAccountRestricted)
	assert.Zero(t, f.evaluator.calls)
	assert.Empty(t, f.observer.submissions)
}

func TestGate_UnknownAccountAndInvalidInput(t *testing.T) {
	f := newFixture(t)
	g := f.gate()

	_, err := g.Submit(context.Background(), Submission{AccountID: "ghost", Kind: KindPost, Text: "hi"})
	require.ErrorIs(t, err, safety.ErrAccountNotFound)

	for _, s := range []Submission{
		{AccountID: "", Kind: KindPost, Text: "hi"},
		{AccountID: "acct-1", Kind: "story", Text: "hi"},
		{AccountID: "acct-1", Kind: KindPost, Text: "   "},
	} {
		_, err := g.Submit(context.Background(), s)
		assert.ErrorIs(t, err, ErrInvalidSubmission)
	}
}

func TestGate_PolicyFailureDoesNotChangeVerdict(t *testing.T) {
	f := newFixture(t)
	f.evaluator.ev = evaluation(moderation.StatusApproved, 72, mildHate)
	f.policy.err = errors.New("db down")

	d, err := f.gate().Submit(context.Background(), Submission{AccountID: "acct-1", Kind: KindPost, Text: "hmm"})
	require.NoError(t, err)
	assert.True(t, d.Accepted)
	assert.Nil(t, d.Punishment)
	assert.Equal(t, 1, f.observer.policyErrors)
	assert.Equal(t, []string{"post:accepted"}, f.observer.submissions)
}

func TestGate_ReviewQueueFailureStillAccepts(t *testing.T) {
	f := newFixture(t)
	f.evaluator.ev = evaluation(moderation.StatusFlagged, 45, noHate)
	f.reviews.err = errors.New("sqs down")

	d, err := f.gate().Submit(context.Background(), Submission{AccountID: "acct-1", Kind: KindPost, Text: "edgy"})
	require.NoError(t, err)
	assert.True(t, d.Accepted)
	assert.False(t, d.QueuedForReview)
}

func TestHandler_Submit(t *testing.T) {
	f := newFixture(t)
	f.evaluator.ev = evaluation(moderation.StatusRemoved, 0, hardHate)
	_, err := f.accounts.Create(context.Background(), "acct-2")
	require.NoError(t, err)
	_, err = f.accounts.Terminate(context.Background(), "acct-2", gateNow)
	require.NoError(t, err)

	h := NewHandler(f.gate(), logging.Discard())

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{name: "decision", body: `{"accountId":"acct-1","kind":"post","text":"bad"}`, wantCode: http.StatusOK},
		{name: "malformed", body: `{`, wantCode: http.StatusBadRequest},
		{name: "unknown kind", body: `{"accountId":"acct-1","kind":"story","text":"x"}`, wantCode: http.StatusBadRequest},
		{name: "terminated", body: `{"accountId":"acct-2","kind":"post","text":"x"}`, wantCode: http.StatusForbidden},
		{name: "unknown account", body: `{"accountId":"ghost","kind":"post","text":"x"}`, wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Submit(rec, httptest.NewRequest(http.MethodPost, "/v1/submissions", strings.NewReader(tt.body)))
			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				return
			}
			var got struct {
				Accepted   bool   `json:"accepted"`
				Reason     string `json:"reason"`
				Punishment *struct {
					Action string `json:"action"`
				} `json:"punishment"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.False(t, got.Accepted)
			assert.Equal(t, ReasonPostRemoved, got.Reason)
			require.NotNil(t, got.Punishment)
			assert.Equal(t, "warning", got.Punishment.Action)
		})
	}
}
