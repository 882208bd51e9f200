package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/loop-safety/internal/moderation"
	"github.com/wolfman30/loop-safety/pkg/logging"
)

var auditColumns = []string{
	"id", "account_id", "kind", "status", "score", "reason", "path",
	"hate_confidence", "hate_category", "sentiment_label", "keywords", "image_ref", "created_at",
}

func TestAuditService_RecordDecision(t *testing.T) {
	decidedAt := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		decision moderation.Decision
		keywords any
	}{
		{
			name: "removed post with keywords",
			decision: moderation.Decision{
				AccountID:      "acct-1",
				Kind:           "post",
				Status:         moderation.StatusRemoved,
				Score:          0,
				Reason:         "Hate speech detected (racial)",
				Path:           moderation.PathVeto,
				HateConfidence: 95,
				HateCategory:   "racial",
				SentimentLabel: "negative",
				Keywords:       []string{"hate", "awful"},
				DecidedAt:      decidedAt,
			},
			keywords: pq.Array([]string{"hate", "awful"}),
		},
		{
			name: "approved api call without account",
			decision: moderation.Decision{
				Status:         moderation.StatusApproved,
				Score:          92.5,
				Path:           moderation.PathGenerative,
				SentimentLabel: "positive",
				DecidedAt:      decidedAt,
			},
			keywords: pq.Array([]string{}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectExec("INSERT INTO moderation_audit").
				WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), string(tt.decision.Status), tt.decision.Score,
					sqlmock.AnyArg(), string(tt.decision.Path), tt.decision.HateConfidence, sqlmock.AnyArg(),
					tt.decision.SentimentLabel, tt.keywords, sqlmock.AnyArg(), decidedAt).
				WillReturnResult(sqlmock.NewResult(1, 1))

			err = NewAuditService(db).RecordDecision(context.Background(), tt.decision)
			assert.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAuditService_RecordDecisionError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO moderation_audit").WillReturnError(errors.New("connection reset"))

	err = NewAuditService(db).RecordDecision(context.Background(), moderation.Decision{Status: moderation.StatusFlagged})
	assert.Error(t, err)
}

func TestAuditService_QueryFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(auditColumns).
		AddRow(int64(7), "acct-1", "comment", "removed", 12.5, "Multiple policy violations detected", "fallback",
			60, nil, "negative", "{hate,awful}", nil, created)

	mock.ExpectQuery(`FROM moderation_audit WHERE 1=1 AND account_id = \$1 AND status = \$2 ORDER BY created_at DESC LIMIT 20`).
		WithArgs("acct-1", "removed").
		WillReturnRows(rows)

	entries, err := NewAuditService(db).Query(context.Background(), Filter{AccountID: "acct-1", Status: "removed", Limit: 20})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(7), entries[0].ID)
	assert.Equal(t, []string{"hate", "awful"}, entries[0].Keywords)
	assert.Empty(t, entries[0].HateCategory)
	assert.InDelta(t, 12.5, entries[0].Score, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM moderation_audit").
		WillReturnRows(sqlmock.NewRows(auditColumns))

	h := NewHandler(NewAuditService(db), logging.Discard())

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/admin/moderation/audit", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string][]Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body["entries"])

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/admin/moderation/audit?since=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
