// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package sqlite_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerguard-dev/ledgerguard/internal/store"
	"github.com/ledgerguard-dev/ledgerguard/internal/store/sqlite"
)

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "ledgerguard-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, name+".db")
}

func testStore(t *testing.T, name string) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(testDBPath(t, name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func iptr(v int) *int { return &v }

func seedResult(t *testing.T, s *sqlite.Store, group string, score *int, createdAt time.Time) *store.AnalysisResult {
	t.Helper()
	ctx := context.Background()

	req := &store.Request{InputText: "seed", Group: group, CreatedAt: createdAt}
	require.NoError(t, s.Requests().Create(ctx, req))

	level := store.RiskLevel("")
	mode := store.ModeConversational
	if score != nil {
		level = store.RiskLevelForScore(*score)
		mode = store.ModeAnalysis
	}
	res := &store.AnalysisResult{
		RequestID:        req.ID,
		Mode:             mode,
		Score:            score,
		Categories:       []string{"FRAUD"},
		RiskLevel:        level,
		RiskFactors:      []string{"seeded"},
		Summary:          "seeded result",
		Group:            group,
		ValidationStatus: store.ValidationStatusPass,
		CreatedAt:        createdAt,
	}
	require.NoError(t, s.Results().Create(ctx, res))
	return res
}

func TestRequestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, "requests")

	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	req := &store.Request{
		InputText: "Wire transfer review",
		Context:   "flagged by upstream monitoring",
		Transaction: &store.TransactionAttrs{
			Amount: 9500, Currency: "USD", SenderID: "ACC-1", ReceiverID: "ACC-2",
		},
		Group:     "fraud-team",
		CreatedBy: "u-analyst",
		CreatedAt: created,
	}
	require.NoError(t, s.Requests().Create(ctx, req))
	require.NotZero(t, req.ID)

	got, err := s.Requests().Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "Wire transfer review", got.InputText)
	assert.Equal(t, "fraud-team", got.Group)
	require.NotNil(t, got.Transaction)
	assert.Equal(t, 9500.0, got.Transaction.Amount)
	assert.Equal(t, "USD", got.Transaction.Currency)
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestRequestStore_GetMissing(t *testing.T) {
	s := testStore(t, "requests-missing")

	_, err := s.Requests().Get(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestResultStore_RoundTripPreservesTrace(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, "results")

	req := &store.Request{InputText: "x", Group: "fraud-team", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.Requests().Create(ctx, req))

	res := &store.AnalysisResult{
		RequestID:   req.ID,
		Mode:        store.ModeAnalysis,
		Score:       iptr(82),
		Categories:  []string{"SANCTIONS"},
		RiskLevel:   store.RiskLevelCritical,
		RiskFactors: []string{"exact watchlist match"},
		Summary:     "Blocked pending compliance review.",
		Group:       "fraud-team",
		Trace: store.RunTrace{
			RunID:      "run-1",
			Mode:       store.ModeAnalysis,
			Model:      "scripted-v1",
			Iterations: 2,
			State:      "TERMINAL_SUCCESS",
			ToolCalls: []store.ToolCallRecord{
				{Seq: 0, Name: "check_sanctions_list", Arguments: `{"name":"x"}`, Result: `{"match":true}`, Status: "ok"},
			},
		},
		ValidationStatus: store.ValidationStatusPass,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, s.Results().Create(ctx, res))

	got, err := s.Results().Get(ctx, res.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Score)
	assert.Equal(t, 82, *got.Score)
	assert.Equal(t, store.RiskLevelCritical, got.RiskLevel)
	assert.Equal(t, []string{"SANCTIONS"}, got.Categories)
	require.Len(t, got.Trace.ToolCalls, 1)
	assert.Equal(t, "check_sanctions_list", got.Trace.ToolCalls[0].Name)
	assert.Equal(t, "TERMINAL_SUCCESS", got.Trace.State)
	assert.Nil(t, got.Feedback)
}

func TestResultStore_RecentFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, "recent")

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	old := seedResult(t, s, "fraud-team", iptr(30), base)
	newer := seedResult(t, s, "fraud-team", iptr(60), base.Add(time.Hour))
	seedResult(t, s, "aml-team", iptr(40), base.Add(2*time.Hour))

	results, err := s.Results().Recent(ctx, store.ResultFilter{Groups: []string{"fraud-team"}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, newer.ID, results[0].ID, "newest first")
	assert.Equal(t, old.ID, results[1].ID)
}

func TestResultStore_MaxScoreKeepsScorelessRows(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, "maxscore")

	now := time.Now().UTC()
	low := seedResult(t, s, "fraud-team", iptr(40), now)
	seedResult(t, s, "fraud-team", iptr(90), now.Add(time.Second))
	chat := seedResult(t, s, "fraud-team", nil, now.Add(2*time.Second))

	max := 70
	results, err := s.Results().Recent(ctx, store.ResultFilter{MaxScore: &max})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, chat.ID, results[0].ID, "score-less rows pass the cap")
	assert.Equal(t, low.ID, results[1].ID)
}

func TestResultStore_HighScore(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, "highscore")

	now := time.Now().UTC()
	seedResult(t, s, "fraud-team", iptr(30), now)
	mid := seedResult(t, s, "fraud-team", iptr(65), now.Add(time.Second))
	top := seedResult(t, s, "fraud-team", iptr(90), now.Add(2*time.Second))
	seedResult(t, s, "fraud-team", nil, now.Add(3*time.Second))

	results, err := s.Results().HighScore(ctx, 50, store.ResultFilter{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, top.ID, results[0].ID, "highest score first")
	assert.Equal(t, mid.ID, results[1].ID)
}

func TestResultStore_ByGroup(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, "bygroup")

	now := time.Now().UTC()
	seedResult(t, s, "fraud-team", iptr(30), now)
	foreign := seedResult(t, s, "aml-team", iptr(40), now)

	results, err := s.Results().ByGroup(ctx, "aml-team", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, foreign.ID, results[0].ID)
}

func TestResultStore_NeedingReviewOrdering(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, "review")

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	reviewed := seedResult(t, s, "fraud-team", iptr(30), base)
	_, err := s.Results().UpdateFeedback(ctx, reviewed.ID, store.Feedback{
		Agree: true, Reviewer: "u-senior", Timestamp: base.Add(time.Minute),
	})
	require.NoError(t, err)

	pending := seedResult(t, s, "fraud-team", iptr(35), base.Add(time.Hour))

	req := &store.Request{InputText: "x", Group: "fraud-team", CreatedAt: base}
	require.NoError(t, s.Requests().Create(ctx, req))
	failed := &store.AnalysisResult{
		RequestID: req.ID, Mode: store.ModeAnalysis, Score: iptr(60),
		RiskLevel: store.RiskLevelHigh, Summary: "short",
		Group: "fraud-team", ValidationStatus: "LOW_QUALITY",
		CreatedAt: base.Add(2 * time.Hour),
	}
	require.NoError(t, s.Results().Create(ctx, failed))

	results, err := s.Results().NeedingReview(ctx, store.ResultFilter{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, failed.ID, results[0].ID, "validation failures first")
	assert.Equal(t, pending.ID, results[1].ID, "then pending feedback")
	assert.Equal(t, reviewed.ID, results[2].ID, "reviewed rows last")
}

func TestResultStore_UpdateFeedback(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, "feedback")

	res := seedResult(t, s, "fraud-team", iptr(40), time.Now().UTC())
	at := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	updated, err := s.Results().UpdateFeedback(ctx, res.ID, store.Feedback{
		Agree: false, Comment: "score inflated", Reviewer: "u-senior", Timestamp: at,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Feedback)
	assert.False(t, *updated.Feedback)
	assert.Equal(t, "score inflated", updated.FeedbackComment)
	assert.Equal(t, "u-senior", updated.FeedbackBy)
	require.NotNil(t, updated.FeedbackAt)
	assert.True(t, updated.FeedbackAt.Equal(at))
	assert.Equal(t, "seeded result", updated.Summary, "non-feedback fields untouched")
}

func TestResultStore_UpdateFeedbackMissing(t *testing.T) {
	s := testStore(t, "feedback-missing")

	_, err := s.Results().UpdateFeedback(context.Background(), 99, store.Feedback{Agree: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestResultStore_AllUnbounded(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, "all")

	now := time.Now().UTC()
	for i := 0; i < 120; i++ {
		seedResult(t, s, "fraud-team", iptr(10), now.Add(time.Duration(i)*time.Second))
	}

	results, err := s.Results().All(ctx, store.ResultFilter{})
	require.NoError(t, err)
	assert.Len(t, results, 120, "All ignores the default list limit")

	capped, err := s.Results().Recent(ctx, store.ResultFilter{})
	require.NoError(t, err)
	assert.Len(t, capped, 100, "Recent caps at the default limit")
}

func TestAuditStore_AppendAndRecent(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, "audit")

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i, action := range []string{"analysis.process", "analysis.feedback"} {
		err := s.Audit().Append(ctx, &store.AuditEntry{
			ID:        []string{"a-1", "a-2"}[i],
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Action:    action,
			Actor:     "u-analyst",
			Group:     "fraud-team",
			RequestID: 1,
			Details:   map[string]any{"mode": "analysis"},
			Result:    "ok",
		})
		require.NoError(t, err)
	}

	entries, err := s.Audit().Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "analysis.feedback", entries[0].Action, "newest first")
	assert.Equal(t, "analysis.process", entries[1].Action)
	assert.Equal(t, "analysis", entries[1].Details["mode"])
}
