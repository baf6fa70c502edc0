// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package store

import (
	"time"
)

// Mode selects the orchestration style for a run.
type Mode string

const (
	// ModeAnalysis is the scoring mode: the verdict carries a numeric score,
	// categories, risk level and risk factors.
	ModeAnalysis Mode = "analysis"
	// ModeConversational is free-text chat: score and risk fields are always
	// empty regardless of what the model returns. Chat turns are never
	// adjudications.
	ModeConversational Mode = "conversational"
)

// Valid reports whether the mode is a known orchestration mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeAnalysis, ModeConversational:
		return true
	default:
		return false
	}
}

// RiskLevel is the four-value risk classification of an analysis verdict.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// Valid reports whether the level is one of the four fixed values.
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical:
		return true
	default:
		return false
	}
}

// Band returns the inclusive score range for the level.
func (l RiskLevel) Band() (min, max int) {
	switch l {
	case RiskLevelLow:
		return 0, 25
	case RiskLevelMedium:
		return 26, 50
	case RiskLevelHigh:
		return 51, 75
	case RiskLevelCritical:
		return 76, 100
	default:
		return 0, 0
	}
}

// RiskLevelForScore returns the level whose band contains score.
// Scores outside [0,100] are clamped into the nearest band.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score <= 25:
		return RiskLevelLow
	case score <= 50:
		return RiskLevelMedium
	case score <= 75:
		return RiskLevelHigh
	default:
		return RiskLevelCritical
	}
}

// TransactionAttrs are the optional structured attributes of a request.
type TransactionAttrs struct {
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	SenderID   string  `json:"sender_id"`
	ReceiverID string  `json:"receiver_id"`
}

// Request is a caller submission. Immutable once created.
type Request struct {
	ID          int64
	InputText   string
	Context     string
	Transaction *TransactionAttrs
	Group       string
	CreatedBy   string
	CreatedAt   time.Time
}

// ToolCallRecord is one entry in a run's tool trace. Append-only within a
// run; immutable after the run terminates. Seq is shared with repair
// records, giving a single ordering across both.
type ToolCallRecord struct {
	Seq       int    `json:"seq"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Result    string `json:"result"`
	Status    string `json:"status"`
}

// RepairRecord marks a rejected verdict and the corrective reprompt that
// followed it. Seq is shared with tool-call records.
type RepairRecord struct {
	Seq       int    `json:"seq"`
	Iteration int    `json:"iteration"`
	Reason    string `json:"reason"`
}

// RunTrace is the ordered record of one orchestration run.
type RunTrace struct {
	RunID       string           `json:"run_id"`
	Mode        Mode             `json:"mode"`
	Model       string           `json:"model"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
	Iterations  int              `json:"iterations"`
	State       string           `json:"state"`
	ToolCalls   []ToolCallRecord `json:"tool_calls"`
	Repairs     []RepairRecord   `json:"repairs"`
}

// ValidationStatusPass marks a result whose verdict cleared every check.
const ValidationStatusPass = "PASS"

// AnalysisResult is the persisted projection of a verdict plus its
// validation outcome. Feedback fields are mutable via the feedback path;
// everything else is written once.
type AnalysisResult struct {
	ID        int64
	RequestID int64
	Mode      Mode

	// Score is present only in analysis mode.
	Score       *int
	Categories  []string
	RiskLevel   RiskLevel
	RiskFactors []string
	Summary     string

	ModelVersion string
	Group        string
	AnalyzedBy   string

	Trace RunTrace

	ValidationStatus  string
	ValidationDetails string

	// Feedback is the human verdict: true = correct, false = incorrect,
	// nil = pending review.
	Feedback        *bool
	FeedbackComment string
	FeedbackBy      string
	FeedbackAt      *time.Time

	CreatedAt time.Time

	// Redacted is set on read when sensitive score detail was replaced by a
	// coarse bucket for the caller. Never persisted.
	Redacted bool
}

// Feedback is the mutable reviewer payload applied to an existing result.
type Feedback struct {
	Agree     bool
	Comment   string
	Reviewer  string
	Timestamp time.Time
}

// ResultFilter restricts read queries to what a caller may see.
// A nil Groups slice means no group restriction; MaxScore excludes analysis
// results scoring strictly above it (score-less conversational rows always
// pass); a zero Limit falls back to the store default.
type ResultFilter struct {
	Groups   []string
	MaxScore *int
	Limit    int
}

// AuditEntry records one processor-level event for the audit log.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	Action    string
	Actor     string
	Group     string
	RequestID int64
	ResultID  int64
	Details   map[string]any
	Result    string
}

// FeedbackStats summarizes the human feedback loop over visible results.
type FeedbackStats struct {
	TotalResults       int
	WithFeedback       int
	PositiveFeedback   int
	NegativeFeedback   int
	PendingFeedback    int
	FeedbackRate       float64
	AccuracyEstimate   *float64
	ValidationFailures map[string]int
}

// DashboardStats summarizes recent visible results.
type DashboardStats struct {
	TotalAnalyzed  int
	ChatCount      int
	HighScoreCount int
	CriticalCount  int
	AverageScore   float64
	GroupsVisible  []string
}

// CaseMatch is one similar-case hit from the case index.
type CaseMatch struct {
	ResultID int64
	Distance float64
	Metadata map[string]any
}
