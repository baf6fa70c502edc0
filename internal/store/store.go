// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

// Package store defines the persistence boundary: requests, analysis
// results, the audit log and the similar-case index. The engine behind the
// interfaces is treated as an ACID key-indexed store; group and timestamp
// fields are indexed for the processor's read paths.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is the sentinel wrapped by backends when a row is absent.
var ErrNotFound = errors.New("not found")

// RequestStore persists caller requests.
type RequestStore interface {
	// Create persists r and assigns its integer ID.
	Create(ctx context.Context, r *Request) error
	Get(ctx context.Context, id int64) (*Request, error)
}

// ResultStore persists analysis results and serves the filtered read paths.
type ResultStore interface {
	// Create persists r and assigns its integer ID.
	Create(ctx context.Context, r *AnalysisResult) error
	Get(ctx context.Context, id int64) (*AnalysisResult, error)

	// Recent returns results newest-first within the filter.
	Recent(ctx context.Context, f ResultFilter) ([]*AnalysisResult, error)
	// HighScore returns analysis results with score >= minScore,
	// highest-scoring first, within the filter.
	HighScore(ctx context.Context, minScore int, f ResultFilter) ([]*AnalysisResult, error)
	// ByGroup returns results for one group newest-first.
	ByGroup(ctx context.Context, group string, limit int) ([]*AnalysisResult, error)
	// NeedingReview returns results prioritized for human review:
	// validation failures first, then pending feedback, then reviewed.
	NeedingReview(ctx context.Context, f ResultFilter) ([]*AnalysisResult, error)
	// All returns every result within the filter (stats paths).
	All(ctx context.Context, f ResultFilter) ([]*AnalysisResult, error)

	// UpdateFeedback mutates only the feedback fields of an existing result.
	UpdateFeedback(ctx context.Context, id int64, fb Feedback) (*AnalysisResult, error)
}

// AuditStore is the append-only processor audit log.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
	Recent(ctx context.Context, limit int) ([]*AuditEntry, error)
}

// CaseIndex is the vector index over past analysis results used for
// similar-case retrieval.
type CaseIndex interface {
	Store(ctx context.Context, resultID int64, embedding []float32, metadata map[string]any) error
	Search(ctx context.Context, query []float32, k int) ([]CaseMatch, error)
	Close() error
}

// Store bundles the sub-stores behind one durability boundary.
type Store interface {
	Requests() RequestStore
	Results() ResultStore
	Audit() AuditStore
	Close() error
}
