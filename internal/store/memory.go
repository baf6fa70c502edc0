// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

const defaultListLimit = 100

// MemoryStore is an in-memory Store used by tests and the "memory" storage
// backend. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[int64]*Request
	results  map[int64]*AnalysisResult
	audit    []*AuditEntry

	nextRequestID int64
	nextResultID  int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[int64]*Request),
		results:  make(map[int64]*AnalysisResult),
	}
}

func (m *MemoryStore) Requests() RequestStore { return (*memoryRequests)(m) }
func (m *MemoryStore) Results() ResultStore   { return (*memoryResults)(m) }
func (m *MemoryStore) Audit() AuditStore      { return (*memoryAudit)(m) }
func (m *MemoryStore) Close() error           { return nil }

type memoryRequests MemoryStore

func (s *memoryRequests) Create(_ context.Context, r *Request) error {
	if r.InputText == "" {
		return lgerr.New(lgerr.CodeStoreInvalidInput, "request input text must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRequestID++
	r.ID = s.nextRequestID
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *memoryRequests) Get(_ context.Context, id int64) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, lgerr.Wrapf(ErrNotFound, lgerr.CodeStoreRequestNotFound, "request %d", id)
	}
	cp := *r
	return &cp, nil
}

type memoryResults MemoryStore

func (s *memoryResults) Create(_ context.Context, r *AnalysisResult) error {
	if r.RequestID == 0 {
		return lgerr.New(lgerr.CodeStoreInvalidInput, "result must reference a request")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextResultID++
	r.ID = s.nextResultID
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	cp := cloneResult(r)
	s.results[r.ID] = cp
	return nil
}

func (s *memoryResults) Get(_ context.Context, id int64) (*AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[id]
	if !ok {
		return nil, lgerr.Wrapf(ErrNotFound, lgerr.CodeStoreResultNotFound, "result %d", id)
	}
	return cloneResult(r), nil
}

func (s *memoryResults) Recent(_ context.Context, f ResultFilter) ([]*AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.filtered(f)
	sortNewestFirst(out)
	return capList(out, f.Limit), nil
}

func (s *memoryResults) HighScore(_ context.Context, minScore int, f ResultFilter) ([]*AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*AnalysisResult
	for _, r := range s.filtered(f) {
		if r.Score != nil && *r.Score >= minScore {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if *out[i].Score != *out[j].Score {
			return *out[i].Score > *out[j].Score
		}
		return out[i].ID > out[j].ID
	})
	return capList(out, f.Limit), nil
}

func (s *memoryResults) ByGroup(_ context.Context, group string, limit int) ([]*AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*AnalysisResult
	for _, r := range s.results {
		if r.Group == group {
			out = append(out, cloneResult(r))
		}
	}
	sortNewestFirst(out)
	return capList(out, limit), nil
}

func (s *memoryResults) NeedingReview(_ context.Context, f ResultFilter) ([]*AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.filtered(f)
	sortNewestFirst(all)

	// Validation failures first, then pending feedback, then reviewed.
	rank := func(r *AnalysisResult) int {
		switch {
		case r.ValidationStatus != ValidationStatusPass:
			return 0
		case r.Feedback == nil:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return rank(all[i]) < rank(all[j]) })
	return capList(all, f.Limit), nil
}

func (s *memoryResults) All(_ context.Context, f ResultFilter) ([]*AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.filtered(f)
	sortNewestFirst(out)
	if f.Limit > 0 {
		out = capList(out, f.Limit)
	}
	return out, nil
}

func (s *memoryResults) UpdateFeedback(_ context.Context, id int64, fb Feedback) (*AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.results[id]
	if !ok {
		return nil, lgerr.Wrapf(ErrNotFound, lgerr.CodeStoreResultNotFound, "result %d", id)
	}

	agree := fb.Agree
	ts := fb.Timestamp
	r.Feedback = &agree
	r.FeedbackComment = fb.Comment
	r.FeedbackBy = fb.Reviewer
	r.FeedbackAt = &ts

	return cloneResult(r), nil
}

// filtered returns cloned results matching f, unordered. Caller holds mu.
func (s *memoryResults) filtered(f ResultFilter) []*AnalysisResult {
	var out []*AnalysisResult
	for _, r := range s.results {
		if !matchFilter(r, f) {
			continue
		}
		out = append(out, cloneResult(r))
	}
	return out
}

func matchFilter(r *AnalysisResult, f ResultFilter) bool {
	if f.Groups != nil && !slices.Contains(f.Groups, r.Group) {
		return false
	}
	// Score-less conversational rows always pass the score cap.
	if f.MaxScore != nil && r.Score != nil && *r.Score > *f.MaxScore {
		return false
	}
	return true
}

func sortNewestFirst(rs []*AnalysisResult) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.After(rs[j].CreatedAt)
		}
		return rs[i].ID > rs[j].ID
	})
}

func capList(rs []*AnalysisResult, limit int) []*AnalysisResult {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(rs) > limit {
		rs = rs[:limit]
	}
	return rs
}

func cloneResult(r *AnalysisResult) *AnalysisResult {
	cp := *r
	cp.Categories = slices.Clone(r.Categories)
	cp.RiskFactors = slices.Clone(r.RiskFactors)
	cp.Trace.ToolCalls = slices.Clone(r.Trace.ToolCalls)
	cp.Trace.Repairs = slices.Clone(r.Trace.Repairs)
	if r.Score != nil {
		v := *r.Score
		cp.Score = &v
	}
	if r.Feedback != nil {
		v := *r.Feedback
		cp.Feedback = &v
	}
	if r.FeedbackAt != nil {
		v := *r.FeedbackAt
		cp.FeedbackAt = &v
	}
	return &cp
}

type memoryAudit MemoryStore

func (s *memoryAudit) Append(_ context.Context, entry *AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	s.audit = append(s.audit, &cp)
	return nil
}

func (s *memoryAudit) Recent(_ context.Context, limit int) ([]*AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = defaultListLimit
	}
	n := len(s.audit)
	if limit > n {
		limit = n
	}

	out := make([]*AuditEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		cp := *s.audit[i]
		out = append(out, &cp)
	}
	return out, nil
}
