// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

// Package analysis is the permissioned entry point of the pipeline. Every
// operation takes the calling principal and enforces RBAC capability checks
// and ABAC group visibility before touching stores; read paths additionally
// redact sensitive scores. Verification and scoring are delegated to the
// agent orchestrator, post-hoc checks to the validation pipeline.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerguard-dev/ledgerguard/internal/agent"
	"github.com/ledgerguard-dev/ledgerguard/internal/identity"
	"github.com/ledgerguard-dev/ledgerguard/internal/provider"
	"github.com/ledgerguard-dev/ledgerguard/internal/store"
	"github.com/ledgerguard-dev/ledgerguard/internal/validation"
	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

// CreateRequest is the caller-supplied payload for a new analysis request.
type CreateRequest struct {
	InputText   string
	Context     string
	Transaction *store.TransactionAttrs
	// Group is honored only for principals in the default group; everyone
	// else's requests are tagged with their own group.
	Group string
}

// Config holds Processor dependencies. Index and Embedder are optional; when
// either is nil the similar-case feature is disabled.
type Config struct {
	Requests     store.RequestStore
	Results      store.ResultStore
	Audit        store.AuditStore
	Index        store.CaseIndex
	Embedder     provider.Embedder
	Orchestrator *agent.Orchestrator
	Validator    *validation.Pipeline
	Redactor     identity.Redactor
	Now          func() time.Time // for testing
}

// Processor owns the full request lifecycle and all permissioned reads.
type Processor struct {
	requests store.RequestStore
	results  store.ResultStore
	audit    store.AuditStore
	index    store.CaseIndex
	embedder provider.Embedder
	orch     *agent.Orchestrator
	valid    *validation.Pipeline
	redactor identity.Redactor
	now      func() time.Time
}

// NewProcessor wires a Processor. Requests, Results and Orchestrator are
// required.
func NewProcessor(cfg Config) (*Processor, error) {
	if cfg.Requests == nil || cfg.Results == nil {
		return nil, lgerr.New(lgerr.CodeStoreInvalidInput, "processor requires request and result stores")
	}
	if cfg.Orchestrator == nil {
		return nil, lgerr.New(lgerr.CodeAgentRunInvalidInput, "processor requires an orchestrator")
	}
	valid := cfg.Validator
	if valid == nil {
		valid = validation.NewPipeline()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Processor{
		requests: cfg.Requests,
		results:  cfg.Results,
		audit:    cfg.Audit,
		index:    cfg.Index,
		embedder: cfg.Embedder,
		orch:     cfg.Orchestrator,
		valid:    valid,
		redactor: cfg.Redactor,
		now:      now,
	}, nil
}

// Process runs the full lifecycle: authorize, persist the request, run the
// verification loop, validate the verdict, persist the result. A request
// whose orchestration fails stays persisted without a result; that orphan is
// recoverable by re-running analysis. The result write is retried once.
func (p *Processor) Process(ctx context.Context, principal identity.Principal, in CreateRequest, mode store.Mode) (*store.Request, *store.AnalysisResult, error) {
	if err := identity.Check(principal, identity.CapabilityAnalyze); err != nil {
		p.auditEvent(ctx, principal, "analysis.denied", 0, 0, "denied", map[string]any{
			"capability": string(identity.CapabilityAnalyze),
		})
		return nil, nil, err
	}
	if strings.TrimSpace(in.InputText) == "" {
		return nil, nil, lgerr.New(lgerr.CodeStoreInvalidInput, "request input text is empty")
	}
	if mode == "" {
		mode = store.ModeAnalysis
	}
	if !mode.Valid() {
		return nil, nil, lgerr.Errorf(lgerr.CodeStoreInvalidInput, "unknown mode %q", mode)
	}

	request := &store.Request{
		InputText:   in.InputText,
		Context:     in.Context,
		Transaction: in.Transaction,
		Group:       identity.RequestGroup(principal, in.Group),
		CreatedBy:   principal.ID,
		CreatedAt:   p.now().UTC(),
	}
	if err := p.requests.Create(ctx, request); err != nil {
		return nil, nil, lgerr.Wrap(err, lgerr.CodeStoreDatabaseFailure, "persisting request")
	}
	slog.Info("request created",
		"request_id", request.ID,
		"group", request.Group,
		"principal", principal.ID,
	)

	runRes, err := p.orch.Run(ctx, agent.RunInput{
		Input:   request.InputText,
		Context: mergeContext(request),
		Mode:    mode,
	})
	if err != nil {
		p.auditEvent(ctx, principal, "analysis.process", request.ID, 0, "error", map[string]any{
			"error": err.Error(),
		})
		return request, nil, err
	}

	verdict := runRes.Verdict
	summary := verdict.Summary
	if used := toolNames(runRes.Trace.ToolCalls); len(used) > 0 {
		summary += fmt.Sprintf("\n\n[Tools used: %s]", strings.Join(used, ", "))
	}

	vres := p.valid.Run(validation.Input{
		Mode:       mode,
		Summary:    summary,
		Score:      verdict.Score,
		RiskLevel:  verdict.RiskLevel,
		Categories: verdict.Categories,
		Factors:    verdict.RiskFactors,
	})
	if !vres.Passed() {
		slog.Warn("validation failed",
			"request_id", request.ID,
			"status", vres.Status,
			"details", vres.Details,
		)
	}

	result := &store.AnalysisResult{
		RequestID:         request.ID,
		Mode:              mode,
		Score:             verdict.Score,
		Categories:        verdict.Categories,
		RiskLevel:         verdict.RiskLevel,
		RiskFactors:       verdict.RiskFactors,
		Summary:           summary,
		ModelVersion:      runRes.ModelVersion,
		Group:             request.Group,
		AnalyzedBy:        principal.ID,
		Trace:             runRes.Trace,
		ValidationStatus:  vres.Status,
		ValidationDetails: vres.Details,
		CreatedAt:         p.now().UTC(),
	}
	if err := p.results.Create(ctx, result); err != nil {
		// One retry; the run already cost a model round-trip.
		if err = p.results.Create(ctx, result); err != nil {
			return request, nil, lgerr.Wrap(err, lgerr.CodeStoreDatabaseFailure, "persisting analysis result",
				lgerr.FieldRequestID(request.ID))
		}
	}

	p.embedCase(ctx, request, result)
	p.auditEvent(ctx, principal, "analysis.process", request.ID, result.ID, "ok", map[string]any{
		"mode":       string(mode),
		"state":      runRes.State,
		"iterations": runRes.Iterations,
		"validation": vres.Status,
	})

	slog.Info("analysis result stored",
		"request_id", request.ID,
		"result_id", result.ID,
		"group", result.Group,
		"validation", vres.Status,
	)
	return request, result, nil
}

// mergeContext folds the structured transaction attributes into the free
// text context handed to the orchestrator.
func mergeContext(r *store.Request) string {
	if r.Transaction == nil {
		return r.Context
	}
	t := r.Transaction
	attrs := fmt.Sprintf("Transaction attributes: amount=%.2f %s, sender=%q, receiver=%q",
		t.Amount, t.Currency, t.SenderID, t.ReceiverID)
	if r.Context == "" {
		return attrs
	}
	return r.Context + "\n" + attrs
}

// toolNames returns the unique tool names in first-use order.
func toolNames(calls []store.ToolCallRecord) []string {
	seen := make(map[string]bool, len(calls))
	var names []string
	for _, c := range calls {
		if !seen[c.Name] {
			seen[c.Name] = true
			names = append(names, c.Name)
		}
	}
	return names
}

// embedCase stores the request in the similar-case index, best-effort.
func (p *Processor) embedCase(ctx context.Context, request *store.Request, result *store.AnalysisResult) {
	if p.index == nil || p.embedder == nil {
		return
	}
	vec, err := p.embedder.Embed(ctx, request.InputText)
	if err != nil {
		slog.Warn("case embedding failed", "result_id", result.ID, "error", err)
		return
	}
	meta := map[string]any{
		"group":      result.Group,
		"mode":       string(result.Mode),
		"risk_level": string(result.RiskLevel),
	}
	if result.Score != nil {
		meta["score"] = *result.Score
	}
	if err := p.index.Store(ctx, result.ID, vec, meta); err != nil {
		slog.Warn("case index write failed", "result_id", result.ID, "error", err)
	}
}

// readFilter builds the ABAC restriction for list reads: group visibility
// only. Redaction, not exclusion, handles sensitive scores on these paths.
func readFilter(principal identity.Principal, limit int) store.ResultFilter {
	return store.ResultFilter{
		Groups: identity.VisibleGroups(principal),
		Limit:  limit,
	}
}

// statsFilter additionally excludes rows above the caller's score ceiling:
// aggregate counts would otherwise reveal what redaction hides.
func (p *Processor) statsFilter(principal identity.Principal, limit int) store.ResultFilter {
	f := readFilter(principal, limit)
	if !principal.HasCapability(identity.CapabilityViewSensitive) {
		max := p.redactor.MaxVisibleScore(principal)
		f.MaxScore = &max
	}
	return f
}

func (p *Processor) redactAll(principal identity.Principal, results []*store.AnalysisResult) []*store.AnalysisResult {
	for _, r := range results {
		p.redactor.Redact(principal, r)
	}
	return results
}

// Recent returns the newest visible results, redacted per caller.
func (p *Processor) Recent(ctx context.Context, principal identity.Principal, limit int) ([]*store.AnalysisResult, error) {
	if err := identity.Check(principal, identity.CapabilityView); err != nil {
		return nil, err
	}
	results, err := p.results.Recent(ctx, readFilter(principal, limit))
	if err != nil {
		return nil, err
	}
	return p.redactAll(principal, results), nil
}

// HighScore returns visible results at or above minScore, highest first.
// When the floor exceeds the caller's visible ceiling the answer is empty:
// every qualifying row would be fully redacted anyway.
func (p *Processor) HighScore(ctx context.Context, principal identity.Principal, minScore, limit int) ([]*store.AnalysisResult, error) {
	if err := identity.Check(principal, identity.CapabilityView); err != nil {
		return nil, err
	}
	if minScore > p.redactor.MaxVisibleScore(principal) {
		return []*store.AnalysisResult{}, nil
	}
	results, err := p.results.HighScore(ctx, minScore, readFilter(principal, limit))
	if err != nil {
		return nil, err
	}
	return p.redactAll(principal, results), nil
}

// ByGroup returns a named group's results. Unlike the fuzzy list reads this
// is an explicit group request, so inaccessible groups fail closed instead
// of silently returning nothing.
func (p *Processor) ByGroup(ctx context.Context, principal identity.Principal, group string, limit int) ([]*store.AnalysisResult, error) {
	if err := identity.Check(principal, identity.CapabilityView); err != nil {
		return nil, err
	}
	if err := identity.CheckGroup(principal, group); err != nil {
		p.auditEvent(ctx, principal, "analysis.denied", 0, 0, "denied", map[string]any{
			"group": group,
		})
		return nil, err
	}
	results, err := p.results.ByGroup(ctx, group, limit)
	if err != nil {
		return nil, err
	}
	return p.redactAll(principal, results), nil
}

// GetRequest returns one request if its group is visible to the caller.
func (p *Processor) GetRequest(ctx context.Context, principal identity.Principal, id int64) (*store.Request, error) {
	if err := identity.Check(principal, identity.CapabilityView); err != nil {
		return nil, err
	}
	request, err := p.requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := identity.CheckGroup(principal, request.Group); err != nil {
		return nil, err
	}
	return request, nil
}

// NeedingReview returns visible results prioritized for the human review
// queue: validation failures, then pending feedback, then reviewed.
func (p *Processor) NeedingReview(ctx context.Context, principal identity.Principal, limit int) ([]*store.AnalysisResult, error) {
	if err := identity.Check(principal, identity.CapabilityView); err != nil {
		return nil, err
	}
	results, err := p.results.NeedingReview(ctx, readFilter(principal, limit))
	if err != nil {
		return nil, err
	}
	return p.redactAll(principal, results), nil
}

// SubmitFeedback records the caller's binary verdict assessment. Only the
// feedback fields mutate; everything else on the result is immutable.
func (p *Processor) SubmitFeedback(ctx context.Context, principal identity.Principal, resultID int64, agree bool, comment string) (*store.AnalysisResult, error) {
	if err := identity.Check(principal, identity.CapabilityView); err != nil {
		return nil, err
	}
	existing, err := p.results.Get(ctx, resultID)
	if err != nil {
		return nil, err
	}
	if err := identity.CheckGroup(principal, existing.Group); err != nil {
		p.auditEvent(ctx, principal, "analysis.denied", existing.RequestID, resultID, "denied", map[string]any{
			"group": existing.Group,
		})
		return nil, err
	}

	updated, err := p.results.UpdateFeedback(ctx, resultID, store.Feedback{
		Agree:     agree,
		Comment:   comment,
		Reviewer:  principal.ID,
		Timestamp: p.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	p.auditEvent(ctx, principal, "analysis.feedback", updated.RequestID, resultID, "ok", map[string]any{
		"agree": agree,
	})
	p.redactor.Redact(principal, updated)
	return updated, nil
}

// FeedbackStats aggregates the feedback loop over results the caller may
// count. Exposes validation failure breakdown for model quality monitoring.
func (p *Processor) FeedbackStats(ctx context.Context, principal identity.Principal) (*store.FeedbackStats, error) {
	if err := identity.Check(principal, identity.CapabilityView); err != nil {
		return nil, err
	}
	results, err := p.results.All(ctx, p.statsFilter(principal, 0))
	if err != nil {
		return nil, err
	}

	stats := &store.FeedbackStats{
		TotalResults:       len(results),
		ValidationFailures: map[string]int{},
	}
	for _, r := range results {
		if r.Feedback != nil {
			stats.WithFeedback++
			if *r.Feedback {
				stats.PositiveFeedback++
			} else {
				stats.NegativeFeedback++
			}
		}
		if r.ValidationStatus != "" && r.ValidationStatus != store.ValidationStatusPass {
			stats.ValidationFailures[r.ValidationStatus]++
		}
	}
	stats.PendingFeedback = stats.TotalResults - stats.WithFeedback
	if stats.TotalResults > 0 {
		stats.FeedbackRate = float64(stats.WithFeedback) / float64(stats.TotalResults)
	}
	if stats.WithFeedback > 0 {
		acc := float64(stats.PositiveFeedback) / float64(stats.WithFeedback)
		stats.AccuracyEstimate = &acc
	}
	return stats, nil
}

// dashboardWindow caps how many recent results feed the dashboard numbers.
const dashboardWindow = 100

// DashboardStats summarizes recent visible results.
func (p *Processor) DashboardStats(ctx context.Context, principal identity.Principal) (*store.DashboardStats, error) {
	if err := identity.Check(principal, identity.CapabilityView); err != nil {
		return nil, err
	}
	results, err := p.results.Recent(ctx, p.statsFilter(principal, dashboardWindow))
	if err != nil {
		return nil, err
	}

	stats := &store.DashboardStats{TotalAnalyzed: len(results)}
	groups := make(map[string]bool)
	var scoreSum, scored int
	for _, r := range results {
		groups[r.Group] = true
		if r.Score == nil {
			stats.ChatCount++
			continue
		}
		scored++
		scoreSum += *r.Score
		if *r.Score >= 50 {
			stats.HighScoreCount++
		}
		if *r.Score >= 76 {
			stats.CriticalCount++
		}
	}
	if scored > 0 {
		stats.AverageScore = float64(scoreSum) / float64(scored)
	}
	for g := range groups {
		stats.GroupsVisible = append(stats.GroupsVisible, g)
	}
	sort.Strings(stats.GroupsVisible)
	return stats, nil
}

// SimilarCases embeds the query text and returns the nearest indexed cases
// the caller may see. Returns empty when the index is disabled.
func (p *Processor) SimilarCases(ctx context.Context, principal identity.Principal, query string, k int) ([]store.CaseMatch, error) {
	if err := identity.Check(principal, identity.CapabilityView); err != nil {
		return nil, err
	}
	if p.index == nil || p.embedder == nil {
		return []store.CaseMatch{}, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, lgerr.New(lgerr.CodeStoreInvalidInput, "similar-case query is empty")
	}
	if k <= 0 {
		k = 5
	}

	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	// Over-fetch so group filtering still fills k.
	matches, err := p.index.Search(ctx, vec, k*4)
	if err != nil {
		return nil, err
	}

	visible := make([]store.CaseMatch, 0, k)
	for _, m := range matches {
		group, _ := m.Metadata["group"].(string)
		if !identity.Visible(principal, group) {
			continue
		}
		visible = append(visible, m)
		if len(visible) == k {
			break
		}
	}
	return visible, nil
}

// auditEvent appends a processor audit entry, best-effort.
func (p *Processor) auditEvent(ctx context.Context, principal identity.Principal, action string, requestID, resultID int64, outcome string, details map[string]any) {
	if p.audit == nil {
		return
	}
	entry := &store.AuditEntry{
		ID:        uuid.New().String(),
		Timestamp: p.now().UTC(),
		Action:    action,
		Actor:     principal.ID,
		Group:     principal.Group,
		RequestID: requestID,
		ResultID:  resultID,
		Details:   details,
		Result:    outcome,
	}
	if err := p.audit.Append(ctx, entry); err != nil {
		slog.Warn("audit append failed", "action", action, "error", err)
	}
}
