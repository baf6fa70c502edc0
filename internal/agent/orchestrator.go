// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

// Package agent runs the bounded verification loop: the model is shown the
// request and a tool catalog, tool calls are dispatched, and the loop ends
// in one of three terminal states. The model is untrusted input; every
// protocol breach is either repaired, absorbed into a conservative fallback,
// or surfaced as an error. The loop never spins unbounded.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerguard-dev/ledgerguard/internal/provider"
	"github.com/ledgerguard-dev/ledgerguard/internal/store"
	"github.com/ledgerguard-dev/ledgerguard/internal/tools"
	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

// Run states. The two AWAITING/DISPATCH states are transient; a run always
// ends in exactly one of the three terminal states.
const (
	StateAwaitingModel    = "AWAITING_MODEL"
	StateToolDispatch     = "TOOL_DISPATCH"
	StateTerminalSuccess  = "TERMINAL_SUCCESS"
	StateTerminalFallback = "TERMINAL_FALLBACK"
	StateTerminalError    = "TERMINAL_ERROR"
)

// DefaultMaxIterations bounds the model-call loop. Each model turn consumes
// one iteration, whether it dispatched tools, produced a verdict, or needed
// a repair.
const DefaultMaxIterations = 8

// DefaultCallTimeout bounds a single model call including streaming.
const DefaultCallTimeout = 120 * time.Second

// RunInput describes one orchestration request.
type RunInput struct {
	Input   string
	Context string
	Mode    store.Mode
}

// RunResult is the terminal outcome of a run. State is always one of the
// TERMINAL_* values and the trace is complete and immutable.
type RunResult struct {
	RunID        string
	Verdict      *Verdict
	Trace        store.RunTrace
	State        string
	Iterations   int
	ModelVersion string
	Usage        *provider.Usage
}

// Config holds Orchestrator dependencies.
type Config struct {
	Provider      provider.Provider
	Registry      *tools.Registry
	MaxIterations int
	CallTimeout   time.Duration
	Retry         *provider.RetryPolicy
	Temperature   *float32
	MaxTokens     int
	Now           func() time.Time // for testing
}

// Orchestrator drives the verification loop. Safe for concurrent use; all
// per-run state lives on the stack of Run.
type Orchestrator struct {
	prov          provider.Provider
	registry      *tools.Registry
	maxIterations int
	callTimeout   time.Duration
	retry         *provider.RetryPolicy
	temperature   *float32
	maxTokens     int
	now           func() time.Time
}

// New creates an Orchestrator. Provider and Registry are required.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Provider == nil {
		return nil, lgerr.New(lgerr.CodeAgentRunInvalidInput, "orchestrator requires a provider")
	}
	if cfg.Registry == nil {
		return nil, lgerr.New(lgerr.CodeAgentRunInvalidInput, "orchestrator requires a tool registry")
	}

	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	retry := cfg.Retry
	if retry == nil {
		retry = provider.DefaultRetryPolicy()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1500
	}

	return &Orchestrator{
		prov:          cfg.Provider,
		registry:      cfg.Registry,
		maxIterations: maxIter,
		callTimeout:   timeout,
		retry:         retry,
		temperature:   cfg.Temperature,
		maxTokens:     maxTokens,
		now:           now,
	}, nil
}

// Run executes the verification loop to a terminal state. Iteration
// exhaustion is NOT an error: it yields a conservative fallback verdict.
// Errors are reserved for invalid input, provider exhaustion, cancellation
// and unrecoverable protocol breaches.
func (o *Orchestrator) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	if strings.TrimSpace(in.Input) == "" {
		return nil, lgerr.New(lgerr.CodeAgentRunInvalidInput, "run input text is empty")
	}
	mode := in.Mode
	if mode == "" {
		mode = store.ModeAnalysis
	}
	if !mode.Valid() {
		return nil, lgerr.Errorf(lgerr.CodeAgentRunInvalidInput, "unknown mode %q", mode)
	}

	runID := uuid.New().String()
	trace := store.RunTrace{
		RunID:     runID,
		Mode:      mode,
		Model:     o.prov.ModelVersion(),
		StartedAt: o.now().UTC(),
		ToolCalls: []store.ToolCallRecord{},
		State:     StateAwaitingModel,
	}

	messages := []provider.Message{
		{Role: provider.MessageRoleUser, Content: userMessageFor(mode, in.Input, in.Context)},
	}

	var totalUsage provider.Usage
	toolsFired := false

	for iteration := 1; iteration <= o.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			trace.State = StateTerminalError
			return nil, lgerr.Wrap(err, lgerr.CodeAgentRunCancelled, "run cancelled",
				lgerr.FieldRunID(runID))
		}

		trace.Iterations = iteration
		trace.State = StateAwaitingModel

		resp, err := o.callModel(ctx, mode, messages)
		if err != nil {
			trace.State = StateTerminalError
			return nil, err
		}
		if resp.Usage != nil {
			totalUsage.InputTokens += resp.Usage.InputTokens
			totalUsage.OutputTokens += resp.Usage.OutputTokens
		}

		switch {
		case len(resp.ToolCalls) > 0:
			trace.State = StateToolDispatch
			toolsFired = true
			if resp.Text != "" {
				messages = append(messages, provider.Message{
					Role:    provider.MessageRoleAssistant,
					Content: resp.Text,
				})
			}
			toolMsgs, err := o.dispatchTools(ctx, resp.ToolCalls, &trace)
			if err != nil {
				trace.State = StateTerminalError
				return nil, err
			}
			messages = append(messages, toolMsgs...)

		case resp.Text != "":
			verdict, parseErr := parseVerdict(resp.Text, mode)
			if parseErr == nil {
				trace.State = StateTerminalSuccess
				trace.CompletedAt = o.now().UTC()
				slog.Info("run completed",
					"run_id", runID,
					"mode", mode,
					"iterations", iteration,
					"tool_calls", len(trace.ToolCalls),
				)
				return &RunResult{
					RunID:        runID,
					Verdict:      verdict,
					Trace:        trace,
					State:        StateTerminalSuccess,
					Iterations:   iteration,
					ModelVersion: trace.Model,
					Usage:        &totalUsage,
				}, nil
			}
			// Malformed verdict: record the attempt and reprompt. The
			// model's text stays in history so it can correct itself.
			trace.Repairs = append(trace.Repairs, store.RepairRecord{
				Seq:       len(trace.ToolCalls) + len(trace.Repairs),
				Iteration: iteration,
				Reason:    parseErr.Error(),
			})
			slog.Warn("verdict rejected, reprompting",
				"run_id", runID,
				"iteration", iteration,
				"error", parseErr,
			)
			messages = append(messages,
				provider.Message{Role: provider.MessageRoleAssistant, Content: resp.Text},
				provider.Message{Role: provider.MessageRoleUser, Content: repairPrompt},
			)

		default:
			// Empty turn. Tolerable after tool activity, fatal before it:
			// a model that produces nothing and calls nothing is broken.
			if !toolsFired {
				trace.State = StateTerminalError
				return nil, lgerr.New(lgerr.CodeAgentProtocolViolation,
					"model returned empty response without calling tools",
					lgerr.FieldRunID(runID))
			}
			messages = append(messages, provider.Message{
				Role:    provider.MessageRoleUser,
				Content: finalPromptFor(mode),
			})
		}
	}

	// Iteration budget exhausted: conservative fallback, never an error.
	trace.State = StateTerminalFallback
	trace.CompletedAt = o.now().UTC()
	slog.Warn("run exhausted iteration budget, returning fallback verdict",
		"run_id", runID,
		"mode", mode,
		"max_iterations", o.maxIterations,
	)
	return &RunResult{
		RunID:        runID,
		Verdict:      fallbackVerdict(mode),
		Trace:        trace,
		State:        StateTerminalFallback,
		Iterations:   o.maxIterations,
		ModelVersion: trace.Model,
		Usage:        &totalUsage,
	}, nil
}

// callModel performs one provider turn under the retry policy and per-call
// timeout, collecting the stream into a single response.
func (o *Orchestrator) callModel(ctx context.Context, mode store.Mode, messages []provider.Message) (*provider.Response, error) {
	req := provider.ChatRequest{
		SystemPrompt: systemPromptFor(mode),
		Messages:     messages,
		Tools:        o.registry.Definitions(),
		Options: provider.ChatOptions{
			Temperature:  o.temperature,
			MaxTokens:    o.maxTokens,
			JSONResponse: true,
		},
	}

	var resp *provider.Response
	err := o.retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		defer cancel()

		eventCh, err := o.prov.Chat(callCtx, req)
		if err != nil {
			return lgerr.Wrap(err, lgerr.CodeProviderUpstreamFailure, "starting model call",
				lgerr.FieldProvider(o.prov.Name()))
		}

		collected, err := provider.Collect(eventCh)
		if err != nil {
			return lgerr.Wrap(err, lgerr.CodeProviderUpstreamFailure, "model stream failed",
				lgerr.FieldProvider(o.prov.Name()))
		}
		resp = collected
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// dispatchTools executes each tool call in order, appends trace records and
// returns the tool-result messages. An unknown tool is fatal; any other tool
// failure is relayed to the model as an error result so it can adjust.
func (o *Orchestrator) dispatchTools(ctx context.Context, calls []*provider.ToolCall, trace *store.RunTrace) ([]provider.Message, error) {
	msgs := make([]provider.Message, 0, len(calls))

	for _, tc := range calls {
		result, err := o.registry.Execute(ctx, tc.Name, json.RawMessage(tc.Arguments))
		record := store.ToolCallRecord{
			Seq:       len(trace.ToolCalls) + len(trace.Repairs),
			Name:      tc.Name,
			Arguments: tc.Arguments,
		}

		switch {
		case err == nil:
			record.Result = result
			record.Status = "success"
		case lgerr.IsUnknownTool(err):
			record.Status = "error"
			record.Result = err.Error()
			trace.ToolCalls = append(trace.ToolCalls, record)
			return nil, lgerr.Wrap(err, lgerr.CodeToolsUnknownTool,
				"model requested a tool outside the catalog",
				lgerr.FieldRunID(trace.RunID))
		default:
			// Relay the failure so the model can see it and proceed.
			record.Status = "error"
			record.Result = err.Error()
			result = fmt.Sprintf(`{"error": %q}`, err.Error())
		}

		trace.ToolCalls = append(trace.ToolCalls, record)
		msgs = append(msgs, provider.Message{
			Role:       provider.MessageRoleTool,
			Content:    result,
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
		})
	}

	return msgs, nil
}

// fallbackVerdict is the conservative terminal verdict for an exhausted run.
func fallbackVerdict(mode store.Mode) *Verdict {
	if mode == store.ModeConversational {
		return &Verdict{
			Categories: []string{},
			Summary:    fallbackConverseText,
		}
	}
	score := 50
	return &Verdict{
		Score:       &score,
		RiskLevel:   store.RiskLevelMedium,
		Categories:  []string{"MANUAL_REVIEW_REQUIRED"},
		RiskFactors: []string{},
		Summary:     fallbackAnalysisText,
	}
}
