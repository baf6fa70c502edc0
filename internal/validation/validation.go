// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

// Package validation runs deterministic post-hoc checks over a completed
// analysis verdict. Checks are advisory: a failure is recorded on the stored
// result, never surfaced as a processing error. The pipeline is a pure
// function of its input, so re-running it on the same verdict is idempotent.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ledgerguard-dev/ledgerguard/internal/store"
)

// Validation statuses. PASS or the first failing check in pipeline order.
const (
	StatusPass          = "PASS"
	StatusInconsistent  = "FAIL_INCONSISTENT"
	StatusInvalidScore  = "FAIL_INVALID_SCORE"
	StatusInvalidLevel  = "FAIL_INVALID_LEVEL"
	StatusWarnNoFactors = "WARN_NO_FACTORS"
	StatusPIILeakage    = "FAIL_PII_LEAKAGE"
	StatusLowQuality    = "FAIL_LOW_QUALITY"
	StatusEmpty         = "FAIL_EMPTY"
)

// Result is the outcome of the validation pipeline.
type Result struct {
	Status  string
	Details string
}

// Passed reports whether every check passed.
func (r Result) Passed() bool { return r.Status == StatusPass }

// DefaultMinSummaryLength is the minimum acceptable rationale length.
const DefaultMinSummaryLength = 50

// piiPatterns detect structured PII in the rationale. A compliant rationale
// masks identifiers ("IBAN ****1234"); raw values are a leak.
var piiPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"IBAN", regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`)},
	{"CREDIT_CARD", regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`)},
	{"SSN", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"PASSPORT", regexp.MustCompile(`\b[A-Z]{1,2}\d{6,9}\b`)},
	{"BANK_ACCOUNT", regexp.MustCompile(`\b\d{10,17}\b`)},
}

// uncertaintyPhrases mark a rationale that admits it cannot assess the case.
var uncertaintyPhrases = []string{
	"i don't know",
	"i'm not sure",
	"unable to determine",
	"cannot assess",
	"unknown",
	"n/a",
}

// Pipeline is the ordered validation chain: consistency, then PII leakage,
// then quality. The first failure wins.
type Pipeline struct {
	MinSummaryLength int
}

// NewPipeline creates a pipeline with default settings.
func NewPipeline() *Pipeline {
	return &Pipeline{MinSummaryLength: DefaultMinSummaryLength}
}

// Input is the slice of an analysis verdict the pipeline inspects.
type Input struct {
	Mode       store.Mode
	Summary    string
	Score      *int
	RiskLevel  store.RiskLevel
	Categories []string
	Factors    []string
}

// Run executes the pipeline. Conversational runs carry no verdict to
// validate and pass trivially.
func (p *Pipeline) Run(in Input) Result {
	if in.Mode == store.ModeConversational {
		return Result{Status: StatusPass, Details: "conversational run, scoring checks skipped"}
	}

	if r := p.CheckConsistency(in.Score, in.RiskLevel, in.Categories, in.Factors); !r.Passed() {
		return r
	}
	if r := p.CheckPII(in.Summary); !r.Passed() {
		return r
	}
	if r := p.CheckQuality(in.Summary); !r.Passed() {
		return r
	}
	return Result{Status: StatusPass}
}

// CheckConsistency verifies the score sits inside its risk level's band and
// that high scores come with supporting categories and factors.
func (p *Pipeline) CheckConsistency(score *int, level store.RiskLevel, categories, factors []string) Result {
	if score == nil {
		return Result{
			Status:  StatusInvalidScore,
			Details: "analysis verdict is missing a risk score",
		}
	}
	if *score < 0 || *score > 100 {
		return Result{
			Status:  StatusInvalidScore,
			Details: fmt.Sprintf("score %d is outside valid range 0-100", *score),
		}
	}

	if !level.Valid() {
		return Result{
			Status:  StatusInvalidLevel,
			Details: fmt.Sprintf("unknown risk level: %s", level),
		}
	}

	min, max := level.Band()
	if *score < min || *score > max {
		return Result{
			Status: StatusInconsistent,
			Details: fmt.Sprintf("score %d doesn't match level %s (expected %d-%d)",
				*score, level, min, max),
		}
	}

	if *score >= 50 && (len(categories) == 0 || len(factors) == 0) {
		return Result{
			Status:  StatusWarnNoFactors,
			Details: "high risk score but no supporting categories or risk factors",
		}
	}

	return Result{Status: StatusPass}
}

// CheckPII scans the rationale for raw structured identifiers. Details name
// pattern types and counts only, never the matched values.
func (p *Pipeline) CheckPII(summary string) Result {
	var found []string
	for _, pat := range piiPatterns {
		if n := len(pat.re.FindAllString(summary, -1)); n > 0 {
			found = append(found, fmt.Sprintf("%s:%d", pat.name, n))
		}
	}
	if len(found) > 0 {
		return Result{
			Status:  StatusPIILeakage,
			Details: "Detected: " + strings.Join(found, ", "),
		}
	}
	return Result{Status: StatusPass}
}

// CheckQuality flags empty, too-short, or uncertainty-laden rationales.
func (p *Pipeline) CheckQuality(summary string) Result {
	trimmed := strings.TrimSpace(summary)
	if trimmed == "" {
		return Result{Status: StatusEmpty, Details: "Response is empty"}
	}

	minLen := p.MinSummaryLength
	if minLen <= 0 {
		minLen = DefaultMinSummaryLength
	}
	if len(trimmed) < minLen {
		return Result{
			Status:  StatusLowQuality,
			Details: fmt.Sprintf("Response too short: %d chars (min: %d)", len(trimmed), minLen),
		}
	}

	lower := strings.ToLower(summary)
	for _, phrase := range uncertaintyPhrases {
		if strings.Contains(lower, phrase) {
			return Result{
				Status:  StatusLowQuality,
				Details: fmt.Sprintf("Uncertainty detected: %q", phrase),
			}
		}
	}

	return Result{Status: StatusPass}
}
