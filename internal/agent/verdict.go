// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package agent

import (
	"encoding/json"
	"strings"

	"github.com/ledgerguard-dev/ledgerguard/internal/store"
	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

// Verdict is the structured outcome of a run. In conversational mode Score
// is nil, RiskLevel empty and the category/factor lists empty; Summary
// carries the response text.
type Verdict struct {
	Score       *int            `json:"score"`
	RiskLevel   store.RiskLevel `json:"risk_level,omitempty"`
	Categories  []string        `json:"categories"`
	RiskFactors []string        `json:"risk_factors,omitempty"`
	Summary     string          `json:"summary"`
}

// rawVerdict mirrors the JSON the model is asked to produce.
type rawVerdict struct {
	Score       *int     `json:"score"`
	RiskLevel   string   `json:"risk_level"`
	Categories  []string `json:"categories"`
	RiskFactors []string `json:"risk_factors"`
	Summary     string   `json:"summary"`
}

// parseVerdict extracts a Verdict from model text. Markdown code fences are
// tolerated; anything else malformed is a schema error the caller turns into
// a repair reprompt.
func parseVerdict(text string, mode store.Mode) (*Verdict, error) {
	body := stripCodeFences(text)
	if strings.TrimSpace(body) == "" {
		return nil, lgerr.New(lgerr.CodeAgentSchemaInvalid, "empty verdict body")
	}

	var raw rawVerdict
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, lgerr.Wrap(err, lgerr.CodeAgentSchemaInvalid, "verdict is not valid JSON")
	}

	if mode == store.ModeConversational {
		if strings.TrimSpace(raw.Summary) == "" {
			return nil, lgerr.New(lgerr.CodeAgentSchemaInvalid, "conversational verdict missing summary")
		}
		// Scoring fields are forcibly nulled regardless of what the model
		// produced; a chat answer must never look like an analysis verdict.
		return &Verdict{
			Categories: []string{},
			Summary:    raw.Summary,
		}, nil
	}

	if raw.Score == nil {
		return nil, lgerr.New(lgerr.CodeAgentSchemaInvalid, "analysis verdict missing score")
	}
	if *raw.Score < 0 || *raw.Score > 100 {
		return nil, lgerr.Errorf(lgerr.CodeAgentSchemaInvalid, "score %d outside range 0-100", *raw.Score)
	}
	if strings.TrimSpace(raw.Summary) == "" {
		return nil, lgerr.New(lgerr.CodeAgentSchemaInvalid, "analysis verdict missing summary")
	}

	level := store.RiskLevel(strings.ToUpper(strings.TrimSpace(raw.RiskLevel)))
	switch {
	case level == "":
		// Lenient default: derive the level from the score's band.
		level = store.RiskLevelForScore(*raw.Score)
	case !level.Valid():
		return nil, lgerr.Errorf(lgerr.CodeAgentSchemaInvalid, "unknown risk level %q", raw.RiskLevel)
	}

	categories := raw.Categories
	if categories == nil {
		categories = []string{}
	}
	factors := raw.RiskFactors
	if factors == nil {
		factors = []string{}
	}

	return &Verdict{
		Score:       raw.Score,
		RiskLevel:   level,
		Categories:  categories,
		RiskFactors: factors,
		Summary:     raw.Summary,
	}, nil
}

// stripCodeFences unwraps ```json ... ``` style fencing around a verdict.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	// Drop an optional language tag on the opening fence line.
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(trimmed[:idx])
		if firstLine == "" || isLanguageTag(firstLine) {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return len(s) <= 10
}
