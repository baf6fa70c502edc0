// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package tools

import (
	"context"
	"encoding/json"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ledgerguard-dev/ledgerguard/internal/provider"
	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

// ToolNameSanctions is the catalog name for watchlist screening.
const ToolNameSanctions = "check_sanctions_list"

// SanctionsTool screens a party name against the embedded consolidated
// watchlist. Exact matches recommend blocking; partial matches (name
// variations like "A. Ivanov") recommend manual review.
type SanctionsTool struct {
	watchlist *watchlist
}

var _ Tool = (*SanctionsTool)(nil)

// NewSanctionsTool loads the embedded watchlist.
func NewSanctionsTool() (*SanctionsTool, error) {
	wl, err := loadWatchlist()
	if err != nil {
		return nil, err
	}
	return &SanctionsTool{watchlist: wl}, nil
}

func (t *SanctionsTool) Definition() provider.ToolDefinition {
	return provider.ToolDefinition{
		Name: ToolNameSanctions,
		Description: "Checks whether a person or company appears on global sanctions lists " +
			"(OFAC SDN, EU sanctions, UN consolidated list, INTERPOL). " +
			"Always screen both the sender and the receiver of a transaction.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"entity_name": map[string]any{
					"type":        "string",
					"description": "Full name of the person or company to check",
				},
			},
			"required": []any{"entity_name"},
		},
	}
}

type sanctionsArgs struct {
	EntityName string `json:"entity_name"`
}

func (t *SanctionsTool) Run(_ context.Context, raw json.RawMessage) (string, error) {
	var args sanctionsArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.EntityName) == "" {
		return "", lgerr.New(lgerr.CodeToolsInvalidArgument, "entity_name is required",
			lgerr.FieldTool(ToolNameSanctions))
	}

	normalized := strings.ToLower(strings.TrimSpace(args.EntityName))

	for _, entry := range t.watchlist.Entries {
		if entry.Name == normalized {
			return marshalResult(map[string]any{
				"is_sanctioned":  true,
				"entity_name":    args.EntityName,
				"sanctions_list": entry.List,
				"reason":         entry.Reason,
				"severity":       entry.Severity,
				"added_date":     entry.Added,
				"recommendation": "BLOCK_TRANSACTION",
			})
		}
	}

	// Partial match: first and last token of the query overlap the first and
	// last token of a watchlist name in either direction. Catches initials
	// and abbreviated forms.
	if entry, ok := t.partialMatch(normalized); ok {
		return marshalResult(map[string]any{
			"is_sanctioned":  true,
			"entity_name":    args.EntityName,
			"matched_name":   cases.Title(language.English).String(entry.Name),
			"match_type":     "PARTIAL",
			"sanctions_list": entry.List,
			"reason":         entry.Reason,
			"severity":       entry.Severity,
			"recommendation": "MANUAL_REVIEW",
		})
	}

	return marshalResult(map[string]any{
		"is_sanctioned":  false,
		"entity_name":    args.EntityName,
		"status":         "CLEAN",
		"checked_lists":  t.watchlist.CheckedLists,
		"recommendation": "PROCEED",
	})
}

func (t *SanctionsTool) partialMatch(normalized string) (watchlistEntry, bool) {
	queryParts := strings.Fields(normalized)
	if len(queryParts) < 2 {
		return watchlistEntry{}, false
	}
	for _, entry := range t.watchlist.Entries {
		listedParts := strings.Fields(entry.Name)
		if len(listedParts) < 2 {
			continue
		}
		if tokenOverlap(queryParts[0], listedParts[0]) &&
			tokenOverlap(queryParts[len(queryParts)-1], listedParts[len(listedParts)-1]) {
			return entry, true
		}
	}
	return watchlistEntry{}, false
}

// tokenOverlap reports whether either token contains the other. Trailing
// punctuation is stripped first so initials like "a." match "ahmed".
func tokenOverlap(a, b string) bool {
	a = strings.TrimRight(a, ".,")
	b = strings.TrimRight(b, ".,")
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func marshalResult(v map[string]any) (string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return "", lgerr.Wrap(err, lgerr.CodeToolsInvalidArgument, "encoding tool result")
	}
	return string(out), nil
}
