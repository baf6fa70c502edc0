// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ledgerguard-dev/ledgerguard/internal/provider"
	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

// ToolNamePEP is the catalog name for politically-exposed-person screening.
const ToolNamePEP = "check_pep_status"

// PEPTool screens a person against the embedded PEP registry. PEP hits
// require enhanced due diligence under AML regulations.
type PEPTool struct {
	registry *pepRegistry
}

var _ Tool = (*PEPTool)(nil)

// NewPEPTool loads the embedded PEP registry.
func NewPEPTool() (*PEPTool, error) {
	reg, err := loadPEPRegistry()
	if err != nil {
		return nil, err
	}
	return &PEPTool{registry: reg}, nil
}

func (t *PEPTool) Definition() provider.ToolDefinition {
	return provider.ToolDefinition{
		Name: ToolNamePEP,
		Description: "Checks whether a person is a Politically Exposed Person (PEP). " +
			"PEPs require enhanced due diligence under AML regulations.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"person_name": map[string]any{
					"type":        "string",
					"description": "Full name of the person to check",
				},
			},
			"required": []any{"person_name"},
		},
	}
}

type pepArgs struct {
	PersonName string `json:"person_name"`
}

func (t *PEPTool) Run(_ context.Context, raw json.RawMessage) (string, error) {
	var args pepArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.PersonName) == "" {
		return "", lgerr.New(lgerr.CodeToolsInvalidArgument, "person_name is required",
			lgerr.FieldTool(ToolNamePEP))
	}

	normalized := strings.ToLower(strings.TrimSpace(args.PersonName))

	for _, entry := range t.registry.Entries {
		if entry.Name == normalized {
			return marshalResult(map[string]any{
				"is_pep":           true,
				"person_name":      args.PersonName,
				"position":         entry.Position,
				"country":          entry.Country,
				"risk_level":       entry.RiskLevel,
				"currently_active": entry.Active,
				"recommendation":   "ENHANCED_DUE_DILIGENCE",
			})
		}
	}

	return marshalResult(map[string]any{
		"is_pep":         false,
		"person_name":    args.PersonName,
		"status":         "NOT_PEP",
		"recommendation": "STANDARD_PROCESSING",
	})
}
