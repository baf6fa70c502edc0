// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/ledgerguard-dev/ledgerguard/internal/provider"
	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

// ToolNameThreshold is the catalog name for regulatory threshold validation.
const ToolNameThreshold = "validate_amount_threshold"

// ThresholdTool validates a transaction amount against per-currency CTR
// reporting thresholds and flags structuring patterns: single amounts parked
// just below the threshold, and 24h aggregates that cross it.
type ThresholdTool struct {
	table *thresholdTable
}

var _ Tool = (*ThresholdTool)(nil)

// NewThresholdTool loads the embedded threshold table.
func NewThresholdTool() (*ThresholdTool, error) {
	tbl, err := loadThresholdTable()
	if err != nil {
		return nil, err
	}
	return &ThresholdTool{table: tbl}, nil
}

func (t *ThresholdTool) Definition() provider.ToolDefinition {
	return provider.ToolDefinition{
		Name: ToolNameThreshold,
		Description: "Validates a transaction amount against regulatory reporting thresholds. " +
			"Detects threshold breaches that require a Currency Transaction Report and " +
			"potential structuring (splitting transactions to stay under the threshold).",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"amount": map[string]any{
					"type":        "number",
					"description": "Transaction amount",
				},
				"currency": map[string]any{
					"type":        "string",
					"description": "Currency code (USD, EUR, GBP, CHF, JPY). Defaults to USD.",
				},
				"transaction_count_24h": map[string]any{
					"type":        "integer",
					"description": "Optional count of transactions by the same party in the last 24 hours",
				},
			},
			"required": []any{"amount"},
		},
	}
}

type thresholdArgs struct {
	Amount             float64 `json:"amount"`
	Currency           string  `json:"currency"`
	TransactionCount24 *int    `json:"transaction_count_24h"`
}

func (t *ThresholdTool) Run(_ context.Context, raw json.RawMessage) (string, error) {
	var args thresholdArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if args.Amount < 0 || math.IsNaN(args.Amount) || math.IsInf(args.Amount, 0) {
		return "", lgerr.New(lgerr.CodeToolsInvalidArgument, "amount must be a non-negative number",
			lgerr.FieldTool(ToolNameThreshold))
	}

	currency := strings.ToUpper(strings.TrimSpace(args.Currency))
	if currency == "" {
		currency = "USD"
	}
	threshold, ok := t.table.Currencies[currency]
	if !ok {
		threshold = t.table.Default
	}

	result := map[string]any{
		"amount":               args.Amount,
		"currency":             currency,
		"threshold":            threshold,
		"threshold_breached":   false,
		"structuring_suspected": false,
		"recommendation":       "PROCEED",
	}
	var flags []string

	if args.Amount >= threshold {
		result["threshold_breached"] = true
		flags = append(flags, fmt.Sprintf("EXCEEDS_%s_THRESHOLD", currency))
		result["recommendation"] = "FILE_CTR"
		result["report_required"] = "Currency Transaction Report (CTR)"
	}

	structuringFloor := threshold * t.table.StructuringPercent
	if args.Amount >= structuringFloor && args.Amount < threshold {
		result["structuring_suspected"] = true
		flags = append(flags, "POTENTIAL_STRUCTURING")
		result["recommendation"] = "MANUAL_REVIEW"
		result["structuring_analysis"] = map[string]any{
			"amount_percent_of_threshold": math.Round(args.Amount/threshold*1000) / 10,
			"suspicious_reason":           "Transaction amount suspiciously close to reporting threshold",
		}
	}

	if args.TransactionCount24 != nil && *args.TransactionCount24 > 3 {
		flags = append(flags, "MULTIPLE_TRANSACTIONS_24H")
		count := *args.TransactionCount24
		if args.Amount*float64(count) >= threshold {
			result["structuring_suspected"] = true
			flags = append(flags, "AGGREGATE_EXCEEDS_THRESHOLD")
			result["recommendation"] = "FILE_SAR"
			result["aggregate_analysis"] = map[string]any{
				"transaction_count":   count,
				"estimated_aggregate": args.Amount * float64(count),
			}
		}
	}

	if flags == nil {
		flags = []string{}
	}
	result["flags"] = flags

	return marshalResult(result)
}
