// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ledgerguard-dev/ledgerguard/internal/provider"
)

// ToolNameClock is the catalog name for the current-time tool.
const ToolNameClock = "current_time"

// ClockTool reports the current UTC time for time-sensitive reasoning, e.g.
// weekend or after-hours transaction patterns.
type ClockTool struct {
	now func() time.Time
}

var _ Tool = (*ClockTool)(nil)

// NewClockTool creates the clock tool. now may be nil, in which case
// time.Now is used; tests inject a fixed clock.
func NewClockTool(now func() time.Time) *ClockTool {
	if now == nil {
		now = time.Now
	}
	return &ClockTool{now: now}
}

func (t *ClockTool) Definition() provider.ToolDefinition {
	return provider.ToolDefinition{
		Name: ToolNameClock,
		Description: "Returns the current date and time in ISO format (UTC). " +
			"Use this for time-sensitive analysis such as after-hours or weekend activity.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"timezone": map[string]any{
					"type":        "string",
					"description": "Optional timezone name. Only UTC is supported.",
				},
			},
			"required": []any{},
		},
	}
}

type clockArgs struct {
	Timezone string `json:"timezone"`
}

func (t *ClockTool) Run(_ context.Context, raw json.RawMessage) (string, error) {
	var args clockArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}

	now := t.now().UTC()
	tz := args.Timezone
	if tz == "" {
		tz = "UTC"
	}

	return marshalResult(map[string]any{
		"current_time": now.Format(time.RFC3339),
		"date":         now.Format("2006-01-02"),
		"time":         now.Format("15:04:05"),
		"day_of_week":  now.Weekday().String(),
		"timezone":     tz,
	})
}
