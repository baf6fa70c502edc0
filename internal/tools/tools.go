// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

// Package tools contains the verification tool catalog offered to the model
// during an analysis run. Every tool is deterministic and side-effect-free,
// so a repeated dispatch after a provider retry is harmless.
package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ledgerguard-dev/ledgerguard/internal/provider"
	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

// Tool is one named verification primitive. Run returns a JSON document that
// is relayed to the model verbatim as a tool-result message.
type Tool interface {
	Definition() provider.ToolDefinition
	Run(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry is a fixed, thread-safe catalog of verification tools. The set is
// established at construction; there is no runtime registration surface.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry over the given tools. Duplicate names are an
// error so a misconfigured catalog fails at startup rather than dispatch.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		name := t.Definition().Name
		if _, exists := r.tools[name]; exists {
			return nil, lgerr.Errorf(lgerr.CodeToolsRefDataInvalid, "duplicate tool %q", name)
		}
		r.tools[name] = t
	}
	return r, nil
}

// NewStandardRegistry builds the full verification catalog: sanctions
// screening, PEP screening, amount threshold validation and the clock.
// now may be nil, in which time.Now is used.
func NewStandardRegistry(now func() time.Time) (*Registry, error) {
	sanctions, err := NewSanctionsTool()
	if err != nil {
		return nil, err
	}
	pep, err := NewPEPTool()
	if err != nil {
		return nil, err
	}
	threshold, err := NewThresholdTool()
	if err != nil {
		return nil, err
	}
	return NewRegistry(sanctions, pep, threshold, NewClockTool(now))
}

// Definitions returns the tool schemas for inclusion in a chat request,
// sorted by name for a stable catalog order.
func (r *Registry) Definitions() []provider.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]provider.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute dispatches one tool call by name. An unknown tool name is a fatal
// protocol breach: the model was shown the exact catalog, so a name outside
// it means the run cannot be trusted to continue.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return "", lgerr.New(lgerr.CodeToolsUnknownTool, "tool not in catalog",
			lgerr.FieldTool(name))
	}

	slog.Debug("executing verification tool", "tool", name)
	return t.Run(ctx, args)
}

// decodeArgs unmarshals tool arguments, treating empty input as an empty
// object. Models occasionally send "" or "null" for no-argument calls.
func decodeArgs(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	if s == "null" || s == `""` {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return lgerr.Wrap(err, lgerr.CodeToolsInvalidArgument, "decoding tool arguments")
	}
	return nil
}
