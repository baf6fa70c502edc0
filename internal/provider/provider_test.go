// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

func feed(events ...ChatEvent) <-chan ChatEvent {
	ch := make(chan ChatEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func TestCollect_AssemblesTextAndToolCalls(t *testing.T) {
	resp, err := Collect(feed(
		ChatEvent{Type: EventTypeTextDelta, Text: "{\"risk"},
		ChatEvent{Type: EventTypeTextDelta, Text: "_score\": 10}"},
		ChatEvent{Type: EventTypeToolCall, ToolCall: &ToolCall{ID: "tc_1", Name: "check_sanctions_list", Arguments: `{"name":"x"}`}},
		ChatEvent{Type: EventTypeUsage, Usage: &Usage{InputTokens: 100, OutputTokens: 20}},
		ChatEvent{Type: EventTypeDone},
	))
	require.NoError(t, err)
	assert.Equal(t, `{"risk_score": 10}`, resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "check_sanctions_list", resp.ToolCalls[0].Name)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 100, resp.Usage.InputTokens)
}

func TestCollect_StreamErrorDiscardsPartialOutput(t *testing.T) {
	resp, err := Collect(feed(
		ChatEvent{Type: EventTypeTextDelta, Text: "partial"},
		ChatEvent{Type: EventTypeError, Error: "connection reset"},
	))
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestCollect_EmptyStream(t *testing.T) {
	resp, err := Collect(feed(ChatEvent{Type: EventTypeDone}))
	require.NoError(t, err)
	assert.Empty(t, resp.Text)
	assert.Empty(t, resp.ToolCalls)
}

func TestHealthTracker_CooldownRecovery(t *testing.T) {
	h, err := NewHealthTracker(30 * time.Second)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	h.SetNowFunc(func() time.Time { return now })

	assert.True(t, h.IsHealthy())

	h.RecordFailure()
	assert.False(t, h.IsHealthy())

	now = now.Add(31 * time.Second)
	assert.True(t, h.IsHealthy(), "cooldown elapsed, provider eligible again")

	m := h.Metrics()
	assert.EqualValues(t, 1, m.FailureCount)
	require.NotNil(t, m.LastFailureAt)
}

func TestNewHealthTracker_RejectsZeroCooldown(t *testing.T) {
	_, err := NewHealthTracker(0)
	require.Error(t, err)
	assert.True(t, lgerr.HasCode(err, lgerr.CodeConfigValidateInvalidValue))
}

func TestRetryPolicy_RetriesUpstreamFailures(t *testing.T) {
	var delays []time.Duration
	p := &RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		sleepFunc: func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return lgerr.New(lgerr.CodeProviderUpstreamFailure, "transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, delays)
}

func TestRetryPolicy_NonUpstreamErrorReturnsImmediately(t *testing.T) {
	p := &RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		sleepFunc:   func(context.Context, time.Duration) error { return nil },
	}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return lgerr.New(lgerr.CodeProviderRequestInvalid, "bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, lgerr.HasCode(err, lgerr.CodeProviderRequestInvalid))
}

func TestRetryPolicy_ExhaustionSurfacesUpstreamFailure(t *testing.T) {
	p := &RetryPolicy{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		sleepFunc:   func(context.Context, time.Duration) error { return nil },
	}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return lgerr.New(lgerr.CodeProviderUpstreamFailure, "upstream down")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, lgerr.IsUpstreamFailure(err))
}
