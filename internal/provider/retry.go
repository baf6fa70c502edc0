// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package provider

import (
	"context"
	"time"

	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

// RetryPolicy is a bounded exponential backoff for transient upstream
// failures. Delays are deterministic (no jitter) so retry behavior is
// reproducible in tests.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	sleepFunc func(ctx context.Context, d time.Duration) error // for testing
}

const (
	// DefaultRetryAttempts bounds how many times a single model call is
	// attempted before the failure surfaces to the caller.
	DefaultRetryAttempts = 3
	// DefaultRetryBaseDelay is the first backoff delay; it doubles on each
	// subsequent attempt.
	DefaultRetryBaseDelay = 500 * time.Millisecond
)

// DefaultRetryPolicy returns the standard policy: 3 attempts, 500ms base,
// doubling between attempts.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: DefaultRetryAttempts,
		BaseDelay:   DefaultRetryBaseDelay,
	}
}

// Do runs fn up to MaxAttempts times, sleeping BaseDelay*2^n between
// attempts. Only upstream failures are retried; any other error returns
// immediately. Context cancellation aborts the wait and surfaces ctx.Err.
func (p *RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.sleepFunc
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	delay := p.BaseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !lgerr.IsUpstreamFailure(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return lgerr.Wrap(err, lgerr.CodeAgentRunCancelled, "model call aborted during retry backoff")
		}
		delay *= 2
	}

	return lgerr.Wrapf(lastErr, lgerr.CodeProviderUpstreamFailure,
		"model call failed after %d attempts", attempts)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
