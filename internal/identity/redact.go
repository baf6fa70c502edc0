// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package identity

import (
	"github.com/ledgerguard-dev/ledgerguard/internal/store"
)

// DefaultSensitiveScoreThreshold is the score above which results are
// considered sensitive and redacted for principals lacking view_sensitive.
const DefaultSensitiveScoreThreshold = 70

// Redactor applies the sensitive-score redaction rule on read paths.
type Redactor struct {
	// Threshold is the score above which detail is redacted. Zero or
	// negative falls back to DefaultSensitiveScoreThreshold.
	Threshold int
}

func (r Redactor) threshold() int {
	if r.Threshold > 0 {
		return r.Threshold
	}
	return DefaultSensitiveScoreThreshold
}

// Redact replaces score and risk detail with the coarse risk bucket when p
// lacks view_sensitive and the score exceeds the threshold. The risk level
// (the bucket name) is retained; the numeric score and per-factor detail
// are dropped. Mutates res in place and reports whether redaction applied.
func (r Redactor) Redact(p Principal, res *store.AnalysisResult) bool {
	if res == nil || res.Score == nil {
		return false
	}
	if p.HasCapability(CapabilityViewSensitive) {
		return false
	}
	if *res.Score <= r.threshold() {
		return false
	}

	res.Score = nil
	res.RiskFactors = nil
	res.Categories = nil
	res.Redacted = true
	return true
}

// MaxVisibleScore returns the highest unredacted score p may see.
func (r Redactor) MaxVisibleScore(p Principal) int {
	if p.HasCapability(CapabilityViewSensitive) {
		return 100
	}
	return r.threshold()
}
