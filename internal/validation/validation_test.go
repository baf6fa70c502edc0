// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerguard-dev/ledgerguard/internal/store"
)

func intPtr(v int) *int { return &v }

func goodInput() Input {
	return Input{
		Mode:  store.ModeAnalysis,
		Score: intPtr(82),
		Summary: "Transaction involves a sanctioned counterparty on the OFAC SDN list " +
			"combined with an amount just below the reporting threshold, indicating layering.",
		RiskLevel:  store.RiskLevelCritical,
		Categories: []string{"SANCTIONS"},
		Factors:    []string{"OFAC SDN exact match", "structuring pattern"},
	}
}

func TestRun_CleanVerdictPasses(t *testing.T) {
	r := NewPipeline().Run(goodInput())
	assert.True(t, r.Passed())
	assert.Equal(t, StatusPass, r.Status)
}

func TestRun_ConversationalSkipsChecks(t *testing.T) {
	r := NewPipeline().Run(Input{Mode: store.ModeConversational, Summary: ""})
	assert.True(t, r.Passed())
	assert.Contains(t, r.Details, "conversational")
}

func TestRun_OrderConsistencyBeforePII(t *testing.T) {
	// Both a band mismatch and a PII leak: consistency must win.
	in := goodInput()
	in.Score = intPtr(10)
	in.Summary += " account DE44500105175407324931"
	r := NewPipeline().Run(in)
	assert.Equal(t, StatusInconsistent, r.Status)
}

func TestRun_Idempotent(t *testing.T) {
	p := NewPipeline()
	in := goodInput()
	first := p.Run(in)
	second := p.Run(in)
	assert.Equal(t, first, second)
}

func TestCheckConsistency(t *testing.T) {
	tests := []struct {
		name       string
		score      *int
		level      store.RiskLevel
		categories []string
		factors    []string
		want       string
	}{
		{"in band", intPtr(30), store.RiskLevelMedium, []string{"c"}, []string{"f"}, StatusPass},
		{"band boundary low", intPtr(26), store.RiskLevelMedium, []string{"c"}, []string{"f"}, StatusPass},
		{"score above band", intPtr(80), store.RiskLevelLow, []string{"c"}, []string{"f"}, StatusInconsistent},
		{"score below band", intPtr(10), store.RiskLevelCritical, []string{"c"}, []string{"f"}, StatusInconsistent},
		{"negative score", intPtr(-1), store.RiskLevelLow, nil, nil, StatusInvalidScore},
		{"score over 100", intPtr(101), store.RiskLevelCritical, nil, nil, StatusInvalidScore},
		{"missing score", nil, store.RiskLevelLow, nil, nil, StatusInvalidScore},
		{"unknown level", intPtr(30), store.RiskLevel("SEVERE"), []string{"c"}, []string{"f"}, StatusInvalidLevel},
		{"high score no factors", intPtr(60), store.RiskLevelHigh, []string{"c"}, nil, StatusWarnNoFactors},
		{"high score no categories", intPtr(60), store.RiskLevelHigh, nil, []string{"f"}, StatusWarnNoFactors},
		{"low score no factors ok", intPtr(5), store.RiskLevelLow, nil, nil, StatusPass},
	}

	p := NewPipeline()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := p.CheckConsistency(tc.score, tc.level, tc.categories, tc.factors)
			assert.Equal(t, tc.want, r.Status)
		})
	}
}

func TestCheckPII(t *testing.T) {
	p := NewPipeline()

	tests := []struct {
		name    string
		summary string
		leaked  bool
		pattern string
	}{
		{"iban", "sender account DE44500105175407324931 moved funds", true, "IBAN"},
		{"credit card", "card 4111 1111 1111 1111 was used", true, "CREDIT_CARD"},
		{"ssn", "beneficiary SSN 078-05-1120 on file", true, "SSN"},
		{"bank account", "routed through account 12345678901 overnight", true, "BANK_ACCOUNT"},
		{"masked values clean", "sender IBAN ****4931 and card ****1111 look consistent", false, ""},
		{"plain prose clean", "amount is close to the threshold and counterparty is clean", false, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := p.CheckPII(tc.summary)
			if tc.leaked {
				assert.Equal(t, StatusPIILeakage, r.Status)
				assert.Contains(t, r.Details, tc.pattern)
				// Details must never echo the matched value.
				assert.NotContains(t, r.Details, "1111")
				assert.NotContains(t, r.Details, "DE44")
			} else {
				assert.True(t, r.Passed())
			}
		})
	}
}

func TestCheckQuality(t *testing.T) {
	p := NewPipeline()

	long := strings.Repeat("detailed reasoning about transaction risk. ", 3)

	assert.Equal(t, StatusEmpty, p.CheckQuality("").Status)
	assert.Equal(t, StatusEmpty, p.CheckQuality("   \n ").Status)
	assert.Equal(t, StatusLowQuality, p.CheckQuality("too short").Status)
	assert.Equal(t, StatusLowQuality, p.CheckQuality(long+" I'm not sure about this.").Status)
	assert.Equal(t, StatusLowQuality, p.CheckQuality(long+" the origin is unknown.").Status)
	assert.True(t, p.CheckQuality(long).Passed())
}
