// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerguard-dev/ledgerguard/internal/store"
	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

const validAnalysisJSON = `{
	"score": 82,
	"risk_level": "CRITICAL",
	"categories": ["SANCTIONS"],
	"risk_factors": ["OFAC SDN exact match"],
	"summary": "Sender is an exact match on the OFAC SDN list."
}`

func TestParseVerdict_ValidAnalysis(t *testing.T) {
	v, err := parseVerdict(validAnalysisJSON, store.ModeAnalysis)
	require.NoError(t, err)
	require.NotNil(t, v.Score)
	assert.Equal(t, 82, *v.Score)
	assert.Equal(t, store.RiskLevelCritical, v.RiskLevel)
	assert.Equal(t, []string{"SANCTIONS"}, v.Categories)
}

func TestParseVerdict_StripsCodeFences(t *testing.T) {
	fenced := "```json\n" + validAnalysisJSON + "\n```"
	v, err := parseVerdict(fenced, store.ModeAnalysis)
	require.NoError(t, err)
	assert.Equal(t, store.RiskLevelCritical, v.RiskLevel)

	bare := "```\n" + validAnalysisJSON + "\n```"
	v, err = parseVerdict(bare, store.ModeAnalysis)
	require.NoError(t, err)
	assert.Equal(t, 82, *v.Score)
}

func TestParseVerdict_MissingLevelDefaultsToBand(t *testing.T) {
	v, err := parseVerdict(`{"score": 82, "categories": ["SANCTIONS"], "risk_factors": ["hit"], "summary": "critical sanctions finding on the sender"}`, store.ModeAnalysis)
	require.NoError(t, err)
	assert.Equal(t, store.RiskLevelCritical, v.RiskLevel)

	v, err = parseVerdict(`{"score": 10, "categories": [], "summary": "routine transfer, nothing of note identified"}`, store.ModeAnalysis)
	require.NoError(t, err)
	assert.Equal(t, store.RiskLevelLow, v.RiskLevel)
}

func TestParseVerdict_Rejections(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"prose", "The transaction looks risky to me."},
		{"empty", "   "},
		{"missing score", `{"risk_level": "LOW", "summary": "looks fine overall, nothing found"}`},
		{"score out of range", `{"score": 140, "risk_level": "CRITICAL", "summary": "x"}`},
		{"unknown level", `{"score": 30, "risk_level": "SEVERE", "summary": "moderate concern about the pattern"}`},
		{"missing summary", `{"score": 30, "risk_level": "MEDIUM", "categories": []}`},
		{"truncated json", `{"score": 30, "risk_level": "MEDIUM", "summary": "cut of`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseVerdict(tc.text, store.ModeAnalysis)
			require.Error(t, err)
			assert.True(t, lgerr.HasCode(err, lgerr.CodeAgentSchemaInvalid))
		})
	}
}

func TestParseVerdict_ConversationalNullsScoring(t *testing.T) {
	// Model disobeys and scores anyway; the parser nulls it.
	v, err := parseVerdict(`{"score": 90, "risk_level": "CRITICAL", "categories": ["X"], "summary": "the answer is forty-two"}`, store.ModeConversational)
	require.NoError(t, err)
	assert.Nil(t, v.Score)
	assert.Empty(t, v.RiskLevel)
	assert.Empty(t, v.Categories)
	assert.Equal(t, "the answer is forty-two", v.Summary)
}

func TestParseVerdict_ConversationalRequiresSummary(t *testing.T) {
	_, err := parseVerdict(`{"score": null, "categories": []}`, store.ModeConversational)
	require.Error(t, err)
}
