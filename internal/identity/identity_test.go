// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerguard-dev/ledgerguard/internal/store"
	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

func TestRolePermissions(t *testing.T) {
	tests := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleViewer, CapabilityView, true},
		{RoleViewer, CapabilityAnalyze, false},
		{RoleViewer, CapabilityViewSensitive, false},
		{RoleAnalyst, CapabilityView, true},
		{RoleAnalyst, CapabilityAnalyze, true},
		{RoleAnalyst, CapabilityViewSensitive, false},
		{RoleAnalyst, CapabilityViewAllGroups, false},
		{RoleSeniorAnalyst, CapabilityViewSensitive, true},
		{RoleSeniorAnalyst, CapabilityViewAllGroups, true},
		{RoleSeniorAnalyst, CapabilityExport, true},
		{RoleSeniorAnalyst, CapabilityManageUsers, false},
		{RoleAdmin, CapabilityManageUsers, true},
		{RoleAdmin, CapabilityExport, true},
		{Role("intern"), CapabilityView, false},
	}

	for _, tt := range tests {
		p := Principal{ID: "u", Role: tt.role}
		assert.Equal(t, tt.want, p.HasCapability(tt.cap), "%s / %s", tt.role, tt.cap)
	}
}

func TestCheck_FailsClosed(t *testing.T) {
	p := Principal{ID: "u-viewer", Role: RoleViewer, Group: "fraud-team"}

	require.NoError(t, Check(p, CapabilityView))

	err := Check(p, CapabilityAnalyze)
	require.Error(t, err)
	assert.True(t, lgerr.HasCode(err, lgerr.CodeIdentityPermissionDenied))
}

func TestVisible(t *testing.T) {
	analyst := Principal{ID: "a", Role: RoleAnalyst, Group: "fraud-team"}
	senior := Principal{ID: "s", Role: RoleSeniorAnalyst, Group: "aml-team"}
	wildcard := Principal{ID: "w", Role: RoleAnalyst, Group: GroupDefault}

	assert.True(t, Visible(analyst, "fraud-team"))
	assert.False(t, Visible(analyst, "aml-team"))
	assert.True(t, Visible(senior, "fraud-team"), "view_all_groups sees everything")
	assert.True(t, Visible(wildcard, "aml-team"), "default group is a wildcard")
}

// Check and Visible must agree: a group passes CheckGroup exactly when
// Visible reports it.
func TestCheckGroup_AgreesWithVisible(t *testing.T) {
	principals := []Principal{
		{ID: "a", Role: RoleAnalyst, Group: "fraud-team"},
		{ID: "s", Role: RoleSeniorAnalyst, Group: "aml-team"},
		{ID: "v", Role: RoleViewer, Group: GroupDefault},
	}
	groups := []string{"fraud-team", "aml-team", GroupDefault, "ops"}

	for _, p := range principals {
		for _, g := range groups {
			err := CheckGroup(p, g)
			if Visible(p, g) {
				assert.NoError(t, err, "%s / %s", p.ID, g)
			} else {
				assert.True(t, lgerr.HasCode(err, lgerr.CodeIdentityGroupDenied), "%s / %s", p.ID, g)
			}
		}
	}
}

func TestVisibleGroups(t *testing.T) {
	analyst := Principal{ID: "a", Role: RoleAnalyst, Group: "fraud-team"}
	assert.Equal(t, []string{"fraud-team"}, VisibleGroups(analyst),
		"the wildcard applies to default-group principals, not default-group records")

	senior := Principal{ID: "s", Role: RoleSeniorAnalyst, Group: "aml-team"}
	assert.Nil(t, VisibleGroups(senior), "view_all_groups is unrestricted")

	wildcard := Principal{ID: "w", Role: RoleAnalyst, Group: GroupDefault}
	assert.Nil(t, VisibleGroups(wildcard))
}

// VisibleGroups must agree with Visible: a group is in the returned set (or
// the set is nil) exactly when Visible admits it. A mismatch would let list
// reads return rows that point lookups then deny.
func TestVisibleGroups_AgreesWithVisible(t *testing.T) {
	principals := []Principal{
		{ID: "a", Role: RoleAnalyst, Group: "fraud-team"},
		{ID: "s", Role: RoleSeniorAnalyst, Group: "aml-team"},
		{ID: "w", Role: RoleViewer, Group: GroupDefault},
	}
	groups := []string{"fraud-team", "aml-team", GroupDefault, "ops"}

	for _, p := range principals {
		visible := VisibleGroups(p)
		for _, g := range groups {
			inSet := visible == nil
			for _, vg := range visible {
				if vg == g {
					inSet = true
				}
			}
			assert.Equal(t, Visible(p, g), inSet, "%s / %s", p.ID, g)
		}
	}
}

func TestRequestGroup(t *testing.T) {
	analyst := Principal{ID: "a", Role: RoleAnalyst, Group: "fraud-team"}
	assert.Equal(t, "fraud-team", RequestGroup(analyst, ""), "own group by default")
	assert.Equal(t, "fraud-team", RequestGroup(analyst, "aml-team"), "explicit group ignored outside default")

	admin := Principal{ID: "x", Role: RoleAdmin, Group: GroupDefault}
	assert.Equal(t, "aml-team", RequestGroup(admin, "aml-team"))
	assert.Equal(t, GroupDefault, RequestGroup(admin, ""))
}

func TestRedact_AboveThresholdForNonSensitive(t *testing.T) {
	r := Redactor{}
	analyst := Principal{ID: "a", Role: RoleAnalyst, Group: "fraud-team"}

	score := 85
	res := &store.AnalysisResult{
		Score:       &score,
		RiskLevel:   store.RiskLevelCritical,
		Categories:  []string{"SANCTIONS"},
		RiskFactors: []string{"watchlist hit"},
		Summary:     "blocked",
	}
	assert.True(t, r.Redact(analyst, res))

	assert.Nil(t, res.Score)
	assert.Nil(t, res.Categories)
	assert.Nil(t, res.RiskFactors)
	assert.Equal(t, store.RiskLevelCritical, res.RiskLevel, "the coarse bucket survives")
	assert.Equal(t, "blocked", res.Summary)
	assert.True(t, res.Redacted)
}

func TestRedact_SkipsBelowThresholdAndSensitiveViewers(t *testing.T) {
	r := Redactor{}
	analyst := Principal{ID: "a", Role: RoleAnalyst, Group: "fraud-team"}
	senior := Principal{ID: "s", Role: RoleSeniorAnalyst, Group: "fraud-team"}

	low := 70 // at the threshold, not above it
	res := &store.AnalysisResult{Score: &low}
	assert.False(t, r.Redact(analyst, res))
	require.NotNil(t, res.Score)

	high := 85
	res = &store.AnalysisResult{Score: &high}
	assert.False(t, r.Redact(senior, res))
	require.NotNil(t, res.Score)
	assert.Equal(t, 85, *res.Score)

	assert.False(t, r.Redact(analyst, &store.AnalysisResult{}), "score-less rows are never redacted")
}

func TestRedact_CustomThreshold(t *testing.T) {
	r := Redactor{Threshold: 50}
	analyst := Principal{ID: "a", Role: RoleAnalyst, Group: "fraud-team"}

	score := 60
	res := &store.AnalysisResult{Score: &score}
	assert.True(t, r.Redact(analyst, res))
	assert.Equal(t, 50, r.MaxVisibleScore(analyst))
	assert.Equal(t, 100, r.MaxVisibleScore(Principal{Role: RoleAdmin}))
}

func TestDirectory_LookupAndDefaults(t *testing.T) {
	dir, err := NewDirectory(map[string]Principal{
		"dana":  {Name: "Dana R", Role: RoleAnalyst, Group: "fraud-team"},
		"local": {Name: "Local Admin", Role: RoleAdmin},
	})
	require.NoError(t, err)

	p, err := dir.Lookup("dana")
	require.NoError(t, err)
	assert.Equal(t, "dana", p.ID, "id defaults to the directory key")
	assert.Equal(t, RoleAnalyst, p.Role)

	p, err = dir.Lookup("local")
	require.NoError(t, err)
	assert.Equal(t, GroupDefault, p.Group, "group defaults to the wildcard group")

	_, err = dir.Lookup("ghost")
	require.Error(t, err)
	assert.True(t, lgerr.HasCode(err, lgerr.CodeIdentityUnknownPrincipal))

	assert.Equal(t, []string{"dana", "local"}, dir.Keys())
}

func TestDirectory_RejectsUnknownRole(t *testing.T) {
	_, err := NewDirectory(map[string]Principal{
		"bad": {Role: Role("superuser")},
	})
	require.Error(t, err)
	assert.True(t, lgerr.HasCode(err, lgerr.CodeConfigValidateInvalidValue))
}
