// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerguard-dev/ledgerguard/internal/config"
	"github.com/ledgerguard-dev/ledgerguard/internal/identity"
	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	root := NewRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"analyze", "chat", "results", "feedback", "stats", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCmd_Output(t *testing.T) {
	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "ledgerguard dev")
}

func TestFeedbackCmd_RequiresExactlyOneVerdict(t *testing.T) {
	for _, args := range [][]string{
		{"feedback", "1"},
		{"feedback", "1", "--agree", "--disagree"},
	} {
		root := NewRootCmd()
		root.SetArgs(args)
		err := root.Execute()
		require.Error(t, err)
		assert.True(t, lgerr.HasCode(err, lgerr.CodeCLIInputInvalid), "%v", args)
	}
}

func TestParseResultID(t *testing.T) {
	id, err := parseResultID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"abc", "0", "-3", ""} {
		_, err := parseResultID(bad)
		require.Error(t, err, "%q", bad)
	}
}

func TestBuildProvider_UnknownProvider(t *testing.T) {
	cfg := &config.Config{Models: config.ModelsConfig{Default: "mistral/large"}}

	_, err := buildProvider(cfg)
	require.Error(t, err)
	assert.True(t, lgerr.HasCode(err, lgerr.CodeProviderNotConfigured))
}

func TestBuildDirectory_DefaultsToLocalAdmin(t *testing.T) {
	dir, err := buildDirectory(&config.Config{})
	require.NoError(t, err)

	p, err := dir.Lookup("local")
	require.NoError(t, err)
	assert.Equal(t, identity.RoleAdmin, p.Role)
	assert.Equal(t, identity.GroupDefault, p.Group)
}

func TestBuildDirectory_FromConfig(t *testing.T) {
	dir, err := buildDirectory(&config.Config{
		Principals: map[string]config.PrincipalConfig{
			"dana": {Name: "Dana R", Role: "analyst", Group: "fraud-team"},
		},
	})
	require.NoError(t, err)

	p, err := dir.Lookup("dana")
	require.NoError(t, err)
	assert.Equal(t, identity.RoleAnalyst, p.Role)
	assert.Equal(t, "fraud-team", p.Group)

	_, err = dir.Lookup("local")
	require.Error(t, err, "built-in admin only exists when no principals are configured")
}
