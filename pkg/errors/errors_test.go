// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CarriesCode(t *testing.T) {
	err := lgerr.New(lgerr.CodeIdentityPermissionDenied, "capability missing",
		lgerr.FieldPrincipal("carol"))
	require.Error(t, err)

	assert.Equal(t, lgerr.CodeIdentityPermissionDenied, lgerr.CodeOf(err))
	assert.True(t, lgerr.HasCode(err, lgerr.CodeIdentityPermissionDenied))
	assert.Equal(t, "carol", lgerr.FieldsOf(err)["principal"])
}

func TestWrap_PreservesChain(t *testing.T) {
	base := stderrors.New("connection refused")
	err := lgerr.Wrapf(base, lgerr.CodeProviderUpstreamFailure, "calling model endpoint")

	assert.True(t, stderrors.Is(err, base))
	assert.Equal(t, lgerr.CodeProviderUpstreamFailure, lgerr.CodeOf(err))
}

func TestWrap_NilIsNil(t *testing.T) {
	assert.NoError(t, lgerr.Wrap(nil, lgerr.CodeStoreDatabaseFailure, "x"))
	assert.NoError(t, lgerr.Wrapf(nil, lgerr.CodeStoreDatabaseFailure, "x"))
	assert.NoError(t, lgerr.With(nil, lgerr.Field("k", "v")))
}

func TestWith_KeepsOriginalCode(t *testing.T) {
	err := lgerr.New(lgerr.CodeToolsUnknownTool, "no such tool")
	err = lgerr.With(err, lgerr.FieldTool("check_astrology"))

	assert.Equal(t, lgerr.CodeToolsUnknownTool, lgerr.CodeOf(err))
	assert.Equal(t, "check_astrology", lgerr.FieldsOf(err)["tool"])
}

func TestClassifiers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"permission denied", lgerr.New(lgerr.CodeIdentityPermissionDenied, "no"), lgerr.IsPermissionDenied, true},
		{"group denied", lgerr.New(lgerr.CodeIdentityGroupDenied, "no"), lgerr.IsPermissionDenied, true},
		{"upstream", lgerr.New(lgerr.CodeProviderUpstreamFailure, "down"), lgerr.IsUpstreamFailure, true},
		{"protocol violation", lgerr.New(lgerr.CodeAgentProtocolViolation, "silent model"), lgerr.IsProtocolViolation, true},
		{"unknown tool", lgerr.New(lgerr.CodeToolsUnknownTool, "nope"), lgerr.IsUnknownTool, true},
		{"not found", lgerr.New(lgerr.CodeStoreResultNotFound, "gone"), lgerr.IsNotFound, true},
		{"invalid input", lgerr.New(lgerr.CodeStoreInvalidInput, "bad"), lgerr.IsInvalidInput, true},
		{"plain error is none of them", fmt.Errorf("plain"), lgerr.IsPermissionDenied, false},
		{"nil", nil, lgerr.IsUpstreamFailure, false},
		{"denied is not upstream", lgerr.New(lgerr.CodeIdentityPermissionDenied, "no"), lgerr.IsUpstreamFailure, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, lgerr.Code(""), lgerr.CodeOf(fmt.Errorf("plain")))
	assert.Nil(t, lgerr.FieldsOf(fmt.Errorf("plain")))
}
