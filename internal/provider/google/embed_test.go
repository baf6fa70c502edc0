// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package google

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

func TestNewEmbedder_Defaults(t *testing.T) {
	p, err := New(Config{APIKey: "test-key"})
	require.NoError(t, err)

	e := p.NewEmbedder("", 0)
	assert.Equal(t, DefaultEmbeddingModel, e.model)
	assert.Equal(t, DefaultEmbeddingDimensions, e.Dimensions())

	e = p.NewEmbedder("gemini-embedding-001", 768)
	assert.Equal(t, 768, e.Dimensions())
}

func TestEmbed_RejectsEmptyInput(t *testing.T) {
	p, err := New(Config{APIKey: "test-key"})
	require.NoError(t, err)

	_, err = p.NewEmbedder("", 0).Embed(context.Background(), "")
	require.Error(t, err)
	assert.True(t, lgerr.HasCode(err, lgerr.CodeProviderRequestInvalid))
}
