// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package openai

import (
	"context"

	openaisdk "github.com/openai/openai-go"

	"github.com/ledgerguard-dev/ledgerguard/internal/provider"
	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

// DefaultEmbeddingModel is the embedding model used when none is configured.
const DefaultEmbeddingModel = "text-embedding-3-small"

// DefaultEmbeddingDimensions matches text-embedding-3-small output.
const DefaultEmbeddingDimensions = 1536

// Embedder implements provider.Embedder using the OpenAI Embeddings API.
type Embedder struct {
	client     openaisdk.Client
	model      string
	dimensions int
}

var _ provider.Embedder = (*Embedder)(nil)

// NewEmbedder creates an embedding client sharing the chat provider's
// credentials. Model defaults to text-embedding-3-small.
func (p *Provider) NewEmbedder(model string, dimensions int) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &Embedder{
		client:     p.client,
		model:      model,
		dimensions: dimensions,
	}
}

func (e *Embedder) Dimensions() int { return e.dimensions }

// Embed generates an embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, lgerr.New(lgerr.CodeProviderRequestInvalid, "openai: empty embedding input")
	}

	resp, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model: openaisdk.EmbeddingModel(e.model),
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
	})
	if err != nil {
		return nil, lgerr.Wrap(err, lgerr.CodeProviderUpstreamFailure, "openai: embedding request failed")
	}
	if len(resp.Data) == 0 {
		return nil, lgerr.New(lgerr.CodeProviderResponseInvalid, "openai: no embeddings returned")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}
