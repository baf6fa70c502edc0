// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/ledgerguard-dev/ledgerguard/internal/provider"
	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

// DefaultEmbeddingModel is the embedding model used when none is configured.
const DefaultEmbeddingModel = "gemini-embedding-001"

// DefaultEmbeddingDimensions matches gemini-embedding-001 output.
const DefaultEmbeddingDimensions = 3072

// Embedder implements provider.Embedder using the Gemini embedding API with
// semantic-similarity task typing.
type Embedder struct {
	client     *genai.Client
	model      string
	dimensions int
}

var _ provider.Embedder = (*Embedder)(nil)

// NewEmbedder creates an embedding client sharing the chat provider's
// credentials. Model defaults to gemini-embedding-001.
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
		return nil, lgerr.New(lgerr.CodeProviderRequestInvalid, "google: empty embedding input")
	}

	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	dims := int32(e.dimensions)
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents,
		&genai.EmbedContentConfig{
			TaskType:             "SEMANTIC_SIMILARITY",
			OutputDimensionality: &dims,
		},
	)
	if err != nil {
		return nil, lgerr.Wrap(err, lgerr.CodeProviderUpstreamFailure, "google: embedding request failed")
	}
	if len(result.Embeddings) == 0 {
		return nil, lgerr.New(lgerr.CodeProviderResponseInvalid, "google: no embeddings returned")
	}

	return result.Embeddings[0].Values, nil
}
