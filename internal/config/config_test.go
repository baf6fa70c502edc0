// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerguard-dev/ledgerguard/internal/config"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-sonnet-4-5", cfg.Models.Default)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "ledgerguard.db", cfg.Storage.Path)
	assert.Equal(t, 8, cfg.Orchestrator.MaxIterations)
	assert.Equal(t, 3, cfg.Orchestrator.RetryAttempts)
	assert.Equal(t, 50, cfg.Validation.MinSummaryLength)
	assert.Equal(t, 70, cfg.Validation.SensitiveScoreThreshold)
	assert.False(t, cfg.Similarity.Enabled)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "ledgerguard.yaml")

	content := `
models:
  default: "openai/gpt-4.1"
providers:
  openai:
    api_key: "test-key"
storage:
  backend: memory
principals:
  dana:
    name: "Dana R"
    role: analyst
    group: fraud-team
`
	err := os.WriteFile(cfgPath, []byte(content), 0o644)
	require.NoError(t, err)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4.1", cfg.Models.Default)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	require.Contains(t, cfg.Principals, "dana")
	assert.Equal(t, "analyst", cfg.Principals["dana"].Role)
	assert.Equal(t, "fraud-team", cfg.Principals["dana"].Group)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LEDGERGUARD_STORAGE_PATH", "/var/lib/ledgerguard/risk.db")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/ledgerguard/risk.db", cfg.Storage.Path)
}

func TestLoad_ValidationCalledAtLoadTime(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "ledgerguard.yaml")

	content := `
storage:
  backend: "postgres"
`
	err := os.WriteFile(cfgPath, []byte(content), 0o644)
	require.NoError(t, err)

	_, err = config.Load(cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.backend")
}

func TestValidate_MissingProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Models.Default = "anthropic/claude-sonnet-4-5"
	cfg.Providers = map[string]config.ProviderConfig{
		"openai": {APIKey: "k"},
	}

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), `references provider "anthropic"`)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Orchestrator.MaxIterations = 0
	cfg.Validation.SensitiveScoreThreshold = 400
	cfg.Principals = map[string]config.PrincipalConfig{
		"bad": {Role: "superuser"},
	}

	errs := cfg.Validate()
	assert.Len(t, errs, 3, "validation reports every problem, not just the first")
}

func TestValidate_SimilarityRequiresModelWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Similarity = config.SimilarityConfig{Enabled: true, Dimensions: 1536}

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "similarity.embedding_model")
}

func TestProviderFromModel(t *testing.T) {
	assert.Equal(t, "anthropic", config.ProviderFromModel("anthropic/claude-sonnet-4-5"))
	assert.Equal(t, "gemini-2.5-flash", config.ProviderFromModel("gemini-2.5-flash"))
	assert.Equal(t, "claude-sonnet-4-5", config.ModelFromRef("anthropic/claude-sonnet-4-5"))
	assert.Equal(t, "gpt-4.1", config.ModelFromRef("gpt-4.1"))
}

func validConfig() *config.Config {
	return &config.Config{
		Models: config.ModelsConfig{Default: "anthropic/claude-sonnet-4-5"},
		Orchestrator: config.OrchestratorConfig{
			MaxIterations:      8,
			CallTimeoutSeconds: 120,
			RetryAttempts:      3,
			RetryBaseDelayMS:   500,
			Temperature:        0.2,
			MaxTokens:          1500,
		},
		Validation: config.ValidationConfig{MinSummaryLength: 50, SensitiveScoreThreshold: 70},
		Storage:    config.StorageConfig{Backend: "memory"},
	}
}
