// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"

	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

// Config is the top-level LedgerGuard configuration.
type Config struct {
	Providers    map[string]ProviderConfig  `mapstructure:"providers"`
	Models       ModelsConfig               `mapstructure:"models"`
	Orchestrator OrchestratorConfig         `mapstructure:"orchestrator"`
	Validation   ValidationConfig           `mapstructure:"validation"`
	Storage      StorageConfig              `mapstructure:"storage"`
	Similarity   SimilarityConfig           `mapstructure:"similarity"`
	Principals   map[string]PrincipalConfig `mapstructure:"principals"`
}

// ProviderConfig holds credentials and endpoint for an LLM provider.
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// ModelsConfig controls model selection.
type ModelsConfig struct {
	Default  string   `mapstructure:"default"`
	Failover []string `mapstructure:"failover"`
}

// OrchestratorConfig bounds the verification loop.
type OrchestratorConfig struct {
	MaxIterations      int     `mapstructure:"max_iterations"`
	CallTimeoutSeconds int     `mapstructure:"call_timeout_seconds"`
	RetryAttempts      int     `mapstructure:"retry_attempts"`
	RetryBaseDelayMS   int     `mapstructure:"retry_base_delay_ms"`
	Temperature        float64 `mapstructure:"temperature"`
	MaxTokens          int     `mapstructure:"max_tokens"`
}

// ValidationConfig tunes the post-hoc verdict checks and redaction.
type ValidationConfig struct {
	MinSummaryLength        int `mapstructure:"min_summary_length"`
	SensitiveScoreThreshold int `mapstructure:"sensitive_score_threshold"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// SimilarityConfig controls the similar-case vector index.
type SimilarityConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	Dimensions     int    `mapstructure:"dimensions"`
}

// PrincipalConfig is one entry of the local principal directory. The
// directory stands in for the production identity provider.
type PrincipalConfig struct {
	ID    string `mapstructure:"id"`
	Name  string `mapstructure:"name"`
	Role  string `mapstructure:"role"`
	Group string `mapstructure:"group"`
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix LEDGERGUARD_).
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("models.default", "anthropic/claude-sonnet-4-5")
	v.SetDefault("orchestrator.max_iterations", 8)
	v.SetDefault("orchestrator.call_timeout_seconds", 120)
	v.SetDefault("orchestrator.retry_attempts", 3)
	v.SetDefault("orchestrator.retry_base_delay_ms", 500)
	v.SetDefault("orchestrator.temperature", 0.2)
	v.SetDefault("orchestrator.max_tokens", 1500)
	v.SetDefault("validation.min_summary_length", 50)
	v.SetDefault("validation.sensitive_score_threshold", 70)
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", "ledgerguard.db")
	v.SetDefault("similarity.enabled", false)
	v.SetDefault("similarity.embedding_model", "text-embedding-3-small")
	v.SetDefault("similarity.dimensions", 1536)

	// Environment
	v.SetEnvPrefix("LEDGERGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns a slice
// of all validation errors found, collecting all issues rather than
// stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateModels()...)
	errs = append(errs, c.validateOrchestrator()...)
	errs = append(errs, c.validateValidation()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateSimilarity()...)
	errs = append(errs, c.validatePrincipals()...)

	return errs
}

func (c *Config) validateModels() []error {
	var errs []error

	if c.Models.Default == "" {
		errs = append(errs, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue, "config: models.default must not be empty"))
	} else if !strings.Contains(c.Models.Default, "/") {
		errs = append(errs, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue,
			"config: models.default must be in \"provider/model\" format, got %q",
			c.Models.Default,
		))
	} else if c.Providers != nil {
		// Only cross-reference providers when the providers section exists
		// in config. A nil map means defaults only, which is valid.
		providerName := ProviderFromModel(c.Models.Default)
		if _, ok := c.Providers[providerName]; !ok {
			errs = append(errs, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue,
				"config: models.default %q references provider %q which is not configured",
				c.Models.Default, providerName,
			))
		}
	}

	for i, model := range c.Models.Failover {
		if !strings.Contains(model, "/") {
			errs = append(errs, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue,
				"config: models.failover[%d] must be in \"provider/model\" format, got %q",
				i, model,
			))
			continue
		}
		if c.Providers != nil {
			providerName := ProviderFromModel(model)
			if _, ok := c.Providers[providerName]; !ok {
				errs = append(errs, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue,
					"config: models.failover[%d] %q references provider %q which is not configured",
					i, model, providerName,
				))
			}
		}
	}

	return errs
}

func (c *Config) validateOrchestrator() []error {
	var errs []error

	if c.Orchestrator.MaxIterations <= 0 {
		errs = append(errs, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue,
			"config: orchestrator.max_iterations must be greater than 0, got %d",
			c.Orchestrator.MaxIterations,
		))
	}
	if c.Orchestrator.CallTimeoutSeconds <= 0 {
		errs = append(errs, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue,
			"config: orchestrator.call_timeout_seconds must be greater than 0, got %d",
			c.Orchestrator.CallTimeoutSeconds,
		))
	}
	if c.Orchestrator.RetryAttempts <= 0 {
		errs = append(errs, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue,
			"config: orchestrator.retry_attempts must be greater than 0, got %d",
			c.Orchestrator.RetryAttempts,
		))
	}
	if c.Orchestrator.RetryBaseDelayMS <= 0 {
		errs = append(errs, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue,
			"config: orchestrator.retry_base_delay_ms must be greater than 0, got %d",
			c.Orchestrator.RetryBaseDelayMS,
		))
	}
	if c.Orchestrator.Temperature < 0 || c.Orchestrator.Temperature > 2 {
		errs = append(errs, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue,
			"config: orchestrator.temperature must be between 0 and 2, got %g",
			c.Orchestrator.Temperature,
		))
	}
	if c.Orchestrator.MaxTokens <= 0 {
		errs = append(errs, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue,
			"config: orchestrator.max_tokens must be greater than 0, got %d",
			c.Orchestrator.MaxTokens,
		))
	}

	return errs
}

func (c *Config) validateValidation() []error {
	var errs []error

	if c.Validation.MinSummaryLength <= 0 {
		errs = append(errs, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue,
			"config: validation.min_summary_length must be greater than 0, got %d",
			c.Validation.MinSummaryLength,
		))
	}
	if c.Validation.SensitiveScoreThreshold < 1 || c.Validation.SensitiveScoreThreshold > 100 {
		errs = append(errs, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue,
			"config: validation.sensitive_score_threshold must be between 1 and 100, got %d",
			c.Validation.SensitiveScoreThreshold,
		))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true, "memory": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite, memory], got %q",
			c.Storage.Backend,
		))
	}
	if c.Storage.Backend == "sqlite" && c.Storage.Path == "" {
		errs = append(errs, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue, "config: storage.path must not be empty for the sqlite backend"))
	}

	return errs
}

func (c *Config) validateSimilarity() []error {
	var errs []error

	if !c.Similarity.Enabled {
		return nil
	}
	if c.Similarity.EmbeddingModel == "" {
		errs = append(errs, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue, "config: similarity.embedding_model must not be empty when similarity is enabled"))
	}
	if c.Similarity.Dimensions <= 0 {
		errs = append(errs, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue,
			"config: similarity.dimensions must be greater than 0, got %d",
			c.Similarity.Dimensions,
		))
	}

	return errs
}

func (c *Config) validatePrincipals() []error {
	var errs []error

	validRoles := map[string]bool{"viewer": true, "analyst": true, "senior_analyst": true, "admin": true}
	for key, p := range c.Principals {
		if !validRoles[p.Role] {
			errs = append(errs, lgerr.Errorf(lgerr.CodeConfigValidateInvalidValue,
				"config: principals.%s.role must be one of [viewer, analyst, senior_analyst, admin], got %q",
				key, p.Role,
			))
		}
	}

	return errs
}

// ProviderFromModel extracts the provider prefix from a "provider/model"
// string.
func ProviderFromModel(model string) string {
	if idx := strings.Index(model, "/"); idx > 0 {
		return model[:idx]
	}
	return model
}

// ModelFromRef extracts the bare model name from a "provider/model" string.
func ModelFromRef(model string) string {
	if idx := strings.Index(model, "/"); idx >= 0 {
		return model[idx+1:]
	}
	return model
}
