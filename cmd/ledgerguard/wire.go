// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package main

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerguard-dev/ledgerguard/internal/agent"
	"github.com/ledgerguard-dev/ledgerguard/internal/analysis"
	"github.com/ledgerguard-dev/ledgerguard/internal/config"
	"github.com/ledgerguard-dev/ledgerguard/internal/identity"
	"github.com/ledgerguard-dev/ledgerguard/internal/provider"
	anthropicprov "github.com/ledgerguard-dev/ledgerguard/internal/provider/anthropic"
	googleprov "github.com/ledgerguard-dev/ledgerguard/internal/provider/google"
	openaiprov "github.com/ledgerguard-dev/ledgerguard/internal/provider/openai"
	"github.com/ledgerguard-dev/ledgerguard/internal/store"
	"github.com/ledgerguard-dev/ledgerguard/internal/store/sqlite"
	"github.com/ledgerguard-dev/ledgerguard/internal/tools"
	"github.com/ledgerguard-dev/ledgerguard/internal/validation"
	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

// App holds all wired subsystems and manages their lifecycle.
type App struct {
	Store     store.Store
	Index     store.CaseIndex
	Provider  provider.Provider
	Processor *analysis.Processor
	Directory *identity.Directory
}

// WireApp creates all subsystems and wires them together from config.
func WireApp(cfg *config.Config) (*App, error) {
	// 1. Store.
	var st store.Store
	switch cfg.Storage.Backend {
	case "memory":
		st = store.NewMemoryStore()
	case "sqlite":
		var err error
		st, err = sqlite.New(cfg.Storage.Path)
		if err != nil {
			return nil, lgerr.Wrap(err, lgerr.CodeCLISetupFailure, "opening sqlite store")
		}
	default:
		return nil, lgerr.Errorf(lgerr.CodeStoreBackendUnsupported, "unknown storage backend %q", cfg.Storage.Backend)
	}

	// 2. Provider for the configured default model.
	prov, err := buildProvider(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	// 3. Optional similar-case index + embedder.
	var index store.CaseIndex
	var embedder provider.Embedder
	if cfg.Similarity.Enabled {
		index, embedder, err = buildSimilarity(cfg, prov)
		if err != nil {
			_ = st.Close()
			_ = prov.Close()
			return nil, err
		}
	}

	// 4. Tool registry and orchestrator.
	registry, err := tools.NewStandardRegistry(nil)
	if err != nil {
		_ = st.Close()
		_ = prov.Close()
		return nil, lgerr.Wrap(err, lgerr.CodeCLISetupFailure, "building tool registry")
	}

	temp := float32(cfg.Orchestrator.Temperature)
	orch, err := agent.New(agent.Config{
		Provider:      prov,
		Registry:      registry,
		MaxIterations: cfg.Orchestrator.MaxIterations,
		CallTimeout:   time.Duration(cfg.Orchestrator.CallTimeoutSeconds) * time.Second,
		Retry: &provider.RetryPolicy{
			MaxAttempts: cfg.Orchestrator.RetryAttempts,
			BaseDelay:   time.Duration(cfg.Orchestrator.RetryBaseDelayMS) * time.Millisecond,
		},
		Temperature: &temp,
		MaxTokens:   cfg.Orchestrator.MaxTokens,
	})
	if err != nil {
		_ = st.Close()
		_ = prov.Close()
		return nil, lgerr.Wrap(err, lgerr.CodeCLISetupFailure, "building orchestrator")
	}

	// 5. Processor.
	validator := validation.NewPipeline()
	validator.MinSummaryLength = cfg.Validation.MinSummaryLength

	proc, err := analysis.NewProcessor(analysis.Config{
		Requests:     st.Requests(),
		Results:      st.Results(),
		Audit:        st.Audit(),
		Index:        index,
		Embedder:     embedder,
		Orchestrator: orch,
		Validator:    validator,
		Redactor:     identity.Redactor{Threshold: cfg.Validation.SensitiveScoreThreshold},
	})
	if err != nil {
		_ = st.Close()
		_ = prov.Close()
		return nil, lgerr.Wrap(err, lgerr.CodeCLISetupFailure, "building processor")
	}

	// 6. Principal directory.
	dir, err := buildDirectory(cfg)
	if err != nil {
		_ = st.Close()
		_ = prov.Close()
		return nil, err
	}

	return &App{
		Store:     st,
		Index:     index,
		Provider:  prov,
		Processor: proc,
		Directory: dir,
	}, nil
}

// Close releases all resources held by the app.
func (a *App) Close() error {
	var errs []error
	if a.Index != nil {
		if err := a.Index.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Provider != nil {
		if err := a.Provider.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildProvider resolves the configured default model to a provider adapter.
func buildProvider(cfg *config.Config) (provider.Provider, error) {
	name := config.ProviderFromModel(cfg.Models.Default)
	model := config.ModelFromRef(cfg.Models.Default)
	pc := cfg.Providers[name]

	switch name {
	case "anthropic":
		return anthropicprov.New(anthropicprov.Config{APIKey: pc.APIKey, Model: model, BaseURL: pc.Endpoint})
	case "openai":
		return openaiprov.New(openaiprov.Config{APIKey: pc.APIKey, Model: model, BaseURL: pc.Endpoint})
	case "google":
		return googleprov.New(googleprov.Config{APIKey: pc.APIKey, Model: model})
	default:
		return nil, lgerr.Errorf(lgerr.CodeProviderNotConfigured, "unknown provider %q in models.default", name)
	}
}

// buildSimilarity wires the sqlite-vec case index and an embedder from the
// default provider. Anthropic exposes no embeddings API, so similarity
// requires an openai or google default.
func buildSimilarity(cfg *config.Config, prov provider.Provider) (store.CaseIndex, provider.Embedder, error) {
	var embedder provider.Embedder
	switch p := prov.(type) {
	case *openaiprov.Provider:
		embedder = p.NewEmbedder(cfg.Similarity.EmbeddingModel, cfg.Similarity.Dimensions)
	case *googleprov.Provider:
		embedder = p.NewEmbedder(cfg.Similarity.EmbeddingModel, cfg.Similarity.Dimensions)
	default:
		return nil, nil, lgerr.Errorf(lgerr.CodeCLISetupFailure,
			"similarity requires an embedding-capable provider (openai or google), default is %q", prov.Name())
	}

	path := strings.TrimSuffix(cfg.Storage.Path, ".db") + "-vectors.db"
	index, err := sqlite.NewCaseIndex(path, cfg.Similarity.Dimensions)
	if err != nil {
		return nil, nil, lgerr.Wrap(err, lgerr.CodeCLISetupFailure, "opening case index")
	}
	slog.Info("similar-case index enabled", "path", path, "dimensions", cfg.Similarity.Dimensions)
	return index, embedder, nil
}

// buildDirectory loads the principal directory from config. With no
// principals configured a single local admin is provided so the CLI works
// out of the box.
func buildDirectory(cfg *config.Config) (*identity.Directory, error) {
	principals := make(map[string]identity.Principal, len(cfg.Principals)+1)
	for key, pc := range cfg.Principals {
		principals[key] = identity.Principal{
			ID:    pc.ID,
			Name:  pc.Name,
			Role:  identity.Role(pc.Role),
			Group: pc.Group,
		}
	}
	if len(principals) == 0 {
		principals["local"] = identity.Principal{Name: "Local Admin", Role: identity.RoleAdmin}
	}

	dir, err := identity.NewDirectory(principals)
	if err != nil {
		return nil, lgerr.Wrap(err, lgerr.CodeCLISetupFailure, "building principal directory")
	}
	return dir, nil
}

// loadApp wires the app for a command invocation and resolves the calling
// principal from the --as flag.
func loadApp(cmd *cobra.Command) (*App, identity.Principal, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, identity.Principal{}, err
	}

	app, err := WireApp(cfg)
	if err != nil {
		return nil, identity.Principal{}, err
	}

	key, _ := cmd.Flags().GetString("as")
	principal, err := app.Directory.Lookup(key)
	if err != nil {
		_ = app.Close()
		return nil, identity.Principal{}, err
	}
	return app, principal, nil
}
