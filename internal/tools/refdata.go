// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package tools

import (
	_ "embed"

	"gopkg.in/yaml.v3"

	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

//go:embed refdata/watchlist.yaml
var watchlistYAML []byte

//go:embed refdata/pep.yaml
var pepYAML []byte

//go:embed refdata/thresholds.yaml
var thresholdsYAML []byte

// watchlistEntry is one sanctioned party on the consolidated watchlist.
type watchlistEntry struct {
	Name     string `yaml:"name"`
	List     string `yaml:"list"`
	Reason   string `yaml:"reason"`
	Severity string `yaml:"severity"`
	Added    string `yaml:"added"`
}

type watchlist struct {
	Entries      []watchlistEntry `yaml:"entries"`
	CheckedLists []string         `yaml:"checked_lists"`
}

// pepEntry is one politically exposed person on the mock registry.
type pepEntry struct {
	Name      string `yaml:"name"`
	Position  string `yaml:"position"`
	Country   string `yaml:"country"`
	RiskLevel string `yaml:"risk_level"`
	Active    bool   `yaml:"active"`
}

type pepRegistry struct {
	Entries []pepEntry `yaml:"entries"`
}

// thresholdTable holds per-currency CTR reporting thresholds.
type thresholdTable struct {
	Default            float64            `yaml:"default"`
	Currencies         map[string]float64 `yaml:"currencies"`
	StructuringPercent float64            `yaml:"structuring_percent"`
}

func loadWatchlist() (*watchlist, error) {
	var wl watchlist
	if err := yaml.Unmarshal(watchlistYAML, &wl); err != nil {
		return nil, lgerr.Wrap(err, lgerr.CodeToolsRefDataInvalid, "parsing embedded watchlist")
	}
	if len(wl.Entries) == 0 {
		return nil, lgerr.New(lgerr.CodeToolsRefDataInvalid, "embedded watchlist has no entries")
	}
	return &wl, nil
}

func loadPEPRegistry() (*pepRegistry, error) {
	var reg pepRegistry
	if err := yaml.Unmarshal(pepYAML, &reg); err != nil {
		return nil, lgerr.Wrap(err, lgerr.CodeToolsRefDataInvalid, "parsing embedded PEP registry")
	}
	return &reg, nil
}

func loadThresholdTable() (*thresholdTable, error) {
	var tbl thresholdTable
	if err := yaml.Unmarshal(thresholdsYAML, &tbl); err != nil {
		return nil, lgerr.Wrap(err, lgerr.CodeToolsRefDataInvalid, "parsing embedded threshold table")
	}
	if tbl.Default <= 0 {
		return nil, lgerr.New(lgerr.CodeToolsRefDataInvalid, "threshold table default must be positive")
	}
	if tbl.StructuringPercent <= 0 || tbl.StructuringPercent >= 1 {
		return nil, lgerr.New(lgerr.CodeToolsRefDataInvalid, "structuring_percent must be in (0,1)")
	}
	return &tbl, nil
}
