// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgerguard-dev/ledgerguard/internal/store"
	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

func newResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Browse analysis results",
	}

	cmd.AddCommand(
		newResultsRecentCmd(),
		newResultsHighScoreCmd(),
		newResultsByGroupCmd(),
		newResultsReviewCmd(),
		newResultsSimilarCmd(),
	)
	return cmd
}

func newResultsRecentCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recent visible results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, principal, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			results, err := app.Processor.Recent(cmd.Context(), principal, limit)
			if err != nil {
				return err
			}
			printResultList(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of results")
	return cmd
}

func newResultsHighScoreCmd() *cobra.Command {
	var (
		limit    int
		minScore int
	)

	cmd := &cobra.Command{
		Use:   "high-score",
		Short: "List visible results at or above a score floor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, principal, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			results, err := app.Processor.HighScore(cmd.Context(), principal, minScore, limit)
			if err != nil {
				return err
			}
			printResultList(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().IntVar(&minScore, "min-score", 70, "score floor")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of results")
	return cmd
}

func newResultsByGroupCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "by-group <group>",
		Short: "List a group's results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, principal, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			results, err := app.Processor.ByGroup(cmd.Context(), principal, args[0], limit)
			if err != nil {
				return err
			}
			printResultList(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of results")
	return cmd
}

func newResultsReviewCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "review",
		Short: "List results prioritized for human review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, principal, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			results, err := app.Processor.NeedingReview(cmd.Context(), principal, limit)
			if err != nil {
				return err
			}
			printResultList(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of results")
	return cmd
}

func newResultsSimilarCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "similar <query>",
		Short: "Find past cases similar to a description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, principal, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			matches, err := app.Processor.SimilarCases(cmd.Context(), principal, args[0], k)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(matches) == 0 {
				fmt.Fprintln(out, "No similar cases found. Is the similarity index enabled?")
				return nil
			}
			for _, m := range matches {
				level, _ := m.Metadata["risk_level"].(string)
				fmt.Fprintf(out, "result #%d  distance=%.4f  %s\n", m.ResultID, m.Distance, level)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", 5, "number of matches to return")
	return cmd
}

// parseResultID parses a positional result id argument.
func parseResultID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, lgerr.Errorf(lgerr.CodeCLIInputInvalid, "invalid result id %q", arg)
	}
	return id, nil
}

func printResultList(w io.Writer, results []*store.AnalysisResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	for _, r := range results {
		score := "-"
		if r.Score != nil {
			score = strconv.Itoa(*r.Score)
		}
		level := string(r.RiskLevel)
		if level == "" {
			level = "-"
		}
		flags := ""
		if r.Redacted {
			flags += " [redacted]"
		}
		if r.ValidationStatus != "" && r.ValidationStatus != store.ValidationStatusPass {
			flags += " [" + strings.ToLower(r.ValidationStatus) + "]"
		}
		if r.Feedback == nil && r.Mode == store.ModeAnalysis {
			flags += " [pending review]"
		}
		fmt.Fprintf(w, "#%-5d %-14s score=%-4s %-8s group=%s%s\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), score, level, r.Group, flags)
	}
}

func printResult(w io.Writer, r *store.AnalysisResult) {
	if r.Score != nil {
		fmt.Fprintf(w, "Score:      %d\n", *r.Score)
	} else if r.Redacted {
		fmt.Fprintf(w, "Score:      [redacted]\n")
	}
	if r.RiskLevel != "" {
		fmt.Fprintf(w, "Risk level: %s\n", r.RiskLevel)
	}
	if len(r.Categories) > 0 {
		fmt.Fprintf(w, "Categories: %s\n", strings.Join(r.Categories, ", "))
	}
	if len(r.RiskFactors) > 0 {
		fmt.Fprintln(w, "Risk factors:")
		for _, f := range r.RiskFactors {
			fmt.Fprintf(w, "  - %s\n", f)
		}
	}
	fmt.Fprintf(w, "\n%s\n", r.Summary)
	if r.ValidationStatus != "" && r.ValidationStatus != store.ValidationStatusPass {
		fmt.Fprintf(w, "\nValidation: %s (%s)\n", r.ValidationStatus, r.ValidationDetails)
	}
}
