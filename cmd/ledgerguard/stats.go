// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Aggregate statistics over visible results",
	}
	cmd.AddCommand(newStatsDashboardCmd(), newStatsFeedbackCmd())
	return cmd
}

func newStatsDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Summarize recent visible results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, principal, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			stats, err := app.Processor.DashboardStats(cmd.Context(), principal)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total analyzed:   %d\n", stats.TotalAnalyzed)
			fmt.Fprintf(out, "Chat turns:       %d\n", stats.ChatCount)
			fmt.Fprintf(out, "High score (50+): %d\n", stats.HighScoreCount)
			fmt.Fprintf(out, "Critical (76+):   %d\n", stats.CriticalCount)
			fmt.Fprintf(out, "Average score:    %.1f\n", stats.AverageScore)
			fmt.Fprintf(out, "Groups visible:   %s\n", strings.Join(stats.GroupsVisible, ", "))
			return nil
		},
	}
}

func newStatsFeedbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feedback",
		Short: "Summarize the human feedback loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, principal, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			stats, err := app.Processor.FeedbackStats(cmd.Context(), principal)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total results:    %d\n", stats.TotalResults)
			fmt.Fprintf(out, "With feedback:    %d (%.0f%%)\n", stats.WithFeedback, stats.FeedbackRate*100)
			fmt.Fprintf(out, "Agree/disagree:   %d/%d\n", stats.PositiveFeedback, stats.NegativeFeedback)
			fmt.Fprintf(out, "Pending review:   %d\n", stats.PendingFeedback)
			if stats.AccuracyEstimate != nil {
				fmt.Fprintf(out, "Accuracy estimate: %.0f%%\n", *stats.AccuracyEstimate*100)
			}
			if len(stats.ValidationFailures) > 0 {
				fmt.Fprintln(out, "Validation failures:")
				statuses := make([]string, 0, len(stats.ValidationFailures))
				for s := range stats.ValidationFailures {
					statuses = append(statuses, s)
				}
				sort.Strings(statuses)
				for _, s := range statuses {
					fmt.Fprintf(out, "  %-20s %d\n", s, stats.ValidationFailures[s])
				}
			}
			return nil
		},
	}
}
