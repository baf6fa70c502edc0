// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root ledgerguard command with all subcommands
// registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerguard",
		Short:         "LedgerGuard — agentic transaction-risk analysis",
		Long:          "LedgerGuard analyzes transactions for AML and fraud risk through a bounded agentic loop with deterministic verification tools, permissioned access, and a full audit trail.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	// Global flags.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("as", "local", "principal key to act as")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	// Register subcommands
	root.AddCommand(
		newAnalyzeCmd(),
		newChatCmd(),
		newResultsCmd(),
		newFeedbackCmd(),
		newStatsCmd(),
		newVersionCmd(),
	)

	return root
}
