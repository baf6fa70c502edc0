// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgerguard-dev/ledgerguard/internal/analysis"
	"github.com/ledgerguard-dev/ledgerguard/internal/store"
	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

func newChatCmd() *cobra.Command {
	var contextText string

	cmd := &cobra.Command{
		Use:   "chat <question>",
		Short: "Ask a compliance question in conversational mode",
		Long:  "Chat runs the same tool-equipped loop as analyze but returns a free-text answer. Chat turns never carry a risk score.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := strings.TrimSpace(args[0])
			if input == "" {
				return lgerr.New(lgerr.CodeCLIInputInvalid, "question must not be empty")
			}

			app, principal, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			_, result, err := app.Processor.Process(cmd.Context(), principal, analysis.CreateRequest{
				InputText: input,
				Context:   contextText,
			}, store.ModeConversational)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&contextText, "context", "", "additional context for the question")
	return cmd
}
