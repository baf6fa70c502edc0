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

func newAnalyzeCmd() *cobra.Command {
	var (
		contextText string
		group       string
		amount      float64
		currency    string
		sender      string
		receiver    string
	)

	cmd := &cobra.Command{
		Use:   "analyze <description>",
		Short: "Run a risk analysis on a transaction description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := strings.TrimSpace(args[0])
			if input == "" {
				return lgerr.New(lgerr.CodeCLIInputInvalid, "transaction description must not be empty")
			}

			app, principal, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			req := analysis.CreateRequest{
				InputText: input,
				Context:   contextText,
				Group:     group,
			}
			if cmd.Flags().Changed("amount") || currency != "" {
				req.Transaction = &store.TransactionAttrs{
					Amount:     amount,
					Currency:   currency,
					SenderID:   sender,
					ReceiverID: receiver,
				}
			}

			request, result, err := app.Processor.Process(cmd.Context(), principal, req, store.ModeAnalysis)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Request #%d (group %s)\n\n", request.ID, request.Group)
			printResult(out, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&contextText, "context", "", "additional context for the analysis")
	cmd.Flags().StringVar(&group, "group", "", "group tag for the request (default-group principals only)")
	cmd.Flags().Float64Var(&amount, "amount", 0, "transaction amount")
	cmd.Flags().StringVar(&currency, "currency", "", "transaction currency code")
	cmd.Flags().StringVar(&sender, "sender", "", "sender account id")
	cmd.Flags().StringVar(&receiver, "receiver", "", "receiver account id")

	return cmd
}
