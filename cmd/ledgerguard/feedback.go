// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	lgerr "github.com/ledgerguard-dev/ledgerguard/pkg/errors"
)

func newFeedbackCmd() *cobra.Command {
	var (
		agree    bool
		disagree bool
		comment  string
	)

	cmd := &cobra.Command{
		Use:   "feedback <result-id>",
		Short: "Record whether an analysis verdict was correct",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if agree == disagree {
				return lgerr.New(lgerr.CodeCLIInputInvalid, "exactly one of --agree or --disagree is required")
			}
			id, err := parseResultID(args[0])
			if err != nil {
				return err
			}

			app, principal, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			updated, err := app.Processor.SubmitFeedback(cmd.Context(), principal, id, agree, comment)
			if err != nil {
				return err
			}

			verdict := "disagree"
			if agree {
				verdict = "agree"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s on result #%d by %s\n", verdict, updated.ID, updated.FeedbackBy)
			return nil
		},
	}

	cmd.Flags().BoolVar(&agree, "agree", false, "the verdict was correct")
	cmd.Flags().BoolVar(&disagree, "disagree", false, "the verdict was incorrect")
	cmd.Flags().StringVar(&comment, "comment", "", "optional reviewer comment")
	return cmd
}
