// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/stronghold/internal/cycle"
	"github.com/tomtom215/stronghold/internal/history"
)

func newHistoryCmd(opts *cliOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent cycle reports",
		Long: `Print the most recent cycle reports from history.dir, newest first.

The store is locked while the daemon runs; query GET /api/v1/cycles instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 {
				return errors.New("--limit must be at least 1")
			}

			store, err := history.Open[cycle.Report](history.Config{
				Dir:  opts.cfg.History.Dir,
				Keep: opts.cfg.History.Keep,
			})
			if err != nil {
				return fmt.Errorf("open cycle history (is the daemon running?): %w", err)
			}
			defer store.Close() //nolint:errcheck // read-only use

			reports, err := store.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list cycles: %w", err)
			}
			return printReports(cmd.OutOrStdout(), reports, asJSON)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of reports")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print reports as JSON")
	return cmd
}
