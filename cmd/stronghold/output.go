// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/stronghold/internal/cycle"
)

// printReport writes one report, as indented JSON or as a short summary.
func printReport(w io.Writer, r cycle.Report, asJSON bool) error {
	if asJSON {
		return writeJSON(w, r)
	}

	fmt.Fprintf(w, "cycle %s (%s): %s in %s\n", r.ID, r.Trigger, r.Status, r.Duration().Round(time.Millisecond))
	if v := r.Vault; v != nil {
		fmt.Fprintf(w, "  vault:    success=%t dirs=%d files=%d skipped=%d warnings=%d\n",
			v.Success, v.DirectoriesCopied, v.FilesCopied, v.FilesSkipped, len(v.Warnings))
		if v.ErrorMessage != "" {
			fmt.Fprintf(w, "            %s\n", v.ErrorMessage)
		}
	}
	if d := r.Database; d != nil {
		fmt.Fprintf(w, "  database: enabled=%t ok=%t\n", d.Enabled, d.OK)
	}
	if g := r.Git; g != nil {
		fmt.Fprintf(w, "  git:      %s\n", g.Outcome)
		if g.Error != "" {
			fmt.Fprintf(w, "            %s\n", g.Error)
		}
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  error:    %s\n", r.Error)
	}
	return nil
}

// printReports writes a table of reports, newest first.
func printReports(w io.Writer, reports []cycle.Report, asJSON bool) error {
	if asJSON {
		if reports == nil {
			reports = []cycle.Report{}
		}
		return writeJSON(w, reports)
	}
	if len(reports) == 0 {
		_, err := fmt.Fprintln(w, "no cycles recorded")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tTRIGGER\tSTATUS\tDURATION\tGIT")
	for _, r := range reports {
		git := "-"
		if r.Git != nil {
			git = string(r.Git.Outcome)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.StartedAt.UTC().Format(time.RFC3339),
			r.Trigger,
			r.Status,
			r.Duration().Round(time.Second),
			git,
		)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
