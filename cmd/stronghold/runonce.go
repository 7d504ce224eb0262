// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/stronghold/internal/cycle"
	"github.com/tomtom215/stronghold/internal/history"
)

func newRunOnceCmd(opts *cliOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Run a single backup cycle and exit",
		Long: `Run one backup cycle in the foreground. The health monitor runs for the
duration of the cycle and cancels it if the application server goes down.

Exit status is non-zero when the cycle failed, was cancelled or was skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := runOnce(ctx, opts)
			if printErr := printReport(cmd.OutOrStdout(), report, asJSON); printErr != nil {
				return printErr
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the cycle report as JSON")
	return cmd
}

// runOnce runs one cycle with the monitor and notifier alive around it.
func runOnce(ctx context.Context, opts *cliOptions) (cycle.Report, error) {
	cfg := opts.cfg
	a := buildApp(cfg, history.Config{Dir: cfg.History.Dir, Keep: cfg.History.Keep})
	defer a.close()

	bg, stopBackground := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = a.monitor.Serve(bg) //nolint:errcheck // returns ctx.Err() only
	}()
	go func() {
		defer wg.Done()
		_ = a.dispatcher.Serve(bg) //nolint:errcheck // returns ctx.Err() only
	}()

	report, err := a.runner.RunCycle(ctx, cycle.TriggerCLI)

	// Stopping the dispatcher drains queued notifications.
	stopBackground()
	wg.Wait()

	if err != nil {
		return report, err
	}
	if report.Status == cycle.StatusFailed {
		return report, fmt.Errorf("backup cycle %s failed", report.ID)
	}
	return report, nil
}
