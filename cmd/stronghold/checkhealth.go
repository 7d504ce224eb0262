// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/stronghold/internal/health"
)

// errUnhealthy makes check-health exit non-zero.
var errUnhealthy = errors.New("application server is unhealthy")

func newCheckHealthCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-health",
		Short: "Probe the application server once",
		Long: `Send one request to health.url and report the result. Exit status is
non-zero when the server is unhealthy. With no health.url configured the
server is reported healthy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			prober := health.NewProber(health.ProberConfig{
				URL:     cfg.Health.URL,
				APIKey:  cfg.Health.APIKey,
				Timeout: cfg.Health.Timeout,
			})

			out := cmd.OutOrStdout()
			if !prober.Enabled() {
				fmt.Fprintln(out, "healthy (no health.url configured)")
				return nil
			}

			result, err := prober.CheckHealth(cmd.Context())
			if err != nil {
				return fmt.Errorf("health check: %w", err)
			}
			if !result.Healthy {
				fmt.Fprintf(out, "unhealthy: %s\n", result.Reason)
				return errUnhealthy
			}
			fmt.Fprintln(out, "healthy")
			return nil
		},
	}
}
