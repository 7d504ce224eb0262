// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/stronghold/internal/config"
	"github.com/tomtom215/stronghold/internal/logging"
)

// cliOptions is shared by every subcommand. cfg is populated by
// PersistentPreRunE.
type cliOptions struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "stronghold",
		Short: "Resilient backup orchestration",
		Long: `Stronghold backs up an application's vault directory and PostgreSQL
database into a git archive, pausing whenever the application server is
unhealthy.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (YAML)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(opts.configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Logging.Level = opts.logLevel
		}

		logging.Init(logging.Config{
			Level:     cfg.Logging.Level,
			Format:    cfg.Logging.Format,
			Caller:    cfg.Logging.Caller,
			Timestamp: true,
		})

		opts.cfg = cfg
		return nil
	}

	root.AddCommand(
		newServeCmd(opts),
		newRunOnceCmd(opts),
		newCheckHealthCmd(opts),
		newHistoryCmd(opts),
	)

	return root
}
