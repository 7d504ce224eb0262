// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/stronghold/internal/api"
	"github.com/tomtom215/stronghold/internal/cycle"
	"github.com/tomtom215/stronghold/internal/history"
	"github.com/tomtom215/stronghold/internal/logging"
	"github.com/tomtom215/stronghold/internal/supervisor"
	"github.com/tomtom215/stronghold/internal/supervisor/services"
)

func newServeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the backup daemon",
		Long: `Run the health monitor, the cycle scheduler and (if server.enabled)
the operator API under one supervisor tree until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func runServe(ctx context.Context, opts *cliOptions) error {
	cfg := opts.cfg
	logging.Info().
		Str("version", version).
		Str("vault_source", cfg.Vault.SourceDir).
		Str("archive_root", cfg.Archive.Root).
		Bool("database_enabled", cfg.Database.Enabled).
		Dur("interval", cfg.Schedule.Interval).
		Msg("Starting Stronghold")

	a := buildApp(cfg, history.Config{Dir: cfg.History.Dir, Keep: cfg.History.Keep})
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Subscribe before the monitor runs so the first transition is not lost.
	availability, err := a.bus.SubscribeAvailability(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to availability events: %w", err)
	}

	scheduler := cycle.NewScheduler(a.runner, a.clock, cycle.SchedulerConfig{
		Interval:          cfg.Schedule.Interval,
		RunOnStart:        cfg.Schedule.RunOnStart,
		CatchUpOnRecovery: cfg.Schedule.CatchUpOnRecovery,
	}, availability)

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddMonitoringService(a.monitor)
	tree.AddMonitoringService(a.dispatcher)
	tree.AddBackupService(scheduler)

	if cfg.Server.Enabled {
		deps := api.Deps{
			Health:               a.monitor,
			Trigger:              scheduler,
			Cycles:               a.runner,
			Clock:                a.clock,
			StartedAt:            a.clock.Now(),
			TriggerRatePerMinute: cfg.Server.TriggerRatePerMinute,
			Version:              version,
		}
		if a.history != nil {
			deps.History = a.history
		}
		addr := cfg.Server.Addr()
		tree.AddAPIService(services.NewHTTPServerService(api.NewServer(deps).HTTPServer(addr), addr, 10*time.Second))
	} else {
		logging.Info().Msg("Operator API disabled")
	}

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	// The channel delivers Serve's result exactly once.
	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown requested, waiting for services to stop")
		serveErr = <-errCh
	case serveErr = <-errCh:
		cancel()
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
		return fmt.Errorf("supervisor tree: %w", serveErr)
	}
	logging.Info().Msg("Stronghold stopped")
	return nil
}
