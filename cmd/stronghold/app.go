// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package main

import (
	"github.com/juju/clock"

	"github.com/tomtom215/stronghold/internal/config"
	"github.com/tomtom215/stronghold/internal/cycle"
	"github.com/tomtom215/stronghold/internal/dump"
	"github.com/tomtom215/stronghold/internal/events"
	"github.com/tomtom215/stronghold/internal/gitops"
	"github.com/tomtom215/stronghold/internal/health"
	"github.com/tomtom215/stronghold/internal/history"
	"github.com/tomtom215/stronghold/internal/logging"
	"github.com/tomtom215/stronghold/internal/notify"
	"github.com/tomtom215/stronghold/internal/vault"
)

// eventBufferSize is the per-subscriber buffer of the event bus.
const eventBufferSize = 16

// app holds the wired components shared by serve and run-once.
type app struct {
	cfg        *config.Config
	clock      clock.Clock
	bus        *events.Bus
	dispatcher *notify.Dispatcher
	prober     *health.Prober
	monitor    *health.Monitor
	history    *history.Store[cycle.Report] // nil when the store could not be opened
	runner     *cycle.Runner
}

// buildApp wires every component from cfg:
//  1. Event bus and notifier dispatcher
//  2. Health prober and monitor
//  3. Cycle history (optional: a locked or unwritable store is logged and skipped)
//  4. Vault, database and git steps
//  5. Cycle runner
func buildApp(cfg *config.Config, historyCfg history.Config) *app {
	a := &app{
		cfg:   cfg,
		clock: clock.WallClock,
		bus:   events.NewBus(eventBufferSize),
	}

	a.dispatcher = notify.New(cfg.Notify)
	if a.dispatcher.Enabled() {
		logging.Info().Str("webhook", logging.RedactURL(cfg.Notify.WebhookURL)).Msg("Notification webhook configured")
	} else {
		logging.Warn().Msg("No notification webhook configured, notifications are only logged")
	}

	a.prober = health.NewProber(health.ProberConfig{
		URL:     cfg.Health.URL,
		APIKey:  cfg.Health.APIKey,
		Timeout: cfg.Health.Timeout,
	})
	if a.prober.Enabled() {
		logging.Info().
			Str("url", logging.RedactURL(cfg.Health.URL)).
			Str("api_key", logging.RedactSecret(cfg.Health.APIKey)).
			Msg("Health checks configured")
	} else {
		logging.Warn().Msg("No health URL configured, the application server is always treated as available")
	}

	a.monitor = health.NewMonitor(a.prober, a.dispatcher, a.bus, a.clock, health.MonitorConfig{
		Interval:         cfg.Health.Interval,
		FailureThreshold: cfg.Health.FailureThreshold,
	})

	store, err := history.Open[cycle.Report](historyCfg)
	if err != nil {
		logging.Warn().Err(err).Str("dir", historyCfg.Dir).Msg("Cycle history unavailable, reports will not be persisted")
	} else {
		a.history = store
	}

	deps := cycle.Deps{
		Vault:    vault.New(cfg.Vault.SourceDir, cfg.Archive.VaultDir()),
		Git:      gitops.NewRepository(gitops.ConfigFrom(cfg.Archive.Root, cfg.Git), a.dispatcher, a.clock),
		Signals:  a.monitor,
		Notifier: a.dispatcher,
		Events:   a.bus,
		Clock:    a.clock,
	}
	if cfg.Database.Enabled {
		deps.Database = dump.NewFromConfig(cfg.Database)
	}
	if a.history != nil {
		deps.History = a.history
	}

	a.runner = cycle.NewRunner(deps, cycle.Options{
		DatabaseConn:    dump.ConnConfigFrom(cfg.Database),
		DumpPath:        cfg.Archive.DumpPath(),
		LockName:        cfg.Schedule.CycleLockName,
		NotifyOnSuccess: cfg.Notify.OnSuccess,
	})

	return a
}

// close releases the bus and the history store.
func (a *app) close() {
	if err := a.bus.Close(); err != nil {
		logging.Warn().Err(err).Msg("Error closing event bus")
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing cycle history")
		}
	}
}
