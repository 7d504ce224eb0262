// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

/*
Package supervisor runs Stronghold's long-lived services under suture v4.

	stronghold
	├── monitoring-layer
	│   ├── health-monitor
	│   └── notifier
	├── backup-layer
	│   └── cycle-scheduler
	└── api-layer
	    └── http-server (if server.enabled)

Each service implements Serve(ctx) error and returns when ctx is canceled.
A service that returns an error or panics is restarted with backoff;
suture events are logged through sutureslog and the zerolog slog bridge:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMonitoringService(monitor)
	tree.AddMonitoringService(dispatcher)
	tree.AddBackupService(scheduler)
	err = tree.Serve(ctx)

Shutdown cancels every service context. The scheduler's in-flight cycle sees
the cancellation through its context and unwinds within ShutdownTimeout.
*/
package supervisor
