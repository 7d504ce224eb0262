// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

// Package main is the stronghold command.
//
// Stronghold mirrors an application's vault directory into a git-managed
// archive, dumps its PostgreSQL database next to it, then commits and pushes
// the archive. A health monitor watches the application server and cancels
// an in-flight cycle as soon as the server is declared unavailable.
//
// # Commands
//
//	stronghold serve                 run the daemon (monitor, scheduler, API)
//	stronghold run-once              run one cycle and exit
//	stronghold check-health          probe the application server once
//	stronghold history [--limit N]   print recent cycle reports
//
// # Configuration
//
// Configuration is layered (highest priority wins):
//   - Environment variables (VAULT_SOURCE_DIR, ARCHIVE_ROOT, HEALTH_URL, ...)
//   - Config file (--config, STRONGHOLD_CONFIG, ./stronghold.yaml, /etc/stronghold/config.yaml)
//   - Built-in defaults
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel every running service. An in-flight cycle
// observes the cancellation and its report is recorded as cancelled.
package main

import "os"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
