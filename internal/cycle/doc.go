// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

// Package cycle runs backup cycles and schedules them.
//
// A cycle runs three steps strictly in sequence, because each one must see
// the filesystem state left by the previous one:
//
//	vault mirror -> database dump -> git commit and push
//
// The cycle context is cancelled when either the caller's context ends or
// the health monitor's current availability signal fires, whichever comes
// first. The signal is read once at cycle start; a cycle never starts while
// the server is unavailable.
//
// At most one cycle runs at a time. Within the process an atomic flag
// rejects overlapping calls; across processes on the same machine a named
// juju/mutex advisory lock does the same, so a manually started run-once
// cannot race the daemon.
//
// Every cycle, including skipped and cancelled ones, produces a Report that
// is stored in the history store, recorded in metrics, published on the
// event bus and summarised in a notification.
package cycle
