// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

// Package services adapts components that do not already implement
// suture.Service. The health monitor, cycle scheduler and notifier
// dispatcher implement Serve themselves; the operator API's *http.Server
// needs HTTPServerService.
package services
