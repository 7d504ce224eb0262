// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

// Package logging provides centralized zerolog-based structured logging for Stronghold.
//
// Every component of the backup pipeline (health monitor, vault mirror, database
// dump, git sync, notifier, scheduler) logs through this package so that one
// configuration controls level and format for the whole daemon.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("source", dir).Msg("Vault mirror started")
//	logging.Error().Err(err).Msg("pg_dump failed")
//
// # Component Loggers
//
//	log := logging.WithComponent("gitops")
//	log.Warn().Str("lock", path).Msg("Removing stale index.lock")
//
// # Cycle Correlation
//
// A backup cycle stores a correlation ID in its context. All steps that log with
// logging.Ctx(ctx) carry the same correlation_id field, which makes a single
// cycle easy to follow in aggregated logs:
//
//	ctx = logging.ContextWithNewCorrelationID(ctx)
//	logging.Ctx(ctx).Info().Msg("Cycle started")
//
// # Secrets
//
// Webhook URLs, API keys and tokens must never be logged verbatim. Use
// RedactSecret and RedactURL before attaching them to an event.
//
// # Adapters
//
//   - SlogHandler bridges log/slog to zerolog (required by sutureslog).
//   - WatermillAdapter implements watermill.LoggerAdapter for the event bus.
//
// # Environment Variables
//
//	LOG_LEVEL   - trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - json, console (default: json)
//	LOG_CALLER  - include caller file:line (default: false)
package logging
