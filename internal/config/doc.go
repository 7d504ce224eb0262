// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

/*
Package config provides layered configuration loading for Stronghold.

Configuration is assembled with koanf from three layers, later layers winning:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML file (--config flag, STRONGHOLD_CONFIG, or the default search list)
 3. Environment variables, mapped through an explicit table in envTransformFunc

Unknown environment variables are ignored so that unrelated process environment
never leaks into the configuration.

# Configuration Structure

  - VaultConfig: source directory of per-user vault data
  - ArchiveConfig: git-managed archive layout (root, vault and database subdirectories)
  - GitConfig: remote, branch, stale-lock threshold, command timeouts, credentials env names
  - DatabaseConfig: PostgreSQL connection and pg_dump settings
  - HealthConfig: upstream health endpoint, polling interval and failure threshold
  - NotifyConfig: webhook notifications
  - ScheduleConfig: cycle interval and catch-up behavior
  - HistoryConfig: on-disk cycle history
  - ServerConfig: operator HTTP API
  - LoggingConfig: level, format and caller output

# Environment Variables

Most keys map one-to-one (ARCHIVE_ROOT -> archive.root). Two keys take plain
integers for compatibility with existing deployments:

  - HEALTH_PING_INTERVAL_SECONDS: health.interval in seconds (default: 30)
  - GIT_LOCK_STALE_MINUTES: git.lock_stale_after in minutes (default: 10)

Duration-valued keys otherwise accept Go duration strings ("90s", "2m").

# Validation

Load calls Validate, which runs struct-tag validation through the validation
package and then the cross-field checks that tags cannot express. A service
started with an invalid configuration fails fast with a message naming the key.
*/
package config
