// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

/*
Package metrics provides Prometheus instrumentation for Stronghold.

All collectors are registered with the default registry through promauto and
exposed by the operator API at /metrics:

	curl http://127.0.0.1:9750/metrics

# Available Metrics

Health monitoring:
  - stronghold_health_checks_total{result}: probe results (healthy, unhealthy)
  - stronghold_server_available: 1 when the upstream server is considered available
  - stronghold_availability_transitions_total{to}: state changes (available, unavailable)

Backup cycles:
  - stronghold_cycles_total{status}: finished cycles by status
  - stronghold_cycle_duration_seconds: wall time of a full cycle
  - stronghold_step_duration_seconds{step,result}: per-step wall time
  - stronghold_last_cycle_timestamp_seconds{status}: completion time of the latest cycle

Vault mirror:
  - stronghold_vault_files_copied_total, stronghold_vault_files_skipped_total
  - stronghold_vault_warnings_total

Version control:
  - stronghold_git_lock_recoveries_total: stale index.lock files removed
  - stronghold_git_lock_contention_total: commits skipped because a fresh lock was present
  - stronghold_git_commits_total{outcome}: committed, no_changes, lock_contended, failed

Notifications:
  - stronghold_notifications_total{severity,result}: sent, failed, dropped, disabled

Circuit breakers:
  - circuit_breaker_state{name}, circuit_breaker_requests_total{name,result},
    circuit_breaker_state_transitions_total{name,from_state,to_state}
*/
package metrics
