// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Health Metrics
	HealthChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stronghold_health_checks_total",
			Help: "Total number of upstream health probes by result",
		},
		[]string{"result"}, // "healthy", "unhealthy"
	)

	ServerAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stronghold_server_available",
			Help: "Whether the upstream server is considered available (1) or not (0)",
		},
	)

	AvailabilityTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stronghold_availability_transitions_total",
			Help: "Total number of availability state transitions",
		},
		[]string{"to"},
	)

	// Cycle Metrics
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stronghold_cycles_total",
			Help: "Total number of backup cycles by final status",
		},
		[]string{"status"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stronghold_cycle_duration_seconds",
			Help:    "Duration of complete backup cycles in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stronghold_step_duration_seconds",
			Help:    "Duration of individual backup steps in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"step", "result"}, // step: "vault", "database", "git"
	)

	LastCycleTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stronghold_last_cycle_timestamp_seconds",
			Help: "Unix time at which the most recent cycle with each status finished",
		},
		[]string{"status"},
	)

	// Vault Metrics
	VaultFilesCopied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stronghold_vault_files_copied_total",
			Help: "Total number of vault files mirrored into the archive",
		},
	)

	VaultFilesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stronghold_vault_files_skipped_total",
			Help: "Total number of vault files skipped because they could not be copied",
		},
	)

	VaultWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stronghold_vault_warnings_total",
			Help: "Total number of non-fatal warnings raised while mirroring the vault",
		},
	)

	// Git Metrics
	GitLockRecoveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stronghold_git_lock_recoveries_total",
			Help: "Total number of stale git index.lock files removed",
		},
	)

	GitLockContention = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stronghold_git_lock_contention_total",
			Help: "Total number of commits skipped because a recent index.lock was present",
		},
	)

	GitCommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stronghold_git_commits_total",
			Help: "Total number of version control steps by outcome",
		},
		[]string{"outcome"},
	)

	// Notification Metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stronghold_notifications_total",
			Help: "Total number of notifications by severity and delivery result",
		},
		[]string{"severity", "result"}, // result: "sent", "failed", "dropped", "disabled"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stronghold_api_requests_total",
			Help: "Total number of operator API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stronghold_api_request_duration_seconds",
			Help:    "Duration of operator API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordHealthCheck records one probe result.
func RecordHealthCheck(healthy bool) {
	if healthy {
		HealthChecksTotal.WithLabelValues("healthy").Inc()
		return
	}
	HealthChecksTotal.WithLabelValues("unhealthy").Inc()
}

// SetAvailability updates the availability gauge.
func SetAvailability(available bool) {
	if available {
		ServerAvailable.Set(1)
		return
	}
	ServerAvailable.Set(0)
}

// RecordAvailabilityTransition records a state change and updates the gauge.
func RecordAvailabilityTransition(available bool) {
	SetAvailability(available)
	if available {
		AvailabilityTransitions.WithLabelValues("available").Inc()
		return
	}
	AvailabilityTransitions.WithLabelValues("unavailable").Inc()
}

// RecordCycle records a finished cycle.
func RecordCycle(status string, duration time.Duration, finishedAt time.Time) {
	CyclesTotal.WithLabelValues(status).Inc()
	CycleDuration.Observe(duration.Seconds())
	LastCycleTimestamp.WithLabelValues(status).Set(float64(finishedAt.Unix()))
}

// RecordStep records the duration of one step.
func RecordStep(step string, ok bool, duration time.Duration) {
	result := "success"
	if !ok {
		result = "failure"
	}
	StepDuration.WithLabelValues(step, result).Observe(duration.Seconds())
}

// RecordVaultOutcome adds the counts of one vault mirror run.
func RecordVaultOutcome(copied, skipped, warnings int) {
	VaultFilesCopied.Add(float64(copied))
	VaultFilesSkipped.Add(float64(skipped))
	VaultWarnings.Add(float64(warnings))
}

// RecordGitOutcome records the outcome of one version control step.
func RecordGitOutcome(outcome string) {
	GitCommitsTotal.WithLabelValues(outcome).Inc()
}

// RecordNotification records one notification delivery attempt.
func RecordNotification(severity, result string) {
	NotificationsTotal.WithLabelValues(severity, result).Inc()
}

// RecordAPIRequest records an operator API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
