// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package cycle

import (
	"time"

	"github.com/tomtom215/stronghold/internal/gitops"
	"github.com/tomtom215/stronghold/internal/vault"
)

// Status is the overall result of a cycle.
type Status string

const (
	// StatusSucceeded means every enabled step succeeded without warnings.
	StatusSucceeded Status = "succeeded"

	// StatusDegraded means the archive was committed but a data step failed
	// or reported warnings.
	StatusDegraded Status = "degraded"

	// StatusFailed means nothing usable reached the archive remote.
	StatusFailed Status = "failed"

	// StatusCancelled means the cycle was interrupted by shutdown or by the
	// server becoming unavailable.
	StatusCancelled Status = "cancelled"

	// StatusSkipped means the cycle did not start, or its git step found
	// the archive locked by another writer.
	StatusSkipped Status = "skipped"
)

// Trigger records why a cycle ran.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerStartup  Trigger = "startup"
	TriggerManual   Trigger = "manual"
	TriggerCatchUp  Trigger = "catch_up"
	TriggerCLI      Trigger = "cli"
)

// DatabaseResult is the database step's part of a Report.
type DatabaseResult struct {
	Enabled bool `json:"enabled"`
	OK      bool `json:"ok"`
}

// Report describes one cycle.
type Report struct {
	ID         string          `json:"id"`
	Trigger    Trigger         `json:"trigger"`
	Status     Status          `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Vault      *vault.Outcome  `json:"vault,omitempty"`
	Database   *DatabaseResult `json:"database,omitempty"`
	Git        *gitops.Result  `json:"git,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Duration returns how long the cycle ran.
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// classify derives the status of a cycle whose steps all ran. A cycle with
// at least one successful data step and a successful git step is usable.
// Lock contention is not a failure: the data stays in the working tree and
// the next cycle commits it.
func (r *Report) classify() Status {
	if r.Git != nil && r.Git.Outcome == gitops.OutcomeLockContended {
		return StatusSkipped
	}

	vaultOK := r.Vault != nil && r.Vault.Success
	dbEnabled := r.Database != nil && r.Database.Enabled
	dbOK := !dbEnabled || r.Database.OK
	gitOK := r.Git != nil && r.Git.OK()

	switch {
	case !gitOK || !(vaultOK || (dbEnabled && dbOK)):
		return StatusFailed
	case !vaultOK || !dbOK || r.Vault.Degraded():
		return StatusDegraded
	default:
		return StatusSucceeded
	}
}
