// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/juju/clock"

	"github.com/tomtom215/stronghold/internal/cycle"
	"github.com/tomtom215/stronghold/internal/health"
)

// HealthSource reports server availability. *health.Monitor implements it.
type HealthSource interface {
	State() health.State
}

// CycleTrigger queues a cycle. *cycle.Scheduler implements it.
type CycleTrigger interface {
	Trigger(t cycle.Trigger) error
}

// CycleState reports the in-flight and most recent cycle. *cycle.Runner
// implements it.
type CycleState interface {
	Running() bool
	LastReport() (cycle.Report, bool)
}

// CycleHistory reads persisted reports. *history.Store[cycle.Report]
// implements it.
type CycleHistory interface {
	List(ctx context.Context, limit int) ([]cycle.Report, error)
	Get(ctx context.Context, id string) (cycle.Report, error)
}

// Deps are the Server's collaborators. History may be nil, in which case
// the history endpoints answer 503.
type Deps struct {
	Health  HealthSource
	Trigger CycleTrigger
	Cycles  CycleState
	History CycleHistory

	// Clock and StartedAt drive the reported uptime.
	Clock     clock.Clock
	StartedAt time.Time

	// TriggerRatePerMinute limits POST /api/v1/cycles per client IP. Default: 6
	TriggerRatePerMinute int

	// Version is reported by /api/v1/status.
	Version string
}

// Server serves the operator API.
type Server struct {
	deps  Deps
	clock clock.Clock
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	if deps.Clock == nil {
		deps.Clock = clock.WallClock
	}
	if deps.StartedAt.IsZero() {
		deps.StartedAt = deps.Clock.Now()
	}
	if deps.TriggerRatePerMinute <= 0 {
		deps.TriggerRatePerMinute = 6
	}
	return &Server{deps: deps, clock: deps.Clock}
}

// HTTPServer wraps the router in an *http.Server with conservative timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
