// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package cycle

import (
	"context"
	"errors"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog"

	"github.com/tomtom215/stronghold/internal/events"
	"github.com/tomtom215/stronghold/internal/logging"
)

// CycleRunner runs one cycle. *Runner implements it.
type CycleRunner interface {
	RunCycle(ctx context.Context, trigger Trigger) (Report, error)
	Running() bool
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Interval between scheduled cycles. Default: 1h
	Interval time.Duration

	// RunOnStart runs a cycle as soon as the scheduler starts.
	RunOnStart bool

	// CatchUpOnRecovery runs a cycle when the server becomes available
	// again after a cycle was skipped or cancelled because it was down.
	CatchUpOnRecovery bool
}

// Scheduler is a suture service that runs cycles on an interval, on demand
// and after availability recovers. Cycles run on the scheduler goroutine, so
// the scheduler itself never overlaps them.
type Scheduler struct {
	runner       CycleRunner
	clock        clock.Clock
	cfg          SchedulerConfig
	availability <-chan events.AvailabilityChanged
	trigger      chan Trigger
	logger       zerolog.Logger

	// pendingCatchUp is only touched by the Serve goroutine.
	pendingCatchUp bool
}

// NewScheduler creates a Scheduler. availability may be nil; subscribe it
// before the health monitor starts so no transition is missed.
func NewScheduler(runner CycleRunner, clk clock.Clock, cfg SchedulerConfig, availability <-chan events.AvailabilityChanged) *Scheduler {
	if clk == nil {
		clk = clock.WallClock
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Scheduler{
		runner:       runner,
		clock:        clk,
		cfg:          cfg,
		availability: availability,
		trigger:      make(chan Trigger, 1),
		logger:       logging.WithComponent("scheduler"),
	}
}

// Trigger asks for a cycle as soon as possible. It returns
// ErrCycleInProgress when a cycle is running or one is already queued.
func (s *Scheduler) Trigger(t Trigger) error {
	if s.runner.Running() {
		return ErrCycleInProgress
	}
	select {
	case s.trigger <- t:
		return nil
	default:
		return ErrCycleInProgress
	}
}

// Serve implements suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.cfg.Interval).
		Bool("run_on_start", s.cfg.RunOnStart).
		Msg("Scheduler started")
	defer s.logger.Info().Msg("Scheduler stopped")

	if s.cfg.RunOnStart {
		s.run(ctx, TriggerStartup)
	}

	timer := s.clock.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	availability := s.availability
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.Chan():
			s.run(ctx, TriggerSchedule)
			timer.Reset(s.cfg.Interval)

		case t := <-s.trigger:
			s.run(ctx, t)

		case ev, ok := <-availability:
			if !ok {
				availability = nil
				continue
			}
			if ev.Available && s.pendingCatchUp && s.cfg.CatchUpOnRecovery {
				s.logger.Info().Msg("Server recovered, running catch-up cycle")
				s.run(ctx, TriggerCatchUp)
			}
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (s *Scheduler) String() string {
	return "cycle-scheduler"
}

func (s *Scheduler) run(ctx context.Context, t Trigger) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.runner.RunCycle(ctx, t)
	switch {
	case errors.Is(err, ErrServerUnavailable):
		s.pendingCatchUp = true
	case errors.Is(err, ErrCycleInProgress):
		s.logger.Info().Str("trigger", string(t)).Msg("Cycle already running, trigger ignored")
	case err == nil:
		s.pendingCatchUp = false
	}
	if err != nil && !errors.Is(err, ErrCycleInProgress) && ctx.Err() == nil {
		s.logger.Debug().Err(err).Str("status", string(report.Status)).Msg("Cycle did not complete")
	}
}
