// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package health

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog"

	"github.com/tomtom215/stronghold/internal/events"
	"github.com/tomtom215/stronghold/internal/logging"
	"github.com/tomtom215/stronghold/internal/metrics"
	"github.com/tomtom215/stronghold/internal/notify"
)

// Checker performs a single health check. *Prober implements it.
type Checker interface {
	CheckHealth(ctx context.Context) (Result, error)
}

// Publisher receives availability transitions. *events.Bus implements it.
type Publisher interface {
	PublishAvailability(ctx context.Context, ev events.AvailabilityChanged) error
}

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	// Interval between checks. Default: 30s
	Interval time.Duration

	// FailureThreshold is the number of consecutive failures that makes the
	// server unavailable. Default: 3
	FailureThreshold int
}

// State is a snapshot of the monitor's view of the server.
type State struct {
	Available           bool      `json:"available"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	LastCheck           time.Time `json:"last_check"`
}

// Monitor polls a Checker and maintains availability state and the current Signal.
type Monitor struct {
	checker   Checker
	notifier  notify.Notifier
	publisher Publisher
	clock     clock.Clock
	cfg       MonitorConfig
	logger    zerolog.Logger

	stateMu sync.RWMutex
	state   State

	signalMu sync.Mutex
	signal   *Signal
}

// NewMonitor creates a monitor in the Available state with a fresh Signal.
// notifier and publisher may be nil.
func NewMonitor(checker Checker, notifier notify.Notifier, publisher Publisher, clk clock.Clock, cfg MonitorConfig) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	if clk == nil {
		clk = clock.WallClock
	}

	metrics.SetAvailability(true)

	return &Monitor{
		checker:   checker,
		notifier:  notifier,
		publisher: publisher,
		clock:     clk,
		cfg:       cfg,
		logger:    logging.WithComponent("health"),
		state:     State{Available: true},
		signal:    NewSignal(),
	}
}

// CurrentSignal returns the Signal in effect right now. Callers must fetch it
// when they need it rather than caching it.
func (m *Monitor) CurrentSignal() *Signal {
	m.signalMu.Lock()
	defer m.signalMu.Unlock()
	return m.signal
}

// State returns a snapshot of the current health state.
func (m *Monitor) State() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

// Serve implements suture.Service. It checks immediately, then every
// Interval until ctx ends. On return the current Signal is fired.
func (m *Monitor) Serve(ctx context.Context) error {
	m.renewSignalIfAvailable()

	m.logger.Info().
		Dur("interval", m.cfg.Interval).
		Int("failure_threshold", m.cfg.FailureThreshold).
		Msg("Health monitor started")

	defer func() {
		m.CurrentSignal().fire(ErrMonitorStopped)
		m.logger.Info().Msg("Health monitor stopped")
	}()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.clock.After(m.cfg.Interval):
			m.Check(ctx)
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (m *Monitor) String() string {
	return "health-monitor"
}

// Check runs one iteration of the state machine. A panic inside the checker
// or transition handling is logged and swallowed.
func (m *Monitor) Check(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Health check iteration panicked")
		}
	}()

	result, err := m.checker.CheckHealth(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		result = Result{Healthy: false, Reason: err.Error()}
	}

	metrics.RecordHealthCheck(result.Healthy)
	if result.Healthy {
		m.onSuccess(ctx)
		return
	}
	m.onFailure(ctx, result.Reason)
}

func (m *Monitor) onSuccess(ctx context.Context) {
	m.stateMu.Lock()
	wasAvailable := m.state.Available
	m.state.Available = true
	m.state.ConsecutiveFailures = 0
	m.state.LastError = ""
	m.state.LastCheck = m.clock.Now()
	snapshot := m.state
	m.stateMu.Unlock()

	if wasAvailable {
		m.logger.Debug().Msg("Health check passed")
		return
	}

	m.signalMu.Lock()
	m.signal = NewSignal()
	m.signalMu.Unlock()

	m.logger.Info().Msg("Server is available again")
	metrics.RecordAvailabilityTransition(true)

	m.notifier.Notify(ctx, notify.Message{
		Title:       "Server available",
		Description: "The application server is healthy again. Backups will resume.",
		Severity:    notify.SeveritySuccess,
	})
	m.publish(ctx, snapshot)
}

func (m *Monitor) onFailure(ctx context.Context, reason string) {
	m.stateMu.Lock()
	m.state.ConsecutiveFailures++
	m.state.LastError = reason
	m.state.LastCheck = m.clock.Now()
	transition := m.state.Available && m.state.ConsecutiveFailures >= m.cfg.FailureThreshold
	if transition {
		m.state.Available = false
	}
	snapshot := m.state
	m.stateMu.Unlock()

	m.logger.Warn().
		Int("consecutive_failures", snapshot.ConsecutiveFailures).
		Int("threshold", m.cfg.FailureThreshold).
		Str("reason", reason).
		Msg("Health check failed")

	if !transition {
		return
	}

	m.CurrentSignal().fire(ErrServerUnavailable)

	m.logger.Error().
		Int("consecutive_failures", snapshot.ConsecutiveFailures).
		Str("last_error", reason).
		Msg("Server is unavailable, cancelling in-flight backups")
	metrics.RecordAvailabilityTransition(false)

	m.notifier.Notify(ctx, notify.Message{
		Title: "Server unavailable",
		Description: fmt.Sprintf("%d consecutive health checks failed. In-flight backups were cancelled.",
			snapshot.ConsecutiveFailures),
		Severity: notify.SeverityError,
		Fields: []notify.Field{
			{Name: "Consecutive failures", Value: strconv.Itoa(snapshot.ConsecutiveFailures), Inline: true},
			{Name: "Last error", Value: reason},
		},
	})
	m.publish(ctx, snapshot)
}

func (m *Monitor) publish(ctx context.Context, s State) {
	if m.publisher == nil {
		return
	}
	err := m.publisher.PublishAvailability(ctx, events.AvailabilityChanged{
		Available:           s.Available,
		ConsecutiveFailures: s.ConsecutiveFailures,
		LastError:           s.LastError,
		At:                  s.LastCheck,
	})
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to publish availability change")
	}
}

// renewSignalIfAvailable installs a fresh Signal when a previous Serve fired
// the current one at shutdown while the server was still available.
func (m *Monitor) renewSignalIfAvailable() {
	if !m.State().Available {
		return
	}
	m.signalMu.Lock()
	defer m.signalMu.Unlock()
	if m.signal.Fired() {
		m.signal = NewSignal()
	}
}
