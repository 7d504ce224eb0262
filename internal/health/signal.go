// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package health

import (
	"context"
	"errors"
)

var (
	// ErrServerUnavailable is the cause of a Signal fired by the monitor.
	ErrServerUnavailable = errors.New("server unavailable")

	// ErrMonitorStopped is the cause of a Signal fired at monitor shutdown.
	ErrMonitorStopped = errors.New("health monitor stopped")
)

// Signal is a one-shot availability handle. Once fired it stays fired.
type Signal struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// NewSignal returns an unfired Signal.
func NewSignal() *Signal {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &Signal{ctx: ctx, cancel: cancel}
}

// Context returns a context canceled when the signal fires.
func (s *Signal) Context() context.Context {
	return s.ctx
}

// Done returns a channel closed when the signal fires.
func (s *Signal) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Fired reports whether the signal has fired.
func (s *Signal) Fired() bool {
	return s.ctx.Err() != nil
}

// Cause returns why the signal fired, or nil if it has not.
func (s *Signal) Cause() error {
	return context.Cause(s.ctx)
}

// fire cancels the signal. Only the first cause is kept.
func (s *Signal) fire(cause error) {
	s.cancel(cause)
}
