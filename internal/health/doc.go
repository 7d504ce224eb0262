// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

/*
Package health tracks whether the upstream application server is healthy
enough to be backed up.

# Components

  - Prober performs one bounded HTTP health check. With no endpoint configured
    it always reports healthy.
  - Monitor polls the Prober on an interval and runs a two-state machine
    (Available, Unavailable). It owns the current Signal.
  - Signal is a one-shot cancellation handle. It fires when the server becomes
    unavailable and never resets; recovery installs a new Signal.

# State Machine

	Available --(threshold consecutive failures)--> Unavailable
	Unavailable --(one success)--> Available

Any success resets the consecutive failure count. Each transition sends a
notification and publishes an events.AvailabilityChanged.

# Consuming the Signal

Backup cycles call Monitor.CurrentSignal at the moment a cycle starts and tie
the cycle context to it. A Signal must not be cached across cycles:

	sig := monitor.CurrentSignal()
	if sig.Fired() {
	    // skip this cycle
	}
	stop := context.AfterFunc(sig.Context(), func() { cancelCycle(health.ErrServerUnavailable) })
	defer stop()
*/
package health
