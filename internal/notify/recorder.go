// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package notify

import (
	"context"
	"sync"
)

// Recorder is a Notifier that keeps every message in memory. Tests of the
// packages that notify use it to assert on what was sent.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Notify records msg.
func (r *Recorder) Notify(_ context.Context, msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// BySeverity returns the recorded messages with severity s.
func (r *Recorder) BySeverity(s Severity) []Message {
	var out []Message
	for _, m := range r.Messages() {
		if m.Severity == s {
			out = append(out, m)
		}
	}
	return out
}
