// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

// Package notify delivers best-effort operator notifications over a webhook.
//
// Callers use the Notifier interface. Notify never blocks on the network and
// never returns an error: delivery failures are logged and counted, nothing
// more. The production implementation is a Dispatcher, which queues messages
// for a single supervised worker that paces sends and trips a circuit breaker
// when the webhook keeps failing.
package notify

import (
	"context"
	"time"
)

// Severity classifies a notification and selects its embed color.
type Severity string

// Severity levels.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
)

// Color returns the embed color for s. Unknown severities use the info color.
func (s Severity) Color() int {
	switch s {
	case SeverityError:
		return 0xFF0000
	case SeverityWarning:
		return 0xFFA500
	case SeveritySuccess:
		return 0x00FF00
	default:
		return 0x0099FF
	}
}

// Field is an optional name/value pair shown under the description.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is one notification.
type Message struct {
	Title       string
	Description string
	Severity    Severity
	Fields      []Field

	// Timestamp defaults to the time Notify was called.
	Timestamp time.Time
}

// Notifier is implemented by anything that accepts notifications.
// Implementations must not block and must not panic.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, msg Message)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, msg Message) {
	f(ctx, msg)
}

// Discard is a Notifier that drops every message.
var Discard Notifier = NotifierFunc(func(context.Context, Message) {})
