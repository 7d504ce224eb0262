// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/stronghold/internal/config"
	"github.com/tomtom215/stronghold/internal/logging"
	"github.com/tomtom215/stronghold/internal/metrics"
)

// Sender delivers one message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// QueueSize bounds the number of undelivered messages. Messages arriving
	// when the queue is full are dropped. Default: 64
	QueueSize int

	// RatePerSecond paces sends to the webhook. Default: 1
	RatePerSecond float64

	// DrainTimeout bounds delivery of queued messages after shutdown starts.
	// Default: 5s
	DrainTimeout time.Duration
}

// Dispatcher is the production Notifier. Notify enqueues; Serve delivers.
type Dispatcher struct {
	sender       Sender
	queue        chan Message
	limiter      *rate.Limiter
	drainTimeout time.Duration
	logger       zerolog.Logger
}

// NewDispatcher creates a dispatcher around sender. A nil sender disables
// delivery: messages are logged and counted as "disabled".
func NewDispatcher(sender Sender, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}

	return &Dispatcher{
		sender:       sender,
		queue:        make(chan Message, cfg.QueueSize),
		limiter:      rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		drainTimeout: cfg.DrainTimeout,
		logger:       logging.WithComponent("notify"),
	}
}

// New builds a Dispatcher from configuration, with a WebhookSender when a
// webhook URL is configured.
func New(cfg config.NotifyConfig) *Dispatcher {
	var sender Sender
	if cfg.WebhookURL != "" {
		sender = NewWebhookSender(WebhookConfig{
			URL:     cfg.WebhookURL,
			Footer:  cfg.Footer,
			Timeout: cfg.Timeout,
		})
	}
	return NewDispatcher(sender, DispatcherConfig{
		QueueSize:     cfg.QueueSize,
		RatePerSecond: cfg.RatePerSecond,
	})
}

// Enabled reports whether messages are delivered anywhere.
func (d *Dispatcher) Enabled() bool {
	return d.sender != nil
}

// Notify enqueues msg for delivery. It never blocks.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.Severity == "" {
		msg.Severity = SeverityInfo
	}

	log := logging.CtxWith(ctx).Str("component", "notify").Logger()

	if d.sender == nil {
		metrics.RecordNotification(string(msg.Severity), "disabled")
		log.Debug().
			Str("severity", string(msg.Severity)).
			Str("title", msg.Title).
			Msg("Notification not sent: no webhook configured")
		return
	}

	select {
	case d.queue <- msg:
		log.Debug().
			Str("severity", string(msg.Severity)).
			Str("title", msg.Title).
			Msg("Notification queued")
	default:
		metrics.RecordNotification(string(msg.Severity), "dropped")
		log.Warn().
			Str("severity", string(msg.Severity)).
			Str("title", msg.Title).
			Int("queue_size", cap(d.queue)).
			Msg("Notification queue full, dropping message")
	}
}

// Serve implements suture.Service. It delivers queued messages until ctx is
// canceled, then spends at most DrainTimeout delivering what is left.
func (d *Dispatcher) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.drain(nil)
			return ctx.Err()
		case msg := <-d.queue:
			if ctx.Err() != nil {
				d.drain(&msg)
				return ctx.Err()
			}
			d.deliver(ctx, msg)
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (d *Dispatcher) String() string {
	return "notifier"
}

// drain delivers first (if set) and then whatever is still queued, bounded
// by DrainTimeout.
func (d *Dispatcher) drain(first *Message) {
	if d.sender == nil || (first == nil && len(d.queue) == 0) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.drainTimeout)
	defer cancel()

	if first != nil {
		d.deliver(ctx, *first)
	}
	for ctx.Err() == nil {
		select {
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		default:
			return
		}
	}
	d.dropRemaining()
}

func (d *Dispatcher) dropRemaining() {
	for {
		select {
		case msg := <-d.queue:
			metrics.RecordNotification(string(msg.Severity), "dropped")
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	if err := d.limiter.Wait(ctx); err != nil {
		metrics.RecordNotification(string(msg.Severity), "dropped")
		return
	}

	if err := d.sender.Send(ctx, msg); err != nil {
		metrics.RecordNotification(string(msg.Severity), "failed")
		d.logger.Warn().
			Err(redactURLError(err)).
			Str("severity", string(msg.Severity)).
			Str("title", msg.Title).
			Msg("Failed to deliver notification")
		return
	}
	metrics.RecordNotification(string(msg.Severity), "sent")
}

// redactURLError masks the path of the request URL in net/http errors;
// webhook URLs embed their secret token.
func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s %s: %w", urlErr.Op, logging.RedactURL(urlErr.URL), urlErr.Err)
	}
	return err
}
