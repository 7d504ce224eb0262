// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

// Package events is Stronghold's in-process event bus.
//
// The health monitor publishes availability changes and the backup cycle
// publishes completions. Subscribers receive typed events on a channel that
// closes when their context ends. The bus is a watermill GoChannel: messages
// are not persisted, so a subscriber only sees events published after it
// subscribed.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/stronghold/internal/logging"
)

// Topics.
const (
	TopicAvailabilityChanged = "availability.changed"
	TopicCycleCompleted      = "cycle.completed"
)

// correlationIDKey is the message metadata key carrying the correlation ID.
const correlationIDKey = "correlation_id"

// ErrClosed is returned when publishing or subscribing on a closed bus.
var ErrClosed = errors.New("event bus closed")

// AvailabilityChanged is published on every health state transition.
type AvailabilityChanged struct {
	Available           bool      `json:"available"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	At                  time.Time `json:"at"`
}

// CycleCompleted is published when a backup cycle finishes, whatever its status.
type CycleCompleted struct {
	CycleID    string        `json:"cycle_id"`
	Trigger    string        `json:"trigger"`
	Status     string        `json:"status"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Bus publishes and delivers typed events.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewBus creates a bus whose per-subscriber buffer holds bufferSize messages.
func NewBus(bufferSize int64) *Bus {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	logger := logging.NewWatermillAdapter()
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: bufferSize}, logger),
		logger: logger,
	}
}

// PublishAvailability publishes an AvailabilityChanged event.
func (b *Bus) PublishAvailability(ctx context.Context, ev AvailabilityChanged) error {
	return b.publish(ctx, TopicAvailabilityChanged, ev)
}

// PublishCycleCompleted publishes a CycleCompleted event.
func (b *Bus) PublishCycleCompleted(ctx context.Context, ev CycleCompleted) error {
	return b.publish(ctx, TopicCycleCompleted, ev)
}

// SubscribeAvailability returns AvailabilityChanged events until ctx ends.
func (b *Bus) SubscribeAvailability(ctx context.Context) (<-chan AvailabilityChanged, error) {
	return subscribe[AvailabilityChanged](ctx, b, TopicAvailabilityChanged)
}

// SubscribeCycleCompleted returns CycleCompleted events until ctx ends.
func (b *Bus) SubscribeCycleCompleted(ctx context.Context) (<-chan CycleCompleted, error) {
	return subscribe[CycleCompleted](ctx, b, TopicCycleCompleted)
}

// Close closes the bus and every subscription channel.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	return b.pubsub.Close()
}

func (b *Bus) publish(ctx context.Context, topic string, payload any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(correlationIDKey, id)
	}

	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// subscribe decodes messages on topic into T. Every message is acked, including
// ones that fail to decode, so a bad payload is never redelivered.
func subscribe[T any](ctx context.Context, b *Bus, topic string) (<-chan T, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, ErrClosed
	}
	messages, err := b.pubsub.Subscribe(ctx, topic)
	b.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	out := make(chan T, 1)
	go func() {
		defer close(out)
		for msg := range messages {
			var ev T
			decodeErr := json.Unmarshal(msg.Payload, &ev)
			msg.Ack()
			if decodeErr != nil {
				b.logger.Error("Dropping undecodable event", decodeErr, watermill.LogFields{
					"topic":      topic,
					"message_id": msg.UUID,
				})
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
