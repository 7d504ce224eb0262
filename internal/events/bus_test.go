// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestBus_AvailabilityRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewBus(4)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.SubscribeAvailability(ctx)
	if err != nil {
		t.Fatalf("SubscribeAvailability() error = %v", err)
	}

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := bus.PublishAvailability(context.Background(), AvailabilityChanged{
		Available:           false,
		ConsecutiveFailures: 3,
		LastError:           "status 503",
		At:                  at,
	}); err != nil {
		t.Fatalf("PublishAvailability() error = %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Available || ev.ConsecutiveFailures != 3 || ev.LastError != "status 503" || !ev.At.Equal(at) {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewBus(4)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	avail, err := bus.SubscribeAvailability(ctx)
	if err != nil {
		t.Fatal(err)
	}
	cycles, err := bus.SubscribeCycleCompleted(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if err := bus.PublishCycleCompleted(context.Background(), CycleCompleted{CycleID: "c1", Status: "succeeded"}); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-cycles:
		if ev.CycleID != "c1" || ev.Status != "succeeded" {
			t.Errorf("unexpected cycle event: %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cycle event not delivered")
	}

	select {
	case ev := <-avail:
		t.Errorf("availability subscriber received unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_SubscriptionClosesWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewBus(1)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.SubscribeAvailability(ctx)
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("subscription channel not closed after cancel")
	}
}

func TestBus_Closed(t *testing.T) {
	bus := NewBus(1)
	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := bus.PublishAvailability(context.Background(), AvailabilityChanged{}); !errors.Is(err, ErrClosed) {
		t.Errorf("publish on closed bus = %v, want ErrClosed", err)
	}
	if _, err := bus.SubscribeAvailability(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("subscribe on closed bus = %v, want ErrClosed", err)
	}
}
