// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/stronghold/internal/logging"
	"github.com/tomtom215/stronghold/internal/metrics"
)

// breakerName labels the webhook circuit breaker in logs and metrics.
const breakerName = "notify-webhook"

// WebhookConfig configures a WebhookSender.
type WebhookConfig struct {
	URL     string
	Footer  string
	Timeout time.Duration

	// BreakerFailures is the number of consecutive failures that opens the
	// breaker. Default: 5
	BreakerFailures uint32

	// BreakerCooldown is how long the breaker stays open. Default: 1m
	BreakerCooldown time.Duration
}

// WebhookSender posts messages as Discord-compatible embeds.
type WebhookSender struct {
	url    string
	footer string
	client *http.Client
	cb     *gobreaker.CircuitBreaker[struct{}]
}

// NewWebhookSender creates a sender. It does not contact the webhook.
func NewWebhookSender(cfg WebhookConfig) *WebhookSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = time.Minute
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Webhook circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &WebhookSender{
		url:    cfg.URL,
		footer: cfg.Footer,
		client: &http.Client{Timeout: cfg.Timeout},
		cb:     cb,
	}
}

// Send posts msg through the circuit breaker. It returns gobreaker.ErrOpenState
// without contacting the webhook while the breaker is open.
func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	_, err := s.cb.Execute(func() (struct{}, error) {
		return struct{}{}, s.post(ctx, msg)
	})

	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
	}
	return err
}

func (s *WebhookSender) post(ctx context.Context, msg Message) error {
	body, err := json.Marshal(s.payload(msg))
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *WebhookSender) payload(msg Message) webhookPayload {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	e := embed{
		Title:       msg.Title,
		Description: msg.Description,
		Color:       msg.Severity.Color(),
		Timestamp:   ts.UTC().Format(time.RFC3339),
		Footer:      embedFooter{Text: s.footer},
	}
	for _, f := range msg.Fields {
		e.Fields = append(e.Fields, embedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return webhookPayload{Embeds: []embed{e}}
}

// stateToFloat converts breaker state to the circuit_breaker_state gauge value.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Timestamp   string       `json:"timestamp"`
	Footer      embedFooter  `json:"footer"`
	Fields      []embedField `json:"fields,omitempty"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}
