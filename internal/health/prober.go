// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// APIKeyHeader carries the optional health endpoint API key.
const APIKeyHeader = "X-API-Key"

// ProberConfig configures a Prober.
type ProberConfig struct {
	// URL of the health endpoint. Empty disables probing (fail-open).
	URL string

	// APIKey is sent in the X-API-Key header when set.
	APIKey string

	// Timeout bounds a single check. Default: 10s
	Timeout time.Duration
}

// Result is the outcome of one health check.
type Result struct {
	Healthy bool
	Reason  string
}

// Prober performs single health checks against the upstream server.
type Prober struct {
	cfg    ProberConfig
	client *http.Client
}

// NewProber creates a Prober.
func NewProber(cfg ProberConfig) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Prober{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// Enabled reports whether an endpoint is configured.
func (p *Prober) Enabled() bool {
	return p.cfg.URL != ""
}

// CheckHealth performs one GET against the endpoint. Network errors, non-2xx
// statuses and the internal timeout all produce an unhealthy Result with a
// nil error. The error is non-nil only when ctx itself ended.
func (p *Prober) CheckHealth(ctx context.Context) (Result, error) {
	if p.cfg.URL == "" {
		return Result{Healthy: true, Reason: "no health endpoint configured"}, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return Result{Healthy: false, Reason: fmt.Sprintf("invalid health request: %v", err)}, nil
	}
	if p.cfg.APIKey != "" {
		req.Header.Set(APIKeyHeader, p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return Result{Healthy: false, Reason: fmt.Sprintf("timed out after %s", p.cfg.Timeout)}, nil
		}
		return Result{Healthy: false, Reason: transportReason(err)}, nil
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{Healthy: true, Reason: resp.Status}, nil
	}
	return Result{Healthy: false, Reason: fmt.Sprintf("unexpected status %s", resp.Status)}, nil
}

// transportReason returns the underlying network error without the request
// URL, which may carry credentials in its query string.
func transportReason(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}
	return err.Error()
}
