// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

/*
Package middleware provides the HTTP middleware used by the operator API.

Key Components:

  - RequestID: request tracking through the X-Request-ID header
  - PrometheusMetrics: request count and latency per route pattern
  - AccessLog: one structured log line per request

All middleware has the standard func(http.Handler) http.Handler shape and can
be passed straight to chi's Use:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog)

Metrics are labeled with the chi route pattern ("/api/v1/cycles/{id}"), never
the raw path, so cycle IDs do not create new series.
*/
package middleware
