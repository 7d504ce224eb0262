// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

/*
Package api implements the operator HTTP API.

Endpoints:

	GET  /healthz                 liveness, always 200 while the process serves
	GET  /api/v1/status           server availability, uptime, last cycle
	GET  /api/v1/cycles?limit=N   cycle history, newest first
	GET  /api/v1/cycles/{id}      one cycle report
	POST /api/v1/cycles           request a cycle now (202, or 409 when busy)
	GET  /metrics                 Prometheus exposition

Every JSON response uses the APIResponse envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}
	{"success": false, "error": {"code": "CONFLICT", "message": "..."}}

The API has no authentication. It binds to 127.0.0.1 by default; expose it
only behind something that authenticates.
*/
package api
