// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/stronghold/internal/cycle"
	"github.com/tomtom215/stronghold/internal/health"
	"github.com/tomtom215/stronghold/internal/history"
	"github.com/tomtom215/stronghold/internal/logging"
	"github.com/tomtom215/stronghold/internal/validation"
)

const defaultListLimit = 20

// cyclesQuery holds the parameters of GET /api/v1/cycles.
type cyclesQuery struct {
	Limit int `koanf:"limit" validate:"min=1,max=500"`
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Version       string        `json:"version,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Server        health.State  `json:"server"`
	CycleRunning  bool          `json:"cycle_running"`
	LastCycle     *cycle.Report `json:"last_cycle,omitempty"`
}

// TriggerResponse is the body of an accepted POST /api/v1/cycles.
type TriggerResponse struct {
	Trigger cycle.Trigger `json:"trigger"`
	Queued  bool          `json:"queued"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.respondData(w, r, http.StatusOK, map[string]string{"status": "ok"}, nil)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version:       s.deps.Version,
		StartedAt:     s.deps.StartedAt.UTC(),
		UptimeSeconds: int64(s.clock.Now().Sub(s.deps.StartedAt) / time.Second),
	}
	if s.deps.Health != nil {
		resp.Server = s.deps.Health.State()
	}
	if s.deps.Cycles != nil {
		resp.CycleRunning = s.deps.Cycles.Running()
		if last, ok := s.deps.Cycles.LastReport(); ok {
			resp.LastCycle = &last
		}
	}
	s.respondData(w, r, http.StatusOK, resp, nil)
}

func (s *Server) handleListCycles(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		s.respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Cycle history is not available", nil)
		return
	}

	q := cyclesQuery{Limit: defaultListLimit}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "limit must be an integer", nil)
			return
		}
		q.Limit = n
	}
	if verr := validation.ValidateStruct(&q); verr != nil {
		s.respondValidationError(w, r, verr)
		return
	}

	reports, err := s.deps.History.List(r.Context(), q.Limit)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to read cycle history", err)
		return
	}
	if reports == nil {
		reports = []cycle.Report{}
	}
	s.respondData(w, r, http.StatusOK, reports, &PaginationMeta{Count: len(reports), Limit: q.Limit})
}

func (s *Server) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		s.respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Cycle history is not available", nil)
		return
	}

	id := chi.URLParam(r, "id")
	report, err := s.deps.History.Get(r.Context(), id)
	switch {
	case errors.Is(err, history.ErrNotFound):
		s.respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Cycle "+id+" not found", nil)
	case err != nil:
		s.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to read cycle history", err)
	default:
		s.respondData(w, r, http.StatusOK, report, nil)
	}
}

func (s *Server) handleTriggerCycle(w http.ResponseWriter, r *http.Request) {
	if s.deps.Trigger == nil {
		s.respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Scheduler is not running", nil)
		return
	}

	err := s.deps.Trigger.Trigger(cycle.TriggerManual)
	switch {
	case errors.Is(err, cycle.ErrCycleInProgress):
		s.respondError(w, r, http.StatusConflict, ErrCodeConflict, "A cycle is already running or queued", nil)
	case err != nil:
		s.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to queue cycle", err)
	default:
		logging.Ctx(r.Context()).Info().Str("remote_addr", r.RemoteAddr).Msg("Manual cycle queued")
		s.respondData(w, r, http.StatusAccepted, TriggerResponse{Trigger: cycle.TriggerManual, Queued: true}, nil)
	}
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, r, http.StatusTooManyRequests, ErrCodeTooManyRequests, "Too many cycle requests", nil)
}
