// Package http serves health, metrics and the plan/station query API.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/metar-etl/internal/adapter/export"
	"github.com/couchcryptid/metar-etl/internal/domain"
)

// Planner builds the render payload for a region and cycle hour.
type Planner interface {
	Plan(ctx context.Context, regionID string, hour int) (*domain.RenderPayload, error)
}

// StationSource filters the station catalog.
type StationSource interface {
	Filter(f domain.StationFilter) []domain.StationRecord
}

// Server exposes health, readiness, metrics and API endpoints.
type Server struct {
	httpServer *http.Server
	planner    Planner
	stations   StationSource
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz and /metrics routes.
// /api/plan and /api/stations are registered when their backends are non-nil.
func NewServer(addr string, ready sharedobs.ReadinessChecker, planner Planner, stations StationSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		planner:  planner,
		stations: stations,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if planner != nil {
		mux.HandleFunc("GET /api/plan", s.handlePlan)
	}
	if stations != nil {
		mux.HandleFunc("GET /api/stations", s.handleStations)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handlePlan serves GET /api/plan?region=NJ&hour=2[&format=geojson].
// hour defaults to the current cycle.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	region := q.Get("region")
	if region == "" {
		s.writeError(w, &domain.ValidationError{Param: "region", Reason: "is required"})
		return
	}

	hour := domain.CurrentCycleHour()
	if raw := q.Get("hour"); raw != "" {
		h, err := strconv.Atoi(raw)
		if err != nil || h < 0 || h > 23 {
			s.writeError(w, &domain.ValidationError{Param: "hour", Reason: "must be an integer between 0 and 23"})
			return
		}
		hour = h
	}

	payload, err := s.planner.Plan(r.Context(), region, hour)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if q.Get("format") == "geojson" {
		data, err := export.FeatureCollection(payload).MarshalJSON()
		if err != nil {
			s.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, payload)
}

// handleStations serves GET /api/stations with optional metar, nexrad,
// rawinsonde, sounding, office and states filters; format=csv switches to CSV.
func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := make(map[string]string)
	for _, key := range []string{
		domain.FilterParamMETAR,
		domain.FilterParamRadar,
		domain.FilterParamRawinsonde,
		domain.FilterParamSounding,
		domain.FilterParamOffice,
		domain.FilterParamRegions,
	} {
		if q.Has(key) {
			params[key] = q.Get(key)
		}
	}

	filter, err := domain.NewStationFilter(params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	records := s.stations.Filter(filter)

	if q.Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		if err := export.WriteStationsCSV(w, records); err != nil {
			s.logger.Warn("write stations csv", "error", err)
		}
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"count":    len(records),
		"stations": records,
	})
}

// writeError maps the error taxonomy to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var (
		ve *domain.ValidationError
		re *domain.ResolutionError
		fe *domain.FetchError
	)
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	case errors.As(err, &re):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &fe):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("api request failed", "status", status, "error", err)
	}
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
