package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/equilibrium/internal/application/pipeline"
	"github.com/sawpanic/equilibrium/internal/config"
	"github.com/sawpanic/equilibrium/internal/equilibrium"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	}
	status := http.StatusOK

	if s.health != nil {
		check := s.health.Health(r.Context())
		resp.Database = &check
		if !check.Healthy {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	s.writeJSON(w, status, resp)
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
		return
	}

	records, err := s.exec.LoadProcessed(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	page := records
	if limit > 0 && limit < len(page) {
		page = page[:limit]
	}
	s.writeJSON(w, http.StatusOK, AssetsResponse{Count: len(page), Total: len(records), Assets: page})
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	records, err := s.exec.LoadProcessed(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	record, err := pipeline.Select(records, 0, mux.Vars(r)["symbol"])
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	req := pipeline.OverrideRequest{Preset: r.URL.Query().Get("preset")}
	var err error
	for _, p := range []struct {
		name string
		dst  **float64
	}{
		{"volume_mult", &req.VolumeMultiplier},
		{"volatility_mult", &req.VolatilityMultiplier},
		{"supply_shift", &req.SupplyUtilizationShift},
	} {
		if *p.dst, err = floatParam(r, p.name); err != nil {
			s.writeError(w, r, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
			return
		}
	}

	override, label, err := s.exec.ResolveOverride(req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	cmp, err := s.exec.Simulate(r.Context(), symbol, override, label)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, ScenarioResponse{
		Symbol:     cmp.Baseline.Key.Symbol,
		Preset:     label,
		Override:   override,
		Comparison: cmp,
	})
}

func (s *Server) handleMarketMap(w http.ResponseWriter, r *http.Request) {
	top, err := intParam(r, "top")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
		return
	}

	records, err := s.exec.LoadProcessed(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	points := pipeline.MarketMap(records, top)
	s.writeJSON(w, http.StatusOK, MarketMapResponse{Count: len(points), Points: points})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	s.writeError(w, r, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
}

// writeFailure maps domain errors onto status codes.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pipeline.ErrUnknownSymbol):
		s.writeError(w, r, http.StatusNotFound, "UNKNOWN_SYMBOL", err.Error())
	case errors.Is(err, equilibrium.ErrInvalidOverride), errors.Is(err, config.ErrUnknownPreset):
		s.writeError(w, r, http.StatusBadRequest, "INVALID_SCENARIO", err.Error())
	case errors.Is(err, equilibrium.ErrMalformedInput):
		s.writeError(w, r, http.StatusUnprocessableEntity, "MALFORMED_ASSET", err.Error())
	default:
		log.Error().Err(err).Str("request_id", requestID(r.Context())).Str("path", r.URL.Path).Msg("Request failed")
		s.writeError(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load equilibrium data")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	s.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Code:      code,
		Message:   message,
		RequestID: requestID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", name, raw)
	}
	return v, nil
}

func floatParam(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number, got %q", name, raw)
	}
	return &v, nil
}
