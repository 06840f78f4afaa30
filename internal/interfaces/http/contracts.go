package http

import (
	"time"

	"github.com/sawpanic/equilibrium/internal/application/pipeline"
	"github.com/sawpanic/equilibrium/internal/dataset"
	"github.com/sawpanic/equilibrium/internal/equilibrium"
	"github.com/sawpanic/equilibrium/internal/persistence"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Uptime    string                   `json:"uptime"`
	Database  *persistence.HealthCheck `json:"database,omitempty"`
}

// AssetsResponse lists processed records.
type AssetsResponse struct {
	Count  int              `json:"count"`
	Total  int              `json:"total"`
	Assets []dataset.Record `json:"assets"`
}

// ScenarioResponse wraps a baseline/scenario comparison for one asset.
type ScenarioResponse struct {
	Symbol   string                       `json:"symbol"`
	Preset   string                       `json:"preset"`
	Override equilibrium.ScenarioOverride `json:"override"`
	equilibrium.Comparison
}

// MarketMapResponse is the body of GET /market-map.
type MarketMapResponse struct {
	Count  int                 `json:"count"`
	Points []pipeline.MapPoint `json:"points"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
