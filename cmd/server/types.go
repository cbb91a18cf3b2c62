package main

import (
	"time"

	"github.com/sbarendse/sweepscope/pkg/logger"
	"github.com/sbarendse/sweepscope/pkg/models"
	"github.com/sbarendse/sweepscope/pkg/sweepscope"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port           int
	DBPath         string
	AllowedOrigins []string
}

// Server serves the stored sweep runs over a JSON API.
type Server struct {
	service sweepscope.Service
	config  *ServerConfig
	log     *logger.Logger
}

func NewServer(service sweepscope.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger(),
	}
}

// RunResponse is the JSON shape of a sweep run.
type RunResponse struct {
	ID             string           `json:"id"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     time.Time        `json:"finished_at,omitzero"`
	MinFreqHz      float64          `json:"min_freq_hz"`
	MaxFreqHz      float64          `json:"max_freq_hz"`
	StepHz         float64          `json:"step_hz"`
	DriftThreshold float64          `json:"drift_threshold"`
	ScopePort      string           `json:"scope_port,omitempty"`
	Status         string           `json:"status"`
	Error          string           `json:"error,omitempty"`
	AutosetCount   int              `json:"autoset_count"`
	Summary        *SummaryResponse `json:"summary,omitempty"`
}

// SummaryResponse is the JSON shape of a response analysis.
type SummaryResponse struct {
	PeakFreqHz    float64 `json:"peak_freq_hz"`
	PeakAmplitude float64 `json:"peak_amplitude"`
	MeanAmplitude float64 `json:"mean_amplitude"`
	LowCutoffHz   float64 `json:"low_cutoff_hz,omitempty"`
	HighCutoffHz  float64 `json:"high_cutoff_hz,omitempty"`
	BandwidthHz   float64 `json:"bandwidth_hz,omitempty"`
}

// MeasurementResponse is the JSON shape of one sweep step.
type MeasurementResponse struct {
	Seq         int     `json:"seq"`
	FrequencyHz float64 `json:"frequency_hz"`
	Amplitude   float64 `json:"amplitude"`
}

// ErrorResponse is the JSON shape of an error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

func toRunResponse(run *models.SweepRun) RunResponse {
	return RunResponse{
		ID:             run.ID,
		StartedAt:      run.StartedAt,
		FinishedAt:     run.FinishedAt,
		MinFreqHz:      run.MinFreqHz,
		MaxFreqHz:      run.MaxFreqHz,
		StepHz:         run.StepHz,
		DriftThreshold: run.DriftThreshold,
		ScopePort:      run.ScopePort,
		Status:         string(run.Status),
		Error:          run.Error,
		AutosetCount:   run.AutosetCount,
	}
}

func toMeasurementResponses(ms []models.Measurement) []MeasurementResponse {
	out := make([]MeasurementResponse, len(ms))
	for i, m := range ms {
		out[i] = MeasurementResponse{Seq: m.Seq, FrequencyHz: m.FrequencyHz, Amplitude: m.Amplitude}
	}
	return out
}
