package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sbarendse/sweepscope/pkg/models"
	"github.com/sbarendse/sweepscope/pkg/sweepscope/analysis"
	"github.com/sbarendse/sweepscope/pkg/sweepscope/plot"
	"github.com/sbarendse/sweepscope/pkg/sweepscope/storage"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorf("encoding response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, format string, args ...any) {
	s.writeJSON(w, status, ErrorResponse{Error: fmt.Sprintf(format, args...)})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	fmt.Fprintln(w, "SweepScope API - see /api/runs")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.ListRuns()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "storage unavailable: %v", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"runs":   len(runs),
	})
}

// handleRuns serves GET /api/runs.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)
		return
	}

	runs, err := s.service.ListRuns()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "listing runs: %v", err)
		return
	}

	out := make([]RunResponse, len(runs))
	for i := range runs {
		out[i] = toRunResponse(&runs[i])
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleRun serves /api/runs/{id}, /api/runs/{id}/measurements and
// /api/runs/{id}/plot.png.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	runID, sub, _ := strings.Cut(rest, "/")
	if runID == "" {
		s.writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			s.handleGetRun(w, runID)
		case http.MethodDelete:
			s.handleDeleteRun(w, runID)
		default:
			s.writeError(w, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)
		}
	case "measurements":
		s.handleMeasurements(w, r, runID)
	case "plot.png":
		s.handlePlot(w, r, runID)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleGetRun(w http.ResponseWriter, runID string) {
	run, err := s.service.GetRun(runID)
	if errors.Is(err, storage.ErrRunNotFound) {
		s.writeError(w, http.StatusNotFound, "run %s not found", runID)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "loading run: %v", err)
		return
	}

	resp := toRunResponse(run)
	if ms, err := s.service.Measurements(runID); err == nil && len(ms) > 0 {
		result := models.SweepResult{Measurements: ms}
		if sum, err := analysis.Summarize(result.Frequencies(), result.Amplitudes()); err == nil {
			resp.Summary = &SummaryResponse{
				PeakFreqHz:    sum.PeakFreqHz,
				PeakAmplitude: sum.PeakAmplitude,
				MeanAmplitude: sum.MeanAmplitude,
				LowCutoffHz:   sum.LowCutoffHz,
				HighCutoffHz:  sum.HighCutoffHz,
				BandwidthHz:   sum.BandwidthHz,
			}
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, runID string) {
	err := s.service.DeleteRun(runID)
	if errors.Is(err, storage.ErrRunNotFound) {
		s.writeError(w, http.StatusNotFound, "run %s not found", runID)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "deleting run: %v", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"deleted": runID})
}

func (s *Server) handleMeasurements(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)
		return
	}

	if _, err := s.service.GetRun(runID); errors.Is(err, storage.ErrRunNotFound) {
		s.writeError(w, http.StatusNotFound, "run %s not found", runID)
		return
	}

	ms, err := s.service.Measurements(runID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "loading measurements: %v", err)
		return
	}
	s.writeJSON(w, http.StatusOK, toMeasurementResponses(ms))
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)
		return
	}

	if _, err := s.service.GetRun(runID); errors.Is(err, storage.ErrRunNotFound) {
		s.writeError(w, http.StatusNotFound, "run %s not found", runID)
		return
	}

	ms, err := s.service.Measurements(runID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "loading measurements: %v", err)
		return
	}
	if len(ms) == 0 {
		s.writeError(w, http.StatusNotFound, "run %s has no measurements", runID)
		return
	}

	result := models.SweepResult{RunID: runID, Measurements: ms}
	w.Header().Set("Content-Type", "image/png")
	title := fmt.Sprintf("sweep %s", runID)
	if err := plot.WritePNG(w, title, result.Frequencies(), result.Amplitudes()); err != nil {
		s.log.Errorf("rendering plot for %s: %v", runID, err)
	}
}
