package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbarendse/sweepscope/pkg/models"
	"github.com/sbarendse/sweepscope/pkg/sweepscope/storage"
)

// stubService serves a single fixed run.
type stubService struct {
	run     models.SweepRun
	ms      []models.Measurement
	deleted []string
}

func (s *stubService) RunSweep(ctx context.Context) (*models.SweepResult, error) {
	return nil, nil
}

func (s *stubService) ListRuns() ([]models.SweepRun, error) {
	return []models.SweepRun{s.run}, nil
}

func (s *stubService) GetRun(runID string) (*models.SweepRun, error) {
	if runID != s.run.ID {
		return nil, storage.ErrRunNotFound
	}
	return &s.run, nil
}

func (s *stubService) Measurements(runID string) ([]models.Measurement, error) {
	return s.ms, nil
}

func (s *stubService) ExportCSV(w io.Writer, runID string) error { return nil }

func (s *stubService) RenderPlot(runID, outPath string) error { return nil }

func (s *stubService) DeleteRun(runID string) error {
	if runID != s.run.ID {
		return storage.ErrRunNotFound
	}
	s.deleted = append(s.deleted, runID)
	return nil
}

func (s *stubService) Close() error { return nil }

func newTestServer() (*Server, *stubService) {
	svc := &stubService{
		run: models.SweepRun{
			ID:        "run-1",
			MinFreqHz: 1000,
			MaxFreqHz: 10000,
			StepHz:    100,
			Status:    models.StatusCompleted,
		},
		ms: []models.Measurement{
			{Seq: 0, FrequencyHz: 9900, Amplitude: 1.0},
			{Seq: 1, FrequencyHz: 9800, Amplitude: 0.9},
		},
	}
	server := NewServer(svc, &ServerConfig{Port: 8080, AllowedOrigins: []string{"*"}})
	return server, svc
}

func doRequest(t *testing.T, server *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	server.setupRoutes().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer()
	rec := doRequest(t, server, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestListRuns(t *testing.T) {
	server, _ := newTestServer()
	rec := doRequest(t, server, http.MethodGet, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "completed", runs[0].Status)
}

func TestGetRunWithSummary(t *testing.T) {
	server, _ := newTestServer()
	rec := doRequest(t, server, http.MethodGet, "/api/runs/run-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var run RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "run-1", run.ID)
	require.NotNil(t, run.Summary)
	assert.Equal(t, 9900.0, run.Summary.PeakFreqHz)
}

func TestGetRunNotFound(t *testing.T) {
	server, _ := newTestServer()
	rec := doRequest(t, server, http.MethodGet, "/api/runs/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetMeasurements(t *testing.T) {
	server, _ := newTestServer()
	rec := doRequest(t, server, http.MethodGet, "/api/runs/run-1/measurements")
	require.Equal(t, http.StatusOK, rec.Code)

	var ms []MeasurementResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ms))
	require.Len(t, ms, 2)
	assert.Equal(t, 9900.0, ms[0].FrequencyHz)
}

func TestGetPlot(t *testing.T) {
	server, _ := newTestServer()
	rec := doRequest(t, server, http.MethodGet, "/api/runs/run-1/plot.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Greater(t, rec.Body.Len(), 0)
}

func TestDeleteRun(t *testing.T) {
	server, svc := newTestServer()
	rec := doRequest(t, server, http.MethodDelete, "/api/runs/run-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"run-1"}, svc.deleted)

	rec = doRequest(t, server, http.MethodDelete, "/api/runs/ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer()
	rec := doRequest(t, server, http.MethodPost, "/api/runs")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	server, _ := newTestServer()
	rec := doRequest(t, server, http.MethodOptions, "/api/runs")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
