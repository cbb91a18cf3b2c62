package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sbarendse/sweepscope/pkg/models"
)

// setupTestDB creates a client over a temporary database file.
func setupTestDB(t *testing.T) (*DBClient, string) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test_sweepscope.sqlite3")

	client, err := NewDBClientWithPath(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test DB client: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
	})

	return client, dbPath
}

func testRun() models.SweepRun {
	return models.SweepRun{
		MinFreqHz:      1000,
		MaxFreqHz:      10000,
		StepHz:         100,
		DriftThreshold: 0.4,
		ScopePort:      "/dev/ttyUSB0",
	}
}

func TestNewDBClient(t *testing.T) {
	client, dbPath := setupTestDB(t)

	if client.DB == nil {
		t.Fatal("Expected non-nil GORM DB handle")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", dbPath)
	}
}

func TestNewDBClientEnvPath(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "env_sweepscope.sqlite3")
	t.Setenv("SWEEP_DB_PATH", dbPath)

	client, err := NewDBClient()
	if err != nil {
		t.Fatalf("Failed to create DB client from env: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", dbPath)
	}
}

func TestRegisterAndGetRun(t *testing.T) {
	client, _ := setupTestDB(t)

	id, err := client.RegisterRun(testRun())
	if err != nil {
		t.Fatalf("RegisterRun failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected non-empty run ID")
	}

	run, err := client.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != models.StatusRunning {
		t.Errorf("Expected status running, got %s", run.Status)
	}
	if run.MinFreqHz != 1000 || run.MaxFreqHz != 10000 || run.StepHz != 100 {
		t.Errorf("Run parameters not round-tripped: %+v", run)
	}
	if run.StartedAt.IsZero() {
		t.Error("Expected StartedAt to be set")
	}
}

func TestGetRunNotFound(t *testing.T) {
	client, _ := setupTestDB(t)

	_, err := client.GetRun("does-not-exist")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}

func TestAppendAndListMeasurements(t *testing.T) {
	client, _ := setupTestDB(t)

	id, err := client.RegisterRun(testRun())
	if err != nil {
		t.Fatalf("RegisterRun failed: %v", err)
	}

	steps := []models.Measurement{
		{Seq: 0, FrequencyHz: 9900.5, Amplitude: 1.02},
		{Seq: 1, FrequencyHz: 9800.1, Amplitude: 0.98},
		{Seq: 2, FrequencyHz: 9700.7, Amplitude: 0.95},
	}
	for _, m := range steps {
		if err := client.AppendMeasurement(id, m); err != nil {
			t.Fatalf("AppendMeasurement failed: %v", err)
		}
	}

	got, err := client.MeasurementsForRun(id)
	if err != nil {
		t.Fatalf("MeasurementsForRun failed: %v", err)
	}
	if len(got) != len(steps) {
		t.Fatalf("Expected %d measurements, got %d", len(steps), len(got))
	}
	for i, m := range got {
		if m != steps[i] {
			t.Errorf("Measurement %d mismatch: got %+v, want %+v", i, m, steps[i])
		}
	}
}

func TestFinishRun(t *testing.T) {
	client, _ := setupTestDB(t)

	id, err := client.RegisterRun(testRun())
	if err != nil {
		t.Fatalf("RegisterRun failed: %v", err)
	}

	if err := client.FinishRun(id, models.StatusCompleted, "", 3); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	run, err := client.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != models.StatusCompleted {
		t.Errorf("Expected status completed, got %s", run.Status)
	}
	if run.AutosetCount != 3 {
		t.Errorf("Expected autoset count 3, got %d", run.AutosetCount)
	}
	if run.FinishedAt.IsZero() {
		t.Error("Expected FinishedAt to be set")
	}
}

func TestFinishRunAborted(t *testing.T) {
	client, _ := setupTestDB(t)

	id, err := client.RegisterRun(testRun())
	if err != nil {
		t.Fatalf("RegisterRun failed: %v", err)
	}

	if err := client.FinishRun(id, models.StatusAborted, "scope: query failed after 3 attempts", 0); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	run, err := client.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != models.StatusAborted {
		t.Errorf("Expected status aborted, got %s", run.Status)
	}
	if run.Error == "" {
		t.Error("Expected error text to be recorded")
	}
}

func TestFinishRunNotFound(t *testing.T) {
	client, _ := setupTestDB(t)

	err := client.FinishRun("missing", models.StatusCompleted, "", 0)
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	client, _ := setupTestDB(t)

	first, err := client.RegisterRun(testRun())
	if err != nil {
		t.Fatalf("RegisterRun failed: %v", err)
	}
	second, err := client.RegisterRun(testRun())
	if err != nil {
		t.Fatalf("RegisterRun failed: %v", err)
	}

	runs, err := client.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	ids := map[string]bool{runs[0].ID: true, runs[1].ID: true}
	if !ids[first] || !ids[second] {
		t.Errorf("ListRuns missing registered runs: %v", runs)
	}
}

func TestDeleteRunCascades(t *testing.T) {
	client, _ := setupTestDB(t)

	id, err := client.RegisterRun(testRun())
	if err != nil {
		t.Fatalf("RegisterRun failed: %v", err)
	}
	if err := client.AppendMeasurement(id, models.Measurement{Seq: 0, FrequencyHz: 9900, Amplitude: 1}); err != nil {
		t.Fatalf("AppendMeasurement failed: %v", err)
	}

	if err := client.DeleteRun(id); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}

	if _, err := client.GetRun(id); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected run to be gone, got %v", err)
	}
	ms, err := client.MeasurementsForRun(id)
	if err != nil {
		t.Fatalf("MeasurementsForRun failed: %v", err)
	}
	if len(ms) != 0 {
		t.Errorf("Expected measurements to cascade, got %d rows", len(ms))
	}
}

func TestDeleteRunNotFound(t *testing.T) {
	client, _ := setupTestDB(t)

	if err := client.DeleteRun("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}
