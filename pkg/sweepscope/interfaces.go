package sweepscope

import (
	"context"
	"io"

	"github.com/sbarendse/sweepscope/pkg/models"
)

// Service is the high-level API shared by the CLI and the HTTP server.
type Service interface {
	RunSweep(ctx context.Context) (*models.SweepResult, error)
	ListRuns() ([]models.SweepRun, error)
	GetRun(runID string) (*models.SweepRun, error)
	Measurements(runID string) ([]models.Measurement, error)
	ExportCSV(w io.Writer, runID string) error
	RenderPlot(runID, outPath string) error
	DeleteRun(runID string) error
	Close() error
}

// Storage persists sweep runs and their measurements.
type Storage interface {
	RegisterRun(run models.SweepRun) (string, error)
	AppendMeasurement(runID string, m models.Measurement) error
	FinishRun(runID string, status models.RunStatus, runErr string, autosets int) error
	GetRun(runID string) (*models.SweepRun, error)
	ListRuns() ([]models.SweepRun, error)
	MeasurementsForRun(runID string) ([]models.Measurement, error)
	DeleteRun(runID string) error
	Close() error
}

// Logger is the logging contract the service depends on.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
