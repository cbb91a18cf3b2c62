// Package sweepscope wires the instruments, the sweep controller and the
// persistence layer into one service.
package sweepscope

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sbarendse/sweepscope/pkg/logger"
	"github.com/sbarendse/sweepscope/pkg/models"
	"github.com/sbarendse/sweepscope/pkg/sweepscope/generator"
	"github.com/sbarendse/sweepscope/pkg/sweepscope/plot"
	"github.com/sbarendse/sweepscope/pkg/sweepscope/scope"
	"github.com/sbarendse/sweepscope/pkg/sweepscope/serial"
	"github.com/sbarendse/sweepscope/pkg/sweepscope/storage"
	"github.com/sbarendse/sweepscope/pkg/sweepscope/sweep"
)

// sweepService is the default implementation of the Service interface.
type sweepService struct {
	storage Storage
	log     Logger
	config  *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = storage.NewDBClientWithPath(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &sweepService{
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

// RunSweep connects both instruments, runs the sweep and persists each
// measurement as it completes, so an aborted run keeps its partial dataset.
func (s *sweepService) RunSweep(ctx context.Context) (*models.SweepResult, error) {
	if err := s.config.Sweep.Validate(); err != nil {
		return nil, err
	}

	scopeLink, err := s.scopeLink()
	if err != nil {
		return nil, err
	}
	if s.config.ScopeLink == nil {
		defer scopeLink.Close()
	}

	genLink, err := s.generatorLink()
	if err != nil {
		return nil, err
	}
	if s.config.GeneratorLink == nil {
		defer genLink.Close()
	}

	gen := generator.NewJDS6600(genLink)
	if err := gen.Connect(); err != nil {
		return nil, err
	}
	s.log.Infof("generator connected on %s", s.config.GeneratorPort)

	client := scope.NewClient(scopeLink,
		scope.WithRetryPolicy(s.config.Retry),
		scope.WithLogger(s.log),
	)

	runID, err := s.storage.RegisterRun(models.SweepRun{
		StartedAt:      time.Now(),
		MinFreqHz:      s.config.Sweep.MinFreqHz,
		MaxFreqHz:      s.config.Sweep.MaxFreqHz,
		StepHz:         s.config.Sweep.StepHz,
		DriftThreshold: s.config.Sweep.DriftThreshold,
		ScopePort:      s.config.ScopePort,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register run: %w", err)
	}
	s.log.Infof("sweep run %s started", runID)

	ctrl := sweep.NewController(client, gen, s.config.Sweep,
		sweep.WithLogger(s.log),
		sweep.WithOnMeasurement(func(m models.Measurement) {
			if err := s.storage.AppendMeasurement(runID, m); err != nil {
				s.log.Warnf("persisting measurement %d: %v", m.Seq, err)
			}
		}),
	)

	res, runErr := ctrl.Run(ctx)
	res.RunID = runID

	if runErr != nil {
		if err := s.storage.FinishRun(runID, models.StatusAborted, runErr.Error(), res.AutosetCount); err != nil {
			s.log.Errorf("marking run %s aborted: %v", runID, err)
		}
		s.log.Errorf("sweep run %s aborted after %d measurements: %v", runID, len(res.Measurements), runErr)
		return res, runErr
	}

	if err := s.storage.FinishRun(runID, models.StatusCompleted, "", res.AutosetCount); err != nil {
		return res, fmt.Errorf("marking run complete: %w", err)
	}
	s.log.Infof("sweep run %s completed: %d measurements, %d autoset re-triggers",
		runID, len(res.Measurements), res.AutosetCount)
	return res, nil
}

func (s *sweepService) scopeLink() (serial.Port, error) {
	if s.config.ScopeLink != nil {
		return s.config.ScopeLink, nil
	}
	port, err := serial.Open(serial.DefaultConfig(s.config.ScopePort))
	if err != nil {
		return nil, fmt.Errorf("opening scope link: %w", err)
	}
	return port, nil
}

func (s *sweepService) generatorLink() (serial.Port, error) {
	if s.config.GeneratorLink != nil {
		return s.config.GeneratorLink, nil
	}
	port, err := serial.Open(generator.DefaultConfig(s.config.GeneratorPort))
	if err != nil {
		return nil, fmt.Errorf("opening generator link: %w", err)
	}
	return port, nil
}

func (s *sweepService) ListRuns() ([]models.SweepRun, error) {
	return s.storage.ListRuns()
}

func (s *sweepService) GetRun(runID string) (*models.SweepRun, error) {
	return s.storage.GetRun(runID)
}

func (s *sweepService) Measurements(runID string) ([]models.Measurement, error) {
	return s.storage.MeasurementsForRun(runID)
}

// ExportCSV writes a run's dataset as CSV with a header row.
func (s *sweepService) ExportCSV(w io.Writer, runID string) error {
	ms, err := s.storage.MeasurementsForRun(runID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"seq", "frequency_hz", "amplitude"}); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, m := range ms {
		record := []string{
			strconv.Itoa(m.Seq),
			strconv.FormatFloat(m.FrequencyHz, 'g', -1, 64),
			strconv.FormatFloat(m.Amplitude, 'g', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// RenderPlot writes the run's amplitude-vs-frequency plot as a PNG file.
func (s *sweepService) RenderPlot(runID, outPath string) error {
	ms, err := s.storage.MeasurementsForRun(runID)
	if err != nil {
		return err
	}
	res := models.SweepResult{RunID: runID, Measurements: ms}
	title := fmt.Sprintf("sweep %s", shortID(runID))
	if err := plot.SavePNG(outPath, title, res.Frequencies(), res.Amplitudes()); err != nil {
		return err
	}
	s.log.Infof("plot written to %s", outPath)
	return nil
}

func (s *sweepService) DeleteRun(runID string) error {
	return s.storage.DeleteRun(runID)
}

func (s *sweepService) Close() error {
	return s.storage.Close()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
