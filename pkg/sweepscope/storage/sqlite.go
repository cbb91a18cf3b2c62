package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sbarendse/sweepscope/pkg/models"
)

const DefaultDBFile = "sweepscope.sqlite3"

var ErrRunNotFound = errors.New("storage: run not found")

const errDBClientNil = "db client is nil"

// DBClient wraps the gorm handle over the sqlite file.
type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// SweepRun is the persisted form of a sweep run.
type SweepRun struct {
	ID             string `gorm:"primaryKey;type:varchar(36)"`
	StartedAt      time.Time
	FinishedAt     time.Time
	MinFreqHz      float64
	MaxFreqHz      float64
	StepHz         float64
	DriftThreshold float64
	ScopePort      string
	Status         string `gorm:"index:idx_status"`
	Error          string
	AutosetCount   int
}

// Measurement is one persisted sweep step.
type Measurement struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	RunID       string `gorm:"type:varchar(36);index:idx_run"`
	Seq         int
	FrequencyHz float64
	Amplitude   float64
	CreatedAt   time.Time
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("SWEEP_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&SweepRun{}, &Measurement{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// RegisterRun inserts a new run in the running state and returns its ID.
func (c *DBClient) RegisterRun(run models.SweepRun) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}

	id := uuid.NewString()
	rec := SweepRun{
		ID:             id,
		StartedAt:      run.StartedAt,
		MinFreqHz:      run.MinFreqHz,
		MaxFreqHz:      run.MaxFreqHz,
		StepHz:         run.StepHz,
		DriftThreshold: run.DriftThreshold,
		ScopePort:      run.ScopePort,
		Status:         string(models.StatusRunning),
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	if err := c.DB.Create(&rec).Error; err != nil {
		return "", fmt.Errorf("registering run: %w", err)
	}
	return id, nil
}

// AppendMeasurement persists one completed sweep step. Called per step so
// an aborted run still keeps its partial dataset.
func (c *DBClient) AppendMeasurement(runID string, m models.Measurement) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	rec := Measurement{
		RunID:       runID,
		Seq:         m.Seq,
		FrequencyHz: m.FrequencyHz,
		Amplitude:   m.Amplitude,
	}
	if err := c.DB.Create(&rec).Error; err != nil {
		return fmt.Errorf("appending measurement: %w", err)
	}
	return nil
}

// FinishRun records the final status of a run.
func (c *DBClient) FinishRun(runID string, status models.RunStatus, runErr string, autosets int) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	updates := map[string]any{
		"status":        string(status),
		"error":         runErr,
		"autoset_count": autosets,
		"finished_at":   time.Now(),
	}
	tx := c.DB.Model(&SweepRun{}).Where("id = ?", runID).Updates(updates)
	if tx.Error != nil {
		return fmt.Errorf("finishing run: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (c *DBClient) GetRun(runID string) (*models.SweepRun, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rec SweepRun
	err := c.DB.First(&rec, "id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	run := toDomainRun(rec)
	return &run, nil
}

// ListRuns returns all runs, newest first.
func (c *DBClient) ListRuns() ([]models.SweepRun, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var recs []SweepRun
	if err := c.DB.Order("started_at desc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	runs := make([]models.SweepRun, len(recs))
	for i, rec := range recs {
		runs[i] = toDomainRun(rec)
	}
	return runs, nil
}

// MeasurementsForRun returns a run's measurements in step order.
func (c *DBClient) MeasurementsForRun(runID string) ([]models.Measurement, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var recs []Measurement
	if err := c.DB.Where("run_id = ?", runID).Order("seq asc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("querying measurements: %w", err)
	}
	out := make([]models.Measurement, len(recs))
	for i, rec := range recs {
		out[i] = models.Measurement{
			Seq:         rec.Seq,
			FrequencyHz: rec.FrequencyHz,
			Amplitude:   rec.Amplitude,
		}
	}
	return out, nil
}

// DeleteRun removes a run and its measurements.
func (c *DBClient) DeleteRun(runID string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&Measurement{}).Error; err != nil {
			return fmt.Errorf("deleting measurements: %w", err)
		}
		res := tx.Where("id = ?", runID).Delete(&SweepRun{})
		if res.Error != nil {
			return fmt.Errorf("deleting run: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrRunNotFound
		}
		return nil
	})
}

func toDomainRun(rec SweepRun) models.SweepRun {
	return models.SweepRun{
		ID:             rec.ID,
		StartedAt:      rec.StartedAt,
		FinishedAt:     rec.FinishedAt,
		MinFreqHz:      rec.MinFreqHz,
		MaxFreqHz:      rec.MaxFreqHz,
		StepHz:         rec.StepHz,
		DriftThreshold: rec.DriftThreshold,
		ScopePort:      rec.ScopePort,
		Status:         models.RunStatus(rec.Status),
		Error:          rec.Error,
		AutosetCount:   rec.AutosetCount,
	}
}
