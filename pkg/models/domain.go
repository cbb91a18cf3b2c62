package models

import "time"

// RunStatus describes the lifecycle of a sweep run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusAborted   RunStatus = "aborted"
)

// Measurement is one completed sweep step: the frequency the scope actually
// measured and the amplitude it reported. Immutable once created.
type Measurement struct {
	Seq         int     // 0-based step index within the run
	FrequencyHz float64 // measured frequency, strictly positive
	Amplitude   float64 // measured amplitude in the scope's configured unit
}

// SweepRun holds the parameters and outcome of one sweep.
type SweepRun struct {
	ID             string // database ID (UUID)
	StartedAt      time.Time
	FinishedAt     time.Time
	MinFreqHz      float64
	MaxFreqHz      float64
	StepHz         float64
	DriftThreshold float64
	ScopePort      string
	Status         RunStatus
	Error          string // cause, set when Status is aborted
	AutosetCount   int    // autoset re-triggers during the sweep (excludes the initial one)
}

// SweepResult is the in-memory dataset produced by a finished sweep.
// Frequencies and Amplitudes are parallel, one entry per completed step.
type SweepResult struct {
	RunID        string
	Measurements []Measurement
	AutosetCount int
}

// Frequencies returns the measured frequencies in step order.
func (r *SweepResult) Frequencies() []float64 {
	out := make([]float64, len(r.Measurements))
	for i, m := range r.Measurements {
		out[i] = m.FrequencyHz
	}
	return out
}

// Amplitudes returns the measured amplitudes in step order.
func (r *SweepResult) Amplitudes() []float64 {
	out := make([]float64, len(r.Measurements))
	for i, m := range r.Measurements {
		out[i] = m.Amplitude
	}
	return out
}
