// Package analysis derives headline figures from a sweep dataset.
package analysis

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Summary describes the shape of an amplitude response.
type Summary struct {
	PeakFreqHz    float64
	PeakAmplitude float64
	MeanAmplitude float64
	MinAmplitude  float64

	// Half-power (-3 dB) crossings around the peak, linearly interpolated.
	// Zero when the response never drops below the half-power level on
	// that side of the peak.
	LowCutoffHz  float64
	HighCutoffHz float64
	BandwidthHz  float64
}

var (
	ErrEmptyDataset   = errors.New("analysis: empty dataset")
	ErrLengthMismatch = errors.New("analysis: frequency and amplitude sequences differ in length")
)

const halfPower = 1 / math.Sqrt2

// Summarize computes the response summary. The sequences are parallel and
// ordered by sweep step; frequency direction does not matter.
func Summarize(freqs, ampls []float64) (*Summary, error) {
	if len(freqs) != len(ampls) {
		return nil, ErrLengthMismatch
	}
	if len(freqs) == 0 {
		return nil, ErrEmptyDataset
	}

	peakIdx := 0
	minAmpl := ampls[0]
	for i, a := range ampls {
		if a > ampls[peakIdx] {
			peakIdx = i
		}
		if a < minAmpl {
			minAmpl = a
		}
	}

	s := &Summary{
		PeakFreqHz:    freqs[peakIdx],
		PeakAmplitude: ampls[peakIdx],
		MeanAmplitude: stat.Mean(ampls, nil),
		MinAmplitude:  minAmpl,
	}

	// Classify crossings by frequency relative to the peak, not by sweep
	// direction: the sweep runs high-to-low.
	level := s.PeakAmplitude * halfPower
	for _, dir := range []int{-1, +1} {
		f := crossing(freqs, ampls, peakIdx, dir, level)
		switch {
		case f == 0:
		case f < s.PeakFreqHz:
			s.LowCutoffHz = f
		default:
			s.HighCutoffHz = f
		}
	}
	if s.LowCutoffHz != 0 && s.HighCutoffHz != 0 {
		s.BandwidthHz = s.HighCutoffHz - s.LowCutoffHz
	}
	return s, nil
}

// crossing walks away from the peak in the given direction and returns the
// interpolated frequency where the amplitude falls to level. Returns 0 when
// the level is never crossed.
func crossing(freqs, ampls []float64, peakIdx, dir int, level float64) float64 {
	for i := peakIdx + dir; i >= 0 && i < len(ampls); i += dir {
		if ampls[i] >= level {
			continue
		}
		prev := i - dir
		a1, a2 := ampls[prev], ampls[i]
		f1, f2 := freqs[prev], freqs[i]
		if a1 == a2 {
			return f2
		}
		return f1 + (f2-f1)*(a1-level)/(a1-a2)
	}
	return 0
}
