// Package sweep runs a frequency-response sweep: it steps a signal
// generator down over a frequency range, measures frequency and amplitude
// on the scope at every step, and re-triggers the scope's autoset when the
// signal period has drifted too far from the last autoset reference.
package sweep

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sbarendse/sweepscope/pkg/logger"
	"github.com/sbarendse/sweepscope/pkg/models"
)

// Measurer is the scope-side dependency of the controller.
type Measurer interface {
	QueryFrequency(ctx context.Context) (float64, error)
	QueryAmplitude(ctx context.Context) (float64, error)
	Autoset(ctx context.Context) error
}

// Generator sets the stimulus frequency.
type Generator interface {
	SetFrequency(channel int, hz float64) error
}

// Logger is the subset of pkg/logger the controller needs.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
}

// Config holds the sweep parameters.
type Config struct {
	MinFreqHz      float64
	MaxFreqHz      float64
	StepHz         float64
	Channel        int
	DriftThreshold float64
	StepSettle     time.Duration
	AutosetSettle  time.Duration
}

// DefaultConfig returns the stock sweep: 10 kHz down to 1 kHz in 100 Hz
// steps on generator channel 2.
func DefaultConfig() Config {
	return Config{
		MinFreqHz:      1000,
		MaxFreqHz:      10000,
		StepHz:         100,
		Channel:        2,
		DriftThreshold: 0.4,
		StepSettle:     500 * time.Millisecond,
		AutosetSettle:  5 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.MinFreqHz <= 0 {
		return fmt.Errorf("sweep: min frequency must be positive, got %g", c.MinFreqHz)
	}
	if c.MaxFreqHz <= c.MinFreqHz {
		return fmt.Errorf("sweep: max frequency %g must exceed min %g", c.MaxFreqHz, c.MinFreqHz)
	}
	if c.StepHz <= 0 {
		return fmt.Errorf("sweep: step must be positive, got %g", c.StepHz)
	}
	if c.DriftThreshold <= 0 {
		return fmt.Errorf("sweep: drift threshold must be positive, got %g", c.DriftThreshold)
	}
	if c.Channel != 1 && c.Channel != 2 {
		return fmt.Errorf("sweep: invalid generator channel %d", c.Channel)
	}
	return nil
}

// steps returns the number of sweep steps: max-step down to min inclusive.
func (c Config) steps() int {
	n := int(math.Floor((c.MaxFreqHz-c.MinFreqHz)/c.StepHz + 1e-9))
	if n < 0 {
		return 0
	}
	return n
}

// stepFreq returns the requested frequency of the i-th step (0-based).
func (c Config) stepFreq(i int) float64 {
	return c.MaxFreqHz - float64(i+1)*c.StepHz
}

// Controller owns the sweep state for one run.
type Controller struct {
	cfg   Config
	scope Measurer
	gen   Generator
	log   Logger
	sleep func(time.Duration)

	// onMeasurement fires after every completed step, before the drift
	// check. Used to persist partial datasets.
	onMeasurement func(models.Measurement)
}

type Option func(*Controller)

func WithLogger(log Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithSleep overrides the settle-delay function (tests).
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Controller) { c.sleep = sleep }
}

func WithOnMeasurement(fn func(models.Measurement)) Option {
	return func(c *Controller) { c.onMeasurement = fn }
}

func NewController(scope Measurer, gen Generator, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		cfg:   cfg,
		scope: scope,
		gen:   gen,
		log:   logger.GetLogger(),
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the sweep. On an error mid-sweep the returned result holds
// the measurements collected so far alongside the error.
func (c *Controller) Run(ctx context.Context) (*models.SweepResult, error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	res := &models.SweepResult{}

	// Pre-sweep settle: park the generator at the top of the range and let
	// autoset establish the initial vertical/horizontal scaling.
	if err := c.gen.SetFrequency(c.cfg.Channel, c.cfg.MaxFreqHz); err != nil {
		return res, fmt.Errorf("sweep: setting initial frequency: %w", err)
	}
	if err := c.scope.Autoset(ctx); err != nil {
		return res, fmt.Errorf("sweep: initial autoset: %w", err)
	}
	c.sleep(c.cfg.AutosetSettle)

	refPeriod := 1.0 / c.cfg.MaxFreqHz
	steps := c.cfg.steps()
	c.log.Infof("sweep: %g Hz -> %g Hz, %g Hz steps (%d steps)",
		c.cfg.MaxFreqHz, c.cfg.MinFreqHz, c.cfg.StepHz, steps)

	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		target := c.cfg.stepFreq(i)
		if err := c.gen.SetFrequency(c.cfg.Channel, target); err != nil {
			return res, fmt.Errorf("sweep: setting %g Hz: %w", target, err)
		}
		c.sleep(c.cfg.StepSettle)

		freq, err := c.scope.QueryFrequency(ctx)
		if err != nil {
			return res, fmt.Errorf("sweep: step %d (%g Hz): %w", i, target, err)
		}
		ampl, err := c.scope.QueryAmplitude(ctx)
		if err != nil {
			return res, fmt.Errorf("sweep: step %d (%g Hz): %w", i, target, err)
		}

		m := models.Measurement{Seq: i, FrequencyHz: freq, Amplitude: ampl}
		res.Measurements = append(res.Measurements, m)
		if c.onMeasurement != nil {
			c.onMeasurement(m)
		}
		c.log.Debugf("sweep: step %d: requested %g Hz, measured %g Hz, ampl %g", i, target, freq, ampl)

		if freq <= 0 {
			return res, fmt.Errorf("sweep: step %d: scope reported non-positive frequency %g", i, freq)
		}

		period := 1.0 / freq
		if driftRatio(period, refPeriod) >= c.cfg.DriftThreshold {
			c.log.Infof("sweep: period drift %.2f at %g Hz, re-running autoset",
				driftRatio(period, refPeriod), freq)
			if err := c.scope.Autoset(ctx); err != nil {
				return res, fmt.Errorf("sweep: autoset at step %d: %w", i, err)
			}
			c.sleep(c.cfg.AutosetSettle)
			refPeriod = period
			res.AutosetCount++
		}
	}

	return res, nil
}

// driftRatio is the relative change of period against the reference.
func driftRatio(period, refPeriod float64) float64 {
	return math.Abs(period-refPeriod) / refPeriod
}
