package sweepscope

import (
	"github.com/sbarendse/sweepscope/pkg/sweepscope/scope"
	"github.com/sbarendse/sweepscope/pkg/sweepscope/serial"
	"github.com/sbarendse/sweepscope/pkg/sweepscope/sweep"
)

type Config struct {
	DBPath        string
	ScopePort     string
	GeneratorPort string
	Sweep         sweep.Config
	Retry         scope.RetryPolicy
	Logger        Logger
	Storage       Storage

	// ScopeLink / GeneratorLink override the serial ports opened from
	// ScopePort / GeneratorPort. Used by tests to inject mocks.
	ScopeLink     serial.Port
	GeneratorLink serial.Port
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) { c.DBPath = path }
}

func WithScopePort(device string) Option {
	return func(c *Config) { c.ScopePort = device }
}

func WithGeneratorPort(device string) Option {
	return func(c *Config) { c.GeneratorPort = device }
}

func WithSweepConfig(cfg sweep.Config) Option {
	return func(c *Config) { c.Sweep = cfg }
}

func WithRetryPolicy(p scope.RetryPolicy) Option {
	return func(c *Config) { c.Retry = p }
}

func WithLogger(log Logger) Option {
	return func(c *Config) { c.Logger = log }
}

func WithStorage(storage Storage) Option {
	return func(c *Config) { c.Storage = storage }
}

func WithScopeLink(port serial.Port) Option {
	return func(c *Config) { c.ScopeLink = port }
}

func WithGeneratorLink(port serial.Port) Option {
	return func(c *Config) { c.GeneratorLink = port }
}

func defaultConfig() *Config {
	return &Config{
		DBPath:        "sweepscope.sqlite3",
		ScopePort:     "/dev/ttyUSB0",
		GeneratorPort: "/dev/ttyUSB1",
		Sweep:         sweep.DefaultConfig(),
		Retry:         scope.DefaultRetryPolicy(),
	}
}
