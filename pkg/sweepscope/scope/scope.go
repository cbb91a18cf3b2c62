// Package scope talks to a LeCroy 9300-class oscilloscope over a
// line-oriented serial link. The instrument echoes every command before
// answering, so each query is a write followed by two CR-terminated reads.
package scope

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sbarendse/sweepscope/pkg/logger"
	"github.com/sbarendse/sweepscope/pkg/sweepscope/serial"
)

// ErrTimeout means a read yielded no data within the port's timeout window.
var ErrTimeout = errors.New("scope: read timed out")

// RetryError is the terminal error raised once the retry budget for a
// query is spent. It wraps the last attempt's failure.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("scope: query failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// RetryPolicy bounds the attempts of a numeric parameter query.
type RetryPolicy struct {
	Attempts int           // total attempts, including the first
	Delay    time.Duration // fixed delay between attempts
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Delay: 500 * time.Millisecond}
}

// Logger is the subset of pkg/logger the client needs.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// Client issues queries against the scope. It borrows the port for the
// duration of each query and never closes it.
type Client struct {
	port  serial.Port
	retry RetryPolicy
	log   Logger
	sleep func(time.Duration)
}

type Option func(*Client)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		if p.Attempts > 0 {
			c.retry = p
		}
	}
}

func WithLogger(log Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithSleep overrides the inter-attempt delay function (tests).
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Client) { c.sleep = sleep }
}

func NewClient(port serial.Port, opts ...Option) *Client {
	c := &Client{
		port:  port,
		retry: DefaultRetryPolicy(),
		log:   logger.GetLogger(),
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueryFrequency reads the measured signal frequency in Hz.
func (c *Client) QueryFrequency(ctx context.Context) (float64, error) {
	return c.queryParameter(ctx, "parameter_value? freq", ParamFrequency)
}

// QueryAmplitude reads the measured signal amplitude.
func (c *Client) QueryAmplitude(ctx context.Context) (float64, error) {
	return c.queryParameter(ctx, "parameter_value? ampl", ParamAmplitude)
}

// Autoset triggers the scope's automatic rescaling routine. The caller is
// responsible for waiting out the settle time afterwards.
func (c *Client) Autoset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.SendQuery("aset")
	return err
}

// queryParameter performs a bounded-retry numeric query. Timeouts and
// malformed responses trigger a delayed retry; any other port error is
// returned immediately. Exhausting the budget yields a RetryError.
func (c *Client) queryParameter(ctx context.Context, command string, param Parameter) (float64, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retry.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		value, err := c.queryOnce(command, param)
		if err == nil {
			return value, nil
		}
		if !retryable(err) {
			return 0, err
		}

		lastErr = err
		c.log.Warnf("scope: attempt %d/%d failed: %v", attempt, c.retry.Attempts, err)
		if attempt < c.retry.Attempts {
			c.sleep(c.retry.Delay)
		}
	}
	return 0, &RetryError{Attempts: c.retry.Attempts, Err: lastErr}
}

func (c *Client) queryOnce(command string, param Parameter) (float64, error) {
	if _, err := c.port.Write([]byte(command + "\r")); err != nil {
		return 0, fmt.Errorf("scope: writing command: %w", err)
	}

	echo, err := c.port.ReadUntil('\r')
	if err != nil {
		return 0, fmt.Errorf("scope: reading echo: %w", err)
	}
	if len(echo) == 0 {
		return 0, fmt.Errorf("no echo received: %w", ErrTimeout)
	}
	c.log.Debugf("scope: echo: %s", strings.TrimSpace(string(echo)))

	response, err := c.port.ReadUntil('\r')
	if err != nil {
		return 0, fmt.Errorf("scope: reading response: %w", err)
	}
	if len(response) == 0 {
		return 0, fmt.Errorf("no response received: %w", ErrTimeout)
	}
	line := strings.TrimSpace(string(response))
	c.log.Debugf("scope: response: %s", line)

	return ParseParameter(line, param)
}

// SendQuery sends a raw command and returns the trimmed response line.
// Stale input is flushed first so a leftover echo cannot shift the reads.
// No retry: callers of fire-and-forget commands manage timing themselves.
func (c *Client) SendQuery(command string) (string, error) {
	if err := c.port.ResetInput(); err != nil {
		return "", fmt.Errorf("scope: flushing input: %w", err)
	}
	if _, err := c.port.Write([]byte(command + "\r")); err != nil {
		return "", fmt.Errorf("scope: writing command: %w", err)
	}

	if _, err := c.port.ReadUntil('\r'); err != nil {
		return "", fmt.Errorf("scope: reading echo: %w", err)
	}
	response, err := c.port.ReadUntil('\r')
	if err != nil {
		return "", fmt.Errorf("scope: reading response: %w", err)
	}
	return strings.TrimSpace(string(response)), nil
}

func retryable(err error) bool {
	var formatErr *FormatError
	return errors.Is(err, ErrTimeout) || errors.As(err, &formatErr)
}
