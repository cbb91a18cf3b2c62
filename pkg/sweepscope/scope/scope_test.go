package scope

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbarendse/sweepscope/pkg/sweepscope/serial"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

func newTestClient(port serial.Port, attempts int) (*Client, *[]time.Duration) {
	var sleeps []time.Duration
	c := NewClient(port,
		WithLogger(nopLogger{}),
		WithRetryPolicy(RetryPolicy{Attempts: attempts, Delay: 500 * time.Millisecond}),
		WithSleep(func(d time.Duration) { sleeps = append(sleeps, d) }),
	)
	return c, &sleeps
}

func TestQueryFrequencyFirstAttempt(t *testing.T) {
	port := serial.NewMockPort()
	port.QueueLine("parameter_value? freq")
	port.QueueLine("C1:PAVA FREQ,10.00175E+3 HZ,AV")

	client, sleeps := newTestClient(port, 3)
	got, err := client.QueryFrequency(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 10001.75, got, 1e-9)
	assert.Equal(t, []string{"parameter_value? freq"}, port.WrittenCommands())
	assert.Empty(t, *sleeps)
}

func TestQueryAmplitude(t *testing.T) {
	port := serial.NewMockPort()
	port.QueueLine("parameter_value? ampl")
	port.QueueLine("C1:PAVA AMPL,2.5E-1 V,AV")

	client, _ := newTestClient(port, 3)
	got, err := client.QueryAmplitude(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.25, got, 1e-12)
	assert.Equal(t, []string{"parameter_value? ampl"}, port.WrittenCommands())
}

func TestQueryRetriesThenSucceeds(t *testing.T) {
	port := serial.NewMockPort()
	// First attempt: echo times out. Second attempt succeeds.
	port.QueueTimeout()
	port.QueueLine("parameter_value? freq")
	port.QueueLine("C1:PAVA FREQ,5.0E+3 HZ,AV")

	client, sleeps := newTestClient(port, 3)
	got, err := client.QueryFrequency(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 5000.0, got, 1e-9)
	assert.Len(t, port.WrittenCommands(), 2)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, *sleeps)
}

func TestQueryExhaustsRetriesOnTimeout(t *testing.T) {
	port := serial.NewMockPort() // empty queue: every read times out

	client, sleeps := newTestClient(port, 3)
	_, err := client.QueryFrequency(context.Background())

	var retryErr *RetryError
	require.ErrorAs(t, err, &retryErr)
	assert.Equal(t, 3, retryErr.Attempts)
	assert.ErrorIs(t, err, ErrTimeout)

	// Exactly R attempts, with a delay between each pair.
	assert.Len(t, port.WrittenCommands(), 3)
	assert.Len(t, *sleeps, 2)
}

func TestQueryExhaustsRetriesOnFormatError(t *testing.T) {
	port := serial.NewMockPort()
	for i := 0; i < 3; i++ {
		port.QueueLine("parameter_value? freq")
		port.QueueLine("garbage")
	}

	client, _ := newTestClient(port, 3)
	_, err := client.QueryFrequency(context.Background())

	var retryErr *RetryError
	require.ErrorAs(t, err, &retryErr)
	var formatErr *FormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestQueryMissingResponseIsTimeout(t *testing.T) {
	port := serial.NewMockPort()
	// Echo arrives but the response read comes back empty, once per attempt.
	port.QueueLine("parameter_value? freq")
	port.QueueTimeout()

	client, _ := newTestClient(port, 1)
	_, err := client.QueryFrequency(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestQueryContextCancelled(t *testing.T) {
	port := serial.NewMockPort()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client, _ := newTestClient(port, 3)
	_, err := client.QueryFrequency(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, port.WrittenCommands())
}

func TestSendQuery(t *testing.T) {
	port := serial.NewMockPort()
	port.QueueLine("aset") // echo, discarded
	port.QueueLine("ok")

	client, _ := newTestClient(port, 3)
	resp, err := client.SendQuery("aset")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, 1, port.Flushed)
	assert.Equal(t, []string{"aset"}, port.WrittenCommands())
}

func TestAutoset(t *testing.T) {
	port := serial.NewMockPort()
	port.QueueLine("aset")
	port.QueueLine("")

	client, _ := newTestClient(port, 3)
	require.NoError(t, client.Autoset(context.Background()))
	assert.Equal(t, []string{"aset"}, port.WrittenCommands())
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, retryable(ErrTimeout))
	assert.True(t, retryable(&FormatError{Line: "x", Reason: "y"}))
	assert.False(t, retryable(errors.New("port gone")))
}
