package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbarendse/sweepscope/pkg/sweepscope/serial"
)

func connectedGenerator(t *testing.T, port *serial.MockPort) *JDS6600 {
	t.Helper()
	port.QueueLine(":r00=0.")
	gen := NewJDS6600(port)
	require.NoError(t, gen.Connect())
	return gen
}

func TestConnectProbesModelRegister(t *testing.T) {
	port := serial.NewMockPort()
	gen := connectedGenerator(t, port)

	assert.Equal(t, []string{":r00=0."}, port.WrittenCommands())
	assert.NotNil(t, gen)
}

func TestConnectBadResponse(t *testing.T) {
	port := serial.NewMockPort()
	port.QueueLine("whatever")
	gen := NewJDS6600(port)
	assert.Error(t, gen.Connect())
}

func TestSetFrequencyEncodesCentiHertz(t *testing.T) {
	port := serial.NewMockPort()
	gen := connectedGenerator(t, port)

	port.QueueLine(":ok")
	require.NoError(t, gen.SetFrequency(2, 5000))

	cmds := port.WrittenCommands()
	assert.Equal(t, ":w24=500000,0.", cmds[len(cmds)-1])
}

func TestSetFrequencyChannelOne(t *testing.T) {
	port := serial.NewMockPort()
	gen := connectedGenerator(t, port)

	port.QueueLine(":ok")
	require.NoError(t, gen.SetFrequency(1, 999.99))

	cmds := port.WrittenCommands()
	assert.Equal(t, ":w23=99999,0.", cmds[len(cmds)-1])
}

func TestSetFrequencyValidation(t *testing.T) {
	port := serial.NewMockPort()
	gen := connectedGenerator(t, port)

	assert.Error(t, gen.SetFrequency(3, 1000))
	assert.Error(t, gen.SetFrequency(2, 0))
	assert.Error(t, gen.SetFrequency(2, -5))
}

func TestSetFrequencyRequiresConnect(t *testing.T) {
	gen := NewJDS6600(serial.NewMockPort())
	assert.ErrorIs(t, gen.SetFrequency(2, 1000), ErrNotConnected)
}

func TestSetFrequencyRejectedByDevice(t *testing.T) {
	port := serial.NewMockPort()
	gen := connectedGenerator(t, port)

	port.QueueLine(":err")
	assert.Error(t, gen.SetFrequency(2, 1000))
}
