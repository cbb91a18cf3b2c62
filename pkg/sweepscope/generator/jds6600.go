// Package generator drives a JDS6600-class DDS signal generator over its
// serial protocol. Commands are register writes of the form
// ":w23=500000,0." with frequencies expressed in centi-hertz; the device
// answers ":ok".
package generator

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sbarendse/sweepscope/pkg/sweepscope/serial"
)

// ErrNotConnected is returned when a command is issued before Connect.
var ErrNotConnected = errors.New("generator: not connected")

// DefaultConfig returns the generator link settings: 115200 8N1.
func DefaultConfig(device string) serial.Config {
	return serial.Config{
		Device:      device,
		Baud:        115200,
		Size:        8,
		ReadTimeout: time.Second,
	}
}

// Frequency registers for channel 1 and 2.
const (
	regFreqCh1 = 23
	regFreqCh2 = 24
	regModel   = 0
)

// JDS6600 is a function generator on a borrowed serial port.
type JDS6600 struct {
	port      serial.Port
	connected bool
}

func NewJDS6600(port serial.Port) *JDS6600 {
	return &JDS6600{port: port}
}

// Connect probes the device by reading its model register.
func (g *JDS6600) Connect() error {
	resp, err := g.exchange(fmt.Sprintf(":r%02d=0.", regModel))
	if err != nil {
		return fmt.Errorf("generator: probing device: %w", err)
	}
	if !strings.HasPrefix(resp, ":r") {
		return fmt.Errorf("generator: unexpected probe response %q", resp)
	}
	g.connected = true
	return nil
}

// SetFrequency programs the output frequency of the given channel in Hz.
func (g *JDS6600) SetFrequency(channel int, hz float64) error {
	if !g.connected {
		return ErrNotConnected
	}
	if hz <= 0 {
		return fmt.Errorf("generator: frequency must be positive, got %g", hz)
	}

	var reg int
	switch channel {
	case 1:
		reg = regFreqCh1
	case 2:
		reg = regFreqCh2
	default:
		return fmt.Errorf("generator: invalid channel %d", channel)
	}

	// The device takes the frequency in units of 0.01 Hz.
	centiHz := uint64(math.Round(hz * 100))
	resp, err := g.exchange(fmt.Sprintf(":w%02d=%d,0.", reg, centiHz))
	if err != nil {
		return fmt.Errorf("generator: setting channel %d to %g Hz: %w", channel, hz, err)
	}
	if !strings.Contains(resp, "ok") {
		return fmt.Errorf("generator: device rejected frequency command: %q", resp)
	}
	return nil
}

// exchange writes one command line and reads one response line.
func (g *JDS6600) exchange(command string) (string, error) {
	if err := g.port.ResetInput(); err != nil {
		return "", err
	}
	if _, err := g.port.Write([]byte(command + "\r\n")); err != nil {
		return "", err
	}
	resp, err := g.port.ReadUntil('\n')
	if err != nil {
		return "", err
	}
	if len(resp) == 0 {
		return "", errors.New("no response from device")
	}
	return strings.TrimSpace(string(resp)), nil
}
