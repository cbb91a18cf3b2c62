// Package serial abstracts the line-oriented serial link used by the
// instruments. The Port interface allows different implementations:
// a native port (github.com/tarm/serial) and a mock for testing.
package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Port is a bidirectional byte channel with read-until support.
// ReadUntil returns whatever was received before the delimiter; an empty
// result means the read timeout expired with no data.
type Port interface {
	io.ReadWriteCloser

	// ReadUntil reads until delim is seen or the port's read timeout
	// expires. The returned bytes include the delimiter when present.
	ReadUntil(delim byte) ([]byte, error)

	// ResetInput discards any buffered, unread input.
	ResetInput() error
}

// Config holds serial port settings.
type Config struct {
	Device      string        // e.g. "/dev/ttyUSB0", "COM3"
	Baud        int           // line speed
	Size        byte          // data bits
	ReadTimeout time.Duration // per-read timeout
}

// DefaultConfig returns the scope link settings: 19200 8N1, 1s read timeout.
func DefaultConfig(device string) Config {
	return Config{
		Device:      device,
		Baud:        19200,
		Size:        8,
		ReadTimeout: time.Second,
	}
}

type nativePort struct {
	p *serial.Port
}

// Open opens a native serial port with the given configuration.
// Parity is always none and one stop bit is used.
func Open(cfg Config) (Port, error) {
	if cfg.Device == "" {
		return nil, errors.New("serial: no device given")
	}
	if cfg.Baud <= 0 {
		cfg.Baud = 19200
	}
	if cfg.Size == 0 {
		cfg.Size = 8
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = time.Second
	}

	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		Size:        cfg.Size,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: opening %s: %w", cfg.Device, err)
	}
	return &nativePort{p: p}, nil
}

func (n *nativePort) Read(b []byte) (int, error)  { return n.p.Read(b) }
func (n *nativePort) Write(b []byte) (int, error) { return n.p.Write(b) }
func (n *nativePort) Close() error                { return n.p.Close() }

func (n *nativePort) ReadUntil(delim byte) ([]byte, error) {
	var out []byte
	buf := make([]byte, 1)
	for {
		cnt, err := n.p.Read(buf)
		if cnt > 0 {
			out = append(out, buf[0])
			if buf[0] == delim {
				return out, nil
			}
			continue
		}
		// A zero-length read means the timeout window expired.
		if err == nil || errors.Is(err, io.EOF) {
			return out, nil
		}
		return out, err
	}
}

func (n *nativePort) ResetInput() error { return n.p.Flush() }
