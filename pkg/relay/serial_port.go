package relay

import (
	"bytes"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the executor's UART configuration.
const DefaultBaudRate = 115200

// readPollTimeout bounds a single Read on the serial device so the
// cooperative tick loop is never blocked waiting for bytes.
const readPollTimeout = 20 * time.Millisecond

// SerialPort adapts a go.bug.st/serial port to the Port interface,
// accumulating received bytes into newline-delimited lines.
type SerialPort struct {
	port    serial.Port
	pending bytes.Buffer
	scratch [256]byte
}

// OpenSerialPort opens the serial device at the given baud rate.
func OpenSerialPort(device string, baudRate int) (*SerialPort, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}

	mode := &serial.Mode{BaudRate: baudRate}
	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("relay: open %s: %w", device, err)
	}
	if err := p.SetReadTimeout(readPollTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("relay: set read timeout: %w", err)
	}

	return &SerialPort{port: p}, nil
}

// Write transmits bytes to the executor.
func (s *SerialPort) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// Flush blocks until the output buffer has drained to the device.
func (s *SerialPort) Flush() error {
	return s.port.Drain()
}

// ReadLine drains whatever bytes the device has ready and returns the
// next complete line, if any. A read timeout with no complete line
// returns ok=false without error.
func (s *SerialPort) ReadLine() (string, bool, error) {
	if line, ok := s.takeLine(); ok {
		return line, true, nil
	}

	n, err := s.port.Read(s.scratch[:])
	if err != nil {
		return "", false, err
	}
	if n > 0 {
		s.pending.Write(s.scratch[:n])
	}

	if line, ok := s.takeLine(); ok {
		return line, true, nil
	}
	return "", false, nil
}

// Close releases the serial device.
func (s *SerialPort) Close() error {
	return s.port.Close()
}

func (s *SerialPort) takeLine() (string, bool) {
	data := s.pending.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		return "", false
	}

	line := string(bytes.TrimRight(data[:idx], "\r"))
	s.pending.Next(idx + 1)
	return line, true
}

// Compile-time interface satisfaction check.
var _ Port = (*SerialPort)(nil)
