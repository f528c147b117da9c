package actuator

import (
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
)

// frameStart opens every packet sent to the LED driver board.
const frameStart = 0xA5

// encodeFrame builds the 4-byte packet: start, channel, duty, xor checksum.
func encodeFrame(ch, duty uint8) [4]byte {
	return [4]byte{frameStart, ch, duty, frameStart ^ ch ^ duty}
}

// SerialDriver talks to an external LED driver board over a serial port.
type SerialDriver struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// OpenSerial opens device at baud.
func OpenSerial(device string, baud int) (*SerialDriver, error) {
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", device, err)
	}
	return &SerialDriver{w: port}, nil
}

func newSerialDriver(w io.WriteCloser) *SerialDriver {
	return &SerialDriver{w: w}
}

// Channel returns the output channel ch of the board.
func (s *SerialDriver) Channel(ch uint8) Channel {
	return serialChannel{driver: s, ch: ch}
}

func (s *SerialDriver) send(ch, duty uint8) error {
	frame := encodeFrame(ch, duty)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(frame[:]); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close closes the port.
func (s *SerialDriver) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Close()
}

type serialChannel struct {
	driver *SerialDriver
	ch     uint8
}

func (c serialChannel) SetDuty(duty uint8) error {
	return c.driver.send(c.ch, duty)
}
