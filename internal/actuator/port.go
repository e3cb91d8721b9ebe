package actuator

import (
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the low-level byte channel a Link drives. The real
// implementation is a serial port; tests substitute recording fakes.
type Port interface {
	io.ReadWriteCloser

	// SetReadTimeout bounds a single Read call. A timed-out Read
	// returns zero bytes and a nil error.
	SetReadTimeout(timeout time.Duration) error
}

// OpenFunc opens the byte channel for a device. Injected into a Link so
// the protocol logic is testable without hardware.
type OpenFunc func(device string, baudRate int) (Port, error)

// openSerial is the production OpenFunc backed by go.bug.st/serial.
func openSerial(device string, baudRate int) (Port, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, err
	}
	return port, nil
}
