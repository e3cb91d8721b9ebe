package actuator

import (
	"errors"
	"fmt"
)

// Normalized sentinel errors for link operations.
var (
	// ErrNotConnected is returned by any send or read attempted on a
	// link whose channel is not open.
	ErrNotConnected = errors.New("NOT_CONNECTED")

	// ErrAlreadyConnected is returned by Connect on a live link. The
	// caller must Disconnect first; Connect never reconnects silently.
	ErrAlreadyConnected = errors.New("ALREADY_CONNECTED")

	// ErrInvalidToken is returned by SendManual for characters outside
	// the closed manual token set.
	ErrInvalidToken = errors.New("INVALID_TOKEN")

	// ErrSlotAssigned is returned by SetSlot once a slot has been fixed.
	ErrSlotAssigned = errors.New("SLOT_ASSIGNED")
)

// RangeError reports a command field outside its transmittable range.
// Out-of-range values are rejected before any bytes reach the wire.
type RangeError struct {
	Field string
	Value int
	Min   int
	Max   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("INVALID_RANGE: %s %d outside [%d, %d]", e.Field, e.Value, e.Min, e.Max)
}

// ConnectError wraps a channel open failure. The link stays disconnected
// and the caller may retry or pick another device.
type ConnectError struct {
	Device string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Device, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// TransmitError wraps an I/O failure during a write. The link's connected
// state is left untouched.
type TransmitError struct {
	Device string
	Err    error
}

func (e *TransmitError) Error() string {
	return fmt.Sprintf("transmit %s: %v", e.Device, e.Err)
}

func (e *TransmitError) Unwrap() error {
	return e.Err
}
