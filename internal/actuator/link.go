package actuator

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// Command field bounds. Values outside these ranges are rejected, never
// clamped.
const (
	MinSpeed = 0
	MaxSpeed = 255
	MinAngle = 0
	MaxAngle = 180

	// Neutral command used by TestConnection.
	NeutralSpeed = 0
	NeutralAngle = 90
)

// Manual protocol tokens. SendManual accepts exactly this set.
const (
	ManualForward  byte = 'f'
	ManualBackward byte = 'b'
)

// Defaults applied by NewLink for zero-valued config fields.
const (
	DefaultBaudRate    = 9600
	DefaultReadTimeout = 1 * time.Second

	// DefaultSettleDelay covers the remote controller's boot/reset
	// sequence after the serial channel opens.
	DefaultSettleDelay = 2 * time.Second

	// responseDelay gives the device a moment to answer before the
	// best-effort read following a structured command.
	responseDelay = 100 * time.Millisecond
)

// Slot identifies which side of the rig a motor drives.
type Slot string

const (
	SlotLeft  Slot = "left"
	SlotRight Slot = "right"
)

// Command is one structured actuator instruction.
type Command struct {
	Speed int `json:"speed"`
	Angle int `json:"angle"`
}

// ValidateCommand checks the transmittable ranges for a structured
// command. It returns a *RangeError naming the offending field.
func ValidateCommand(speed, angle int) error {
	if speed < MinSpeed || speed > MaxSpeed {
		return &RangeError{Field: "speed", Value: speed, Min: MinSpeed, Max: MaxSpeed}
	}
	if angle < MinAngle || angle > MaxAngle {
		return &RangeError{Field: "angle", Value: angle, Min: MinAngle, Max: MaxAngle}
	}
	return nil
}

// LinkConfig carries optional Link settings. Zero fields fall back to
// package defaults; Open falls back to the real serial opener.
type LinkConfig struct {
	BaudRate    int
	ReadTimeout time.Duration
	SettleDelay time.Duration

	// Open substitutes the channel opener, for tests.
	Open OpenFunc

	// Sleep substitutes blocking waits (settle delay, response delay),
	// for tests.
	Sleep func(time.Duration)
}

// Link owns one serial connection to one physical actuator. All traffic
// on the port is serialized by the link's own mutex; there is exactly one
// concurrent writer per channel at any instant.
type Link struct {
	device      string
	baudRate    int
	readTimeout time.Duration
	settleDelay time.Duration
	open        OpenFunc
	sleep       func(time.Duration)

	mu        sync.Mutex
	port      Port
	connected bool

	slotMu sync.Mutex
	slot   Slot
}

// NewLink creates a link for the given device path. The link starts
// disconnected.
func NewLink(device string, cfg LinkConfig) *Link {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.Open == nil {
		cfg.Open = openSerial
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Link{
		device:      device,
		baudRate:    cfg.BaudRate,
		readTimeout: cfg.ReadTimeout,
		settleDelay: cfg.SettleDelay,
		open:        cfg.Open,
		sleep:       cfg.Sleep,
	}
}

// Device returns the device path this link drives.
func (l *Link) Device() string {
	return l.device
}

// SetSlot fixes the motor slot once, post-construction, for callers that
// learn slot identity after connect time. A second assignment to a
// different slot fails with ErrSlotAssigned.
func (l *Link) SetSlot(slot Slot) error {
	l.slotMu.Lock()
	defer l.slotMu.Unlock()
	if l.slot != "" && l.slot != slot {
		return fmt.Errorf("%w: link %s is %s", ErrSlotAssigned, l.device, l.slot)
	}
	l.slot = slot
	return nil
}

// Slot returns the assigned motor slot, or "" if none was set.
func (l *Link) Slot() Slot {
	l.slotMu.Lock()
	defer l.slotMu.Unlock()
	return l.slot
}

// Connect opens the serial channel and waits the settle delay before any
// traffic is allowed. Connecting a live link fails with
// ErrAlreadyConnected; callers must Disconnect first. The settle wait
// holds no lock.
func (l *Link) Connect() error {
	l.mu.Lock()
	if l.connected {
		l.mu.Unlock()
		return ErrAlreadyConnected
	}
	l.mu.Unlock()

	port, err := l.open(l.device, l.baudRate)
	if err != nil {
		logrus.WithError(err).WithField("device", l.device).Error("serial open failed")
		return &ConnectError{Device: l.device, Err: err}
	}
	if err := port.SetReadTimeout(l.readTimeout); err != nil {
		port.Close()
		return &ConnectError{Device: l.device, Err: err}
	}

	// Remote controller resets when the channel opens; give its boot
	// sequence time to finish before the first command.
	l.sleep(l.settleDelay)

	l.mu.Lock()
	if l.connected {
		l.mu.Unlock()
		port.Close()
		return ErrAlreadyConnected
	}
	l.port = port
	l.connected = true
	l.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"device": l.device,
		"baud":   l.baudRate,
	}).Info("actuator connected")
	return nil
}

// IsConnected reports whether the channel is open and the link's state
// flag is set. A channel lost externally surfaces on the next operation
// attempt; it is never probed proactively.
func (l *Link) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected && l.port != nil
}

// SendCommand validates and transmits one structured command. The write
// is a single atomic call on the port, so concurrent senders never
// interleave bytes. A best-effort response read follows; a missing or
// garbled response is not a send failure.
func (l *Link) SendCommand(speed, angle int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.connected || l.port == nil {
		return ErrNotConnected
	}
	if err := ValidateCommand(speed, angle); err != nil {
		return err
	}

	payload := fmt.Sprintf("%d,%d\n", speed, angle)
	if _, err := l.port.Write([]byte(payload)); err != nil {
		logrus.WithError(err).WithField("device", l.device).Error("command transmit failed")
		return &TransmitError{Device: l.device, Err: err}
	}

	logrus.WithFields(logrus.Fields{
		"device": l.device,
		"speed":  speed,
		"angle":  angle,
	}).Debug("command sent")

	if resp, ok := l.readLineLocked(l.readTimeout); ok {
		logrus.WithFields(logrus.Fields{
			"device":   l.device,
			"response": resp,
		}).Debug("actuator response")
	}
	return nil
}

// SendManual transmits one manual directional token as a single
// unterminated byte, a distinct protocol from SendCommand.
func (l *Link) SendManual(token byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.connected || l.port == nil {
		return ErrNotConnected
	}
	if token != ManualForward && token != ManualBackward {
		return fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}

	if _, err := l.port.Write([]byte{token}); err != nil {
		logrus.WithError(err).WithField("device", l.device).Error("manual transmit failed")
		return &TransmitError{Device: l.device, Err: err}
	}
	logrus.WithFields(logrus.Fields{
		"device": l.device,
		"token":  string(token),
	}).Debug("manual command sent")
	return nil
}

// ReadResponse attempts to read one newline-terminated line within the
// timeout. Absence of data is not an error: the second return value is
// false. Lines that are not valid UTF-8 degrade to a quoted raw-byte
// representation.
func (l *Link) ReadResponse(timeout time.Duration) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.connected || l.port == nil {
		return "", false
	}
	return l.readLineLocked(timeout)
}

// readLineLocked reads up to one line. Callers hold l.mu.
func (l *Link) readLineLocked(timeout time.Duration) (string, bool) {
	if err := l.port.SetReadTimeout(timeout); err != nil {
		return "", false
	}
	defer l.port.SetReadTimeout(l.readTimeout)

	l.sleep(responseDelay)

	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := l.port.Read(buf)
		if err != nil || n == 0 {
			// Timeout or I/O failure: degrade to whatever arrived.
			break
		}
		if buf[0] == '\n' {
			break
		}
		line = append(line, buf[0])
		if len(line) > 512 {
			break
		}
	}

	trimmed := trimCR(line)
	if len(trimmed) == 0 {
		return "", false
	}
	if !utf8.Valid(trimmed) {
		return fmt.Sprintf("raw: %q", trimmed), true
	}
	return string(trimmed), true
}

func trimCR(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\r' || b[len(b)-1] == ' ') {
		b = b[:len(b)-1]
	}
	return b
}

// Disconnect closes the channel if open and clears connected state. It is
// idempotent and safe on a never-connected link.
func (l *Link) Disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port != nil {
		if err := l.port.Close(); err != nil {
			logrus.WithError(err).WithField("device", l.device).Warn("serial close failed")
		} else {
			logrus.WithField("device", l.device).Info("actuator disconnected")
		}
		l.port = nil
	}
	l.connected = false
}

// TestConnection sends the neutral command and reports success without
// surfacing it as a user-facing command event.
func (l *Link) TestConnection() bool {
	if err := l.SendCommand(NeutralSpeed, NeutralAngle); err != nil {
		logrus.WithError(err).WithField("device", l.device).Debug("connection test failed")
		return false
	}
	return true
}
