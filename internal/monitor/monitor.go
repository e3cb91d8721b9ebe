package monitor

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/motion-control/mcc/internal/actuator"
	"github.com/motion-control/mcc/internal/registry"
	"github.com/motion-control/mcc/internal/telemetry"
)

// Mode selects which derived channels drive dispatch.
type Mode string

const (
	// ModeGearAccel watches gear changes and acceleration jerk; an
	// upshift concurrent with an abrupt jerk triggers the shift kick.
	ModeGearAccel Mode = "gear"

	// ModePedal watches gas pedal press edges; each press triggers the
	// two-step pedal sequence.
	ModePedal Mode = "pedal"
)

// Default classification thresholds and dispatch commands.
const (
	DefaultInterval = 50 * time.Millisecond

	defaultAbruptJerk   = 0.5
	defaultModerateJerk = 0.2
	defaultPedalLevel   = 0.1
	factorScale         = 10

	shiftKickSpeed = 100
	shiftKickAngle = 105

	pedalSpeed      = 200
	pedalPressAngle = 100
	pedalRestAngle  = 90
)

// CommandSender is the slice of an actuator link the monitor dispatches
// through.
type CommandSender interface {
	SendCommand(speed, angle int) error
	Device() string
}

// AuditLogger records dispatched commands. Optional.
type AuditLogger interface {
	LogCommand(device string, speed, angle int, outcome string)
}

// Config carries optional monitor settings; zero fields take defaults.
type Config struct {
	Mode         Mode
	Interval     time.Duration
	AbruptJerk   float64
	ModerateJerk float64
	PedalLevel   float64

	// Registry, if set, gets UpdateLastCommand on every dispatch.
	Registry *registry.Registry

	// Audit, if set, gets one record per dispatch attempt.
	Audit AuditLogger

	// Now and Sleep make the polling cadence testable without real
	// time delays.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// Monitor derives events from a telemetry source and dispatches commands
// through a designated link. The previous-value state of each derived
// channel belongs to the polling goroutine alone; it needs no lock.
type Monitor struct {
	source telemetry.Source
	link   CommandSender
	cfg    Config

	prevGear  int
	gearSet   bool
	prevAccel float64
	accelSet  bool
	prevGas   float64
	gasSet    bool
}

// New creates a monitor for one source/link pair. The monitor does not
// poll until Start is called.
func New(source telemetry.Source, link CommandSender, cfg Config) *Monitor {
	if cfg.Mode == "" {
		cfg.Mode = ModeGearAccel
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.AbruptJerk == 0 {
		cfg.AbruptJerk = defaultAbruptJerk
	}
	if cfg.ModerateJerk == 0 {
		cfg.ModerateJerk = defaultModerateJerk
	}
	if cfg.PedalLevel == 0 {
		cfg.PedalLevel = defaultPedalLevel
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Monitor{
		source: source,
		link:   link,
		cfg:    cfg,
	}
}

// Handle owns a running monitor goroutine.
type Handle struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Stop signals the polling loop to exit and waits for it.
func (h *Handle) Stop() {
	h.once.Do(func() {
		close(h.stop)
	})
	<-h.done
}

// Start launches the polling loop and returns its handle. The loop polls
// at the configured cadence, sleeping the residual of each period after
// processing, until the handle is stopped.
func (m *Monitor) Start() *Handle {
	h := &Handle{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	logrus.WithFields(logrus.Fields{
		"mode":     m.cfg.Mode,
		"interval": m.cfg.Interval,
	}).Info("monitoring started")

	go func() {
		defer close(h.done)
		for {
			select {
			case <-h.stop:
				logrus.Info("monitoring stopped")
				return
			default:
			}

			start := m.cfg.Now()
			m.tick(m.source.Sample())
			if residual := m.cfg.Interval - m.cfg.Now().Sub(start); residual > 0 {
				m.cfg.Sleep(residual)
			}
		}
	}()
	return h
}

// tick processes one sample through the channels selected by the mode.
func (m *Monitor) tick(sample telemetry.Sample) {
	switch m.cfg.Mode {
	case ModePedal:
		if m.observePedal(sample.Gas) {
			logrus.WithField("gas", sample.Gas).Info("pedal press detected")
			m.dispatch(pedalSpeed, pedalPressAngle)
			m.dispatch(pedalSpeed, pedalRestAngle)
		}
	default:
		gear, gearChanged := m.observeGear(sample.Gear)
		jerk, jerkKnown := m.observeAccel(sample.AccG.Longitudinal)

		if !gearChanged {
			return
		}

		fields := logrus.Fields{
			"from":  gear.From,
			"to":    gear.To,
			"shift": gear.Direction.String(),
		}
		if jerkKnown {
			fields["accelFactor"] = jerk.Factor
			fields["accelStatus"] = jerk.Status
		}
		logrus.WithFields(fields).Info("gear change detected")

		if gear.Direction == DirectionUp && jerkKnown && jerk.Status == AccelAbrupt {
			logrus.Info("upshift with abrupt acceleration, kicking actuator")
			m.dispatch(shiftKickSpeed, shiftKickAngle)
		}
	}
}

// observeGear updates the gear channel and reports a change against the
// previous tick. The previous value advances whether or not a change
// fired.
func (m *Monitor) observeGear(gear int) (GearChange, bool) {
	prev, known := m.prevGear, m.gearSet
	m.prevGear = gear
	m.gearSet = true

	if !known || prev == gear {
		return GearChange{}, false
	}
	dir := DirectionUp
	if gear < prev {
		dir = DirectionDown
	}
	return GearChange{From: prev, To: gear, Direction: dir}, true
}

// observeAccel updates the acceleration channel and classifies the jerk
// against the previous tick.
func (m *Monitor) observeAccel(accel float64) (Jerk, bool) {
	prev, known := m.prevAccel, m.accelSet
	m.prevAccel = accel
	m.accelSet = true

	if !known {
		return Jerk{}, false
	}

	delta := math.Abs(accel - prev)
	j := Jerk{
		Delta:  delta,
		Factor: delta * factorScale,
		Status: AccelNormal,
	}
	switch {
	case delta > m.cfg.AbruptJerk:
		j.Status = AccelAbrupt
	case delta > m.cfg.ModerateJerk:
		j.Status = AccelModerate
	}
	return j, true
}

// observePedal reports a press edge: gas crossing from at-or-below the
// threshold to above it between ticks. A held pedal fires once.
func (m *Monitor) observePedal(gas float64) bool {
	prev, known := m.prevGas, m.gasSet
	m.prevGas = gas
	m.gasSet = true

	return known && prev <= m.cfg.PedalLevel && gas > m.cfg.PedalLevel
}

// dispatch sends one command fire-and-forget: failures are logged and
// audited, never retried, and never stop the loop.
func (m *Monitor) dispatch(speed, angle int) {
	if m.link == nil {
		return
	}

	err := m.link.SendCommand(speed, angle)
	outcome := "SUCCESS"
	if err != nil {
		outcome = "ERROR"
		logrus.WithError(err).WithFields(logrus.Fields{
			"device": m.link.Device(),
			"speed":  speed,
			"angle":  angle,
		}).Error("dispatch failed")
	}

	if m.cfg.Audit != nil {
		m.cfg.Audit.LogCommand(m.link.Device(), speed, angle, outcome)
	}
	if m.cfg.Registry != nil && err == nil {
		m.cfg.Registry.UpdateLastCommand(m.link.Device(), actuator.Command{Speed: speed, Angle: angle})
	}
}
