package fleet

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/motion-control/mcc/internal/actuator"
	"github.com/motion-control/mcc/internal/registry"
)

// ErrUnknownSlot indicates no motor occupies the requested slot.
var ErrUnknownSlot = errors.New("UNKNOWN_SLOT")

// ErrDeviceInUse indicates the serial device already backs another
// slot.
var ErrDeviceInUse = errors.New("DEVICE_IN_USE")

// LinkFactory builds an actuator link for a device. The serial
// configuration is baked in by the caller.
type LinkFactory func(device string) *actuator.Link

// AuditLogger records control actions. Satisfied by audit.Logger.
type AuditLogger interface {
	LogCommand(device string, speed, angle int, outcome string)
	LogAction(device, action string, params map[string]interface{}, outcome string)
}

// Manager owns one actuator link per motor slot.
type Manager struct {
	log      *logrus.Entry
	newLink  LinkFactory
	registry *registry.Registry
	audit    AuditLogger

	mu    sync.RWMutex
	links map[actuator.Slot]*actuator.Link
}

// NewManager wires a manager to the registry and audit log.
func NewManager(newLink LinkFactory, reg *registry.Registry, audit AuditLogger, log *logrus.Logger) *Manager {
	return &Manager{
		log:      log.WithField("component", "fleet"),
		newLink:  newLink,
		registry: reg,
		audit:    audit,
		links:    make(map[actuator.Slot]*actuator.Link),
	}
}

// Connect opens a link to device and assigns it the slot. A claimed
// slot is rejected with ErrAlreadyConnected; a device serving another
// slot is rejected with ErrDeviceInUse. The map entry is the claim: it
// goes in before the dial so a second Connect racing the settle wait
// loses, and comes out only on failure or Disconnect.
func (m *Manager) Connect(slot actuator.Slot, device string) error {
	m.mu.Lock()
	if _, ok := m.links[slot]; ok {
		m.mu.Unlock()
		return actuator.ErrAlreadyConnected
	}
	for _, link := range m.links {
		if link.Device() == device {
			m.mu.Unlock()
			return ErrDeviceInUse
		}
	}
	link := m.newLink(device)
	if err := link.SetSlot(slot); err != nil {
		m.mu.Unlock()
		return err
	}
	m.links[slot] = link
	m.mu.Unlock()

	// Connect blocks for the settle delay, so the map lock is not held.
	if err := link.Connect(); err != nil {
		m.mu.Lock()
		delete(m.links, slot)
		m.mu.Unlock()
		m.audit.LogAction(device, "connect", map[string]interface{}{"slot": string(slot)}, "ERROR")
		return err
	}

	m.registry.Register(device, slot)
	m.audit.LogAction(device, "connect", map[string]interface{}{"slot": string(slot)}, "SUCCESS")
	m.log.WithFields(logrus.Fields{"slot": slot, "device": device}).Info("motor connected")
	return nil
}

// Disconnect closes the slot's link and frees the slot. The registry
// record survives with its disconnect time stamped.
func (m *Manager) Disconnect(slot actuator.Slot) error {
	m.mu.Lock()
	link, ok := m.links[slot]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownSlot
	}
	delete(m.links, slot)
	m.mu.Unlock()

	link.Disconnect()
	m.registry.UpdateStatus(link.Device(), false)
	m.audit.LogAction(link.Device(), "disconnect", map[string]interface{}{"slot": string(slot)}, "SUCCESS")
	m.log.WithFields(logrus.Fields{"slot": slot, "device": link.Device()}).Info("motor disconnected")
	return nil
}

// Link returns the live link for a slot.
func (m *Manager) Link(slot actuator.Slot) (*actuator.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	link, ok := m.links[slot]
	if !ok {
		return nil, ErrUnknownSlot
	}
	return link, nil
}

// SendCommand validates and transmits a speed/angle command on the
// slot's link, recording the outcome.
func (m *Manager) SendCommand(slot actuator.Slot, speed, angle int) error {
	link, err := m.Link(slot)
	if err != nil {
		return err
	}

	if err := link.SendCommand(speed, angle); err != nil {
		m.audit.LogCommand(link.Device(), speed, angle, "ERROR")
		return err
	}
	m.audit.LogCommand(link.Device(), speed, angle, "SUCCESS")
	m.registry.UpdateLastCommand(link.Device(), actuator.Command{Speed: speed, Angle: angle})
	return nil
}

// SendManual transmits a single manual drive token on the slot's link.
func (m *Manager) SendManual(slot actuator.Slot, token byte) error {
	link, err := m.Link(slot)
	if err != nil {
		return err
	}

	outcome := "SUCCESS"
	err = link.SendManual(token)
	if err != nil {
		outcome = "ERROR"
	}
	m.audit.LogAction(link.Device(), "sendManual",
		map[string]interface{}{"token": string(token)}, outcome)
	return err
}

// Test sends the neutral command on the slot's link and reports
// whether the transmit succeeded.
func (m *Manager) Test(slot actuator.Slot) (bool, error) {
	link, err := m.Link(slot)
	if err != nil {
		return false, err
	}
	ok := link.TestConnection()
	outcome := "SUCCESS"
	if !ok {
		outcome = "ERROR"
	}
	m.audit.LogAction(link.Device(), "testConnection", nil, outcome)
	return ok, nil
}

// ReadResponse reads one controller response line from the slot's
// link.
func (m *Manager) ReadResponse(slot actuator.Slot, timeout time.Duration) (string, bool, error) {
	link, err := m.Link(slot)
	if err != nil {
		return "", false, err
	}
	line, ok := link.ReadResponse(timeout)
	return line, ok, nil
}

// Snapshot reports the current connection registry.
func (m *Manager) Snapshot() registry.Snapshot {
	return m.registry.Snapshot()
}

// Shutdown disconnects every motor. Used on process exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	links := make(map[actuator.Slot]*actuator.Link, len(m.links))
	for slot, link := range m.links {
		links[slot] = link
	}
	m.links = make(map[actuator.Slot]*actuator.Link)
	m.mu.Unlock()

	for _, link := range links {
		link.Disconnect()
		m.registry.UpdateStatus(link.Device(), false)
	}
}
