package registry

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/motion-control/mcc/internal/actuator"
)

// Connection is the registry's record of one actuator link.
type Connection struct {
	DeviceID       string            `json:"deviceId"`
	Connected      bool              `json:"connected"`
	MotorSlot      actuator.Slot     `json:"motorSlot,omitzero"`
	ConnectedAt    time.Time         `json:"connectedAt,omitzero"`
	DisconnectedAt time.Time         `json:"disconnectedAt,omitzero"`
	LastCommand    *actuator.Command `json:"lastCommand,omitempty"`
	LastCommandAt  time.Time         `json:"lastCommandAt,omitzero"`
}

// Snapshot is a consistent point-in-time copy of all connections, keyed
// by device identifier.
type Snapshot map[string]Connection

// Listener receives the full snapshot after every registry change.
type Listener func(Snapshot)

// Registry is the process-wide directory of active actuator connections.
type Registry struct {
	mu           sync.RWMutex
	connections  map[string]*Connection
	listeners    map[int]Listener
	nextListener int
	now          func() time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
		listeners:   make(map[int]Listener),
		now:         time.Now,
	}
}

// Register creates or overwrites the record for a device, stamps the
// connect time and notifies listeners. Re-registering a live key
// overwrites it; the registry holds exactly one record per device.
func (r *Registry) Register(deviceID string, slot actuator.Slot) {
	r.mu.Lock()
	r.connections[deviceID] = &Connection{
		DeviceID:    deviceID,
		Connected:   true,
		MotorSlot:   slot,
		ConnectedAt: r.now(),
	}
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"device": deviceID,
		"slot":   slot,
	}).Info("connection registered")
	r.notify()
}

// Unregister removes the record if present and notifies listeners.
// Removing an absent key is a no-op.
func (r *Registry) Unregister(deviceID string) {
	r.mu.Lock()
	_, existed := r.connections[deviceID]
	delete(r.connections, deviceID)
	r.mu.Unlock()

	if existed {
		logrus.WithField("device", deviceID).Info("connection unregistered")
		r.notify()
	}
}

// UpdateStatus mutates the connected flag. A transition to disconnected
// stamps the disconnect time.
func (r *Registry) UpdateStatus(deviceID string, connected bool) {
	r.mu.Lock()
	conn, ok := r.connections[deviceID]
	if ok {
		conn.Connected = connected
		if !connected {
			conn.DisconnectedAt = r.now()
		}
	}
	r.mu.Unlock()

	if !ok {
		logrus.WithField("device", deviceID).Warn("status update for unknown device")
		return
	}
	logrus.WithFields(logrus.Fields{
		"device":    deviceID,
		"connected": connected,
	}).Info("connection status updated")
	r.notify()
}

// UpdatePosition records which side of the rig the motor drives.
// Unknown devices are a logged no-op.
func (r *Registry) UpdatePosition(deviceID string, slot actuator.Slot) {
	r.mu.Lock()
	conn, ok := r.connections[deviceID]
	if ok {
		conn.MotorSlot = slot
	}
	r.mu.Unlock()

	if !ok {
		logrus.WithField("device", deviceID).Warn("position update for unknown device")
		return
	}
	r.notify()
}

// UpdateLastCommand records the most recent command dispatched to a
// device. Unknown devices are a logged no-op.
func (r *Registry) UpdateLastCommand(deviceID string, cmd actuator.Command) {
	r.mu.Lock()
	conn, ok := r.connections[deviceID]
	if ok {
		c := cmd
		conn.LastCommand = &c
		conn.LastCommandAt = r.now()
	}
	r.mu.Unlock()

	if !ok {
		logrus.WithField("device", deviceID).Warn("command update for unknown device")
		return
	}
	r.notify()
}

// Get returns a copy of one connection record.
func (r *Registry) Get(deviceID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[deviceID]
	if !ok {
		return Connection{}, false
	}
	return copyConnection(conn), true
}

// Snapshot returns a consistent point-in-time copy of every record.
// Callers never observe a partially-updated record and may mutate the
// result freely.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() Snapshot {
	snap := make(Snapshot, len(r.connections))
	for id, conn := range r.connections {
		snap[id] = copyConnection(conn)
	}
	return snap
}

func copyConnection(conn *Connection) Connection {
	c := *conn
	if conn.LastCommand != nil {
		cmd := *conn.LastCommand
		c.LastCommand = &cmd
	}
	return c
}

// AddListener subscribes a callback to registry changes and returns the
// id to unsubscribe with.
func (r *Registry) AddListener(fn Listener) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextListener
	r.nextListener++
	r.listeners[id] = fn
	return id
}

// RemoveListener unsubscribes a previously added callback.
func (r *Registry) RemoveListener(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listeners, id)
}

// notify delivers the current snapshot to every listener. Each listener
// runs in its own goroutine, outside the registry lock, with panics
// contained: one listener can neither block nor break the others.
func (r *Registry) notify() {
	r.mu.RLock()
	snap := r.snapshotLocked()
	listeners := make([]Listener, 0, len(r.listeners))
	for _, fn := range r.listeners {
		listeners = append(listeners, fn)
	}
	r.mu.RUnlock()

	for _, fn := range listeners {
		go func(fn Listener, snap Snapshot) {
			defer func() {
				if rec := recover(); rec != nil {
					logrus.WithField("panic", rec).Error("registry listener panicked")
				}
			}()
			fn(snap)
		}(fn, snap.clone())
	}
}

func (s Snapshot) clone() Snapshot {
	out := make(Snapshot, len(s))
	for id, conn := range s {
		c := conn
		if conn.LastCommand != nil {
			cmd := *conn.LastCommand
			c.LastCommand = &cmd
		}
		out[id] = c
	}
	return out
}
