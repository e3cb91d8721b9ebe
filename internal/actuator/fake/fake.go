// Package fake provides a recording in-memory Port for testing link
// protocol behavior without hardware. Each Write call is captured
// atomically, so tests can verify that concurrent commands never
// interleave their byte sequences on the wire.
package fake

import (
	"sync"
	"time"

	"github.com/motion-control/mcc/internal/actuator"
)

// Port implements actuator.Port in memory.
type Port struct {
	mu       sync.Mutex
	writes   [][]byte
	pending  []byte
	closed   bool
	writeErr error
	openErr  error
}

// New creates an idle fake port.
func New() *Port {
	return &Port{}
}

// Opener returns an actuator.OpenFunc that hands out this port, or fails
// with the configured open error.
func (p *Port) Opener() actuator.OpenFunc {
	return func(device string, baudRate int) (actuator.Port, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.openErr != nil {
			return nil, p.openErr
		}
		p.closed = false
		return p, nil
	}
}

// FailOpen makes the next Opener call fail with err.
func (p *Port) FailOpen(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openErr = err
}

// FailWrites makes subsequent Write calls fail with err. Pass nil to
// restore normal writes.
func (p *Port) FailWrites(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

// QueueResponse stages bytes to be returned by subsequent Read calls.
func (p *Port) QueueResponse(data string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, []byte(data)...)
}

// Write records the whole payload as one atomic wire transaction.
func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	buf := make([]byte, len(b))
	copy(buf, b)
	p.writes = append(p.writes, buf)
	return len(b), nil
}

// Read drains staged response bytes. An empty staging buffer behaves
// like a serial read timeout: zero bytes, nil error.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return 0, nil
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// SetReadTimeout is accepted and ignored; Read already has timeout
// semantics.
func (p *Port) SetReadTimeout(timeout time.Duration) error {
	return nil
}

// Close marks the port closed.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close was called since the last open.
func (p *Port) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Writes returns a copy of every recorded write transaction in order.
func (p *Port) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	for i, w := range p.writes {
		buf := make([]byte, len(w))
		copy(buf, w)
		out[i] = buf
	}
	return out
}

// WriteCount returns the number of recorded write transactions.
func (p *Port) WriteCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.writes)
}
