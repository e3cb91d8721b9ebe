package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/motion-control/mcc/internal/registry"
)

const (
	// clientBuffer caps queued events per SSE client.
	clientBuffer = 32
	// sendTimeout bounds how long a broadcast waits on a slow client
	// before dropping the event for that client.
	sendTimeout = 100 * time.Millisecond
)

// Event is a single SSE frame.
type Event struct {
	ID   int64
	Type string
	Data any
}

type client struct {
	id     string
	writer http.ResponseWriter
	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
	mu     sync.Mutex
}

// Hub fans registry snapshots out to SSE clients. Event IDs are
// monotonic across the life of the hub. A heartbeat runs only while
// at least one client is attached.
type Hub struct {
	log       *logrus.Entry
	registry  *registry.Registry
	heartbeat time.Duration

	mu              sync.RWMutex
	clients         map[string]*client
	heartbeatTicker *time.Ticker
	stopHeartbeat   chan struct{}

	nextID int64

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewHub creates a hub that snapshots reg for new subscribers and
// heartbeats at the given interval while clients are attached.
func NewHub(reg *registry.Registry, heartbeat time.Duration, log *logrus.Logger) *Hub {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &Hub{
		log:       log.WithField("component", "feed"),
		registry:  reg,
		heartbeat: heartbeat,
		clients:   make(map[string]*client),
		done:      make(chan struct{}),
	}
}

// Broadcast queues a status event carrying the snapshot to every
// attached client. It satisfies registry.Listener. Slow clients have
// the event dropped rather than blocking the broadcast.
func (h *Hub) Broadcast(snap registry.Snapshot) {
	h.publish(Event{Type: "status", Data: snap})
}

func (h *Hub) publish(event Event) {
	if event.ID == 0 {
		event.ID = atomic.AddInt64(&h.nextID, 1)
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case <-c.ctx.Done():
		case <-h.done:
			return
		case c.events <- event:
		case <-time.After(sendTimeout):
			h.log.WithField("client", c.id).Debug("dropping event for slow client")
		}
	}
}

// Subscribe attaches the request as an SSE client and blocks until it
// disconnects or the hub stops. The first frame is a ready event with
// a current snapshot.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientCtx, cancel := context.WithCancel(ctx)
	c := &client{
		id:     fmt.Sprintf("client_%d", time.Now().UnixNano()),
		writer: w,
		ctx:    clientCtx,
		cancel: cancel,
		events: make(chan Event, clientBuffer),
	}

	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		cancel()
		return fmt.Errorf("feed hub stopped")
	default:
	}
	h.clients[c.id] = c
	if len(h.clients) == 1 && h.heartbeatTicker == nil {
		h.startHeartbeatLocked()
	}
	h.mu.Unlock()

	ready := Event{
		ID:   atomic.AddInt64(&h.nextID, 1),
		Type: "ready",
		Data: h.registry.Snapshot(),
	}
	if err := h.send(c, ready); err != nil {
		h.unregister(c.id)
		return fmt.Errorf("failed to send ready event: %w", err)
	}

	h.serve(c)
	return nil
}

// serve delivers queued events until the client goes away.
func (h *Hub) serve(c *client) {
	defer h.unregister(c.id)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-h.done:
			return
		case event := <-c.events:
			if err := h.send(c, event); err != nil {
				return
			}
		}
	}
}

func (h *Hub) send(c *client, event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	if _, err := fmt.Fprintf(c.writer, "id: %d\nevent: %s\ndata: %s\n\n", event.ID, event.Type, data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if flusher, ok := c.writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[id]
	if !ok {
		return
	}
	c.cancel()
	delete(h.clients, id)

	if len(h.clients) == 0 && h.heartbeatTicker != nil {
		h.heartbeatTicker.Stop()
		h.heartbeatTicker = nil
		close(h.stopHeartbeat)
		h.stopHeartbeat = nil
	}
}

// startHeartbeatLocked starts the heartbeat goroutine. Caller holds
// h.mu and has verified no ticker is running.
func (h *Hub) startHeartbeatLocked() {
	h.heartbeatTicker = time.NewTicker(h.heartbeat)
	h.stopHeartbeat = make(chan struct{})

	ticker := h.heartbeatTicker
	stop := h.stopHeartbeat

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ticker.C:
				h.publish(Event{Type: "heartbeat", Data: map[string]string{
					"ts": time.Now().UTC().Format(time.RFC3339),
				}})
			case <-stop:
				return
			case <-h.done:
				return
			}
		}
	}()
}

// ClientCount reports the number of attached SSE clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop disconnects every client and halts the heartbeat. Safe to call
// more than once.
func (h *Hub) Stop() {
	h.once.Do(func() {
		close(h.done)

		h.mu.Lock()
		for _, c := range h.clients {
			c.cancel()
		}
		if h.heartbeatTicker != nil {
			h.heartbeatTicker.Stop()
			h.heartbeatTicker = nil
		}
		if h.stopHeartbeat != nil {
			close(h.stopHeartbeat)
			h.stopHeartbeat = nil
		}
		h.mu.Unlock()

		h.wg.Wait()
	})
}
