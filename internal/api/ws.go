package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/motion-control/mcc/internal/actuator"
	"github.com/motion-control/mcc/internal/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// portsPushInterval paces the discovery stream on /ws/ports.
const portsPushInterval = 2 * time.Second

// controlMessage is one inbound manual drive frame.
type controlMessage struct {
	Command string `json:"command"`
}

// controlReply acknowledges a frame or reports why it was dropped.
type controlReply struct {
	Result  string `json:"result"`
	Command string `json:"command,omitempty"`
	Message string `json:"message,omitempty"`
}

// RegisterWebSocketRoutes wires the WS endpoints. Both need the
// control scope when auth is enabled; the ports stream is read-only
// but kept behind auth like everything else.
func (s *Server) RegisterWebSocketRoutes(mux *http.ServeMux) {
	const apiV1 = "/api/v1"
	mux.HandleFunc(apiV1+"/ws/control",
		s.authMW.RequireAuth(s.authMW.RequireScope(auth.ScopeControl)(s.handleControlSocket)))
	mux.HandleFunc(apiV1+"/ws/ports",
		s.authMW.RequireAuth(s.authMW.RequireScope(auth.ScopeRead)(s.handlePortsSocket)))
}

// handleControlSocket drives a motor manually. Each inbound frame
// carries a single token command ("f" or "b") that is relayed to the
// slot given in the query string.
func (s *Server) handleControlSocket(w http.ResponseWriter, r *http.Request) {
	slot, ok := parseSlot(r.URL.Query().Get("slot"))
	if !ok {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "slot query parameter must be left or right", nil)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	log := s.log.WithField("slot", slot)
	log.Info("manual control session opened")
	defer log.Info("manual control session closed")

	for {
		var msg controlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		if len(msg.Command) != 1 {
			if err := conn.WriteJSON(controlReply{Result: "error", Message: "command must be a single character"}); err != nil {
				return
			}
			continue
		}

		reply := controlReply{Result: "ok", Command: msg.Command}
		if err := s.fleet.SendManual(slot, msg.Command[0]); err != nil {
			reply = controlReply{Result: "error", Command: msg.Command, Message: err.Error()}
		}
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}

// handlePortsSocket pushes the discovered port list on connect and
// then on a fixed cadence until the client goes away.
func (s *Server) handlePortsSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Reader goroutine notices client close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	push := func() error {
		ports := []actuator.PortInfo{}
		if s.discover != nil {
			if found, err := s.discover(); err == nil {
				ports = actuator.FilterPorts(found)
			}
		}
		return conn.WriteJSON(map[string]interface{}{"ports": ports})
	}

	if err := push(); err != nil {
		return
	}

	ticker := time.NewTicker(portsPushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := push(); err != nil {
				return
			}
		}
	}
}
