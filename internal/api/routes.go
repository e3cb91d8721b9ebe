package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/motion-control/mcc/internal/actuator"
	"github.com/motion-control/mcc/internal/auth"
	"github.com/motion-control/mcc/internal/registry"
)

// RegisterRoutes wires every endpoint onto the mux. When auth is
// enabled, read endpoints need the read scope and anything that moves
// a motor needs control.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	const apiV1 = "/api/v1"

	read := func(h http.HandlerFunc) http.HandlerFunc {
		return s.authMW.RequireAuth(s.authMW.RequireScope(auth.ScopeRead)(h))
	}

	mux.HandleFunc(apiV1+"/health", s.handleHealth)
	mux.HandleFunc(apiV1+"/ports", read(s.handlePorts))
	mux.HandleFunc(apiV1+"/motors", s.authMW.RequireAuth(s.handleMotors))
	mux.HandleFunc(apiV1+"/motors/stream", read(s.handleStream))
	mux.HandleFunc(apiV1+"/motors/", s.authMW.RequireAuth(s.handleMotorEndpoints))

	s.RegisterWebSocketRoutes(mux)
}

// handleHealth handles GET /health. Always open.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Only GET method is allowed", nil)
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"status":        "ok",
		"uptimeSeconds": int(time.Since(s.startTime).Seconds()),
	})
}

// handlePorts handles GET /ports.
func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Only GET method is allowed", nil)
		return
	}
	ports := []actuator.PortInfo{}
	if s.discover != nil {
		found, err := s.discover()
		if err != nil {
			WriteError(w, http.StatusServiceUnavailable, CodeUnavailable, "Port discovery failed", nil)
			return
		}
		ports = actuator.FilterPorts(found)
	}
	WriteSuccess(w, map[string]interface{}{"ports": ports})
}

// handleMotors handles GET /motors (list) and POST /motors (connect).
func (s *Server) handleMotors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.authMW.RequireScope(auth.ScopeRead)(s.listMotors)(w, r)
	case http.MethodPost:
		s.authMW.RequireScope(auth.ScopeControl)(s.connectMotor)(w, r)
	default:
		WriteError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Only GET and POST methods are allowed", nil)
	}
}

func (s *Server) listMotors(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, map[string]interface{}{"motors": s.fleet.Snapshot()})
}

func (s *Server) connectMotor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slot   string `json:"slot"`
		Device string `json:"device"`
	}
	if !decodeStrict(w, r, &req) {
		return
	}

	slot, ok := parseSlot(req.Slot)
	if !ok {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "slot must be left or right", nil)
		return
	}
	if req.Device == "" {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "device is required", nil)
		return
	}

	if err := s.fleet.Connect(slot, req.Device); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{"slot": string(slot), "device": req.Device, "connected": true})
}

// handleMotorEndpoints dispatches /motors/{slot} and its
// subresources.
func (s *Server) handleMotorEndpoints(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/motors/")
	parts := strings.SplitN(rest, "/", 2)

	slot, ok := parseSlot(parts[0])
	if !ok {
		WriteError(w, http.StatusNotFound, CodeNotFound, "Unknown motor slot", nil)
		return
	}

	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}

	control := s.authMW.RequireScope(auth.ScopeControl)

	switch {
	case sub == "" && r.Method == http.MethodGet:
		s.authMW.RequireScope(auth.ScopeRead)(func(w http.ResponseWriter, _ *http.Request) {
			s.getMotor(w, slot)
		})(w, r)
	case sub == "" && r.Method == http.MethodDelete:
		control(func(w http.ResponseWriter, _ *http.Request) {
			s.disconnectMotor(w, slot)
		})(w, r)
	case sub == "command" && r.Method == http.MethodPost:
		control(func(w http.ResponseWriter, r *http.Request) {
			s.sendCommand(w, r, slot)
		})(w, r)
	case sub == "test" && r.Method == http.MethodPost:
		control(func(w http.ResponseWriter, _ *http.Request) {
			s.testMotor(w, slot)
		})(w, r)
	case sub == "" || sub == "command" || sub == "test":
		WriteError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed for this resource", nil)
	default:
		WriteError(w, http.StatusNotFound, CodeNotFound, "Resource not found", nil)
	}
}

func (s *Server) getMotor(w http.ResponseWriter, slot actuator.Slot) {
	// Disconnected records survive in the registry, so a live link on
	// the slot wins over a historical one.
	var found *registry.Connection
	for _, conn := range s.fleet.Snapshot() {
		if conn.MotorSlot != slot {
			continue
		}
		if conn.Connected {
			WriteSuccess(w, conn)
			return
		}
		if found == nil {
			c := conn
			found = &c
		}
	}
	if found != nil {
		WriteSuccess(w, *found)
		return
	}
	WriteError(w, http.StatusNotFound, CodeNotFound, "No motor on that slot", nil)
}

func (s *Server) disconnectMotor(w http.ResponseWriter, slot actuator.Slot) {
	if err := s.fleet.Disconnect(slot); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{"slot": string(slot), "connected": false})
}

func (s *Server) sendCommand(w http.ResponseWriter, r *http.Request, slot actuator.Slot) {
	var req struct {
		Speed int `json:"speed"`
		Angle int `json:"angle"`
	}
	if !decodeStrict(w, r, &req) {
		return
	}

	if err := s.fleet.SendCommand(slot, req.Speed, req.Angle); err != nil {
		WriteDomainError(w, err)
		return
	}

	resp := map[string]interface{}{"speed": req.Speed, "angle": req.Angle}
	if line, ok, err := s.fleet.ReadResponse(slot, 200*time.Millisecond); err == nil && ok {
		resp["response"] = line
	}
	WriteSuccess(w, resp)
}

func (s *Server) testMotor(w http.ResponseWriter, slot actuator.Slot) {
	ok, err := s.fleet.Test(slot)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{"slot": string(slot), "responding": ok})
}

// handleStream handles GET /motors/stream (SSE).
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Only GET method is allowed", nil)
		return
	}
	if s.stream == nil {
		WriteError(w, http.StatusServiceUnavailable, CodeUnavailable, "Status stream not available", nil)
		return
	}
	if err := s.stream.Subscribe(r.Context(), w, r); err != nil {
		s.log.WithError(err).Debug("SSE subscription ended with error")
	}
}

// decodeStrict decodes exactly one JSON object, rejecting unknown
// fields and trailing data. Writes the error response itself.
func decodeStrict(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "Malformed JSON or unknown fields", nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "Trailing data after JSON object", nil)
		return false
	}
	return true
}

func parseSlot(raw string) (actuator.Slot, bool) {
	switch actuator.Slot(raw) {
	case actuator.SlotLeft, actuator.SlotRight:
		return actuator.Slot(raw), true
	default:
		return "", false
	}
}
