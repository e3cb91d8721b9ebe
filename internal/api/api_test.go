package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motion-control/mcc/internal/actuator"
	"github.com/motion-control/mcc/internal/actuator/fake"
	"github.com/motion-control/mcc/internal/auth"
	"github.com/motion-control/mcc/internal/fleet"
	"github.com/motion-control/mcc/internal/registry"
)

type testEnv struct {
	server *Server
	mux    *http.ServeMux
	port   *fake.Port
}

type nopAudit struct{}

func (nopAudit) LogCommand(string, int, int, string)                       {}
func (nopAudit) LogAction(string, string, map[string]interface{}, string) {}

func newEnv(t *testing.T, verifier *auth.Verifier) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	port := fake.New()
	factory := func(device string) *actuator.Link {
		return actuator.NewLink(device, actuator.LinkConfig{
			Open:        port.Opener(),
			SettleDelay: 0,
			Sleep:       func(time.Duration) {},
		})
	}
	manager := fleet.NewManager(factory, registry.New(), nopAudit{}, log)

	discover := func() ([]actuator.PortInfo, error) {
		return []actuator.PortInfo{
			{Device: "/dev/ttyUSB0", Description: "Arduino Uno (2341:0043)"},
			{Device: "/dev/ttyS0", Description: "PCI UART"},
		}, nil
	}

	srv := NewServer(manager, nil, discover, auth.NewMiddleware(verifier), ServerConfig{}, log)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	return &testEnv{server: srv, mux: mux, port: port}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) (*httptest.ResponseRecorder, *Response) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	r := httptest.NewRequest(method, path, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		r.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, r)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body: %s", w.Body.String())
	require.NotEmpty(t, resp.CorrelationID)
	return w, &resp
}

func (e *testEnv) connectLeft(t *testing.T) {
	t.Helper()
	w, _ := e.do(t, http.MethodPost, "/api/v1/motors", `{"slot":"left","device":"/dev/ttyUSB0"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHealth(t *testing.T) {
	e := newEnv(t, nil)
	w, resp := e.do(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", resp.Result)

	w, resp = e.do(t, http.MethodPost, "/api/v1/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, CodeMethodNotAllowed, resp.Code)
}

func TestListPorts(t *testing.T) {
	e := newEnv(t, nil)
	w, resp := e.do(t, http.MethodGet, "/api/v1/ports", "")
	require.Equal(t, http.StatusOK, w.Code)

	// The bare UART is dropped; only the controller-looking port is listed.
	data := resp.Data.(map[string]interface{})
	ports := data["ports"].([]interface{})
	require.Len(t, ports, 1)
	assert.Equal(t, "/dev/ttyUSB0", ports[0].(map[string]interface{})["deviceId"])
}

func TestConnectMotor(t *testing.T) {
	e := newEnv(t, nil)

	w, resp := e.do(t, http.MethodPost, "/api/v1/motors", `{"slot":"left","device":"/dev/ttyUSB0"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", resp.Result)

	// Same slot again conflicts.
	w, resp = e.do(t, http.MethodPost, "/api/v1/motors", `{"slot":"left","device":"/dev/ttyUSB1"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeConflict, resp.Code)
}

func TestConnectMotorBadRequests(t *testing.T) {
	e := newEnv(t, nil)

	cases := []struct {
		name string
		body string
	}{
		{"bad slot", `{"slot":"center","device":"/dev/ttyUSB0"}`},
		{"missing device", `{"slot":"left"}`},
		{"unknown field", `{"slot":"left","device":"/dev/ttyUSB0","speed":1}`},
		{"trailing data", `{"slot":"left","device":"/dev/ttyUSB0"}{}`},
		{"malformed", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, resp := e.do(t, http.MethodPost, "/api/v1/motors", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, CodeBadRequest, resp.Code)
		})
	}
}

func TestListAndGetMotors(t *testing.T) {
	e := newEnv(t, nil)
	e.connectLeft(t)

	w, resp := e.do(t, http.MethodGet, "/api/v1/motors", "")
	require.Equal(t, http.StatusOK, w.Code)
	motors := resp.Data.(map[string]interface{})["motors"].(map[string]interface{})
	require.Contains(t, motors, "/dev/ttyUSB0")

	w, resp = e.do(t, http.MethodGet, "/api/v1/motors/left", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/dev/ttyUSB0", resp.Data.(map[string]interface{})["deviceId"])

	w, resp = e.do(t, http.MethodGet, "/api/v1/motors/right", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeNotFound, resp.Code)

	w, _ = e.do(t, http.MethodGet, "/api/v1/motors/center", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDisconnectMotor(t *testing.T) {
	e := newEnv(t, nil)
	e.connectLeft(t)

	w, _ := e.do(t, http.MethodDelete, "/api/v1/motors/left", "")
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := e.do(t, http.MethodDelete, "/api/v1/motors/left", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeNotFound, resp.Code)
}

func TestSendCommand(t *testing.T) {
	e := newEnv(t, nil)
	e.connectLeft(t)

	w, resp := e.do(t, http.MethodPost, "/api/v1/motors/left/command", `{"speed":100,"angle":105}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", resp.Result)

	writes := e.port.Writes()
	require.NotEmpty(t, writes)
	assert.Equal(t, "100,105\n", string(writes[len(writes)-1]))
}

func TestSendCommandOutOfRange(t *testing.T) {
	e := newEnv(t, nil)
	e.connectLeft(t)
	before := e.port.WriteCount()

	w, resp := e.do(t, http.MethodPost, "/api/v1/motors/left/command", `{"speed":300,"angle":90}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidRange, resp.Code)
	require.NotNil(t, resp.Details)
	assert.Equal(t, "speed", resp.Details.(map[string]interface{})["field"])

	// Rejected commands put nothing on the wire.
	assert.Equal(t, before, e.port.WriteCount())
}

func TestSendCommandUnknownSlot(t *testing.T) {
	e := newEnv(t, nil)
	w, resp := e.do(t, http.MethodPost, "/api/v1/motors/right/command", `{"speed":0,"angle":90}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeNotFound, resp.Code)
}

func TestTestMotor(t *testing.T) {
	e := newEnv(t, nil)
	e.connectLeft(t)

	w, resp := e.do(t, http.MethodPost, "/api/v1/motors/left/test", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp.Data.(map[string]interface{})["responding"])

	writes := e.port.Writes()
	assert.Equal(t, "0,90\n", string(writes[len(writes)-1]))
}

func TestUnknownSubresource(t *testing.T) {
	e := newEnv(t, nil)
	e.connectLeft(t)

	w, resp := e.do(t, http.MethodPost, "/api/v1/motors/left/boost", "{}")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeNotFound, resp.Code)

	w, resp = e.do(t, http.MethodPut, "/api/v1/motors/left/command", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, CodeMethodNotAllowed, resp.Code)
}

func signToken(t *testing.T, secret string, scopes ...string) string {
	t.Helper()
	raw := make([]interface{}, len(scopes))
	for i, s := range scopes {
		raw[i] = s
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    "tester",
		"scopes": raw,
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthEnforcement(t *testing.T) {
	const secret = "api-test-secret"
	verifier, err := auth.NewVerifier(auth.VerifierConfig{Algorithm: "HS256", Secret: secret})
	require.NoError(t, err)
	e := newEnv(t, verifier)

	readTok := "Bearer " + signToken(t, secret, "read")
	controlTok := "Bearer " + signToken(t, secret, "read", "control")

	t.Run("health stays open", func(t *testing.T) {
		w, _ := e.do(t, http.MethodGet, "/api/v1/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("no token rejected", func(t *testing.T) {
		w, resp := e.do(t, http.MethodGet, "/api/v1/motors", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "UNAUTHORIZED", resp.Code)
	})

	t.Run("read token can list", func(t *testing.T) {
		w, _ := e.do(t, http.MethodGet, "/api/v1/motors", "", "Authorization", readTok)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("read token cannot connect", func(t *testing.T) {
		w, resp := e.do(t, http.MethodPost, "/api/v1/motors",
			`{"slot":"left","device":"/dev/ttyUSB0"}`, "Authorization", readTok)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "FORBIDDEN", resp.Code)
	})

	t.Run("control token can connect", func(t *testing.T) {
		w, _ := e.do(t, http.MethodPost, "/api/v1/motors",
			`{"slot":"left","device":"/dev/ttyUSB0"}`, "Authorization", controlTok)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func dialWS(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestControlSocket(t *testing.T) {
	e := newEnv(t, nil)
	e.connectLeft(t)
	ts := httptest.NewServer(e.mux)
	defer ts.Close()

	conn := dialWS(t, ts, "/api/v1/ws/control?slot=left")

	require.NoError(t, conn.WriteJSON(map[string]string{"command": "f"}))
	var reply map[string]interface{}
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "ok", reply["result"])

	writes := e.port.Writes()
	require.NotEmpty(t, writes)
	assert.Equal(t, "f", string(writes[len(writes)-1]))

	// Invalid tokens are reported without closing the session.
	require.NoError(t, conn.WriteJSON(map[string]string{"command": "x"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply["result"])

	require.NoError(t, conn.WriteJSON(map[string]string{"command": "fb"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply["result"])

	require.NoError(t, conn.WriteJSON(map[string]string{"command": "b"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "ok", reply["result"])
}

func TestControlSocketRequiresSlot(t *testing.T) {
	e := newEnv(t, nil)
	ts := httptest.NewServer(e.mux)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws/control"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPortsSocketPushesOnConnect(t *testing.T) {
	e := newEnv(t, nil)
	ts := httptest.NewServer(e.mux)
	defer ts.Close()

	conn := dialWS(t, ts, "/api/v1/ws/ports")

	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	ports := msg["ports"].([]interface{})
	require.Len(t, ports, 1)
	assert.Equal(t, "/dev/ttyUSB0", ports[0].(map[string]interface{})["deviceId"])
}
