package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func controlToken(t *testing.T) string {
	return signHS256(t, jwt.MapClaims{
		"sub":    "operator",
		"scopes": []interface{}{"read", "control"},
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
}

func readToken(t *testing.T) string {
	return signHS256(t, jwt.MapClaims{
		"sub":    "dashboard",
		"scopes": []interface{}{"read"},
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
}

func hsVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(VerifierConfig{Algorithm: "HS256", Secret: testSecret})
	require.NoError(t, err)
	return v
}

func TestNewVerifierConfig(t *testing.T) {
	_, err := NewVerifier(VerifierConfig{Algorithm: "HS256"})
	assert.Error(t, err, "HS256 without secret")

	_, err = NewVerifier(VerifierConfig{Algorithm: "RS256"})
	assert.Error(t, err, "RS256 without key")

	_, err = NewVerifier(VerifierConfig{Algorithm: "ES512", Secret: "x"})
	assert.Error(t, err, "unsupported algorithm")

	_, err = NewVerifier(VerifierConfig{Algorithm: "RS256", PublicKeyPEM: "not a key"})
	assert.Error(t, err, "malformed PEM")
}

func TestVerifyHS256(t *testing.T) {
	v := hsVerifier(t)

	claims, err := v.VerifyToken(controlToken(t))
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Subject)
	assert.Equal(t, []string{"read", "control"}, claims.Scopes)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	v := hsVerifier(t)

	_, err := v.VerifyToken("")
	assert.Error(t, err, "empty token")

	_, err = v.VerifyToken("not.a.jwt")
	assert.Error(t, err, "garbage token")

	wrongKey := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"})
	signed, err := wrongKey.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = v.VerifyToken(signed)
	assert.Error(t, err, "wrong secret")

	expired := signHS256(t, jwt.MapClaims{
		"sub": "operator",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	_, err = v.VerifyToken(expired)
	assert.Error(t, err, "expired token")
}

func TestVerifyRS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	v, err := NewVerifier(VerifierConfig{Algorithm: "RS256", PublicKeyPEM: string(pubPEM)})
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub":    "operator",
		"scopes": []interface{}{"control"},
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(key)
	require.NoError(t, err)

	claims, err := v.VerifyToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Subject)

	// HS256 tokens are rejected by an RS256 verifier even if otherwise
	// well formed.
	_, err = v.VerifyToken(controlToken(t))
	assert.Error(t, err)
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRequireAuth(t *testing.T) {
	m := NewMiddleware(hsVerifier(t))
	handler := m.RequireAuth(okHandler)

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodGet, "/api/v1/motors", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
	})

	t.Run("malformed header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/motors", nil)
		r.Header.Set("Authorization", "Basic abc123")
		w := httptest.NewRecorder()
		handler(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bad token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/motors", nil)
		r.Header.Set("Authorization", "Bearer nope")
		w := httptest.NewRecorder()
		handler(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/motors", nil)
		r.Header.Set("Authorization", "Bearer "+readToken(t))
		w := httptest.NewRecorder()
		handler(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("health is open", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireScope(t *testing.T) {
	m := NewMiddleware(hsVerifier(t))
	handler := m.RequireAuth(m.RequireScope(ScopeControl)(okHandler))

	t.Run("read token lacks control", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/motors", nil)
		r.Header.Set("Authorization", "Bearer "+readToken(t))
		w := httptest.NewRecorder()
		handler(w, r)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "FORBIDDEN")
	})

	t.Run("control token passes", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/motors", nil)
		r.Header.Set("Authorization", "Bearer "+controlToken(t))
		w := httptest.NewRecorder()
		handler(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestDisabledMiddlewarePassesEverything(t *testing.T) {
	m := NewMiddleware(nil)
	assert.False(t, m.Enabled())

	handler := m.RequireAuth(m.RequireScope(ScopeControl)(okHandler))
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodPost, "/api/v1/motors", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClaimsFromRequest(t *testing.T) {
	m := NewMiddleware(hsVerifier(t))

	var got *Claims
	handler := m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		got = ClaimsFromRequest(r)
	})

	r := httptest.NewRequest(http.MethodGet, "/api/v1/motors", nil)
	r.Header.Set("Authorization", "Bearer "+controlToken(t))
	handler(httptest.NewRecorder(), r)

	require.NotNil(t, got)
	assert.Equal(t, "operator", got.Subject)

	assert.Nil(t, ClaimsFromRequest(httptest.NewRequest(http.MethodGet, "/", nil)))
}
