package auth

import (
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token fields the API cares about.
type Claims struct {
	Subject string
	Scopes  []string
}

// Scope constants. A control token can do everything a read token can.
const (
	ScopeRead    = "read"
	ScopeControl = "control"
)

// VerifierConfig selects the signing algorithm and its key material.
type VerifierConfig struct {
	Algorithm    string // "HS256" or "RS256"
	Secret       string // HS256 shared secret
	PublicKeyPEM string // RS256 public key, PEM encoded
}

// Verifier checks token signatures and extracts claims.
type Verifier struct {
	algorithm string
	secret    []byte
	publicKey *rsa.PublicKey
}

// NewVerifier validates the config and prepares key material.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	v := &Verifier{algorithm: cfg.Algorithm}

	switch cfg.Algorithm {
	case "HS256":
		if cfg.Secret == "" {
			return nil, fmt.Errorf("HS256 requires a secret key")
		}
		v.secret = []byte(cfg.Secret)
	case "RS256":
		if cfg.PublicKeyPEM == "" {
			return nil, fmt.Errorf("RS256 requires a public key")
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
		}
		v.publicKey = key
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", cfg.Algorithm)
	}

	return v, nil
}

// VerifyToken checks the signature and standard time claims, then
// returns the subject and scopes.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != v.algorithm {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		if v.algorithm == "HS256" {
			return v.secret, nil
		}
		return v.publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}
	return claimsFromMap(mapClaims), nil
}

func claimsFromMap(m jwt.MapClaims) *Claims {
	claims := &Claims{}
	if sub, ok := m["sub"].(string); ok {
		claims.Subject = sub
	}
	if raw, ok := m["scopes"].([]interface{}); ok {
		for _, s := range raw {
			if scope, ok := s.(string); ok {
				claims.Scopes = append(claims.Scopes, scope)
			}
		}
	}
	return claims
}
