// Package auth verifies JWT bearer tokens on the HTTP API. Tokens may
// be signed with HS256 (shared secret) or RS256 (PEM public key).
// Authorization is scope based: read covers listing and streaming,
// control covers anything that moves a motor.
package auth
