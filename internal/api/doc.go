// Package api exposes motor control over HTTP. REST endpoints cover
// connection lifecycle and one-shot commands, an SSE stream carries
// live connection status, and WebSocket endpoints serve manual drive
// and port discovery. Every JSON response uses a single envelope with
// a normalized error code.
package api
