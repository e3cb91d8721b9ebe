// Package feed distributes live connection status to observers. The
// Hub streams registry snapshots to SSE clients with monotonic event
// IDs and a heartbeat while clients are attached; the Bridge mirrors
// the same snapshots to an MQTT broker for fleet dashboards.
package feed
