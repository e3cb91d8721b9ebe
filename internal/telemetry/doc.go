// Package telemetry defines the vehicle physics snapshot consumed by the
// event monitor and the Source contract that produces it.
//
// The schema is a fixed struct: unknown fields from whatever backs a
// Source are dropped, missing ones default to zero. A source whose
// simulator is not running returns the zero Sample instead of blocking.
package telemetry
