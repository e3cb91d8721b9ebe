// Package monitor turns the telemetry stream into classified driving
// events and dispatches rate-limited actuator commands for them.
//
// A Monitor polls its Source at a fixed cadence and derives events from
// tick-to-tick deltas: gear changes with shift direction, longitudinal
// acceleration jerk classified by abruptness, and gas pedal press edges.
// Dispatch is fire-and-forget: a failed send is logged and never retried,
// and the polling loop never halts on bad or missing data. The loop runs
// until its handle is stopped.
package monitor
