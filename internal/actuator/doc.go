// Package actuator owns the serial command protocol for a single motor
// controller: connection lifecycle with the mandatory post-open settle
// delay, the structured "<speed>,<angle>\n" command form, the
// single-character manual form, and best-effort response reads.
//
// A Link serializes all traffic on its port; callers never need an
// external lock. Transmit failures do not flip a link to disconnected;
// recovery is an explicit Disconnect/Connect cycle.
package actuator
