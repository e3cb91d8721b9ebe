// Package fleet coordinates the set of actuator links the container
// drives. The Manager assigns motors to slots, opens and closes their
// serial links, keeps the connection registry in step, and records
// every control action in the audit log.
package fleet
