// Package config loads runtime configuration for the motor control
// container. Values are resolved in three layers: built-in defaults,
// an optional mcc.yaml file, then MCC_* environment overrides. The
// merged result is validated before use.
package config
