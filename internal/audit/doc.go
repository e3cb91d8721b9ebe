// Package audit writes an append-only JSONL record of every actuator
// command and control action, one JSON object per line. The log is the
// ground truth for what the rig was told to do and when.
package audit
