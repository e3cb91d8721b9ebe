package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motion-control/mcc/internal/actuator"
)

func TestCandidatePorts(t *testing.T) {
	ports := []actuator.PortInfo{
		{Device: "/dev/ttyACM0", Description: "Arduino Uno (2341:0043)"},
		{Device: "/dev/ttyS0", Description: "PCI UART"},
	}

	narrowed := candidatePorts(ports, false)
	require.Len(t, narrowed, 1)
	assert.Equal(t, "/dev/ttyACM0", narrowed[0].Device)

	// --all skips the keyword filter entirely.
	assert.Len(t, candidatePorts(ports, true), 2)
}
