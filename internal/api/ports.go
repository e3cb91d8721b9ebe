package api

import (
	"context"
	"net/http"
	"time"

	"github.com/motion-control/mcc/internal/actuator"
	"github.com/motion-control/mcc/internal/feed"
	"github.com/motion-control/mcc/internal/fleet"
	"github.com/motion-control/mcc/internal/registry"
)

// FleetPort is the minimal surface the API needs from the fleet
// manager.
type FleetPort interface {
	Connect(slot actuator.Slot, device string) error
	Disconnect(slot actuator.Slot) error
	SendCommand(slot actuator.Slot, speed, angle int) error
	SendManual(slot actuator.Slot, token byte) error
	Test(slot actuator.Slot) (bool, error)
	ReadResponse(slot actuator.Slot, timeout time.Duration) (string, bool, error)
	Snapshot() registry.Snapshot
}

// StreamPort is the minimal surface the API needs from the status
// feed.
type StreamPort interface {
	Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// DiscoverFunc lists candidate serial ports.
type DiscoverFunc func() ([]actuator.PortInfo, error)

var _ FleetPort = (*fleet.Manager)(nil)
var _ StreamPort = (*feed.Hub)(nil)
var _ DiscoverFunc = actuator.AvailablePorts
