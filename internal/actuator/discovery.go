package actuator

import (
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes one candidate actuator device.
type PortInfo struct {
	Device      string `json:"deviceId"`
	Description string `json:"description"`
}

// Description keywords that mark a port as a likely motor controller
// (Arduino-class boards and the usual USB-serial bridge chips).
var portKeywords = []string{"arduino", "usb", "serial", "ch340", "cp2102"}

// AvailablePorts enumerates every serial device on the host. Callers
// that only want likely motor controllers pass the result through
// FilterPorts.
func AvailablePorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Device:      d.Name,
			Description: describePort(d),
		})
	}
	return ports, nil
}

// FilterPorts keeps the entries whose description matches a known
// controller keyword.
func FilterPorts(ports []PortInfo) []PortInfo {
	matched := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		desc := strings.ToLower(p.Description)
		for _, kw := range portKeywords {
			if strings.Contains(desc, kw) {
				matched = append(matched, p)
				break
			}
		}
	}
	return matched
}

func describePort(d *enumerator.PortDetails) string {
	if !d.IsUSB {
		return "serial device"
	}
	desc := d.Product
	if desc == "" {
		desc = "USB device"
	}
	return fmt.Sprintf("%s (%s:%s)", desc, d.VID, d.PID)
}
