package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/motion-control/mcc/internal/actuator"
)

var portsAll bool

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports that look like motor controllers",
	Run: func(cmd *cobra.Command, args []string) {
		found, err := actuator.AvailablePorts()
		if err != nil {
			logrus.WithError(err).Fatal("port discovery failed")
		}
		ports := candidatePorts(found, portsAll)
		if len(ports) == 0 {
			fmt.Println("no candidate ports found")
			return
		}
		for _, p := range ports {
			fmt.Printf("%-20s %s\n", p.Device, p.Description)
		}
	},
}

// candidatePorts narrows the enumeration to likely controllers unless
// the caller asked for everything.
func candidatePorts(ports []actuator.PortInfo, all bool) []actuator.PortInfo {
	if all {
		return ports
	}
	return actuator.FilterPorts(ports)
}

func init() {
	portsCmd.Flags().BoolVar(&portsAll, "all", false, "list every serial port, not just likely controllers")
	rootCmd.AddCommand(portsCmd)
}
