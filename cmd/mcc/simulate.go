package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/motion-control/mcc/internal/config"
	"github.com/motion-control/mcc/internal/monitor"
	"github.com/motion-control/mcc/internal/telemetry"
)

var (
	simSeed int64
	simMode string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the telemetry monitor against simulated vehicle data",
	Long: `Runs the event detection loop on a simulated vehicle feed and
prints the commands it would send, without touching any hardware.`,
	Run: func(cmd *cobra.Command, args []string) {
		runSimulate()
	},
}

func init() {
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "simulation seed (0 uses the clock)")
	simulateCmd.Flags().StringVar(&simMode, "mode", "", "monitor mode: gear or pedal (overrides config)")
	rootCmd.AddCommand(simulateCmd)
}

// printSender satisfies monitor.CommandSender without hardware.
type printSender struct{}

func (printSender) SendCommand(speed, angle int) error {
	fmt.Printf(">> would send %d,%d\n", speed, angle)
	return nil
}

func (printSender) Device() string { return "simulated" }

func runSimulate() {
	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	mode := cfg.Monitor.Mode
	if simMode != "" {
		mode = simMode
	}

	seed := simSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	source := telemetry.NewSimSource(seed)
	m := monitor.New(source, printSender{}, monitor.Config{
		Mode:         monitor.Mode(mode),
		Interval:     cfg.Monitor.Interval,
		AbruptJerk:   cfg.Monitor.AbruptJerk,
		ModerateJerk: cfg.Monitor.ModerateJerk,
		PedalLevel:   cfg.Monitor.PedalLevel,
	})

	handle := m.Start()
	fmt.Printf("monitoring simulated telemetry in %s mode, Ctrl-C to stop\n", mode)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	handle.Stop()
}
