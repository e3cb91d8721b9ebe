package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "mcc",
	Short: "Motor control container: serial actuator control driven by telemetry",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logLevel == "" {
			return
		}
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to mcc.yaml (default: ./mcc.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log verbosity (overrides config)")
}
