package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/motion-control/mcc/internal/actuator"
	"github.com/motion-control/mcc/internal/config"
)

var controlDevice string

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Drive a motor interactively over its serial port",
	Long: `Opens the given serial device and reads commands from stdin:

  <speed>,<angle>   send a structured command (speed 0-255, angle 0-180)
  f | b             send a manual forward/backward token
  test              send the neutral command and report the result
  read              wait briefly for a controller response line
  quit              disconnect and exit`,
	Run: func(cmd *cobra.Command, args []string) {
		runControl()
	},
}

func init() {
	controlCmd.Flags().StringVar(&controlDevice, "device", "", "serial device, e.g. /dev/ttyUSB0")
	_ = controlCmd.MarkFlagRequired("device")
	rootCmd.AddCommand(controlCmd)
}

func runControl() {
	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	link := actuator.NewLink(controlDevice, actuator.LinkConfig{
		BaudRate:    cfg.Serial.BaudRate,
		ReadTimeout: cfg.Serial.ReadTimeout,
		SettleDelay: cfg.Serial.SettleDelay,
	})

	fmt.Printf("connecting to %s (controller settles for %s)...\n", controlDevice, cfg.Serial.SettleDelay)
	if err := link.Connect(); err != nil {
		logrus.WithError(err).Fatal("failed to connect")
	}
	defer link.Disconnect()
	fmt.Println("connected, type commands (quit to exit)")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "quit" || line == "exit":
			return
		case line == "test":
			if link.TestConnection() {
				fmt.Println("controller responding")
			} else {
				fmt.Println("test transmit failed")
			}
		case line == "read":
			if resp, ok := link.ReadResponse(2 * time.Second); ok {
				fmt.Printf("<< %s\n", resp)
			} else {
				fmt.Println("no response")
			}
		case line == "f" || line == "b":
			if err := link.SendManual(line[0]); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		default:
			var speed, angle int
			if _, err := fmt.Sscanf(line, "%d,%d", &speed, &angle); err != nil {
				fmt.Println("unrecognized command, expected <speed>,<angle>")
				continue
			}
			if err := link.SendCommand(speed, angle); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		}
	}
}
