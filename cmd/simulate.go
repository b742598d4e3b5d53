// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/oxistat/pkg/nonin"
	"github.com/spf13/cobra"
)

var (
	simulateSerial   string
	simulateInterval time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Act as a simulated oximeter on the connection",
	Long: `Stream simulated measurement packets and answer control requests.

The simulator writes one packet per interval (three per second by default)
with a slowly varying heart rate and SpO2, answers get-serial requests with
the configured serial number, and ACKs set-format requests for format 7
(NAK for anything else).

Pair it with a virtual serial link, for example:
  socat -d -d pty,raw,echo=0 pty,raw,echo=0
  oxistat simulate --port /dev/pts/3 &
  oxistat raw_log --port /dev/pts/4`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simulateSerial, "serial-number", "SIM000001", "Serial number reported to get-serial requests")
	simulateCmd.Flags().DurationVar(&simulateInterval, "interval", time.Second/3, "Time between packets")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if len(simulateSerial) != nonin.SerialLength {
		return fmt.Errorf("serial number must be %d characters, got %q", nonin.SerialLength, simulateSerial)
	}
	if simulateInterval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Oxistat - Simulator\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Serial: %s, interval: %s\n", simulateSerial, simulateInterval)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	sim := nonin.NewSimulator(conn, simulateSerial, logger)
	sim.Interval = simulateInterval

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := sim.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
