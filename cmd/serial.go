// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/Thermoquad/oxistat/pkg/nonin"
	"github.com/spf13/cobra"
)

var serialCmd = &cobra.Command{
	Use:   "serial",
	Short: "Read the oximeter serial number",
	Long: `Request the device serial number, retrying until it answers.

Each request waits for a reply before it is resent. The command gives up
after the overall serial timeout (device.serial_timeout in the config file,
10 seconds by default).

Exit codes:
  0 - Serial number received
  1 - No reply before the timeout
  2 - Connection error`,
	RunE: runSerial,
}

func init() {
	rootCmd.AddCommand(serialCmd)
}

func runSerial(cmd *cobra.Command, args []string) error {
	dev, conn, connInfo, err := OpenDevice()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Oxistat - Serial Number\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	go runDevice(dev)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	serial, err := dev.FetchSerial(ctx)
	switch {
	case errors.Is(err, nonin.ErrNoReply):
		fmt.Fprintf(os.Stderr, "TIMEOUT: %v\n", err)
		os.Exit(1)
	case err != nil:
		return err
	}

	fmt.Printf("Serial: %s\n", serial)
	return nil
}
