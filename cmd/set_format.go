// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/Thermoquad/oxistat/pkg/nonin"
	"github.com/spf13/cobra"
)

var (
	formatSpotCheck bool
	formatBluetooth bool
	formatFlagged   bool
)

var setFormatCmd = &cobra.Command{
	Use:   "set_format [format]",
	Short: "Switch the oximeter to a data format",
	Long: `Send a set-format request and wait for the device to ACK or NAK it.

The format is a name (onyx, wristox) or a numeric format code such as 7 or
0x02. Without an argument the device.data_format config value is used.

The flagged request (--flagged, or implied by --spot-check and --bluetooth)
additionally sets the spot-check and bluetooth-at-power-on option bits.

A request without an answer is resent until the device responds. Press
Ctrl+C to give up.

Exit codes:
  0 - Format accepted (ACK)
  1 - Format rejected (NAK)
  2 - Connection error`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSetFormat,
}

func init() {
	rootCmd.AddCommand(setFormatCmd)
	setFormatCmd.Flags().BoolVar(&formatFlagged, "flagged", false, "Send the flagged request with option bits")
	setFormatCmd.Flags().BoolVar(&formatSpotCheck, "spot-check", false, "Enable spot-check mode (flagged request)")
	setFormatCmd.Flags().BoolVar(&formatBluetooth, "bluetooth", false, "Enable bluetooth at power on (flagged request)")
}

// resolveFormat picks the requested data format from the argument, the
// config file and the option flags
func resolveFormat(args []string) (nonin.DataFormat, error) {
	var format nonin.DataFormat
	var err error
	if len(args) > 0 {
		format, err = nonin.ParseDataFormat(args[0])
	} else {
		format, err = cfg.Format()
	}
	if err != nil {
		return nonin.DataFormat{}, err
	}

	if formatFlagged || formatSpotCheck || formatBluetooth {
		format = nonin.FlaggedFormat(format.Code, formatSpotCheck, formatBluetooth)
	}
	return format, nil
}

func runSetFormat(cmd *cobra.Command, args []string) error {
	format, err := resolveFormat(args)
	if err != nil {
		return err
	}

	dev, conn, connInfo, err := OpenDevice()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Oxistat - Set Data Format\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Format: %s\n", format)
	fmt.Printf("Command: % X\n\n", format.Command())

	go runDevice(dev)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	accepted, err := dev.SetDataFormat(ctx, format)
	if err != nil {
		return err
	}

	if !accepted {
		fmt.Fprintf(os.Stderr, "REJECTED: device answered NAK\n")
		os.Exit(1)
	}

	fmt.Printf("ACCEPTED: device answered ACK\n")
	return nil
}
