// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

var (
	portsUSBOnly bool
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List the serial ports on this machine.

USB adapters are shown with their vendor and product IDs and serial number,
which helps tell an oximeter cradle apart from other adapters.`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
	portsCmd.Flags().BoolVar(&portsUSBOnly, "usb", false, "Only list USB serial ports")
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}

	found := 0
	for _, port := range ports {
		if portsUSBOnly && !port.IsUSB {
			continue
		}
		found++

		if !port.IsUSB {
			fmt.Printf("%s\n", port.Name)
			continue
		}
		fmt.Printf("%s  USB %s:%s", port.Name, port.VID, port.PID)
		if port.Product != "" {
			fmt.Printf("  %s", port.Product)
		}
		if port.SerialNumber != "" {
			fmt.Printf("  (serial %s)", port.SerialNumber)
		}
		fmt.Println()
	}

	if found == 0 {
		fmt.Println("No serial ports found")
	}
	return nil
}
