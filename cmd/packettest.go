// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/oxistat/pkg/nonin"
	"github.com/spf13/cobra"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid packet",
	Long: `Wait for a complete, valid measurement packet on the connection until timeout.

This command connects to a serial port or WebSocket and waits for the first
packet whose frames all pass their checksum. Frames received before the first
sync frame are skipped and counted.

Exit codes:
  0 - Packet received before timeout
  1 - Timeout reached without receiving a valid packet
  2 - Connection error

Useful for checking the cable, baud rate and data format of an oximeter.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a packet")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	packetChan := make(chan *nonin.Packet, 1)
	stats := nonin.NewStatistics()

	dev, conn, connInfo, err := OpenDevice(
		nonin.WithListener(stats),
		nonin.WithPacketHandler(func(p *nonin.Packet) {
			select {
			case packetChan <- p:
			default:
			}
		}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Oxistat - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid packet...\n\n")

	errChan := make(chan error, 1)
	dev.SetReady(true)
	go func() {
		errChan <- dev.Run()
	}()

	select {
	case packet := <-packetChan:
		if skipped := stats.Snapshot().FrameErrors(); skipped > 0 {
			fmt.Printf("(skipped %d frames before sync)\n", skipped)
		}
		hr, _ := packet.AvgHeartRateFourBeat()
		spo2, _ := packet.AvgSpO2FourBeat()
		fmt.Printf("SUCCESS: Received valid packet\n")
		fmt.Printf("  Status: %s\n", nonin.FormatStatus(packet.Status()))
		fmt.Printf("  Heart Rate: %d bpm\n", hr)
		fmt.Printf("  SpO2: %d%%\n", spo2)
		fmt.Printf("  Firmware: 0x%02X\n", packet.FirmwareRevision())
		os.Exit(0)

	case err := <-errChan:
		if err == nil {
			err = fmt.Errorf("connection closed")
		}
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid packet received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}
