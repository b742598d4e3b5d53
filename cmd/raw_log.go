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
	rawLogOutput string
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display decoded packets as they arrive",
	Long: `Continuously decode and display pulse oximeter packets as they arrive.

Text output shows each packet with its timestamp, vitals, status flags and
pleth samples, along with control replies and frame errors.

CBOR output writes one record per packet to stdout as a CBOR sequence,
suitable for piping into another tool. Diagnostics go to stderr.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().StringVarP(&rawLogOutput, "output", "o", "text", "Output format: text or cbor")
}

// rawLogListener prints every decoder event in text mode
type rawLogListener struct{}

func (rawLogListener) PacketReceived(p *nonin.Packet) {
	fmt.Print(nonin.FormatPacket(p))
}

func (rawLogListener) OperationReceived(op nonin.Operation) {
	fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), nonin.FormatOperation(op))
}

func (rawLogListener) AckReceived(ack bool) {
	fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), nonin.FormatAck(ack))
}

func (rawLogListener) FrameError(err *nonin.FrameError) {
	fmt.Printf("[ERROR] %v\n", err)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	var opt nonin.Option
	switch rawLogOutput {
	case "text":
		opt = nonin.WithListener(rawLogListener{})
	case "cbor":
		opt = nonin.WithPacketHandler(func(p *nonin.Packet) {
			data, err := nonin.EncodePacketCBOR(p)
			if err != nil {
				logger.Error().Err(err).Msg("failed to encode packet")
				return
			}
			if _, err := os.Stdout.Write(data); err != nil {
				logger.Error().Err(err).Msg("failed to write packet")
			}
		})
	default:
		return fmt.Errorf("unknown output format %q (use text or cbor)", rawLogOutput)
	}

	dev, conn, connInfo, err := OpenDevice(opt)
	if err != nil {
		return err
	}
	defer conn.Close()

	if rawLogOutput == "text" {
		fmt.Printf("Oxistat - Raw Packet Log\n")
		fmt.Printf("Connection: %s\n", connInfo)
		fmt.Printf("Press Ctrl+C to exit\n\n")
	} else {
		logger.Info().Str("connection", connInfo).Msg("writing CBOR packet records to stdout")
	}

	dev.SetReady(true)
	return runDevice(dev)
}
