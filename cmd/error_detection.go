// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/Thermoquad/oxistat/pkg/nonin"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze corrupted frames and anomalous readings",
	Long: `Track frame errors, lost synchronization and anomalous readings with statistics.

This command validates each packet and detects:
  - Checksum failures and resynchronization (discarded frames)
  - Impossible values (heart rate > 300, SpO2 > 100)
  - Missing values without a sensor alarm
  - Sensor alarms and low battery
  - Statistics and trends (packet rate, error rate)

Frame errors are ignored until the first complete packet, since joining a
stream mid-packet always discards a few frames.

By default, only errors are displayed. Use --show-all to display valid packets too.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all packets (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// Messages delivered from the reader goroutine
type syncMsg struct {
	skippedFrames int
}
type packetMsg struct {
	packet    *nonin.Packet
	anomalies []nonin.ValidationError
}
type frameErrorMsg struct {
	err *nonin.FrameError
}
type controlMsg struct {
	text string
}
type disconnectMsg struct {
	err error
}

// detectionListener feeds statistics and forwards events once the stream
// is synchronized. It runs on the device reader goroutine only.
type detectionListener struct {
	stats   *nonin.Statistics
	emit    func(tea.Msg)
	synced  bool
	skipped int
}

func (l *detectionListener) PacketReceived(p *nonin.Packet) {
	if !l.synced {
		l.synced = true
		l.emit(syncMsg{skippedFrames: l.skipped})
	}
	l.stats.PacketReceived(p)
	l.emit(packetMsg{packet: p, anomalies: nonin.ValidatePacket(p)})
}

func (l *detectionListener) FrameError(err *nonin.FrameError) {
	if !l.synced {
		l.skipped++
		return
	}
	l.stats.FrameError(err)
	l.emit(frameErrorMsg{err: err})
}

func (l *detectionListener) OperationReceived(op nonin.Operation) {
	l.stats.OperationReceived(op)
	l.emit(controlMsg{text: nonin.FormatOperation(op)})
}

func (l *detectionListener) AckReceived(ack bool) {
	l.stats.AckReceived(ack)
	l.emit(controlMsg{text: nonin.FormatAck(ack)})
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	if useTUI {
		return runTUIMode()
	}
	return runTextMode()
}

// printFrameError prints a frame error in highlighted format
func printFrameError(err *nonin.FrameError) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mFRAME ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  >>> FRAME DISCARDED <<<\n\n")
}

// printValidationErrors prints validation errors for a packet
func printValidationErrors(packet *nonin.Packet, errors []nonin.ValidationError) {
	timestamp := packet.Timestamp().Format("15:04:05.000")

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m status %s\n", timestamp, nonin.FormatStatus(packet.Status()))
	fmt.Printf("  Checksum: \033[1;32mOK\033[0m\n")

	for i, err := range errors {
		switch err.Type {
		case nonin.AnomalyHeartRateRange, nonin.AnomalySpO2Range:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
			if value, ok := err.Details["value"].(int); ok {
				if limit, ok := err.Details["max"].(int); ok {
					fmt.Printf("    %v=%d (max %d)\n", err.Details["field"], value, limit)
				}
			}

		case nonin.AnomalyMissingValue:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
			fmt.Printf("    heart_rate=%v, spo2=%v\n", err.Details["heart_rate"], err.Details["spo2"])

		case nonin.AnomalySensorAlarm, nonin.AnomalyLowBattery:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)

		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
	}

	fmt.Printf("  >>> PACKET FLAGGED <<<\n\n")
}

// runTUIMode runs error detection in TUI mode
func runTUIMode() error {
	stats := nonin.NewStatistics()
	listener := &detectionListener{stats: stats}

	dev, conn, connInfo, err := OpenDevice(nonin.WithListener(listener))
	if err != nil {
		return err
	}
	defer conn.Close()

	m := initialModel(connInfo, statsInterval, showAll, stats, dev.PacketsPerSecond)
	p := tea.NewProgram(m)
	listener.emit = p.Send

	dev.SetReady(true)
	go func() {
		p.Send(disconnectMsg{err: dev.Run()})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// runTextMode runs error detection in text mode
func runTextMode() error {
	events := make(chan tea.Msg, 64)
	stats := nonin.NewStatistics()
	listener := &detectionListener{stats: stats, emit: func(msg tea.Msg) { events <- msg }}

	dev, conn, connInfo, err := OpenDevice(nonin.WithListener(listener))
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Oxistat - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All packets\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	dev.SetReady(true)
	go func() {
		events <- disconnectMsg{err: dev.Run()}
	}()

	for {
		select {
		case event := <-events:
			switch msg := event.(type) {
			case syncMsg:
				if msg.skippedFrames > 0 {
					fmt.Printf("[SYNC] Synchronized after skipping %d frames\n\n", msg.skippedFrames)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}

			case packetMsg:
				if len(msg.anomalies) > 0 {
					printValidationErrors(msg.packet, msg.anomalies)
				} else if showAll {
					fmt.Print(nonin.FormatPacket(msg.packet))
				}

			case frameErrorMsg:
				printFrameError(msg.err)

			case controlMsg:
				// Always print control traffic (for debugging)
				fmt.Printf("[%s] \033[1;32mCONTROL:\033[0m %s\n\n", time.Now().Format("15:04:05.000"), msg.text)

			case disconnectMsg:
				fmt.Println()
				fmt.Print(stats.String())
				return msg.err
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
