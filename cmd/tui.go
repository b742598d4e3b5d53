// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/oxistat/pkg/nonin"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// TUI model
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	stats         *nonin.Statistics
	rate          func() float64
	spinner       spinner.Model
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	skippedFrames int
	startTime     time.Time
	width         int
	height        int
	quitting      bool
	disconnected  bool
	lastPacket    *nonin.Packet
}

// Messages
type tickMsg time.Time

// formatUptime formats a duration to a human-friendly string
func formatUptime(d time.Duration) string {
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialModel(connInfo string, statsInterval int, showAll bool, stats *nonin.Statistics, rate func() float64) model {
	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         stats,
		rate:          rate,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("11"))),
		),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		startTime:     time.Now(),
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.spinner.Tick,
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		if m.synchronized {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case syncMsg:
		m.synchronized = true
		m.skippedFrames = msg.skippedFrames
		if msg.skippedFrames > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d frames", msg.skippedFrames), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case packetMsg:
		m.lastPacket = msg.packet
		if len(msg.anomalies) > 0 {
			for _, err := range msg.anomalies {
				m.addLogEntry(err.Message, err.Type != nonin.AnomalyLowBattery)
			}
		} else if m.showAll {
			hr, _ := msg.packet.AvgHeartRateFourBeat()
			spo2, _ := msg.packet.AvgSpO2FourBeat()
			m.addLogEntry(fmt.Sprintf("HR=%d SpO2=%d (valid)", hr, spo2), false)
		}

	case frameErrorMsg:
		m.addLogEntry(fmt.Sprintf("FRAME ERROR: %v", msg.err), true)

	case controlMsg:
		m.addLogEntry(msg.text, false)

	case disconnectMsg:
		m.disconnected = true
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)
		} else {
			m.addLogEntry("Connection closed", true)
		}
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// vitalValue renders an optional reading, or dashes when it is missing
func vitalValue(v int, ok bool, unit string) string {
	if !ok {
		return "--"
	}
	return fmt.Sprintf("%d%s", v, unit)
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("OXISTAT - ERROR DETECTION"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All packets"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Up: %s | 'r' reset, 'q' quit",
		m.connInfo, mode, formatUptime(time.Since(m.startTime)))))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.disconnected:
		s.WriteString(errorStyle.Render("✗ Disconnected"))
	case !m.synchronized:
		s.WriteString(m.spinner.View())
		s.WriteString(warningStyle.Render(" Waiting for synchronization..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.skippedFrames > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d frames)", m.skippedFrames)))
		}
	}
	s.WriteString("\n\n")

	// Statistics
	c := m.stats.Snapshot()
	var anomalousPercent, errorPercent float64
	if c.Packets > 0 {
		anomalousPercent = float64(c.AnomalousPackets) * 100.0 / float64(c.Packets)
	}
	if total := c.Packets*nonin.FramesPerPacket + c.FrameErrors(); total > 0 {
		errorPercent = float64(c.FrameErrors()) * 100.0 / float64(total)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Packets:"), statsValueStyle.Render(fmt.Sprintf("%d", c.Packets)),
		statsLabelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d (%.1f%%)", c.AnomalousPackets, anomalousPercent)),
		statsLabelStyle.Render("Frame Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", c.FrameErrors(), errorPercent)),
	))

	if c.FrameErrors() > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Checksum:"), errorStyle.Render(fmt.Sprintf("%d", c.ChecksumErrors)),
			statsLabelStyle.Render("Resync:"), errorStyle.Render(fmt.Sprintf("%d", c.ResyncErrors)),
		))
	}

	if c.SensorAlarms > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Sensor Alarms:"), warningStyle.Render(fmt.Sprintf("%d", c.SensorAlarms)),
		))
	}

	if c.Operations > 0 || c.Acks > 0 || c.Naks > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Control:"),
			headerStyle.Render(fmt.Sprintf("%d ops, %d ACK, %d NAK", c.Operations, c.Acks, c.Naks)),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Packet Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f pkts/s", c.PacketRate)),
		statsLabelStyle.Render("Smoothed:"), statsValueStyle.Render(fmt.Sprintf("%.2f pkts/s", m.rate())),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if c.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", c.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", c.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Vitals section (only shown once a packet is received)
	if p := m.lastPacket; p != nil {
		s.WriteString(statsLabelStyle.Render("Latest Reading:"))
		s.WriteString("\n")

		vitals := strings.Builder{}

		hr, hrOK := p.AvgHeartRateFourBeat()
		spo2, spo2OK := p.AvgSpO2FourBeat()
		vitals.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Heart Rate:"), statsValueStyle.Render(vitalValue(hr, hrOK, " bpm")),
			statsLabelStyle.Render("SpO2:"), statsValueStyle.Render(vitalValue(spo2, spo2OK, "%")),
		))

		hr8, hr8OK := p.AvgHeartRateEightBeat()
		spo28, spo28OK := p.AvgSpO2EightBeat()
		b2b, b2bOK := p.SpO2BeatToBeat()
		vitals.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("HR 8-beat:"), statsValueStyle.Render(vitalValue(hr8, hr8OK, " bpm")),
			statsLabelStyle.Render("SpO2 8-beat:"), statsValueStyle.Render(vitalValue(spo28, spo28OK, "%")),
			statsLabelStyle.Render("Beat-to-beat:"), statsValueStyle.Render(vitalValue(b2b, b2bOK, "%")),
		))

		status := p.Status()
		statusStyle := statsValueStyle
		if status.IsSensorAlarm() || status.IsSensorDisconnect() {
			statusStyle = errorStyle
		} else if status.IsArtifact() || status.IsOutOfTrack() {
			statusStyle = warningStyle
		}
		vitals.WriteString(fmt.Sprintf("%s %s   %s 0x%02X   %s %d\n",
			statsLabelStyle.Render("Status:"), statusStyle.Render(nonin.FormatStatus(status)),
			statsLabelStyle.Render("Firmware:"), p.FirmwareRevision(),
			statsLabelStyle.Render("Timer:"), p.Timer(),
		))

		if p.IsLowBattery() {
			vitals.WriteString(warningStyle.Render("Low battery"))
			vitals.WriteString("\n")
		}

		s.WriteString(boxStyle.Render(strings.TrimSuffix(vitals.String(), "\n")))
		s.WriteString("\n\n")
	}

	// Error log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 20 // Reserve space for header, stats and vitals
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
