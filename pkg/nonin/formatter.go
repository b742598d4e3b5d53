// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

import (
	"fmt"
	"strings"
)

// FormatPacket formats a packet into a human-readable string
func FormatPacket(p *Packet) string {
	timestamp := p.timestamp.Format("15:04:05.000")

	hr, hrOK := p.AvgHeartRateFourBeat()
	spo2, spo2OK := p.AvgSpO2FourBeat()
	result := fmt.Sprintf("[%s] PACKET HR=%s SpO2=%s status=%s\n",
		timestamp, formatValue(hr, hrOK), formatValue(spo2, spo2OK), FormatStatus(p.status))

	hr8, hr8OK := p.AvgHeartRateEightBeat()
	hrD, hrDOK := p.AvgHeartRateFourBeatForDisplay()
	hr8D, hr8DOK := p.AvgHeartRateEightBeatForDisplay()
	result += fmt.Sprintf("  Heart Rate: 4-beat=%s 8-beat=%s display=%s/%s\n",
		formatValue(hr, hrOK), formatValue(hr8, hr8OK), formatValue(hrD, hrDOK), formatValue(hr8D, hr8DOK))

	fast, fastOK := p.AvgSpO2FourBeatFast()
	b2b, b2bOK := p.SpO2BeatToBeat()
	spo28, spo28OK := p.AvgSpO2EightBeat()
	spo2D, spo2DOK := p.AvgSpO2FourBeatForDisplay()
	spo28D, spo28DOK := p.AvgSpO2EightBeatForDisplay()
	result += fmt.Sprintf("  SpO2: 4-beat=%s fast=%s beat-to-beat=%s 8-beat=%s display=%s/%s\n",
		formatValue(spo2, spo2OK), formatValue(fast, fastOK), formatValue(b2b, b2bOK),
		formatValue(spo28, spo28OK), formatValue(spo2D, spo2DOK), formatValue(spo28D, spo28DOK))

	result += fmt.Sprintf("  Firmware: 0x%02X  Timer: %d  SmartPoint: %t  Low Battery: %t\n",
		p.firmwareRevision, p.timer, p.IsSmartPoint(), p.IsLowBattery())

	return result
}

// FormatStatus lists the flags set in a status byte
func FormatStatus(s Status) string {
	flags := []string{}
	if s.IsSync() {
		flags = append(flags, "SYNC")
	}
	if s.IsSensorDisconnect() {
		flags = append(flags, "SNSD")
	}
	if s.IsArtifact() {
		flags = append(flags, "ARTF")
	}
	if s.IsOutOfTrack() {
		flags = append(flags, "OOT")
	}
	if s.IsSensorAlarm() {
		flags = append(flags, "SNSA")
	}
	switch {
	case s.IsGreenPerfusion():
		flags = append(flags, "GPRF")
	case s.IsRedPerfusion():
		flags = append(flags, "RPRF")
	case s.IsYellowPerfusion():
		flags = append(flags, "YPRF")
	}
	return "[" + strings.Join(flags, " ") + "]"
}

// FormatOpcode returns the human-readable name for an operation opcode
func FormatOpcode(opcode byte) string {
	switch opcode {
	case OpSetFormat:
		return "SET_FORMAT"
	case OpGetSerial:
		return "GET_SERIAL"
	case OpRecvSerial:
		return "SERIAL_REPLY"
	default:
		return "UNKNOWN"
	}
}

// FormatOperation formats a control operation into a human-readable string
func FormatOperation(op Operation) string {
	result := fmt.Sprintf("OPERATION %s (0x%02X) len=%d", FormatOpcode(op.Opcode), op.Opcode, len(op.Payload))
	if serial, ok := ParseSerial(op); ok {
		return result + fmt.Sprintf(" serial=%q", serial)
	}
	if len(op.Payload) > 0 {
		result += fmt.Sprintf(" payload=[% X]", op.Payload)
	}
	return result
}

// FormatAck formats an ACK/NAK control byte
func FormatAck(ack bool) string {
	if ack {
		return "ACK"
	}
	return "NAK"
}

func formatValue(v int, ok bool) string {
	if !ok {
		return "--"
	}
	return fmt.Sprintf("%d", v)
}
