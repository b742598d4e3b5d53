// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

import "fmt"

// AnomalyType represents different types of packet anomalies
type AnomalyType int

const (
	AnomalyHeartRateRange AnomalyType = iota
	AnomalySpO2Range
	AnomalyMissingValue
	AnomalySensorAlarm
	AnomalyLowBattery
)

// Physiological limits beyond which a reading is treated as corrupt
const (
	MaxHeartRate = 300
	MaxSpO2      = 100
)

// ValidationError represents a packet validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidatePacket checks a packet for impossible or missing values and
// device alarms. Returns a slice of validation errors (empty if the packet
// is valid)
func ValidatePacket(p *Packet) []ValidationError {
	errors := []ValidationError{}

	if p.status.IsSensorAlarm() {
		errors = append(errors, ValidationError{
			Type:    AnomalySensorAlarm,
			Message: "Sensor alarm (sensor detached or unusable signal)",
			Details: map[string]interface{}{"status": byte(p.status)},
		})
	}

	if p.IsLowBattery() {
		errors = append(errors, ValidationError{
			Type:    AnomalyLowBattery,
			Message: "Low battery",
			Details: map[string]interface{}{"stat2": p.stat2},
		})
	}

	heartRates := []struct {
		name  string
		value uint16
	}{
		{"heart_rate", p.heartRate},
		{"heart_rate_8", p.heartRate8},
		{"heart_rate_display", p.heartRateDisplay},
		{"heart_rate_8_display", p.heartRate8Display},
	}
	for _, hr := range heartRates {
		if hr.value != MissingHeartRate && hr.value > MaxHeartRate {
			errors = append(errors, ValidationError{
				Type:    AnomalyHeartRateRange,
				Message: fmt.Sprintf("Heart rate out of range: %s=%d (max %d)", hr.name, hr.value, MaxHeartRate),
				Details: map[string]interface{}{"field": hr.name, "value": int(hr.value), "max": MaxHeartRate},
			})
		}
	}

	saturations := []struct {
		name  string
		value byte
	}{
		{"spo2", p.spo2},
		{"spo2_display", p.spo2Display},
		{"spo2_fast", p.spo2Fast},
		{"spo2_beat_to_beat", p.spo2BeatToBeat},
		{"spo2_8", p.spo28},
		{"spo2_8_display", p.spo28Display},
	}
	for _, s := range saturations {
		if s.value != MissingSpO2 && s.value > MaxSpO2 {
			errors = append(errors, ValidationError{
				Type:    AnomalySpO2Range,
				Message: fmt.Sprintf("SpO2 out of range: %s=%d (max %d)", s.name, s.value, MaxSpO2),
				Details: map[string]interface{}{"field": s.name, "value": int(s.value), "max": MaxSpO2},
			})
		}
	}

	// Missing averages are expected during a sensor alarm
	if !p.status.IsSensorAlarm() && (p.heartRate == MissingHeartRate || p.spo2 == MissingSpO2) {
		errors = append(errors, ValidationError{
			Type:    AnomalyMissingValue,
			Message: "Missing heart rate or SpO2 without a sensor alarm",
			Details: map[string]interface{}{"heart_rate": int(p.heartRate), "spo2": int(p.spo2)},
		})
	}

	return errors
}
