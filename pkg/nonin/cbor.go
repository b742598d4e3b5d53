// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// PacketRecord is the CBOR form of a packet for downstream consumers.
// Integer keys keep records compact; absent readings are omitted.
type PacketRecord struct {
	Timestamp int64  `cbor:"0,keyasint"` // unix milliseconds
	Status    byte   `cbor:"1,keyasint"`
	Stat2     byte   `cbor:"2,keyasint"`
	Firmware  byte   `cbor:"3,keyasint"`
	Timer     uint16 `cbor:"4,keyasint"`

	HeartRate         *int `cbor:"5,keyasint,omitempty"`
	HeartRate8        *int `cbor:"6,keyasint,omitempty"`
	HeartRateDisplay  *int `cbor:"7,keyasint,omitempty"`
	HeartRate8Display *int `cbor:"8,keyasint,omitempty"`

	SpO2           *int `cbor:"9,keyasint,omitempty"`
	SpO2Fast       *int `cbor:"10,keyasint,omitempty"`
	SpO2BeatToBeat *int `cbor:"11,keyasint,omitempty"`
	SpO28          *int `cbor:"12,keyasint,omitempty"`
	SpO2Display    *int `cbor:"13,keyasint,omitempty"`
	SpO28Display   *int `cbor:"14,keyasint,omitempty"`

	Pleth []uint16 `cbor:"15,keyasint,omitempty"`
}

func optional(v int, ok bool) *int {
	if !ok {
		return nil
	}
	return &v
}

// NewPacketRecord converts a packet to its record form
func NewPacketRecord(p *Packet) PacketRecord {
	return PacketRecord{
		Timestamp:         p.timestamp.UnixMilli(),
		Status:            byte(p.status),
		Stat2:             p.stat2,
		Firmware:          p.firmwareRevision,
		Timer:             p.timer,
		HeartRate:         optional(p.AvgHeartRateFourBeat()),
		HeartRate8:        optional(p.AvgHeartRateEightBeat()),
		HeartRateDisplay:  optional(p.AvgHeartRateFourBeatForDisplay()),
		HeartRate8Display: optional(p.AvgHeartRateEightBeatForDisplay()),
		SpO2:              optional(p.AvgSpO2FourBeat()),
		SpO2Fast:          optional(p.AvgSpO2FourBeatFast()),
		SpO2BeatToBeat:    optional(p.SpO2BeatToBeat()),
		SpO28:             optional(p.AvgSpO2EightBeat()),
		SpO2Display:       optional(p.AvgSpO2FourBeatForDisplay()),
		SpO28Display:      optional(p.AvgSpO2EightBeatForDisplay()),
		Pleth:             p.Pleth(),
	}
}

// EncodePacketCBOR encodes a packet as a CBOR record
func EncodePacketCBOR(p *Packet) ([]byte, error) {
	data, err := cbor.Marshal(NewPacketRecord(p))
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR record: %w", err)
	}
	return data, nil
}

// DecodePacketRecord decodes a CBOR record produced by EncodePacketCBOR
func DecodePacketRecord(data []byte) (PacketRecord, error) {
	var rec PacketRecord
	if len(data) == 0 {
		return rec, fmt.Errorf("empty CBOR record")
	}
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to decode CBOR record: %w", err)
	}
	return rec, nil
}
