// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Oxistat - Pulse Oximeter Serial Protocol Analyzer
//
// A CLI tool for monitoring, decoding and controlling Nonin-style pulse
// oximeters over a serial port or WebSocket bridge.

package main

import (
	"os"

	"github.com/Thermoquad/oxistat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
