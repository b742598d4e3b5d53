// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/oxistat/pkg/config"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	configPath string
	logLevel   string

	cfg    *config.Config
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "oxistat",
	Short: "Pulse Oximeter Serial Protocol Analyzer",
	Long: `Oxistat - A CLI tool for monitoring and controlling Nonin-style pulse oximeters.

Decodes the Format 7 measurement stream (heart rate, SpO2, perfusion and
sensor status, pleth waveform), reports frame errors and resynchronization,
and drives the control channel (serial number query, data format selection).

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]

Defaults for every flag can be kept in ~/.oxistat/config.yaml (see
"oxistat config init"). Flags given on the command line win.

For WebSocket authentication, the password is read from the OXISTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", config.DefaultBaudRate, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "Config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: error, warn, info, debug (default from config)")
}

// loadConfig reads the config file and fills every flag the user did not set
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = c

	flags := cmd.Flags()
	if !flags.Changed("port") && c.SerialConfig != nil && c.Port != "" {
		portName = c.Port
	}
	if !flags.Changed("baud") && c.SerialConfig != nil {
		baudRate = c.Baud
	}
	if c.WebSocketConfig != nil {
		if !flags.Changed("url") && c.URL != "" {
			wsURL = c.URL
		}
		if !flags.Changed("username") && c.Username != "" {
			wsUsername = c.Username
		}
		if !flags.Changed("no-ssl-verify") {
			wsNoSSLVerify = c.NoSSLVerify
		}
	}
	if flags.Changed("log-level") {
		c.LogLevel = logLevel
	}

	level, err := c.Level()
	if err != nil {
		return err
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
