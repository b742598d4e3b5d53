// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/oxistat/pkg/config"
	"github.com/spf13/cobra"
)

var (
	configForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default settings",
	Long: `Write the default settings to the configuration file (~/.oxistat/config.yaml,
or the path given with --config).

Connection flags given on the command line are saved too, so

  oxistat config init --port /dev/ttyUSB0 --baud 9600

records the port for later commands. An existing file is kept unless
--force is given.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("# %s\n", cfg.Path())
		fmt.Printf("port: %s\n", portName)
		fmt.Printf("baud: %d\n", baudRate)
		fmt.Printf("url: %s\n", wsURL)
		fmt.Printf("username: %s\n", wsUsername)
		fmt.Printf("log_level: %s\n", cfg.LogLevel)
		format, err := cfg.Format()
		if err != nil {
			return err
		}
		fmt.Printf("data_format: %s\n", format)
		fmt.Printf("serial_attempt_timeout: %s\n", cfg.SerialAttemptTimeout)
		fmt.Printf("serial_timeout: %s\n", cfg.SerialTimeout)
		fmt.Printf("format_attempt_timeout: %s\n", cfg.FormatAttemptTimeout)
		fmt.Printf("format_nak_limit: %d\n", cfg.FormatNakLimit)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing configuration file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	// cfg already holds file values merged with any flags given
	cfg.Port = portName
	cfg.Baud = baudRate
	cfg.URL = wsURL
	cfg.Username = wsUsername
	cfg.NoSSLVerify = wsNoSSLVerify

	if err := cfg.Validate(); err != nil {
		return err
	}

	err := cfg.Persist(configForce)
	var exists config.ErrConfigFileExists
	if errors.As(err, &exists) {
		return fmt.Errorf("%w (use --force to overwrite)", err)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", cfg.Path())
	return nil
}
