// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads and persists the oxistat configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"github.com/Thermoquad/oxistat/pkg/nonin"
)

const (
	ConfigDir  = ".oxistat"
	ConfigFile = "config.yaml"

	DefaultBaudRate             = 9600
	DefaultLogLevel             = "warn"
	DefaultDataFormat           = "onyx"
	DefaultSerialAttemptTimeout = 2 * time.Second
	DefaultSerialTimeout        = 10 * time.Second
	DefaultFormatAttemptTimeout = 5 * time.Second
	DefaultFormatNakLimit       = 3
)

// ErrConfigFileExists is returned by Persist when it would overwrite a file
type ErrConfigFileExists struct {
	Path string
}

func (e ErrConfigFileExists) Error() string {
	return fmt.Sprintf("config file %s already exists", e.Path)
}

type SerialConfig struct {
	Port string `yaml:"port,omitempty"`
	Baud int    `yaml:"baud"`
}

type WebSocketConfig struct {
	URL         string `yaml:"url,omitempty"`
	Username    string `yaml:"username,omitempty"`
	NoSSLVerify bool   `yaml:"no_ssl_verify,omitempty"`
}

// DeviceConfig holds the control channel settings
type DeviceConfig struct {
	DataFormat           string        `yaml:"data_format"`
	SerialAttemptTimeout time.Duration `yaml:"serial_attempt_timeout"`
	SerialTimeout        time.Duration `yaml:"serial_timeout"`
	FormatAttemptTimeout time.Duration `yaml:"format_attempt_timeout"`
	FormatNakLimit       int           `yaml:"format_nak_limit"`
}

type Config struct {
	*SerialConfig    `yaml:"serial,omitempty"`
	*WebSocketConfig `yaml:"websocket,omitempty"`
	*DeviceConfig    `yaml:"device,omitempty"`
	LogLevel         string `yaml:"log_level"`

	filepath string
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return filepath.Join(home, ConfigDir, ConfigFile)
}

func NewDefaultConfig() *Config {
	return &Config{
		SerialConfig: &SerialConfig{
			Baud: DefaultBaudRate,
		},
		WebSocketConfig: &WebSocketConfig{},
		DeviceConfig: &DeviceConfig{
			DataFormat:           DefaultDataFormat,
			SerialAttemptTimeout: DefaultSerialAttemptTimeout,
			SerialTimeout:        DefaultSerialTimeout,
			FormatAttemptTimeout: DefaultFormatAttemptTimeout,
			FormatNakLimit:       DefaultFormatNakLimit,
		},
		LogLevel: DefaultLogLevel,
		filepath: DefaultConfigPath(),
	}
}

// Load reads the config file at path over the defaults. A missing file is
// not an error: the defaults are returned.
func Load(path string) (*Config, error) {
	c := NewDefaultConfig()
	if path != "" {
		c.filepath = path
	}
	if err := c.LoadConfig(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, err
	}
	c.fillSections()
	return c, c.Validate()
}

// fillSections restores sections a file left empty, e.g. "device:" with no keys
func (c *Config) fillSections() {
	def := NewDefaultConfig()
	if c.SerialConfig == nil {
		c.SerialConfig = def.SerialConfig
	}
	if c.WebSocketConfig == nil {
		c.WebSocketConfig = def.WebSocketConfig
	}
	if c.DeviceConfig == nil {
		c.DeviceConfig = def.DeviceConfig
	}
}

func (c *Config) Path() string {
	return c.filepath
}

func (c *Config) LoadConfig() error {
	data, err := os.ReadFile(c.filepath)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", c.filepath, err)
	}
	return nil
}

func (c *Config) Persist(overwrite bool) error {
	if _, err := os.Stat(c.filepath); err == nil && !overwrite {
		return ErrConfigFileExists{Path: c.filepath}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.filepath), 0755); err != nil {
		return err
	}
	return os.WriteFile(c.filepath, data, 0644)
}

// Validate checks values a hand-edited file may get wrong
func (c *Config) Validate() error {
	if c.SerialConfig != nil && c.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.Baud)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.DeviceConfig != nil {
		if _, err := c.Format(); err != nil {
			return err
		}
	}
	return nil
}

// Level returns the configured log level
func (c *Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Format returns the configured set-format request
func (c *Config) Format() (nonin.DataFormat, error) {
	if c.DeviceConfig == nil || c.DataFormat == "" {
		return nonin.OnyxFormat, nil
	}
	return nonin.ParseDataFormat(c.DataFormat)
}

// DeviceOptions converts the control channel settings to device options
func (c *Config) DeviceOptions() []nonin.Option {
	if c.DeviceConfig == nil {
		return nil
	}
	return []nonin.Option{
		nonin.WithSerialTimeouts(c.SerialAttemptTimeout, c.SerialTimeout),
		nonin.WithFormatTimeout(c.FormatAttemptTimeout),
		nonin.WithFormatNakLimit(c.FormatNakLimit),
	}
}
