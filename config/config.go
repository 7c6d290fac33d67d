// go-cachelock
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-cachelock.
//
// go-cachelock is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-cachelock is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-cachelock; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package config loads the daemon's YAML configuration: hardware wiring,
// file paths, time servers and logging. Device behavior settings are not
// here; they live in the settings store and change at runtime.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ZaparooProject/go-cachelock/internal/logging"
)

// DefaultPath is where cachelockd looks for its configuration.
const DefaultPath = "/etc/cachelock/cachelockd.yml"

var ErrInvalid = errors.New("invalid configuration")

// Config is the top-level cachelockd.yml document.
type Config struct {
	Hardware Hardware `yaml:"hardware"`
	Console  Console  `yaml:"console"`
	Paths    Paths    `yaml:"paths"`
	Time     Time     `yaml:"time"`
	Power    Power    `yaml:"power"`
	Logging  Logging  `yaml:"logging"`
}

// Hardware names the bus and pins the peripherals are wired to. Names are
// resolved through the host's registries; an empty bus picks the first one.
type Hardware struct {
	I2CBus     string `yaml:"i2c_bus"`
	ResetPin   string `yaml:"reset_pin"`
	IRQPin     string `yaml:"irq_pin"`
	NFCAddress uint16 `yaml:"nfc_address"`
	Contrast   uint8  `yaml:"contrast"`
}

// Console is the operator serial port. An empty port disables the console.
type Console struct {
	Port        string        `yaml:"port"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// Paths are the on-disk locations of persistent state.
type Paths struct {
	Settings string `yaml:"settings"`
	Retained string `yaml:"retained"`
}

// Time configures network time sync.
type Time struct {
	Host      string   `yaml:"host"`
	Servers   []string `yaml:"servers,omitempty"`
	DNS       []string `yaml:"dns,omitempty"`
	Interface string   `yaml:"interface"`
}

// Power configures how the host sleeps.
type Power struct {
	SystemSuspend bool   `yaml:"system_suspend"`
	WakeAlarm     string `yaml:"wake_alarm,omitempty"`
	PowerState    string `yaml:"power_state,omitempty"`
}

// Logging configures the process logger.
type Logging struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration for the reference wiring.
func Default() *Config {
	return &Config{
		Hardware: Hardware{
			ResetPin:   "GPIO17",
			IRQPin:     "GPIO27",
			NFCAddress: 0x24,
			Contrast:   0x7F,
		},
		Console: Console{
			Port:        "/dev/ttyS0",
			Baud:        115200,
			ReadTimeout: 10 * time.Millisecond,
		},
		Paths: Paths{
			Settings: "/var/lib/cachelock/settings.db",
			Retained: "/var/lib/cachelock/retained.bin",
		},
		Time: Time{
			Host:      "pool.ntp.org",
			Interface: "wlan0",
		},
		Logging: Logging{Level: "info"},
	}
}

// Load reads path over Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the daemon cannot start without.
func (c *Config) Validate() error {
	if c.Hardware.NFCAddress == 0 || c.Hardware.NFCAddress > 0x7F {
		return fmt.Errorf("%w: hardware.nfc_address %#x is not a 7-bit address", ErrInvalid, c.Hardware.NFCAddress)
	}
	if c.Console.Port != "" && c.Console.Baud <= 0 {
		return fmt.Errorf("%w: console.baud must be positive", ErrInvalid)
	}
	if c.Console.ReadTimeout < 0 {
		return fmt.Errorf("%w: console.read_timeout must not be negative", ErrInvalid)
	}
	if c.Paths.Settings == "" {
		return fmt.Errorf("%w: paths.settings is required", ErrInvalid)
	}
	if c.Paths.Retained == "" {
		return fmt.Errorf("%w: paths.retained is required", ErrInvalid)
	}
	if c.Time.Host == "" && len(c.Time.Servers) == 0 {
		return fmt.Errorf("%w: time.host or time.servers is required", ErrInvalid)
	}
	if _, err := c.Logging.ParseLevel(); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps the level name to a logging level.
func (l Logging) ParseLevel() (logging.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return logging.LevelDebug, nil
	case "", "info":
		return logging.LevelInfo, nil
	case "warn", "warning":
		return logging.LevelWarn, nil
	case "error":
		return logging.LevelError, nil
	default:
		return logging.LevelInfo, fmt.Errorf("%w: unknown log level %q", ErrInvalid, l.Level)
	}
}

// Logger builds the process logger.
func (l Logging) Logger() *logging.Logger {
	level, err := l.ParseLevel()
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.New(logging.Config{
		Output: os.Stderr,
		Level:  level,
		JSON:   l.JSON,
	})
}
