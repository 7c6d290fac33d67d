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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-cachelock/internal/logging"
)

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	require.NoError(t, Default().Validate())
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cachelockd.yml")
	doc := `hardware:
  i2c_bus: "1"
  irq_pin: GPIO22
console:
  read_timeout: 25ms
time:
  servers: ["192.0.2.10:123"]
  dns: ["192.0.2.53:53"]
logging:
  level: debug
  json: true
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "1", cfg.Hardware.I2CBus)
	assert.Equal(t, "GPIO22", cfg.Hardware.IRQPin)
	assert.Equal(t, "GPIO17", cfg.Hardware.ResetPin)
	assert.Equal(t, uint16(0x24), cfg.Hardware.NFCAddress)
	assert.Equal(t, 25*time.Millisecond, cfg.Console.ReadTimeout)
	assert.Equal(t, 115200, cfg.Console.Baud)
	assert.Equal(t, []string{"192.0.2.10:123"}, cfg.Time.Servers)
	assert.Equal(t, "pool.ntp.org", cfg.Time.Host)
	assert.True(t, cfg.Logging.JSON)

	level, err := cfg.Logging.ParseLevel()
	require.NoError(t, err)
	assert.Equal(t, logging.LevelDebug, level)
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "bad yaml", doc: "hardware: [", wantErr: "failed to parse YAML"},
		{name: "address too wide", doc: "hardware:\n  nfc_address: 0x124\n", wantErr: "nfc_address"},
		{name: "zero baud", doc: "console:\n  baud: 0\n", wantErr: "console.baud"},
		{name: "no settings path", doc: "paths:\n  settings: \"\"\n", wantErr: "paths.settings"},
		{name: "no time source", doc: "time:\n  host: \"\"\n", wantErr: "time.host"},
		{name: "unknown level", doc: "logging:\n  level: loud\n", wantErr: "unknown log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_ConsoleDisabled(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte("console:\n  port: \"\"\n  baud: 0\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Console.Port)
}
