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

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_ComponentAttribute(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Level: LevelInfo, JSON: true})

	l.WithComponent("power").Info("entering sleep", "variant", "night")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "power", entry["component"])
	assert.Equal(t, "night", entry["variant"])
	assert.Equal(t, "entering sleep", entry["msg"])
}

func TestLogger_LevelSharedWithChildren(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Level: LevelInfo})
	child := l.WithComponent("nfc")

	child.Debug("hidden")
	assert.Empty(t, buf.String())

	l.SetLevel(LevelDebug)
	child.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	l := Discard()
	l.Error("nothing")
	assert.False(t, l.Enabled(context.Background(), LevelError))
}
