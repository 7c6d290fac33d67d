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

package admin

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkPort returns one scripted chunk per Read, then times out with 0 bytes.
type chunkPort struct {
	chunks  []string
	written bytes.Buffer
	drains  int
}

func (p *chunkPort) Read(b []byte) (int, error) {
	if len(p.chunks) == 0 {
		return 0, nil
	}
	n := copy(b, p.chunks[0])
	p.chunks = p.chunks[1:]
	return n, nil
}

func (p *chunkPort) Write(b []byte) (int, error) { return p.written.Write(b) }
func (p *chunkPort) Drain() error                { p.drains++; return nil }
func (*chunkPort) Close() error                  { return nil }

func TestLines_Poll(t *testing.T) {
	t.Parallel()

	port := &chunkPort{chunks: []string{"sta", "tus\r\nallow li", "st\nhelp\n"}}
	lines := NewLines(port)

	line, ok, err := lines.Poll()
	require.NoError(t, err)
	assert.False(t, ok, "partial line")
	assert.Empty(t, line)

	line, ok, err = lines.Poll()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "status", line)

	line, ok, err = lines.Poll()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "allow list", line)

	line, ok, err = lines.Poll()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "help", line)

	_, ok, err = lines.Poll()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLines_TooLong(t *testing.T) {
	t.Parallel()

	port := &chunkPort{}
	for range 5 {
		port.chunks = append(port.chunks, strings.Repeat("x", 128))
	}
	port.chunks = append(port.chunks, "time\n")
	lines := NewLines(port)

	var sawErr bool
	for range 6 {
		line, ok, err := lines.Poll()
		if err != nil {
			assert.ErrorIs(t, err, ErrLineTooLong)
			sawErr = true
			continue
		}
		if ok {
			assert.Equal(t, "time", line)
		}
	}
	assert.True(t, sawErr)
}

func TestLines_WriteAndFlush(t *testing.T) {
	t.Parallel()

	port := &chunkPort{}
	lines := NewLines(port)
	require.NoError(t, lines.WriteLine("OK a\nb"))
	require.NoError(t, lines.Flush())

	assert.Equal(t, "OK a\r\nb\r\n", port.written.String())
	assert.Equal(t, 1, port.drains)
}
