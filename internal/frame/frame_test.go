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

package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	t.Parallel()

	got, err := Build(0x02, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD4, 0x02, 0x2A, 0x00}, got)

	_, err = Build(0x40, make([]byte, 254))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestParse(t *testing.T) {
	t.Parallel()

	firmware := Response(0x03, []byte{0x32, 0x01, 0x06, 0x07})

	tests := []struct {
		wantErr error
		name    string
		buf     []byte
		want    []byte
	}{
		{name: "plain response", buf: firmware, want: []byte{0x03, 0x32, 0x01, 0x06, 0x07}},
		{
			name: "i2c status byte and trailing padding",
			buf:  append(append([]byte{0x01}, firmware...), 0x00, 0x00, 0x00),
			want: []byte{0x03, 0x32, 0x01, 0x06, 0x07},
		},
		{
			name: "ack ahead of response",
			buf:  append(append([]byte{}, AckFrame...), firmware...),
			want: []byte{0x03, 0x32, 0x01, 0x06, 0x07},
		},
		{name: "no start code", buf: []byte{0x01, 0x02, 0x03}, wantErr: ErrNoStart},
		{name: "truncated", buf: firmware[:7], wantErr: ErrTruncated},
		{name: "bad length checksum", buf: []byte{0x00, 0x00, 0xFF, 0x03, 0x00, 0xD5, 0x03}, wantErr: ErrLengthChecksum},
		{name: "bad data checksum", buf: corrupt(firmware, len(firmware)-2), wantErr: ErrDataChecksum},
		{name: "syntax error frame", buf: []byte{0x00, 0x00, 0xFF, 0x01, 0xFF, 0x7F, 0x81, 0x00}, wantErr: ErrApplicationLevel},
		{
			name:    "host frame echoed",
			buf:     mustBuild(t, 0x02),
			wantErr: ErrUnexpectedTFI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.buf)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAckNack(t *testing.T) {
	t.Parallel()

	assert.True(t, IsAck(AckFrame))
	assert.True(t, IsAck(append([]byte{0x01}, AckFrame...)))
	assert.False(t, IsAck(NackFrame))
	assert.True(t, IsNack(NackFrame))
	assert.False(t, IsAck([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}))
}

func corrupt(buf []byte, i int) []byte {
	out := append([]byte{}, buf...)
	out[i]++
	return out
}

func mustBuild(t *testing.T, cmd byte) []byte {
	t.Helper()
	b, err := Build(cmd, nil)
	require.NoError(t, err)
	return b
}
