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

package cachelock

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowSet_EmptyIsDefaultAllow(t *testing.T) {
	t.Parallel()
	s := NewAllowSet()

	assert.True(t, s.Recognize([]byte{0x04, 0x12, 0x34, 0x56}))
	assert.True(t, s.Recognize([]byte{0x04, 0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC}))
	assert.False(t, s.Recognize([]byte{0x04, 0x12}), "invalid length is never recognized")
	assert.False(t, s.Recognize(nil))
}

func TestAllowSet_ExactMatchOnceNonEmpty(t *testing.T) {
	t.Parallel()
	s := NewAllowSet()
	require.NoError(t, s.Add(" 04:12:34:56:78:9a:bc "))

	assert.True(t, s.Recognize([]byte{0x04, 0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC}))
	assert.False(t, s.Recognize([]byte{0x04, 0x12, 0x34, 0x56, 0x78, 0x9A, 0xBD}))
	assert.False(t, s.Recognize([]byte{0xDE, 0xAD, 0xBE, 0xEF}))

	assert.True(t, s.Contains("0412345678 9ABC"))
	assert.True(t, s.Contains("04-12-34-56-78-9a-bc"))
}

func TestAllowSet_AddDuplicateIsNoop(t *testing.T) {
	t.Parallel()
	s := NewAllowSet()
	require.NoError(t, s.Add("DEADBEEF"))
	require.NoError(t, s.Add("de ad be ef"))
	assert.Equal(t, 1, s.Len())
}

func TestAllowSet_FullDoesNotCorrupt(t *testing.T) {
	t.Parallel()
	s := NewAllowSet()
	for i := 0; i < AllowListCapacity; i++ {
		require.NoError(t, s.Add(fmt.Sprintf("%08X", i+1)))
	}
	before := s.List()

	err := s.Add("FFFFFFFF")
	require.ErrorIs(t, err, ErrAllowListFull)
	assert.Equal(t, before, s.List())
}

func TestAllowSet_RemoveAndClear(t *testing.T) {
	t.Parallel()
	s := NewAllowSet("DEADBEEF", "04123456789ABC")

	require.NoError(t, s.Remove("deadbeef"))
	assert.Equal(t, []string{"04123456789ABC"}, s.List())
	require.ErrorIs(t, s.Remove("DEADBEEF"), ErrUIDNotFound)

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.True(t, s.Recognize([]byte{1, 2, 3, 4}))
}

func TestNormalizeUID_Rejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not hex", raw: "XYZ12345"},
		{name: "odd digits", raw: "ABC"},
		{name: "wrong length", raw: "0102030405"},
		{name: "empty", raw: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NormalizeUID(tt.raw)
			require.ErrorIs(t, err, ErrInvalidUID)
		})
	}
}
