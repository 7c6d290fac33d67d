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

// Package pn532sim simulates a PN532 on an I2C connection, with NTAG2xx
// tags that can be placed on and lifted from the reader.
package pn532sim

import (
	"fmt"
	"sync"

	"github.com/hsanjuan/go-ndef"
)

const (
	pageSize      = 4
	ntag213Pages  = 45
	userStartPage = 4
	userEndPage   = 39
)

// Sample UIDs.
var (
	NTAG213UID = []byte{0x04, 0xAB, 0xCD, 0xEF, 0x12, 0x34, 0x56}
	ShortUID   = []byte{0x12, 0x34, 0x56, 0x78}
)

// Tag is an NTAG213 in memory.
type Tag struct {
	UID   []byte
	pages [ntag213Pages][pageSize]byte
	mu    sync.Mutex
}

// NewTag creates a blank NTAG213 with a capability container. A nil uid
// uses NTAG213UID.
func NewTag(uid []byte) *Tag {
	if uid == nil {
		uid = NTAG213UID
	}
	t := &Tag{UID: append([]byte(nil), uid...)}
	copy(t.pages[0][:], uid)
	if len(uid) > 4 {
		copy(t.pages[1][:], uid[3:])
	}
	t.pages[3] = [pageSize]byte{0xE1, 0x10, 0x12, 0x00}
	// empty NDEF TLV then terminator
	t.pages[userStartPage] = [pageSize]byte{0x03, 0x00, 0xFE, 0x00}
	return t
}

// NewTextTag creates a tag whose NDEF message is one text record.
func NewTextTag(uid []byte, text string) *Tag {
	t := NewTag(uid)
	if err := t.SetText(text); err != nil {
		panic(err)
	}
	return t
}

// SetText writes an NDEF message holding one English text record.
func (t *Tag) SetText(s string) error {
	raw, err := ndef.NewTextMessage(s, "en").Marshal()
	if err != nil {
		return fmt.Errorf("marshal text: %w", err)
	}
	return t.SetNDEF(raw)
}

// SetNDEF wraps raw in an NDEF TLV followed by a terminator.
func (t *Tag) SetNDEF(raw []byte) error {
	var tlv []byte
	if len(raw) < 0xFF {
		tlv = append([]byte{0x03, byte(len(raw))}, raw...)
	} else {
		tlv = append([]byte{0x03, 0xFF, byte(len(raw) >> 8), byte(len(raw))}, raw...)
	}
	return t.SetUserMemory(append(tlv, 0xFE))
}

// SetUserMemory overwrites user memory from page 4 and clears the rest.
func (t *Tag) SetUserMemory(mem []byte) error {
	capacity := (userEndPage - userStartPage + 1) * pageSize
	if len(mem) > capacity {
		return fmt.Errorf("user memory holds %d bytes, got %d", capacity, len(mem))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for p := userStartPage; p <= userEndPage; p++ {
		t.pages[p] = [pageSize]byte{}
	}
	for i, b := range mem {
		t.pages[userStartPage+i/pageSize][i%pageSize] = b
	}
	return nil
}

// Read answers an NTAG READ: four pages from page, rolling over at the end
// of memory.
func (t *Tag) Read(page byte) ([]byte, error) {
	if int(page) >= ntag213Pages {
		return nil, fmt.Errorf("page %d out of range", page)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]byte, 0, 4*pageSize)
	for i := range 4 {
		p := (int(page) + i) % ntag213Pages
		out = append(out, t.pages[p][:]...)
	}
	return out, nil
}
