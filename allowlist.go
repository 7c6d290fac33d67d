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
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

// AllowListCapacity is the maximum number of authorized tags.
const AllowListCapacity = 16

// Valid ISO14443A UID lengths in bytes (single, double and triple size).
var validUIDLengths = []int{4, 7, 10}

// AllowSet is the bounded set of authorized tag UIDs. UIDs are stored
// normalized: upper-case hex with separators and whitespace removed.
type AllowSet struct {
	uids []string
}

// NewAllowSet builds a set from raw UID strings. Invalid entries are skipped
// and entries beyond capacity are dropped.
func NewAllowSet(uids ...string) *AllowSet {
	s := &AllowSet{}
	for _, uid := range uids {
		_ = s.Add(uid)
	}
	return s
}

// NormalizeUID canonicalizes a UID string: whitespace, ':' and '-' are
// removed and hex digits are upper-cased. The result must decode to a valid
// UID length.
func NormalizeUID(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n', ':', '-':
			return -1
		}
		return r
	}, raw)
	cleaned = strings.ToUpper(cleaned)

	decoded, err := hex.DecodeString(cleaned)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidUID, raw)
	}
	if !ValidUIDLength(len(decoded)) {
		return "", fmt.Errorf("%w: %d bytes", ErrInvalidUID, len(decoded))
	}
	return cleaned, nil
}

// FormatUID renders UID bytes in normalized form.
func FormatUID(uid []byte) string {
	return strings.ToUpper(hex.EncodeToString(uid))
}

// ValidUIDLength reports whether n is a legal UID length in bytes.
func ValidUIDLength(n int) bool {
	return slices.Contains(validUIDLengths, n)
}

// Add inserts a UID. Adding a UID that is already present is a no-op.
func (s *AllowSet) Add(raw string) error {
	uid, err := NormalizeUID(raw)
	if err != nil {
		return err
	}
	if slices.Contains(s.uids, uid) {
		return nil
	}
	if len(s.uids) >= AllowListCapacity {
		return fmt.Errorf("%w: capacity %d", ErrAllowListFull, AllowListCapacity)
	}
	s.uids = append(s.uids, uid)
	return nil
}

// Remove deletes a UID.
func (s *AllowSet) Remove(raw string) error {
	uid, err := NormalizeUID(raw)
	if err != nil {
		return err
	}
	idx := slices.Index(s.uids, uid)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUIDNotFound, uid)
	}
	s.uids = slices.Delete(s.uids, idx, idx+1)
	return nil
}

// Clear empties the set, which re-enables default-allow.
func (s *AllowSet) Clear() {
	s.uids = nil
}

// Contains reports whether the normalized form of raw is in the set.
func (s *AllowSet) Contains(raw string) bool {
	uid, err := NormalizeUID(raw)
	if err != nil {
		return false
	}
	return slices.Contains(s.uids, uid)
}

// Recognize decides whether a scanned UID unlocks the cache. An empty set
// accepts any UID of valid length.
func (s *AllowSet) Recognize(uid []byte) bool {
	if !ValidUIDLength(len(uid)) {
		return false
	}
	if len(s.uids) == 0 {
		return true
	}
	return slices.Contains(s.uids, FormatUID(uid))
}

// Len returns the number of entries.
func (s *AllowSet) Len() int {
	return len(s.uids)
}

// List returns a copy of the entries in insertion order.
func (s *AllowSet) List() []string {
	return slices.Clone(s.uids)
}

// Clone returns an independent copy.
func (s *AllowSet) Clone() *AllowSet {
	return &AllowSet{uids: slices.Clone(s.uids)}
}
