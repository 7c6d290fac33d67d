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
	"errors"
	"fmt"
)

// Settings and allow list errors
var (
	ErrAllowListFull = errors.New("allow list full")
	ErrInvalidUID    = errors.New("invalid tag uid")
	ErrUIDNotFound   = errors.New("uid not in allow list")
	ErrBelowFloor    = errors.New("value below minimum")
	ErrOutOfRange    = errors.New("value out of range")
	ErrInvalidCode   = errors.New("unlock code must be exactly 4 characters")
	ErrUnknownKey    = errors.New("unknown setting")
	ErrInvalidValue  = errors.New("invalid value")
)

// NFC collaborator errors
var (
	ErrNoTag       = errors.New("no tag present")
	ErrNoPayload   = errors.New("tag carries no text payload")
	ErrNotPowered  = errors.New("nfc peripheral powered down")
	ErrUnsupported = errors.New("operation not supported")
)

// KeyError reports a rejected setting key together with the reason.
type KeyError struct {
	Err   error
	Key   string
	Value string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%s=%s: %v", e.Key, e.Value, e.Err)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}
