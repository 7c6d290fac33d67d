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

package clock

import (
	"sync"
	"time"
)

// Wall is the settable calendar clock.
type Wall interface {
	Now() time.Time
	Set(t time.Time) error
}

// SoftWall keeps a calendar offset over a base Clock. It needs no
// privileges and loses its setting when the process exits.
type SoftWall struct {
	base   Clock
	offset time.Duration
	mu     sync.RWMutex
}

// NewSoftWall returns a SoftWall reading base until it is set.
func NewSoftWall(base Clock) *SoftWall {
	if base == nil {
		base = &RealClock{}
	}
	return &SoftWall{base: base}
}

// Now returns the adjusted time.
func (w *SoftWall) Now() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.base.Now().Add(w.offset)
}

// Set adjusts the offset so Now reads t.
func (w *SoftWall) Set(t time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.offset = t.Sub(w.base.Now())
	return nil
}

// SystemWall reads and sets the kernel clock. Setting requires CAP_SYS_TIME.
type SystemWall struct{}

// Now returns the system time.
func (SystemWall) Now() time.Time {
	return time.Now()
}

// Set sets the kernel clock.
func (SystemWall) Set(t time.Time) error {
	return setSystemTime(t)
}
