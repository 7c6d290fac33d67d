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

import "fmt"

// QuietWindow is the daily low-activity window in local wall-clock hours.
// Equal start and end hours mean the device is always quiet.
type QuietWindow struct {
	Enabled   bool
	StartHour int
	EndHour   int
}

// Validate checks that both hours are in 0..23.
func (w QuietWindow) Validate() error {
	if w.StartHour < 0 || w.StartHour > 23 {
		return fmt.Errorf("%w: start hour %d", ErrOutOfRange, w.StartHour)
	}
	if w.EndHour < 0 || w.EndHour > 23 {
		return fmt.Errorf("%w: end hour %d", ErrOutOfRange, w.EndHour)
	}
	return nil
}

// String renders the window the way the console reports it.
func (w QuietWindow) String() string {
	state := "off"
	if w.Enabled {
		state = "on"
	}
	return fmt.Sprintf("%s %02d-%02d", state, w.StartHour, w.EndHour)
}

// IsQuietHour reports whether hour falls inside the window.
func IsQuietHour(hour int, w QuietWindow) bool {
	if !w.Enabled {
		return false
	}
	switch {
	case w.StartHour == w.EndHour:
		return true
	case w.StartHour < w.EndHour:
		return hour >= w.StartHour && hour < w.EndHour
	default:
		// wraps midnight
		return hour >= w.StartHour || hour < w.EndHour
	}
}
