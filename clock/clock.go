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

// Package clock is the device's time source.
//
// It separates two notions of time. A Clock measures elapsed time for
// timeouts and activity tracking and never needs to be correct. A Wall is
// the calendar clock, which is only trusted once Source has marked it valid
// through a network sync or a reconstruction from retained state.
package clock

import (
	"sync"
	"time"
)

// MinReasonableYear is the earliest year a wall clock reading is believed.
const MinReasonableYear = 2024

// Clock is the interface for elapsed-time operations.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	Until(t time.Time) time.Duration
}

// RealClock provides the actual system time.
type RealClock struct{}

// Now returns the current system time.
func (*RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t.
func (*RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// Until returns the duration until t.
func (*RealClock) Until(t time.Time) time.Duration {
	return time.Until(t)
}

// MockClock is a controllable clock for simulated time. It satisfies both
// Clock and Wall.
type MockClock struct {
	current time.Time
	mu      sync.RWMutex
}

// NewMockClock creates a mock clock set to t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{current: t}
}

// Now returns the mock time.
func (c *MockClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Since returns the duration since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Until returns the duration until t.
func (c *MockClock) Until(t time.Time) time.Duration {
	return t.Sub(c.Now())
}

// Set jumps the mock time to t.
func (c *MockClock) Set(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
	return nil
}

// Advance moves the mock time forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// IsReasonableTime reports whether t is late enough to be a set clock.
func IsReasonableTime(t time.Time) bool {
	return t.Year() >= MinReasonableYear
}
