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

// Package interaction is the foreground mode state machine. It consumes tag
// scans and the passage of time, and supplies the last-activity instant the
// sleep policy uses to decide when the device is idle.
package interaction

import (
	"fmt"
	"time"

	cachelock "github.com/ZaparooProject/go-cachelock"
)

// Mode is the foreground behavior.
type Mode int

const (
	ModeIdleMarquee Mode = iota
	ModeWelcome
	ModeCodeReveal
	ModeReject
	ModeBlanked
)

func (m Mode) String() string {
	switch m {
	case ModeIdleMarquee:
		return "idle"
	case ModeWelcome:
		return "welcome"
	case ModeCodeReveal:
		return "code"
	case ModeReject:
		return "reject"
	case ModeBlanked:
		return "blanked"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// CodeRevealFloor is the shortest time the unlock code stays on screen.
const CodeRevealFloor = 4 * time.Second

// Transition describes the visible mode before and after an event.
type Transition struct {
	From Mode
	To   Mode
	// Accepted is set when a scan was allowed to change the mode.
	Accepted bool
	// Recognized is the allow-list outcome of an accepted scan.
	Recognized bool
}

// Changed reports whether the visible mode moved.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Machine tracks the current mode. All instants come from one monotonic
// clock supplied by the caller.
type Machine struct {
	settings *cachelock.Settings

	lastActivity  time.Time
	modeExpiry    time.Time
	pendingReveal time.Time

	mode           Mode
	blanked        bool
	lastRecognized bool
}

// NewMachine starts in idle marquee with now as the last activity.
func NewMachine(settings *cachelock.Settings, now time.Time) *Machine {
	return &Machine{
		settings:     settings,
		mode:         ModeIdleMarquee,
		lastActivity: now,
	}
}

// Mode returns the visible mode. Blanked overlays the underlying mode.
func (m *Machine) Mode() Mode {
	if m.blanked {
		return ModeBlanked
	}
	return m.mode
}

// Underlying returns the mode beneath a blank display.
func (m *Machine) Underlying() Mode {
	return m.mode
}

// LastActivity is the instant of the last scan or touch.
func (m *Machine) LastActivity() time.Time {
	return m.lastActivity
}

// LastRecognized reports the outcome of the last accepted scan.
func (m *Machine) LastRecognized() bool {
	return m.lastRecognized
}

// ModeExpiry is when the current timed mode ends, zero in idle.
func (m *Machine) ModeExpiry() time.Time {
	return m.modeExpiry
}

// PendingReveal is when a welcome turns into the code reveal, zero if none.
func (m *Machine) PendingReveal() time.Time {
	return m.pendingReveal
}

// HandleScan processes a tag read. Every scan counts as activity, but only a
// scan from idle (blanked or not) changes the mode.
func (m *Machine) HandleScan(now time.Time, uid []byte) Transition {
	from := m.Mode()
	m.lastActivity = now
	m.blanked = false

	if m.mode != ModeIdleMarquee {
		return Transition{From: from, To: m.Mode()}
	}

	recognized := m.settings.AllowList.Recognize(uid)
	m.lastRecognized = recognized
	if recognized {
		m.mode = ModeWelcome
		m.modeExpiry = now.Add(m.settings.Welcome)
		m.pendingReveal = now.Add(m.settings.Welcome + m.settings.CodeDelay)
	} else {
		m.mode = ModeReject
		m.modeExpiry = now.Add(m.settings.Reject)
		m.pendingReveal = time.Time{}
	}
	return Transition{From: from, To: m.Mode(), Accepted: true, Recognized: recognized}
}

// Touch records activity without a scan, used for admin tags and console
// input. The mode is untouched; a blank display comes back on the next Tick.
func (m *Machine) Touch(now time.Time) {
	m.lastActivity = now
}

// Tick advances timed transitions to now.
func (m *Machine) Tick(now time.Time) Transition {
	from := m.Mode()

	switch m.mode {
	case ModeWelcome:
		switch {
		case m.lastRecognized && !m.pendingReveal.IsZero():
			if !now.Before(m.pendingReveal) {
				m.mode = ModeCodeReveal
				m.modeExpiry = now.Add(max(m.settings.Welcome, CodeRevealFloor))
				m.pendingReveal = time.Time{}
			}
		case !now.Before(m.modeExpiry):
			m.toIdle()
		}
	case ModeCodeReveal, ModeReject:
		if !now.Before(m.modeExpiry) {
			m.toIdle()
		}
	case ModeIdleMarquee, ModeBlanked:
	}

	m.blanked = now.Sub(m.lastActivity) > m.settings.Active
	return Transition{From: from, To: m.Mode()}
}

// Reset returns to idle marquee with now as the last activity.
func (m *Machine) Reset(now time.Time) {
	m.toIdle()
	m.blanked = false
	m.lastRecognized = false
	m.lastActivity = now
}

func (m *Machine) toIdle() {
	m.mode = ModeIdleMarquee
	m.modeExpiry = time.Time{}
	m.pendingReveal = time.Time{}
}
