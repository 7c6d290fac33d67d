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

package interaction

import (
	"time"

	cachelock "github.com/ZaparooProject/go-cachelock"
)

// DefaultRemovalTimeout is how long a tag must be out of the field before
// the same tag counts as a new scan.
const DefaultRemovalTimeout = 600 * time.Millisecond

// PresenceState is the detection state of the reader field.
type PresenceState int

const (
	PresenceIdle PresenceState = iota
	PresenceDetected
)

// Presence turns raw poll results into scan events, so a tag resting on the
// reader produces one scan rather than one per poll.
type Presence struct {
	lastSeen time.Time
	lastUID  string
	removal  time.Duration
	state    PresenceState
}

// NewPresence creates a tracker. A non-positive removal uses
// DefaultRemovalTimeout.
func NewPresence(removal time.Duration) *Presence {
	if removal <= 0 {
		removal = DefaultRemovalTimeout
	}
	return &Presence{removal: removal}
}

// Observe records a successful read and reports whether it is a new arrival.
func (p *Presence) Observe(now time.Time, uid []byte) bool {
	id := cachelock.FormatUID(uid)
	arrived := p.state == PresenceIdle || id != p.lastUID
	p.state = PresenceDetected
	p.lastUID = id
	p.lastSeen = now
	return arrived
}

// Miss records an empty poll. The tag is considered removed once it has
// been missing for the removal timeout.
func (p *Presence) Miss(now time.Time) {
	if p.state == PresenceDetected && now.Sub(p.lastSeen) >= p.removal {
		p.reset()
	}
}

// State returns the detection state.
func (p *Presence) State() PresenceState {
	return p.state
}

// LastUID returns the tag currently considered present.
func (p *Presence) LastUID() string {
	return p.lastUID
}

func (p *Presence) reset() {
	p.state = PresenceIdle
	p.lastUID = ""
	p.lastSeen = time.Time{}
}
