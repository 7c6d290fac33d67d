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

// Package retained holds the only state that survives a deep sleep: the
// planned wake instant and the last successful network sync instant.
//
// Everything else is rebuilt from scratch on each boot. The two fields are
// written at exactly two points: before entering any deep sleep (PlanWake)
// and after a successful network sync (RecordSync). Day sleep plans the
// fallback wake, or zero when no fallback is set, so a stale night plan
// never outlives the sleep it was made for.
package retained

import (
	"errors"
	"sync"
	"time"
)

// ErrCorrupt is returned when a stored record fails validation.
var ErrCorrupt = errors.New("retained record corrupt")

// State is the retained boot state. Epochs are unix seconds; zero means
// unknown.
type State struct {
	PlannedWakeEpoch int64
	LastSyncEpoch    int64
}

// Store persists State across suspends and power cycles.
type Store interface {
	Load() (State, error)
	Save(State) error
}

// MemoryStore keeps State in memory. It survives a controller restart but
// not a process exit, which models RAM retention across a suspend.
type MemoryStore struct {
	state State
	mu    sync.Mutex
}

// Load returns the stored state.
func (m *MemoryStore) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

// Save replaces the stored state.
func (m *MemoryStore) Save(s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	return nil
}

// Region caches State in front of a Store and exposes the two writers.
type Region struct {
	store Store
	state State
	mu    sync.Mutex
}

// Open loads the region from store. A missing or corrupt record yields a
// zero State together with the load error so callers can log it and carry
// on.
func Open(store Store) (*Region, error) {
	r := &Region{store: store}
	s, err := store.Load()
	if err != nil {
		return r, err
	}
	r.state = s
	return r, nil
}

// Snapshot returns the current state.
func (r *Region) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// PlanWake stores the instant a timer wake is expected, or zero when the
// wake time is not known.
func (r *Region) PlanWake(epoch int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.state
	next.PlannedWakeEpoch = epoch
	return r.commit(next)
}

// RecordSync stores the instant of a successful network sync.
func (r *Region) RecordSync(t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.state
	next.LastSyncEpoch = t.Unix()
	return r.commit(next)
}

func (r *Region) commit(next State) error {
	if err := r.store.Save(next); err != nil {
		return err
	}
	r.state = next
	return nil
}
