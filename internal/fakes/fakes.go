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

// Package fakes provides recording collaborators for tests. Every fake can
// share a Recorder so tests can assert the order of peripheral operations
// across collaborators.
package fakes

import (
	"context"
	"sync"
	"time"

	cachelock "github.com/ZaparooProject/go-cachelock"
	"github.com/ZaparooProject/go-cachelock/power"
)

// Recorder collects call names in order.
type Recorder struct {
	calls []string
	mu    sync.Mutex
}

// Record appends a call.
func (r *Recorder) Record(name string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Reset clears the log.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// NFC is a scriptable reader.
type NFC struct {
	Rec *Recorder
	// Present is the UID in the field, nil for none.
	Present []byte
	// Payload is returned by ReadTextPayload when non-empty.
	Payload     string
	AutoPollErr error
	PowerErr    error
	// ReadErr fails every TryReadTagID when set.
	ReadErr error

	AutoPollCalls int
	Reads         int
	Powered       bool
	IRQLow        bool
	mu            sync.Mutex
}

// TryReadTagID returns Present or cachelock.ErrNoTag.
func (n *NFC) TryReadTagID(context.Context, time.Duration) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Reads++
	if n.ReadErr != nil {
		return nil, n.ReadErr
	}
	if n.Present == nil {
		return nil, cachelock.ErrNoTag
	}
	return append([]byte(nil), n.Present...), nil
}

// ReadTextPayload returns Payload or cachelock.ErrNoPayload.
func (n *NFC) ReadTextPayload(context.Context) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Payload == "" {
		return "", cachelock.ErrNoPayload
	}
	return n.Payload, nil
}

// SetTag places a tag on the reader.
func (n *NFC) SetTag(uid []byte, payload string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Present = uid
	n.Payload = payload
}

// RemoveTag takes the tag away.
func (n *NFC) RemoveTag() {
	n.SetTag(nil, "")
}

func (n *NFC) PowerUp(context.Context) error {
	n.Rec.Record("nfc.powerup")
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.PowerErr != nil {
		return n.PowerErr
	}
	n.Powered = true
	return nil
}

func (n *NFC) PowerDown() error {
	n.Rec.Record("nfc.powerdown")
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Powered = false
	return nil
}

func (n *NFC) HardReset(context.Context) error {
	n.Rec.Record("nfc.reset")
	return nil
}

func (n *NFC) StartAutonomousPoll(context.Context) error {
	n.Rec.Record("nfc.autopoll")
	n.mu.Lock()
	defer n.mu.Unlock()
	n.AutoPollCalls++
	return n.AutoPollErr
}

func (n *NFC) DrainResponses() error {
	n.Rec.Record("nfc.drain")
	return nil
}

func (n *NFC) IRQLevel() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.IRQLow
}

// Display records frames.
type Display struct {
	Rec    *Recorder
	Frames []cachelock.Frame
	Awake  bool
	mu     sync.Mutex
}

func (d *Display) Wake() error {
	d.Rec.Record("display.wake")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Awake = true
	return nil
}

func (d *Display) Sleep() error {
	d.Rec.Record("display.sleep")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Awake = false
	return nil
}

func (d *Display) Render(f cachelock.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Frames = append(d.Frames, f)
	return nil
}

// Last returns the most recent frame.
func (d *Display) Last() (cachelock.Frame, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Frames) == 0 {
		return cachelock.Frame{}, false
	}
	return d.Frames[len(d.Frames)-1], true
}

// Radio records link teardown.
type Radio struct {
	Rec *Recorder
}

func (r *Radio) Down() error {
	r.Rec.Record("radio.down")
	return nil
}

// Suspender returns immediately from Suspend with a scripted cause.
type Suspender struct {
	Rec        *Recorder
	Specs      []power.WakeSpec
	SuspendErr error
	// NextCause is reported after the next Suspend.
	NextCause power.WakeCause
	cause     power.WakeCause
	armed     power.WakeSpec
	mu        sync.Mutex
}

func (s *Suspender) DisarmAll() error {
	s.Rec.Record("suspend.disarm")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = power.WakeSpec{}
	return nil
}

func (s *Suspender) HoldTagLine() error {
	s.Rec.Record("suspend.hold")
	return nil
}

func (s *Suspender) Suspend(_ context.Context, spec power.WakeSpec) error {
	s.Rec.Record("suspend")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Specs = append(s.Specs, spec)
	s.armed = spec
	if s.SuspendErr != nil {
		return s.SuspendErr
	}
	s.cause = s.NextCause
	return nil
}

func (s *Suspender) WakeCause() power.WakeCause {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

func (s *Suspender) Armed() power.WakeSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// LastSpec returns the spec of the most recent Suspend.
func (s *Suspender) LastSpec() power.WakeSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Specs) == 0 {
		return power.WakeSpec{}
	}
	return s.Specs[len(s.Specs)-1]
}

// Clock is a scriptable time source.
type Clock struct {
	Rec *Recorder
	// Local is the wall time reported once valid.
	Local time.Time
	// SyncTo, when non-zero, is what a Sync sets the clock to.
	SyncTo   time.Time
	Instants []int64
	reason   string
	valid    bool
	mu       sync.Mutex
}

// SetValid marks the clock valid at t.
func (c *Clock) SetValid(t time.Time, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Local = t
	c.valid = true
	c.reason = reason
}

func (c *Clock) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valid
}

func (c *Clock) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

func (c *Clock) LocalTime() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Local, c.valid
}

func (c *Clock) Sync(context.Context, time.Duration, time.Duration) bool {
	c.Rec.Record("clock.sync")
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SyncTo.IsZero() {
		return false
	}
	c.Local = c.SyncTo
	c.valid = true
	c.reason = "network"
	return true
}

func (c *Clock) SetFromInstant(epoch int64, reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Instants = append(c.Instants, epoch)
	if epoch <= 0 {
		return false
	}
	c.Local = time.Unix(epoch, 0).UTC()
	c.valid = true
	c.reason = reason
	return true
}

// Planner records planned wake epochs.
type Planner struct {
	Rec    *Recorder
	Epochs []int64
}

func (p *Planner) PlanWake(epoch int64) error {
	p.Rec.Record("retained.plan")
	p.Epochs = append(p.Epochs, epoch)
	return nil
}

// SettingsStore keeps saved settings in memory.
type SettingsStore struct {
	Saved *cachelock.Settings
	Saves int
	mu    sync.Mutex
}

func (s *SettingsStore) Load() (*cachelock.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Saved == nil {
		return cachelock.DefaultSettings(), nil
	}
	return s.Saved.Clone(), nil
}

func (s *SettingsStore) Save(settings *cachelock.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Saved = settings.Clone()
	s.Saves++
	return nil
}
