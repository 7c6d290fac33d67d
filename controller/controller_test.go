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

package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cachelock "github.com/ZaparooProject/go-cachelock"
	"github.com/ZaparooProject/go-cachelock/admin"
	"github.com/ZaparooProject/go-cachelock/clock"
	"github.com/ZaparooProject/go-cachelock/interaction"
	"github.com/ZaparooProject/go-cachelock/internal/fakes"
	"github.com/ZaparooProject/go-cachelock/internal/logging"
	"github.com/ZaparooProject/go-cachelock/power"
	"github.com/ZaparooProject/go-cachelock/retained"
)

var (
	knownUID   = []byte{0x04, 0xA1, 0xB2, 0xC3}
	unknownUID = []byte{0x04, 0x11, 0x22, 0x33}
)

type noNetwork struct{}

func (noNetwork) Resolve(context.Context, string) ([]string, error) {
	return nil, cachelock.ErrUnsupported
}

func (noNetwork) Query(context.Context, string) (time.Time, error) {
	return time.Time{}, cachelock.ErrUnsupported
}

// scriptedLines hands out queued lines, then calls idle on every empty poll.
type scriptedLines struct {
	idle    func()
	pollErr error
	queue   []string
	written []string
	flushes int
}

func (l *scriptedLines) Poll() (string, bool, error) {
	if l.pollErr != nil {
		err := l.pollErr
		l.pollErr = nil
		return "", false, err
	}
	if len(l.queue) == 0 {
		if l.idle != nil {
			l.idle()
		}
		return "", false, nil
	}
	line := l.queue[0]
	l.queue = l.queue[1:]
	return line, true, nil
}

func (l *scriptedLines) WriteLine(text string) error {
	l.written = append(l.written, text)
	return nil
}

func (l *scriptedLines) Flush() error {
	l.flushes++
	return nil
}

type rig struct {
	rec       *fakes.Recorder
	nfc       *fakes.NFC
	display   *fakes.Display
	suspender *fakes.Suspender
	store     *fakes.SettingsStore
	retained  *retained.MemoryStore
	lines     *scriptedLines
	mono      *clock.MockClock
	wall      *clock.MockClock
	ctrl      *Controller
}

func newRig(t *testing.T, mutate func(*Config)) *rig {
	t.Helper()
	rec := &fakes.Recorder{}
	r := &rig{
		rec:       rec,
		nfc:       &fakes.NFC{Rec: rec},
		display:   &fakes.Display{Rec: rec},
		suspender: &fakes.Suspender{Rec: rec, NextCause: power.WakeTimer},
		store:     &fakes.SettingsStore{},
		retained:  &retained.MemoryStore{},
		lines:     &scriptedLines{},
		mono:      clock.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		wall:      clock.NewMockClock(time.Unix(0, 0)),
	}

	settings := cachelock.DefaultSettings()
	require.NoError(t, settings.AllowList.Add(cachelock.FormatUID(knownUID)))
	r.store.Saved = settings

	cfg := Config{
		NFC:       r.nfc,
		Display:   r.display,
		Radio:     &fakes.Radio{Rec: rec},
		Suspender: r.suspender,
		Store:     r.store,
		Retained:  r.retained,
		NewClock: func(rec clock.SyncRecorder, loc *time.Location) *clock.Source {
			return clock.NewSource(r.wall,
				clock.WithLogger(logging.Discard()),
				clock.WithResolver(noNetwork{}),
				clock.WithQuerier(noNetwork{}),
				clock.WithRecorder(rec),
				clock.WithLocation(loc))
		},
		Console:      r.lines,
		Clock:        r.mono,
		Logger:       logging.Discard(),
		LoopInterval: time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	ctrl, err := New(cfg)
	require.NoError(t, err)
	r.ctrl = ctrl
	return r
}

func (r *rig) boot(t *testing.T) *DeviceContext {
	t.Helper()
	return r.ctrl.Boot(context.Background(), power.WakeCold)
}

func (r *rig) step(t *testing.T, dc *DeviceContext) {
	t.Helper()
	require.NoError(t, r.ctrl.Step(context.Background(), dc))
}

func (r *rig) lastFrame(t *testing.T) cachelock.Frame {
	t.Helper()
	f, ok := r.display.Last()
	require.True(t, ok, "nothing rendered")
	return f
}

func (r *rig) count(name string) int {
	n := 0
	for _, c := range r.rec.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

func TestNew_MissingCollaborator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		clear func(*Config)
		name  string
	}{
		{name: "nfc", clear: func(c *Config) { c.NFC = nil }},
		{name: "display", clear: func(c *Config) { c.Display = nil }},
		{name: "suspender", clear: func(c *Config) { c.Suspender = nil }},
		{name: "settings store", clear: func(c *Config) { c.Store = nil }},
		{name: "retained store", clear: func(c *Config) { c.Retained = nil }},
		{name: "clock factory", clear: func(c *Config) { c.NewClock = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Config{
				NFC:       &fakes.NFC{},
				Display:   &fakes.Display{},
				Suspender: &fakes.Suspender{},
				Store:     &fakes.SettingsStore{},
				Retained:  &retained.MemoryStore{},
				NewClock:  func(clock.SyncRecorder, *time.Location) *clock.Source { return nil },
			}
			tt.clear(&cfg)
			_, err := New(cfg)
			require.ErrorIs(t, err, ErrMissingCollaborator)
			assert.Contains(t, err.Error(), tt.name)
		})
	}
}

func TestBoot_EstablishesClockFromLastSync(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	synced := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, r.retained.Save(retained.State{LastSyncEpoch: synced.Unix()}))

	dc := r.boot(t)
	assert.True(t, dc.Report.Valid)
	assert.Equal(t, clock.ReasonLastSync, dc.Report.Source)
	assert.Equal(t, synced.Unix(), r.wall.Now().Unix())
	assert.Equal(t, interaction.ModeIdleMarquee, dc.Machine.Mode())
	assert.True(t, r.nfc.Powered)
	assert.True(t, r.display.Awake)
	assert.Zero(t, r.count("nfc.reset"))
}

func TestBoot_ReaderFailureResets(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	r.nfc.PowerErr = errors.New("no ack")

	dc := r.boot(t)
	assert.Equal(t, 1, r.count("nfc.reset"))
	assert.False(t, dc.Report.Valid)
}

func TestStep_RecognizedScanRevealsCode(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	dc := r.boot(t)

	r.step(t, dc)
	assert.Equal(t, cachelock.FrameMarquee, r.lastFrame(t).Kind)

	r.nfc.SetTag(knownUID, "")
	r.mono.Advance(200 * time.Millisecond)
	r.step(t, dc)
	assert.Equal(t, interaction.ModeWelcome, dc.Machine.Mode())
	assert.Equal(t, cachelock.FrameWelcome, r.lastFrame(t).Kind)

	r.mono.Advance(3500 * time.Millisecond)
	r.step(t, dc)
	assert.Equal(t, interaction.ModeCodeReveal, dc.Machine.Mode())
	code := r.lastFrame(t)
	assert.Equal(t, cachelock.FrameCode, code.Kind)
	assert.Equal(t, "0000", code.Lines[1])

	r.mono.Advance(interaction.CodeRevealFloor)
	r.step(t, dc)
	assert.Equal(t, interaction.ModeIdleMarquee, dc.Machine.Mode())
	assert.Equal(t, cachelock.FrameMarquee, r.lastFrame(t).Kind)
}

func TestStep_HeldTagScansOnce(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	dc := r.boot(t)

	r.nfc.SetTag(unknownUID, "")
	r.step(t, dc)
	assert.Equal(t, interaction.ModeReject, dc.Machine.Mode())

	for range 25 {
		r.mono.Advance(200 * time.Millisecond)
		r.step(t, dc)
	}
	assert.Equal(t, interaction.ModeIdleMarquee, dc.Machine.Mode(), "resting tag must not scan again")

	r.nfc.RemoveTag()
	for range 5 {
		r.mono.Advance(200 * time.Millisecond)
		r.step(t, dc)
	}
	assert.Equal(t, interaction.PresenceIdle, dc.Presence.State())

	r.nfc.SetTag(unknownUID, "")
	r.mono.Advance(200 * time.Millisecond)
	r.step(t, dc)
	assert.Equal(t, interaction.ModeReject, dc.Machine.Mode())
}

func TestStep_PollRateLimited(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	dc := r.boot(t)

	r.step(t, dc)
	r.mono.Advance(50 * time.Millisecond)
	r.step(t, dc)
	assert.Equal(t, 1, r.nfc.Reads)

	r.mono.Advance(100 * time.Millisecond)
	r.step(t, dc)
	assert.Equal(t, 2, r.nfc.Reads)
}

func TestStep_AdminTagAppliesWithoutModeChange(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	dc := r.boot(t)

	r.nfc.SetTag(unknownUID, "qstart=21;qend=6;code=9999")
	r.step(t, dc)

	assert.Equal(t, interaction.ModeIdleMarquee, dc.Machine.Mode())
	assert.Equal(t, 21, dc.Settings.Quiet.StartHour)
	assert.Equal(t, 6, dc.Settings.Quiet.EndHour)
	assert.Equal(t, "9999", dc.Settings.UnlockCode)
	assert.Equal(t, "9999", r.store.Saved.UnlockCode)

	f := r.lastFrame(t)
	assert.Equal(t, cachelock.FrameFeedback, f.Kind)
	assert.Equal(t, []string{"Config updated", "applied 3, rejected 0"}, f.Lines)

	r.mono.Advance(DefaultFeedbackHold)
	r.step(t, dc)
	assert.Equal(t, cachelock.FrameMarquee, r.lastFrame(t).Kind)
}

func TestStep_AdminTagTimezone(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	dc := r.boot(t)

	r.nfc.SetTag(unknownUID, "tz=Europe/Berlin;welcome=1")
	r.step(t, dc)

	assert.Equal(t, "Europe/Berlin", dc.Time.Location().String())
	f := r.lastFrame(t)
	assert.Equal(t, []string{"Config partial", "applied 1, rejected 1"}, f.Lines)
}

func TestStep_TextTagIsAScan(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	dc := r.boot(t)

	r.nfc.SetTag(knownUID, "Hello geocacher")
	r.step(t, dc)
	assert.Equal(t, interaction.ModeWelcome, dc.Machine.Mode())
}

func TestStep_BlankSleepsDisplayOnce(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	dc := r.boot(t)
	r.step(t, dc)

	r.mono.Advance(61 * time.Second)
	r.step(t, dc)
	assert.Equal(t, interaction.ModeBlanked, dc.Machine.Mode())
	r.mono.Advance(time.Second)
	r.step(t, dc)
	assert.Equal(t, 1, r.count("display.sleep"))
	assert.False(t, r.display.Awake)

	r.nfc.SetTag(knownUID, "")
	r.mono.Advance(time.Second)
	r.step(t, dc)
	assert.Equal(t, interaction.ModeWelcome, dc.Machine.Mode())
	assert.True(t, r.display.Awake)
}

func TestStep_MarqueeScrolls(t *testing.T) {
	t.Parallel()

	r := newRig(t, func(c *Config) { c.MarqueeStep = 2 })
	dc := r.boot(t)

	for range 3 {
		r.step(t, dc)
	}
	require.Len(t, r.display.Frames, 3)
	assert.Equal(t, 0, r.display.Frames[0].Scroll)
	assert.Equal(t, 2, r.display.Frames[1].Scroll)
	assert.Equal(t, 4, r.display.Frames[2].Scroll)
}

func TestStep_DaySleepAfterIdle(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	dc := r.boot(t)
	r.step(t, dc)

	r.mono.Advance(2*time.Minute + time.Second)
	err := r.ctrl.Step(context.Background(), dc)
	require.ErrorIs(t, err, power.ErrSuspended)

	spec := r.suspender.LastSpec()
	assert.True(t, spec.TagEdge)
	assert.Zero(t, spec.Timer)
	assert.Equal(t, 1, r.nfc.AutoPollCalls)
	assert.True(t, r.nfc.Powered, "reader stays powered for tag wake")
	assert.Equal(t, 1, r.lines.flushes)
}

func TestStep_ConsoleSleep(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	dc := r.boot(t)
	r.lines.queue = []string{"sleep"}

	err := r.ctrl.Step(context.Background(), dc)
	require.ErrorIs(t, err, power.ErrSuspended)

	assert.Equal(t, []string{"OK sleeping"}, r.lines.written)
	assert.Equal(t, power.NightFallbackNap, r.suspender.LastSpec().Timer)
	assert.False(t, r.suspender.LastSpec().TagEdge)
	assert.False(t, r.nfc.Powered)
}

func TestStep_ConsoleCommands(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	dc := r.boot(t)

	r.lines.queue = []string{"cfg code=4321", "status"}
	r.step(t, dc)
	r.step(t, dc)

	require.Len(t, r.lines.written, 2)
	assert.Equal(t, "OK applied 1, rejected 0", r.lines.written[0])
	assert.Equal(t, "4321", dc.Settings.UnlockCode)
	assert.Contains(t, r.lines.written[1], "mode=idle")
	assert.Contains(t, r.lines.written[1], "cause=cold")
}

func TestStep_ConsoleLineTooLong(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	dc := r.boot(t)
	r.lines.pollErr = admin.ErrLineTooLong

	r.step(t, dc)
	require.Len(t, r.lines.written, 1)
	assert.Error(t, admin.ResponseError(r.lines.written[0]))
}

func TestStep_RepeatedReadFailuresResetReader(t *testing.T) {
	t.Parallel()

	r := newRig(t, func(c *Config) { c.MaxReadFailures = 3 })
	dc := r.boot(t)
	r.nfc.ReadErr = errors.New("bus fault")

	for range 5 {
		r.step(t, dc)
		r.mono.Advance(200 * time.Millisecond)
	}
	assert.Equal(t, 1, r.count("nfc.reset"))

	r.nfc.ReadErr = nil
	r.nfc.SetTag(knownUID, "")
	r.step(t, dc)
	assert.Equal(t, interaction.ModeWelcome, dc.Machine.Mode())
}

func TestStep_CanceledContext(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	dc := r.boot(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, r.ctrl.Step(ctx, dc), context.Canceled)
	assert.Empty(t, r.display.Frames)
}

func TestRun_BootsAgainAfterNightSleep(t *testing.T) {
	t.Parallel()

	r := newRig(t, nil)
	lastSync := time.Date(2026, 7, 1, 23, 0, 0, 0, time.UTC)
	require.NoError(t, r.retained.Save(retained.State{LastSyncEpoch: lastSync.Unix()}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.lines.queue = []string{"sleep"}
	r.lines.idle = func() {
		if len(r.suspender.Specs) > 0 {
			cancel()
		}
	}

	err := r.ctrl.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Len(t, r.suspender.Specs, 1)
	assert.Equal(t, 8*time.Hour, r.suspender.Specs[0].Timer)

	planned := time.Date(2026, 7, 2, 7, 0, 0, 0, time.UTC)
	state, err := r.retained.Load()
	require.NoError(t, err)
	assert.Equal(t, planned.Unix(), state.PlannedWakeEpoch)
	assert.Equal(t, planned.Unix(), r.wall.Now().Unix(), "second boot trusts the planned wake")
	assert.Equal(t, 2, r.count("display.wake"))
}
