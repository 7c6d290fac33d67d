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

package power

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/ZaparooProject/go-cachelock/internal/logging"
)

func newTestIRQ() *gpiotest.Pin {
	return &gpiotest.Pin{N: "IRQ", L: gpio.High, EdgesChan: make(chan gpio.Level, 1)}
}

func TestGPIOSuspender_TimerWake(t *testing.T) {
	t.Parallel()

	s := NewGPIOSuspender(newTestIRQ(), WithSuspenderLogger(logging.Discard()), WithPollSlice(5*time.Millisecond))
	assert.Equal(t, WakeCold, s.WakeCause())

	require.NoError(t, s.Suspend(context.Background(), WakeSpec{Timer: 20 * time.Millisecond}))
	assert.Equal(t, WakeTimer, s.WakeCause())
	assert.Equal(t, WakeSpec{Timer: 20 * time.Millisecond}, s.Armed())
}

func TestGPIOSuspender_TagWake(t *testing.T) {
	t.Parallel()

	irq := newTestIRQ()
	s := NewGPIOSuspender(irq, WithSuspenderLogger(logging.Discard()), WithPollSlice(5*time.Millisecond))

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				select {
				case irq.EdgesChan <- gpio.Low:
				default:
				}
			}
		}
	}()

	require.NoError(t, s.Suspend(context.Background(), WakeSpec{TagEdge: true, Timer: 5 * time.Second}))
	assert.Equal(t, WakeTag, s.WakeCause())
}

func TestGPIOSuspender_NoWakeSource(t *testing.T) {
	t.Parallel()

	s := NewGPIOSuspender(nil, WithSuspenderLogger(logging.Discard()))
	assert.ErrorIs(t, s.Suspend(context.Background(), WakeSpec{TagEdge: true}), ErrNoWakeSource)
	assert.ErrorIs(t, s.Suspend(context.Background(), WakeSpec{}), ErrNoWakeSource)
}

func TestGPIOSuspender_DisarmAll(t *testing.T) {
	t.Parallel()

	irq := newTestIRQ()
	s := NewGPIOSuspender(irq, WithSuspenderLogger(logging.Discard()), WithPollSlice(time.Millisecond))
	require.NoError(t, s.Suspend(context.Background(), WakeSpec{Timer: time.Millisecond}))

	require.NoError(t, s.DisarmAll())
	require.NoError(t, s.HoldTagLine())
	assert.True(t, s.Armed().Empty())
	assert.Equal(t, gpio.PullUp, irq.Pull())
	assert.Equal(t, gpio.High, irq.Read())
}

func TestGPIOSuspender_ContextCancel(t *testing.T) {
	t.Parallel()

	s := NewGPIOSuspender(newTestIRQ(), WithSuspenderLogger(logging.Discard()), WithPollSlice(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Suspend(ctx, WakeSpec{Timer: time.Hour}), context.Canceled)
}

func newSysfsFiles(t *testing.T) (alarm, state string) {
	t.Helper()
	dir := t.TempDir()
	alarm = filepath.Join(dir, "wakealarm")
	state = filepath.Join(dir, "state")
	require.NoError(t, os.WriteFile(alarm, nil, 0o600))
	require.NoError(t, os.WriteFile(state, nil, 0o600))
	return alarm, state
}

// steppedWall returns start on its first call and start+slept afterwards.
func steppedWall(start time.Time, slept time.Duration) func() time.Time {
	calls := 0
	return func() time.Time {
		calls++
		if calls == 1 {
			return start
		}
		return start.Add(slept)
	}
}

func TestGPIOSuspender_SystemSuspendWakeCause(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 7, 1, 14, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		spec  WakeSpec
		slept time.Duration
		want  WakeCause
	}{
		{
			name:  "fallback timer elapsed in wall time",
			spec:  WakeSpec{TagEdge: true, Timer: 10 * time.Minute},
			slept: 10 * time.Minute,
			want:  WakeTimer,
		},
		{
			name:  "early resume with tag armed",
			spec:  WakeSpec{TagEdge: true, Timer: 10 * time.Minute},
			slept: 5 * time.Second,
			want:  WakeTag,
		},
		{
			name:  "timer only",
			spec:  WakeSpec{Timer: 8 * time.Hour},
			slept: 8 * time.Hour,
			want:  WakeTimer,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			alarm, state := newSysfsFiles(t)
			s := NewGPIOSuspender(newTestIRQ(),
				WithSuspenderLogger(logging.Discard()),
				WithSystemSuspend(alarm, state))
			s.wallNow = steppedWall(start, tt.slept)

			require.NoError(t, s.Suspend(context.Background(), tt.spec))
			assert.Equal(t, tt.want, s.WakeCause())

			got, err := os.ReadFile(state)
			require.NoError(t, err)
			assert.Equal(t, "mem", string(got))
		})
	}
}

func TestResumeCause(t *testing.T) {
	t.Parallel()

	spec := WakeSpec{TagEdge: true, Timer: time.Minute}
	assert.Equal(t, WakeTag, resumeCause(spec, true, time.Hour))
	assert.Equal(t, WakeTimer, resumeCause(spec, false, 59*time.Second))
	assert.Equal(t, WakeTag, resumeCause(spec, false, 30*time.Second))
	assert.Equal(t, WakeTimer, resumeCause(WakeSpec{Timer: time.Minute}, false, time.Second))
}
