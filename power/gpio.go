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
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/ZaparooProject/go-cachelock/internal/logging"
	"github.com/ZaparooProject/go-cachelock/internal/retry"
)

// Default sysfs paths for a real system suspend.
const (
	DefaultWakeAlarmPath  = "/sys/class/rtc/rtc0/wakealarm"
	DefaultPowerStatePath = "/sys/power/state"
)

// GPIOSuspender waits on the reader IRQ pin and a timer. With SystemSuspend
// enabled it also programs the RTC wake alarm and puts the host into
// suspend-to-RAM; otherwise it idles the process until a source fires.
type GPIOSuspender struct {
	irq    gpio.PinIO
	logger *logging.Logger

	wakeAlarmPath  string
	powerStatePath string
	slice          time.Duration

	armed WakeSpec
	cause WakeCause
	mu    sync.Mutex

	systemSuspend bool
	// wallNow reads the wall clock with the monotonic reading stripped,
	// since the monotonic clock stops during suspend-to-RAM.
	wallNow func() time.Time
}

// SuspenderOption configures a GPIOSuspender.
type SuspenderOption func(*GPIOSuspender)

// WithSystemSuspend enables suspend-to-RAM through sysfs.
func WithSystemSuspend(wakeAlarmPath, powerStatePath string) SuspenderOption {
	return func(s *GPIOSuspender) {
		s.systemSuspend = true
		if wakeAlarmPath != "" {
			s.wakeAlarmPath = wakeAlarmPath
		}
		if powerStatePath != "" {
			s.powerStatePath = powerStatePath
		}
	}
}

// WithSuspenderLogger sets the logger.
func WithSuspenderLogger(l *logging.Logger) SuspenderOption {
	return func(s *GPIOSuspender) { s.logger = l }
}

// WithPollSlice sets how long each edge wait lasts before the context and
// timer are checked again.
func WithPollSlice(d time.Duration) SuspenderOption {
	return func(s *GPIOSuspender) {
		if d > 0 {
			s.slice = d
		}
	}
}

// NewGPIOSuspender creates a suspender on the reader IRQ pin. irq may be nil
// when no IRQ line is wired, in which case only timer wakes are possible.
func NewGPIOSuspender(irq gpio.PinIO, opts ...SuspenderOption) *GPIOSuspender {
	s := &GPIOSuspender{
		irq:            irq,
		wakeAlarmPath:  DefaultWakeAlarmPath,
		powerStatePath: DefaultPowerStatePath,
		slice:          500 * time.Millisecond,
		cause:          WakeCold,
		wallNow:        func() time.Time { return time.Now().Round(0) },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	s.logger = s.logger.WithComponent("suspend")
	return s
}

// DisarmAll stops edge detection and clears the RTC alarm.
func (s *GPIOSuspender) DisarmAll() error {
	s.mu.Lock()
	s.armed = WakeSpec{}
	s.mu.Unlock()

	if s.irq != nil {
		if err := s.irq.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return fmt.Errorf("disarm irq: %w", err)
		}
	}
	if s.systemSuspend {
		if err := writeSysfs(s.wakeAlarmPath, "0"); err != nil {
			return fmt.Errorf("clear wake alarm: %w", err)
		}
	}
	return nil
}

// HoldTagLine pulls the IRQ line up with edge detection off.
func (s *GPIOSuspender) HoldTagLine() error {
	if s.irq == nil {
		return nil
	}
	if err := s.irq.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return fmt.Errorf("hold irq line: %w", err)
	}
	return nil
}

// Suspend arms spec and blocks until a source fires or ctx is done.
func (s *GPIOSuspender) Suspend(ctx context.Context, spec WakeSpec) error {
	if spec.TagEdge && s.irq == nil {
		spec.TagEdge = false
	}
	if spec.Empty() {
		return ErrNoWakeSource
	}

	s.mu.Lock()
	s.armed = spec
	s.mu.Unlock()

	if spec.TagEdge {
		if err := s.irq.In(gpio.PullUp, gpio.FallingEdge); err != nil {
			return fmt.Errorf("arm irq edge: %w", err)
		}
		if s.irq.Read() == gpio.Low {
			// The reader already signalled; sleeping now would miss it.
			s.setCause(WakeTag)
			return nil
		}
	}

	if s.systemSuspend {
		return s.systemSleep(spec)
	}
	return s.wait(ctx, spec)
}

func (s *GPIOSuspender) wait(ctx context.Context, spec WakeSpec) error {
	var deadline time.Time
	if spec.Timer > 0 {
		deadline = time.Now().Add(spec.Timer)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		slice := s.slice
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				s.setCause(WakeTimer)
				return nil
			}
			if remaining < slice {
				slice = remaining
			}
		}
		if spec.TagEdge {
			if s.irq.WaitForEdge(slice) {
				s.setCause(WakeTag)
				return nil
			}
			continue
		}
		if err := retry.Sleep(ctx, slice); err != nil {
			return err
		}
	}
}

func (s *GPIOSuspender) systemSleep(spec WakeSpec) error {
	if spec.Timer > 0 {
		secs := int64(spec.Timer.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		if err := writeSysfs(s.wakeAlarmPath, "0"); err != nil {
			return fmt.Errorf("reset wake alarm: %w", err)
		}
		if err := writeSysfs(s.wakeAlarmPath, "+"+strconv.FormatInt(secs, 10)); err != nil {
			return fmt.Errorf("set wake alarm: %w", err)
		}
	}

	start := s.wallNow()
	// Blocks until resume.
	if err := writeSysfs(s.powerStatePath, "mem"); err != nil {
		return fmt.Errorf("enter suspend: %w", err)
	}

	irqLow := spec.TagEdge && s.irq.Read() == gpio.Low
	s.setCause(resumeCause(spec, irqLow, s.wallNow().Sub(start)))
	return nil
}

// resumeCause classifies a suspend-to-RAM wake from the IRQ level and the
// wall time spent suspended.
func resumeCause(spec WakeSpec, irqLow bool, slept time.Duration) WakeCause {
	switch {
	case irqLow:
		return WakeTag
	case spec.Timer > 0 && slept >= spec.Timer-time.Second:
		return WakeTimer
	case spec.TagEdge:
		// The IRQ pulse can be gone by the time we read it.
		return WakeTag
	default:
		return WakeTimer
	}
}

// WakeCause reports why the last Suspend returned.
func (s *GPIOSuspender) WakeCause() WakeCause {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// Armed reports the wake sources of the last Suspend.
func (s *GPIOSuspender) Armed() WakeSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

func (s *GPIOSuspender) setCause(c WakeCause) {
	s.mu.Lock()
	s.cause = c
	s.mu.Unlock()
	s.logger.Debug("wake source fired", "cause", c.String())
}

func writeSysfs(path, value string) error {
	//nolint:gosec // fixed sysfs control files
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(value); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
