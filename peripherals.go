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

import (
	"context"
	"time"
)

// NFC is the tag reader collaborator. Implementations talk to the reader
// chip; the controller only sees UIDs and decoded text.
type NFC interface {
	// TryReadTagID polls once for a tag. ErrNoTag means nothing was in the
	// field before timeout.
	TryReadTagID(ctx context.Context, timeout time.Duration) ([]byte, error)

	// ReadTextPayload extracts the first text record of the tag selected by
	// the last successful TryReadTagID. Best effort: ErrNoPayload when the
	// tag carries no text.
	ReadTextPayload(ctx context.Context) (string, error)

	// PowerUp releases the power-down line and configures the chip.
	PowerUp(ctx context.Context) error

	// PowerDown asserts the power-down/reset line.
	PowerDown() error

	// HardReset pulses the reset line and reconfigures the chip.
	HardReset(ctx context.Context) error

	// StartAutonomousPoll puts the chip into a mode where it polls for tags
	// on its own and pulls its IRQ line low on detection.
	StartAutonomousPoll(ctx context.Context) error

	// DrainResponses discards pending response frames so a stale frame
	// cannot hold the IRQ line asserted.
	DrainResponses() error

	// IRQLevel reports the IRQ line level, true for high (idle).
	IRQLevel() bool
}

// Display is the frame renderer collaborator.
type Display interface {
	Wake() error
	Sleep() error
	Render(frame Frame) error
}

// SettingsStore persists Settings.
type SettingsStore interface {
	Load() (*Settings, error)
	Save(settings *Settings) error
}

// FrameKind identifies what a frame shows.
type FrameKind string

const (
	FrameMarquee  FrameKind = "marquee"
	FrameWelcome  FrameKind = "welcome"
	FrameCode     FrameKind = "code"
	FrameReject   FrameKind = "reject"
	FrameFeedback FrameKind = "feedback"
	FrameBlank    FrameKind = "blank"
)

// Frame is a display request: what to show and the text lines for it.
type Frame struct {
	Kind  FrameKind
	Lines []string
	// Scroll is the marquee offset in pixels.
	Scroll int
}
