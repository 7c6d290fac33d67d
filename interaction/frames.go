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
	"fmt"

	cachelock "github.com/ZaparooProject/go-cachelock"
)

// FrameFor maps a mode to what the display shows.
func FrameFor(mode Mode, settings *cachelock.Settings) cachelock.Frame {
	switch mode {
	case ModeWelcome:
		return cachelock.Frame{Kind: cachelock.FrameWelcome, Lines: []string{"Welcome!", "Tag accepted"}}
	case ModeCodeReveal:
		return cachelock.Frame{Kind: cachelock.FrameCode, Lines: []string{"Unlock code", settings.UnlockCode}}
	case ModeReject:
		return cachelock.Frame{Kind: cachelock.FrameReject, Lines: []string{"Access denied", "Unknown tag"}}
	case ModeBlanked:
		return cachelock.Frame{Kind: cachelock.FrameBlank}
	default:
		return cachelock.Frame{Kind: cachelock.FrameMarquee, Lines: []string{settings.Marquee}}
	}
}

// FeedbackFrame is the transient result screen for an admin payload.
func FeedbackFrame(applied, rejected int) cachelock.Frame {
	lines := []string{"Config updated"}
	if rejected > 0 {
		lines[0] = "Config partial"
	}
	if applied == 0 && rejected > 0 {
		lines[0] = "Config rejected"
	}
	lines = append(lines, fmt.Sprintf("applied %d, rejected %d", applied, rejected))
	return cachelock.Frame{Kind: cachelock.FrameFeedback, Lines: lines}
}
