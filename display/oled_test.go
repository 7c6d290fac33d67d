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

package display

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	cachelock "github.com/ZaparooProject/go-cachelock"
	"github.com/ZaparooProject/go-cachelock/internal/logging"
)

type fakePanel struct {
	drawErr   error
	last      image.Image
	calls     []string
	contrasts []byte
}

func (*fakePanel) Bounds() image.Rectangle { return image.Rect(0, 0, 128, 64) }

func (p *fakePanel) Draw(_ image.Rectangle, src image.Image, _ image.Point) error {
	p.calls = append(p.calls, "draw")
	if p.drawErr != nil {
		return p.drawErr
	}
	p.last = src
	return nil
}

func (p *fakePanel) SetContrast(level byte) error {
	p.calls = append(p.calls, "contrast")
	p.contrasts = append(p.contrasts, level)
	return nil
}

func (p *fakePanel) Halt() error {
	p.calls = append(p.calls, "halt")
	return nil
}

func litPixels(img image.Image) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if r, _, _, _ := img.At(x, y).RGBA(); r > 0x8000 {
				n++
			}
		}
	}
	return n
}

func TestOLED_RenderDedupes(t *testing.T) {
	t.Parallel()

	panel := &fakePanel{}
	o := New(panel, WithLogger(logging.Discard()))
	welcome := cachelock.Frame{Kind: cachelock.FrameWelcome, Lines: []string{"Welcome!", "Tag accepted"}}

	require.NoError(t, o.Render(welcome))
	require.NoError(t, o.Render(welcome))
	assert.Equal(t, []string{"draw"}, panel.calls)

	_, ok := panel.last.(*image1bit.VerticalLSB)
	assert.True(t, ok)
	assert.Positive(t, litPixels(panel.last))

	require.NoError(t, o.Render(cachelock.Frame{Kind: cachelock.FrameBlank}))
	assert.Zero(t, litPixels(panel.last))
}

func TestOLED_SleepWake(t *testing.T) {
	t.Parallel()

	panel := &fakePanel{}
	o := New(panel, WithLogger(logging.Discard()), WithContrast(0x40))

	require.NoError(t, o.Sleep())
	require.NoError(t, o.Sleep())
	assert.False(t, o.Awake())

	code := cachelock.Frame{Kind: cachelock.FrameCode, Lines: []string{"Unlock code", "4242"}}
	require.NoError(t, o.Render(code))
	assert.Equal(t, []string{"halt"}, panel.calls, "nothing drawn while asleep")

	require.NoError(t, o.Wake())
	require.NoError(t, o.Wake())
	assert.True(t, o.Awake())
	assert.Equal(t, []string{"halt", "contrast", "draw"}, panel.calls)
	assert.Equal(t, []byte{0x40}, panel.contrasts)
}

func TestOLED_DrawErrorRetries(t *testing.T) {
	t.Parallel()

	panel := &fakePanel{drawErr: errors.New("nack")}
	o := New(panel, WithLogger(logging.Discard()))
	frame := cachelock.Frame{Kind: cachelock.FrameReject, Lines: []string{"Access denied"}}

	assert.Error(t, o.Render(frame))
	panel.drawErr = nil
	require.NoError(t, o.Render(frame))
	assert.Len(t, panel.calls, 2)
}

func TestRender(t *testing.T) {
	t.Parallel()

	bounds := image.Rect(0, 0, 128, 64)

	assert.Zero(t, litPixels(Render(cachelock.Frame{Kind: cachelock.FrameBlank, Lines: []string{"x"}}, bounds)))
	assert.Zero(t, litPixels(Render(cachelock.Frame{Kind: cachelock.FrameMarquee}, bounds)))

	normal := litPixels(Render(cachelock.Frame{Kind: cachelock.FrameFeedback, Lines: []string{"", "4242"}}, bounds))
	large := litPixels(Render(cachelock.Frame{Kind: cachelock.FrameCode, Lines: []string{"", "4242"}}, bounds))
	assert.Equal(t, normal*codeScale*codeScale, large)
}

func TestRender_MarqueeScrolls(t *testing.T) {
	t.Parallel()

	bounds := image.Rect(0, 0, 128, 64)
	frame := cachelock.Frame{Kind: cachelock.FrameMarquee, Lines: []string{"Find the cache"}}

	assert.Zero(t, litPixels(Render(frame, bounds)), "starts off screen right")

	frame.Scroll = 64
	mid := Render(frame, bounds)
	assert.Positive(t, litPixels(mid))

	frame.Scroll += 128 + TextWidth("Find the cache")
	assert.Equal(t, mid.Pix, Render(frame, bounds).Pix, "wraps after one pass")
}
