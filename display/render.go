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
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	cachelock "github.com/ZaparooProject/go-cachelock"
)

const (
	lineHeight = 16
	codeScale  = 2
)

var (
	ink   = color.Gray{Y: 0xFF}
	paper = color.Gray{Y: 0x00}
	face  = basicfont.Face7x13
)

// TextWidth is the pixel width of s in the display font.
func TextWidth(s string) int {
	return font.MeasureString(face, s).Ceil()
}

// Render draws frame into a grayscale image the size of bounds. White is
// lit, black is off.
func Render(frame cachelock.Frame, bounds image.Rectangle) *image.Gray {
	img := image.NewGray(bounds)
	xdraw.Draw(img, bounds, &image.Uniform{C: paper}, image.Point{}, xdraw.Src)

	switch frame.Kind {
	case cachelock.FrameBlank:
	case cachelock.FrameMarquee:
		renderMarquee(img, frame)
	case cachelock.FrameCode:
		renderCode(img, frame.Lines)
	default:
		renderCentered(img, frame.Lines)
	}
	return img
}

func renderMarquee(img *image.Gray, frame cachelock.Frame) {
	if len(frame.Lines) == 0 || frame.Lines[0] == "" {
		return
	}
	b := img.Bounds()
	s := frame.Lines[0]
	w := TextWidth(s)
	span := b.Dx() + w
	offset := frame.Scroll % span
	if offset < 0 {
		offset += span
	}
	drawText(img, b.Max.X-offset, baseline(b.Min.Y+(b.Dy()-lineHeight)/2), s)
}

func renderCentered(img *image.Gray, lines []string) {
	b := img.Bounds()
	top := b.Min.Y + (b.Dy()-len(lines)*lineHeight)/2
	for i, s := range lines {
		drawText(img, centerX(b, TextWidth(s)), baseline(top+i*lineHeight), s)
	}
}

// renderCode draws the caption normally and the code at double size below.
func renderCode(img *image.Gray, lines []string) {
	if len(lines) == 0 {
		return
	}
	b := img.Bounds()
	drawText(img, centerX(b, TextWidth(lines[0])), baseline(b.Min.Y+2), lines[0])
	if len(lines) < 2 {
		return
	}

	code := lines[1]
	small := image.NewGray(image.Rect(0, 0, TextWidth(code), lineHeight))
	drawText(small, 0, baseline(0), code)

	w, h := small.Bounds().Dx()*codeScale, small.Bounds().Dy()*codeScale
	x := centerX(b, w)
	y := b.Min.Y + 2 + lineHeight + (b.Dy()-2-lineHeight-h)/2
	xdraw.NearestNeighbor.Scale(img, image.Rect(x, y, x+w, y+h), small, small.Bounds(), xdraw.Over, nil)
}

func drawText(img *image.Gray, x, y int, s string) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(ink),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func centerX(b image.Rectangle, w int) int {
	return b.Min.X + (b.Dx()-w)/2
}

// baseline converts a line top to the font baseline.
func baseline(top int) int {
	return top + face.Ascent + (lineHeight-face.Height)/2
}
