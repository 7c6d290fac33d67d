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

package nfc

import (
	"context"
	"testing"
	"time"

	"github.com/hsanjuan/go-ndef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	cachelock "github.com/ZaparooProject/go-cachelock"
	"github.com/ZaparooProject/go-cachelock/internal/frame"
	"github.com/ZaparooProject/go-cachelock/internal/logging"
	"github.com/ZaparooProject/go-cachelock/internal/pn532sim"
)

type rig struct {
	chip   *pn532sim.Chip
	rst    *gpiotest.Pin
	irq    *gpiotest.Pin
	reader *Reader
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		chip: pn532sim.NewChip(),
		rst:  &gpiotest.Pin{N: "RSTPDN", L: gpio.Low},
		irq:  &gpiotest.Pin{N: "IRQ", L: gpio.High},
	}
	r.reader = New(r.chip,
		WithResetPin(r.rst),
		WithIRQPin(r.irq),
		WithLogger(logging.Discard()),
		WithResetTiming(0, 0),
		WithTimeouts(20*time.Millisecond, 50*time.Millisecond),
	)
	return r
}

func (r *rig) powerUp(t *testing.T) {
	t.Helper()
	require.NoError(t, r.reader.PowerUp(context.Background()))
}

func TestReader_PowerUpConfigures(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.powerUp(t)

	assert.Equal(t, gpio.High, r.rst.L)
	assert.Equal(t, []byte{cmdSAMConfiguration, cmdRFConfiguration}, r.chip.Received())

	fw, err := r.reader.FirmwareVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PN532 v1.6", fw.String())
}

func TestReader_NotPowered(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	ctx := context.Background()

	_, err := r.reader.TryReadTagID(ctx, 0)
	assert.ErrorIs(t, err, cachelock.ErrNotPowered)
	_, err = r.reader.ReadTextPayload(ctx)
	assert.ErrorIs(t, err, cachelock.ErrNotPowered)
	assert.ErrorIs(t, r.reader.StartAutonomousPoll(ctx), cachelock.ErrNotPowered)
	assert.ErrorIs(t, r.reader.DrainResponses(), cachelock.ErrNotPowered)
	assert.Empty(t, r.chip.Received())

	r.powerUp(t)
	require.NoError(t, r.reader.PowerDown())
	assert.Equal(t, gpio.Low, r.rst.L)
	_, err = r.reader.TryReadTagID(ctx, 0)
	assert.ErrorIs(t, err, cachelock.ErrNotPowered)
}

func TestReader_TryReadTagID(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.powerUp(t)
	ctx := context.Background()

	_, err := r.reader.TryReadTagID(ctx, 0)
	assert.ErrorIs(t, err, cachelock.ErrNoTag)

	r.chip.PlaceTag(pn532sim.NewTag(nil))
	uid, err := r.reader.TryReadTagID(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, pn532sim.NTAG213UID, uid)

	r.chip.PlaceTag(pn532sim.NewTag(pn532sim.ShortUID))
	uid, err = r.reader.TryReadTagID(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, pn532sim.ShortUID, uid)
}

func TestReader_TryReadTagIDTimeoutAborts(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.powerUp(t)
	r.chip.Stall = true

	_, err := r.reader.TryReadTagID(context.Background(), 5*time.Millisecond)
	assert.ErrorIs(t, err, cachelock.ErrNoTag)
	assert.Equal(t, 1, r.chip.Aborts())
}

func TestReader_ChecksumErrorIsNacked(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.powerUp(t)
	r.chip.PlaceTag(pn532sim.NewTag(nil))
	r.chip.CorruptNext = true

	uid, err := r.reader.TryReadTagID(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, pn532sim.NTAG213UID, uid)
}

func TestReader_BusFault(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.chip.FailTx = true
	err := r.reader.PowerUp(context.Background())
	assert.ErrorIs(t, err, pn532sim.ErrBusFault)
}

func TestReader_ReadTextPayload(t *testing.T) {
	t.Parallel()

	long := ""
	for range 12 {
		long += "qstart=22;"
	}

	tests := []struct {
		wantErr error
		tag     *pn532sim.Tag
		name    string
		want    string
	}{
		{name: "short text", tag: pn532sim.NewTextTag(nil, "code=1234"), want: "code=1234"},
		{name: "spans several reads", tag: pn532sim.NewTextTag(nil, long), want: long},
		{name: "empty message", tag: pn532sim.NewTag(nil), wantErr: cachelock.ErrNoPayload},
		{name: "uri record only", tag: uriTag(t), wantErr: cachelock.ErrNoPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := newRig(t)
			r.powerUp(t)
			r.chip.PlaceTag(tt.tag)
			ctx := context.Background()

			_, err := r.reader.TryReadTagID(ctx, 0)
			require.NoError(t, err)

			got, err := r.reader.ReadTextPayload(ctx)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReader_ReadTextPayloadNeedsSelection(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.powerUp(t)
	r.chip.PlaceTag(pn532sim.NewTextTag(nil, "hello"))

	_, err := r.reader.ReadTextPayload(context.Background())
	assert.ErrorIs(t, err, cachelock.ErrNoTag)
}

func TestReader_AutonomousPollAndDrain(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.powerUp(t)
	ctx := context.Background()

	require.NoError(t, r.reader.StartAutonomousPoll(ctx))
	assert.True(t, r.chip.AutoPolling())
	assert.Zero(t, r.chip.Pending())

	r.chip.PlaceTag(pn532sim.NewTag(nil))
	assert.Equal(t, 1, r.chip.Pending())

	require.NoError(t, r.reader.DrainResponses())
	assert.Zero(t, r.chip.Pending())
}

func TestReader_DrainDiscardsStaleFrames(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	r.powerUp(t)
	r.chip.Queue(frame.Response(cmdInListPassiveTarget+1, []byte{0x00}))
	r.chip.Queue(frame.AckFrame)

	require.NoError(t, r.reader.DrainResponses())
	assert.Zero(t, r.chip.Pending())
}

func TestReader_HardReset(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	require.NoError(t, r.reader.HardReset(context.Background()))
	assert.Equal(t, gpio.High, r.rst.L)
	assert.Equal(t, []byte{cmdSAMConfiguration, cmdRFConfiguration}, r.chip.Received())
}

func TestReader_IRQLevel(t *testing.T) {
	t.Parallel()

	r := newRig(t)
	assert.True(t, r.reader.IRQLevel())
	r.irq.L = gpio.Low
	assert.False(t, r.reader.IRQLevel())

	bare := New(pn532sim.NewChip(), WithLogger(logging.Discard()))
	assert.True(t, bare.IRQLevel())
}

func uriTag(t *testing.T) *pn532sim.Tag {
	t.Helper()
	raw, err := ndef.NewURIMessage("https://example.com").Marshal()
	require.NoError(t, err)
	tag := pn532sim.NewTag(nil)
	require.NoError(t, tag.SetNDEF(raw))
	return tag
}
