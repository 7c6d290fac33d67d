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

package pn532sim

import (
	"bytes"
	"errors"
	"sync"

	"periph.io/x/conn/v3"

	"github.com/ZaparooProject/go-cachelock/internal/frame"
)

const (
	cmdGetFirmwareVersion  = 0x02
	cmdSAMConfiguration    = 0x14
	cmdRFConfiguration     = 0x32
	cmdInDataExchange      = 0x40
	cmdInListPassiveTarget = 0x4A
	cmdInRelease           = 0x52
	cmdInAutoPoll          = 0x60

	ntagRead      = 0x30
	statusTimeout = 0x01
	typeMifareUL  = 0x10
)

// ErrBusFault is returned by Tx when FailTx is set.
var ErrBusFault = errors.New("simulated bus fault")

var syntaxError = []byte{0x00, 0x00, 0xFF, 0x01, 0xFF, 0x7F, 0x81, 0x00}

// Chip answers host frames the way a PN532 in I2C mode does: each command
// is acknowledged, then answered, and every read starts with a status byte
// that is 0x01 only while a frame is waiting.
type Chip struct {
	tag      *Tag
	pending  [][]byte
	last     []byte
	received []byte

	mu sync.Mutex

	// Stall acknowledges InListPassiveTarget but never answers it.
	Stall bool
	// CorruptNext flips the data checksum of the next response once.
	CorruptNext bool
	// FailTx makes every transaction fail.
	FailTx bool

	autoPoll bool
	aborts   int
}

// NewChip creates a chip with no tag in its field.
func NewChip() *Chip {
	return &Chip{}
}

func (*Chip) String() string       { return "pn532sim" }
func (*Chip) Duplex() conn.Duplex { return conn.Half }

// PlaceTag puts t in the field. A running autonomous poll answers at once.
func (c *Chip) PlaceTag(t *Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tag = t
	if c.autoPoll {
		c.autoPoll = false
		c.pending = append(c.pending, frame.Response(cmdInAutoPoll+1, autoPollTarget(t)))
	}
}

// LiftTag removes the tag from the field.
func (c *Chip) LiftTag() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tag = nil
}

// Received lists the command codes seen, in order.
func (c *Chip) Received() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.received...)
}

// Pending reports how many frames wait to be read. The IRQ line of a real
// chip is low while this is non-zero.
func (c *Chip) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// AutoPolling reports whether an InAutoPoll is outstanding.
func (c *Chip) AutoPolling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoPoll
}

// Aborts counts host ACK frames used to cancel a command.
func (c *Chip) Aborts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborts
}

// Queue adds a raw frame to the read queue, e.g. a stale response.
func (c *Chip) Queue(frm []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, frm)
}

// Tx implements conn.Conn.
func (c *Chip) Tx(w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.FailTx {
		return ErrBusFault
	}
	if len(w) > 0 {
		c.write(w)
	}
	if len(r) > 0 {
		c.read(r)
	}
	return nil
}

func (c *Chip) read(r []byte) {
	clear(r)
	if len(c.pending) == 0 {
		return
	}
	r[0] = 0x01
	copy(r[1:], c.pending[0])
	c.pending = c.pending[1:]
}

func (c *Chip) write(w []byte) {
	switch {
	case bytes.Equal(w, frame.AckFrame):
		c.aborts++
		c.autoPoll = false
		c.pending = nil
		return
	case bytes.Equal(w, frame.NackFrame):
		if c.last != nil {
			c.pending = append(c.pending, c.last)
		}
		return
	}

	cmd, args, ok := parseHostFrame(w)
	if !ok {
		c.pending = append(c.pending, syntaxError)
		return
	}
	c.received = append(c.received, cmd)
	c.pending = append(c.pending, frame.AckFrame)

	res, answer := c.respond(cmd, args)
	if !answer {
		return
	}
	c.last = res
	if c.CorruptNext {
		c.CorruptNext = false
		bad := append([]byte(nil), res...)
		bad[len(bad)-2]++
		res = bad
	}
	c.pending = append(c.pending, res)
}

func (c *Chip) respond(cmd byte, args []byte) ([]byte, bool) {
	switch cmd {
	case cmdGetFirmwareVersion:
		return frame.Response(cmd+1, []byte{0x32, 0x01, 0x06, 0x07}), true
	case cmdSAMConfiguration, cmdRFConfiguration:
		return frame.Response(cmd+1, nil), true
	case cmdInListPassiveTarget:
		if c.Stall {
			return nil, false
		}
		if c.tag == nil {
			return frame.Response(cmd+1, []byte{0x00}), true
		}
		body := []byte{0x01, 0x01, 0x00, 0x44, 0x00, byte(len(c.tag.UID))}
		return frame.Response(cmd+1, append(body, c.tag.UID...)), true
	case cmdInDataExchange:
		return frame.Response(cmd+1, c.exchange(args)), true
	case cmdInRelease:
		return frame.Response(cmd+1, []byte{0x00}), true
	case cmdInAutoPoll:
		if c.tag != nil {
			return frame.Response(cmd+1, autoPollTarget(c.tag)), true
		}
		c.autoPoll = true
		return nil, false
	}
	return syntaxError, true
}

func (c *Chip) exchange(args []byte) []byte {
	if c.tag == nil || len(args) < 3 || args[1] != ntagRead {
		return []byte{statusTimeout}
	}
	data, err := c.tag.Read(args[2])
	if err != nil {
		return []byte{statusTimeout}
	}
	return append([]byte{0x00}, data...)
}

func autoPollTarget(t *Tag) []byte {
	data := []byte{0x01, 0x00, 0x44, 0x00, byte(len(t.UID))}
	data = append(data, t.UID...)
	return append([]byte{0x01, typeMifareUL, byte(len(data))}, data...)
}

// parseHostFrame extracts the command and arguments of a normal host frame.
func parseHostFrame(w []byte) (byte, []byte, bool) {
	if len(w) < frame.Overhead+2 || w[2] != frame.StartCode2 {
		return 0, nil, false
	}
	length := int(w[3])
	if byte(length)+w[4] != 0 || len(w) < 5+length+1 {
		return 0, nil, false
	}
	body := w[5 : 5+length+1]
	if !frame.ChecksumOK(body) || body[0] != frame.HostToPn532 {
		return 0, nil, false
	}
	return body[1], append([]byte(nil), body[2:length]...), true
}
