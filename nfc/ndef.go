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
	"errors"
	"fmt"

	"github.com/hsanjuan/go-ndef"
	"github.com/hsanjuan/go-ndef/types/wkt/text"

	cachelock "github.com/ZaparooProject/go-cachelock"
)

const (
	ntagRead      = 0x30
	userStartPage = 4
	pageSize      = 4
	pageChunk     = 16
	// NTAG216 user memory, the largest of the family.
	maxUserBytes = 888

	tlvNull       = 0x00
	tlvNDEF       = 0x03
	tlvTerminator = 0xFE
)

// ErrMalformedTLV is returned when the user memory does not hold a valid TLV
// sequence.
var ErrMalformedTLV = errors.New("malformed tlv")

// errNeedMore asks for another chunk of user memory.
var errNeedMore = errors.New("need more data")

type pageReader func(ctx context.Context, page byte) ([]byte, error)

// readNDEF reads user memory chunk by chunk until the NDEF TLV is complete.
func readNDEF(ctx context.Context, read pageReader) ([]byte, error) {
	var mem []byte
	for page := userStartPage; len(mem) < maxUserBytes; page += pageChunk / pageSize {
		chunk, err := read(ctx, byte(page))
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", page, err)
		}
		mem = append(mem, chunk...)

		msg, err := findNDEF(mem)
		if errors.Is(err, errNeedMore) {
			continue
		}
		return msg, err
	}
	return nil, cachelock.ErrNoPayload
}

// findNDEF walks the TLV blocks in mem and returns the NDEF message value.
func findNDEF(mem []byte) ([]byte, error) {
	i := 0
	for i < len(mem) {
		switch mem[i] {
		case tlvNull:
			i++
			continue
		case tlvTerminator:
			return nil, cachelock.ErrNoPayload
		}

		typ := mem[i]
		length, hdr, err := tlvLength(mem[i+1:])
		if err != nil {
			return nil, err
		}
		start := i + 1 + hdr
		end := start + length
		if end > len(mem) {
			if end > maxUserBytes {
				return nil, fmt.Errorf("%w: length %d exceeds user memory", ErrMalformedTLV, length)
			}
			return nil, errNeedMore
		}
		if typ == tlvNDEF {
			if length == 0 {
				return nil, cachelock.ErrNoPayload
			}
			return mem[start:end], nil
		}
		i = end
	}
	return nil, errNeedMore
}

// tlvLength decodes a one or three byte TLV length field.
func tlvLength(b []byte) (length, size int, err error) {
	if len(b) < 1 {
		return 0, 0, errNeedMore
	}
	if b[0] != 0xFF {
		return int(b[0]), 1, nil
	}
	if len(b) < 3 {
		return 0, 0, errNeedMore
	}
	return int(b[1])<<8 | int(b[2]), 3, nil
}

// firstText decodes an NDEF message and returns its first text record.
func firstText(raw []byte) (string, error) {
	var msg ndef.Message
	if _, err := msg.Unmarshal(raw); err != nil {
		return "", fmt.Errorf("decode ndef: %w", err)
	}
	for _, rec := range msg.Records {
		if rec.TNF() != ndef.NFCForumWellKnownType || rec.Type() != "T" {
			continue
		}
		payload, err := rec.Payload()
		if err != nil {
			return "", fmt.Errorf("decode text record: %w", err)
		}
		if t, ok := payload.(*text.Payload); ok {
			return t.Text, nil
		}
		return payload.String(), nil
	}
	return "", cachelock.ErrNoPayload
}

// EncodeText builds the user memory image for a tag carrying one text
// record: the NDEF TLV followed by a terminator, ready to write from page 4.
func EncodeText(s, lang string) ([]byte, error) {
	raw, err := ndef.NewTextMessage(s, lang).Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode ndef: %w", err)
	}
	if len(raw)+5 > maxUserBytes {
		return nil, fmt.Errorf("%w: message of %d bytes does not fit user memory", ErrMalformedTLV, len(raw))
	}

	var mem []byte
	if len(raw) < 0xFF {
		mem = append(mem, tlvNDEF, byte(len(raw)))
	} else {
		mem = append(mem, tlvNDEF, 0xFF, byte(len(raw)>>8), byte(len(raw)))
	}
	mem = append(mem, raw...)
	return append(mem, tlvTerminator), nil
}
