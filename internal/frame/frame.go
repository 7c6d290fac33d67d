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

package frame

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	ErrTooLarge         = errors.New("frame data too large")
	ErrNoStart          = errors.New("frame start code not found")
	ErrTruncated        = errors.New("frame truncated")
	ErrLengthChecksum   = errors.New("frame length checksum mismatch")
	ErrDataChecksum     = errors.New("frame data checksum mismatch")
	ErrUnexpectedTFI    = errors.New("unexpected frame identifier")
	ErrApplicationLevel = errors.New("pn532 reported a syntax error")
)

// CalculateChecksum sums data modulo 256.
func CalculateChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// ChecksumOK reports whether data (including its checksum byte) sums to zero.
func ChecksumOK(data []byte) bool {
	return CalculateChecksum(data) == 0
}

// CalculateDataChecksum returns the DCS for tfi followed by data.
func CalculateDataChecksum(tfi byte, data []byte) byte {
	return ^(tfi + CalculateChecksum(data)) + 1
}

// CalculateLengthChecksum returns the LCS for length.
func CalculateLengthChecksum(length byte) byte {
	return ^length + 1
}

// Build encodes a host command frame.
func Build(cmd byte, args []byte) ([]byte, error) {
	dataLen := 2 + len(args)
	if dataLen > MaxDataLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, dataLen)
	}

	frm := make([]byte, 0, Overhead+dataLen)
	frm = append(frm, Preamble, StartCode1, StartCode2,
		byte(dataLen), CalculateLengthChecksum(byte(dataLen)),
		HostToPn532, cmd)
	frm = append(frm, args...)
	frm = append(frm, CalculateDataChecksum(HostToPn532, append([]byte{cmd}, args...)), Postamble)
	return frm, nil
}

// IsAck reports whether buf starts with an ACK frame, ignoring leading
// preamble padding.
func IsAck(buf []byte) bool {
	return bytes.Contains(trimLeading(buf, len(AckFrame)), AckFrame[1:])
}

// IsNack reports whether buf carries a NACK frame.
func IsNack(buf []byte) bool {
	return bytes.Contains(trimLeading(buf, len(NackFrame)), NackFrame[1:])
}

func trimLeading(buf []byte, n int) []byte {
	if len(buf) > n+1 {
		return buf[:n+1]
	}
	return buf
}

// Parse locates a response frame in buf and returns the bytes that follow
// the TFI: the response code then its payload. ACK frames are skipped.
func Parse(buf []byte) ([]byte, error) {
	off := 0
	for {
		start := bytes.Index(buf[off:], []byte{StartCode1, StartCode2})
		if start < 0 {
			return nil, ErrNoStart
		}
		off += start + 2
		if off+1 >= len(buf) {
			return nil, ErrTruncated
		}

		length, lcs := buf[off], buf[off+1]
		if length == 0 && lcs == 0xFF {
			// ACK ahead of the response
			off += 2
			continue
		}
		if length+lcs != 0 {
			return nil, ErrLengthChecksum
		}

		body := off + 2
		end := body + int(length)
		if end >= len(buf) {
			return nil, ErrTruncated
		}
		if !ChecksumOK(buf[body : end+1]) {
			return nil, ErrDataChecksum
		}
		if length == 1 && buf[body] == ErrorCode {
			return nil, ErrApplicationLevel
		}
		if buf[body] != Pn532ToHost {
			return nil, fmt.Errorf("%w: 0x%02X", ErrUnexpectedTFI, buf[body])
		}

		out := make([]byte, end-body-1)
		copy(out, buf[body+1:end])
		return out, nil
	}
}

// Response encodes a device response frame. Used by simulators.
func Response(code byte, payload []byte) []byte {
	data := append([]byte{code}, payload...)
	dataLen := byte(len(data) + 1)
	frm := []byte{Preamble, StartCode1, StartCode2, dataLen, CalculateLengthChecksum(dataLen), Pn532ToHost}
	frm = append(frm, data...)
	return append(frm, CalculateDataChecksum(Pn532ToHost, data), Postamble)
}
