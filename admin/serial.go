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

package admin

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
)

// MaxLineLength bounds a console line; longer input is discarded.
const MaxLineLength = 512

// ErrLineTooLong is returned when a line exceeds MaxLineLength.
var ErrLineTooLong = errors.New("console line too long")

// Port is the subset of serial.Port the line source uses.
type Port interface {
	io.ReadWriter
	Drain() error
	Close() error
}

// Lines assembles newline-terminated commands from a port whose reads time
// out quickly, so polling never blocks the control loop for long.
type Lines struct {
	port Port
	buf  []byte
}

// NewLines wraps an already opened port.
func NewLines(port Port) *Lines {
	return &Lines{port: port}
}

// OpenSerial opens a serial console with a short read timeout.
func OpenSerial(name string, baud int, readTimeout time.Duration) (*Lines, error) {
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", name, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return NewLines(port), nil
}

// Poll performs at most one read and returns a complete line if one is
// buffered. ok is false when no full line is available yet.
func (l *Lines) Poll() (line string, ok bool, err error) {
	if line, ok := l.next(); ok {
		return line, true, nil
	}

	chunk := make([]byte, 128)
	n, err := l.port.Read(chunk)
	if n > 0 {
		l.buf = append(l.buf, chunk[:n]...)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, fmt.Errorf("read console: %w", err)
	}

	if line, ok := l.next(); ok {
		return line, true, nil
	}
	if len(l.buf) > MaxLineLength {
		l.buf = l.buf[:0]
		return "", false, ErrLineTooLong
	}
	return "", false, nil
}

func (l *Lines) next() (string, bool) {
	idx := bytes.IndexAny(l.buf, "\r\n")
	if idx < 0 {
		return "", false
	}
	line := string(l.buf[:idx])
	rest := l.buf[idx+1:]
	// Swallow the second half of a CRLF.
	if len(rest) > 0 && l.buf[idx] == '\r' && rest[0] == '\n' {
		rest = rest[1:]
	}
	l.buf = append(l.buf[:0], rest...)
	return strings.TrimSpace(line), true
}

// WriteLine writes text followed by CRLF. Multi-line text is sent as is.
func (l *Lines) WriteLine(text string) error {
	text = strings.ReplaceAll(text, "\n", "\r\n")
	if _, err := io.WriteString(l.port, text+"\r\n"); err != nil {
		return fmt.Errorf("write console: %w", err)
	}
	return nil
}

// Flush waits until pending output has been transmitted.
func (l *Lines) Flush() error {
	return l.port.Drain()
}

// Close closes the port.
func (l *Lines) Close() error {
	return l.port.Close()
}
