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

package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/ZaparooProject/go-cachelock/admin"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// printResponse colors a console response by its status prefix.
func printResponse(w io.Writer, line string) {
	switch {
	case admin.IsOK(line):
		_, _ = green.Fprintln(w, line)
	case admin.ResponseError(line) != nil:
		_, _ = red.Fprintln(w, line)
	default:
		_, _ = yellow.Fprintln(w, line)
	}
}

func printError(w io.Writer, err error) {
	_, _ = red.Fprintf(w, "Error: %v\n", err)
}

func printField(w io.Writer, name, value string) {
	_, _ = cyan.Fprintf(w, "%-10s", name)
	_, _ = fmt.Fprintln(w, value)
}
