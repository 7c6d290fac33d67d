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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZaparooProject/go-cachelock/admin"
)

// ErrNoResponse is returned when the device stays silent past the timeout.
var ErrNoResponse = errors.New("no response from device")

// pollSlice is the serial read timeout; each Poll blocks at most this long.
const pollSlice = 20 * time.Millisecond

type lineConn interface {
	WriteLine(text string) error
	Flush() error
	Poll() (line string, ok bool, err error)
	Close() error
}

type opener func(port string, baud int) (lineConn, error)

func openSerial(port string, baud int) (lineConn, error) {
	return admin.OpenSerial(port, baud, pollSlice)
}

type sendOptions struct {
	port    string
	baud    int
	timeout time.Duration
}

func newSendCommand(open opener) *cobra.Command {
	opts := &sendOptions{}
	cmd := &cobra.Command{
		Use:   "send <command...>",
		Short: "Send one console command and print the reply",
		Example: `  cachectl send --port /dev/ttyUSB0 status
  cachectl send allow add 04:A1:B2:C3
  cachectl send cfg "qstart=22;qend=7"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := open(opts.port, opts.baud)
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			reply, err := exchange(conn, strings.Join(args, " "), opts.timeout)
			if err != nil {
				return err
			}
			printResponse(cmd.OutOrStdout(), reply)
			return admin.ResponseError(reply)
		},
	}
	cmd.Flags().StringVarP(&opts.port, "port", "p", "/dev/ttyUSB0", "Serial port of the cache box")
	cmd.Flags().IntVarP(&opts.baud, "baud", "b", 115200, "Baud rate")
	cmd.Flags().DurationVarP(&opts.timeout, "timeout", "t", 3*time.Second, "How long to wait for the reply")
	return cmd
}

// exchange writes one command line and waits for the first reply line.
func exchange(conn lineConn, command string, timeout time.Duration) (string, error) {
	if err := conn.WriteLine(command); err != nil {
		return "", fmt.Errorf("write command: %w", err)
	}
	if err := conn.Flush(); err != nil {
		return "", fmt.Errorf("flush command: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		line, ok, err := conn.Poll()
		if err != nil && !errors.Is(err, admin.ErrLineTooLong) {
			return "", err
		}
		if ok && line != "" {
			return line, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w after %s", ErrNoResponse, timeout)
		}
	}
}
