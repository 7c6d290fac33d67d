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

// Package commands implements cachectl, the host-side tool for configuring a
// cache box over its serial console and preparing admin tags.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the command tree.
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "cachectl",
		Short: "Configure a cache box",
		Long: `cachectl talks to a cache box over its serial console and encodes
admin payloads for writing to configuration tags.`,
		Version: version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
	}
	root.AddCommand(
		newSendCommand(openSerial),
		newPortsCommand(listPorts),
		newEncodeCommand(),
	)
	return root
}

// Execute runs the command tree. Errors are printed by the commands.
func Execute(version string) error {
	root := NewRootCommand(version)
	root.SilenceErrors = true
	root.SilenceUsage = true
	err := root.Execute()
	if err != nil {
		printError(root.ErrOrStderr(), err)
	}
	return err
}
