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
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ZaparooProject/go-cachelock/admin"
	"github.com/ZaparooProject/go-cachelock/nfc"
)

var ErrNotAdmin = errors.New("payload is not a key=value list")

type encodeOptions struct {
	lang  string
	plain bool
	pages bool
}

func newEncodeCommand() *cobra.Command {
	opts := &encodeOptions{}
	cmd := &cobra.Command{
		Use:   "encode <payload>",
		Short: "Encode an admin payload as NTAG user memory",
		Long: `Encode a key=value admin payload as an NDEF text record wrapped in a TLV,
printed as hex ready to write to an NTAG21x starting at page 4.`,
		Example: `  cachectl encode "qstart=22;qend=7;code=9999"
  cachectl encode --pages "allow=04A1B2C3"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := strings.Join(args, " ")
			if !opts.plain && !admin.IsAdminPayload(payload) {
				return fmt.Errorf("%w: %q (use --text for a plain text tag)", ErrNotAdmin, payload)
			}
			mem, err := nfc.EncodeText(payload, opts.lang)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !opts.pages {
				_, _ = fmt.Fprintln(out, hex.EncodeToString(mem))
				return nil
			}
			printField(out, "payload", payload)
			printField(out, "bytes", fmt.Sprint(len(mem)))
			for i := 0; i < len(mem); i += 4 {
				page := make([]byte, 4)
				copy(page, mem[i:])
				printField(out, fmt.Sprintf("page %d", 4+i/4), strings.ToUpper(hex.EncodeToString(page)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.lang, "lang", "en", "Language code of the text record")
	cmd.Flags().BoolVar(&opts.plain, "text", false, "Encode any text, not only admin payloads")
	cmd.Flags().BoolVar(&opts.pages, "pages", false, "Print one line per tag page")
	return cmd
}
