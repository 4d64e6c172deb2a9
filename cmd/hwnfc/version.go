// go-hwnfc
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-hwnfc.
//
// go-hwnfc is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-hwnfc is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-hwnfc; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"context"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"github.com/spf13/cobra"
)

func newVersionCmd(root *cobra.Command, a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "version",
		Args:  cobra.ExactArgs(0),
		Short: "Print the tool version and the protocol version of the tapped device",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.printf("hwnfc %s\n", version)
			if local, _ := cmd.Flags().GetBool("local"); local {
				return nil
			}
			return a.run(cmd.Context(), "version", func(ctx context.Context, s *hwnfc.Session, cmds hwnfc.Commands) error {
				v, err := cmds.Version(ctx, s)
				if err != nil {
					return err
				}
				a.printf("protocol %d\n", v)
				return nil
			})
		},
	}
	c.Flags().Bool("local", false, "Only print the tool version")
	root.AddCommand(c)
	return c
}
