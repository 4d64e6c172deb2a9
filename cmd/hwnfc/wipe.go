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
	"errors"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"github.com/spf13/cobra"
)

func newWipeCmd(root *cobra.Command, a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "wipe",
		Args:  cobra.ExactArgs(0),
		Short: "Erase every secret on the device after on-device confirmation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return errors.New("refusing to wipe without --yes")
			}
			return a.run(cmd.Context(), "wipe", func(ctx context.Context, s *hwnfc.Session, cmds hwnfc.Commands) error {
				h, err := cmds.WipeDevice(ctx, s)
				if err != nil {
					return err
				}
				a.printf("confirm the wipe on the device\n")
				wiped, err := hwnfc.Resolve(ctx, s, cmds, h, a.chooser())
				if err != nil {
					return err
				}
				if wiped {
					a.printf("device wiped\n")
				} else {
					a.printf("wipe denied on device\n")
				}
				return nil
			})
		},
	}
	c.Flags().Bool("yes", false, "Confirm that the device should be wiped")
	root.AddCommand(c)
	return c
}
