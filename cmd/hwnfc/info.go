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
	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"
)

func newInfoCmd(root *cobra.Command, a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "info",
		Args:  cobra.ExactArgs(0),
		Short: "Read device info and firmware metadata",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dump, _ := cmd.Flags().GetBool("dump")
			store, err := a.openStore()
			if err != nil {
				return err
			}

			return a.run(cmd.Context(), "info", func(ctx context.Context, s *hwnfc.Session, cmds hwnfc.Commands) error {
				info, err := cmds.GetDeviceInfo(ctx, s)
				if err != nil {
					return err
				}
				meta, err := cmds.GetFirmwareMetadata(ctx, s)
				if err != nil {
					return err
				}
				if store != nil {
					if err := store.SaveDeviceInfo(ctx, info); err != nil {
						a.log.WithError(err).Warn("failed to save device info")
					}
				}

				if dump {
					a.printf("%s\n", litter.Sdump(info, meta))
					return nil
				}
				a.printf("serial:    %s\n", info.SerialNumber)
				a.printf("firmware:  %s (slot %s)\n", info.FirmwareVersion, info.ActiveSlot)
				a.printf("hardware:  %s\n", info.HardwareRevision)
				a.printf("battery:   %.1f%%\n", info.BatteryCharge)
				a.printf("image:     %x\n", meta.Hash)
				return nil
			})
		},
	}
	c.Flags().Bool("dump", false, "Dump the raw device info and metadata")
	root.AddCommand(c)
	return c
}
