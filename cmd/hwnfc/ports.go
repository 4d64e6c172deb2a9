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
	"github.com/ZaparooProject/go-hwnfc/transport/i2c"
	"github.com/ZaparooProject/go-hwnfc/transport/uart"
	"github.com/spf13/cobra"
)

func newPortsCmd(root *cobra.Command, a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "ports",
		Args:  cobra.ExactArgs(0),
		Short: "List serial ports and I2C buses that may host a reader",
		RunE: func(*cobra.Command, []string) error {
			ports, err := uart.Discover(uart.DiscoverOptions{
				Blocklist:   a.cfg.Blocklist,
				IgnorePaths: a.cfg.IgnorePaths,
			})
			if err != nil {
				return err
			}
			for _, p := range ports {
				if p.IsUSB {
					a.printf("uart %s\t%s\t%s\n", p.Name, p.VIDPID, p.Product)
				} else {
					a.printf("uart %s\n", p.Name)
				}
			}

			buses, err := i2c.Buses()
			if err != nil {
				a.log.WithError(err).Debug("no I2C support")
				return nil
			}
			for _, b := range buses {
				a.printf("i2c  %s\n", b)
			}
			return nil
		},
	}
	root.AddCommand(c)
	return c
}
