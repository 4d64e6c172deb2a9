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
	"fmt"
	"os"
	"path/filepath"
	"time"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"github.com/spf13/cobra"
)

// dirUploader stores drained telemetry as files instead of sending it
type dirUploader struct {
	now    func() time.Time
	dir    string
	events int
	dumps  int
	seq    int
}

func (u *dirUploader) write(kind string, info *hwnfc.DeviceInfo, data []byte) error {
	serial := "unknown"
	if info != nil && info.SerialNumber != "" {
		serial = info.SerialNumber
	}
	u.seq++
	name := fmt.Sprintf("%s-%s-%d-%d.bin", serial, kind, u.now().Unix(), u.seq)
	if err := os.WriteFile(filepath.Join(u.dir, name), data, 0o600); err != nil {
		return fmt.Errorf("failed to save %s: %w", kind, err)
	}
	return nil
}

func (u *dirUploader) UploadEvents(_ context.Context, info *hwnfc.DeviceInfo, events []byte) error {
	u.events += len(events)
	return u.write("events", info, events)
}

func (u *dirUploader) UploadCoredump(_ context.Context, info *hwnfc.DeviceInfo, coredump []byte) error {
	u.dumps++
	return u.write("coredump", info, coredump)
}

func newTelemetryCmd(root *cobra.Command, a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "telemetry",
		Args:  cobra.ExactArgs(0),
		Short: "Drain device events and coredumps into a directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("out")
			if err := os.MkdirAll(out, 0o750); err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			db, err := a.openStore()
			if err != nil {
				return err
			}

			uploader := &dirUploader{dir: out, now: time.Now}
			cfg := hwnfc.TelemetryConfig{
				Enabled:  func() bool { return true },
				Uploader: uploader,
			}
			if db != nil {
				cfg.Store = db
			}

			err = a.run(cmd.Context(), "telemetry", func(ctx context.Context, s *hwnfc.Session, cmds hwnfc.Commands) error {
				_, err := cmds.Version(ctx, s)
				return err
			}, hwnfc.WithFirmwareTelemetry(cfg))
			if err != nil {
				return err
			}
			a.printf("events: %d bytes, coredumps: %d\n", uploader.events, uploader.dumps)
			return nil
		},
	}
	c.Flags().String("out", "telemetry", "Directory for drained telemetry")
	root.AddCommand(c)
	return c
}
