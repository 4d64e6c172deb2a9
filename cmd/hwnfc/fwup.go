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
	"github.com/ZaparooProject/go-hwnfc/fwup"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// freshStart hides saved progress so the transfer starts over, while still
// recording new progress
type freshStart struct {
	fwup.ProgressStore
}

func (freshStart) LoadSequenceID(context.Context, fwup.Key) (uint32, bool, error) {
	return 0, false, nil
}

func newFwupCmd(root *cobra.Command, a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "fwup",
		Args:  cobra.ExactArgs(0),
		Short: "Install a firmware image described by a YAML manifest",
		Long: "Install a firmware image described by a YAML manifest. A transfer " +
			"interrupted by a lost tag resumes on the next tap, from the progress " +
			"saved in --db when one is given.",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			manifest, _ := cmd.Flags().GetString("manifest")
			restart, _ := cmd.Flags().GetBool("restart")

			data, err := fwup.LoadManifest(manifest)
			if err != nil {
				return err
			}

			defer func() {
				if closeErr := a.close(); closeErr != nil && err == nil {
					err = closeErr
				}
			}()
			db, err := a.openStore()
			if err != nil {
				return err
			}
			var store fwup.ProgressStore
			if db != nil {
				store = db
				if restart {
					store = freshStart{db}
				}
			}

			t, params, err := a.transactor("fwup")
			if err != nil {
				return err
			}
			status, err := a.update(cmd.Context(), t, params, data, store)
			if err != nil {
				return err
			}
			a.printf("firmware %s: %s\n", data.Version, status)
			return nil
		},
	}
	c.Flags().String("manifest", "", "Path to the update manifest")
	c.Flags().Bool("restart", false, "Ignore saved progress and start the transfer over")
	_ = c.MarkFlagRequired("manifest")
	root.AddCommand(c)
	return c
}

// update runs transfer taps until the image is installed, a tap fails for
// good or the configured number of taps is used up
func (a *app) update(
	ctx context.Context, t *hwnfc.Transactor, params hwnfc.SessionParameters, data *fwup.Data, store fwup.ProgressStore,
) (hwnfc.FwupFinishStatus, error) {
	lastDecile := -1
	onProgress := func(p fwup.Progress) {
		if decile := int(p.Percentage) / 10; decile != lastDecile {
			lastDecile = decile
			a.log.WithField("percent", int(p.Percentage)).Info("transferring firmware")
		}
	}

	var resumed *fwup.Resume
	for tap := 1; ; tap++ {
		var status hwnfc.FwupFinishStatus
		var err error
		if resumed != nil && store == nil {
			// Without a store the resume point only lives in the error.
			status, err = hwnfc.Transact(ctx, t, params, func(ctx context.Context, s *hwnfc.Session, cmds hwnfc.Commands) (hwnfc.FwupFinishStatus, error) {
				return fwup.NewUpdater().Run(ctx, s, cmds, data, *resumed, onProgress)
			})
		} else {
			status, err = fwup.Update(ctx, t, params, data, store, onProgress)
		}
		if err == nil {
			return status, nil
		}

		resume, ok := fwup.ResumePoint(err)
		if !ok || tap >= a.cfg.Taps || errors.Is(err, context.Canceled) {
			return status, err
		}
		resumed = &resume
		a.log.WithFields(logrus.Fields{
			"tap":    tap,
			"resume": resume.String(),
		}).WithError(err).Warn("transfer interrupted, tap again to continue")
	}
}
