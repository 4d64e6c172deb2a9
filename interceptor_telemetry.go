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

package hwnfc

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Bounds on how much telemetry one tap drains
const (
	maxEventFragments    = 256
	maxCoredumps         = 8
	maxCoredumpFragments = 512
)

// FeatureFlag reports whether a feature is on. It is read once per session.
type FeatureFlag func() bool

// DeviceInfoStore persists the last device info seen
type DeviceInfoStore interface {
	SaveDeviceInfo(ctx context.Context, info *DeviceInfo) error
}

// TelemetryUploader sends drained telemetry to the backend
type TelemetryUploader interface {
	UploadEvents(ctx context.Context, info *DeviceInfo, events []byte) error
	UploadCoredump(ctx context.Context, info *DeviceInfo, coredump []byte) error
}

// TelemetryConfig configures post-transaction telemetry collection
type TelemetryConfig struct {
	Enabled  FeatureFlag
	Store    DeviceInfoStore
	Uploader TelemetryUploader
}

// CollectFirmwareTelemetry reads device info, events and coredumps after a
// successful transaction, persists the device info and uploads the rest. It
// is skipped when the flag is off or the session opts out. Collection
// failures are logged and never change the transaction's outcome.
func CollectFirmwareTelemetry(cfg TelemetryConfig) Interceptor {
	return Interceptor{
		Name: InterceptorTelemetry,
		Wrap: func(next Effect) Effect {
			return func(ctx context.Context, s *Session, cmds Commands) error {
				if err := next(ctx, s, cmds); err != nil {
					return err
				}
				if s.Params().SkipFirmwareTelemetry || cfg.Enabled == nil || !cfg.Enabled() {
					return nil
				}
				if err := collectTelemetry(ctx, s, cmds, cfg); err != nil {
					sessionLog(s).WithError(err).Warn("firmware telemetry collection failed")
				}
				return nil
			}
		},
	}
}

func collectTelemetry(ctx context.Context, s *Session, cmds Commands, cfg TelemetryConfig) error {
	info, err := cmds.GetDeviceInfo(ctx, s)
	if err != nil {
		return fmt.Errorf("read device info: %w", err)
	}

	var result *multierror.Error
	if cfg.Store != nil {
		if err := cfg.Store.SaveDeviceInfo(ctx, info); err != nil {
			result = multierror.Append(result, fmt.Errorf("persist device info: %w", err))
		}
	}

	events, err := drainEvents(ctx, s, cmds)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("drain events: %w", err))
	}
	if len(events) > 0 && cfg.Uploader != nil {
		if err := cfg.Uploader.UploadEvents(ctx, info, events); err != nil {
			result = multierror.Append(result, fmt.Errorf("upload events: %w", err))
		}
	}

	coredumps, err := drainCoredumps(ctx, s, cmds)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("drain coredumps: %w", err))
	}
	for i, dump := range coredumps {
		if cfg.Uploader == nil {
			break
		}
		if err := cfg.Uploader.UploadCoredump(ctx, info, dump); err != nil {
			result = multierror.Append(result, fmt.Errorf("upload coredump %d: %w", i, err))
		}
	}

	sessionLog(s).WithFields(logrus.Fields{
		"serial":    info.SerialNumber,
		"events":    len(events),
		"coredumps": len(coredumps),
	}).Debug("collected firmware telemetry")

	return result.ErrorOrNil()
}

// drainEvents reads event fragments until the device reports none remain.
// Whatever was read before a failure is returned with the error, since the
// device has already advanced past it.
func drainEvents(ctx context.Context, s *Session, cmds Commands) ([]byte, error) {
	var events []byte
	for i := 0; i < maxEventFragments; i++ {
		frag, err := cmds.GetEvents(ctx, s)
		if err != nil {
			return events, err
		}
		if frag == nil {
			return events, nil
		}
		events = append(events, frag.Fragment...)
		if frag.RemainingSize == 0 {
			return events, nil
		}
	}
	return events, nil
}

// drainCoredumps reads every complete coredump held by the device
func drainCoredumps(ctx context.Context, s *Session, cmds Commands) ([][]byte, error) {
	count, err := cmds.GetCoredumpCount(ctx, s)
	if err != nil {
		return nil, err
	}
	if count > maxCoredumps {
		count = maxCoredumps
	}

	var dumps [][]byte
	for n := 0; n < count; n++ {
		dump, err := readCoredump(ctx, s, cmds)
		if err != nil {
			return dumps, err
		}
		dumps = append(dumps, dump)
	}
	return dumps, nil
}

func readCoredump(ctx context.Context, s *Session, cmds Commands) ([]byte, error) {
	var dump []byte
	var offset uint32
	for i := 0; i < maxCoredumpFragments; i++ {
		frag, err := cmds.GetCoredumpFragment(ctx, s, offset)
		if err != nil {
			return nil, err
		}
		if frag == nil {
			return nil, fmt.Errorf("%w: no coredump fragment at offset %d", ErrInvalidResponse, offset)
		}
		dump = append(dump, frag.Data...)
		offset += uint32(len(frag.Data))
		if frag.Complete {
			return dump, nil
		}
		if len(frag.Data) == 0 {
			return nil, fmt.Errorf("%w: empty coredump fragment at offset %d", ErrInvalidResponse, offset)
		}
	}
	return nil, fmt.Errorf("%w: coredump exceeds %d fragments", ErrInvalidResponse, maxCoredumpFragments)
}
