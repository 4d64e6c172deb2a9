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
	"time"
)

// Platform is the host the transport runs on. It decides defaults that
// depend on the platform's own NFC stack.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformLinux   Platform = "linux"
)

const defaultSessionTimeout = 60 * time.Second

// Config holds everything a Transactor needs to build its pipeline
type Config struct {
	Tracer            Tracer
	Metrics           *TransactionMetrics
	Haptics           HapticsPlayer
	Emulator          Connector
	FirmwareTelemetry TelemetryConfig
	Platform          Platform
	Timeout           TimeoutPolicy
	Retry             RetryPolicy
}

// DefaultConfig returns the configuration for platform
func DefaultConfig(platform Platform) *Config {
	return &Config{
		Platform: platform,
		Retry:    DefaultRetryPolicy(),
		Timeout:  DefaultTimeoutPolicy(platform),
		Tracer:   NoopTracer(),
		Metrics:  &TransactionMetrics{},
		Haptics:  NoopHaptics(),
	}
}

// DefaultTimeoutPolicy returns the session timeout policy for platform.
// iOS reader sessions end on their own after 60 seconds and the two timers
// race, so the session timeout is off there until it can defer to the
// platform's.
func DefaultTimeoutPolicy(platform Platform) TimeoutPolicy {
	if platform == PlatformIOS {
		return TimeoutPolicy{Enabled: false, Duration: defaultSessionTimeout}
	}
	return TimeoutPolicy{Enabled: true, Duration: defaultSessionTimeout}
}
