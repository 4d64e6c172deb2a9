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
	"fmt"
	"time"
)

// Option is a functional option for configuring a Transactor
type Option func(*Transactor) error

// WithPlatform sets the platform and resets the timeout policy to its default
func WithPlatform(platform Platform) Option {
	return func(t *Transactor) error {
		t.config.Platform = platform
		t.config.Timeout = DefaultTimeoutPolicy(platform)
		return nil
	}
}

// WithMaxAttempts sets the number of attempts for retryable commands
func WithMaxAttempts(maxAttempts int) Option {
	return func(t *Transactor) error {
		if maxAttempts < 1 {
			return fmt.Errorf("%w: max attempts %d", ErrInvalidParameter, maxAttempts)
		}
		t.config.Retry.MaxAttempts = maxAttempts
		return nil
	}
}

// WithRetryDelay sets the pause between attempts
func WithRetryDelay(delay time.Duration) Option {
	return func(t *Transactor) error {
		t.config.Retry.Delay = delay
		return nil
	}
}

// WithTimeout enables the session timeout with the given duration. Zero
// disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(t *Transactor) error {
		t.config.Timeout = TimeoutPolicy{Enabled: timeout > 0, Duration: timeout}
		return nil
	}
}

// WithTracer sets the span sink for command and transaction metrics
func WithTracer(tracer Tracer) Option {
	return func(t *Transactor) error {
		if tracer == nil {
			tracer = NoopTracer()
		}
		t.config.Tracer = tracer
		return nil
	}
}

// WithMetrics sets the counters updated by every transaction
func WithMetrics(metrics *TransactionMetrics) Option {
	return func(t *Transactor) error {
		if metrics == nil {
			return fmt.Errorf("%w: nil metrics", ErrInvalidParameter)
		}
		t.config.Metrics = metrics
		return nil
	}
}

// WithHaptics sets the vibration player
func WithHaptics(h HapticsPlayer) Option {
	return func(t *Transactor) error {
		if h == nil {
			h = NoopHaptics()
		}
		t.config.Haptics = h
		return nil
	}
}

// WithFirmwareTelemetry enables post-transaction telemetry collection
func WithFirmwareTelemetry(cfg TelemetryConfig) Option {
	return func(t *Transactor) error {
		t.config.FirmwareTelemetry = cfg
		return nil
	}
}

// WithEmulator sets the connector used for sessions with IsHardwareFake
func WithEmulator(c Connector) Option {
	return func(t *Transactor) error {
		t.config.Emulator = c
		return nil
	}
}

// WithPipeline replaces the default interceptor chain
func WithPipeline(p *Pipeline) Option {
	return func(t *Transactor) error {
		if p == nil {
			return fmt.Errorf("%w: nil pipeline", ErrInvalidParameter)
		}
		t.pipeline = p
		return nil
	}
}
