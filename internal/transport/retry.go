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

// Package transport provides internal retry utilities shared by the command
// pipeline and the physical transports
package transport

import (
	"context"
	"errors"
	"time"
)

// ErrRetryTimeout is returned by TimeoutRetry when the deadline passes
var ErrRetryTimeout = errors.New("retry deadline exceeded")

// RetryOperation is one attempt. attempt counts from 1.
type RetryOperation[T any] func(ctx context.Context, attempt int) (T, error)

// RetryConfig configures retry behavior
type RetryConfig struct {
	// Retryable decides whether a failed attempt may be repeated. A nil
	// Retryable never retries.
	Retryable func(err error) bool
	// OnRetry runs before every repeated attempt. Returning an error stops
	// the loop with that error.
	OnRetry       func(attempt int, lastErr error) error
	OnRetryFailed func(attempts int, lastErr error)
	Description   string
	MaxAttempts   int
	RetryDelay    time.Duration
}

// WithRetry runs operation until it succeeds, fails with an error Retryable
// rejects, or MaxAttempts attempts have been made. The last error is returned
// unchanged so callers can inspect its type.
func WithRetry[T any](ctx context.Context, config RetryConfig, operation RetryOperation[T]) (T, error) {
	var zero T
	maxAttempts := config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := executeRetryCallback(config, attempt, lastErr); err != nil {
				return zero, err
			}
			if err := sleepCtx(ctx, config.RetryDelay); err != nil {
				return zero, lastErr
			}
		}

		result, err := operation(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil || config.Retryable == nil || !config.Retryable(err) {
			return zero, err
		}
	}

	if config.OnRetryFailed != nil {
		config.OnRetryFailed(maxAttempts, lastErr)
	}
	return zero, lastErr
}

func executeRetryCallback(config RetryConfig, attempt int, lastErr error) error {
	if config.OnRetry != nil {
		return config.OnRetry(attempt, lastErr)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PollOperation is one poll. done reports whether polling can stop.
type PollOperation[T any] func() (result T, done bool, err error)

// TimeoutRetry polls operation until it reports done, returns an error, or
// the timeout passes. The first poll always runs, even with a zero timeout.
func TimeoutRetry[T any](ctx context.Context, timeout, interval time.Duration, operation PollOperation[T]) (T, error) {
	var zero T
	deadline := time.Now().Add(timeout)

	for {
		result, done, err := operation()
		if err != nil {
			return zero, err
		}
		if done {
			return result, nil
		}
		if !time.Now().Before(deadline) {
			return zero, ErrRetryTimeout
		}
		if err := sleepCtx(ctx, min(interval, time.Until(deadline))); err != nil {
			return zero, err
		}
	}
}
