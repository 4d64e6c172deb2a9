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
	"errors"
	"fmt"
	"time"
)

// TimeoutPolicy bounds how long a transaction may take
type TimeoutPolicy struct {
	Duration time.Duration
	Enabled  bool
}

// TimeoutSession cancels the transaction with ErrSessionTimeout once the
// policy's duration has passed. A transaction that overran the deadline fails
// with ErrSessionTimeout even when nothing inside noticed the cancellation.
// A disabled policy passes the transaction through untouched.
func TimeoutSession(policy TimeoutPolicy) Interceptor {
	return Interceptor{
		Name: InterceptorTimeout,
		Wrap: func(next Effect) Effect {
			if !policy.Enabled || policy.Duration <= 0 {
				return next
			}
			return func(ctx context.Context, s *Session, cmds Commands) error {
				ctx, cancel := context.WithTimeoutCause(ctx, policy.Duration, ErrSessionTimeout)
				defer cancel()

				err := next(ctx, s, cmds)
				if !errors.Is(context.Cause(ctx), ErrSessionTimeout) || errors.Is(err, ErrSessionTimeout) {
					return err
				}
				if err == nil {
					return fmt.Errorf("%w after %s", ErrSessionTimeout, policy.Duration)
				}
				return fmt.Errorf("%w after %s: %w", ErrSessionTimeout, policy.Duration, err)
			}
		},
	}
}
