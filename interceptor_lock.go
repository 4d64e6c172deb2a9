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
)

// LockDevice locks the device once the transaction ends, whether it succeeded
// or not. It does nothing when the session does not ask for it or when the
// transaction ended because the session became unusable, since no command
// can reach the device then.
func LockDevice() Interceptor {
	return Interceptor{
		Name: InterceptorLock,
		Wrap: func(next Effect) Effect {
			return func(ctx context.Context, s *Session, cmds Commands) error {
				err := next(ctx, s, cmds)
				if !s.Params().ShouldLock || IsSessionInvalidated(err) || ctx.Err() != nil {
					return err
				}

				_, lockErr := cmds.LockDevice(ctx, s)
				switch {
				case lockErr == nil:
					return err
				case err != nil:
					sessionLog(s).WithError(lockErr).Warn("failed to lock device after failed transaction")
					return err
				default:
					return fmt.Errorf("lock device: %w", lockErr)
				}
			}
		},
	}
}
