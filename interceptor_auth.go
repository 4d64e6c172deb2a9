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

// RequireAuthentication fails the transaction with ErrUnauthenticated before
// it runs when the session needs an unlocked device and the device is locked.
func RequireAuthentication() Interceptor {
	return Interceptor{
		Name: InterceptorAuthentication,
		Wrap: func(next Effect) Effect {
			return func(ctx context.Context, s *Session, cmds Commands) error {
				if !s.Params().NeedsAuthentication {
					return next(ctx, s, cmds)
				}
				authenticated, err := cmds.QueryAuthentication(ctx, s)
				if err != nil {
					return fmt.Errorf("query authentication: %w", err)
				}
				if !authenticated {
					return ErrUnauthenticated
				}
				return next(ctx, s, cmds)
			}
		},
	}
}
