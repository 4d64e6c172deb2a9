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
)

// Status lines set on the session while a transaction runs
const (
	MessageHoldNear      = "Hold device here behind phone"
	MessageCommunicating = "Communicating with device..."
	MessageSuccess       = "Success"
	MessageFailure       = "Error. Try again."
	MessageTagLost       = "Device moved away. Try again."
	MessageUnpaired      = "This device is not paired with your account."
	MessageLocked        = "Device is locked. Unlock it and try again."
	MessageTimedOut      = "Took too long. Try again."
)

// SessionMessages keeps the session's status line in step with the
// transaction: waiting for the tag, talking to it, then the outcome.
func SessionMessages() Interceptor {
	return Interceptor{
		Name: InterceptorMessages,
		Wrap: func(next Effect) Effect {
			return func(ctx context.Context, s *Session, cmds Commands) error {
				s.SetMessage(MessageHoldNear)
				s.OnTagConnected(func() {
					s.SetMessage(MessageCommunicating)
				})

				err := next(ctx, s, cmds)
				s.SetMessage(outcomeMessage(err))
				return err
			}
		},
	}
}

func outcomeMessage(err error) string {
	switch {
	case err == nil:
		return MessageSuccess
	case errors.Is(err, ErrTagLost):
		return MessageTagLost
	case errors.Is(err, ErrUnpairedHardware):
		return MessageUnpaired
	case errors.Is(err, ErrUnauthenticated):
		return MessageLocked
	case errors.Is(err, ErrSessionTimeout):
		return MessageTimedOut
	default:
		return MessageFailure
	}
}
