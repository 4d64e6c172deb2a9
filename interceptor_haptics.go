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
)

// HapticPattern is a vibration played to the user
type HapticPattern string

const (
	HapticConnected HapticPattern = "connected"
	HapticSuccess   HapticPattern = "success"
	HapticFailure   HapticPattern = "failure"
)

// HapticsPlayer vibrates the phone
type HapticsPlayer interface {
	Play(pattern HapticPattern)
}

// HapticsFunc adapts a function to HapticsPlayer
type HapticsFunc func(pattern HapticPattern)

// Play implements HapticsPlayer
func (f HapticsFunc) Play(pattern HapticPattern) {
	f(pattern)
}

// NoopHaptics returns a player that does nothing
func NoopHaptics() HapticsPlayer {
	return HapticsFunc(func(HapticPattern) {})
}

// Haptics vibrates when the tag connects and again with the outcome of the
// transaction.
func Haptics(player HapticsPlayer) Interceptor {
	if player == nil {
		player = NoopHaptics()
	}
	return Interceptor{
		Name: InterceptorHaptics,
		Wrap: func(next Effect) Effect {
			return func(ctx context.Context, s *Session, cmds Commands) error {
				s.OnTagConnected(func() {
					player.Play(HapticConnected)
				})

				err := next(ctx, s, cmds)
				if err != nil {
					player.Play(HapticFailure)
					return err
				}
				player.Play(HapticSuccess)
				return nil
			}
		},
	}
}
