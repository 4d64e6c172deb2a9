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

// ValidatePairing makes the device sign a challenge and hands the signature
// to the session's verifier before the rest of the transaction runs. A failed
// verification ends the transaction with ErrUnpairedHardware and no further
// command is sent.
func ValidatePairing() Interceptor {
	return Interceptor{
		Name: InterceptorPairing,
		Wrap: func(next Effect) Effect {
			return func(ctx context.Context, s *Session, cmds Commands) error {
				req := s.Params().RequirePairedHardware
				if !req.IsRequired() {
					return next(ctx, s, cmds)
				}
				if err := checkPairing(ctx, s, cmds, req); err != nil {
					return err
				}
				return next(ctx, s, cmds)
			}
		},
	}
}

func checkPairing(ctx context.Context, s *Session, cmds Commands, req PairingRequirement) error {
	if req.verify == nil {
		return fmt.Errorf("%w: no pairing verifier", ErrInvalidParameter)
	}

	challenge := req.challenge
	if len(challenge) == 0 {
		var err error
		if challenge, err = newPairingChallenge(); err != nil {
			return fmt.Errorf("failed to create pairing challenge: %w", err)
		}
	}

	signature, err := cmds.SignChallenge(ctx, s, challenge)
	if err != nil {
		return fmt.Errorf("pairing challenge: %w", err)
	}
	if !req.verify(challenge, signature) {
		sessionLog(s).Warn("pairing verification failed")
		return ErrUnpairedHardware
	}
	return nil
}
