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
	"crypto/rand"
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

const pairingChallengeSize = 32

// VerifySecp256k1 returns a PairingVerifier accepting DER signatures over
// sha256(challenge) made by the secp256k1 key pubKey, the device's
// authentication key recorded at pairing time.
func VerifySecp256k1(pubKey []byte) PairingVerifier {
	key, err := btcec.ParsePubKey(pubKey)
	return func(challenge, signature []byte) bool {
		if err != nil {
			return false
		}
		sig, sigErr := ecdsa.ParseDERSignature(signature)
		if sigErr != nil {
			return false
		}
		digest := sha256.Sum256(challenge)
		return sig.Verify(digest[:], key)
	}
}

func newPairingChallenge() ([]byte, error) {
	challenge := make([]byte, pairingChallengeSize)
	if _, err := rand.Read(challenge); err != nil {
		return nil, err
	}
	return challenge, nil
}
