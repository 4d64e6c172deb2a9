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

package emulator

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"github.com/ZaparooProject/go-hwnfc/internal/wire"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const seedSize = 32

var errSealedTooShort = errors.New("sealed data too short")

// keyring holds every secret derived from the device seed
type keyring struct {
	seed     []byte
	auth     *btcec.PrivateKey
	batch    *btcec.PrivateKey
	identity *btcec.PrivateKey
	sealKey  []byte
}

func newKeyring(seed []byte) (*keyring, error) {
	if len(seed) == 0 {
		seed = make([]byte, seedSize)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("failed to generate seed: %w", err)
		}
	}

	k := &keyring{seed: seed}
	var err error
	if k.auth, err = k.privateKey("auth"); err != nil {
		return nil, err
	}
	if k.batch, err = k.privateKey("cert/batch"); err != nil {
		return nil, err
	}
	if k.identity, err = k.privateKey("cert/device_identity"); err != nil {
		return nil, err
	}
	if k.sealKey, err = k.derive("seal", chacha20poly1305.KeySize); err != nil {
		return nil, err
	}
	return k, nil
}

// derive expands the seed into size bytes bound to label
func (k *keyring) derive(label string, size int) ([]byte, error) {
	out := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, k.seed, nil, []byte(label)), out); err != nil {
		return nil, fmt.Errorf("failed to derive %s: %w", label, err)
	}
	return out, nil
}

func (k *keyring) privateKey(label string) (*btcec.PrivateKey, error) {
	secret, err := k.derive(label, btcec.PrivKeyBytesLen)
	if err != nil {
		return nil, err
	}
	priv, _ := btcec.PrivKeyFromBytes(secret)
	return priv, nil
}

// spendingKey derives the key at index for network
func (k *keyring) spendingKey(network hwnfc.Network, index uint32) (*btcec.PrivateKey, *hwnfc.SpendingKey, error) {
	label := fmt.Sprintf("spend/%s/%d", network, index)
	priv, err := k.privateKey(label)
	if err != nil {
		return nil, nil, err
	}
	chainCode, err := k.derive(label+"/chain", 32)
	if err != nil {
		return nil, nil, err
	}
	return priv, &hwnfc.SpendingKey{
		Network:   network,
		PublicKey: priv.PubKey().SerializeCompressed(),
		ChainCode: chainCode,
		Index:     index,
	}, nil
}

// sign returns a DER signature over sha256(msg)
func sign(key *btcec.PrivateKey, msg []byte) []byte {
	digest := sha256.Sum256(msg)
	return ecdsa.Sign(key, digest[:]).Serialize()
}

// verify checks a DER signature over sha256(msg) against a compressed or
// uncompressed public key
func verify(pubKey, msg, signature []byte) bool {
	key, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(msg)
	return sig.Verify(digest[:], key)
}

// seal encrypts data as nonce || ciphertext
func (k *keyring) seal(data []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(k.sealKey)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(data)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, data, nil), nil
}

func (k *keyring) unseal(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(k.sealKey)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, errSealedTooShort
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}

func (e *Emulator) authenticationKey(*wire.Request) ([]byte, error) {
	return wire.OK(e.keys.auth.PubKey().SerializeCompressed())
}

func (e *Emulator) signChallenge(req *wire.Request) ([]byte, error) {
	var args wire.ChallengeArgs
	if resp, ok := decodeArgs(req, &args); !ok {
		return resp, nil
	}
	if len(args.Challenge) == 0 {
		return reject(CodeBadArguments, "empty challenge")
	}
	return wire.OK(sign(e.keys.auth, args.Challenge))
}

func (e *Emulator) initialSpendingKey(req *wire.Request) ([]byte, error) {
	var args wire.NetworkArgs
	if resp, ok := decodeArgs(req, &args); !ok {
		return resp, nil
	}
	_, key, err := e.keys.spendingKey(hwnfc.Network(args.Network), 0)
	if err != nil {
		return nil, err
	}
	return wire.OK(key)
}

// nextSpendingKey derives the key after the highest index the app holds
func (e *Emulator) nextSpendingKey(req *wire.Request) ([]byte, error) {
	var args wire.NextKeyArgs
	if resp, ok := decodeArgs(req, &args); !ok {
		return resp, nil
	}
	next := uint32(0)
	for _, index := range args.ExistingIndexes {
		if index >= next {
			next = index + 1
		}
	}
	_, key, err := e.keys.spendingKey(hwnfc.Network(args.Network), next)
	if err != nil {
		return nil, err
	}
	return wire.OK(key)
}

// signTransaction answers with a DER signature over sha256(psbt) made by the
// bitcoin spending key at the requested index. It stands in for a signed PSBT.
func (e *Emulator) signTransaction(req *wire.Request) ([]byte, error) {
	var args wire.SignTransactionArgs
	if resp, ok := decodeArgs(req, &args); !ok {
		return resp, nil
	}
	if len(args.PSBT) == 0 {
		return reject(CodeBadArguments, "empty psbt")
	}
	priv, _, err := e.keys.spendingKey(hwnfc.NetworkBitcoin, args.KeyIndex)
	if err != nil {
		return nil, err
	}
	return wire.OK(sign(priv, args.PSBT))
}

func (e *Emulator) sealData(req *wire.Request) ([]byte, error) {
	var args wire.DataArgs
	if resp, ok := decodeArgs(req, &args); !ok {
		return resp, nil
	}
	sealed, err := e.keys.seal(args.Data)
	if err != nil {
		return nil, err
	}
	return wire.OK(sealed)
}

func (e *Emulator) unsealData(req *wire.Request) ([]byte, error) {
	var args wire.DataArgs
	if resp, ok := decodeArgs(req, &args); !ok {
		return resp, nil
	}
	data, err := e.keys.unseal(args.Data)
	if err != nil {
		return reject(CodeVerifyFailed, "unseal: %v", err)
	}
	return wire.OK(data)
}

// cert answers with the compressed public key of the requested certificate.
// Real hardware returns an X.509 certificate.
func (e *Emulator) cert(req *wire.Request) ([]byte, error) {
	var args wire.CertArgs
	if resp, ok := decodeArgs(req, &args); !ok {
		return resp, nil
	}
	switch hwnfc.CertKind(args.Kind) {
	case hwnfc.CertBatch:
		return wire.OK(e.keys.batch.PubKey().SerializeCompressed())
	case hwnfc.CertDeviceIdentity:
		return wire.OK(e.keys.identity.PubKey().SerializeCompressed())
	default:
		return reject(CodeNotFound, "unknown certificate %q", args.Kind)
	}
}

// attestation checks that the app holds this device's identity certificate
func (e *Emulator) attestation(req *wire.Request) ([]byte, error) {
	var args wire.AttestationArgs
	if resp, ok := decodeArgs(req, &args); !ok {
		return resp, nil
	}
	if len(args.Challenge) == 0 {
		return reject(CodeBadArguments, "empty challenge")
	}
	own := e.keys.identity.PubKey().SerializeCompressed()
	return wire.OK(bytes.Equal(args.Identity, own))
}
