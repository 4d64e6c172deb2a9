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
	"encoding/hex"
	"fmt"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"github.com/ZaparooProject/go-hwnfc/internal/wire"
	"github.com/btcsuite/btcd/btcec/v2"
)

const (
	handleSize        = 16
	grantVersion      = 1
	grantChallengeLen = 16
)

// confirmation is an operation waiting on the user
type confirmation struct {
	approved *bool
	apply    func()
	handle   wire.Handle
}

// pendingGrant is the last grant request handed out
type pendingGrant struct {
	request hwnfc.GrantRequest
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// await registers apply to run once the user approves and answers with a
// pending response
func (e *Emulator) await(apply func()) ([]byte, error) {
	response, err := randomBytes(handleSize)
	if err != nil {
		return nil, err
	}
	confirm, err := randomBytes(handleSize)
	if err != nil {
		return nil, err
	}
	c := &confirmation{apply: apply, handle: wire.Handle{Response: response, Confirmation: confirm}}
	e.confirms[hex.EncodeToString(confirm)] = c
	return wire.Pending(c.handle)
}

func (e *Emulator) lookupConfirmation(h wire.Handle) *confirmation {
	c, ok := e.confirms[hex.EncodeToString(h.Confirmation)]
	if !ok || !bytes.Equal(c.handle.Response, h.Response) {
		return nil
	}
	return c
}

// Confirm answers every pending confirmation as a user on the device would
func (e *Emulator) Confirm(approve bool) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.confirms {
		c.approved = &approve
	}
	return len(e.confirms)
}

func (e *Emulator) selectConfirmation(req *wire.Request) ([]byte, error) {
	var args wire.SelectArgs
	if resp, ok := decodeArgs(req, &args); !ok {
		return resp, nil
	}
	c := e.lookupConfirmation(args.Handle)
	if c == nil {
		return reject(CodeNotFound, "unknown confirmation handle")
	}
	approve := args.Approve
	c.approved = &approve
	return wire.OK(nil)
}

func (e *Emulator) confirmationResult(req *wire.Request) ([]byte, error) {
	var args wire.HandleArgs
	if resp, ok := decodeArgs(req, &args); !ok {
		return resp, nil
	}
	c := e.lookupConfirmation(args.Handle)
	if c == nil {
		return reject(CodeNotFound, "unknown confirmation handle")
	}
	if c.approved == nil {
		return wire.Pending(c.handle)
	}

	delete(e.confirms, hex.EncodeToString(c.handle.Confirmation))
	if !*c.approved {
		return wire.OK(false)
	}
	c.apply()
	return wire.OK(true)
}

// wipeDevice waits for the user, then forgets every secret and fingerprint
func (e *Emulator) wipeDevice(*wire.Request) ([]byte, error) {
	return e.await(func() {
		keys, err := newKeyring(nil)
		if err != nil {
			e.log().WithError(err).Warn("failed to reseed after wipe")
		} else {
			e.keys = keys
		}
		e.fingerprints = make(map[uint32]string)
		e.enrollment = nil
		e.grant = nil
		e.locked = false
		e.unlock = hwnfc.UnlockInfo{Method: hwnfc.UnlockUnspecified}
		e.log().Info("device wiped")
	})
}

// grantRequest hands out a signed request, replacing any earlier one
func (e *Emulator) grantRequest(req *wire.Request) ([]byte, error) {
	var args wire.GrantActionArgs
	if resp, ok := decodeArgs(req, &args); !ok {
		return resp, nil
	}
	action := hwnfc.GrantAction(args.Action)
	if action != hwnfc.GrantActionFingerprintReset && action != hwnfc.GrantActionTransactionVerify {
		return reject(CodeBadArguments, "unknown grant action %q", args.Action)
	}
	challenge, err := randomBytes(grantChallengeLen)
	if err != nil {
		return nil, err
	}

	gr := hwnfc.GrantRequest{
		Version:   grantVersion,
		DeviceID:  []byte(e.config.Serial),
		Challenge: challenge,
		Action:    action,
	}
	body, err := grantBody(&gr)
	if err != nil {
		return nil, err
	}
	gr.Signature = sign(e.keys.auth, body)
	e.grant = &pendingGrant{request: gr}
	return wire.OK(&gr)
}

// provideGrant applies a server grant for the pending request
func (e *Emulator) provideGrant(req *wire.Request) ([]byte, error) {
	var args wire.GrantArgs
	if resp, ok := decodeArgs(req, &args); !ok {
		return resp, nil
	}
	if e.grant == nil {
		return reject(CodeInvalidState, "no grant request pending")
	}
	if e.config.GrantKey == nil || !verify(e.config.GrantKey, args.Request, args.Signature) {
		return wire.OK(false)
	}

	var granted hwnfc.GrantRequest
	if err := wire.Unmarshal(args.Request, &granted); err != nil {
		return reject(CodeBadArguments, "grant request: %v", err)
	}
	if !bytes.Equal(granted.Challenge, e.grant.request.Challenge) || granted.Action != e.grant.request.Action {
		return wire.OK(false)
	}

	if granted.Action == hwnfc.GrantActionFingerprintReset {
		e.fingerprints = make(map[uint32]string)
		e.enrollment = nil
	}
	e.grant = nil
	return wire.OK(true)
}

// grantBody is what the device signs in a grant request: every field but
// the signature
func grantBody(gr *hwnfc.GrantRequest) ([]byte, error) {
	unsigned := *gr
	unsigned.Signature = nil
	return wire.Marshal(&unsigned)
}

// SignGrant answers req the way the grant server would, signing the encoded
// request with key
func SignGrant(key *btcec.PrivateKey, req *hwnfc.GrantRequest) (*hwnfc.Grant, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil grant request", hwnfc.ErrInvalidParameter)
	}
	encoded, err := wire.Marshal(req)
	if err != nil {
		return nil, err
	}
	return &hwnfc.Grant{
		Version:   req.Version,
		Request:   encoded,
		Signature: sign(key, encoded),
	}, nil
}
