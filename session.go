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
	"time"

	"github.com/google/uuid"
)

// PairingVerifier checks the device's signature over challenge. It returns
// false when the device is not the one bonded to the account.
type PairingVerifier func(challenge, signature []byte) bool

// PairingRequirement says whether a transaction must first prove it talks to
// the paired hardware. Build one with Required or NotRequired.
type PairingRequirement struct {
	verify    PairingVerifier
	challenge []byte
	required  bool
}

// NotRequired skips pairing validation
func NotRequired() PairingRequirement {
	return PairingRequirement{}
}

// Required makes every transaction sign challenge and pass it to verify
// before anything else runs. A nil challenge is replaced by random bytes
// per session.
func Required(challenge []byte, verify PairingVerifier) PairingRequirement {
	return PairingRequirement{required: true, challenge: challenge, verify: verify}
}

// IsRequired reports whether pairing is validated
func (p PairingRequirement) IsRequired() bool {
	return p.required
}

// SessionParameters configure one tap
type SessionParameters struct {
	RequirePairedHardware PairingRequirement
	// NfcFlowName labels the session in logs and metrics
	NfcFlowName string
	// IsHardwareFake routes the session to the emulator
	IsHardwareFake bool
	// NeedsAuthentication fails the session early if the device is locked
	NeedsAuthentication bool
	// ShouldLock locks the device when the transaction ends
	ShouldLock bool
	// SkipFirmwareTelemetry disables telemetry collection for this session
	SkipFirmwareTelemetry bool
}

// Session is one physical tap. It is owned by the transaction running on it
// and is not safe for concurrent use.
type Session struct {
	startedAt    time.Time
	identity     *HardwareIdentity
	id           string
	message      string
	params       SessionParameters
	connected    []func()
	disconnected []func()
}

// NewSession creates a session with a fresh correlation id
func NewSession(params SessionParameters) *Session {
	return &Session{
		id:        uuid.NewString(),
		params:    params,
		startedAt: time.Now(),
	}
}

// ID returns the correlation id
func (s *Session) ID() string {
	return s.id
}

// Params returns the session parameters
func (s *Session) Params() SessionParameters {
	return s.params
}

// StartedAt returns when the session was created
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Identity returns what the tag said about itself, if it was read
func (s *Session) Identity() *HardwareIdentity {
	return s.identity
}

// Message returns the status line shown to the user
func (s *Session) Message() string {
	return s.message
}

// SetMessage replaces the status line shown to the user
func (s *Session) SetMessage(msg string) {
	s.message = msg
}

// OnTagConnected registers fn to run when the tag connects
func (s *Session) OnTagConnected(fn func()) {
	s.connected = append(s.connected, fn)
}

// OnTagDisconnected registers fn to run when the tag leaves the field
func (s *Session) OnTagDisconnected(fn func()) {
	s.disconnected = append(s.disconnected, fn)
}

func (s *Session) notifyTagConnected() {
	for _, fn := range s.connected {
		fn()
	}
}

func (s *Session) notifyTagDisconnected() {
	for _, fn := range s.disconnected {
		fn()
	}
}
