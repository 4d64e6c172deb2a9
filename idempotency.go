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
	"maps"
	"slices"
)

// idempotent lists every command and whether it may be issued twice with the
// same effect as issuing it once. Adding a command means adding it here; an
// unlisted command is never retried.
//
// The false entries fall in four groups:
//   - chunk transfer: a duplicate write could land at the wrong offset of the
//     image being assembled
//   - finish transfer: handled by the retry hook's disconnect rule instead
//   - event and coredump draining: each read advances or deletes device data
//   - request/consume confirmation pairs: each call replaces device-side
//     request state, so a retry could discard a grant already issued
var idempotent = map[CommandID]bool{
	CmdVersion:                        true,
	CmdGetDeviceInfo:                  true,
	CmdGetFirmwareMetadata:            true,
	CmdQueryAuthentication:            true,
	CmdLockDevice:                     true,
	CmdGetAuthenticationKey:           true,
	CmdGetInitialSpendingKey:          true,
	CmdGetNextSpendingKey:             true,
	CmdSignChallenge:                  true,
	CmdSignTransaction:                true,
	CmdSealData:                       true,
	CmdUnsealData:                     true,
	CmdStartFingerprintEnrollment:     true,
	CmdGetFingerprintEnrollmentStatus: true,
	CmdCancelFingerprintEnrollment:    true,
	CmdGetEnrolledFingerprints:        true,
	CmdDeleteFingerprint:              true,
	CmdGetUnlockMethod:                true,
	CmdFwupStart:                      true,
	CmdGetCoredumpCount:               true,
	CmdGetCert:                        true,
	CmdSignVerifyAttestationChallenge: true,

	CmdFwupTransfer:          false,
	CmdFwupFinish:            false,
	CmdGetEvents:             false,
	CmdGetCoredumpFragment:   false,
	CmdWipeDevice:            false,
	CmdGetConfirmationResult: false,
	CmdGetGrantRequest:       false,
	CmdProvideGrant:          false,
}

// IsIdempotent reports whether id may be retried on a retryable failure
func IsIdempotent(id CommandID) bool {
	return idempotent[id]
}

// KnownCommands returns every classified command id in sorted order
func KnownCommands() []CommandID {
	return slices.Sorted(maps.Keys(idempotent))
}
