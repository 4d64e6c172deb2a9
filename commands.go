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

import "context"

// CommandID names one hardware operation
type CommandID string

// Hardware command identifiers
const (
	CmdVersion                        CommandID = "version"
	CmdGetDeviceInfo                  CommandID = "get_device_info"
	CmdGetFirmwareMetadata            CommandID = "get_firmware_metadata"
	CmdQueryAuthentication            CommandID = "query_authentication"
	CmdLockDevice                     CommandID = "lock_device"
	CmdGetAuthenticationKey           CommandID = "get_authentication_key"
	CmdGetInitialSpendingKey          CommandID = "get_initial_spending_key"
	CmdGetNextSpendingKey             CommandID = "get_next_spending_key"
	CmdSignChallenge                  CommandID = "sign_challenge"
	CmdSignTransaction                CommandID = "sign_transaction"
	CmdSealData                       CommandID = "seal_data"
	CmdUnsealData                     CommandID = "unseal_data"
	CmdStartFingerprintEnrollment     CommandID = "start_fingerprint_enrollment"
	CmdGetFingerprintEnrollmentStatus CommandID = "get_fingerprint_enrollment_status"
	CmdCancelFingerprintEnrollment    CommandID = "cancel_fingerprint_enrollment"
	CmdGetEnrolledFingerprints        CommandID = "get_enrolled_fingerprints"
	CmdDeleteFingerprint              CommandID = "delete_fingerprint"
	CmdGetUnlockMethod                CommandID = "get_unlock_method"
	CmdFwupStart                      CommandID = "fwup_start"
	CmdFwupTransfer                   CommandID = "fwup_transfer"
	CmdFwupFinish                     CommandID = "fwup_finish"
	CmdGetEvents                      CommandID = "get_events"
	CmdGetCoredumpCount               CommandID = "get_coredump_count"
	CmdGetCoredumpFragment            CommandID = "get_coredump_fragment"
	CmdGetCert                        CommandID = "get_cert"
	CmdSignVerifyAttestationChallenge CommandID = "sign_verify_attestation_challenge"
	CmdWipeDevice                     CommandID = "wipe_device"
	CmdGetConfirmationResult          CommandID = "get_confirmation_result"
	CmdGetGrantRequest                CommandID = "get_grant_request"
	CmdProvideGrant                   CommandID = "provide_grant"
)

// Commands is the versioned set of operations the hardware supports. Every
// layer of the interceptor pipeline implements it, from the concrete Device at
// the bottom to the decorated view handed to a transaction.
//
// All methods block until the hardware answers, the context is cancelled or
// the tag leaves the field. Exactly one call is in flight per session.
type Commands interface {
	Version(ctx context.Context, s *Session) (uint16, error)
	GetDeviceInfo(ctx context.Context, s *Session) (*DeviceInfo, error)
	GetFirmwareMetadata(ctx context.Context, s *Session) (*FirmwareMetadata, error)
	QueryAuthentication(ctx context.Context, s *Session) (bool, error)
	LockDevice(ctx context.Context, s *Session) (bool, error)

	GetAuthenticationKey(ctx context.Context, s *Session) ([]byte, error)
	GetInitialSpendingKey(ctx context.Context, s *Session, network Network) (*SpendingKey, error)
	GetNextSpendingKey(ctx context.Context, s *Session, existing []SpendingKey, network Network) (*SpendingKey, error)
	SignChallenge(ctx context.Context, s *Session, challenge []byte) ([]byte, error)
	SignTransaction(ctx context.Context, s *Session, psbt []byte, keyIndex uint32) ([]byte, error)
	SealData(ctx context.Context, s *Session, data []byte) ([]byte, error)
	UnsealData(ctx context.Context, s *Session, sealed []byte) ([]byte, error)

	StartFingerprintEnrollment(ctx context.Context, s *Session, index uint32, label string) (bool, error)
	GetFingerprintEnrollmentStatus(ctx context.Context, s *Session) (*EnrollmentStatus, error)
	CancelFingerprintEnrollment(ctx context.Context, s *Session) (bool, error)
	GetEnrolledFingerprints(ctx context.Context, s *Session) (*EnrolledFingerprints, error)
	DeleteFingerprint(ctx context.Context, s *Session, index uint32) (bool, error)
	GetUnlockMethod(ctx context.Context, s *Session) (*UnlockInfo, error)

	FwupStart(ctx context.Context, s *Session, size uint32, mode FwupMode) (bool, error)
	FwupTransfer(ctx context.Context, s *Session, sequenceID uint32, chunk []byte, offset uint32, mode FwupMode) (bool, error)
	FwupFinish(ctx context.Context, s *Session, appPropertiesOffset, signatureOffset uint32, mode FwupMode) (FwupFinishStatus, error)

	GetEvents(ctx context.Context, s *Session) (*EventFragment, error)
	GetCoredumpCount(ctx context.Context, s *Session) (int, error)
	GetCoredumpFragment(ctx context.Context, s *Session, offset uint32) (*CoredumpFragment, error)

	GetCert(ctx context.Context, s *Session, kind CertKind) ([]byte, error)
	SignVerifyAttestationChallenge(ctx context.Context, s *Session, deviceIdentityDER, challenge []byte) (bool, error)

	WipeDevice(ctx context.Context, s *Session) (HardwareInteraction[bool], error)
	GetConfirmationResult(ctx context.Context, s *Session, handle ConfirmationHandle) (HardwareInteraction[bool], error)
	GetGrantRequest(ctx context.Context, s *Session, action GrantAction) (*GrantRequest, error)
	ProvideGrant(ctx context.Context, s *Session, grant *Grant) (bool, error)
}
