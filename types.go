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

import "fmt"

// DeviceInfo describes the hardware as it reports itself
type DeviceInfo struct {
	SerialNumber     string  `cbor:"serial"`
	FirmwareVersion  string  `cbor:"version"`
	HardwareRevision string  `cbor:"hw_revision"`
	ActiveSlot       string  `cbor:"active_slot"`
	SecureBootConfig string  `cbor:"secure_boot"`
	BatteryCharge    float32 `cbor:"battery"`
	VCell            uint32  `cbor:"vcell"`
	AverageCurrentMA int32   `cbor:"avg_current_ma"`
	BatteryCycles    uint32  `cbor:"battery_cycles"`
}

// FirmwareMetadata describes the firmware image running on the active slot
type FirmwareMetadata struct {
	ActiveSlot string `cbor:"active_slot"`
	GitID      string `cbor:"git_id"`
	GitBranch  string `cbor:"git_branch"`
	Version    string `cbor:"version"`
	Build      string `cbor:"build"`
	Timestamp  uint64 `cbor:"timestamp"`
	Hash       []byte `cbor:"hash"`
	HWRevision string `cbor:"hw_revision"`
}

// Network selects the bitcoin network a spending key is derived for
type Network string

const (
	NetworkBitcoin Network = "bitcoin"
	NetworkTestnet Network = "testnet"
	NetworkSignet  Network = "signet"
	NetworkRegtest Network = "regtest"
)

// SpendingKey is an extended public key derived on the hardware
type SpendingKey struct {
	Network   Network `cbor:"network"`
	PublicKey []byte  `cbor:"pubkey"`
	ChainCode []byte  `cbor:"chain_code"`
	Index     uint32  `cbor:"index"`
}

// EnrollmentState is the progress of a fingerprint enrollment
type EnrollmentState string

const (
	EnrollmentUnspecified   EnrollmentState = "unspecified"
	EnrollmentIncomplete    EnrollmentState = "incomplete"
	EnrollmentComplete      EnrollmentState = "complete"
	EnrollmentNotInProgress EnrollmentState = "not_in_progress"
)

// EnrollmentStatus reports fingerprint enrollment progress
type EnrollmentStatus struct {
	Fingerprint *FingerprintHandle `cbor:"handle,omitempty"`
	State       EnrollmentState    `cbor:"state"`
	PassCount   uint32             `cbor:"pass_count"`
	FailCount   uint32             `cbor:"fail_count"`
}

// FingerprintHandle identifies one enrolled fingerprint
type FingerprintHandle struct {
	Index uint32 `cbor:"index"`
	Label string `cbor:"label"`
}

// EnrolledFingerprints lists enrolled fingerprints
type EnrolledFingerprints struct {
	MaxCount     uint32              `cbor:"max_count"`
	Fingerprints []FingerprintHandle `cbor:"fingerprints"`
}

// UnlockMethod is the way the device was last unlocked
type UnlockMethod string

const (
	UnlockUnspecified UnlockMethod = "unspecified"
	UnlockBiometrics  UnlockMethod = "biometrics"
	UnlockPin         UnlockMethod = "pin"
)

// UnlockInfo reports how the device was unlocked
type UnlockInfo struct {
	Method           UnlockMethod `cbor:"method"`
	FingerprintIndex *uint32      `cbor:"fingerprint_index,omitempty"`
}

// FwupMode selects full-image or delta-patch firmware updates
type FwupMode int

const (
	FwupModeNormal FwupMode = iota
	FwupModeDelta
)

func (m FwupMode) String() string {
	switch m {
	case FwupModeNormal:
		return "normal"
	case FwupModeDelta:
		return "delta"
	default:
		return fmt.Sprintf("FwupMode(%d)", int(m))
	}
}

// FwupFinishStatus is the device's answer to a finish-transfer request
type FwupFinishStatus int

const (
	FwupFinishUnspecified FwupFinishStatus = iota
	FwupFinishSuccess
	FwupFinishSignatureInvalid
	FwupFinishVersionInvalid
	FwupFinishError
	FwupFinishWillApplyPatch
	FwupFinishUnauthenticated
)

func (s FwupFinishStatus) String() string {
	switch s {
	case FwupFinishSuccess:
		return "success"
	case FwupFinishSignatureInvalid:
		return "signature_invalid"
	case FwupFinishVersionInvalid:
		return "version_invalid"
	case FwupFinishError:
		return "error"
	case FwupFinishWillApplyPatch:
		return "will_apply_patch"
	case FwupFinishUnauthenticated:
		return "unauthenticated"
	default:
		return "unspecified"
	}
}

// EventFragment is one page of the device's telemetry event log. Reading a
// fragment advances the device-side cursor.
type EventFragment struct {
	Fragment      []byte `cbor:"fragment"`
	RemainingSize uint32 `cbor:"remaining"`
}

// CoredumpFragment is one slice of a coredump. Reading the last fragment of a
// coredump deletes it from the device.
type CoredumpFragment struct {
	Data               []byte `cbor:"data"`
	CoredumpsRemaining int    `cbor:"remaining"`
	Offset             uint32 `cbor:"offset"`
	Complete           bool   `cbor:"complete"`
}

// CertKind selects an attestation certificate
type CertKind string

const (
	CertBatch          CertKind = "batch"
	CertDeviceIdentity CertKind = "device_identity"
)

// ConfirmationHandle references a pending on-device confirmation
type ConfirmationHandle struct {
	ResponseHandle     []byte `cbor:"response_handle"`
	ConfirmationHandle []byte `cbor:"confirmation_handle"`
}

// GrantAction names the privileged action a grant authorizes
type GrantAction string

const (
	GrantActionFingerprintReset  GrantAction = "fingerprint_reset"
	GrantActionTransactionVerify GrantAction = "transaction_verify"
)

// GrantRequest is a device-signed request for a server grant. Requesting a new
// one replaces any previous request held by the device.
type GrantRequest struct {
	Version   uint8       `cbor:"version"`
	DeviceID  []byte      `cbor:"device_id"`
	Challenge []byte      `cbor:"challenge"`
	Action    GrantAction `cbor:"action"`
	Signature []byte      `cbor:"signature"`
}

// Grant is the server-signed answer to a GrantRequest
type Grant struct {
	Version   uint8  `cbor:"version"`
	Request   []byte `cbor:"request"`
	Signature []byte `cbor:"signature"`
}
