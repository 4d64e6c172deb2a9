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

package wire

// Argument maps of the hardware commands. Field values are kept to plain
// types so both ends can share them.

type NetworkArgs struct {
	Network string `cbor:"network"`
}

type NextKeyArgs struct {
	Network         string   `cbor:"network"`
	ExistingIndexes []uint32 `cbor:"existing"`
}

type ChallengeArgs struct {
	Challenge []byte `cbor:"challenge"`
}

type SignTransactionArgs struct {
	PSBT     []byte `cbor:"psbt"`
	KeyIndex uint32 `cbor:"key_index"`
}

type DataArgs struct {
	Data []byte `cbor:"data"`
}

type FingerprintArgs struct {
	Label string `cbor:"label,omitempty"`
	Index uint32 `cbor:"index"`
}

type FwupStartArgs struct {
	Size uint32 `cbor:"size"`
	Mode int    `cbor:"mode"`
}

type FwupTransferArgs struct {
	Chunk      []byte `cbor:"chunk"`
	SequenceID uint32 `cbor:"seq"`
	Offset     uint32 `cbor:"offset"`
	Mode       int    `cbor:"mode"`
}

type FwupFinishArgs struct {
	AppPropertiesOffset uint32 `cbor:"app_props_offset"`
	SignatureOffset     uint32 `cbor:"sig_offset"`
	Mode                int    `cbor:"mode"`
}

type OffsetArgs struct {
	Offset uint32 `cbor:"offset"`
}

type CertArgs struct {
	Kind string `cbor:"kind"`
}

type AttestationArgs struct {
	Identity  []byte `cbor:"identity"`
	Challenge []byte `cbor:"challenge"`
}

type HandleArgs struct {
	Handle Handle `cbor:"handle"`
}

type GrantActionArgs struct {
	Action string `cbor:"action"`
}

type GrantArgs struct {
	Request   []byte `cbor:"request"`
	Signature []byte `cbor:"signature"`
	Version   uint8  `cbor:"version"`
}

// SelectArgs answers an emulated confirmation prompt
type SelectArgs struct {
	Handle  Handle `cbor:"handle"`
	Approve bool   `cbor:"approve"`
}
