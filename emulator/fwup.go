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
	"crypto/sha256"
	"sort"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"github.com/ZaparooProject/go-hwnfc/internal/wire"
)

// block is one acknowledged fwup transfer
type block struct {
	data   []byte
	seq    uint32
	offset uint32
}

// fwupState is the receive side of a firmware transfer. It survives taps so
// a transfer can be resumed without a new start.
type fwupState struct {
	blocks  map[uint32]block // by offset
	size    uint32
	mode    hwnfc.FwupMode
	slot    int
	started bool
}

func (f *fwupState) activeSlot() string {
	if f.slot%2 == 0 {
		return "a"
	}
	return "b"
}

// image assembles the transferred chunks, leaving out the block written at
// sigOffset. It reports false when a sequence id is missing or two chunks
// are not contiguous.
func (f *fwupState) image(sigOffset uint32) ([]byte, bool) {
	chunks := make([]block, 0, len(f.blocks))
	for offset, b := range f.blocks {
		if offset == sigOffset {
			continue
		}
		chunks = append(chunks, b)
	}
	if len(chunks) == 0 {
		return nil, false
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].seq < chunks[j].seq })

	var image []byte
	for i, b := range chunks {
		if b.seq != uint32(i) || b.offset != uint32(len(image)) {
			return nil, false
		}
		image = append(image, b.data...)
	}
	return image, true
}

// InstalledImage returns the last firmware image the emulator accepted
func (e *Emulator) InstalledImage() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]byte(nil), e.installed...)
}

// Transferring reports whether a firmware transfer is started and not yet
// finished
func (e *Emulator) Transferring() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fwup.started
}

func (e *Emulator) fwupStart(req *wire.Request) ([]byte, error) {
	var args wire.FwupStartArgs
	if resp, ok := decodeArgs(req, &args); !ok {
		return resp, nil
	}
	if args.Size == 0 {
		return reject(CodeBadArguments, "zero image size")
	}
	e.fwup = fwupState{
		started: true,
		size:    args.Size,
		mode:    hwnfc.FwupMode(args.Mode),
		slot:    e.fwup.slot,
		blocks:  make(map[uint32]block),
	}
	e.log().WithField("size", args.Size).Debug("fwup started")
	return wire.OK(true)
}

func (e *Emulator) fwupTransfer(req *wire.Request) ([]byte, error) {
	var args wire.FwupTransferArgs
	if resp, ok := decodeArgs(req, &args); !ok {
		return resp, nil
	}
	if !e.fwup.started {
		return reject(CodeInvalidState, "no transfer in progress")
	}
	if len(args.Chunk) == 0 {
		return reject(CodeBadArguments, "empty chunk")
	}
	e.fwup.blocks[args.Offset] = block{
		seq:    args.SequenceID,
		offset: args.Offset,
		data:   append([]byte(nil), args.Chunk...),
	}
	return wire.OK(true)
}

// fwupFinish checks the transfer and installs the image. Delta transfers
// answer that the patch will be applied on reboot.
func (e *Emulator) fwupFinish(req *wire.Request) ([]byte, error) {
	var args wire.FwupFinishArgs
	if resp, ok := decodeArgs(req, &args); !ok {
		return resp, nil
	}
	if !e.fwup.started {
		return wire.OK(hwnfc.FwupFinishError)
	}

	sig, ok := e.fwup.blocks[args.SignatureOffset]
	if !ok || len(sig.data) == 0 {
		return wire.OK(hwnfc.FwupFinishSignatureInvalid)
	}
	image, ok := e.fwup.image(args.SignatureOffset)
	if !ok {
		e.log().Debug("fwup finish with incomplete image")
		return wire.OK(hwnfc.FwupFinishError)
	}
	if e.config.FirmwareKey != nil && !verify(e.config.FirmwareKey, image, sig.data) {
		return wire.OK(hwnfc.FwupFinishSignatureInvalid)
	}

	mode := e.fwup.mode
	e.installed = image
	e.fwup = fwupState{slot: e.fwup.slot + 1}
	e.log().WithField("bytes", len(image)).Debug("fwup finished")

	if mode == hwnfc.FwupModeDelta {
		return wire.OK(hwnfc.FwupFinishWillApplyPatch)
	}
	return wire.OK(hwnfc.FwupFinishSuccess)
}

func (e *Emulator) firmwareMetadata(*wire.Request) ([]byte, error) {
	hash := sha256.Sum256(e.installed)
	return wire.OK(&hwnfc.FirmwareMetadata{
		ActiveSlot: e.fwup.activeSlot(),
		GitID:      "emulator",
		GitBranch:  "main",
		Version:    e.config.FirmwareVersion,
		Build:      "dev",
		Timestamp:  0,
		Hash:       hash[:],
		HWRevision: e.config.HardwareRevision,
	})
}
