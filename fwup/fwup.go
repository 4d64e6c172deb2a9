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

// Package fwup streams firmware images to the hardware in fixed-size chunks
// through the command pipeline, resuming from the last acknowledged chunk
// after the tag leaves the field.
package fwup

import (
	"errors"
	"fmt"
	"math"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
)

// Validation errors
var (
	ErrEmptyImage       = errors.New("firmware image is empty")
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	ErrMissingSignature = errors.New("firmware signature is empty")
	ErrMissingPatchSize = errors.New("delta update needs a patch size")
	ErrInvalidResume    = errors.New("resume point past the end of the image")
	ErrImageTooLarge    = errors.New("firmware image does not fit a 32-bit offset")
)

// Data describes one firmware update job. It is not modified by the Updater.
type Data struct {
	Version             string
	Image               []byte
	Signature           []byte
	ChunkSize           uint32
	SignatureOffset     uint32
	AppPropertiesOffset uint32
	PatchSize           uint32
	Mode                hwnfc.FwupMode
}

// ChunkCount returns the number of chunks the image is split into
func (d *Data) ChunkCount() uint32 {
	if d.ChunkSize == 0 {
		return 0
	}
	size := uint64(len(d.Image))
	chunk := uint64(d.ChunkSize)
	return uint32((size + chunk - 1) / chunk)
}

// FinalSequenceID returns the sequence id of the last chunk
func (d *Data) FinalSequenceID() uint32 {
	n := d.ChunkCount()
	if n == 0 {
		return 0
	}
	return n - 1
}

// StartSize returns the size announced when a transfer starts: the image
// size for a full update, the declared patch size for a delta.
func (d *Data) StartSize() uint32 {
	if d.Mode == hwnfc.FwupModeDelta {
		return d.PatchSize
	}
	return uint32(len(d.Image))
}

// Chunk returns the bytes and offset of chunk seq
func (d *Data) Chunk(seq uint32) (chunk []byte, offset uint32) {
	start := uint64(seq) * uint64(d.ChunkSize)
	end := min(start+uint64(d.ChunkSize), uint64(len(d.Image)))
	return d.Image[start:end], uint32(start)
}

// Validate checks the job can be transferred
func (d *Data) Validate() error {
	switch {
	case len(d.Image) == 0:
		return ErrEmptyImage
	case uint64(len(d.Image)) > math.MaxUint32:
		return fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(d.Image))
	case d.ChunkSize == 0:
		return ErrInvalidChunkSize
	case len(d.Signature) == 0:
		return ErrMissingSignature
	case d.Mode == hwnfc.FwupModeDelta && d.PatchSize == 0:
		return ErrMissingPatchSize
	case d.Mode != hwnfc.FwupModeNormal && d.Mode != hwnfc.FwupModeDelta:
		return fmt.Errorf("%w: mode %s", hwnfc.ErrInvalidParameter, d.Mode)
	}
	return nil
}

// Resume says where a transfer begins: from scratch, or from the first chunk
// the device has not acknowledged.
type Resume struct {
	sequenceID uint32
	resume     bool
}

// StartFromBeginning starts a fresh transfer
func StartFromBeginning() Resume {
	return Resume{}
}

// ResumeFromSequenceID continues a transfer at chunk seq
func ResumeFromSequenceID(seq uint32) Resume {
	return Resume{sequenceID: seq, resume: true}
}

// IsResume reports whether the transfer continues an earlier one
func (r Resume) IsResume() bool {
	return r.resume
}

// SequenceID returns the first chunk to send
func (r Resume) SequenceID() uint32 {
	return r.sequenceID
}

func (r Resume) String() string {
	if !r.resume {
		return "start"
	}
	return fmt.Sprintf("resume@%d", r.sequenceID)
}

// Progress is reported after every acknowledged chunk
type Progress struct {
	// SequenceID is the next chunk to send, and the resume point
	SequenceID      uint32
	FinalSequenceID uint32
	Percentage      float64
}

func newProgress(next uint32, data *Data) Progress {
	total := data.ChunkCount()
	pct := 100.0
	if total > 0 {
		pct = float64(next) / float64(total) * 100
	}
	return Progress{
		SequenceID:      next,
		FinalSequenceID: data.FinalSequenceID(),
		Percentage:      pct,
	}
}
