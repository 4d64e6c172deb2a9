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

package fwup

import (
	"bytes"
	"math"
	"testing"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"github.com/stretchr/testify/assert"
)

func TestData_Chunking(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		size      int
		chunkSize uint32
		wantCount uint32
		wantFinal uint32
		wantLast  int
	}{
		{name: "single byte", size: 1, chunkSize: 4, wantCount: 1, wantFinal: 0, wantLast: 1},
		{name: "exact fit", size: 8, chunkSize: 4, wantCount: 2, wantFinal: 1, wantLast: 4},
		{name: "partial last chunk", size: 10, chunkSize: 4, wantCount: 3, wantFinal: 2, wantLast: 2},
		{name: "default chunk size", size: 3*DefaultChunkSize + 1, chunkSize: DefaultChunkSize, wantCount: 4, wantFinal: 3, wantLast: 1},
		{name: "chunk larger than image", size: 10, chunkSize: math.MaxUint32, wantCount: 1, wantFinal: 0, wantLast: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := &Data{Image: bytes.Repeat([]byte{0x5a}, tt.size), ChunkSize: tt.chunkSize}

			assert.Equal(t, tt.wantCount, data.ChunkCount())
			assert.Equal(t, tt.wantFinal, data.FinalSequenceID())

			last, offset := data.Chunk(data.FinalSequenceID())
			assert.Len(t, last, tt.wantLast)
			assert.Equal(t, data.FinalSequenceID()*tt.chunkSize, offset)
		})
	}
}

func TestData_ChunkOffsets(t *testing.T) {
	t.Parallel()

	data := &Data{Image: []byte("0123456789"), ChunkSize: 4}

	chunk, offset := data.Chunk(1)
	assert.Equal(t, []byte("4567"), chunk)
	assert.Equal(t, uint32(4), offset)

	chunk, offset = data.Chunk(2)
	assert.Equal(t, []byte("89"), chunk)
	assert.Equal(t, uint32(8), offset)
}

func TestData_StartSize(t *testing.T) {
	t.Parallel()

	normal := &Data{Image: make([]byte, 100), PatchSize: 7, Mode: hwnfc.FwupModeNormal}
	delta := &Data{Image: make([]byte, 100), PatchSize: 7, Mode: hwnfc.FwupModeDelta}

	assert.Equal(t, uint32(100), normal.StartSize())
	assert.Equal(t, uint32(7), delta.StartSize())
}

func TestData_Validate(t *testing.T) {
	t.Parallel()

	valid := func() *Data {
		return &Data{Image: []byte{1, 2, 3}, Signature: []byte{9}, ChunkSize: 2}
	}

	tests := []struct {
		wantErr error
		mutate  func(d *Data)
		name    string
	}{
		{name: "valid", mutate: func(*Data) {}},
		{name: "empty image", mutate: func(d *Data) { d.Image = nil }, wantErr: ErrEmptyImage},
		{name: "zero chunk size", mutate: func(d *Data) { d.ChunkSize = 0 }, wantErr: ErrInvalidChunkSize},
		{name: "no signature", mutate: func(d *Data) { d.Signature = nil }, wantErr: ErrMissingSignature},
		{name: "delta without patch size", mutate: func(d *Data) { d.Mode = hwnfc.FwupModeDelta }, wantErr: ErrMissingPatchSize},
		{name: "unknown mode", mutate: func(d *Data) { d.Mode = hwnfc.FwupMode(7) }, wantErr: hwnfc.ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := valid()
			tt.mutate(data)
			err := data.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestResume(t *testing.T) {
	t.Parallel()

	start := StartFromBeginning()
	assert.False(t, start.IsResume())
	assert.Equal(t, "start", start.String())

	resume := ResumeFromSequenceID(12)
	assert.True(t, resume.IsResume())
	assert.Equal(t, uint32(12), resume.SequenceID())
	assert.Equal(t, "resume@12", resume.String())
}

func TestProgressPercentage(t *testing.T) {
	t.Parallel()

	data := &Data{Image: make([]byte, 10), ChunkSize: 4}

	p := newProgress(1, data)
	assert.Equal(t, uint32(1), p.SequenceID)
	assert.Equal(t, uint32(2), p.FinalSequenceID)
	assert.InDelta(t, 33.33, p.Percentage, 0.01)
	assert.InDelta(t, 100.0, newProgress(3, data).Percentage, 0.001)
}
