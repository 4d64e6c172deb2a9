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
	"os"
	"path/filepath"
	"testing"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestLoadManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.bin"), []byte("firmware-image-bytes"))
	writeFile(t, filepath.Join(dir, "app.sig"), []byte("signature"))
	writeFile(t, filepath.Join(dir, "fwup.yaml"), []byte(`
version: 1.4.0
mode: delta
image: app.bin
signature: app.sig
chunk_size: 8
signature_offset: 0x3ff00
app_properties_offset: 0x200
patch_size: 20
`))

	data, err := LoadManifest(filepath.Join(dir, "fwup.yaml"))

	require.NoError(t, err)
	assert.Equal(t, "1.4.0", data.Version)
	assert.Equal(t, hwnfc.FwupModeDelta, data.Mode)
	assert.Equal(t, []byte("firmware-image-bytes"), data.Image)
	assert.Equal(t, []byte("signature"), data.Signature)
	assert.Equal(t, uint32(8), data.ChunkSize)
	assert.Equal(t, uint32(0x3ff00), data.SignatureOffset)
	assert.Equal(t, uint32(0x200), data.AppPropertiesOffset)
	assert.Equal(t, uint32(20), data.PatchSize)
	assert.Equal(t, uint32(3), data.ChunkCount())
}

func TestLoadManifest_Defaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	image := filepath.Join(dir, "image.bin")
	writeFile(t, image, make([]byte, 1000))
	writeFile(t, filepath.Join(dir, "image.sig"), []byte{1})
	writeFile(t, filepath.Join(dir, "fwup.yaml"), []byte("image: "+image+"\nsignature: image.sig\n"))

	data, err := LoadManifest(filepath.Join(dir, "fwup.yaml"))

	require.NoError(t, err)
	assert.Equal(t, hwnfc.FwupModeNormal, data.Mode)
	assert.Equal(t, uint32(DefaultChunkSize), data.ChunkSize)
	assert.Len(t, data.Image, 1000)
}

func TestLoadManifest_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		manifest string
		wantErr  error
	}{
		{name: "unknown mode", manifest: "mode: sideways\nimage: a\nsignature: b\n", wantErr: hwnfc.ErrInvalidParameter},
		{name: "no image", manifest: "signature: b\n", wantErr: hwnfc.ErrInvalidParameter},
		{name: "missing file", manifest: "image: nope.bin\nsignature: nope.sig\n", wantErr: os.ErrNotExist},
		{name: "delta without patch size", manifest: "mode: delta\nimage: a\nsignature: b\n", wantErr: ErrMissingPatchSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "a"), []byte{1, 2, 3})
			writeFile(t, filepath.Join(dir, "b"), []byte{4})
			path := filepath.Join(dir, "fwup.yaml")
			writeFile(t, path, []byte(tt.manifest))

			_, err := LoadManifest(path)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadManifest_BadYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "fwup.yaml")
	writeFile(t, path, []byte("image: [unterminated"))

	_, err := LoadManifest(path)
	require.Error(t, err)

	_, err = LoadManifest(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]hwnfc.FwupMode{"": hwnfc.FwupModeNormal, "Normal": hwnfc.FwupModeNormal, " delta ": hwnfc.FwupModeDelta} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
