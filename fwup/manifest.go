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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"gopkg.in/yaml.v3"
)

// DefaultChunkSize fits one transfer in a single NFC exchange
const DefaultChunkSize = 452

// Manifest is the YAML description of a firmware update job. Paths are
// relative to the manifest's directory.
type Manifest struct {
	Version             string `yaml:"version"`
	Mode                string `yaml:"mode"`
	Image               string `yaml:"image"`
	Signature           string `yaml:"signature"`
	ChunkSize           uint32 `yaml:"chunk_size"`
	SignatureOffset     uint32 `yaml:"signature_offset"`
	AppPropertiesOffset uint32 `yaml:"app_properties_offset"`
	PatchSize           uint32 `yaml:"patch_size"`
}

// ParseMode parses "normal" or "delta"
func ParseMode(s string) (hwnfc.FwupMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return hwnfc.FwupModeNormal, nil
	case "delta":
		return hwnfc.FwupModeDelta, nil
	default:
		return hwnfc.FwupModeNormal, fmt.Errorf("%w: unknown fwup mode %q", hwnfc.ErrInvalidParameter, s)
	}
}

// LoadManifest reads the manifest at path and the files it names
func LoadManifest(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return m.Load(filepath.Dir(path))
}

// Load reads the image and signature relative to dir and builds the job
func (m *Manifest) Load(dir string) (*Data, error) {
	mode, err := ParseMode(m.Mode)
	if err != nil {
		return nil, err
	}
	if m.Image == "" || m.Signature == "" {
		return nil, fmt.Errorf("%w: manifest needs image and signature", hwnfc.ErrInvalidParameter)
	}

	image, err := os.ReadFile(resolve(dir, m.Image))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	signature, err := os.ReadFile(resolve(dir, m.Signature))
	if err != nil {
		return nil, fmt.Errorf("failed to read signature: %w", err)
	}

	chunkSize := m.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}

	data := &Data{
		Version:             m.Version,
		Image:               image,
		Signature:           signature,
		ChunkSize:           chunkSize,
		SignatureOffset:     m.SignatureOffset,
		AppPropertiesOffset: m.AppPropertiesOffset,
		PatchSize:           m.PatchSize,
		Mode:                mode,
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return data, nil
}

func resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
