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
	"fmt"
	"strconv"
	"strings"

	"github.com/hsanjuan/go-ndef"
)

// identityPrefix starts the NDEF text record a supported device exposes
const identityPrefix = "hwnfc/"

// HardwareIdentity is what a supported device says about itself in its NDEF
// text record, for example "hwnfc/1 W1 A1B2C3".
type HardwareIdentity struct {
	Product         string
	Serial          string
	ProtocolVersion int
}

func (id HardwareIdentity) String() string {
	return fmt.Sprintf("%s%d %s %s", identityPrefix, id.ProtocolVersion, id.Product, id.Serial)
}

// MarshalIdentity encodes id as an NDEF message with one text record
func MarshalIdentity(id HardwareIdentity) ([]byte, error) {
	data, err := ndef.NewTextMessage(id.String(), "en").Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal identity: %w", err)
	}
	return data, nil
}

// ParseIdentity decodes an NDEF message and returns the identity carried by
// its first supported text record. ErrUnsupportedTag is returned when no
// record identifies a supported device.
func ParseIdentity(data []byte) (*HardwareIdentity, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty NDEF message", ErrUnsupportedTag)
	}

	msg := &ndef.Message{}
	if _, err := msg.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedTag, err)
	}

	for _, record := range msg.Records {
		payload, err := record.Payload()
		if err != nil || payload == nil {
			continue
		}
		id, ok := parseIdentityText(payload.String())
		if ok {
			return id, nil
		}
	}
	return nil, fmt.Errorf("%w: no identity record", ErrUnsupportedTag)
}

func parseIdentityText(text string) (*HardwareIdentity, bool) {
	fields := strings.Fields(text)
	if len(fields) != 3 || !strings.HasPrefix(fields[0], identityPrefix) {
		return nil, false
	}
	version, err := strconv.Atoi(strings.TrimPrefix(fields[0], identityPrefix))
	if err != nil || version < 1 {
		return nil, false
	}
	return &HardwareIdentity{
		ProtocolVersion: version,
		Product:         fields[1],
		Serial:          fields[2],
	}, true
}
