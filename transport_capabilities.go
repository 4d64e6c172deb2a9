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
	"time"
)

// LinkProfiler is implemented by transports that know their own limits
type LinkProfiler interface {
	LinkProfile() LinkProfile
}

// LinkProfile describes what one exchange on a transport can carry
type LinkProfile struct {
	// MaxPayload is the largest encoded request the link accepts
	MaxPayload int
	// ChunkSize is the firmware chunk size that fits one exchange
	ChunkSize int
	// SettleDelay is the pause the front end needs after a tag is detected
	SettleDelay time.Duration
}

// ProfileFor returns the link profile for t
func ProfileFor(t Transceiver) LinkProfile {
	if profiler, ok := t.(LinkProfiler); ok {
		return profiler.LinkProfile()
	}

	return profileForType(t.Type())
}

func profileForType(typ TransportType) LinkProfile {
	switch typ {
	case TransportUART:
		return uartProfile()
	case TransportI2C:
		return i2cProfile()
	case TransportEmulator, TransportMock:
		return defaultProfile()
	default:
		return defaultProfile()
	}
}

// uartProfile: extended frames carry up to 65535 bytes but the bridge
// buffers 1 KiB per exchange
func uartProfile() LinkProfile {
	return LinkProfile{
		MaxPayload:  1024,
		ChunkSize:   452,
		SettleDelay: 10 * time.Millisecond,
	}
}

// i2cProfile: the front end's receive buffer is 264 bytes
func i2cProfile() LinkProfile {
	return LinkProfile{
		MaxPayload:  255,
		ChunkSize:   128,
		SettleDelay: 5 * time.Millisecond,
	}
}

func defaultProfile() LinkProfile {
	return LinkProfile{
		MaxPayload: 4096,
		ChunkSize:  452,
	}
}
