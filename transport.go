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
	"context"
	"time"
)

// Transceiver moves one encoded request to the hardware and returns its
// encoded response. It is the platform NFC primitive the Device leaf sits on.
// Implementations carry exactly one exchange at a time.
type Transceiver interface {
	// Transceive sends req and waits for the response
	Transceive(ctx context.Context, req []byte) ([]byte, error)

	// Close releases the link
	Close() error

	// Type returns the transport type
	Type() TransportType
}

// SyncTransceiver is a blocking link without context support, as exposed by
// the serial and I2C front ends. Wrap it with AsContextTransceiver.
type SyncTransceiver interface {
	Transceive(req []byte) ([]byte, error)
	SetTimeout(timeout time.Duration) error
	IsConnected() bool
	Close() error
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents a serial NFC bridge.
	TransportUART TransportType = "uart"
	// TransportI2C represents an I2C NFC front end.
	TransportI2C TransportType = "i2c"
	// TransportEmulator represents software-emulated hardware
	TransportEmulator TransportType = "emulator"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// TransportCapability represents specific capabilities or behaviors of a transport
type TransportCapability string

const (
	// CapabilityEmulatedConfirmation indicates on-device confirmations cannot
	// be given physically and must be chosen in software.
	CapabilityEmulatedConfirmation TransportCapability = "emulated_confirmation"

	// CapabilityLossNotification indicates the transport reports tag loss
	// through LossNotifier.
	CapabilityLossNotification TransportCapability = "loss_notification"
)

// TransportCapabilityChecker defines an interface for querying transport capabilities
type TransportCapabilityChecker interface {
	// HasCapability returns true if the transport has the specified capability
	HasCapability(capability TransportCapability) bool
}

// LossNotifier is implemented by transports that can tell when the tag left
// the field. The channel is closed on loss.
type LossNotifier interface {
	Lost() <-chan struct{}
}

// IdentityReader is implemented by transports that can read the tag's NDEF
// identity message before any command is sent.
type IdentityReader interface {
	Identity(ctx context.Context) ([]byte, error)
}

// Connector opens a link to the hardware for one tap
type Connector interface {
	Connect(ctx context.Context) (Transceiver, error)
}

// ConnectorFunc adapts a function to Connector
type ConnectorFunc func(ctx context.Context) (Transceiver, error)

// Connect implements Connector
func (f ConnectorFunc) Connect(ctx context.Context) (Transceiver, error) {
	return f(ctx)
}

// HasCapability reports whether t advertises capability
func HasCapability(t Transceiver, capability TransportCapability) bool {
	if checker, ok := t.(TransportCapabilityChecker); ok {
		return checker.HasCapability(capability)
	}
	return false
}
