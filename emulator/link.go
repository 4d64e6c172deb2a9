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
	"context"
	"sync"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
)

const port = "emulator"

// Link is the transceiver of one tap on the emulator
type Link struct {
	emu      *Emulator
	lost     chan struct{}
	mu       sync.Mutex
	lostOnce sync.Once
	closed   bool
}

func newLink(e *Emulator) *Link {
	return &Link{emu: e, lost: make(chan struct{})}
}

// Transceive implements hwnfc.Transceiver
func (l *Link) Transceive(ctx context.Context, req []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, context.Cause(ctx)
	}

	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return nil, hwnfc.ErrTransportClosed
	}

	select {
	case <-l.lost:
		return nil, hwnfc.NewTransportError("transceive", port, hwnfc.ErrTagLost, hwnfc.ErrorTypePermanent)
	default:
	}

	return l.emu.handle(l, req)
}

// Close implements hwnfc.Transceiver
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Type returns TransportEmulator
func (*Link) Type() hwnfc.TransportType {
	return hwnfc.TransportEmulator
}

// HasCapability implements hwnfc.TransportCapabilityChecker. Confirmations
// on an emulator are always chosen in software.
func (*Link) HasCapability(c hwnfc.TransportCapability) bool {
	switch c {
	case hwnfc.CapabilityEmulatedConfirmation, hwnfc.CapabilityLossNotification:
		return true
	default:
		return false
	}
}

// Identity implements hwnfc.IdentityReader
func (l *Link) Identity(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return hwnfc.MarshalIdentity(l.emu.Identity())
}

// Lost implements hwnfc.LossNotifier
func (l *Link) Lost() <-chan struct{} {
	return l.lost
}

// SimulateLoss takes the tag out of the field
func (l *Link) SimulateLoss() {
	l.lostOnce.Do(func() {
		close(l.lost)
	})
}
