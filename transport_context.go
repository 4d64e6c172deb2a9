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
	"fmt"
	"time"
)

const defaultLinkTimeout = 5 * time.Second

// syncTransceiverAdapter wraps a SyncTransceiver to provide context support
type syncTransceiverAdapter struct {
	SyncTransceiver
}

// Transceive implements Transceiver by mapping the context deadline to the
// link timeout and abandoning the exchange on cancellation.
func (t *syncTransceiverAdapter) Transceive(ctx context.Context, req []byte) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled before transceive: %w", ctx.Err())
	default:
	}

	if deadline, ok := ctx.Deadline(); ok {
		timeout := time.Until(deadline)
		if timeout > 0 {
			defer func() {
				_ = t.SetTimeout(defaultLinkTimeout)
			}()
			if err := t.SetTimeout(timeout); err != nil {
				return nil, err
			}
		}
	}

	type result struct {
		err  error
		data []byte
	}
	resultChan := make(chan result, 1)

	go func() {
		data, err := t.SyncTransceiver.Transceive(req)
		resultChan <- result{err, data}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled while waiting for response: %w", context.Cause(ctx))
	case res := <-resultChan:
		return res.data, res.err
	}
}

// HasCapability forwards capability checking to the underlying link
func (t *syncTransceiverAdapter) HasCapability(capability TransportCapability) bool {
	if checker, ok := t.SyncTransceiver.(TransportCapabilityChecker); ok {
		return checker.HasCapability(capability)
	}
	return false
}

// LinkProfile forwards to the wrapped transport when it reports its own limits
func (t *syncTransceiverAdapter) LinkProfile() LinkProfile {
	if profiler, ok := t.SyncTransceiver.(LinkProfiler); ok {
		return profiler.LinkProfile()
	}
	return profileForType(t.Type())
}

// AsContextTransceiver converts a SyncTransceiver to a Transceiver
func AsContextTransceiver(t SyncTransceiver) Transceiver {
	return &syncTransceiverAdapter{SyncTransceiver: t}
}
