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

// Package i2c provides the I2C transport to an NFC front end
package i2c

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"github.com/ZaparooProject/go-hwnfc/internal/frame"
	"github.com/ZaparooProject/go-hwnfc/internal/transport"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// Front end 7-bit I2C address.
	deviceAddr = 0x24

	// Status byte that prefixes every read once a frame is waiting.
	statusReady = 0x01

	// Max clock frequency (400 kHz).
	maxClockFreq = 400 * physic.KiloHertz

	// MaxDataLength is the largest request one I2C frame carries
	MaxDataLength = 256

	defaultTimeout   = 5 * time.Second
	pollInterval     = time.Millisecond
	maxFrameAttempts = 3
)

// Transport implements hwnfc.SyncTransceiver over an I2C bus
type Transport struct {
	dev     conn.Conn
	bus     io.Closer
	busName string
	readBuf []byte
	timeout time.Duration
	mu      sync.Mutex
}

// New opens busName; an empty name selects the first bus registered with
// periph
func New(busName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, hwnfc.NewTransportError("open", busName, err, hwnfc.ErrorTypePermanent)
	}

	// Ignore error, continue with default speed
	_ = bus.SetSpeed(maxClockFreq)

	return newTransport(&i2c.Dev{Addr: deviceAddr, Bus: bus}, bus, busName), nil
}

func newTransport(dev conn.Conn, bus io.Closer, busName string) *Transport {
	return &Transport{
		dev:     dev,
		bus:     bus,
		busName: busName,
		timeout: defaultTimeout,
		readBuf: make([]byte, 1+MaxDataLength+1+frame.Overhead),
	}
}

// Connector opens busName on every tap and hands out a context aware link
func Connector(busName string) hwnfc.Connector {
	return hwnfc.ConnectorFunc(func(ctx context.Context) (hwnfc.Transceiver, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := New(busName)
		if err != nil {
			return nil, err
		}
		return hwnfc.AsContextTransceiver(t), nil
	})
}

// Transceive sends req in one frame and returns the data of the response
// frame
func (t *Transport) Transceive(req []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev == nil {
		return nil, hwnfc.NewTransportError("transceive", t.busName, hwnfc.ErrTransportClosed, hwnfc.ErrorTypePermanent)
	}
	if len(req) > MaxDataLength-1 {
		return nil, hwnfc.NewDataTooLargeError("transceive", t.busName)
	}
	out, err := frame.Build(frame.HostToDevice, req)
	if err != nil {
		return nil, hwnfc.NewDataTooLargeError("transceive", t.busName)
	}

	deadline := time.Now().Add(t.timeout)
	if err := t.sendFrame(out, deadline); err != nil {
		return nil, err
	}
	return t.receiveFrame(deadline)
}

// sendFrame writes out until the front end ACKs it
func (t *Transport) sendFrame(out []byte, deadline time.Time) error {
	for attempt := 1; ; attempt++ {
		if err := t.dev.Tx(out, nil); err != nil {
			return hwnfc.NewTransportError("sendFrame", t.busName, err, hwnfc.ErrorTypeTransient)
		}

		reply, err := t.readFrame(deadline, len(frame.AckFrame))
		if err != nil {
			if errors.Is(err, hwnfc.ErrTransportTimeout) {
				return hwnfc.NewNoACKError("sendFrame", t.busName)
			}
			return err
		}
		switch {
		case reply.Kind == frame.KindACK:
			return nil
		case reply.Kind == frame.KindNACK && attempt < maxFrameAttempts:
			hwnfc.Logger().WithField("bus", t.busName).Debugf("i2c: frame NACKed, resending (attempt %d)", attempt)
		default:
			return hwnfc.NewNoACKError("sendFrame", t.busName)
		}
	}
}

// receiveFrame reads the response frame, NACKing corrupt ones
func (t *Transport) receiveFrame(deadline time.Time) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		resp, err := t.readFrame(deadline, len(t.readBuf)-1)
		if errors.Is(err, hwnfc.ErrChecksumMismatch) && attempt < maxFrameAttempts {
			if err := t.dev.Tx(frame.NackFrame, nil); err != nil {
				return nil, hwnfc.NewTransportError("sendNack", t.busName, err, hwnfc.ErrorTypeTransient)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		if resp.Kind != frame.KindData || resp.Direction != frame.DeviceToHost {
			return nil, hwnfc.NewFrameCorruptedError("receiveFrame", t.busName)
		}
		if err := t.dev.Tx(frame.AckFrame, nil); err != nil {
			return nil, hwnfc.NewTransportError("sendAck", t.busName, err, hwnfc.ErrorTypeTransient)
		}
		return resp.Data, nil
	}
}

// readFrame waits for the ready status, then reads size bytes and parses
// them as one frame
func (t *Transport) readFrame(deadline time.Time, size int) (frame.Frame, error) {
	if err := t.waitReady(deadline); err != nil {
		return frame.Frame{}, err
	}

	buf := t.readBuf[:1+size]
	if err := t.dev.Tx(nil, buf); err != nil {
		return frame.Frame{}, hwnfc.NewTransportError("readFrame", t.busName, err, hwnfc.ErrorTypeTransient)
	}

	f, _, err := frame.Parse(buf[1:])
	switch {
	case err == nil:
		return f, nil
	case errors.Is(err, frame.ErrChecksum):
		return frame.Frame{}, &hwnfc.TransportError{
			Op: "readFrame", Port: t.busName,
			Err:       hwnfc.ErrChecksumMismatch,
			Message:   err.Error(),
			Type:      hwnfc.ErrorTypeTransient,
			Retryable: true,
		}
	default:
		return frame.Frame{}, hwnfc.NewFrameCorruptedError("readFrame", t.busName)
	}
}

// waitReady polls the status byte until the front end has a frame for us
func (t *Transport) waitReady(deadline time.Time) error {
	status := make([]byte, 1)
	_, err := transport.TimeoutRetry(context.Background(), time.Until(deadline), pollInterval,
		func() (struct{}, bool, error) {
			if err := t.dev.Tx(nil, status); err != nil {
				return struct{}{}, false, hwnfc.NewTransportError("waitReady", t.busName, err, hwnfc.ErrorTypeTransient)
			}
			return struct{}{}, status[0] == statusReady, nil
		})
	if errors.Is(err, transport.ErrRetryTimeout) {
		return hwnfc.NewTimeoutError("waitReady", t.busName)
	}
	return err
}

// SetTimeout sets the deadline for one whole exchange
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", hwnfc.ErrInvalidParameter)
	}
	t.mu.Lock()
	t.timeout = timeout
	t.mu.Unlock()
	return nil
}

// Close releases the bus
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dev = nil
	if t.bus == nil {
		return nil
	}
	err := t.bus.Close()
	t.bus = nil
	if err != nil {
		return fmt.Errorf("failed to close I2C bus %s: %w", t.busName, err)
	}
	return nil
}

// IsConnected returns true while the bus is open
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev != nil
}

// Type returns the transport type
func (*Transport) Type() hwnfc.TransportType {
	return hwnfc.TransportI2C
}

// LinkProfile reports the I2C limits
func (*Transport) LinkProfile() hwnfc.LinkProfile {
	return hwnfc.LinkProfile{
		MaxPayload:  MaxDataLength - 1,
		ChunkSize:   128,
		SettleDelay: 5 * time.Millisecond,
	}
}

// Ensure Transport implements hwnfc.SyncTransceiver
var _ hwnfc.SyncTransceiver = (*Transport)(nil)
