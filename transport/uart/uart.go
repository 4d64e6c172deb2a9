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

// Package uart provides the serial transport to an NFC bridge
package uart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"github.com/ZaparooProject/go-hwnfc/internal/frame"
	"go.bug.st/serial"
)

const (
	// BaudRate is the fixed bridge speed, 8N1
	BaudRate = 115200

	defaultTimeout = 5 * time.Second

	// readPoll bounds a single blocking read so deadlines are honored
	readPoll = 20 * time.Millisecond

	// maxFrameAttempts bounds how often a NACKed frame is sent or re-read
	maxFrameAttempts = 3
)

// serialPort is the part of serial.Port the transport uses
type serialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Transport implements hwnfc.SyncTransceiver over a serial port
type Transport struct {
	port     serialPort
	portName string
	rx       []byte
	chunk    []byte
	timeout  time.Duration
	mu       sync.Mutex
}

// New opens portName at 115200 8N1
func New(portName string) (*Transport, error) {
	mode := &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, hwnfc.NewTransportError("open", portName, err, hwnfc.ErrorTypePermanent)
	}
	return newTransport(port, portName), nil
}

func newTransport(port serialPort, portName string) *Transport {
	return &Transport{
		port:     port,
		portName: portName,
		timeout:  defaultTimeout,
		chunk:    make([]byte, 256),
	}
}

// Connector opens portName on every tap and hands out a context aware link.
// The port is closed when the session closes the link.
func Connector(portName string) hwnfc.Connector {
	return hwnfc.ConnectorFunc(func(ctx context.Context) (hwnfc.Transceiver, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := New(portName)
		if err != nil {
			return nil, err
		}
		return hwnfc.AsContextTransceiver(t), nil
	})
}

// Transceive sends req in one frame and returns the data of the response
// frame. NACKed requests are re-sent and corrupt responses are NACKed, up to
// maxFrameAttempts each.
func (t *Transport) Transceive(req []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil, hwnfc.NewTransportError("transceive", t.portName, hwnfc.ErrTransportClosed, hwnfc.ErrorTypePermanent)
	}

	out, err := frame.Build(frame.HostToDevice, req)
	if err != nil {
		return nil, hwnfc.NewDataTooLargeError("transceive", t.portName)
	}

	if err := t.port.ResetInputBuffer(); err != nil {
		return nil, hwnfc.NewTransportError("transceive", t.portName, err, hwnfc.ErrorTypeTransient)
	}
	t.rx = t.rx[:0]
	deadline := time.Now().Add(t.timeout)

	if err := t.sendFrame(out, deadline); err != nil {
		return nil, err
	}
	return t.receiveFrame(deadline)
}

// sendFrame writes out until the device ACKs it
func (t *Transport) sendFrame(out []byte, deadline time.Time) error {
	for attempt := 1; ; attempt++ {
		if err := t.write(out); err != nil {
			return err
		}

		reply, err := t.readFrame(deadline)
		if err != nil {
			return err
		}
		switch {
		case reply.Kind == frame.KindACK:
			return nil
		case reply.Kind == frame.KindNACK && attempt < maxFrameAttempts:
			hwnfc.Logger().WithField("port", t.portName).Debugf("uart: frame NACKed, resending (attempt %d)", attempt)
		default:
			return hwnfc.NewNoACKError("sendFrame", t.portName)
		}
	}
}

// receiveFrame reads the response frame, NACKing corrupt ones
func (t *Transport) receiveFrame(deadline time.Time) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		resp, err := t.readFrame(deadline)
		if errors.Is(err, hwnfc.ErrChecksumMismatch) && attempt < maxFrameAttempts {
			if err := t.write(frame.NackFrame); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		if resp.Kind != frame.KindData || resp.Direction != frame.DeviceToHost {
			return nil, hwnfc.NewFrameCorruptedError("receiveFrame", t.portName)
		}
		if err := t.write(frame.AckFrame); err != nil {
			return nil, err
		}
		return resp.Data, nil
	}
}

// readFrame reads until one frame parses or the deadline passes
func (t *Transport) readFrame(deadline time.Time) (frame.Frame, error) {
	for {
		f, n, err := frame.Parse(t.rx)
		switch {
		case err == nil:
			t.rx = t.rx[n:]
			return f, nil
		case errors.Is(err, frame.ErrChecksum):
			t.rx = t.rx[n:]
			return frame.Frame{}, &hwnfc.TransportError{
				Op: "readFrame", Port: t.portName,
				Err:       hwnfc.ErrChecksumMismatch,
				Message:   err.Error(),
				Type:      hwnfc.ErrorTypeTransient,
				Retryable: true,
			}
		case !errors.Is(err, frame.ErrIncomplete):
			t.rx = t.rx[n:]
			return frame.Frame{}, hwnfc.NewFrameCorruptedError("readFrame", t.portName)
		}

		if len(t.rx) > frame.MaxDataLength+frame.Overhead {
			t.rx = t.rx[:0]
			return frame.Frame{}, hwnfc.NewFrameCorruptedError("readFrame", t.portName)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return frame.Frame{}, hwnfc.NewTimeoutError("readFrame", t.portName)
		}
		if err := t.port.SetReadTimeout(min(remaining, readPoll)); err != nil {
			return frame.Frame{}, hwnfc.NewTransportError("readFrame", t.portName, err, hwnfc.ErrorTypePermanent)
		}
		n, err = t.port.Read(t.chunk)
		if err != nil {
			return frame.Frame{}, hwnfc.NewTransportError("readFrame", t.portName, err, hwnfc.ErrorTypePermanent)
		}
		t.rx = append(t.rx, t.chunk[:n]...)
	}
}

func (t *Transport) write(b []byte) error {
	if _, err := t.port.Write(b); err != nil {
		return hwnfc.NewTransportError("write", t.portName, err, hwnfc.ErrorTypePermanent)
	}
	return nil
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

// Close closes the serial port
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", t.portName, err)
	}
	return nil
}

// IsConnected returns true while the port is open
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Type returns the transport type
func (*Transport) Type() hwnfc.TransportType {
	return hwnfc.TransportUART
}

// Ensure Transport implements hwnfc.SyncTransceiver
var _ hwnfc.SyncTransceiver = (*Transport)(nil)
