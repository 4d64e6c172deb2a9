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

// Package wire encodes command requests and responses exchanged with the
// hardware as CBOR envelopes
package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ProtocolVersion is the envelope version sent in every request
const ProtocolVersion = 1

// SelectConfirmation is the request an emulated prompt sends to tell the
// emulator which option the user picked. It is not a hardware command.
const SelectConfirmation = "select_confirmation"

// Status is the outcome carried by a response envelope
type Status string

const (
	StatusOK                  Status = "ok"
	StatusError               Status = "error"
	StatusUnauthenticated     Status = "unauthenticated"
	StatusConfirmationPending Status = "confirmation_pending"
)

// ErrMalformed is returned for envelopes that do not decode
var ErrMalformed = errors.New("malformed envelope")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic(err)
	}
}

// Request is one command sent to the hardware
type Request struct {
	Command string          `cbor:"cmd"`
	Args    cbor.RawMessage `cbor:"args,omitempty"`
	Version uint8           `cbor:"v"`
}

// Handle references a confirmation the device is waiting on
type Handle struct {
	Response     []byte `cbor:"response"`
	Confirmation []byte `cbor:"confirmation"`
}

// Response is the hardware's answer to a Request
type Response struct {
	Handle  *Handle         `cbor:"handle,omitempty"`
	Status  Status          `cbor:"status"`
	Message string          `cbor:"msg,omitempty"`
	Result  cbor.RawMessage `cbor:"result,omitempty"`
	Code    int             `cbor:"code,omitempty"`
}

// Marshal encodes v with deterministic CBOR
func Marshal(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cbor encode: %w", err)
	}
	return data, nil
}

// Unmarshal decodes CBOR data into v
func Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return nil
}

// EncodeRequest builds the envelope for command with args. A nil args sends
// no argument map.
func EncodeRequest(command string, args any) ([]byte, error) {
	req := Request{Version: ProtocolVersion, Command: command}
	if args != nil {
		raw, err := Marshal(args)
		if err != nil {
			return nil, err
		}
		req.Args = raw
	}
	return Marshal(req)
}

// DecodeRequest parses a request envelope
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := Unmarshal(data, &req); err != nil {
		return nil, err
	}
	if req.Command == "" {
		return nil, fmt.Errorf("%w: missing command", ErrMalformed)
	}
	if req.Version != ProtocolVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformed, req.Version)
	}
	return &req, nil
}

// DecodeArgs decodes the request's arguments into v
func (r *Request) DecodeArgs(v any) error {
	if len(r.Args) == 0 {
		return fmt.Errorf("%w: %s has no arguments", ErrMalformed, r.Command)
	}
	return Unmarshal(r.Args, v)
}

// OK builds a successful response carrying result
func OK(result any) ([]byte, error) {
	resp := Response{Status: StatusOK}
	if result != nil {
		raw, err := Marshal(result)
		if err != nil {
			return nil, err
		}
		resp.Result = raw
	}
	return Marshal(resp)
}

// Fail builds a negative acknowledgement
func Fail(code int, message string) ([]byte, error) {
	return Marshal(Response{Status: StatusError, Code: code, Message: message})
}

// Unauthenticated builds the response of a locked device
func Unauthenticated() ([]byte, error) {
	return Marshal(Response{Status: StatusUnauthenticated})
}

// Pending builds the response of a device waiting on the user
func Pending(h Handle) ([]byte, error) {
	return Marshal(Response{Status: StatusConfirmationPending, Handle: &h})
}

// DecodeResponse parses a response envelope
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	switch resp.Status {
	case StatusOK, StatusError, StatusUnauthenticated:
	case StatusConfirmationPending:
		if resp.Handle == nil {
			return nil, fmt.Errorf("%w: pending response without handle", ErrMalformed)
		}
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrMalformed, resp.Status)
	}
	return &resp, nil
}

// DecodeResult decodes the response's result into v
func (r *Response) DecodeResult(v any) error {
	if len(r.Result) == 0 {
		return fmt.Errorf("%w: empty result", ErrMalformed)
	}
	return Unmarshal(r.Result, v)
}
