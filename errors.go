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
	"errors"
	"fmt"
	"strings"
)

// Transport errors
var (
	ErrTransceiveFailed = errors.New("transceive failed")
	ErrTransportTimeout = errors.New("transport timeout")
	ErrFrameCorrupted   = errors.New("frame corrupted")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrNoACK            = errors.New("no ACK received")
	ErrDataTooLarge     = errors.New("data too large for frame")
	ErrTransportClosed  = errors.New("transport closed")
)

// Session errors
var (
	// ErrTagLost indicates the tag left the field. The hardware state is unknown
	// afterwards.
	ErrTagLost = errors.New("tag lost")

	// ErrCancelled indicates the user or the platform cancelled the session.
	ErrCancelled = errors.New("session cancelled")

	// ErrSessionTimeout indicates the transaction exceeded its time budget.
	ErrSessionTimeout = errors.New("session timed out")

	// ErrSessionBusy is returned when a transactor is asked to start a second
	// transaction while one is in flight.
	ErrSessionBusy = errors.New("another session is in progress")

	// ErrUnsupportedTag indicates the tapped tag is not a supported device.
	ErrUnsupportedTag = errors.New("unsupported tag")
)

// Hardware errors
var (
	// ErrUnpairedHardware is returned when the pairing challenge fails.
	ErrUnpairedHardware = errors.New("unpaired hardware")

	// ErrUnauthenticated indicates the device is locked and must be unlocked
	// before it will answer.
	ErrUnauthenticated = errors.New("hardware is locked")

	ErrInvalidResponse  = errors.New("invalid response")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// ErrorType classifies errors for retry decisions
type ErrorType int

const (
	// ErrorTypePermanent errors should not be retried
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient errors may succeed on retry
	ErrorTypeTransient
	// ErrorTypeTimeout errors are timeouts that may be retried
	ErrorTypeTimeout
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return "permanent"
	}
}

// TransportError wraps a failure of the physical link with context
type TransportError struct {
	Err       error
	Op        string
	Port      string
	Message   string
	Type      ErrorType
	Retryable bool
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Port != "" {
		b.WriteString(" on ")
		b.WriteString(e.Port)
	}
	b.WriteString(": ")
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString("transport error")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransceiveError creates a retryable transceive failure carrying the
// platform's message.
func NewTransceiveError(op, port, message string) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       ErrTransceiveFailed,
		Message:   message,
		Type:      ErrorTypeTransient,
		Retryable: true,
	}
}

// NewTransportError creates a new transport error
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// NewTimeoutError creates a retryable timeout error
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewFrameCorruptedError creates a retryable frame corruption error
func NewFrameCorruptedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrFrameCorrupted, ErrorTypeTransient)
}

// NewNoACKError creates a retryable missing ACK error
func NewNoACKError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrNoACK, ErrorTypeTransient)
}

// NewDataTooLargeError creates a permanent error for oversize payloads
func NewDataTooLargeError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrDataTooLarge, ErrorTypePermanent)
}

// CommandError is a negative acknowledgement from the hardware for one command
type CommandError struct {
	Command CommandID
	Message string
	Code    int
}

func (e *CommandError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("command %s failed (code %d): %s", e.Command, e.Code, e.Message)
	}
	return fmt.Sprintf("command %s failed (code %d)", e.Command, e.Code)
}

// IsRetryable reports whether err may succeed if the same idempotent command
// is issued again on the same tap.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsSessionInvalidated(err) {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTransceiveFailed),
		errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrFrameCorrupted),
		errors.Is(err, ErrChecksumMismatch),
		errors.Is(err, ErrNoACK):
		return true
	default:
		return false
	}
}

// GetErrorType returns the classification of err
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type
	}

	switch {
	case errors.Is(err, ErrTransportTimeout), errors.Is(err, ErrSessionTimeout):
		return ErrorTypeTimeout
	case IsRetryable(err):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}

// IsSessionInvalidated reports whether err means the tap is over: the tag left
// the field, the session was cancelled, or it ran out of time. Nothing more can
// be sent on the link after such an error.
func IsSessionInvalidated(err error) bool {
	return errors.Is(err, ErrTagLost) ||
		errors.Is(err, ErrCancelled) ||
		errors.Is(err, ErrSessionTimeout) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsCommandError reports whether err is a hardware negative acknowledgement
func IsCommandError(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce)
}

// IsUnauthenticated reports whether err means the device is locked
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}
