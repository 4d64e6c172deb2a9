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
	"errors"
	"fmt"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
)

// Device refusals
var (
	ErrStartRejected     = errors.New("device rejected transfer start")
	ErrChunkRejected     = errors.New("device rejected chunk")
	ErrFinishRejected    = errors.New("device rejected transfer finish")
	ErrIllegalTransition = errors.New("illegal state transition")
)

// ErrorKind classifies a failed transfer
type ErrorKind int

const (
	// KindCommand is a negative acknowledgement from the device
	KindCommand ErrorKind = iota
	// KindUnauthenticated means the device is locked
	KindUnauthenticated
	// KindTransport means the link failed, usually because the tag moved
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindTransport:
		return "transport"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is a failed transfer. SequenceID is the first chunk the device has
// not acknowledged and is where a later attempt resumes.
type Error struct {
	Err        error
	Kind       ErrorKind
	State      State
	SequenceID uint32
}

func (e *Error) Error() string {
	return fmt.Sprintf("fwup %s failed during %s at sequence %d: %v", e.Kind, e.State, e.SequenceID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Resumable reports whether the transfer can continue from SequenceID on a
// later tap. Link failures can; so can a refused chunk. A locked device or a
// refused start or finish cannot.
func (e *Error) Resumable() bool {
	switch e.Kind {
	case KindTransport:
		return true
	case KindCommand:
		return e.State == StateTransferring
	default:
		return false
	}
}

func classify(err error) ErrorKind {
	switch {
	case hwnfc.IsUnauthenticated(err):
		return KindUnauthenticated
	case hwnfc.IsCommandError(err),
		errors.Is(err, ErrStartRejected),
		errors.Is(err, ErrChunkRejected),
		errors.Is(err, ErrFinishRejected):
		return KindCommand
	default:
		return KindTransport
	}
}

// IsResumable reports whether err is a transfer failure that can be resumed
func IsResumable(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Resumable()
}

// ResumePoint returns where to resume after err
func ResumePoint(err error) (Resume, bool) {
	var fe *Error
	if !errors.As(err, &fe) || !fe.Resumable() {
		return Resume{}, false
	}
	return ResumeFromSequenceID(fe.SequenceID), true
}
