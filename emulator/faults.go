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
	hwnfc "github.com/ZaparooProject/go-hwnfc"
)

type faultKind int

const (
	faultError faultKind = iota
	faultLoseTag
	faultDropResponse
)

// fault fires on the countdown-th call of command
type fault struct {
	err       error
	command   string
	countdown int
	kind      faultKind
}

func (f *fault) afterResponse() bool {
	return f.kind == faultDropResponse
}

// trigger returns the transceive error of the fault, taking the tag out of
// the field when the fault is a loss
func (f *fault) trigger(l *Link, command string) error {
	switch f.kind {
	case faultLoseTag:
		l.SimulateLoss()
		return hwnfc.NewTransceiveError(command, port, MessageTagLost)
	case faultDropResponse:
		l.SimulateLoss()
		return hwnfc.NewTransceiveError(command, port, MessageConnectionLost)
	default:
		if f.err == nil {
			return hwnfc.NewTransceiveError(command, port, "injected failure")
		}
		return f.err
	}
}

// FailNext makes the next call of command fail with err before it reaches the
// device. A nil err is a retryable transceive failure.
func (e *Emulator) FailNext(command hwnfc.CommandID, err error) {
	e.FailAt(command, 1, err)
}

// FailAt makes the nth call of command from now fail with err
func (e *Emulator) FailAt(command hwnfc.CommandID, n int, err error) {
	e.addFault(&fault{command: string(command), countdown: n, err: err, kind: faultError})
}

// LoseTagAt takes the tag out of the field on the nth call of command from
// now. The command is not processed.
func (e *Emulator) LoseTagAt(command hwnfc.CommandID, n int) {
	e.addFault(&fault{command: string(command), countdown: n, kind: faultLoseTag})
}

// DropResponseAt processes the nth call of command from now and loses the
// tag before the response is sent.
func (e *Emulator) DropResponseAt(command hwnfc.CommandID, n int) {
	e.addFault(&fault{command: string(command), countdown: n, kind: faultDropResponse})
}

// ClearFaults removes every pending fault
func (e *Emulator) ClearFaults() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faults = nil
}

func (e *Emulator) addFault(f *fault) {
	if f.countdown < 1 {
		f.countdown = 1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faults = append(e.faults, f)
}

// takeFault counts one call of command against every pending fault and
// returns the first one that is due. Caller holds e.mu.
func (e *Emulator) takeFault(command string) *fault {
	var due *fault
	remaining := e.faults[:0]
	for _, f := range e.faults {
		if f.command != command {
			remaining = append(remaining, f)
			continue
		}
		f.countdown--
		if f.countdown == 0 && due == nil {
			due = f
			continue
		}
		if f.countdown < 1 {
			f.countdown = 1
		}
		remaining = append(remaining, f)
	}
	e.faults = remaining
	return due
}
