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
	"github.com/ZaparooProject/go-hwnfc/internal/wire"
)

// Fragment sizes the emulator answers with
const (
	EventFragmentSize    = 256
	CoredumpFragmentSize = 512
)

// AddEvents appends to the device's telemetry event log
func (e *Emulator) AddEvents(events []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, events...)
}

// AddCoredump queues a coredump
func (e *Emulator) AddCoredump(dump []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.coredumps = append(e.coredumps, append([]byte(nil), dump...))
}

// PendingTelemetry returns the unread event bytes and coredump count
func (e *Emulator) PendingTelemetry() (events, coredumps int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events), len(e.coredumps)
}

// drainEvents answers one fragment of the event log and drops it
func (e *Emulator) drainEvents(*wire.Request) ([]byte, error) {
	n := len(e.events)
	if n > EventFragmentSize {
		n = EventFragmentSize
	}
	frag := &hwnfc.EventFragment{Fragment: append([]byte(nil), e.events[:n]...)}
	e.events = e.events[n:]
	frag.RemainingSize = uint32(len(e.events))
	return wire.OK(frag)
}

func (e *Emulator) coredumpCount(*wire.Request) ([]byte, error) {
	return wire.OK(len(e.coredumps))
}

// coredumpFragment reads the oldest coredump from offset. Reading its last
// fragment deletes it.
func (e *Emulator) coredumpFragment(req *wire.Request) ([]byte, error) {
	var args wire.OffsetArgs
	if resp, ok := decodeArgs(req, &args); !ok {
		return resp, nil
	}
	if len(e.coredumps) == 0 {
		return reject(CodeNotFound, "no coredump")
	}
	dump := e.coredumps[0]
	if int(args.Offset) > len(dump) {
		return reject(CodeBadArguments, "offset %d beyond coredump of %d bytes", args.Offset, len(dump))
	}

	end := int(args.Offset) + CoredumpFragmentSize
	if end > len(dump) {
		end = len(dump)
	}
	frag := &hwnfc.CoredumpFragment{
		Data:     append([]byte(nil), dump[args.Offset:end]...),
		Offset:   args.Offset,
		Complete: end == len(dump),
	}
	if frag.Complete {
		e.coredumps = e.coredumps[1:]
	}
	frag.CoredumpsRemaining = len(e.coredumps)
	return wire.OK(frag)
}
