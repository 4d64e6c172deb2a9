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
	"fmt"
)

// State is a step of the transfer state machine
type State int

const (
	StateIdle State = iota
	StateStarting
	StateTransferring
	StateTransferringSignature
	StateFinishing
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateTransferring:
		return "transferring"
	case StateTransferringSignature:
		return "transferring_signature"
	case StateFinishing:
		return "finishing"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

// transitions lists the states reachable from each state. A resumed transfer
// goes from idle straight to transferring, or to the signature when every
// chunk was already acknowledged.
var transitions = map[State][]State{
	StateIdle:                  {StateStarting, StateTransferring, StateTransferringSignature, StateFailed},
	StateStarting:              {StateTransferring, StateFailed},
	StateTransferring:          {StateTransferringSignature, StateFailed},
	StateTransferringSignature: {StateFinishing, StateFailed},
	StateFinishing:             {StateSuccess, StateFailed},
}

// CanTransition reports whether the machine may move from s to next
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
