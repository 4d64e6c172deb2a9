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
	"sort"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"github.com/ZaparooProject/go-hwnfc/internal/wire"
)

// enrollment is a fingerprint enrollment in progress. Every status poll
// counts as one finger placement.
type enrollment struct {
	label  string
	index  uint32
	passes uint32
}

func (e *Emulator) startEnrollment(req *wire.Request) ([]byte, error) {
	var args wire.FingerprintArgs
	if resp, ok := decodeArgs(req, &args); !ok {
		return resp, nil
	}
	if args.Index >= e.config.MaxFingerprints {
		return reject(CodeBadArguments, "fingerprint index %d out of range", args.Index)
	}
	e.enrollment = &enrollment{index: args.Index, label: args.Label}
	return wire.OK(true)
}

func (e *Emulator) enrollmentStatus(*wire.Request) ([]byte, error) {
	if e.enrollment == nil {
		return wire.OK(&hwnfc.EnrollmentStatus{State: hwnfc.EnrollmentNotInProgress})
	}

	e.enrollment.passes++
	status := &hwnfc.EnrollmentStatus{
		State:     hwnfc.EnrollmentIncomplete,
		PassCount: e.enrollment.passes,
	}
	if e.enrollment.passes >= e.config.EnrollmentPasses {
		e.fingerprints[e.enrollment.index] = e.enrollment.label
		status.State = hwnfc.EnrollmentComplete
		status.Fingerprint = &hwnfc.FingerprintHandle{Index: e.enrollment.index, Label: e.enrollment.label}
		e.enrollment = nil
	}
	return wire.OK(status)
}

func (e *Emulator) cancelEnrollment(*wire.Request) ([]byte, error) {
	cancelled := e.enrollment != nil
	e.enrollment = nil
	return wire.OK(cancelled)
}

func (e *Emulator) enrolledFingerprints(*wire.Request) ([]byte, error) {
	list := &hwnfc.EnrolledFingerprints{
		MaxCount:     e.config.MaxFingerprints,
		Fingerprints: make([]hwnfc.FingerprintHandle, 0, len(e.fingerprints)),
	}
	for index, label := range e.fingerprints {
		list.Fingerprints = append(list.Fingerprints, hwnfc.FingerprintHandle{Index: index, Label: label})
	}
	sort.Slice(list.Fingerprints, func(i, j int) bool {
		return list.Fingerprints[i].Index < list.Fingerprints[j].Index
	})
	return wire.OK(list)
}

func (e *Emulator) deleteFingerprint(req *wire.Request) ([]byte, error) {
	var args wire.FingerprintArgs
	if resp, ok := decodeArgs(req, &args); !ok {
		return resp, nil
	}
	_, found := e.fingerprints[args.Index]
	delete(e.fingerprints, args.Index)
	return wire.OK(found)
}
