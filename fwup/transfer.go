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
	"context"
	"fmt"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"github.com/sirupsen/logrus"
)

// signatureSequenceID is the sequence id sent with the signature transfer
const signatureSequenceID = 0

// ProgressStore keeps the resume point of a transfer across taps
type ProgressStore interface {
	SaveSequenceID(ctx context.Context, key Key, seq uint32) error
	LoadSequenceID(ctx context.Context, key Key) (seq uint32, ok bool, err error)
	ClearProgress(ctx context.Context, key Key) error
}

// Key identifies a transfer of one firmware version to one device
type Key struct {
	Serial  string
	Version string
}

// UpdaterOption configures an Updater
type UpdaterOption func(*Updater)

// WithProgressStore saves the resume point after every acknowledged chunk
// and clears it when the transfer succeeds
func WithProgressStore(store ProgressStore) UpdaterOption {
	return func(u *Updater) {
		u.store = store
	}
}

// WithStateObserver calls fn on every state change
func WithStateObserver(fn func(from, to State)) UpdaterOption {
	return func(u *Updater) {
		u.onState = fn
	}
}

// Updater runs the firmware transfer state machine. One Updater runs one
// transfer at a time; reuse it across taps to resume.
type Updater struct {
	store   ProgressStore
	onState func(from, to State)
	log     *logrus.Entry
	state   State
}

// NewUpdater creates an idle updater
func NewUpdater(opts ...UpdaterOption) *Updater {
	u := &Updater{state: StateIdle}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// State returns the current state
func (u *Updater) State() State {
	return u.state
}

func (u *Updater) transition(to State) error {
	if !u.state.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, u.state, to)
	}
	from := u.state
	u.state = to
	u.log.WithFields(logrus.Fields{"from": from, "to": to}).Debug("fwup state")
	if u.onState != nil {
		u.onState(from, to)
	}
	return nil
}

func (u *Updater) fail(kind ErrorKind, seq uint32, err error) error {
	failedIn := u.state
	u.state = StateFailed
	if u.onState != nil {
		u.onState(failedIn, StateFailed)
	}
	return &Error{Kind: kind, State: failedIn, SequenceID: seq, Err: err}
}

// Run transfers data to the device over cmds. A fresh transfer starts the
// update first; a resumed one sends chunks from the resume point onward and
// never re-sends earlier ones. After the last chunk the signature is sent in
// normal mode and the transfer is finished.
//
// onProgress, if set, is called after every acknowledged chunk. A failure is
// returned as *Error, whose SequenceID is where a later Run resumes.
func (u *Updater) Run(
	ctx context.Context, s *hwnfc.Session, cmds hwnfc.Commands, data *Data, resume Resume, onProgress func(Progress),
) (hwnfc.FwupFinishStatus, error) {
	if err := data.Validate(); err != nil {
		return hwnfc.FwupFinishUnspecified, err
	}
	if resume.IsResume() && resume.SequenceID() > data.ChunkCount() {
		return hwnfc.FwupFinishUnspecified, fmt.Errorf("%w: %s of %d chunks", ErrInvalidResume, resume, data.ChunkCount())
	}

	u.state = StateIdle
	key := keyFor(s, data)
	u.log = hwnfc.Logger().WithFields(logrus.Fields{
		"session": s.ID(),
		"version": data.Version,
		"mode":    data.Mode,
		"resume":  resume.String(),
	})

	seq := uint32(0)
	if resume.IsResume() {
		seq = resume.SequenceID()
	} else if err := u.start(ctx, s, cmds, data); err != nil {
		return hwnfc.FwupFinishUnspecified, err
	}

	seq, err := u.transferChunks(ctx, s, cmds, data, key, seq, onProgress)
	if err != nil {
		return hwnfc.FwupFinishUnspecified, err
	}

	if err := u.transferSignature(ctx, s, cmds, data, seq); err != nil {
		return hwnfc.FwupFinishUnspecified, err
	}

	status, err := u.finish(ctx, s, cmds, data, seq)
	if err != nil {
		return status, err
	}

	if u.store != nil {
		if err := u.store.ClearProgress(ctx, key); err != nil {
			u.log.WithError(err).Warn("failed to clear fwup progress")
		}
	}
	return status, nil
}

func (u *Updater) start(ctx context.Context, s *hwnfc.Session, cmds hwnfc.Commands, data *Data) error {
	if err := u.transition(StateStarting); err != nil {
		return err
	}
	ok, err := cmds.FwupStart(ctx, s, data.StartSize(), data.Mode)
	if err != nil {
		return u.fail(classify(err), 0, err)
	}
	if !ok {
		return u.fail(KindCommand, 0, ErrStartRejected)
	}
	return nil
}

func (u *Updater) transferChunks(
	ctx context.Context, s *hwnfc.Session, cmds hwnfc.Commands, data *Data, key Key, seq uint32, onProgress func(Progress),
) (uint32, error) {
	if seq >= data.ChunkCount() {
		return seq, nil
	}
	if err := u.transition(StateTransferring); err != nil {
		return seq, err
	}

	final := data.FinalSequenceID()
	for seq <= final {
		chunk, offset := data.Chunk(seq)
		ok, err := cmds.FwupTransfer(ctx, s, seq, chunk, offset, data.Mode)
		if err != nil {
			return seq, u.fail(classify(err), seq, err)
		}
		if !ok {
			return seq, u.fail(KindCommand, seq, fmt.Errorf("%w: sequence %d", ErrChunkRejected, seq))
		}

		seq++
		if u.store != nil {
			if err := u.store.SaveSequenceID(ctx, key, seq); err != nil {
				u.log.WithError(err).Warn("failed to save fwup progress")
			}
		}
		if onProgress != nil {
			onProgress(newProgress(seq, data))
		}
	}
	return seq, nil
}

func (u *Updater) transferSignature(
	ctx context.Context, s *hwnfc.Session, cmds hwnfc.Commands, data *Data, seq uint32,
) error {
	if err := u.transition(StateTransferringSignature); err != nil {
		return err
	}
	ok, err := cmds.FwupTransfer(ctx, s, signatureSequenceID, data.Signature, data.SignatureOffset, hwnfc.FwupModeNormal)
	if err != nil {
		return u.fail(classify(err), seq, err)
	}
	if !ok {
		return u.fail(KindCommand, seq, fmt.Errorf("%w: signature", ErrChunkRejected))
	}
	return nil
}

func (u *Updater) finish(
	ctx context.Context, s *hwnfc.Session, cmds hwnfc.Commands, data *Data, seq uint32,
) (hwnfc.FwupFinishStatus, error) {
	if err := u.transition(StateFinishing); err != nil {
		return hwnfc.FwupFinishUnspecified, err
	}
	status, err := cmds.FwupFinish(ctx, s, data.AppPropertiesOffset, data.SignatureOffset, data.Mode)
	if err != nil {
		return status, u.fail(classify(err), seq, err)
	}

	switch status {
	case hwnfc.FwupFinishSuccess, hwnfc.FwupFinishWillApplyPatch:
		u.log.WithField("status", status).Info("firmware transfer complete")
		return status, u.transition(StateSuccess)
	case hwnfc.FwupFinishUnauthenticated:
		return status, u.fail(KindUnauthenticated, seq, hwnfc.ErrUnauthenticated)
	default:
		return status, u.fail(KindCommand, seq, fmt.Errorf("%w: %s", ErrFinishRejected, status))
	}
}

func keyFor(s *hwnfc.Session, data *Data) Key {
	key := Key{Version: data.Version}
	if id := s.Identity(); id != nil {
		key.Serial = id.Serial
	}
	return key
}

// Update runs one transfer tap through t. The resume point is read from
// store when one is saved for this device and version.
func Update(
	ctx context.Context, t *hwnfc.Transactor, params hwnfc.SessionParameters, data *Data, store ProgressStore,
	onProgress func(Progress),
) (hwnfc.FwupFinishStatus, error) {
	return hwnfc.Transact(ctx, t, params, func(ctx context.Context, s *hwnfc.Session, cmds hwnfc.Commands) (hwnfc.FwupFinishStatus, error) {
		resume := StartFromBeginning()
		if store != nil {
			seq, ok, err := store.LoadSequenceID(ctx, keyFor(s, data))
			switch {
			case err != nil:
				hwnfc.Logger().WithError(err).Warn("failed to load fwup progress, starting over")
			case ok:
				resume = ResumeFromSequenceID(seq)
			}
		}
		return NewUpdater(WithProgressStore(store)).Run(ctx, s, cmds, data, resume, onProgress)
	})
}
