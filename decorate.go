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
	"fmt"
)

// Call identifies one command invocation seen by a CommandHook
type Call struct {
	Session *Session
	ID      CommandID
}

// CallFunc performs the call on the next layer
type CallFunc func(ctx context.Context) (any, error)

// CommandHook runs around every command of a decorated Commands. Around must
// call next at least once unless it fails the call outright, and must return
// either next's value or a value of the same type.
type CommandHook interface {
	// Name identifies the hook. Commands are never decorated twice with
	// hooks of the same name.
	Name() string
	Around(ctx context.Context, call Call, next CallFunc) (any, error)
}

// Renewer is implemented by hooks that want a fresh instance of themselves
// around the follow-up calls of a hardware interaction.
type Renewer interface {
	Renew() CommandHook
}

// Decorate returns a Commands that routes every call to next through hook.
// Interactions returned by next are re-wrapped so their continuations run
// through a renewed hook as well. If next is already decorated with a hook of
// the same name, next is returned unchanged.
func Decorate(next Commands, hook CommandHook) Commands {
	if decoratedWith(next, hook.Name()) {
		return next
	}
	return &decorated{next: next, hook: hook}
}

func decoratedWith(c Commands, name string) bool {
	for {
		d, ok := c.(*decorated)
		if !ok {
			return false
		}
		if d.hook.Name() == name {
			return true
		}
		c = d.next
	}
}

func renew(hook CommandHook) CommandHook {
	if r, ok := hook.(Renewer); ok {
		return r.Renew()
	}
	return hook
}

type decorated struct {
	next Commands
	hook CommandHook
}

func invoke[T any](
	ctx context.Context, d *decorated, id CommandID, s *Session, fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	res, err := d.hook.Around(ctx, Call{ID: id, Session: s}, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("%w: hook %s returned %T for %s", ErrInvalidResponse, d.hook.Name(), res, id)
	}
	return v, nil
}

func interact[T any](
	ctx context.Context, d *decorated, id CommandID, s *Session,
	fn func(ctx context.Context) (HardwareInteraction[T], error),
) (HardwareInteraction[T], error) {
	h, err := invoke(ctx, d, id, s, fn)
	if err != nil {
		return h, err
	}
	hook := d.hook
	return h.Wrap(func(cmds Commands) Commands {
		return Decorate(cmds, renew(hook))
	}), nil
}

func (d *decorated) Version(ctx context.Context, s *Session) (uint16, error) {
	return invoke(ctx, d, CmdVersion, s, func(ctx context.Context) (uint16, error) {
		return d.next.Version(ctx, s)
	})
}

func (d *decorated) GetDeviceInfo(ctx context.Context, s *Session) (*DeviceInfo, error) {
	return invoke(ctx, d, CmdGetDeviceInfo, s, func(ctx context.Context) (*DeviceInfo, error) {
		return d.next.GetDeviceInfo(ctx, s)
	})
}

func (d *decorated) GetFirmwareMetadata(ctx context.Context, s *Session) (*FirmwareMetadata, error) {
	return invoke(ctx, d, CmdGetFirmwareMetadata, s, func(ctx context.Context) (*FirmwareMetadata, error) {
		return d.next.GetFirmwareMetadata(ctx, s)
	})
}

func (d *decorated) QueryAuthentication(ctx context.Context, s *Session) (bool, error) {
	return invoke(ctx, d, CmdQueryAuthentication, s, func(ctx context.Context) (bool, error) {
		return d.next.QueryAuthentication(ctx, s)
	})
}

func (d *decorated) LockDevice(ctx context.Context, s *Session) (bool, error) {
	return invoke(ctx, d, CmdLockDevice, s, func(ctx context.Context) (bool, error) {
		return d.next.LockDevice(ctx, s)
	})
}

func (d *decorated) GetAuthenticationKey(ctx context.Context, s *Session) ([]byte, error) {
	return invoke(ctx, d, CmdGetAuthenticationKey, s, func(ctx context.Context) ([]byte, error) {
		return d.next.GetAuthenticationKey(ctx, s)
	})
}

func (d *decorated) GetInitialSpendingKey(ctx context.Context, s *Session, network Network) (*SpendingKey, error) {
	return invoke(ctx, d, CmdGetInitialSpendingKey, s, func(ctx context.Context) (*SpendingKey, error) {
		return d.next.GetInitialSpendingKey(ctx, s, network)
	})
}

func (d *decorated) GetNextSpendingKey(
	ctx context.Context, s *Session, existing []SpendingKey, network Network,
) (*SpendingKey, error) {
	return invoke(ctx, d, CmdGetNextSpendingKey, s, func(ctx context.Context) (*SpendingKey, error) {
		return d.next.GetNextSpendingKey(ctx, s, existing, network)
	})
}

func (d *decorated) SignChallenge(ctx context.Context, s *Session, challenge []byte) ([]byte, error) {
	return invoke(ctx, d, CmdSignChallenge, s, func(ctx context.Context) ([]byte, error) {
		return d.next.SignChallenge(ctx, s, challenge)
	})
}

func (d *decorated) SignTransaction(ctx context.Context, s *Session, psbt []byte, keyIndex uint32) ([]byte, error) {
	return invoke(ctx, d, CmdSignTransaction, s, func(ctx context.Context) ([]byte, error) {
		return d.next.SignTransaction(ctx, s, psbt, keyIndex)
	})
}

func (d *decorated) SealData(ctx context.Context, s *Session, data []byte) ([]byte, error) {
	return invoke(ctx, d, CmdSealData, s, func(ctx context.Context) ([]byte, error) {
		return d.next.SealData(ctx, s, data)
	})
}

func (d *decorated) UnsealData(ctx context.Context, s *Session, sealed []byte) ([]byte, error) {
	return invoke(ctx, d, CmdUnsealData, s, func(ctx context.Context) ([]byte, error) {
		return d.next.UnsealData(ctx, s, sealed)
	})
}

func (d *decorated) StartFingerprintEnrollment(ctx context.Context, s *Session, index uint32, label string) (bool, error) {
	return invoke(ctx, d, CmdStartFingerprintEnrollment, s, func(ctx context.Context) (bool, error) {
		return d.next.StartFingerprintEnrollment(ctx, s, index, label)
	})
}

func (d *decorated) GetFingerprintEnrollmentStatus(ctx context.Context, s *Session) (*EnrollmentStatus, error) {
	return invoke(ctx, d, CmdGetFingerprintEnrollmentStatus, s, func(ctx context.Context) (*EnrollmentStatus, error) {
		return d.next.GetFingerprintEnrollmentStatus(ctx, s)
	})
}

func (d *decorated) CancelFingerprintEnrollment(ctx context.Context, s *Session) (bool, error) {
	return invoke(ctx, d, CmdCancelFingerprintEnrollment, s, func(ctx context.Context) (bool, error) {
		return d.next.CancelFingerprintEnrollment(ctx, s)
	})
}

func (d *decorated) GetEnrolledFingerprints(ctx context.Context, s *Session) (*EnrolledFingerprints, error) {
	return invoke(ctx, d, CmdGetEnrolledFingerprints, s, func(ctx context.Context) (*EnrolledFingerprints, error) {
		return d.next.GetEnrolledFingerprints(ctx, s)
	})
}

func (d *decorated) DeleteFingerprint(ctx context.Context, s *Session, index uint32) (bool, error) {
	return invoke(ctx, d, CmdDeleteFingerprint, s, func(ctx context.Context) (bool, error) {
		return d.next.DeleteFingerprint(ctx, s, index)
	})
}

func (d *decorated) GetUnlockMethod(ctx context.Context, s *Session) (*UnlockInfo, error) {
	return invoke(ctx, d, CmdGetUnlockMethod, s, func(ctx context.Context) (*UnlockInfo, error) {
		return d.next.GetUnlockMethod(ctx, s)
	})
}

func (d *decorated) FwupStart(ctx context.Context, s *Session, size uint32, mode FwupMode) (bool, error) {
	return invoke(ctx, d, CmdFwupStart, s, func(ctx context.Context) (bool, error) {
		return d.next.FwupStart(ctx, s, size, mode)
	})
}

func (d *decorated) FwupTransfer(
	ctx context.Context, s *Session, sequenceID uint32, chunk []byte, offset uint32, mode FwupMode,
) (bool, error) {
	return invoke(ctx, d, CmdFwupTransfer, s, func(ctx context.Context) (bool, error) {
		return d.next.FwupTransfer(ctx, s, sequenceID, chunk, offset, mode)
	})
}

func (d *decorated) FwupFinish(
	ctx context.Context, s *Session, appPropertiesOffset, signatureOffset uint32, mode FwupMode,
) (FwupFinishStatus, error) {
	return invoke(ctx, d, CmdFwupFinish, s, func(ctx context.Context) (FwupFinishStatus, error) {
		return d.next.FwupFinish(ctx, s, appPropertiesOffset, signatureOffset, mode)
	})
}

func (d *decorated) GetEvents(ctx context.Context, s *Session) (*EventFragment, error) {
	return invoke(ctx, d, CmdGetEvents, s, func(ctx context.Context) (*EventFragment, error) {
		return d.next.GetEvents(ctx, s)
	})
}

func (d *decorated) GetCoredumpCount(ctx context.Context, s *Session) (int, error) {
	return invoke(ctx, d, CmdGetCoredumpCount, s, func(ctx context.Context) (int, error) {
		return d.next.GetCoredumpCount(ctx, s)
	})
}

func (d *decorated) GetCoredumpFragment(ctx context.Context, s *Session, offset uint32) (*CoredumpFragment, error) {
	return invoke(ctx, d, CmdGetCoredumpFragment, s, func(ctx context.Context) (*CoredumpFragment, error) {
		return d.next.GetCoredumpFragment(ctx, s, offset)
	})
}

func (d *decorated) GetCert(ctx context.Context, s *Session, kind CertKind) ([]byte, error) {
	return invoke(ctx, d, CmdGetCert, s, func(ctx context.Context) ([]byte, error) {
		return d.next.GetCert(ctx, s, kind)
	})
}

func (d *decorated) SignVerifyAttestationChallenge(
	ctx context.Context, s *Session, deviceIdentityDER, challenge []byte,
) (bool, error) {
	return invoke(ctx, d, CmdSignVerifyAttestationChallenge, s, func(ctx context.Context) (bool, error) {
		return d.next.SignVerifyAttestationChallenge(ctx, s, deviceIdentityDER, challenge)
	})
}

func (d *decorated) WipeDevice(ctx context.Context, s *Session) (HardwareInteraction[bool], error) {
	return interact(ctx, d, CmdWipeDevice, s, func(ctx context.Context) (HardwareInteraction[bool], error) {
		return d.next.WipeDevice(ctx, s)
	})
}

func (d *decorated) GetConfirmationResult(
	ctx context.Context, s *Session, handle ConfirmationHandle,
) (HardwareInteraction[bool], error) {
	return interact(ctx, d, CmdGetConfirmationResult, s, func(ctx context.Context) (HardwareInteraction[bool], error) {
		return d.next.GetConfirmationResult(ctx, s, handle)
	})
}

func (d *decorated) GetGrantRequest(ctx context.Context, s *Session, action GrantAction) (*GrantRequest, error) {
	return invoke(ctx, d, CmdGetGrantRequest, s, func(ctx context.Context) (*GrantRequest, error) {
		return d.next.GetGrantRequest(ctx, s, action)
	})
}

func (d *decorated) ProvideGrant(ctx context.Context, s *Session, grant *Grant) (bool, error) {
	return invoke(ctx, d, CmdProvideGrant, s, func(ctx context.Context) (bool, error) {
		return d.next.ProvideGrant(ctx, s, grant)
	})
}
