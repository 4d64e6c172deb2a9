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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transceiveFailure() error {
	return NewTransceiveError("transceive", "nfc", "I/O error")
}

func TestRetryHook_BoundedAttempts(t *testing.T) {
	t.Parallel()

	for _, id := range KnownCommands() {
		if !IsIdempotent(id) {
			continue
		}
		t.Run(string(id), func(t *testing.T) {
			t.Parallel()

			mock := NewMockCommands().Fail(id, transceiveFailure())
			cmds := Decorate(mock, NewRetryHook(DefaultRetryPolicy()))

			err := callCommand(context.Background(), cmds, newTestSession(), id)

			require.Error(t, err)
			var te *TransportError
			assert.ErrorAs(t, err, &te)
			assert.Equal(t, DefaultMaxAttempts, mock.CallCount(id))
		})
	}
}

func TestRetryHook_NonIdempotentCalledOnce(t *testing.T) {
	t.Parallel()

	for _, id := range KnownCommands() {
		if IsIdempotent(id) {
			continue
		}
		t.Run(string(id), func(t *testing.T) {
			t.Parallel()

			mock := NewMockCommands().Fail(id, transceiveFailure())
			cmds := Decorate(mock, NewRetryHook(DefaultRetryPolicy()))

			err := callCommand(context.Background(), cmds, newTestSession(), id)

			require.Error(t, err)
			assert.Equal(t, 1, mock.CallCount(id))
		})
	}
}

func TestRetryHook_SuccessAfterFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	mock := NewMockCommands().On(CmdVersion, func(MockCall) (any, error) {
		calls++
		if calls < 3 {
			return nil, transceiveFailure()
		}
		return uint16(7), nil
	})
	cmds := Decorate(mock, NewRetryHook(DefaultRetryPolicy()))

	v, err := cmds.Version(context.Background(), newTestSession())

	require.NoError(t, err)
	assert.Equal(t, uint16(7), v)
	assert.Equal(t, 3, mock.CallCount(CmdVersion))
}

func TestRetryHook_NonRetryableErrorPropagates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
	}{
		{name: "command error", err: &CommandError{Command: CmdSealData, Code: 2}},
		{name: "unauthenticated", err: ErrUnauthenticated},
		{name: "tag lost", err: fmt.Errorf("%w: %w", ErrTagLost, ErrTransceiveFailed)},
		{name: "data too large", err: NewDataTooLargeError("seal_data", "nfc")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := NewMockCommands().Fail(CmdSealData, tt.err)
			cmds := Decorate(mock, NewRetryHook(DefaultRetryPolicy()))

			_, err := cmds.SealData(context.Background(), newTestSession(), []byte("x"))

			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, mock.CallCount(CmdSealData))
		})
	}
}

func TestRetryHook_CancellationStopsRetries(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancelCause(context.Background())
	mock := NewMockCommands().On(CmdGetDeviceInfo, func(MockCall) (any, error) {
		cancel(ErrCancelled)
		return nil, transceiveFailure()
	})
	cmds := Decorate(mock, NewRetryHook(DefaultRetryPolicy()))

	_, err := cmds.GetDeviceInfo(ctx, newTestSession())

	require.Error(t, err)
	assert.Equal(t, 1, mock.CallCount(CmdGetDeviceInfo))
}

func TestRetryHook_CustomMaxAttempts(t *testing.T) {
	t.Parallel()

	mock := NewMockCommands().Fail(CmdGetCert, transceiveFailure())
	cmds := Decorate(mock, NewRetryHook(RetryPolicy{MaxAttempts: 2}))

	_, err := cmds.GetCert(context.Background(), newTestSession(), CertBatch)

	require.Error(t, err)
	assert.Equal(t, 2, mock.CallCount(CmdGetCert))
}

func TestRetryHook_FinishDisconnectReinterpreted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err        error
		name       string
		wantStatus FwupFinishStatus
		wantErr    bool
	}{
		{
			name:       "tag connection lost",
			err:        NewTransceiveError("fwup_finish", "nfc", "Tag connection lost"),
			wantStatus: FwupFinishWillApplyPatch,
		},
		{
			name:       "tag was lost",
			err:        fmt.Errorf("finish: %w", NewTransceiveError("fwup_finish", "nfc", "android.nfc.TagLostException: Tag was lost.")),
			wantStatus: FwupFinishWillApplyPatch,
		},
		{
			name:    "other transceive failure",
			err:     NewTransceiveError("fwup_finish", "nfc", "I/O error"),
			wantErr: true,
		},
		{
			name:    "timeout with matching message",
			err:     &TransportError{Op: "fwup_finish", Err: ErrTransportTimeout, Message: "Tag was lost"},
			wantErr: true,
		},
		{
			name:    "command error",
			err:     &CommandError{Command: CmdFwupFinish, Message: "Tag connection lost"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := NewMockCommands().Fail(CmdFwupFinish, tt.err)
			cmds := Decorate(mock, NewRetryHook(DefaultRetryPolicy()))

			status, err := cmds.FwupFinish(context.Background(), newTestSession(), 0x200, 0x1000, FwupModeDelta)

			assert.Equal(t, 1, mock.CallCount(CmdFwupFinish))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestRetryHook_ContinuationIsRetried(t *testing.T) {
	t.Parallel()

	mock := NewMockCommands().Fail(CmdGetDeviceInfo, transceiveFailure())
	mock.Return(CmdWipeDevice, RequiresConfirmation(
		func(ctx context.Context, s *Session, cmds Commands) (HardwareInteraction[bool], error) {
			if _, err := cmds.GetDeviceInfo(ctx, s); err != nil {
				return HardwareInteraction[bool]{}, err
			}
			return Completed(true), nil
		}))
	cmds := Decorate(mock, NewRetryHook(DefaultRetryPolicy()))
	s := newTestSession()

	h, err := cmds.WipeDevice(context.Background(), s)
	require.NoError(t, err)
	next, ok := h.Next()
	require.True(t, ok)

	_, err = next(context.Background(), s, mock)

	require.Error(t, err)
	assert.Equal(t, 1, mock.CallCount(CmdWipeDevice))
	assert.Equal(t, DefaultMaxAttempts, mock.CallCount(CmdGetDeviceInfo))
}

func TestRetryHook_ContinuationNotDoubleWrapped(t *testing.T) {
	t.Parallel()

	mock := NewMockCommands().Fail(CmdGetDeviceInfo, transceiveFailure())
	mock.Return(CmdWipeDevice, RequiresConfirmation(
		func(ctx context.Context, s *Session, cmds Commands) (HardwareInteraction[bool], error) {
			_, err := cmds.GetDeviceInfo(ctx, s)
			return HardwareInteraction[bool]{}, err
		}))
	cmds := Decorate(mock, NewRetryHook(DefaultRetryPolicy()))
	s := newTestSession()

	h, err := cmds.WipeDevice(context.Background(), s)
	require.NoError(t, err)
	next, _ := h.Next()

	_, err = next(context.Background(), s, cmds)

	require.Error(t, err)
	assert.Equal(t, DefaultMaxAttempts, mock.CallCount(CmdGetDeviceInfo))
}

func TestRetryHook_EmulatedPromptOptionsAreRetried(t *testing.T) {
	t.Parallel()

	mock := NewMockCommands().Fail(CmdGetUnlockMethod, transceiveFailure())
	next := func(ctx context.Context, s *Session, cmds Commands) (HardwareInteraction[bool], error) {
		_, err := cmds.GetUnlockMethod(ctx, s)
		return Completed(err == nil), err
	}
	mock.Return(CmdWipeDevice, ConfirmWithEmulatedPrompt(
		EmulatedPromptOption[bool]{Name: PromptApprove, Next: next},
		EmulatedPromptOption[bool]{Name: PromptDeny, Next: next},
	))
	cmds := Decorate(mock, NewRetryHook(DefaultRetryPolicy()))
	s := newTestSession()

	h, err := cmds.WipeDevice(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, h.Options(), 2)

	_, err = Resolve(context.Background(), s, mock, h, ChooseOption[bool](PromptDeny))

	require.Error(t, err)
	assert.Equal(t, DefaultMaxAttempts, mock.CallCount(CmdGetUnlockMethod))
}

func TestRetryHook_RenewReturnsFreshHook(t *testing.T) {
	t.Parallel()

	hook := NewRetryHook(RetryPolicy{MaxAttempts: 3})
	renewed := hook.Renew()

	require.IsType(t, &RetryHook{}, renewed)
	assert.NotSame(t, hook, renewed)
	assert.Equal(t, 3, renewed.(*RetryHook).policy.MaxAttempts)
}
