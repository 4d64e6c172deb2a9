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
	"time"

	"github.com/ZaparooProject/go-hwnfc/internal/wire"
)

// Emulated prompt option names offered for a pending confirmation
const (
	PromptApprove = "Approve"
	PromptDeny    = "Deny"
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// ExchangeTimeout bounds a single request/response exchange. Zero leaves
	// the bound to the caller's context.
	ExchangeTimeout time.Duration
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		ExchangeTimeout: 5 * time.Second,
	}
}

// Device is the concrete Commands implementation at the bottom of every
// pipeline. Each call is encoded as one request envelope and exchanged over
// the transceiver.
//
// Thread Safety: Device is NOT thread-safe. The link carries one exchange at
// a time and a Device belongs to the transaction of a single tap.
type Device struct {
	transport Transceiver
	config    *DeviceConfig
	profile   LinkProfile
}

// NewDevice creates a device over t
func NewDevice(t Transceiver, config *DeviceConfig) *Device {
	if config == nil {
		config = DefaultDeviceConfig()
	}
	return &Device{
		transport: t,
		config:    config,
		profile:   ProfileFor(t),
	}
}

// Transport returns the underlying transceiver
func (d *Device) Transport() Transceiver {
	return d.transport
}

// Profile returns the link profile of the transport
func (d *Device) Profile() LinkProfile {
	return d.profile
}

// exchange sends one envelope and decodes the answer
func (d *Device) exchange(ctx context.Context, s *Session, command string, args any) (*wire.Response, error) {
	req, err := wire.EncodeRequest(command, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidParameter, command, err)
	}
	if d.profile.MaxPayload > 0 && len(req) > d.profile.MaxPayload {
		return nil, NewDataTooLargeError(command, string(d.transport.Type()))
	}

	if d.config.ExchangeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.ExchangeTimeout)
		defer cancel()
	}

	sessionLog(s).Debugf("TX %s (%d bytes)", command, len(req))
	raw, err := d.transport.Transceive(ctx, req)
	if err != nil {
		return nil, err
	}
	sessionLog(s).Debugf("RX %s (%d bytes)", command, len(raw))

	resp, err := wire.DecodeResponse(raw)
	if err != nil {
		return nil, &TransportError{
			Op:        command,
			Port:      string(d.transport.Type()),
			Err:       ErrFrameCorrupted,
			Message:   err.Error(),
			Type:      ErrorTypeTransient,
			Retryable: true,
		}
	}
	return resp, nil
}

func statusError(id CommandID, resp *wire.Response) error {
	switch resp.Status {
	case wire.StatusError:
		return &CommandError{Command: id, Code: resp.Code, Message: resp.Message}
	case wire.StatusUnauthenticated:
		return fmt.Errorf("%s: %w", id, ErrUnauthenticated)
	default:
		return fmt.Errorf("%w: %s answered %s", ErrInvalidResponse, id, resp.Status)
	}
}

// request performs a command that answers with a plain value
func request[T any](ctx context.Context, d *Device, s *Session, id CommandID, args any) (T, error) {
	var v T
	resp, err := d.exchange(ctx, s, string(id), args)
	if err != nil {
		return v, err
	}
	if resp.Status != wire.StatusOK {
		return v, statusError(id, resp)
	}
	if len(resp.Result) == 0 {
		return v, nil
	}
	if err := resp.DecodeResult(&v); err != nil {
		return v, fmt.Errorf("%w: %s: %w", ErrInvalidResponse, id, err)
	}
	return v, nil
}

// confirm performs a command that may wait on the user
func (d *Device) confirm(ctx context.Context, s *Session, id CommandID, args any) (HardwareInteraction[bool], error) {
	resp, err := d.exchange(ctx, s, string(id), args)
	if err != nil {
		return HardwareInteraction[bool]{}, err
	}

	switch resp.Status {
	case wire.StatusOK:
		var ok bool
		if len(resp.Result) > 0 {
			if err := resp.DecodeResult(&ok); err != nil {
				return HardwareInteraction[bool]{}, fmt.Errorf("%w: %s: %w", ErrInvalidResponse, id, err)
			}
		}
		return Completed(ok), nil
	case wire.StatusConfirmationPending:
		return d.pending(ConfirmationHandle{
			ResponseHandle:     resp.Handle.Response,
			ConfirmationHandle: resp.Handle.Confirmation,
		}), nil
	default:
		return HardwareInteraction[bool]{}, statusError(id, resp)
	}
}

// pending returns the interaction for a confirmation the device waits on.
// Transports that cannot be confirmed physically get a software prompt.
func (d *Device) pending(h ConfirmationHandle) HardwareInteraction[bool] {
	next := func(ctx context.Context, s *Session, cmds Commands) (HardwareInteraction[bool], error) {
		return cmds.GetConfirmationResult(ctx, s, h)
	}
	if !HasCapability(d.transport, CapabilityEmulatedConfirmation) {
		return RequiresConfirmation(next)
	}
	return ConfirmWithEmulatedPrompt(
		EmulatedPromptOption[bool]{Name: PromptApprove, OnSelect: d.selectOption(h, true), Next: next},
		EmulatedPromptOption[bool]{Name: PromptDeny, OnSelect: d.selectOption(h, false), Next: next},
	)
}

func (d *Device) selectOption(h ConfirmationHandle, approve bool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		args := wire.SelectArgs{
			Handle:  wire.Handle{Response: h.ResponseHandle, Confirmation: h.ConfirmationHandle},
			Approve: approve,
		}
		resp, err := d.exchange(ctx, nil, wire.SelectConfirmation, args)
		if err != nil {
			return err
		}
		if resp.Status != wire.StatusOK {
			return statusError(wire.SelectConfirmation, resp)
		}
		return nil
	}
}

func (d *Device) Version(ctx context.Context, s *Session) (uint16, error) {
	return request[uint16](ctx, d, s, CmdVersion, nil)
}

func (d *Device) GetDeviceInfo(ctx context.Context, s *Session) (*DeviceInfo, error) {
	return request[*DeviceInfo](ctx, d, s, CmdGetDeviceInfo, nil)
}

func (d *Device) GetFirmwareMetadata(ctx context.Context, s *Session) (*FirmwareMetadata, error) {
	return request[*FirmwareMetadata](ctx, d, s, CmdGetFirmwareMetadata, nil)
}

func (d *Device) QueryAuthentication(ctx context.Context, s *Session) (bool, error) {
	return request[bool](ctx, d, s, CmdQueryAuthentication, nil)
}

func (d *Device) LockDevice(ctx context.Context, s *Session) (bool, error) {
	return request[bool](ctx, d, s, CmdLockDevice, nil)
}

func (d *Device) GetAuthenticationKey(ctx context.Context, s *Session) ([]byte, error) {
	return request[[]byte](ctx, d, s, CmdGetAuthenticationKey, nil)
}

func (d *Device) GetInitialSpendingKey(ctx context.Context, s *Session, network Network) (*SpendingKey, error) {
	return request[*SpendingKey](ctx, d, s, CmdGetInitialSpendingKey, wire.NetworkArgs{Network: string(network)})
}

func (d *Device) GetNextSpendingKey(
	ctx context.Context, s *Session, existing []SpendingKey, network Network,
) (*SpendingKey, error) {
	indexes := make([]uint32, len(existing))
	for i, k := range existing {
		indexes[i] = k.Index
	}
	return request[*SpendingKey](ctx, d, s, CmdGetNextSpendingKey, wire.NextKeyArgs{
		Network:         string(network),
		ExistingIndexes: indexes,
	})
}

func (d *Device) SignChallenge(ctx context.Context, s *Session, challenge []byte) ([]byte, error) {
	return request[[]byte](ctx, d, s, CmdSignChallenge, wire.ChallengeArgs{Challenge: challenge})
}

func (d *Device) SignTransaction(ctx context.Context, s *Session, psbt []byte, keyIndex uint32) ([]byte, error) {
	return request[[]byte](ctx, d, s, CmdSignTransaction, wire.SignTransactionArgs{PSBT: psbt, KeyIndex: keyIndex})
}

func (d *Device) SealData(ctx context.Context, s *Session, data []byte) ([]byte, error) {
	return request[[]byte](ctx, d, s, CmdSealData, wire.DataArgs{Data: data})
}

func (d *Device) UnsealData(ctx context.Context, s *Session, sealed []byte) ([]byte, error) {
	return request[[]byte](ctx, d, s, CmdUnsealData, wire.DataArgs{Data: sealed})
}

func (d *Device) StartFingerprintEnrollment(ctx context.Context, s *Session, index uint32, label string) (bool, error) {
	return request[bool](ctx, d, s, CmdStartFingerprintEnrollment, wire.FingerprintArgs{Index: index, Label: label})
}

func (d *Device) GetFingerprintEnrollmentStatus(ctx context.Context, s *Session) (*EnrollmentStatus, error) {
	return request[*EnrollmentStatus](ctx, d, s, CmdGetFingerprintEnrollmentStatus, nil)
}

func (d *Device) CancelFingerprintEnrollment(ctx context.Context, s *Session) (bool, error) {
	return request[bool](ctx, d, s, CmdCancelFingerprintEnrollment, nil)
}

func (d *Device) GetEnrolledFingerprints(ctx context.Context, s *Session) (*EnrolledFingerprints, error) {
	return request[*EnrolledFingerprints](ctx, d, s, CmdGetEnrolledFingerprints, nil)
}

func (d *Device) DeleteFingerprint(ctx context.Context, s *Session, index uint32) (bool, error) {
	return request[bool](ctx, d, s, CmdDeleteFingerprint, wire.FingerprintArgs{Index: index})
}

func (d *Device) GetUnlockMethod(ctx context.Context, s *Session) (*UnlockInfo, error) {
	return request[*UnlockInfo](ctx, d, s, CmdGetUnlockMethod, nil)
}

func (d *Device) FwupStart(ctx context.Context, s *Session, size uint32, mode FwupMode) (bool, error) {
	return request[bool](ctx, d, s, CmdFwupStart, wire.FwupStartArgs{Size: size, Mode: int(mode)})
}

func (d *Device) FwupTransfer(
	ctx context.Context, s *Session, sequenceID uint32, chunk []byte, offset uint32, mode FwupMode,
) (bool, error) {
	return request[bool](ctx, d, s, CmdFwupTransfer, wire.FwupTransferArgs{
		SequenceID: sequenceID,
		Chunk:      chunk,
		Offset:     offset,
		Mode:       int(mode),
	})
}

func (d *Device) FwupFinish(
	ctx context.Context, s *Session, appPropertiesOffset, signatureOffset uint32, mode FwupMode,
) (FwupFinishStatus, error) {
	status, err := request[FwupFinishStatus](ctx, d, s, CmdFwupFinish, wire.FwupFinishArgs{
		AppPropertiesOffset: appPropertiesOffset,
		SignatureOffset:     signatureOffset,
		Mode:                int(mode),
	})
	if err != nil && IsUnauthenticated(err) {
		return FwupFinishUnauthenticated, nil
	}
	return status, err
}

func (d *Device) GetEvents(ctx context.Context, s *Session) (*EventFragment, error) {
	return request[*EventFragment](ctx, d, s, CmdGetEvents, nil)
}

func (d *Device) GetCoredumpCount(ctx context.Context, s *Session) (int, error) {
	return request[int](ctx, d, s, CmdGetCoredumpCount, nil)
}

func (d *Device) GetCoredumpFragment(ctx context.Context, s *Session, offset uint32) (*CoredumpFragment, error) {
	return request[*CoredumpFragment](ctx, d, s, CmdGetCoredumpFragment, wire.OffsetArgs{Offset: offset})
}

func (d *Device) GetCert(ctx context.Context, s *Session, kind CertKind) ([]byte, error) {
	return request[[]byte](ctx, d, s, CmdGetCert, wire.CertArgs{Kind: string(kind)})
}

func (d *Device) SignVerifyAttestationChallenge(
	ctx context.Context, s *Session, deviceIdentityDER, challenge []byte,
) (bool, error) {
	return request[bool](ctx, d, s, CmdSignVerifyAttestationChallenge, wire.AttestationArgs{
		Identity:  deviceIdentityDER,
		Challenge: challenge,
	})
}

func (d *Device) WipeDevice(ctx context.Context, s *Session) (HardwareInteraction[bool], error) {
	return d.confirm(ctx, s, CmdWipeDevice, nil)
}

func (d *Device) GetConfirmationResult(
	ctx context.Context, s *Session, handle ConfirmationHandle,
) (HardwareInteraction[bool], error) {
	return d.confirm(ctx, s, CmdGetConfirmationResult, wire.HandleArgs{Handle: wire.Handle{
		Response:     handle.ResponseHandle,
		Confirmation: handle.ConfirmationHandle,
	}})
}

func (d *Device) GetGrantRequest(ctx context.Context, s *Session, action GrantAction) (*GrantRequest, error) {
	return request[*GrantRequest](ctx, d, s, CmdGetGrantRequest, wire.GrantActionArgs{Action: string(action)})
}

func (d *Device) ProvideGrant(ctx context.Context, s *Session, grant *Grant) (bool, error) {
	if grant == nil {
		return false, fmt.Errorf("%w: nil grant", ErrInvalidParameter)
	}
	return request[bool](ctx, d, s, CmdProvideGrant, wire.GrantArgs{
		Version:   grant.Version,
		Request:   grant.Request,
		Signature: grant.Signature,
	})
}
