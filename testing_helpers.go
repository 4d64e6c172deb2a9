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
	"sync"
)

// MockCall is one recorded call on MockCommands
type MockCall struct {
	ID   CommandID
	Args []any
}

// MockHandler answers a call on MockCommands
type MockHandler func(call MockCall) (any, error)

// MockCommands is a programmable Commands for tests. Every call is
// recorded. Calls without a handler succeed with a default value.
type MockCommands struct {
	handlers map[CommandID]MockHandler
	calls    []MockCall
	mu       sync.Mutex
}

// NewMockCommands creates a mock where every command succeeds
func NewMockCommands() *MockCommands {
	return &MockCommands{handlers: make(map[CommandID]MockHandler)}
}

// On sets the handler for id
func (m *MockCommands) On(id CommandID, h MockHandler) *MockCommands {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[id] = h
	return m
}

// Return makes id answer with v
func (m *MockCommands) Return(id CommandID, v any) *MockCommands {
	return m.On(id, func(MockCall) (any, error) {
		return v, nil
	})
}

// Fail makes every call of id fail with err
func (m *MockCommands) Fail(id CommandID, err error) *MockCommands {
	return m.On(id, func(MockCall) (any, error) {
		return nil, err
	})
}

// Calls returns a copy of the recorded calls in order
func (m *MockCommands) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]MockCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallIDs returns the ids of the recorded calls in order
func (m *MockCommands) CallIDs() []CommandID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]CommandID, len(m.calls))
	for i, c := range m.calls {
		ids[i] = c.ID
	}
	return ids
}

// CallCount returns how many times id was called
func (m *MockCommands) CallCount(id CommandID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.ID == id {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls
func (m *MockCommands) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *MockCommands) record(id CommandID, args []any) (MockCall, MockHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := MockCall{ID: id, Args: args}
	m.calls = append(m.calls, call)
	return call, m.handlers[id]
}

func mockReturn[T any](ctx context.Context, m *MockCommands, id CommandID, def T, args ...any) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, context.Cause(ctx)
	}
	call, h := m.record(id, args)
	if h == nil {
		return def, nil
	}
	res, err := h(call)
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("mock %s: handler returned %T", id, res)
	}
	return v, nil
}

func (m *MockCommands) Version(ctx context.Context, _ *Session) (uint16, error) {
	return mockReturn[uint16](ctx, m, CmdVersion, 1)
}

func (m *MockCommands) GetDeviceInfo(ctx context.Context, _ *Session) (*DeviceInfo, error) {
	return mockReturn(ctx, m, CmdGetDeviceInfo, &DeviceInfo{SerialNumber: "MOCK0001", FirmwareVersion: "1.0.0"})
}

func (m *MockCommands) GetFirmwareMetadata(ctx context.Context, _ *Session) (*FirmwareMetadata, error) {
	return mockReturn(ctx, m, CmdGetFirmwareMetadata, &FirmwareMetadata{Version: "1.0.0"})
}

func (m *MockCommands) QueryAuthentication(ctx context.Context, _ *Session) (bool, error) {
	return mockReturn(ctx, m, CmdQueryAuthentication, true)
}

func (m *MockCommands) LockDevice(ctx context.Context, _ *Session) (bool, error) {
	return mockReturn(ctx, m, CmdLockDevice, true)
}

func (m *MockCommands) GetAuthenticationKey(ctx context.Context, _ *Session) ([]byte, error) {
	return mockReturn[[]byte](ctx, m, CmdGetAuthenticationKey, nil)
}

func (m *MockCommands) GetInitialSpendingKey(ctx context.Context, _ *Session, network Network) (*SpendingKey, error) {
	return mockReturn(ctx, m, CmdGetInitialSpendingKey, &SpendingKey{Network: network}, network)
}

func (m *MockCommands) GetNextSpendingKey(
	ctx context.Context, _ *Session, existing []SpendingKey, network Network,
) (*SpendingKey, error) {
	return mockReturn(ctx, m, CmdGetNextSpendingKey,
		&SpendingKey{Network: network, Index: uint32(len(existing))}, existing, network)
}

func (m *MockCommands) SignChallenge(ctx context.Context, _ *Session, challenge []byte) ([]byte, error) {
	return mockReturn[[]byte](ctx, m, CmdSignChallenge, nil, challenge)
}

func (m *MockCommands) SignTransaction(ctx context.Context, _ *Session, psbt []byte, keyIndex uint32) ([]byte, error) {
	return mockReturn(ctx, m, CmdSignTransaction, psbt, psbt, keyIndex)
}

func (m *MockCommands) SealData(ctx context.Context, _ *Session, data []byte) ([]byte, error) {
	return mockReturn(ctx, m, CmdSealData, data, data)
}

func (m *MockCommands) UnsealData(ctx context.Context, _ *Session, sealed []byte) ([]byte, error) {
	return mockReturn(ctx, m, CmdUnsealData, sealed, sealed)
}

func (m *MockCommands) StartFingerprintEnrollment(ctx context.Context, _ *Session, index uint32, label string) (bool, error) {
	return mockReturn(ctx, m, CmdStartFingerprintEnrollment, true, index, label)
}

func (m *MockCommands) GetFingerprintEnrollmentStatus(ctx context.Context, _ *Session) (*EnrollmentStatus, error) {
	return mockReturn(ctx, m, CmdGetFingerprintEnrollmentStatus, &EnrollmentStatus{State: EnrollmentComplete})
}

func (m *MockCommands) CancelFingerprintEnrollment(ctx context.Context, _ *Session) (bool, error) {
	return mockReturn(ctx, m, CmdCancelFingerprintEnrollment, true)
}

func (m *MockCommands) GetEnrolledFingerprints(ctx context.Context, _ *Session) (*EnrolledFingerprints, error) {
	return mockReturn(ctx, m, CmdGetEnrolledFingerprints, &EnrolledFingerprints{MaxCount: 3})
}

func (m *MockCommands) DeleteFingerprint(ctx context.Context, _ *Session, index uint32) (bool, error) {
	return mockReturn(ctx, m, CmdDeleteFingerprint, true, index)
}

func (m *MockCommands) GetUnlockMethod(ctx context.Context, _ *Session) (*UnlockInfo, error) {
	return mockReturn(ctx, m, CmdGetUnlockMethod, &UnlockInfo{Method: UnlockBiometrics})
}

func (m *MockCommands) FwupStart(ctx context.Context, _ *Session, size uint32, mode FwupMode) (bool, error) {
	return mockReturn(ctx, m, CmdFwupStart, true, size, mode)
}

func (m *MockCommands) FwupTransfer(
	ctx context.Context, _ *Session, sequenceID uint32, chunk []byte, offset uint32, mode FwupMode,
) (bool, error) {
	return mockReturn(ctx, m, CmdFwupTransfer, true, sequenceID, chunk, offset, mode)
}

func (m *MockCommands) FwupFinish(
	ctx context.Context, _ *Session, appPropertiesOffset, signatureOffset uint32, mode FwupMode,
) (FwupFinishStatus, error) {
	return mockReturn(ctx, m, CmdFwupFinish, FwupFinishSuccess, appPropertiesOffset, signatureOffset, mode)
}

func (m *MockCommands) GetEvents(ctx context.Context, _ *Session) (*EventFragment, error) {
	return mockReturn(ctx, m, CmdGetEvents, &EventFragment{})
}

func (m *MockCommands) GetCoredumpCount(ctx context.Context, _ *Session) (int, error) {
	return mockReturn(ctx, m, CmdGetCoredumpCount, 0)
}

func (m *MockCommands) GetCoredumpFragment(ctx context.Context, _ *Session, offset uint32) (*CoredumpFragment, error) {
	return mockReturn(ctx, m, CmdGetCoredumpFragment, &CoredumpFragment{Offset: offset, Complete: true}, offset)
}

func (m *MockCommands) GetCert(ctx context.Context, _ *Session, kind CertKind) ([]byte, error) {
	return mockReturn[[]byte](ctx, m, CmdGetCert, nil, kind)
}

func (m *MockCommands) SignVerifyAttestationChallenge(
	ctx context.Context, _ *Session, deviceIdentityDER, challenge []byte,
) (bool, error) {
	return mockReturn(ctx, m, CmdSignVerifyAttestationChallenge, true, deviceIdentityDER, challenge)
}

func (m *MockCommands) WipeDevice(ctx context.Context, _ *Session) (HardwareInteraction[bool], error) {
	return mockReturn(ctx, m, CmdWipeDevice, Completed(true))
}

func (m *MockCommands) GetConfirmationResult(
	ctx context.Context, _ *Session, handle ConfirmationHandle,
) (HardwareInteraction[bool], error) {
	return mockReturn(ctx, m, CmdGetConfirmationResult, Completed(true), handle)
}

func (m *MockCommands) GetGrantRequest(ctx context.Context, _ *Session, action GrantAction) (*GrantRequest, error) {
	return mockReturn(ctx, m, CmdGetGrantRequest, &GrantRequest{Version: 1, Action: action}, action)
}

func (m *MockCommands) ProvideGrant(ctx context.Context, _ *Session, grant *Grant) (bool, error) {
	return mockReturn(ctx, m, CmdProvideGrant, true, grant)
}

// MockTransceiver is a programmable Transceiver for tests
type MockTransceiver struct {
	ResponseFunc func(req []byte) ([]byte, error)
	capabilities map[TransportCapability]bool
	lost         chan struct{}
	requests     [][]byte
	mu           sync.Mutex
	lostOnce     sync.Once
	closed       bool
}

// NewMockTransceiver creates a mock answering with fn
func NewMockTransceiver(fn func(req []byte) ([]byte, error)) *MockTransceiver {
	return &MockTransceiver{
		ResponseFunc: fn,
		capabilities: make(map[TransportCapability]bool),
		lost:         make(chan struct{}),
	}
}

// Transceive implements Transceiver
func (m *MockTransceiver) Transceive(ctx context.Context, req []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, context.Cause(ctx)
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrTransportClosed
	}
	m.requests = append(m.requests, append([]byte(nil), req...))
	fn := m.ResponseFunc
	m.mu.Unlock()

	if fn == nil {
		return nil, NewTransceiveError("transceive", "mock", "no response configured")
	}
	return fn(req)
}

// Requests returns the requests sent so far
func (m *MockTransceiver) Requests() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.requests...)
}

// SetCapability sets a transport capability
func (m *MockTransceiver) SetCapability(c TransportCapability, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capabilities[c] = on
}

// HasCapability implements TransportCapabilityChecker
func (m *MockTransceiver) HasCapability(c TransportCapability) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capabilities[c]
}

// Lost implements LossNotifier
func (m *MockTransceiver) Lost() <-chan struct{} {
	return m.lost
}

// SimulateLoss reports that the tag left the field
func (m *MockTransceiver) SimulateLoss() {
	m.lostOnce.Do(func() {
		close(m.lost)
	})
}

// Close implements Transceiver
func (m *MockTransceiver) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsClosed reports whether Close was called
func (m *MockTransceiver) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Type returns TransportMock
func (*MockTransceiver) Type() TransportType {
	return TransportMock
}

// MockConnector returns a Connector that always hands out t
func MockConnector(t Transceiver) Connector {
	return ConnectorFunc(func(context.Context) (Transceiver, error) {
		return t, nil
	})
}
