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

// Package emulator is software hardware for sessions with IsHardwareFake and
// for tests. It answers the same CBOR envelopes as a real device and keeps its
// state across taps, so a transfer interrupted on one link can be resumed on
// the next.
package emulator

import (
	"context"
	"fmt"
	"sync"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"github.com/ZaparooProject/go-hwnfc/internal/wire"
	"github.com/sirupsen/logrus"
)

// Negative acknowledgement codes
const (
	CodeUnknownCommand = iota + 1
	CodeBadArguments
	CodeInvalidState
	CodeNotFound
	CodeVerifyFailed
)

// ProtocolVersion is reported by the version command
const ProtocolVersion uint16 = 1

// Messages carried by the transceive errors of a lost tag. The second one is
// what platforms report when the link drops right after a firmware finish.
const (
	MessageTagLost          = "Tag was lost"
	MessageConnectionLost   = "Tag connection lost"
	defaultMaxFingerprints  = 3
	defaultEnrollmentPasses = 3
)

// Config describes the emulated device
type Config struct {
	// FirmwareKey verifies firmware signatures at finish. Any non-empty
	// signature is accepted when nil.
	FirmwareKey []byte
	// GrantKey verifies server grants. Grants are refused when nil.
	GrantKey []byte
	// Seed derives every device key. A random seed is used when empty.
	Seed             []byte
	Serial           string
	Product          string
	FirmwareVersion  string
	HardwareRevision string
	MaxFingerprints  uint32
	EnrollmentPasses uint32
	Locked           bool
}

// DefaultConfig returns the configuration of a fresh unlocked device
func DefaultConfig() *Config {
	return &Config{
		Serial:           "EMU00001",
		Product:          "W1",
		FirmwareVersion:  "1.0.0",
		HardwareRevision: "evt",
		MaxFingerprints:  defaultMaxFingerprints,
		EnrollmentPasses: defaultEnrollmentPasses,
	}
}

type handler func(e *Emulator, req *wire.Request) ([]byte, error)

var handlers = map[string]handler{
	string(hwnfc.CmdVersion):                        (*Emulator).version,
	string(hwnfc.CmdGetDeviceInfo):                  (*Emulator).deviceInfo,
	string(hwnfc.CmdGetFirmwareMetadata):            (*Emulator).firmwareMetadata,
	string(hwnfc.CmdQueryAuthentication):            (*Emulator).queryAuthentication,
	string(hwnfc.CmdLockDevice):                     (*Emulator).lockDevice,
	string(hwnfc.CmdGetAuthenticationKey):           (*Emulator).authenticationKey,
	string(hwnfc.CmdGetInitialSpendingKey):          (*Emulator).initialSpendingKey,
	string(hwnfc.CmdGetNextSpendingKey):             (*Emulator).nextSpendingKey,
	string(hwnfc.CmdSignChallenge):                  (*Emulator).signChallenge,
	string(hwnfc.CmdSignTransaction):                (*Emulator).signTransaction,
	string(hwnfc.CmdSealData):                       (*Emulator).sealData,
	string(hwnfc.CmdUnsealData):                     (*Emulator).unsealData,
	string(hwnfc.CmdStartFingerprintEnrollment):     (*Emulator).startEnrollment,
	string(hwnfc.CmdGetFingerprintEnrollmentStatus): (*Emulator).enrollmentStatus,
	string(hwnfc.CmdCancelFingerprintEnrollment):    (*Emulator).cancelEnrollment,
	string(hwnfc.CmdGetEnrolledFingerprints):        (*Emulator).enrolledFingerprints,
	string(hwnfc.CmdDeleteFingerprint):              (*Emulator).deleteFingerprint,
	string(hwnfc.CmdGetUnlockMethod):                (*Emulator).unlockMethod,
	string(hwnfc.CmdFwupStart):                      (*Emulator).fwupStart,
	string(hwnfc.CmdFwupTransfer):                   (*Emulator).fwupTransfer,
	string(hwnfc.CmdFwupFinish):                     (*Emulator).fwupFinish,
	string(hwnfc.CmdGetEvents):                      (*Emulator).drainEvents,
	string(hwnfc.CmdGetCoredumpCount):               (*Emulator).coredumpCount,
	string(hwnfc.CmdGetCoredumpFragment):            (*Emulator).coredumpFragment,
	string(hwnfc.CmdGetCert):                        (*Emulator).cert,
	string(hwnfc.CmdSignVerifyAttestationChallenge): (*Emulator).attestation,
	string(hwnfc.CmdWipeDevice):                     (*Emulator).wipeDevice,
	string(hwnfc.CmdGetConfirmationResult):          (*Emulator).confirmationResult,
	string(hwnfc.CmdGetGrantRequest):                (*Emulator).grantRequest,
	string(hwnfc.CmdProvideGrant):                   (*Emulator).provideGrant,
	wire.SelectConfirmation:                         (*Emulator).selectConfirmation,
}

// lockedCommands answer while the device is locked. Everything else gets an
// unauthenticated response.
var lockedCommands = map[string]bool{
	string(hwnfc.CmdVersion):                        true,
	string(hwnfc.CmdGetDeviceInfo):                  true,
	string(hwnfc.CmdGetFirmwareMetadata):            true,
	string(hwnfc.CmdQueryAuthentication):            true,
	string(hwnfc.CmdLockDevice):                     true,
	string(hwnfc.CmdGetAuthenticationKey):           true,
	string(hwnfc.CmdSignChallenge):                  true,
	string(hwnfc.CmdGetUnlockMethod):                true,
	string(hwnfc.CmdGetEvents):                      true,
	string(hwnfc.CmdGetCoredumpCount):               true,
	string(hwnfc.CmdGetCoredumpFragment):            true,
	string(hwnfc.CmdGetCert):                        true,
	string(hwnfc.CmdSignVerifyAttestationChallenge): true,
	string(hwnfc.CmdWipeDevice):                     true,
	string(hwnfc.CmdGetConfirmationResult):          true,
	string(hwnfc.CmdGetGrantRequest):                true,
	string(hwnfc.CmdProvideGrant):                   true,
	wire.SelectConfirmation:                         true,
}

// Emulator is one emulated device. Links handed out by Connect share its
// state; it is safe for concurrent use.
type Emulator struct {
	config       *Config
	keys         *keyring
	fingerprints map[uint32]string
	enrollment   *enrollment
	confirms     map[string]*confirmation
	grant        *pendingGrant
	calls        map[string]int
	link         *Link
	unlock       hwnfc.UnlockInfo
	fwup         fwupState
	faults       []*fault
	events       []byte
	coredumps    [][]byte
	installed    []byte
	connects     int
	mu           sync.Mutex
	locked       bool
}

// New creates an emulator. A nil config uses DefaultConfig.
func New(config *Config) (*Emulator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	keys, err := newKeyring(config.Seed)
	if err != nil {
		return nil, err
	}
	return &Emulator{
		config:       config,
		keys:         keys,
		locked:       config.Locked,
		fingerprints: make(map[uint32]string),
		confirms:     make(map[string]*confirmation),
		calls:        make(map[string]int),
		unlock:       hwnfc.UnlockInfo{Method: hwnfc.UnlockUnspecified},
	}, nil
}

// Identity returns what the device says about itself
func (e *Emulator) Identity() hwnfc.HardwareIdentity {
	return hwnfc.HardwareIdentity{
		ProtocolVersion: int(ProtocolVersion),
		Product:         e.config.Product,
		Serial:          e.config.Serial,
	}
}

// Connect implements hwnfc.Connector. Each call is a new tap: the previous
// link, if still open, is treated as having left the field.
func (e *Emulator) Connect(ctx context.Context) (hwnfc.Transceiver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.link != nil {
		e.link.SimulateLoss()
	}
	e.link = newLink(e)
	e.connects++
	e.log().WithField("tap", e.connects).Debug("tag connected")
	return e.link, nil
}

func (e *Emulator) log() *logrus.Entry {
	return hwnfc.Logger().WithField("emulator", e.config.Serial)
}

// Connects returns the number of taps so far
func (e *Emulator) Connects() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connects
}

// Calls returns how often command reached the emulator, faults included
func (e *Emulator) Calls(command hwnfc.CommandID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[string(command)]
}

// Locked reports whether the device is locked
func (e *Emulator) Locked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locked
}

// Unlock simulates the user unlocking the device. A fingerprint index is
// only recorded for biometric unlocks.
func (e *Emulator) Unlock(method hwnfc.UnlockMethod, fingerprint uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locked = false
	e.unlock = hwnfc.UnlockInfo{Method: method}
	if method == hwnfc.UnlockBiometrics {
		e.unlock.FingerprintIndex = &fingerprint
	}
}

// AuthenticationKey returns the compressed public key the device signs
// pairing challenges with
func (e *Emulator) AuthenticationKey() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.keys.auth.PubKey().SerializeCompressed()
}

// handle answers one request envelope from link l
func (e *Emulator) handle(l *Link, raw []byte) ([]byte, error) {
	req, err := wire.DecodeRequest(raw)
	if err != nil {
		return wire.Fail(CodeBadArguments, err.Error())
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls[req.Command]++
	f := e.takeFault(req.Command)
	if f != nil && !f.afterResponse() {
		return nil, f.trigger(l, req.Command)
	}

	resp, err := e.dispatch(req)
	if err != nil {
		return nil, err
	}
	if f != nil {
		return nil, f.trigger(l, req.Command)
	}
	return resp, nil
}

func (e *Emulator) dispatch(req *wire.Request) ([]byte, error) {
	h, ok := handlers[req.Command]
	if !ok {
		return wire.Fail(CodeUnknownCommand, "unknown command "+req.Command)
	}
	if e.locked && !lockedCommands[req.Command] {
		return wire.Unauthenticated()
	}
	return h(e, req)
}

// decodeArgs decodes the request's arguments, answering a negative
// acknowledgement when they do not fit v
func decodeArgs(req *wire.Request, v any) ([]byte, bool) {
	if err := req.DecodeArgs(v); err != nil {
		resp, _ := wire.Fail(CodeBadArguments, err.Error())
		return resp, false
	}
	return nil, true
}

func reject(code int, format string, args ...any) ([]byte, error) {
	return wire.Fail(code, fmt.Sprintf(format, args...))
}

func (*Emulator) version(*wire.Request) ([]byte, error) {
	return wire.OK(ProtocolVersion)
}

func (e *Emulator) deviceInfo(*wire.Request) ([]byte, error) {
	return wire.OK(&hwnfc.DeviceInfo{
		SerialNumber:     e.config.Serial,
		FirmwareVersion:  e.config.FirmwareVersion,
		HardwareRevision: e.config.HardwareRevision,
		ActiveSlot:       e.fwup.activeSlot(),
		SecureBootConfig: "dev",
		BatteryCharge:    87.5,
		VCell:            3900,
		AverageCurrentMA: -12,
		BatteryCycles:    42,
	})
}

func (e *Emulator) queryAuthentication(*wire.Request) ([]byte, error) {
	return wire.OK(!e.locked)
}

func (e *Emulator) lockDevice(*wire.Request) ([]byte, error) {
	e.locked = true
	e.unlock = hwnfc.UnlockInfo{Method: hwnfc.UnlockUnspecified}
	return wire.OK(true)
}

func (e *Emulator) unlockMethod(*wire.Request) ([]byte, error) {
	return wire.OK(&e.unlock)
}
