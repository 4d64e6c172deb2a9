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
	"context"
	"crypto/sha256"
	"testing"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"github.com/ZaparooProject/go-hwnfc/internal/wire"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSeed = []byte("emulator-test-seed-0123456789abc")

func newTestEmulator(t *testing.T, mutate func(*Config)) *Emulator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Seed = testSeed
	if mutate != nil {
		mutate(cfg)
	}
	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

// connect taps the emulator and returns a device over the new link
func connect(t *testing.T, e *Emulator) (*hwnfc.Device, *Link) {
	t.Helper()
	link, err := e.Connect(context.Background())
	require.NoError(t, err)
	return hwnfc.NewDevice(link, nil), link.(*Link)
}

func commandError(t *testing.T, err error) *hwnfc.CommandError {
	t.Helper()
	var ce *hwnfc.CommandError
	require.ErrorAs(t, err, &ce)
	return ce
}

func TestEmulator_DeviceInfo(t *testing.T) {
	t.Parallel()

	e := newTestEmulator(t, func(c *Config) { c.Serial = "EMU42" })
	dev, _ := connect(t, e)
	ctx := context.Background()

	version, err := dev.Version(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, ProtocolVersion, version)

	info, err := dev.GetDeviceInfo(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "EMU42", info.SerialNumber)
	assert.Equal(t, "1.0.0", info.FirmwareVersion)
	assert.Equal(t, "a", info.ActiveSlot)

	meta, err := dev.GetFirmwareMetadata(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", meta.Version)
	assert.Len(t, meta.Hash, sha256.Size)
}

func TestEmulator_Identity(t *testing.T) {
	t.Parallel()

	e := newTestEmulator(t, nil)
	_, link := connect(t, e)

	raw, err := link.Identity(context.Background())
	require.NoError(t, err)
	id, err := hwnfc.ParseIdentity(raw)
	require.NoError(t, err)
	assert.Equal(t, "EMU00001", id.Serial)
	assert.Equal(t, "W1", id.Product)
	assert.Equal(t, hwnfc.TransportEmulator, link.Type())
	assert.True(t, link.HasCapability(hwnfc.CapabilityEmulatedConfirmation))
	assert.True(t, link.HasCapability(hwnfc.CapabilityLossNotification))
}

func TestEmulator_SignChallengeVerifies(t *testing.T) {
	t.Parallel()

	e := newTestEmulator(t, nil)
	dev, _ := connect(t, e)
	ctx := context.Background()

	pub, err := dev.GetAuthenticationKey(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, e.AuthenticationKey(), pub)

	challenge := []byte("pairing challenge")
	sig, err := dev.SignChallenge(ctx, nil, challenge)
	require.NoError(t, err)

	verify := hwnfc.VerifySecp256k1(pub)
	assert.True(t, verify(challenge, sig))
	assert.False(t, verify([]byte("other challenge"), sig))
}

func TestEmulator_KeysAreDeterministic(t *testing.T) {
	t.Parallel()

	a := newTestEmulator(t, nil)
	b := newTestEmulator(t, nil)
	c := newTestEmulator(t, func(c *Config) { c.Seed = []byte("another seed") })

	assert.Equal(t, a.AuthenticationKey(), b.AuthenticationKey())
	assert.NotEqual(t, a.AuthenticationKey(), c.AuthenticationKey())
}

func TestEmulator_SpendingKeys(t *testing.T) {
	t.Parallel()

	e := newTestEmulator(t, nil)
	dev, _ := connect(t, e)
	ctx := context.Background()

	initial, err := dev.GetInitialSpendingKey(ctx, nil, hwnfc.NetworkBitcoin)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), initial.Index)
	assert.Len(t, initial.PublicKey, btcec.PubKeyBytesLenCompressed)
	assert.Len(t, initial.ChainCode, 32)

	testnet, err := dev.GetInitialSpendingKey(ctx, nil, hwnfc.NetworkTestnet)
	require.NoError(t, err)
	assert.NotEqual(t, initial.PublicKey, testnet.PublicKey)

	next, err := dev.GetNextSpendingKey(ctx, nil, []hwnfc.SpendingKey{*initial, {Index: 3}}, hwnfc.NetworkBitcoin)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), next.Index)

	psbt := []byte("psbt bytes")
	sig, err := dev.SignTransaction(ctx, nil, psbt, 4)
	require.NoError(t, err)

	pub, err := btcec.ParsePubKey(next.PublicKey)
	require.NoError(t, err)
	parsed, err := ecdsa.ParseDERSignature(sig)
	require.NoError(t, err)
	digest := sha256.Sum256(psbt)
	assert.True(t, parsed.Verify(digest[:], pub))
}

func TestEmulator_SealRoundTrip(t *testing.T) {
	t.Parallel()

	e := newTestEmulator(t, nil)
	dev, _ := connect(t, e)
	ctx := context.Background()

	sealed, err := dev.SealData(ctx, nil, []byte("secret"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "secret")

	plain, err := dev.UnsealData(ctx, nil, sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), plain)

	sealed[len(sealed)-1] ^= 0xff
	_, err = dev.UnsealData(ctx, nil, sealed)
	assert.Equal(t, CodeVerifyFailed, commandError(t, err).Code)

	_, err = dev.UnsealData(ctx, nil, []byte{1, 2})
	assert.Equal(t, CodeVerifyFailed, commandError(t, err).Code)
}

func TestEmulator_Locked(t *testing.T) {
	t.Parallel()

	e := newTestEmulator(t, func(c *Config) { c.Locked = true })
	dev, _ := connect(t, e)
	ctx := context.Background()

	authenticated, err := dev.QueryAuthentication(ctx, nil)
	require.NoError(t, err)
	assert.False(t, authenticated)

	_, err = dev.SealData(ctx, nil, []byte("x"))
	require.ErrorIs(t, err, hwnfc.ErrUnauthenticated)

	status, err := dev.FwupFinish(ctx, nil, 0, 0, hwnfc.FwupModeNormal)
	require.NoError(t, err)
	assert.Equal(t, hwnfc.FwupFinishUnauthenticated, status)

	_, err = dev.Version(ctx, nil)
	require.NoError(t, err)

	e.Unlock(hwnfc.UnlockBiometrics, 1)
	authenticated, err = dev.QueryAuthentication(ctx, nil)
	require.NoError(t, err)
	assert.True(t, authenticated)

	unlock, err := dev.GetUnlockMethod(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, hwnfc.UnlockBiometrics, unlock.Method)
	require.NotNil(t, unlock.FingerprintIndex)
	assert.Equal(t, uint32(1), *unlock.FingerprintIndex)

	locked, err := dev.LockDevice(ctx, nil)
	require.NoError(t, err)
	assert.True(t, locked)
	assert.True(t, e.Locked())
}

func TestEmulator_FingerprintEnrollment(t *testing.T) {
	t.Parallel()

	e := newTestEmulator(t, func(c *Config) { c.EnrollmentPasses = 2 })
	dev, _ := connect(t, e)
	ctx := context.Background()

	status, err := dev.GetFingerprintEnrollmentStatus(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, hwnfc.EnrollmentNotInProgress, status.State)

	started, err := dev.StartFingerprintEnrollment(ctx, nil, 1, "thumb")
	require.NoError(t, err)
	assert.True(t, started)

	status, err = dev.GetFingerprintEnrollmentStatus(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, hwnfc.EnrollmentIncomplete, status.State)
	assert.Equal(t, uint32(1), status.PassCount)

	status, err = dev.GetFingerprintEnrollmentStatus(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, hwnfc.EnrollmentComplete, status.State)
	require.NotNil(t, status.Fingerprint)
	assert.Equal(t, hwnfc.FingerprintHandle{Index: 1, Label: "thumb"}, *status.Fingerprint)

	list, err := dev.GetEnrolledFingerprints(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(defaultMaxFingerprints), list.MaxCount)
	assert.Equal(t, []hwnfc.FingerprintHandle{{Index: 1, Label: "thumb"}}, list.Fingerprints)

	deleted, err := dev.DeleteFingerprint(ctx, nil, 1)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = dev.DeleteFingerprint(ctx, nil, 1)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = dev.StartFingerprintEnrollment(ctx, nil, defaultMaxFingerprints, "")
	assert.Equal(t, CodeBadArguments, commandError(t, err).Code)

	_, err = dev.StartFingerprintEnrollment(ctx, nil, 0, "index")
	require.NoError(t, err)
	cancelled, err := dev.CancelFingerprintEnrollment(ctx, nil)
	require.NoError(t, err)
	assert.True(t, cancelled)
}

func TestEmulator_Wipe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		choice    string
		wantWiped bool
	}{
		{name: "approved", choice: hwnfc.PromptApprove, wantWiped: true},
		{name: "denied", choice: hwnfc.PromptDeny, wantWiped: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newTestEmulator(t, nil)
			dev, _ := connect(t, e)
			ctx := context.Background()
			before := e.AuthenticationKey()

			h, err := dev.WipeDevice(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, hwnfc.InteractionEmulatedPrompt, h.Kind())

			wiped, err := hwnfc.Resolve(ctx, nil, dev, h, hwnfc.ChooseOption[bool](tt.choice))
			require.NoError(t, err)
			assert.Equal(t, tt.wantWiped, wiped)
			assert.Equal(t, !tt.wantWiped, string(before) == string(e.AuthenticationKey()))
			assert.Equal(t, 0, e.Confirm(true), "confirmation is consumed")
		})
	}
}

func TestEmulator_ConfirmationHandles(t *testing.T) {
	t.Parallel()

	e := newTestEmulator(t, nil)
	_, link := connect(t, e)
	ctx := context.Background()

	exchange := func(command string, args any) *wire.Response {
		req, err := wire.EncodeRequest(command, args)
		require.NoError(t, err)
		raw, err := link.Transceive(ctx, req)
		require.NoError(t, err)
		resp, err := wire.DecodeResponse(raw)
		require.NoError(t, err)
		return resp
	}

	pending := exchange(string(hwnfc.CmdWipeDevice), nil)
	require.Equal(t, wire.StatusConfirmationPending, pending.Status)
	handle := *pending.Handle

	still := exchange(string(hwnfc.CmdGetConfirmationResult), wire.HandleArgs{Handle: handle})
	assert.Equal(t, wire.StatusConfirmationPending, still.Status)

	forged := exchange(string(hwnfc.CmdGetConfirmationResult), wire.HandleArgs{
		Handle: wire.Handle{Response: []byte("bad"), Confirmation: handle.Confirmation},
	})
	assert.Equal(t, wire.StatusError, forged.Status)
	assert.Equal(t, CodeNotFound, forged.Code)

	assert.Equal(t, 1, e.Confirm(false))
	denied := exchange(string(hwnfc.CmdGetConfirmationResult), wire.HandleArgs{Handle: handle})
	require.Equal(t, wire.StatusOK, denied.Status)
	var ok bool
	require.NoError(t, denied.DecodeResult(&ok))
	assert.False(t, ok)
}

func TestEmulator_Telemetry(t *testing.T) {
	t.Parallel()

	e := newTestEmulator(t, nil)
	events := make([]byte, EventFragmentSize+10)
	for i := range events {
		events[i] = byte(i)
	}
	e.AddEvents(events)
	dump := make([]byte, CoredumpFragmentSize+1)
	e.AddCoredump(dump)
	e.AddCoredump([]byte("small"))

	dev, _ := connect(t, e)
	ctx := context.Background()

	frag, err := dev.GetEvents(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, frag.Fragment, EventFragmentSize)
	assert.Equal(t, uint32(10), frag.RemainingSize)
	frag, err = dev.GetEvents(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, events[EventFragmentSize:], frag.Fragment)
	assert.Zero(t, frag.RemainingSize)

	count, err := dev.GetCoredumpCount(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	first, err := dev.GetCoredumpFragment(ctx, nil, 0)
	require.NoError(t, err)
	assert.False(t, first.Complete)
	assert.Equal(t, 2, first.CoredumpsRemaining)

	last, err := dev.GetCoredumpFragment(ctx, nil, CoredumpFragmentSize)
	require.NoError(t, err)
	assert.True(t, last.Complete)
	assert.Len(t, last.Data, 1)
	assert.Equal(t, 1, last.CoredumpsRemaining)

	_, err = dev.GetCoredumpFragment(ctx, nil, 100)
	assert.Equal(t, CodeBadArguments, commandError(t, err).Code)

	pendingEvents, pendingDumps := e.PendingTelemetry()
	assert.Zero(t, pendingEvents)
	assert.Equal(t, 1, pendingDumps)
}

func TestEmulator_Certificates(t *testing.T) {
	t.Parallel()

	e := newTestEmulator(t, nil)
	dev, _ := connect(t, e)
	ctx := context.Background()

	identity, err := dev.GetCert(ctx, nil, hwnfc.CertDeviceIdentity)
	require.NoError(t, err)
	batch, err := dev.GetCert(ctx, nil, hwnfc.CertBatch)
	require.NoError(t, err)
	assert.NotEqual(t, identity, batch)

	ok, err := dev.SignVerifyAttestationChallenge(ctx, nil, identity, []byte("nonce"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = dev.SignVerifyAttestationChallenge(ctx, nil, batch, []byte("nonce"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = dev.GetCert(ctx, nil, hwnfc.CertKind("root"))
	assert.Equal(t, CodeNotFound, commandError(t, err).Code)
}

func TestEmulator_Grants(t *testing.T) {
	t.Parallel()

	server, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	e := newTestEmulator(t, func(c *Config) { c.GrantKey = server.PubKey().SerializeCompressed() })
	dev, _ := connect(t, e)
	ctx := context.Background()

	_, err = dev.ProvideGrant(ctx, nil, &hwnfc.Grant{Request: []byte{1}, Signature: []byte{2}})
	assert.Equal(t, CodeInvalidState, commandError(t, err).Code)

	stale, err := dev.GetGrantRequest(ctx, nil, hwnfc.GrantActionFingerprintReset)
	require.NoError(t, err)
	req, err := dev.GetGrantRequest(ctx, nil, hwnfc.GrantActionFingerprintReset)
	require.NoError(t, err)
	assert.Equal(t, []byte(e.Identity().Serial), req.DeviceID)

	body, err := grantBody(req)
	require.NoError(t, err)
	assert.True(t, verify(e.AuthenticationKey(), body, req.Signature), "request is signed by the device")

	staleGrant, err := SignGrant(server, stale)
	require.NoError(t, err)
	ok, err := dev.ProvideGrant(ctx, nil, staleGrant)
	require.NoError(t, err)
	assert.False(t, ok, "a newer request replaces the old one")

	other, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	forged, err := SignGrant(other, req)
	require.NoError(t, err)
	ok, err = dev.ProvideGrant(ctx, nil, forged)
	require.NoError(t, err)
	assert.False(t, ok)

	grant, err := SignGrant(server, req)
	require.NoError(t, err)
	ok, err = dev.ProvideGrant(ctx, nil, grant)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = dev.GetGrantRequest(ctx, nil, hwnfc.GrantAction("launch"))
	assert.Equal(t, CodeBadArguments, commandError(t, err).Code)
}

func TestEmulator_UnknownCommand(t *testing.T) {
	t.Parallel()

	e := newTestEmulator(t, nil)
	_, link := connect(t, e)

	req, err := wire.EncodeRequest("reboot", nil)
	require.NoError(t, err)
	raw, err := link.Transceive(context.Background(), req)
	require.NoError(t, err)

	resp, err := wire.DecodeResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusError, resp.Status)
	assert.Equal(t, CodeUnknownCommand, resp.Code)

	raw, err = link.Transceive(context.Background(), []byte{0xff})
	require.NoError(t, err)
	resp, err = wire.DecodeResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, CodeBadArguments, resp.Code)
}

func TestEmulator_Faults(t *testing.T) {
	t.Parallel()

	e := newTestEmulator(t, nil)
	dev, link := connect(t, e)
	ctx := context.Background()

	e.FailNext(hwnfc.CmdVersion, nil)
	_, err := dev.Version(ctx, nil)
	require.ErrorIs(t, err, hwnfc.ErrTransceiveFailed)
	assert.True(t, hwnfc.IsRetryable(err))

	_, err = dev.Version(ctx, nil)
	require.NoError(t, err)

	e.FailAt(hwnfc.CmdVersion, 2, hwnfc.NewTimeoutError("version", "emulator"))
	_, err = dev.Version(ctx, nil)
	require.NoError(t, err)
	_, err = dev.Version(ctx, nil)
	require.ErrorIs(t, err, hwnfc.ErrTransportTimeout)
	assert.Equal(t, 4, e.Calls(hwnfc.CmdVersion))

	e.LoseTagAt(hwnfc.CmdGetDeviceInfo, 1)
	_, err = dev.GetDeviceInfo(ctx, nil)
	var te *hwnfc.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, MessageTagLost, te.Message)

	select {
	case <-link.Lost():
	default:
		t.Fatal("link should report the tag as lost")
	}

	_, err = dev.Version(ctx, nil)
	require.ErrorIs(t, err, hwnfc.ErrTagLost)
	assert.False(t, hwnfc.IsRetryable(err))
}

func TestEmulator_DropResponseProcessesCommand(t *testing.T) {
	t.Parallel()

	e := newTestEmulator(t, nil)
	dev, _ := connect(t, e)
	ctx := context.Background()

	e.DropResponseAt(hwnfc.CmdLockDevice, 1)
	_, err := dev.LockDevice(ctx, nil)
	var te *hwnfc.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, MessageConnectionLost, te.Message)
	assert.True(t, e.Locked(), "command ran before the link dropped")

	e.FailNext(hwnfc.CmdVersion, nil)
	e.ClearFaults()
	dev, _ = connect(t, e)
	_, err = dev.Version(ctx, nil)
	assert.NoError(t, err)
}

func TestEmulator_NewTapLosesPreviousLink(t *testing.T) {
	t.Parallel()

	e := newTestEmulator(t, nil)
	first, firstLink := connect(t, e)
	second, _ := connect(t, e)
	ctx := context.Background()

	_, err := first.Version(ctx, nil)
	require.ErrorIs(t, err, hwnfc.ErrTagLost)
	_, err = second.Version(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, e.Connects())

	require.NoError(t, firstLink.Close())
	_, err = firstLink.Transceive(ctx, nil)
	assert.ErrorIs(t, err, hwnfc.ErrTransportClosed)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Connect(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
