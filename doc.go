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

/*
Package hwnfc provides the command transport between a host and an NFC
hardware wallet.

One tap of the wallet is one transaction. A Transactor connects to the
hardware, opens a Session and runs a caller's Effect against a Commands
implementation that has been wrapped by the interceptor pipeline: retry of
idempotent commands, the session timeout, session messages, metrics, firmware
telemetry, pairing, authentication, locking and haptics.

Features:
  - Typed command interface with an idempotency table per command
  - Retry decorator that only repeats commands which are safe to repeat
  - HardwareInteraction continuations for on-device confirmations
  - Resumable chunked firmware updates (package fwup)
  - UART and I2C transports, plus a software emulator
  - SQLite persistence of device info and update progress

Basic Usage:

	import (
	    hwnfc "github.com/ZaparooProject/go-hwnfc"
	    "github.com/ZaparooProject/go-hwnfc/transport/uart"
	)

	t, err := hwnfc.NewTransactor(uart.Connector("/dev/ttyUSB0"),
	    hwnfc.WithPlatform(hwnfc.PlatformLinux),
	    hwnfc.WithMaxAttempts(3),
	)
	if err != nil {
	    log.Fatal(err)
	}

	info, err := hwnfc.Transact(ctx, t, hwnfc.SessionParameters{NfcFlowName: "info"},
	    func(ctx context.Context, s *hwnfc.Session, cmds hwnfc.Commands) (*hwnfc.DeviceInfo, error) {
	        return cmds.GetDeviceInfo(ctx, s)
	    })

Confirmations:

Commands that need the user to confirm on the device return a
HardwareInteraction. Resolve drives it to a value, polling the device or,
when the transport emulates the hardware, answering the prompt with a
Chooser:

	h, err := cmds.WipeDevice(ctx, s)
	if err != nil {
	    return err
	}
	wiped, err := hwnfc.Resolve(ctx, s, cmds, h, hwnfc.ChooseOption[bool](hwnfc.PromptApprove))

Error Handling:

Transport failures are *TransportError values; negative answers from the
hardware are *CommandError values. Use the sentinels with errors.Is:

	if errors.Is(err, hwnfc.ErrTagLost) {
	    // Ask the user to tap again
	}

Thread Safety:

A Transactor runs one transaction at a time and returns ErrSessionBusy for a
second one. Sessions and Commands are owned by the running transaction.
*/
package hwnfc
