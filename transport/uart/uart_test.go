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

package uart

import (
	"bytes"
	"context"
	"testing"
	"time"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"github.com/ZaparooProject/go-hwnfc/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

func mustBuild(t *testing.T, data []byte) []byte {
	t.Helper()
	out, err := frame.Build(frame.HostToDevice, data)
	require.NoError(t, err)
	return out
}

// TestTransportCreation verifies basic transport properties
func TestTransportCreation(t *testing.T) {
	t.Parallel()

	transport := &Transport{portName: "/dev/ttyUSB0"}
	assert.Equal(t, hwnfc.TransportUART, transport.Type())
	assert.False(t, transport.IsConnected(), "uninitialized transport is not connected")

	transport, _ = newFakeTransport(nil)
	assert.True(t, transport.IsConnected())
	require.Error(t, transport.SetTimeout(0))
	require.NoError(t, transport.SetTimeout(time.Second))
}

func TestTransceive(t *testing.T) {
	t.Parallel()

	transport, port := newFakeTransport(&bridge{handler: echo})

	resp, err := transport.Transceive([]byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, []byte("re:ping"), resp)

	assert.Equal(t, [][]byte{mustBuild(t, []byte("ping")), frame.AckFrame}, port.written())
}

func TestTransceive_Large(t *testing.T) {
	t.Parallel()

	transport, _ := newFakeTransport(&bridge{handler: echo})
	req := bytes.Repeat([]byte{0x5A}, 1000)

	resp, err := transport.Transceive(req)
	require.NoError(t, err)
	assert.Equal(t, append([]byte("re:"), req...), resp)
}

func TestTransceive_FrameRetries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		bridge     *bridge
		wantWrites int
		wantNACKs  int
	}{
		{
			name:       "request NACKed once",
			bridge:     &bridge{handler: echo, nackRequests: 1},
			wantWrites: 3, // request, request, ACK
		},
		{
			name:       "reply corrupted once",
			bridge:     &bridge{handler: echo, corruptReplies: 1},
			wantWrites: 3, // request, NACK, ACK
			wantNACKs:  1,
		},
		{
			name:       "both",
			bridge:     &bridge{handler: echo, nackRequests: 2, corruptReplies: 2},
			wantWrites: 6,
			wantNACKs:  2,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			transport, port := newFakeTransport(tt.bridge)

			resp, err := transport.Transceive([]byte("x"))
			require.NoError(t, err)
			assert.Equal(t, []byte("re:x"), resp)

			writes := port.written()
			assert.Len(t, writes, tt.wantWrites)
			nacks := 0
			for _, w := range writes {
				if bytes.Equal(w, frame.NackFrame) {
					nacks++
				}
			}
			assert.Equal(t, tt.wantNACKs, nacks)
			assert.Equal(t, frame.AckFrame, writes[len(writes)-1])
		})
	}
}

func TestTransceive_GivesUp(t *testing.T) {
	t.Parallel()

	t.Run("request always NACKed", func(t *testing.T) {
		t.Parallel()
		transport, port := newFakeTransport(&bridge{handler: echo, nackRequests: 100})

		_, err := transport.Transceive([]byte("x"))
		require.ErrorIs(t, err, hwnfc.ErrNoACK)
		assert.True(t, hwnfc.IsRetryable(err))
		assert.Len(t, port.written(), maxFrameAttempts)
	})

	t.Run("reply always corrupt", func(t *testing.T) {
		t.Parallel()
		transport, _ := newFakeTransport(&bridge{handler: echo, corruptReplies: 100})

		_, err := transport.Transceive([]byte("x"))
		require.ErrorIs(t, err, hwnfc.ErrChecksumMismatch)
		assert.True(t, hwnfc.IsRetryable(err))
	})
}

func TestTransceive_Timeout(t *testing.T) {
	t.Parallel()

	transport, _ := newFakeTransport(nil)
	require.NoError(t, transport.SetTimeout(30*time.Millisecond))

	start := time.Now()
	_, err := transport.Transceive([]byte("x"))
	require.ErrorIs(t, err, hwnfc.ErrTransportTimeout)
	assert.Equal(t, hwnfc.ErrorTypeTimeout, hwnfc.GetErrorType(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestTransceive_Closed(t *testing.T) {
	t.Parallel()

	transport, port := newFakeTransport(&bridge{handler: echo})
	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close(), "closing twice is fine")
	assert.False(t, transport.IsConnected())
	assert.True(t, port.closed)

	_, err := transport.Transceive([]byte("x"))
	require.ErrorIs(t, err, hwnfc.ErrTransportClosed)
	assert.False(t, hwnfc.IsRetryable(err))
}

func TestTransceive_TooLarge(t *testing.T) {
	t.Parallel()

	transport, port := newFakeTransport(&bridge{handler: echo})
	_, err := transport.Transceive(make([]byte, frame.MaxDataLength))
	require.ErrorIs(t, err, hwnfc.ErrDataTooLarge)
	assert.Empty(t, port.written())
}

// TestContextCancellation checks the context adapter returns at once for a
// cancelled context and at the deadline for a silent bridge
func TestContextCancellation(t *testing.T) {
	t.Parallel()

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		transport, port := newFakeTransport(&bridge{handler: echo})
		link := hwnfc.AsContextTransceiver(transport)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := link.Transceive(ctx, []byte("x"))
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, port.written())
	})

	t.Run("deadline", func(t *testing.T) {
		t.Parallel()
		transport, _ := newFakeTransport(nil)
		link := hwnfc.AsContextTransceiver(transport)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := link.Transceive(ctx, []byte("x"))
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})
}

func TestFilterPorts(t *testing.T) {
	t.Parallel()

	details := []*enumerator.PortDetails{
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1a86", PID: "7523", SerialNumber: "A1"},
		{Name: "/dev/ttyUSB1", IsUSB: true, VID: "0403", PID: "6001"},
		{Name: "/dev/ttyS0"},
		{Name: "COM3", IsUSB: true, VID: "10C4", PID: "EA60"},
		nil,
	}

	tests := []struct {
		name string
		opts DiscoverOptions
		want []string
	}{
		{
			name: "no filters",
			want: []string{"/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyS0", "COM3"},
		},
		{
			name: "usb only",
			opts: DiscoverOptions{USBOnly: true},
			want: []string{"/dev/ttyUSB0", "/dev/ttyUSB1", "COM3"},
		},
		{
			name: "blocklist ignores case and spaces",
			opts: DiscoverOptions{Blocklist: []string{" 0403:6001 ", "10c4:ea60"}},
			want: []string{"/dev/ttyUSB0", "/dev/ttyS0"},
		},
		{
			name: "ignored paths",
			opts: DiscoverOptions{IgnorePaths: []string{"/dev/../dev/ttyS0", "com3", ""}},
			want: []string{"/dev/ttyUSB0", "/dev/ttyUSB1"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got []string
			for _, p := range filterPorts(details, tt.opts) {
				got = append(got, p.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	ports := filterPorts(details[:1], DiscoverOptions{})
	require.Len(t, ports, 1)
	assert.Equal(t, "1A86:7523", ports[0].VIDPID)
	assert.Equal(t, "A1", ports[0].Serial)
}
