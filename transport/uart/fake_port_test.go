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
	"errors"
	"sync"
	"time"

	"github.com/ZaparooProject/go-hwnfc/internal/frame"
)

// fakePort plays the bridge side of a serial link. respond runs for every
// write and queues whatever the device would send back.
type fakePort struct {
	respond func(p *fakePort, written []byte)
	rx      bytes.Buffer
	writes  [][]byte
	mu      sync.Mutex
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, errors.New("port closed")
	}
	if p.rx.Len() == 0 {
		p.mu.Unlock()
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	defer p.mu.Unlock()
	return p.rx.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errors.New("port closed")
	}
	p.writes = append(p.writes, bytes.Clone(b))
	if p.respond != nil {
		p.respond(p, b)
	}
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (*fakePort) SetReadTimeout(time.Duration) error { return nil }

func (p *fakePort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rx.Reset()
	return nil
}

// queue must be called with mu held, which respond always is
func (p *fakePort) queue(frames ...[]byte) {
	for _, f := range frames {
		p.rx.Write(f)
	}
}

func (p *fakePort) written() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.writes...)
}

// bridge answers every request with handler's reply. nackRequests and
// corruptReplies count how many times it misbehaves first.
type bridge struct {
	handler        func(req []byte) []byte
	last           []byte
	nackRequests   int
	corruptReplies int
}

func (b *bridge) respond(p *fakePort, written []byte) {
	f, _, err := frame.Parse(written)
	if err != nil {
		return
	}
	switch f.Kind {
	case frame.KindACK:
		return
	case frame.KindNACK:
		p.queue(b.reply())
		return
	case frame.KindData:
	}

	if b.nackRequests > 0 {
		b.nackRequests--
		p.queue(frame.NackFrame)
		return
	}
	out, err := frame.Build(frame.DeviceToHost, b.handler(f.Data))
	if err != nil {
		return
	}
	b.last = out
	p.queue(frame.AckFrame, b.reply())
}

func (b *bridge) reply() []byte {
	if b.corruptReplies > 0 {
		b.corruptReplies--
		bad := bytes.Clone(b.last)
		bad[len(bad)-2] ^= 0xFF
		return bad
	}
	return b.last
}

func echo(req []byte) []byte { return append([]byte("re:"), req...) }

func newFakeTransport(b *bridge) (*Transport, *fakePort) {
	port := &fakePort{}
	if b != nil {
		port.respond = b.respond
	}
	return newTransport(port, "/dev/ttyFAKE"), port
}
