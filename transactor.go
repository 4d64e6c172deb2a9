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
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Transactor runs one transaction per tap through the interceptor pipeline.
// It allows a single transaction at a time.
type Transactor struct {
	connector    Connector
	config       *Config
	pipeline     *Pipeline
	deviceConfig *DeviceConfig
	mu           sync.Mutex
	busy         bool
}

// NewTransactor creates a transactor that reaches real hardware through
// connector. Without WithPipeline the default pipeline for the configured
// platform is used.
func NewTransactor(connector Connector, opts ...Option) (*Transactor, error) {
	t := &Transactor{
		connector:    connector,
		config:       DefaultConfig(PlatformLinux),
		deviceConfig: DefaultDeviceConfig(),
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}

	if t.pipeline == nil {
		p, err := DefaultPipeline(t.config)
		if err != nil {
			return nil, err
		}
		t.pipeline = p
	}
	return t, nil
}

// Config returns the configuration the transactor was built with
func (t *Transactor) Config() *Config {
	return t.config
}

// Pipeline returns the interceptor chain
func (t *Transactor) Pipeline() *Pipeline {
	return t.pipeline
}

func (t *Transactor) acquire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.busy {
		return false
	}
	t.busy = true
	return true
}

func (t *Transactor) release() {
	t.mu.Lock()
	t.busy = false
	t.mu.Unlock()
}

// Run opens a session for params, connects to the hardware and runs effect
// through the pipeline. If the transport reports that the tag left the field
// the transaction's context is cancelled and the error wraps ErrTagLost.
func (t *Transactor) Run(ctx context.Context, params SessionParameters, effect Effect) error {
	if !t.acquire() {
		return ErrSessionBusy
	}
	defer t.release()

	connector := t.connector
	if params.IsHardwareFake {
		connector = t.config.Emulator
	}
	if connector == nil {
		return fmt.Errorf("%w: no connector for session (fake=%t)", ErrInvalidParameter, params.IsHardwareFake)
	}

	s := NewSession(params)
	log := sessionLog(s)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	link, err := connector.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if closeErr := link.Close(); closeErr != nil {
			log.WithError(closeErr).Warn("failed to close transport")
		}
	}()

	if reader, ok := link.(IdentityReader); ok {
		raw, err := reader.Identity(ctx)
		if err != nil {
			return fmt.Errorf("read identity: %w", err)
		}
		if s.identity, err = ParseIdentity(raw); err != nil {
			return err
		}
		log.WithField("identity", s.identity.String()).Debug("tag identified")
	}

	lost, stop := watchLoss(link, cancel)
	err = t.pipeline.Run(ctx, s, NewDevice(link, t.deviceConfig), func(ctx context.Context, s *Session, cmds Commands) error {
		s.notifyTagConnected()
		return effect(ctx, s, cmds)
	})
	stop()

	if lost.Load() {
		s.notifyTagDisconnected()
		if err != nil && !errors.Is(err, ErrTagLost) {
			err = fmt.Errorf("%w: %w", ErrTagLost, err)
		}
	}
	if err != nil {
		log.WithError(err).Debug("transaction failed")
	}
	return err
}

// watchLoss cancels the transaction with ErrTagLost when link reports the tag
// left the field. stop ends the watch.
func watchLoss(link Transceiver, cancel context.CancelCauseFunc) (lost *atomic.Bool, stop func()) {
	lost = &atomic.Bool{}
	notifier, ok := link.(LossNotifier)
	if !ok {
		return lost, func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-notifier.Lost():
			lost.Store(true)
			cancel(ErrTagLost)
		case <-done:
		}
	}()
	return lost, func() {
		close(done)
		wg.Wait()
		select {
		case <-notifier.Lost():
			lost.Store(true)
		default:
		}
	}
}

// Transact runs fn as one transaction and returns its result
func Transact[T any](
	ctx context.Context, t *Transactor, params SessionParameters,
	fn func(ctx context.Context, s *Session, cmds Commands) (T, error),
) (T, error) {
	var result T
	err := t.Run(ctx, params, func(ctx context.Context, s *Session, cmds Commands) error {
		v, err := fn(ctx, s, cmds)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
