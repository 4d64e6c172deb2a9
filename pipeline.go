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
)

// Pipeline validation errors
var (
	ErrRetryNotInnermost     = errors.New("retry must be the innermost command decorator")
	ErrPairingAfterFeedback  = errors.New("pairing validation must run before lock and haptics")
	ErrDuplicateInterceptor  = errors.New("interceptor registered twice")
	ErrInterceptorIncomplete = errors.New("interceptor has no name or wrap function")
)

// Interceptor names known to the builder's ordering rules
const (
	InterceptorRetry          = "retry"
	InterceptorMessages       = "session_messages"
	InterceptorMetrics        = "metrics"
	InterceptorTelemetry      = "firmware_telemetry"
	InterceptorPairing        = "pairing"
	InterceptorAuthentication = "authentication"
	InterceptorLock           = "lock"
	InterceptorHaptics        = "haptics"
	InterceptorTimeout        = "timeout"
)

// Effect is one transaction: the work done with cmds during a tap
type Effect func(ctx context.Context, s *Session, cmds Commands) error

// Interceptor wraps the rest of the pipeline. It may decorate the commands it
// passes down, react to the outcome, or fail before calling next.
type Interceptor struct {
	Wrap func(next Effect) Effect
	Name string
}

// PipelineBuilder collects interceptors. The first one added is the
// outermost: it sees the transaction start first and its outcome last.
type PipelineBuilder struct {
	interceptors []Interceptor
}

// NewPipelineBuilder creates an empty builder
func NewPipelineBuilder() *PipelineBuilder {
	return &PipelineBuilder{}
}

// Use appends interceptors
func (b *PipelineBuilder) Use(interceptors ...Interceptor) *PipelineBuilder {
	b.interceptors = append(b.interceptors, interceptors...)
	return b
}

// Build validates the order and returns the pipeline.
//
// Decorating interceptors wrap the commands they pass down, so the first one
// added sits closest to the hardware. Retry must therefore be added first so
// metrics see every attempt it makes.
func (b *PipelineBuilder) Build() (*Pipeline, error) {
	seen := make(map[string]int, len(b.interceptors))
	for i, ic := range b.interceptors {
		if ic.Name == "" || ic.Wrap == nil {
			return nil, fmt.Errorf("%w: position %d", ErrInterceptorIncomplete, i)
		}
		if _, dup := seen[ic.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateInterceptor, ic.Name)
		}
		seen[ic.Name] = i
	}

	if pos, ok := seen[InterceptorRetry]; ok && pos != 0 {
		return nil, fmt.Errorf("%w: found at position %d", ErrRetryNotInnermost, pos)
	}
	if pairing, ok := seen[InterceptorPairing]; ok {
		for _, name := range []string{InterceptorLock, InterceptorHaptics} {
			if pos, found := seen[name]; found && pos < pairing {
				return nil, fmt.Errorf("%w: %s at %d, pairing at %d", ErrPairingAfterFeedback, name, pos, pairing)
			}
		}
	}

	interceptors := make([]Interceptor, len(b.interceptors))
	copy(interceptors, b.interceptors)
	return &Pipeline{interceptors: interceptors}, nil
}

// Pipeline is an ordered, validated interceptor chain
type Pipeline struct {
	interceptors []Interceptor
}

// Names returns the interceptor names outermost first
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.interceptors))
	for i, ic := range p.interceptors {
		names[i] = ic.Name
	}
	return names
}

// Compose folds the chain around effect
func (p *Pipeline) Compose(effect Effect) Effect {
	for i := len(p.interceptors) - 1; i >= 0; i-- {
		effect = p.interceptors[i].Wrap(effect)
	}
	return effect
}

// Run composes the chain around effect and runs it against leaf
func (p *Pipeline) Run(ctx context.Context, s *Session, leaf Commands, effect Effect) error {
	return p.Compose(effect)(ctx, s, leaf)
}

// DefaultPipeline returns the standard chain for cfg: retry, timeout,
// session messages, metrics, firmware telemetry, pairing, authentication,
// lock and haptics. The timeout sits just inside retry so it bounds every
// command the transaction sends, the pairing challenge and the telemetry
// drain included.
func DefaultPipeline(cfg *Config) (*Pipeline, error) {
	return NewPipelineBuilder().Use(
		RetryCommands(cfg.Retry),
		TimeoutSession(cfg.Timeout),
		SessionMessages(),
		CollectMetrics(cfg.Tracer, cfg.Metrics),
		CollectFirmwareTelemetry(cfg.FirmwareTelemetry),
		ValidatePairing(),
		RequireAuthentication(),
		LockDevice(),
		Haptics(cfg.Haptics),
	).Build()
}

// decorating returns an interceptor that only decorates the commands passed down
func decorating(name string, hook func() CommandHook) Interceptor {
	return Interceptor{
		Name: name,
		Wrap: func(next Effect) Effect {
			return func(ctx context.Context, s *Session, cmds Commands) error {
				return next(ctx, s, Decorate(cmds, hook()))
			}
		},
	}
}

// RetryCommands decorates the commands with a RetryHook
func RetryCommands(policy RetryPolicy) Interceptor {
	return decorating(InterceptorRetry, func() CommandHook {
		return NewRetryHook(policy)
	})
}
