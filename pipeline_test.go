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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passThrough(name string) Interceptor {
	return Interceptor{
		Name: name,
		Wrap: func(next Effect) Effect { return next },
	}
}

func tracing(name string, trace *[]string) Interceptor {
	return Interceptor{
		Name: name,
		Wrap: func(next Effect) Effect {
			return func(ctx context.Context, s *Session, cmds Commands) error {
				*trace = append(*trace, "enter "+name)
				err := next(ctx, s, cmds)
				*trace = append(*trace, "exit "+name)
				return err
			}
		},
	}
}

type recordingHook struct {
	trace *[]string
	name  string
}

func (h *recordingHook) Name() string { return h.name }

func (h *recordingHook) Around(ctx context.Context, call Call, next CallFunc) (any, error) {
	*h.trace = append(*h.trace, h.name+" "+string(call.ID))
	return next(ctx)
}

func TestPipelineBuilder_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr      error
		name         string
		interceptors []Interceptor
	}{
		{
			name:         "empty",
			interceptors: nil,
		},
		{
			name:         "retry first",
			interceptors: []Interceptor{RetryCommands(DefaultRetryPolicy()), SessionMessages()},
		},
		{
			name:         "retry not first",
			interceptors: []Interceptor{SessionMessages(), RetryCommands(DefaultRetryPolicy())},
			wantErr:      ErrRetryNotInnermost,
		},
		{
			name:         "lock before pairing",
			interceptors: []Interceptor{LockDevice(), ValidatePairing()},
			wantErr:      ErrPairingAfterFeedback,
		},
		{
			name:         "haptics before pairing",
			interceptors: []Interceptor{Haptics(nil), ValidatePairing(), LockDevice()},
			wantErr:      ErrPairingAfterFeedback,
		},
		{
			name:         "pairing before feedback",
			interceptors: []Interceptor{ValidatePairing(), LockDevice(), Haptics(nil)},
		},
		{
			name:         "duplicate",
			interceptors: []Interceptor{SessionMessages(), SessionMessages()},
			wantErr:      ErrDuplicateInterceptor,
		},
		{
			name:         "no name",
			interceptors: []Interceptor{{Wrap: func(next Effect) Effect { return next }}},
			wantErr:      ErrInterceptorIncomplete,
		},
		{
			name:         "no wrap",
			interceptors: []Interceptor{{Name: "bare"}},
			wantErr:      ErrInterceptorIncomplete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := NewPipelineBuilder().Use(tt.interceptors...).Build()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Len(t, p.Names(), len(tt.interceptors))
		})
	}
}

func TestDefaultPipeline_Order(t *testing.T) {
	t.Parallel()

	p, err := DefaultPipeline(DefaultConfig(PlatformAndroid))
	require.NoError(t, err)

	assert.Equal(t, []string{
		InterceptorRetry,
		InterceptorTimeout,
		InterceptorMessages,
		InterceptorMetrics,
		InterceptorTelemetry,
		InterceptorPairing,
		InterceptorAuthentication,
		InterceptorLock,
		InterceptorHaptics,
	}, p.Names())
}

func TestPipeline_FirstAddedIsOutermost(t *testing.T) {
	t.Parallel()

	var trace []string
	p, err := NewPipelineBuilder().Use(
		tracing("a", &trace),
		tracing("b", &trace),
		tracing("c", &trace),
	).Build()
	require.NoError(t, err)

	err = p.Run(context.Background(), newTestSession(), NewMockCommands(),
		func(context.Context, *Session, Commands) error {
			trace = append(trace, "effect")
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, []string{
		"enter a", "enter b", "enter c",
		"effect",
		"exit c", "exit b", "exit a",
	}, trace)
}

func TestPipeline_FirstDecoratorIsClosestToHardware(t *testing.T) {
	t.Parallel()

	var trace []string
	p, err := NewPipelineBuilder().Use(
		decorating("inner", func() CommandHook { return &recordingHook{name: "inner", trace: &trace} }),
		decorating("outer", func() CommandHook { return &recordingHook{name: "outer", trace: &trace} }),
	).Build()
	require.NoError(t, err)

	mock := NewMockCommands()
	err = p.Run(context.Background(), newTestSession(), mock,
		func(ctx context.Context, s *Session, cmds Commands) error {
			_, err := cmds.Version(ctx, s)
			return err
		})

	require.NoError(t, err)
	assert.Equal(t, []string{"outer version", "inner version"}, trace)
	assert.Equal(t, 1, mock.CallCount(CmdVersion))
}

func TestPipeline_ErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	p, err := NewPipelineBuilder().Use(passThrough("x"), passThrough("y")).Build()
	require.NoError(t, err)

	err = p.Run(context.Background(), newTestSession(), NewMockCommands(),
		func(context.Context, *Session, Commands) error { return boom })

	assert.ErrorIs(t, err, boom)
}

func TestPipeline_BuilderIsCopied(t *testing.T) {
	t.Parallel()

	b := NewPipelineBuilder().Use(passThrough("x"))
	p, err := b.Build()
	require.NoError(t, err)

	b.Use(passThrough("y"))

	assert.Equal(t, []string{"x"}, p.Names())
}

func TestDecorate_SameNameAppliedOnce(t *testing.T) {
	t.Parallel()

	var trace []string
	mock := NewMockCommands()
	hook := &recordingHook{name: "once", trace: &trace}

	cmds := Decorate(Decorate(mock, hook), &recordingHook{name: "once", trace: &trace})
	_, err := cmds.GetDeviceInfo(context.Background(), newTestSession())

	require.NoError(t, err)
	assert.Equal(t, []string{"once get_device_info"}, trace)
}
