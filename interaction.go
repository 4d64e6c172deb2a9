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
	"slices"
	"time"
)

// ErrNoChooser is returned when an emulated prompt is reached without a way to
// pick one of its options.
var ErrNoChooser = errors.New("emulated prompt requires a chooser")

// InteractionKind identifies the variant of a HardwareInteraction
type InteractionKind int

const (
	// InteractionCompleted means the operation finished with a value
	InteractionCompleted InteractionKind = iota
	// InteractionRequiresConfirmation means the device waits for the user
	InteractionRequiresConfirmation
	// InteractionEmulatedPrompt means software must choose the confirmation
	InteractionEmulatedPrompt
)

func (k InteractionKind) String() string {
	switch k {
	case InteractionCompleted:
		return "completed"
	case InteractionRequiresConfirmation:
		return "requires_confirmation"
	case InteractionEmulatedPrompt:
		return "emulated_prompt"
	default:
		return fmt.Sprintf("InteractionKind(%d)", int(k))
	}
}

// Continuation performs the next round trip of an interaction using cmds.
// Pass the commands the transaction received so every decorator applies.
type Continuation[T any] func(ctx context.Context, s *Session, cmds Commands) (HardwareInteraction[T], error)

// EmulatedPromptOption is one choice of an emulated confirmation prompt
type EmulatedPromptOption[T any] struct {
	// OnSelect tells the emulated hardware which option was picked
	OnSelect func(ctx context.Context) error
	// Next continues the interaction after OnSelect
	Next Continuation[T]
	Name string
}

// HardwareInteraction is the result of an operation that may need one or
// more on-device confirmations before it completes. The zero value is a
// completed interaction holding the zero T.
type HardwareInteraction[T any] struct {
	value    T
	next     Continuation[T]
	options  []EmulatedPromptOption[T]
	decorate []func(Commands) Commands
	kind     InteractionKind
}

// Completed returns a finished interaction carrying v
func Completed[T any](v T) HardwareInteraction[T] {
	return HardwareInteraction[T]{kind: InteractionCompleted, value: v}
}

// RequiresConfirmation returns an interaction waiting on the user; next
// fetches the outcome once they have acted.
func RequiresConfirmation[T any](next Continuation[T]) HardwareInteraction[T] {
	return HardwareInteraction[T]{kind: InteractionRequiresConfirmation, next: next}
}

// ConfirmWithEmulatedPrompt returns an interaction whose confirmation is
// chosen in software from options.
func ConfirmWithEmulatedPrompt[T any](options ...EmulatedPromptOption[T]) HardwareInteraction[T] {
	return HardwareInteraction[T]{kind: InteractionEmulatedPrompt, options: options}
}

// Kind returns the variant
func (h HardwareInteraction[T]) Kind() InteractionKind {
	return h.kind
}

// Value returns the result of a completed interaction
func (h HardwareInteraction[T]) Value() (T, bool) {
	return h.value, h.kind == InteractionCompleted
}

// Next returns the continuation of an interaction requiring confirmation
func (h HardwareInteraction[T]) Next() (Continuation[T], bool) {
	return h.continuation(h.next), h.kind == InteractionRequiresConfirmation
}

// Options returns the choices of an emulated prompt
func (h HardwareInteraction[T]) Options() []EmulatedPromptOption[T] {
	if h.kind != InteractionEmulatedPrompt {
		return nil
	}
	if len(h.decorate) == 0 {
		return h.options
	}
	options := make([]EmulatedPromptOption[T], len(h.options))
	for i, opt := range h.options {
		options[i] = opt
		options[i].Next = h.continuation(opt.Next)
	}
	return options
}

// Wrap returns h with every continuation it carries, the top-level one and
// each prompt option's, running against decorate(cmds) instead of cmds.
// Results produced by the decorated commands are already wrapped by them, so
// Wrap does not descend into what a continuation returns.
//
// Decorators apply in the order they were added: the first one wraps cmds
// directly and later ones wrap around it, the way Decorate stacks hooks
// down the pipeline.
func (h HardwareInteraction[T]) Wrap(decorate func(Commands) Commands) HardwareInteraction[T] {
	if decorate == nil {
		return h
	}
	switch h.kind {
	case InteractionRequiresConfirmation, InteractionEmulatedPrompt:
		h.decorate = append(slices.Clip(h.decorate), decorate)
	}
	return h
}

// continuation returns next running against cmds passed through every
// decorator of h
func (h HardwareInteraction[T]) continuation(next Continuation[T]) Continuation[T] {
	if next == nil || len(h.decorate) == 0 {
		return next
	}
	decorators := h.decorate
	return func(ctx context.Context, s *Session, cmds Commands) (HardwareInteraction[T], error) {
		for _, decorate := range decorators {
			cmds = decorate(cmds)
		}
		return next(ctx, s, cmds)
	}
}

// Chooser picks the index of one emulated prompt option
type Chooser[T any] func(ctx context.Context, options []EmulatedPromptOption[T]) (int, error)

// ChooseOption returns a Chooser that picks the option called name
func ChooseOption[T any](name string) Chooser[T] {
	return func(_ context.Context, options []EmulatedPromptOption[T]) (int, error) {
		for i, opt := range options {
			if opt.Name == name {
				return i, nil
			}
		}
		return 0, fmt.Errorf("%w: no prompt option %q", ErrInvalidParameter, name)
	}
}

// ConfirmationPollInterval is the pause between repeated confirmation
// requests while the device is still waiting on the user.
var ConfirmationPollInterval = 100 * time.Millisecond

// Resolve drives h to completion: continuations are run against cmds in turn
// and emulated prompts are answered with choose.
func Resolve[T any](
	ctx context.Context, s *Session, cmds Commands, h HardwareInteraction[T], choose Chooser[T],
) (T, error) {
	var zero T
	for step := 0; ; step++ {
		var err error
		switch h.kind {
		case InteractionCompleted:
			return h.value, nil

		case InteractionRequiresConfirmation:
			if step > 0 {
				if err := sleepOrDone(ctx, ConfirmationPollInterval); err != nil {
					return zero, err
				}
			}
			next, _ := h.Next()
			if next == nil {
				return zero, fmt.Errorf("%w: confirmation without continuation", ErrInvalidResponse)
			}
			h, err = next(ctx, s, cmds)

		case InteractionEmulatedPrompt:
			h, err = answerPrompt(ctx, s, cmds, h.Options(), choose)

		default:
			return zero, fmt.Errorf("%w: unknown interaction kind %s", ErrInvalidResponse, h.kind)
		}
		if err != nil {
			return zero, err
		}
	}
}

func answerPrompt[T any](
	ctx context.Context, s *Session, cmds Commands, options []EmulatedPromptOption[T], choose Chooser[T],
) (HardwareInteraction[T], error) {
	var zero HardwareInteraction[T]
	if choose == nil {
		return zero, ErrNoChooser
	}
	idx, err := choose(ctx, options)
	if err != nil {
		return zero, err
	}
	if idx < 0 || idx >= len(options) {
		return zero, fmt.Errorf("%w: prompt option %d of %d", ErrInvalidParameter, idx, len(options))
	}

	opt := options[idx]
	debugf("emulated prompt: selected %q", opt.Name)
	if opt.OnSelect != nil {
		if err := opt.OnSelect(ctx); err != nil {
			return zero, fmt.Errorf("prompt option %q: %w", opt.Name, err)
		}
	}
	if opt.Next == nil {
		return zero, fmt.Errorf("%w: prompt option %q has no continuation", ErrInvalidResponse, opt.Name)
	}
	return opt.Next(ctx, s, cmds)
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-timer.C:
		return nil
	}
}
