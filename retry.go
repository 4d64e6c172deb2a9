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
	"strings"
	"sync"
	"time"

	"github.com/ZaparooProject/go-hwnfc/internal/transport"
	"github.com/sirupsen/logrus"
)

// DefaultMaxAttempts is the number of attempts made for an idempotent
// command failing with a retryable error
const DefaultMaxAttempts = 5

// finishDisconnectSignatures are the transceive failure messages the
// platform reports when the device resets right after acknowledging the
// finish of a firmware transfer
var finishDisconnectSignatures = []string{
	"Tag connection lost",
	"Tag was lost",
}

// RetryPolicy configures the retry hook
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy returns five attempts with no delay
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts}
}

// RetryHook re-issues idempotent commands that fail with a retryable error.
// Non-idempotent commands are issued exactly once. A finish-transfer call
// that fails because the device reset after acknowledging it reports
// FwupFinishWillApplyPatch.
type RetryHook struct {
	policy RetryPolicy
}

// NewRetryHook creates a retry hook
func NewRetryHook(policy RetryPolicy) *RetryHook {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	return &RetryHook{policy: policy}
}

// Name implements CommandHook
func (*RetryHook) Name() string {
	return "retry"
}

// Renew implements Renewer
func (h *RetryHook) Renew() CommandHook {
	return &RetryHook{policy: h.policy}
}

// Around implements CommandHook
func (h *RetryHook) Around(ctx context.Context, call Call, next CallFunc) (any, error) {
	attempt := func(ctx context.Context, _ int) (any, error) {
		res, err := next(ctx)
		recordAttempt(ctx, err)
		return res, err
	}

	switch {
	case call.ID == CmdFwupFinish:
		res, err := attempt(ctx, 1)
		if err != nil && isFinishDisconnect(err) {
			sessionLog(call.Session).WithError(err).
				Debug("finish transfer disconnected after ack, patch will apply")
			return FwupFinishWillApplyPatch, nil
		}
		return res, err

	case !IsIdempotent(call.ID):
		return attempt(ctx, 1)
	}

	log := sessionLog(call.Session).WithField("command", call.ID)
	return transport.WithRetry(ctx, transport.RetryConfig{
		Description: string(call.ID),
		MaxAttempts: h.policy.MaxAttempts,
		RetryDelay:  h.policy.Delay,
		Retryable:   IsRetryable,
		OnRetry: func(n int, lastErr error) error {
			log.WithFields(logrus.Fields{"attempt": n, "error": lastErr}).Debug("retrying command")
			return nil
		},
		OnRetryFailed: func(n int, lastErr error) {
			log.WithFields(logrus.Fields{"attempts": n, "error": lastErr}).Debug("retries exhausted")
		},
	}, attempt)
}

// isFinishDisconnect reports whether err is the transceive failure seen when
// the device resets before its finish acknowledgement can be read back
func isFinishDisconnect(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) || !errors.Is(te.Err, ErrTransceiveFailed) {
		return false
	}
	for _, sig := range finishDisconnectSignatures {
		if strings.Contains(te.Message, sig) {
			return true
		}
	}
	return false
}

type attemptsKey struct{}

// attemptRecorder collects the outcome of every physical attempt made for one
// logical command
type attemptRecorder struct {
	errs []error
	mu   sync.Mutex
}

func withAttemptRecorder(ctx context.Context) (context.Context, *attemptRecorder) {
	rec := &attemptRecorder{}
	return context.WithValue(ctx, attemptsKey{}, rec), rec
}

func recordAttempt(ctx context.Context, err error) {
	rec, ok := ctx.Value(attemptsKey{}).(*attemptRecorder)
	if !ok {
		return
	}
	rec.mu.Lock()
	rec.errs = append(rec.errs, err)
	rec.mu.Unlock()
}

// attempts returns the attempt count and how many of them failed
func (r *attemptRecorder) attempts() (total, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, err := range r.errs {
		if err != nil {
			failed++
		}
	}
	return len(r.errs), failed
}
