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
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Span is one timed operation reported to a tracing backend
type Span interface {
	SetTag(key string, value any)
	Finish(err error)
}

// Tracer starts spans. Implementations forward to the app's tracing backend.
type Tracer interface {
	StartSpan(ctx context.Context, operation string) (context.Context, Span)
}

type noopTracer struct{}

type noopSpan struct{}

// NoopTracer returns a Tracer that records nothing
func NoopTracer() Tracer {
	return noopTracer{}
}

func (noopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopSpan) SetTag(string, any) {}

func (noopSpan) Finish(error) {}

// Span outcome tags
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"
)

// MetricsSnapshot is a point-in-time copy of TransactionMetrics
type MetricsSnapshot struct {
	Transactions        int64         // Transactions run
	TransactionFailures int64         // Transactions that returned an error
	Commands            int64         // Logical commands issued
	CommandFailures     int64         // Logical commands that returned an error
	Attempts            int64         // Physical attempts, retries included
	FailedAttempts      int64         // Physical attempts that failed
	LastCommandLatency  time.Duration // Duration of the last command, retries included
}

// TransactionMetrics counts transactions and commands. Safe for concurrent use.
type TransactionMetrics struct {
	transactions        int64
	transactionFailures int64
	commands            int64
	commandFailures     int64
	attempts            int64
	failedAttempts      int64
	lastCommandLatency  int64 // in nanoseconds
}

// Snapshot returns the current counters
func (m *TransactionMetrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Transactions:        atomic.LoadInt64(&m.transactions),
		TransactionFailures: atomic.LoadInt64(&m.transactionFailures),
		Commands:            atomic.LoadInt64(&m.commands),
		CommandFailures:     atomic.LoadInt64(&m.commandFailures),
		Attempts:            atomic.LoadInt64(&m.attempts),
		FailedAttempts:      atomic.LoadInt64(&m.failedAttempts),
		LastCommandLatency:  time.Duration(atomic.LoadInt64(&m.lastCommandLatency)),
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return OutcomeCancelled
	default:
		return OutcomeFailure
	}
}

type metricsHook struct {
	tracer  Tracer
	metrics *TransactionMetrics
}

// Name implements CommandHook
func (*metricsHook) Name() string {
	return InterceptorMetrics
}

// Around implements CommandHook. Attempts made by a retry hook below are
// reported through the context.
func (h *metricsHook) Around(ctx context.Context, call Call, next CallFunc) (any, error) {
	ctx, span := h.tracer.StartSpan(ctx, "nfc.command."+string(call.ID))
	ctx, rec := withAttemptRecorder(ctx)

	start := time.Now()
	res, err := next(ctx)
	elapsed := time.Since(start)

	total, failed := rec.attempts()
	if total == 0 {
		total = 1
		if err != nil {
			failed = 1
		}
	}

	atomic.AddInt64(&h.metrics.commands, 1)
	atomic.AddInt64(&h.metrics.attempts, int64(total))
	atomic.AddInt64(&h.metrics.failedAttempts, int64(failed))
	atomic.StoreInt64(&h.metrics.lastCommandLatency, elapsed.Nanoseconds())
	if err != nil {
		atomic.AddInt64(&h.metrics.commandFailures, 1)
	}

	span.SetTag("command", string(call.ID))
	span.SetTag("attempts", total)
	span.SetTag("outcome", outcome(err))
	if call.Session != nil {
		span.SetTag("session", call.Session.ID())
	}
	span.Finish(err)

	sessionLog(call.Session).WithFields(logrus.Fields{
		"command":  call.ID,
		"attempts": total,
		"duration": elapsed,
		"outcome":  outcome(err),
	}).Debug("command finished")

	return res, err
}

// CollectMetrics records a span around the transaction and around every
// command it issues. A nil tracer records nothing; nil metrics are not kept.
func CollectMetrics(tracer Tracer, metrics *TransactionMetrics) Interceptor {
	if tracer == nil {
		tracer = NoopTracer()
	}
	if metrics == nil {
		metrics = &TransactionMetrics{}
	}
	return Interceptor{
		Name: InterceptorMetrics,
		Wrap: func(next Effect) Effect {
			return func(ctx context.Context, s *Session, cmds Commands) error {
				ctx, span := tracer.StartSpan(ctx, "nfc.transaction")
				span.SetTag("flow", s.Params().NfcFlowName)
				span.SetTag("session", s.ID())

				err := next(ctx, s, Decorate(cmds, &metricsHook{tracer: tracer, metrics: metrics}))

				atomic.AddInt64(&metrics.transactions, 1)
				if err != nil {
					atomic.AddInt64(&metrics.transactionFailures, 1)
				}
				span.SetTag("outcome", outcome(err))
				span.Finish(err)
				return err
			}
		},
	}
}
