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
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logMu  sync.RWMutex
	logger = newDiscardLogger()
)

func newDiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// SetDebugEnabled turns debug output to stderr on or off
func SetDebugEnabled(enabled bool) {
	logMu.Lock()
	defer logMu.Unlock()
	if enabled {
		logger.SetOutput(os.Stderr)
		logger.SetLevel(logrus.DebugLevel)
		return
	}
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.InfoLevel)
}

// SetLogger replaces the package logger. A nil logger discards all output.
func SetLogger(l *logrus.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	if l == nil {
		l = newDiscardLogger()
	}
	logger = l
}

// Logger returns the package logger
func Logger() *logrus.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

func debugf(format string, args ...any) {
	Logger().Debugf(format, args...)
}

func debugln(args ...any) {
	Logger().Debugln(args...)
}

// sessionLog returns an entry tagged with the session correlation fields
func sessionLog(s *Session) *logrus.Entry {
	entry := logrus.NewEntry(Logger())
	if s == nil {
		return entry
	}
	return entry.WithFields(logrus.Fields{
		"session": s.ID(),
		"flow":    s.Params().NfcFlowName,
	})
}
