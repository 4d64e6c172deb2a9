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
	"fmt"
	"path/filepath"
	"strings"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port that may host an NFC bridge
type PortInfo struct {
	Name    string
	VIDPID  string
	Serial  string
	Product string
	IsUSB   bool
}

// DiscoverOptions filters the ports Discover returns
type DiscoverOptions struct {
	// Blocklist holds VID:PID pairs never to report, in hexadecimal
	Blocklist []string
	// IgnorePaths holds device paths never to report
	IgnorePaths []string
	// USBOnly drops ports that are not USB adapters
	USBOnly bool
}

// Discover lists the serial ports on this machine that pass opts
func Discover(opts DiscoverOptions) ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	ports := filterPorts(details, opts)
	hwnfc.Logger().Debugf("uart: %d of %d serial ports usable", len(ports), len(details))
	return ports, nil
}

func filterPorts(details []*enumerator.PortDetails, opts DiscoverOptions) []PortInfo {
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		if d == nil || isPathIgnored(d.Name, opts.IgnorePaths) {
			continue
		}
		if opts.USBOnly && !d.IsUSB {
			continue
		}
		info := PortInfo{Name: d.Name, Serial: d.SerialNumber, Product: d.Product, IsUSB: d.IsUSB}
		if d.IsUSB {
			info.VIDPID = strings.ToUpper(d.VID + ":" + d.PID)
			if isBlocked(info.VIDPID, opts.Blocklist) {
				continue
			}
		}
		ports = append(ports, info)
	}
	return ports
}

// isBlocked checks vidpid against the blocklist, ignoring case
func isBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.TrimSpace(vidpid)
	for _, blocked := range blocklist {
		if strings.EqualFold(vidpid, strings.TrimSpace(blocked)) {
			return true
		}
	}
	return false
}

// isPathIgnored compares cleaned paths, ignoring case for Windows port names
func isPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	normalized := strings.ToLower(filepath.Clean(devicePath))
	for _, ignore := range ignorePaths {
		if ignore == "" {
			continue
		}
		if normalized == strings.ToLower(filepath.Clean(ignore)) {
			return true
		}
	}
	return false
}
