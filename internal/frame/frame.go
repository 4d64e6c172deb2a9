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

package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrIncomplete means more bytes are needed before a frame can be parsed
	ErrIncomplete = errors.New("incomplete frame")
	// ErrChecksum means a length or data checksum did not sum to zero
	ErrChecksum = errors.New("frame checksum mismatch")
	// ErrMalformed means the bytes after a start code are not a frame
	ErrMalformed = errors.New("malformed frame")
	// ErrTooLarge means the data does not fit a single frame
	ErrTooLarge = errors.New("data too large for frame")
)

// Kind tells data frames from flow control frames
type Kind int

const (
	KindData Kind = iota
	KindACK
	KindNACK
)

func (k Kind) String() string {
	switch k {
	case KindACK:
		return "ack"
	case KindNACK:
		return "nack"
	default:
		return "data"
	}
}

// Frame is one parsed frame. Data excludes the direction byte.
type Frame struct {
	Data      []byte
	Kind      Kind
	Direction byte
}

// CalculateChecksum returns the byte sum of data
func CalculateChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// ValidateChecksum returns true when data, checksum byte included, does not
// sum to zero and the frame must be NACKed
func ValidateChecksum(data []byte) bool {
	return CalculateChecksum(data) != 0
}

// CalculateDataChecksum returns the DCS for a data field starting with the
// direction byte
func CalculateDataChecksum(direction byte, data []byte) byte {
	return ^(direction + CalculateChecksum(data)) + 1
}

// CalculateLengthChecksum returns the LCS for a two byte length
func CalculateLengthChecksum(length uint16) byte {
	return ^(byte(length>>8) + byte(length)) + 1
}

// Build encodes data as a frame sent in the given direction
func Build(direction byte, data []byte) ([]byte, error) {
	length := len(data) + 1
	if length > MaxDataLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	frm := make([]byte, 0, len(data)+Overhead+1)
	frm = append(frm, Preamble, StartCode1, StartCode2,
		byte(length>>8), byte(length), CalculateLengthChecksum(uint16(length)),
		direction)
	frm = append(frm, data...)
	return append(frm, CalculateDataChecksum(direction, data), Postamble), nil
}

// Parse decodes the first frame in buf. It returns the number of bytes
// consumed, leading noise included. On ErrIncomplete nothing is consumed;
// on ErrChecksum and ErrMalformed the returned count skips the bad frame so
// the caller can resynchronize.
func Parse(buf []byte) (Frame, int, error) {
	start := findStart(buf)
	if start < 0 {
		return Frame{}, 0, ErrIncomplete
	}
	p := start + 2
	if len(buf) < p+3 {
		return Frame{}, 0, ErrIncomplete
	}

	hi, lo, lcs := buf[p], buf[p+1], buf[p+2]
	switch {
	case hi == 0x00 && lo == 0xFF && lcs == Postamble:
		return Frame{Kind: KindACK}, p + 3, nil
	case hi == 0xFF && lo == 0x00 && lcs == Postamble:
		return Frame{Kind: KindNACK}, p + 3, nil
	}

	if ValidateChecksum([]byte{hi, lo, lcs}) {
		return Frame{}, p, fmt.Errorf("%w: length", ErrChecksum)
	}
	length := int(hi)<<8 | int(lo)
	if length == 0 {
		return Frame{}, p + 3, fmt.Errorf("%w: empty data field", ErrMalformed)
	}

	body := p + 3
	end := body + length + 2
	if len(buf) < end {
		return Frame{}, 0, ErrIncomplete
	}
	if ValidateChecksum(buf[body : body+length+1]) {
		return Frame{}, end, fmt.Errorf("%w: data", ErrChecksum)
	}

	data := make([]byte, length-1)
	copy(data, buf[body+1:body+length])
	return Frame{Kind: KindData, Direction: buf[body], Data: data}, end, nil
}

// findStart returns the index of the first 00 FF start code in buf
func findStart(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == StartCode1 && buf[i+1] == StartCode2 {
			return i
		}
	}
	return -1
}
