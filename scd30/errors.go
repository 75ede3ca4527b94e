// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package scd30

import (
	"fmt"
	"time"
)

// RangeError reports a caller-supplied argument outside the range the
// sensor accepts. It is returned before any bus I/O takes place.
type RangeError struct {
	Arg      string
	Value    int
	Min, Max int
	// ZeroOK indicates that 0 is also accepted, as a "disabled" value.
	ZeroOK bool
}

func (e *RangeError) Error() string {
	if e.ZeroOK {
		return fmt.Sprintf("scd30: %s must be 0 or within [%d, %d], got %d", e.Arg, e.Min, e.Max, e.Value)
	}
	return fmt.Sprintf("scd30: %s must be within [%d, %d], got %d", e.Arg, e.Min, e.Max, e.Value)
}

// ResolutionError reports a caller-supplied duration that is not a
// whole multiple of the unit the sensor accepts. It is returned before
// any bus I/O takes place.
type ResolutionError struct {
	Arg   string
	Value time.Duration
	Unit  time.Duration
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("scd30: %s %s must be a whole multiple of %s", e.Arg, e.Value, e.Unit)
}

// FrameError reports a response whose length is not the three bytes per
// word the command defines. No part of the response is decoded.
type FrameError struct {
	Len, Want int
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("scd30: response length %d bytes, want %d", e.Len, e.Want)
}

// ChecksumError reports a response word whose trailing CRC does not
// match the word's contents. One bad word discards the whole response;
// Index identifies the first failing word.
type ChecksumError struct {
	Index     int
	Word      uint16
	Got, Want byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("scd30: checksum mismatch on word %d (0x%04x): received 0x%02x, computed 0x%02x", e.Index, e.Word, e.Got, e.Want)
}

// ProtocolError reports a value the sensor returned outside its
// documented contract. The bus transaction itself completed and the
// response checksums were valid.
type ProtocolError struct {
	Cmd   uint16
	Value uint16
	What  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("scd30 cmd 0x%04x: %s: 0x%04x", e.Cmd, e.What, e.Value)
}

// ConfirmationError reports a set command whose echoed value differs
// from the one requested. The write reached the sensor, so its state is
// ambiguous; callers may re-read the setting or treat this as a
// warning.
type ConfirmationError struct {
	Cmd       uint16
	Requested uint16
	Echoed    uint16
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("scd30 cmd 0x%04x: sensor echoed 0x%04x, requested 0x%04x", e.Cmd, e.Echoed, e.Requested)
}
