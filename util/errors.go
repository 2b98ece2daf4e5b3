// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package util

import (
	"fmt"
)

// FormatError reports a malformed input record: broken FASTQ framing,
// discordant mates, or a bad catalog line. Record is the 1-based record
// (or line) ordinal within Path; it is zero when unknown.
type FormatError struct {
	Path   string
	Record int64
	Err    error
}

func (e *FormatError) Error() string {
	if e.Record > 0 {
		return fmt.Sprintf("format error: %s: record %d: %v", e.Path, e.Record, e.Err)
	}
	return fmt.Sprintf("format error: %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FormatError) Unwrap() error { return e.Err }

// LayoutError reports a read that is too short for the configured read
// structure. Need is the minimum length the layout requires from the mate.
type LayoutError struct {
	Name   string
	Mate   int
	Length int
	Need   int
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("layout error: read %s: mate %d has length %d, layout needs at least %d",
		e.Name, e.Mate, e.Length, e.Need)
}

// IOError reports a failure to open, read, decompress, or write a file.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("i/o error: %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *IOError) Unwrap() error { return e.Err }
