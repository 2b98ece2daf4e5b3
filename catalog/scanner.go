// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package catalog

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/spatial/encoding/compressio"
	"github.com/grailbio/spatial/util"
)

// NumColumns is the number of columns of a catalog line.
const NumColumns = 4

// Entry is one catalog line.
type Entry struct {
	TileID  string
	X, Y    uint32
	Barcode string
}

// Opts configures a Scanner.
type Opts struct {
	// Delimiter separates the columns.  Zero means tab.
	Delimiter byte
	// Parallelism is the number of decompression threads.
	Parallelism int
}

// Scanner reads Entries from a catalog stream.  Scanner is not thread
// safe.  Usage:
//
//   s, err := catalog.Open(ctx, path, catalog.Opts{})
//   for s.Scan() {
//     e := s.Entry()
//     ...
//   }
//   err = s.Err()
//   s.Close()
type Scanner struct {
	path   string
	delim  byte
	b      *bufio.Scanner
	closer io.Closer
	line   int64
	entry  Entry
	err    error
}

// NewScanner creates a Scanner reading from r.  Path is only used in
// error messages.
func NewScanner(r io.Reader, path string, opts Opts) *Scanner {
	delim := opts.Delimiter
	if delim == 0 {
		delim = '\t'
	}
	b := bufio.NewScanner(r)
	b.Buffer(make([]byte, 0, 64<<10), 1<<20)
	return &Scanner{path: path, delim: delim, b: b}
}

// Open opens the catalog at path, detecting its compression.
func Open(ctx context.Context, path string, opts Opts) (*Scanner, error) {
	r, err := compressio.Open(ctx, path, opts.Parallelism)
	if err != nil {
		return nil, err
	}
	s := NewScanner(r, path, opts)
	s.closer = r
	return s, nil
}

// Scan advances to the next entry.  It returns false at the end of the
// stream or on error.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for s.b.Scan() {
		s.line++
		line := bytes.TrimRight(s.b.Bytes(), "\r")
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if err := s.parse(line); err != nil {
			s.err = &util.FormatError{Path: s.path, Record: s.line, Err: err}
			return false
		}
		return true
	}
	if err := s.b.Err(); err != nil {
		if _, ok := err.(*util.IOError); ok {
			s.err = err
		} else {
			s.err = &util.FormatError{Path: s.path, Record: s.line + 1, Err: err}
		}
	}
	return false
}

func (s *Scanner) parse(line []byte) error {
	var cols [NumColumns][]byte
	n := 0
	for {
		i := bytes.IndexByte(line, s.delim)
		if n == NumColumns {
			n++
			break
		}
		if i < 0 {
			cols[n] = line
			n++
			break
		}
		cols[n] = line[:i]
		line = line[i+1:]
		n++
	}
	if n != NumColumns {
		return errors.E(fmt.Sprintf("expected %d columns separated by %q, found %s",
			NumColumns, s.delim, columnCount(n)))
	}
	if len(cols[0]) == 0 {
		return errors.E("empty tile id")
	}
	x, err := strconv.ParseUint(string(cols[1]), 10, 32)
	if err != nil {
		return errors.E(err, "bad x position")
	}
	y, err := strconv.ParseUint(string(cols[2]), 10, 32)
	if err != nil {
		return errors.E(err, "bad y position")
	}
	barcode := cols[3]
	if len(barcode) == 0 {
		return errors.E("empty barcode")
	}
	for i, b := range barcode {
		if !util.IsBase(b) {
			return errors.E(fmt.Sprintf("barcode %q: invalid base %q at position %d", barcode, b, i))
		}
	}
	s.entry = Entry{
		TileID:  string(cols[0]),
		X:       uint32(x),
		Y:       uint32(y),
		Barcode: string(barcode),
	}
	return nil
}

func columnCount(n int) string {
	if n > NumColumns {
		return "more"
	}
	return strconv.Itoa(n)
}

// Entry returns the entry read by the last successful Scan.
func (s *Scanner) Entry() Entry { return s.entry }

// Line returns the 1-based line number of the last line read.
func (s *Scanner) Line() int64 { return s.line }

// Err returns the error that stopped Scan, if any.  It is a
// *util.FormatError for malformed lines and a *util.IOError for read
// failures.
func (s *Scanner) Err() error { return s.err }

// Close closes the underlying file, if the Scanner was created by Open.
func (s *Scanner) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
