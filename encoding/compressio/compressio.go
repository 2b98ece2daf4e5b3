// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package compressio opens sequencing inputs that may be BGZF-compressed,
// gzip-compressed, or plain text. The compression is detected from the
// first bytes of the stream, so file suffixes are not consulted.
package compressio

import (
	"bufio"
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/spatial/util"
	gzip "github.com/klauspost/pgzip"
)

// Format is the compression of a stream.
type Format int

const (
	// Plain is uncompressed text.
	Plain Format = iota
	// Gzip is a gzip stream without BGZF block headers.
	Gzip
	// BGZF is a blocked gzip stream, as produced by bgzip.
	BGZF
)

func (f Format) String() string {
	switch f {
	case Gzip:
		return "gzip"
	case BGZF:
		return "bgzf"
	default:
		return "plain"
	}
}

// gzip header: ID1 ID2 CM FLG MTIME(4) XFL OS XLEN(2) SI1 SI2 ...
const (
	headerLen = 18
	flagExtra = 0x04
)

// Detect returns the compression format given the leading bytes of a
// stream. It needs at least the first 18 bytes to recognize BGZF.
func Detect(header []byte) Format {
	if len(header) < 2 || header[0] != 0x1f || header[1] != 0x8b {
		return Plain
	}
	if len(header) >= 14 && header[3]&flagExtra != 0 && header[12] == 'B' && header[13] == 'C' {
		return BGZF
	}
	return Gzip
}

// NewReader returns a reader that yields the decompressed content of r.
// Parallelism bounds the number of blocks decompressed concurrently.
func NewReader(r io.Reader, parallelism int) (io.ReadCloser, Format, error) {
	if parallelism <= 0 {
		parallelism = 1
	}
	br := bufio.NewReaderSize(r, 1<<16)
	header, err := br.Peek(headerLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, Plain, err
	}
	format := Detect(header)
	switch format {
	case BGZF:
		z, err := bgzf.NewReader(br, parallelism)
		if err != nil {
			return nil, format, err
		}
		return z, format, nil
	case Gzip:
		z, err := gzip.NewReaderN(br, 1<<20, parallelism)
		if err != nil {
			return nil, format, err
		}
		return z, format, nil
	}
	return io.NopCloser(br), format, nil
}

// Reader is an opened, decompressed file. Read errors other than io.EOF are
// reported as *util.IOError naming the path.
type Reader struct {
	path   string
	ctx    context.Context
	f      file.File
	z      io.ReadCloser
	Format Format
}

// Open opens path (any scheme grailbio/base/file supports) and sets up
// decompression.
func Open(ctx context.Context, path string, parallelism int) (*Reader, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, &util.IOError{Path: path, Op: "open", Err: err}
	}
	z, format, err := NewReader(f.Reader(ctx), parallelism)
	if err != nil {
		f.Close(ctx) // nolint: errcheck
		return nil, &util.IOError{Path: path, Op: "decompress", Err: err}
	}
	log.Debug.Printf("%s: opened as %v", path, format)
	return &Reader{path: path, ctx: ctx, f: f, z: z, Format: format}, nil
}

// Path returns the path passed to Open.
func (r *Reader) Path() string { return r.path }

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.z.Read(p)
	if err != nil && err != io.EOF {
		err = &util.IOError{Path: r.path, Op: "read", Err: err}
	}
	return n, err
}

// Close releases the decompressor and the underlying file.
func (r *Reader) Close() error {
	e := errors.Once{}
	e.Set(r.z.Close())
	e.Set(r.f.Close(r.ctx))
	if err := e.Err(); err != nil {
		return &util.IOError{Path: r.path, Op: "close", Err: err}
	}
	return nil
}
