// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package bgzf includes a Writer for the .bgzf (block gzipped) file
// format.  A .bgzf file consists of one or more complete gzip blocks
// concatenated together.  Each block holds at most 64KB of
// uncompressed data and at most 64KB of compressed data.  A valid
// .bgzf file ends with a 28 byte terminator, itself an empty gzip
// block.
//
// BAM files and bgzip-compressed barcode catalogs are .bgzf files.
// See the SAM/BAM spec: https://samtools.github.io/hts-specs/SAMv1.pdf
//
// Blocks are independent, so output may be produced in shards and
// concatenated later:
//   // In goroutine 1
//   var shard1 bytes.Buffer
//   w, err := NewWriter(&shard1, gzip.DefaultCompression)
//   n, err := w.Write([]byte("Foo bar"))
//   err = w.CloseWithoutTerminator()
//
//   // In goroutine 2
//   var shard2 bytes.Buffer
//   w, err := NewWriter(&shard2, gzip.DefaultCompression)
//   n, err := w.Write([]byte(" baz!"))
//   err = w.Close()  // Terminator goes at the end of the last shard.
package bgzf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"v.io/x/lib/vlog"
)

const (
	// DefaultUncompressedBlockSize is the default bgzf
	// uncompressedBlockSize chosen by both sambamba and biogo.
	DefaultUncompressedBlockSize = 0x0ff00

	// compressedBlockSize is the maximum size of the compressed data
	// for a Bgzf block.
	compressedBlockSize = 0x10000
)

var (
	// bgzfExtra goes into the gzip's Extra subfield, with subfield
	// ids: 66, 67, and length 2.
	bgzfExtra       = [...]byte{66, 67, 2, 0, 0, 0}
	bgzfExtraPrefix = [...]byte{66, 67, 2, 0}

	// Terminator is the Bgzf EOF marker.  It belongs at the end of a
	// valid Bgzf file.
	Terminator = []byte{
		0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0x06, 0x00, 0x42, 0x43,
		0x02, 0x00, 0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
)

// gzipFactory hands out a gzip writer for each block.  It keeps one
// writer and calls Reset on it instead of allocating a new compressor
// per block.
type gzipFactory struct {
	level int
	gz    *gzip.Writer
}

func (c *gzipFactory) create(w io.Writer) (io.WriteCloser, error) {
	if c.gz == nil {
		var err error
		if c.gz, err = gzip.NewWriterLevel(w, c.level); err != nil {
			return nil, err
		}
	} else {
		c.gz.Reset(w)
	}
	c.gz.Header.Extra = make([]byte, len(bgzfExtra))
	copy(c.gz.Header.Extra, bgzfExtra[:])
	c.gz.Header.OS = 0xff // Unknown OS value
	return c.gz, nil
}

// Writer compresses data into .bgzf format.  Each gzip block carries
// an Extra header field holding the compressed block size - 1.
// Writer is not thread safe; use one Writer per shard.
type Writer struct {
	factory          gzipFactory
	uncompressedSize int
	w                io.Writer
	original         bytes.Buffer
	compressed       bytes.Buffer
}

// NewWriter returns a new .bgzf writer with the given gzip compression
// level.
func NewWriter(w io.Writer, level int) (*Writer, error) {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		return nil, fmt.Errorf("bgzf: invalid compression level %d", level)
	}
	return &Writer{
		factory:          gzipFactory{level: level},
		uncompressedSize: DefaultUncompressedBlockSize,
		w:                w,
	}, nil
}

// Write appends buf to the .bgzf payload.  Full blocks are compressed
// and written to the underlying writer as they fill up.
func (w *Writer) Write(buf []byte) (int, error) {
	for i := 0; i < len(buf); {
		end := len(buf)
		limit := i + w.uncompressedSize - w.original.Len()
		if limit < end {
			end = limit
		}
		n, _ := w.original.Write(buf[i:end])
		i += n
		if err := w.tryCompress(false); err != nil {
			return i, err
		}
	}
	return len(buf), nil
}

// CloseWithoutTerminator flushes the current block, but does not
// append the terminator.
func (w *Writer) CloseWithoutTerminator() error {
	return w.tryCompress(true)
}

// Close flushes the current block and appends the terminator.
func (w *Writer) Close() error {
	if err := w.CloseWithoutTerminator(); err != nil {
		return err
	}
	_, err := w.w.Write(Terminator)
	return err
}

func (w *Writer) tryCompress(compressRemainder bool) error {
	for w.original.Len() >= w.uncompressedSize || (compressRemainder && w.original.Len() > 0) {
		gz, err := w.factory.create(&w.compressed)
		if err != nil {
			return err
		}
		if _, err := gz.Write(w.original.Next(w.uncompressedSize)); err != nil {
			return err
		}
		if err := gz.Close(); err != nil {
			return err
		}

		// Patch BSIZE, which sits right after the extra subfield prefix.
		b := w.compressed.Bytes()
		offset := 12 // offset of the Extra field in the gzip header.
		bsize := w.compressed.Len() - 1
		if bsize >= compressedBlockSize {
			return fmt.Errorf("bgzf compressed block is too big: %d > %d", bsize, compressedBlockSize)
		}
		if len(b) < offset+len(bgzfExtra) {
			vlog.Fatalf("compressed length is too short: %d < %d", len(b), offset+len(bgzfExtra))
		}
		if !bytes.Equal(b[offset:offset+len(bgzfExtraPrefix)], bgzfExtraPrefix[:]) {
			vlog.Fatalf("could not find bgzf extra prefix")
		}
		b[offset+4] = byte(bsize)
		b[offset+5] = byte(bsize >> 8)

		if _, err := w.compressed.WriteTo(w.w); err != nil {
			return err
		}
	}
	return nil
}
