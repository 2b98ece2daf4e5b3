// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bam

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/grailbio/base/syncqueue"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/spatial/encoding/bgzf"
	"v.io/x/lib/vlog"
)

// Format is the encoding of a ShardedWriter's output.
type Format int

const (
	// BAM is BGZF-compressed binary output.
	BAM Format = iota
	// SAM is uncompressed text output.
	SAM
)

// ParseFormat parses "bam" or "sam".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "bam", "BAM":
		return BAM, nil
	case "sam", "SAM":
		return SAM, nil
	}
	return BAM, fmt.Errorf("unknown output format %q, want bam or sam", s)
}

func (f Format) String() string {
	if f == SAM {
		return "sam"
	}
	return "bam"
}

// ShardedWriter writes a BAM or SAM stream as a sequence of shards.
// Each shard has a sequentially increasing shard number starting at 0,
// and the ShardedWriter emits shards in the order of their numbers no
// matter in which order they are finished.
//
// To produce a shard, a worker obtains a ShardedCompressor with
// GetCompressor, calls StartShard, adds records, and calls CloseShard,
// which hands the encoded shard to the ShardedWriter.  Each worker
// should own one ShardedCompressor; encoding and compression happen in
// AddRecord and CloseShard, so workers proceed in parallel.
//
// Example use of ShardedWriter:
//
//   w, err := NewShardedWriter(f, BAM, gzip.DefaultCompression, 10, header)
//   c1 := w.GetCompressor()
//   c2 := w.GetCompressor()
//
//   // Each of the shards may be populated and closed concurrently.
//   if c2.StartShard(1) != nil { panic }
//   if c2.AddRecord(record1) != nil { panic }
//   if c2.CloseShard() != nil { panic }
//
//   if c1.StartShard(0) != nil { panic }
//   if c1.AddRecord(record0) != nil { panic }
//   if c1.CloseShard() != nil { panic }
//
//   if w.Close() != nil { panic }
type ShardedWriter struct {
	w         io.Writer
	format    Format
	gzLevel   int
	queue     *syncqueue.OrderedQueue
	waitGroup sync.WaitGroup
	err       error
}

// ShardedCompressor holds the state of one in-progress shard.  Create
// it with ShardedWriter.GetCompressor.  A ShardedCompressor is not
// thread safe, but distinct compressors of one writer may be used
// concurrently.
type ShardedCompressor struct {
	writer *ShardedWriter
	bgzf   *bgzf.Writer
	output *shardBuffer
	buf    bytes.Buffer
}

// shardBuffer is one encoded shard of the final output.
type shardBuffer struct {
	buf      bytes.Buffer
	shardNum int
}

// NewShardedWriter creates a ShardedWriter that writes header and then
// the shards to w.  At most queueSize finished shards are buffered
// while waiting for an earlier shard; CloseShard blocks beyond that.
func NewShardedWriter(w io.Writer, format Format, gzLevel, queueSize int, header *sam.Header) (*ShardedWriter, error) {
	sw := &ShardedWriter{
		w:       w,
		format:  format,
		gzLevel: gzLevel,
		queue:   syncqueue.NewOrderedQueue(queueSize),
	}

	// The header goes into shard -1, which is internal shard 0.
	c := sw.GetCompressor()
	if err := c.StartShard(-1); err != nil {
		return nil, err
	}
	if err := c.addHeader(header); err != nil {
		return nil, err
	}
	if err := c.CloseShard(); err != nil {
		return nil, err
	}

	sw.waitGroup.Add(1)
	go func() {
		defer sw.waitGroup.Done()
		sw.writeShards()
	}()
	return sw, nil
}

// GetCompressor returns a child ShardedCompressor.
func (sw *ShardedWriter) GetCompressor() *ShardedCompressor {
	return &ShardedCompressor{writer: sw}
}

// StartShard begins a new shard with the specified shard number.  It
// crashes if the previous shard was not closed.
func (c *ShardedCompressor) StartShard(shardNum int) error {
	if c.output != nil {
		vlog.Fatalf("existing shard still in progress")
	}
	// Clients number shards from 0; internally the header takes 0.
	c.output = &shardBuffer{shardNum: shardNum + 1}
	if c.writer.format == SAM {
		return nil
	}
	var err error
	c.bgzf, err = bgzf.NewWriter(&c.output.buf, c.writer.gzLevel)
	return err
}

func (c *ShardedCompressor) addHeader(h *sam.Header) error {
	if c.writer.format == SAM {
		text, err := h.MarshalText()
		if err != nil {
			return err
		}
		_, err = c.output.buf.Write(text)
		return err
	}
	return h.EncodeBinary(c.bgzf)
}

// AddRecord encodes r into the current shard.
func (c *ShardedCompressor) AddRecord(r *sam.Record) error {
	if c.writer.format == SAM {
		text, err := r.MarshalText()
		if err != nil {
			return err
		}
		c.output.buf.Write(text)
		c.output.buf.WriteByte('\n')
		return nil
	}
	if err := Marshal(r, &c.buf); err != nil {
		return err
	}
	_, err := c.buf.WriteTo(c.bgzf)
	return err
}

// CloseShard finalizes the current shard and passes it to the parent
// ShardedWriter.  It blocks while the writer's queue is full, and
// fails if the writer was aborted.
func (c *ShardedCompressor) CloseShard() error {
	if c.bgzf != nil {
		if err := c.bgzf.CloseWithoutTerminator(); err != nil {
			return err
		}
		c.bgzf = nil
	}
	shard := c.output
	c.output = nil
	return c.writer.queue.Insert(shard.shardNum, shard)
}

func (sw *ShardedWriter) writeShards() {
	for {
		entry, ok, err := sw.queue.Next()
		if err != nil {
			sw.err = err
			return
		}
		if !ok {
			return
		}
		shard := entry.(*shardBuffer)
		if _, err = shard.buf.WriteTo(sw.w); err != nil {
			sw.err = err
			sw.queue.Close(err) // nolint: errcheck
			return
		}
	}
}

// Abort stops the writer: shards not yet written are dropped, pending
// and future CloseShard calls fail, and Close returns err.
func (sw *ShardedWriter) Abort(err error) {
	sw.queue.Close(err) // nolint: errcheck
}

// Close waits for all shards to be written and, for BAM output,
// appends the BGZF terminator.  It must be called only after every
// shard was closed.
func (sw *ShardedWriter) Close() error {
	err := sw.queue.Close(nil)
	sw.waitGroup.Wait()
	if sw.err != nil {
		return sw.err
	}
	if err != nil {
		return err
	}
	if sw.format == SAM {
		return nil
	}
	_, err = sw.w.Write(bgzf.Terminator)
	return err
}
