// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package fq2bam converts paired FASTQ files into one unmapped BAM (or
// SAM) stream whose records carry the raw cell barcode and UMI as
// CR/CY/UR/UY tags.
//
// A single goroutine reads read pairs and cuts them into numbered
// chunks.  Opts.Parallelism workers tag and encode whole chunks, and a
// sharded writer emits the chunks in number order, so the output holds
// the records in input order.
package fq2bam

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/spatial/barcode"
	gbam "github.com/grailbio/spatial/encoding/bam"
	"github.com/grailbio/spatial/encoding/fastq"
	"github.com/grailbio/spatial/util"
	"golang.org/x/sync/errgroup"
)

// Stats summarizes a conversion.
type Stats struct {
	Pairs  int64
	Chunks int
}

// chunk is a run of consecutive read pairs, numbered from 0 in input
// order across all file pairs.
type chunk struct {
	num   int
	pairs []fastq.ReadPair
}

// outputWriter reports write failures as *util.IOError.
type outputWriter struct {
	w    io.Writer
	path string
}

func (o *outputWriter) Write(p []byte) (int, error) {
	n, err := o.w.Write(p)
	if err != nil {
		err = &util.IOError{Path: o.path, Op: "write", Err: err}
	}
	return n, err
}

// Convert reads the FASTQ pairs named by opts and writes the tagged
// records to out.  On error the output is incomplete and must be
// discarded; records of chunks after the failing one are never
// written.
func Convert(ctx context.Context, opts *Opts, out io.Writer) (Stats, error) {
	var stats Stats
	if err := validate(opts); err != nil {
		return stats, err
	}
	format, _ := gbam.ParseFormat(opts.Format)
	tagger, err := barcode.NewTagger(opts.Layout, opts.SampleID)
	if err != nil {
		return stats, err
	}
	header, err := gbam.NewUnmappedHeader(gbam.HeaderOpts{
		SampleID:    opts.SampleID,
		ProgramID:   "fq2bam",
		ProgramName: opts.ProgramName,
		Version:     opts.Version,
		CommandLine: opts.CommandLine,
	})
	if err != nil {
		return stats, err
	}
	name := opts.Output
	if name == "" {
		name = "-"
	}
	writer, err := gbam.NewShardedWriter(&outputWriter{out, name}, format,
		opts.CompressionLevel, opts.QueueLength, header)
	if err != nil {
		return stats, err
	}

	log.Printf("fq2bam: %d file pairs, layout %v, sample %s, %v output",
		len(opts.R1), opts.Layout, opts.SampleID, format)
	t0 := time.Now()
	var (
		chunks   = make(chan chunk, opts.Parallelism)
		nPairs   int64
		nChunks  int
		g, gctx  = errgroup.WithContext(ctx)
		abortErr = func(err error) error {
			// Unblock workers waiting in CloseShard on a shard that will
			// never arrive.
			writer.Abort(err)
			return err
		}
	)
	g.Go(func() error {
		defer close(chunks)
		for i := range opts.R1 {
			n, err := readPairs(gctx, opts, opts.R1[i], opts.R2[i], &nChunks, chunks)
			nPairs += n
			if err != nil {
				return abortErr(err)
			}
		}
		return nil
	})
	for w := 0; w < opts.Parallelism; w++ {
		g.Go(func() error {
			compressor := writer.GetCompressor()
			var rec barcode.TaggedRecord
			for c := range chunks {
				if err := compressor.StartShard(c.num); err != nil {
					return abortErr(err)
				}
				for i := range c.pairs {
					if err := tagger.Tag(&c.pairs[i], &rec); err != nil {
						return abortErr(err)
					}
					r, err := newRecord(&rec)
					if err != nil {
						return abortErr(err)
					}
					if err := compressor.AddRecord(r); err != nil {
						return abortErr(err)
					}
				}
				if err := compressor.CloseShard(); err != nil {
					return abortErr(err)
				}
				log.Debug.Printf("fq2bam: chunk %d done, %d pairs", c.num, len(c.pairs))
			}
			return nil
		})
	}
	err = g.Wait()
	if err != nil {
		writer.Abort(err)
	}
	// A failed output write surfaces in workers as a closed queue; report
	// the write error itself.
	var ioErr *util.IOError
	if cerr := writer.Close(); err == nil || (cerr != nil && errors.As(cerr, &ioErr)) {
		err = cerr
	}
	stats.Pairs, stats.Chunks = nPairs, nChunks
	if err != nil {
		return stats, err
	}
	log.Printf("fq2bam: wrote %d records in %d chunks, %v", stats.Pairs, stats.Chunks, time.Since(t0))
	return stats, nil
}

// readPairs sends the pairs of one file pair to chunks.  A chunk is
// sent only once all of its pairs were read without error.  It returns
// the number of pairs read.
func readPairs(ctx context.Context, opts *Opts, path1, path2 string, nChunks *int, chunks chan<- chunk) (int64, error) {
	r, err := fastq.OpenPair(ctx, path1, path2, fastq.PairOpts{
		CheckIDs:    opts.CheckIDs,
		Parallelism: opts.Parallelism,
	})
	if err != nil {
		return 0, err
	}
	defer r.Close() // nolint: errcheck

	var n int64
	send := func(c chunk) error {
		select {
		case chunks <- c:
			*nChunks++
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c := chunk{num: *nChunks, pairs: make([]fastq.ReadPair, 0, opts.ChunkSize)}
	for {
		var p fastq.ReadPair
		if !r.Scan(&p) {
			break
		}
		c.pairs = append(c.pairs, p)
		n++
		if len(c.pairs) == opts.ChunkSize {
			if err := send(c); err != nil {
				return n, err
			}
			c = chunk{num: *nChunks, pairs: make([]fastq.ReadPair, 0, opts.ChunkSize)}
		}
	}
	if err := r.Err(); err != nil {
		return n, err
	}
	if len(c.pairs) > 0 {
		if err := send(c); err != nil {
			return n, err
		}
	}
	log.Printf("fq2bam: %s, %s: %d pairs", path1, path2, n)
	return n, nil
}

// ConvertFiles runs Convert, writing to opts.Output.
func ConvertFiles(ctx context.Context, opts *Opts) (stats Stats, err error) {
	if opts.Output == "" || opts.Output == "-" {
		return Convert(ctx, opts, os.Stdout)
	}
	if err := validate(opts); err != nil {
		return stats, err
	}
	out, err := file.Create(ctx, opts.Output)
	if err != nil {
		return stats, &util.IOError{Path: opts.Output, Op: "create", Err: err}
	}
	defer func() {
		if e := out.Close(ctx); e != nil && err == nil {
			err = &util.IOError{Path: opts.Output, Op: "close", Err: e}
		}
	}()
	return Convert(ctx, opts, out.Writer(ctx))
}
