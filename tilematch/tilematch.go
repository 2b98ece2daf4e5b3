// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package tilematch finds the tiles of a spatial chip that a sequencing
// run covers.  It samples barcodes from the reads and reports, per tile
// of the barcode catalog, the fraction of the tile's barcodes that were
// sampled.
package tilematch

import (
	"context"
	goerrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/spatial/barcode"
	"github.com/grailbio/spatial/catalog"
	"github.com/grailbio/spatial/encoding/compressio"
	"github.com/grailbio/spatial/encoding/fastq"
	"github.com/grailbio/spatial/util"
)

const (
	// DefaultPattern is the IUPAC pattern of openst chip barcodes, on the
	// read strand.
	DefaultPattern = "VNBVNNVNNVNNVNNVNNVNNVNNVNNN"

	// A sampled barcode is dropped if any base is below minQual, or more
	// than maxLowQual bases are below lowQual.
	minQual    = 20
	lowQual    = 30
	maxLowQual = 2
	phredBase  = 33
)

// DefaultRegion is where openst reads carry the chip barcode.
var DefaultRegion = barcode.Region{Mate: 1, Start: 2, End: 30}

// Opts configures Match.
type Opts struct {
	// Region locates the barcode in each read.  Its Mate is ignored: the
	// region applies to the file given to Sample.
	Region barcode.Region
	// Pattern is an IUPAC pattern the barcode must match before any
	// reverse complement.  Empty disables the check.
	Pattern string
	// NumBarcodes bounds the number of distinct barcodes sampled.
	NumBarcodes int
	// Threshold is the smallest match ratio of a passing tile.
	Threshold float64
	// Tiles selects the tiles to report.  An empty set reports every tile
	// of the catalog.
	Tiles *catalog.TileSet
	// Delimiter separates the catalog columns.  Zero means tab.
	Delimiter byte
	// Parallelism is passed to the decompressors.
	Parallelism int
}

// DefaultOpts holds the default values of Opts.
var DefaultOpts = Opts{
	Region:      DefaultRegion,
	Pattern:     DefaultPattern,
	NumBarcodes: 100000000,
	Threshold:   0.1,
	Parallelism: 4,
}

func (o *Opts) validate() error {
	if o.Region.Width() < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("barcode region %v must be closed", o.Region))
	}
	if o.Pattern != "" {
		if !util.ValidIUPAC(o.Pattern) {
			return errors.E(errors.Invalid, fmt.Sprintf("barcode pattern %q has non-IUPAC codes", o.Pattern))
		}
		if len(o.Pattern) != o.Region.Width() {
			return errors.E(errors.Invalid, fmt.Sprintf("barcode pattern %q does not fit region %v", o.Pattern, o.Region))
		}
	}
	if o.NumBarcodes <= 0 {
		return errors.E(errors.Invalid, "number of barcodes must be positive")
	}
	return nil
}

// Sample is a set of distinct barcodes read from a FASTQ file.
type Sample struct {
	barcodes map[string]struct{}
	// Reads is the number of reads scanned.
	Reads int64
	// Filtered is the number of reads whose barcode failed the quality
	// or pattern filter.
	Filtered int64
}

// Len returns the number of distinct barcodes in the sample.
func (s *Sample) Len() int { return len(s.barcodes) }

// Contains reports whether barcode was sampled.
func (s *Sample) Contains(barcode string) bool {
	_, ok := s.barcodes[barcode]
	return ok
}

func failQuality(qual string) bool {
	low := 0
	for i := 0; i < len(qual); i++ {
		q := int(qual[i]) - phredBase
		if q < minQual {
			return true
		}
		if q < lowQual {
			low++
		}
	}
	return low > maxLowQual
}

// SampleReads collects up to opts.NumBarcodes distinct barcodes from
// the reads of r in file order.  Reads shorter than the region are
// skipped.  path is used in error messages.
func SampleReads(r *fastq.Scanner, path string, opts Opts) (*Sample, error) {
	fwd := opts.Region
	fwd.Reverse = false
	s := &Sample{barcodes: make(map[string]struct{})}
	var read fastq.Read
	for len(s.barcodes) < opts.NumBarcodes && r.Scan(&read) {
		s.Reads++
		seq, qual, ok := fwd.Extract(read.Seq, read.Qual)
		if !ok {
			s.Filtered++
			continue
		}
		if failQuality(qual) || (opts.Pattern != "" && !util.MatchIUPAC(seq, opts.Pattern)) {
			s.Filtered++
			continue
		}
		if opts.Region.Reverse {
			seq = util.ReverseComplement(seq)
		}
		s.barcodes[seq] = struct{}{}
	}
	if err := r.Err(); err != nil {
		var ioErr *util.IOError
		if goerrors.As(err, &ioErr) {
			return nil, err
		}
		return nil, &util.FormatError{Path: path, Record: r.N(), Err: err}
	}
	return s, nil
}

// SampleFile opens the FASTQ file at path and samples it.
func SampleFile(ctx context.Context, path string, opts Opts) (*Sample, error) {
	in, err := compressio.Open(ctx, path, opts.Parallelism)
	if err != nil {
		return nil, err
	}
	s, err := SampleReads(fastq.NewScanner(in, fastq.Seq|fastq.Qual), path, opts)
	if cerr := in.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Report is the match summary of one tile.
type Report struct {
	TileID string
	// Total is the number of distinct barcodes of the tile.
	Total int
	// Matched is the number of those that were sampled.
	Matched int
	// Ratio is Matched/Total, or 0 for an empty tile.
	Ratio float64
	// Pass is Ratio >= Opts.Threshold.
	Pass bool
}

// MatchTiles scans the catalog entries of s and reports each selected
// tile, sorted by tile id.  Selected tiles that have no entries are
// reported with a zero Total.
func MatchTiles(s *catalog.Scanner, sample *Sample, opts Opts) ([]Report, error) {
	all := opts.Tiles == nil || opts.Tiles.Len() == 0
	seen := make(map[string]map[string]bool)
	if !all {
		for _, id := range opts.Tiles.IDs() {
			seen[id] = make(map[string]bool)
		}
	}
	for s.Scan() {
		e := s.Entry()
		tile, ok := seen[e.TileID]
		if !ok {
			if !all {
				continue
			}
			tile = make(map[string]bool)
			seen[e.TileID] = tile
		}
		if _, ok := tile[e.Barcode]; !ok {
			tile[e.Barcode] = sample.Contains(e.Barcode)
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	reports := make([]Report, 0, len(seen))
	for id, tile := range seen {
		r := Report{TileID: id, Total: len(tile)}
		for _, matched := range tile {
			if matched {
				r.Matched++
			}
		}
		if r.Total > 0 {
			r.Ratio = float64(r.Matched) / float64(r.Total)
		} else {
			log.Printf("tilematch: tile %s has no catalog entries", id)
		}
		r.Pass = r.Total > 0 && r.Ratio >= opts.Threshold
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].TileID < reports[j].TileID })
	return reports, nil
}

// Match samples the reads at readPath and matches the sample against
// the catalog at catalogPath.
func Match(ctx context.Context, readPath, catalogPath string, opts Opts) ([]Report, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	t0 := time.Now()
	sample, err := SampleFile(ctx, readPath, opts)
	if err != nil {
		return nil, err
	}
	log.Printf("tilematch: sampled %d barcodes from %d reads, %d filtered (%v)",
		sample.Len(), sample.Reads, sample.Filtered, time.Since(t0))
	s, err := catalog.Open(ctx, catalogPath, catalog.Opts{Delimiter: opts.Delimiter, Parallelism: opts.Parallelism})
	if err != nil {
		return nil, err
	}
	reports, err := MatchTiles(s, sample, opts)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	log.Printf("tilematch: %d tiles (%v)", len(reports), time.Since(t0))
	return reports, nil
}
