// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package barcode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/spatial/util"
)

// EndOfRead as a Region.End extends the region to the end of the mate.
const EndOfRead = -1

// Region is a half-open range [Start, End) of one mate of a read pair.
// When Reverse is set, the extracted sequence is reverse complemented
// and its qualities reversed.
type Region struct {
	Mate       int // 1 or 2
	Reverse    bool
	Start, End int
}

// ParseRegion parses the text form of a Region:
//
//   read1:+:2-30     bases [2,30) of mate 1
//   read2:-:9-end    bases [9,) of mate 2, reverse complemented
//   read1:0-28       strand may be omitted, meaning +
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(s, ":")
	if len(parts) == 2 {
		parts = []string{parts[0], "+", parts[1]}
	}
	if len(parts) != 3 {
		return Region{}, fmt.Errorf("region %q: want read{1,2}:{+,-}:start-end", s)
	}
	var r Region
	switch strings.ToLower(parts[0]) {
	case "read1", "r1", "1":
		r.Mate = 1
	case "read2", "r2", "2":
		r.Mate = 2
	default:
		return Region{}, fmt.Errorf("region %q: unknown read %q", s, parts[0])
	}
	switch parts[1] {
	case "+":
	case "-":
		r.Reverse = true
	default:
		return Region{}, fmt.Errorf("region %q: strand must be + or -", s)
	}
	bounds := strings.SplitN(parts[2], "-", 2)
	if len(bounds) != 2 {
		return Region{}, fmt.Errorf("region %q: want start-end", s)
	}
	var err error
	if r.Start, err = strconv.Atoi(bounds[0]); err != nil {
		return Region{}, fmt.Errorf("region %q: bad start: %v", s, err)
	}
	if bounds[1] == "end" {
		r.End = EndOfRead
	} else if r.End, err = strconv.Atoi(bounds[1]); err != nil {
		return Region{}, fmt.Errorf("region %q: bad end: %v", s, err)
	}
	if err := r.validate(); err != nil {
		return Region{}, fmt.Errorf("region %q: %v", s, err)
	}
	return r, nil
}

func (r Region) validate() error {
	if r.Mate != 1 && r.Mate != 2 {
		return fmt.Errorf("mate must be 1 or 2, got %d", r.Mate)
	}
	if r.Start < 0 {
		return fmt.Errorf("negative start %d", r.Start)
	}
	if r.End != EndOfRead && r.End <= r.Start {
		return fmt.Errorf("end %d must be larger than start %d", r.End, r.Start)
	}
	return nil
}

// String returns the text form accepted by ParseRegion.
func (r Region) String() string {
	strand := "+"
	if r.Reverse {
		strand = "-"
	}
	end := "end"
	if r.End != EndOfRead {
		end = strconv.Itoa(r.End)
	}
	return fmt.Sprintf("read%d:%s:%d-%s", r.Mate, strand, r.Start, end)
}

// Width returns the number of bases in the region, or -1 if the region
// is open ended.
func (r Region) Width() int {
	if r.End == EndOfRead {
		return -1
	}
	return r.End - r.Start
}

// extract returns the region of seq and qual.  If clip is false and the
// mate is shorter than End, ok is false.  If clip is true the region is
// cut to the mate length instead, possibly to nothing.
func (r Region) extract(seq, qual string, clip bool) (s, q string, ok bool) {
	start, end := r.Start, r.End
	if end == EndOfRead || end > len(seq) {
		if end != EndOfRead && !clip {
			return "", "", false
		}
		end = len(seq)
	}
	if start > end {
		start = end
	}
	s, q = seq[start:end], qual[start:end]
	if r.Reverse {
		s, q = util.ReverseComplement(s), util.Reverse(q)
	}
	return s, q, true
}

// Extract returns the region of one mate's sequence and qualities.  It
// returns false if the mate is shorter than End.  Mate is not consulted.
func (r Region) Extract(seq, qual string) (s, q string, ok bool) {
	return r.extract(seq, qual, false)
}
