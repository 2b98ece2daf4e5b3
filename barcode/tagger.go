// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package barcode

import (
	"fmt"

	"github.com/grailbio/spatial/encoding/fastq"
	"github.com/grailbio/spatial/util"
)

// DefaultSampleID names the read group when no sample is given.
const DefaultSampleID = "Unknown"

// TaggedRecord is a read pair reduced to what the aligner consumes: the
// biological read plus the raw cell barcode and UMI with their quality
// strings.  Qualities are the FASTQ characters, unmodified.
type TaggedRecord struct {
	Name     string
	SampleID string

	Seq, Qual string

	CellBarcode, CellBarcodeQual string
	UMI, UMIQual                 string
}

// Tagger slices read pairs according to a Layout.  It holds no mutable
// state and may be shared by goroutines.
type Tagger struct {
	layout   Layout
	sampleID string
	// need is the minimum length of each mate, indexed by mate number.
	need [3]int
}

// NewTagger returns a Tagger for the given layout and sample.
func NewTagger(layout Layout, sampleID string) (*Tagger, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if sampleID == "" {
		sampleID = DefaultSampleID
	}
	t := &Tagger{layout: layout, sampleID: sampleID}
	for _, r := range []Region{layout.Barcode, layout.UMI} {
		if r.End > t.need[r.Mate] {
			t.need[r.Mate] = r.End
		}
	}
	return t, nil
}

// Layout returns the tagger's layout.
func (t *Tagger) Layout() Layout { return t.layout }

func mate(p *fastq.ReadPair, n int) *fastq.Read {
	if n == 2 {
		return &p.R2
	}
	return &p.R1
}

func (t *Tagger) tag(p *fastq.ReadPair, r Region) (seq, qual string, err error) {
	m := mate(p, r.Mate)
	seq, qual, ok := r.extract(m.Seq, m.Qual, false)
	if !ok {
		return "", "", &util.LayoutError{Name: p.Name, Mate: r.Mate, Length: len(m.Seq), Need: t.need[r.Mate]}
	}
	return seq, qual, nil
}

// Tag fills rec from p.  It returns a *util.LayoutError if the mate
// holding the barcode or the UMI is too short for its region; rec is
// then left partially filled and must not be used.  The biological read
// is clipped to the length of its mate.
func (t *Tagger) Tag(p *fastq.ReadPair, rec *TaggedRecord) error {
	var err error
	if rec.CellBarcode, rec.CellBarcodeQual, err = t.tag(p, t.layout.Barcode); err != nil {
		return err
	}
	if rec.UMI, rec.UMIQual, err = t.tag(p, t.layout.UMI); err != nil {
		return err
	}
	m := mate(p, t.layout.Read.Mate)
	rec.Seq, rec.Qual, _ = t.layout.Read.extract(m.Seq, m.Qual, true)
	rec.Name = p.Name
	rec.SampleID = t.sampleID
	if len(rec.CellBarcode) != t.layout.Barcode.Width() || len(rec.UMI) != t.layout.UMI.Width() {
		// extract either returns the full region or fails.
		panic(fmt.Sprintf("tag %s: barcode %q umi %q do not match layout %v", p.Name, rec.CellBarcode, rec.UMI, t.layout))
	}
	return nil
}
