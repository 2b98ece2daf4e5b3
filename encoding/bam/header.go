// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bam

import (
	"fmt"
	"strings"

	"github.com/grailbio/hts/sam"
)

// HeaderOpts describes the provenance lines of an unmapped BAM header.
type HeaderOpts struct {
	// SampleID becomes both the ID and SM of the single read group.
	SampleID string
	// ProgramID, ProgramName, Version and CommandLine fill the @PG line.
	// Empty values are omitted, except ProgramID which defaults to
	// ProgramName.
	ProgramID   string
	ProgramName string
	Version     string
	CommandLine string
}

// tabless replaces characters that would break a header line.
func tabless(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ").Replace(s)
}

// NewUnmappedHeader returns a header for a stream of unaligned records:
// no references, unsorted, one read group named after the sample, and
// one program line.
func NewUnmappedHeader(opts HeaderOpts) (*sam.Header, error) {
	if opts.SampleID == "" {
		return nil, fmt.Errorf("bam: header needs a sample id")
	}
	var b strings.Builder
	b.WriteString("@HD\tVN:1.6\tSO:unsorted\n")
	fmt.Fprintf(&b, "@RG\tID:%s\tSM:%s\n", tabless(opts.SampleID), tabless(opts.SampleID))
	if id := opts.ProgramID; id != "" || opts.ProgramName != "" {
		if id == "" {
			id = opts.ProgramName
		}
		fmt.Fprintf(&b, "@PG\tID:%s", tabless(id))
		for _, f := range []struct{ tag, val string }{
			{"PN", opts.ProgramName},
			{"VN", opts.Version},
			{"CL", opts.CommandLine},
		} {
			if f.val != "" {
				fmt.Fprintf(&b, "\t%s:%s", f.tag, tabless(f.val))
			}
		}
		b.WriteByte('\n')
	}
	return sam.NewHeader([]byte(b.String()), nil)
}
