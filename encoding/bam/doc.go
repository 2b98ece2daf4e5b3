// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package bam writes unmapped BAM and SAM files on top of the record
// types of github.com/grailbio/hts/sam.  Records are encoded in
// independent shards by concurrent workers and written in shard order.
package bam
