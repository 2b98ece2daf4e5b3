// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bam

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/grailbio/hts/sam"
)

// bamFixedBytes is the size of the fixed-length part of a BAM record,
// excluding the leading block_size field.
const bamFixedBytes = 32

var (
	errNameAbsentOrTooLong           = errors.New("bam: name absent or too long")
	errSequenceQualityLengthMismatch = errors.New("bam: sequence/quality length mismatch")
)

// auxLen returns the encoded size of aa.
func auxLen(aa []sam.Aux) int {
	n := 0
	for _, a := range aa {
		n += len(a)
		switch a.Type() {
		case 'Z', 'H':
			n++
		}
	}
	return n
}

type binaryWriter struct {
	w   *bytes.Buffer
	buf [4]byte
}

func (w *binaryWriter) writeUint8(v uint8) {
	w.w.WriteByte(v)
}

func (w *binaryWriter) writeUint16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[:2], v)
	w.w.Write(w.buf[:2])
}

func (w *binaryWriter) writeInt32(v int32) {
	binary.LittleEndian.PutUint32(w.buf[:4], uint32(v))
	w.w.Write(w.buf[:4])
}

func (w *binaryWriter) writeUint32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	w.w.Write(w.buf[:4])
}

// Marshal appends the BAM encoding of r to buf.
func Marshal(r *sam.Record, buf *bytes.Buffer) error {
	if len(r.Name) == 0 || len(r.Name) > 254 {
		return errNameAbsentOrTooLong
	}
	if r.Qual != nil && len(r.Qual) != r.Seq.Length {
		return errSequenceQualityLengthMismatch
	}
	bin := binaryWriter{w: buf}
	recLen := bamFixedBytes +
		len(r.Name) + 1 + // Null terminated.
		len(r.Cigar)<<2 + // CigarOps are 4 bytes.
		len(r.Seq.Seq) +
		r.Seq.Length +
		auxLen(r.AuxFields)

	// Write record header data.
	bin.writeInt32(int32(recLen))
	bin.writeInt32(int32(r.Ref.ID()))
	bin.writeInt32(int32(r.Pos))
	bin.writeUint8(byte(len(r.Name) + 1))
	bin.writeUint8(r.MapQ)
	bin.writeUint16(uint16(r.Bin()))
	bin.writeUint16(uint16(len(r.Cigar)))
	bin.writeUint16(uint16(r.Flags))
	bin.writeInt32(int32(r.Seq.Length))
	bin.writeInt32(int32(r.MateRef.ID()))
	bin.writeInt32(int32(r.MatePos))
	bin.writeInt32(int32(r.TempLen))

	// Write variable length data.
	buf.WriteString(r.Name)
	buf.WriteByte(0)
	for _, o := range r.Cigar {
		bin.writeUint32(uint32(o))
	}
	for _, d := range r.Seq.Seq {
		buf.WriteByte(byte(d))
	}
	if r.Qual != nil {
		buf.Write(r.Qual)
	} else {
		for i := 0; i < r.Seq.Length; i++ {
			buf.WriteByte(0xff)
		}
	}
	for _, a := range r.AuxFields {
		buf.Write(a)
		switch a.Type() {
		case 'Z', 'H':
			buf.WriteByte(0)
		}
	}
	return nil
}
