package fastq

import (
	"io"
	"strings"
)

// Writer is a FASTQ file writer.
type Writer struct {
	w   io.Writer
	buf strings.Builder
	err error
}

// NewWriter constructs a new FASTQ writer
// that writes reads to the underlying writer w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write writes the read r in FASTQ format. An empty Unk is written as
// "+". An error is returned if the write failed; once a write fails,
// all further writes fail with the same error.
func (w *Writer) Write(r *Read) error {
	if w.err != nil {
		return w.err
	}
	unk := r.Unk
	if unk == "" {
		unk = "+"
	}
	w.buf.Reset()
	for _, line := range [...]string{r.ID, r.Seq, unk, r.Qual} {
		w.buf.WriteString(line)
		w.buf.WriteByte('\n')
	}
	_, w.err = io.WriteString(w.w, w.buf.String())
	return w.err
}
