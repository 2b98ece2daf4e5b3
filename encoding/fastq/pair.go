package fastq

import (
	"context"
	goerrors "errors"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/spatial/encoding/compressio"
	"github.com/grailbio/spatial/util"
	pkgerrors "github.com/pkg/errors"
)

// ReadPair holds the two mates of one sequenced fragment. Name is the
// shared read name.
type ReadPair struct {
	Name   string
	R1, R2 Read
}

// PairOpts configures a PairReader.
type PairOpts struct {
	// CheckIDs requires that the mates of each pair have the same name.
	CheckIDs bool
	// Parallelism is the number of decompression threads per file.
	Parallelism int
}

// PairReader reads ReadPairs from a pair of (possibly compressed)
// FASTQ files. Errors are reported as *util.FormatError for malformed
// or discordant records, or *util.IOError for failures of the
// underlying files. A PairReader is not threadsafe.
type PairReader struct {
	path1, path2 string
	f1, f2       *compressio.Reader
	scanner      *PairScanner
	err          error
}

// OpenPair opens the R1 and R2 files at the given paths.
func OpenPair(ctx context.Context, path1, path2 string, opts PairOpts) (*PairReader, error) {
	f1, err := compressio.Open(ctx, path1, opts.Parallelism)
	if err != nil {
		return nil, err
	}
	f2, err := compressio.Open(ctx, path2, opts.Parallelism)
	if err != nil {
		f1.Close() // nolint: errcheck
		return nil, err
	}
	return &PairReader{
		path1:   path1,
		path2:   path2,
		f1:      f1,
		f2:      f2,
		scanner: NewPairScanner(f1, f2, ID|Seq|Qual, opts.CheckIDs),
	}, nil
}

// Scan reads the next pair into p. It returns false at the end of the
// input or on error; check Err afterwards.
func (r *PairReader) Scan(p *ReadPair) bool {
	if r.err != nil || !r.scanner.Scan(&p.R1, &p.R2) {
		return false
	}
	p.Name = p.R1.Name()
	if len(p.Name) == 0 || len(p.Name) > MaxNameLength {
		r.err = &util.FormatError{Path: r.path1, Record: r.scanner.N(), Err: ErrName}
		return false
	}
	return true
}

// N returns the ordinal of the last pair read.
func (r *PairReader) N() int64 { return r.scanner.N() }

// Err returns the error that stopped Scan, if any.
func (r *PairReader) Err() error {
	if r.err != nil {
		return r.err
	}
	mate, err := r.scanner.ErrMate()
	if err == nil {
		return nil
	}
	var ioErr *util.IOError
	if goerrors.As(err, &ioErr) {
		return ioErr
	}
	path := r.path1
	if mate == 2 {
		path = r.path2
	}
	if err == ErrDiscordant {
		err = pkgerrors.Wrapf(err, "%s and %s have different record counts", r.path1, r.path2)
	}
	return &util.FormatError{Path: path, Record: r.scanner.N(), Err: err}
}

// Close closes both files.
func (r *PairReader) Close() error {
	e := errors.Once{}
	e.Set(r.f1.Close())
	e.Set(r.f2.Close())
	return e.Err()
}
