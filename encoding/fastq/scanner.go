package fastq

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when an invalid FASTQ file is encountered.
	ErrInvalid = errors.New("invalid FASTQ file")
	// ErrLength is returned when a read's sequence and quality lengths differ.
	ErrLength = errors.New("FASTQ sequence and quality lengths differ")
	// ErrDiscordant is returned when two underlying FASTQ files are discordant.
	ErrDiscordant = errors.New("discordant FASTQ pairs")
	// ErrNameMismatch is returned when the mates of a pair have different names.
	ErrNameMismatch = errors.New("FASTQ mate names differ")
	// ErrName is returned when a read name is empty or too long for BAM.
	ErrName = errors.New("FASTQ read name is empty or longer than 254 bytes")
)

// MaxNameLength is the longest read name a BAM record holds.
const MaxNameLength = 254

// maxLineLength bounds a single FASTQ line. Long-read platforms aside,
// lines are a few hundred bytes.
const maxLineLength = 1 << 20

// A Read is a FASTQ read, comprising an ID, sequence, line 3
// ("unknown"), and a quality string.
type Read struct {
	ID, Seq, Unk, Qual string
}

// Name returns the read name: the ID without the leading '@', cut at
// the first whitespace, with any "/1" or "/2" mate suffix removed.
func (r *Read) Name() string {
	id := strings.TrimPrefix(r.ID, "@")
	if i := strings.IndexAny(id, " \t"); i >= 0 {
		id = id[:i]
	}
	if n := len(id); n >= 2 && id[n-2] == '/' && (id[n-1] == '1' || id[n-1] == '2') {
		id = id[:n-2]
	}
	return id
}

var errEOF = errors.New("eof")

// Scanner provides a convenient interface for reading FASTQ read
// data. The Scan method returns the next read, returning a boolean
// indicating whether the read succeeded. Scanners are not
// threadsafe.
//
// Scanner validates framing: ID lines must begin with "@", line 3
// must begin with "+", and the sequence and quality lines must have
// the same length. Bases and quality values are not checked. One blank
// line is tolerated at the end of the input, but not elsewhere.
type Scanner struct {
	b      *bufio.Scanner
	err    error
	fields Field
	n      int64
}

// Field enumerates FASTQ fields. It is used to specify fields to read in
// NewScanner.
type Field uint

const (
	// ID causes the Read.ID field to be filled
	ID Field = 1 << iota
	// Seq causes the Read.Seq field to be filled
	Seq
	// Unk causes the Read.Unk field to be filled
	Unk
	// Qual causes the Read.Qual field to be filled
	Qual
	// All equals ID|Seq|Unk|Qual.
	All = ID | Seq | Unk | Qual
)

// NewScanner constructs a new Scanner that reads raw FASTQ data from the
// provided reader. Fields is a bitset of the fields to read. A typical value
// would be All or ID|Seq|Qual.
func NewScanner(r io.Reader, fields Field) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(make([]byte, 0, 64<<10), maxLineLength)
	return &Scanner{b: b, fields: fields}
}

// Scan the next read into the provided read. Scan returns a boolean
// indicating whether the scan succeeded. Once Scan returns false, it
// never returns true again. Upon completion, the user should check
// the Err method to determine whether scanning stopped because of an
// error or because the end of the stream was reached.
func (f *Scanner) Scan(read *Read) bool {
	if f.err != nil {
		return false
	}
	if !f.b.Scan() {
		if f.err = f.b.Err(); f.err == nil {
			f.err = errEOF
		}
		return false
	}
	id := f.b.Bytes()
	if len(id) == 0 {
		// A single blank line may end the file.
		if !f.b.Scan() {
			if f.err = f.b.Err(); f.err == nil {
				f.err = errEOF
			}
			return false
		}
		f.n++
		f.err = ErrInvalid
		return false
	}
	f.n++
	if id[0] != '@' {
		f.err = ErrInvalid
		return false
	}
	if f.fields&ID != 0 {
		read.ID = string(id)
	}
	if !f.scan() {
		return false
	}
	seqLen := len(f.b.Bytes())
	if f.fields&Seq != 0 {
		read.Seq = f.b.Text()
	}
	if !f.scan() {
		return false
	}
	unk := f.b.Bytes()
	if len(unk) == 0 || unk[0] != '+' {
		f.err = ErrInvalid
		return false
	}
	if f.fields&Unk != 0 {
		read.Unk = string(unk)
	}
	if !f.scan() {
		return false
	}
	if len(f.b.Bytes()) != seqLen {
		f.err = ErrLength
		return false
	}
	if f.fields&Qual != 0 {
		read.Qual = f.b.Text()
	}
	return true
}

func (f *Scanner) scan() bool {
	ok := f.b.Scan()
	if !ok {
		if f.err = f.b.Err(); f.err == nil {
			f.err = ErrShort
		}
	}
	return ok
}

// Err returns the scanning error, if any.
func (f *Scanner) Err() error {
	if f.err == errEOF {
		return nil
	}
	return f.err
}

// N returns the ordinal of the last record Scan started, counting from 1.
// After an error it identifies the offending record.
func (f *Scanner) N() int64 { return f.n }

// PairScanner composes a pair of scanners to scan a pair of FASTQ
// streams.
type PairScanner struct {
	r1, r2   *Scanner
	checkIDs bool
	err      error
	// errMate is the mate (1 or 2) whose stream caused err.
	errMate int
}

// NewPairScanner creates a new FASTQ pair scanner from the provided
// R1 and R2 readers. When checkIDs is set, the mates of each pair must
// have the same Name; this requires ID in fields.
func NewPairScanner(r1, r2 io.Reader, fields Field, checkIDs bool) *PairScanner {
	if checkIDs {
		fields |= ID
	}
	return &PairScanner{
		r1:       NewScanner(r1, fields),
		r2:       NewScanner(r2, fields),
		checkIDs: checkIDs,
	}
}

// Scan scans the next read pair into r1, r2. Scan returns a boolean
// indicating whether the scan succeeded. Once Scan returns false, it
// never returns true again. Upon completion, the user should check
// the Err method to determine whether scanning stopped because of an
// error or because the end of the stream was reached.
func (p *PairScanner) Scan(r1, r2 *Read) bool {
	if p.err != nil {
		return false
	}
	ok1 := p.r1.Scan(r1)
	ok2 := p.r2.Scan(r2)
	if ok1 != ok2 {
		p.err = ErrDiscordant
		// The mate that stopped is the one with fewer records, unless it
		// stopped because of its own error.
		if ok1 {
			p.errMate = 2
		} else {
			p.errMate = 1
		}
	}
	if ok1 && ok2 && p.checkIDs && r1.Name() != r2.Name() {
		p.err = ErrNameMismatch
		p.errMate = 2
		return false
	}
	return ok1 && ok2
}

// Err returns the scanning error, if any. It should be checked
// after Scan returns false.
func (p *PairScanner) Err() error {
	_, err := p.ErrMate()
	return err
}

// ErrMate returns the scanning error along with the mate (1 or 2)
// whose stream caused it.
func (p *PairScanner) ErrMate() (int, error) {
	if err := p.r1.Err(); err != nil {
		return 1, err
	}
	if err := p.r2.Err(); err != nil {
		return 2, err
	}
	return p.errMate, p.err
}

// N returns the ordinal of the last pair scanned, counting from 1.
func (p *PairScanner) N() int64 {
	if n := p.r2.N(); n > p.r1.N() {
		return n
	}
	return p.r1.N()
}
