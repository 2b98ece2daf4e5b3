package fq2bam

import (
	"fmt"
	"runtime"

	"github.com/grailbio/spatial/barcode"
	gbam "github.com/grailbio/spatial/encoding/bam"
	"github.com/klauspost/compress/gzip"
)

// Opts configures a conversion.
type Opts struct {
	// R1 and R2 list the mate 1 and mate 2 FASTQ files.  The i'th files
	// of both lists form a pair; pairs are converted in list order into
	// one output.
	R1, R2 []string
	// Output is the output path.  "" or "-" means stdout.
	Output string
	// Format is "bam" (default) or "sam".
	Format string
	// SampleID names the read group of every record.
	SampleID string
	// Layout locates the barcode, UMI and read in each pair.
	Layout barcode.Layout
	// CheckIDs requires the mates of each pair to have the same name.
	// It is on in DefaultOpts.
	CheckIDs bool

	// Parallelism is the number of tagging and encoding workers.
	Parallelism int
	// ChunkSize is the number of read pairs per output shard.
	ChunkSize int
	// QueueLength is the number of finished shards buffered while
	// waiting for an earlier shard.
	QueueLength int
	// CompressionLevel is the gzip level of BAM output.
	CompressionLevel int

	// Program information for the @PG header line.
	ProgramName, Version, CommandLine string
}

// DefaultOpts holds the default values of Opts.
var DefaultOpts = Opts{
	Format:           "bam",
	SampleID:         barcode.DefaultSampleID,
	Layout:           barcode.FixedLayout(barcode.DefaultBarcodeWidth, barcode.DefaultUMIWidth),
	CheckIDs:         true,
	Parallelism:      runtime.NumCPU(),
	ChunkSize:        100000,
	QueueLength:      runtime.NumCPU() * 4,
	CompressionLevel: gzip.DefaultCompression,
	ProgramName:      "bio-fq2bam",
}

func validate(opts *Opts) error {
	if len(opts.R1) == 0 {
		return fmt.Errorf("you must specify at least one read 1 file with --r1")
	}
	if len(opts.R1) != len(opts.R2) {
		return fmt.Errorf("got %d read 1 files but %d read 2 files", len(opts.R1), len(opts.R2))
	}
	for i := range opts.R1 {
		if opts.R1[i] == "" || opts.R2[i] == "" {
			return fmt.Errorf("empty path in read file pair %d", i)
		}
	}
	if opts.Format == "" {
		opts.Format = "bam"
	}
	if _, err := gbam.ParseFormat(opts.Format); err != nil {
		return err
	}
	if opts.SampleID == "" {
		opts.SampleID = barcode.DefaultSampleID
	}
	if err := opts.Layout.Validate(); err != nil {
		return err
	}
	if opts.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if opts.ChunkSize <= 0 {
		return fmt.Errorf("chunk-size must be positive")
	}
	if opts.QueueLength <= 0 {
		return fmt.Errorf("queue-length must be positive")
	}
	if opts.CompressionLevel < gzip.HuffmanOnly || opts.CompressionLevel > gzip.BestCompression {
		return fmt.Errorf("compression-level must be between %d and %d", gzip.HuffmanOnly, gzip.BestCompression)
	}
	return nil
}
