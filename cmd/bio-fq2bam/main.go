package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/spatial/barcode"
	"github.com/grailbio/spatial/fq2bam"
)

// version is set at link time.
var version = "dev"

var (
	r1               = flag.String("r1", "", "Comma-separated mate 1 FASTQ files")
	r2               = flag.String("r2", "", "Comma-separated mate 2 FASTQ files, in the order of --r1")
	output           = flag.String("output", "-", "Output path, - for stdout")
	format           = flag.String("format", fq2bam.DefaultOpts.Format, "Output format, bam or sam")
	sampleID         = flag.String("sample-id", barcode.DefaultSampleID, "Sample id, stored in the read group")
	mode             = flag.String("mode", "fixed", "Read structure: fixed, custom, or a preset ("+strings.Join(barcode.PresetNames(), ", ")+")")
	barcodeWidth     = flag.Int("barcode-width", barcode.DefaultBarcodeWidth, "Barcode width in fixed mode")
	umiWidth         = flag.Int("umi-width", barcode.DefaultUMIWidth, "UMI width in fixed mode")
	barcodePos       = flag.String("barcode-pos", "", "Barcode region in custom mode, e.g. read1:+:2-30")
	umiPos           = flag.String("umi-pos", "", "UMI region in custom mode, e.g. read2:+:0-9")
	readPos          = flag.String("read-pos", "", "Read region in custom mode, e.g. read2:+:9-end")
	checkIDs         = flag.Bool("check-ids", fq2bam.DefaultOpts.CheckIDs, "Fail if the mates of a pair have different names; --check-ids=false disables the check")
	parallelism      = flag.Int("parallelism", fq2bam.DefaultOpts.Parallelism, "Number of tagging and encoding workers")
	chunkSize        = flag.Int("chunk-size", fq2bam.DefaultOpts.ChunkSize, "Number of read pairs per output shard")
	queueLength      = flag.Int("queue-length", fq2bam.DefaultOpts.QueueLength, "Number of shards to queue while waiting for flush")
	compressionLevel = flag.Int("compression-level", fq2bam.DefaultOpts.CompressionLevel, "gzip level of the BAM output")
)

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func layout() (barcode.Layout, error) {
	switch *mode {
	case "fixed":
		return barcode.FixedLayout(*barcodeWidth, *umiWidth), nil
	case "custom":
		if *barcodePos == "" || *umiPos == "" || *readPos == "" {
			return barcode.Layout{}, fmt.Errorf("--mode custom needs --barcode-pos, --umi-pos and --read-pos")
		}
		return barcode.ParseLayout(*barcodePos, *umiPos, *readPos)
	default:
		return barcode.PresetLayout(*mode)
	}
}

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() > 0 {
		log.Fatalf("unparsed flags, please check flag syntax: '%s'", strings.Join(flag.Args(), " "))
	}
	l, err := layout()
	if err != nil {
		log.Fatalf("%v", err)
	}
	opts := fq2bam.DefaultOpts
	opts.R1 = splitList(*r1)
	opts.R2 = splitList(*r2)
	opts.Output = *output
	opts.Format = *format
	opts.SampleID = *sampleID
	opts.Layout = l
	opts.CheckIDs = *checkIDs
	opts.Parallelism = *parallelism
	opts.ChunkSize = *chunkSize
	opts.QueueLength = *queueLength
	opts.CompressionLevel = *compressionLevel
	opts.Version = version
	opts.CommandLine = strings.Join(os.Args, " ")

	log.Printf("fq2bam: layout %v", opts.Layout)
	ctx := vcontext.Background()
	stats, err := fq2bam.ConvertFiles(ctx, &opts)
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("fq2bam: wrote %d records in %d shards", stats.Pairs, stats.Chunks)
}
