package main

/*
  bio-tilesmatch reports which tiles of a spatial chip a sequencing run
  covers. Barcodes sampled from the reads are looked up in the barcode
  catalog; a tile passes when the sampled fraction of its barcodes
  reaches --threshold. With --quiet only the passing tile ids are
  printed, in the form bio-dedupbarcode --tiles accepts.

  Sample usage:

    bio-tilesmatch --read run_R1.fastq.gz --catalog chip.barcodes.txt.gz
*/

import (
	"flag"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/spatial/barcode"
	"github.com/grailbio/spatial/catalog"
	"github.com/grailbio/spatial/tilematch"
)

var (
	readPath       = flag.String("read", "", "FASTQ file holding the barcode, usually mate 1")
	catalogPath    = flag.String("catalog", "", "Barcode catalog: tile id, x, y and barcode per line, optionally compressed")
	tiles          = flag.String("tiles", "", "Space or comma separated tile ids to report; all tiles by default")
	numBarcodes    = flag.Int("num-barcodes", tilematch.DefaultOpts.NumBarcodes, "Number of distinct barcodes to sample")
	threshold      = flag.Float64("threshold", tilematch.DefaultOpts.Threshold, "Smallest matched fraction of a passing tile")
	quiet          = flag.Bool("quiet", false, "Print only the ids of passing tiles")
	barcodePos     = flag.String("barcode-pos", tilematch.DefaultRegion.String(), "Barcode region of the reads")
	barcodePattern = flag.String("barcode-pattern", tilematch.DefaultPattern, "IUPAC pattern of the barcode before reverse complement; empty to disable")
	parallelism    = flag.Int("parallelism", tilematch.DefaultOpts.Parallelism, "Decompression parallelism")
)

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() > 0 {
		log.Fatalf("unparsed flags, please check flag syntax: '%s'", strings.Join(flag.Args(), " "))
	}
	if *readPath == "" || *catalogPath == "" {
		log.Fatalf("--read and --catalog are required")
	}
	region, err := barcode.ParseRegion(*barcodePos)
	if err != nil {
		log.Fatalf("%v", err)
	}
	opts := tilematch.DefaultOpts
	opts.Region = region
	opts.Pattern = *barcodePattern
	opts.NumBarcodes = *numBarcodes
	opts.Threshold = *threshold
	opts.Tiles = catalog.ParseTileList(*tiles)
	opts.Parallelism = *parallelism

	ctx := vcontext.Background()
	reports, err := tilematch.Match(ctx, *readPath, *catalogPath, opts)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if *quiet {
		err = tilematch.WritePassing(os.Stdout, reports)
	} else {
		err = tilematch.WriteReports(os.Stdout, reports)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}
