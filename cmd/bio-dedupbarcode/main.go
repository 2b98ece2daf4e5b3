package main

/*
  bio-dedupbarcode builds the barcode whitelist of a spatial chip. The
  barcodes of the selected tiles of the catalog are clustered by single
  substitutions and each cluster contributes its most frequent barcode.
  For more information, see github.com/grailbio/spatial/whitelist.

  Sample usage:

    bio-dedupbarcode --catalog chip.barcodes.txt.gz --tiles "11101 11102" \
        --output whitelist.txt --mapping mapping.txt --tile-dir tiles
*/

import (
	"flag"
	"fmt"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/spatial/catalog"
	"github.com/grailbio/spatial/whitelist"
)

var (
	catalogPath = flag.String("catalog", "", "Barcode catalog: tile id, x, y and barcode per line, optionally compressed")
	tiles       = flag.String("tiles", "", "Space or comma separated tile ids to use")
	tileFile    = flag.String("tile-file", "", "File listing the tile ids to use, instead of --tiles")
	outputPath  = flag.String("output", "", "Output whitelist path")
	mappingPath = flag.String("mapping", "", "Optional output path for the per-entry canonical barcode")
	tileDir     = flag.String("tile-dir", "", "Optional output directory for one mapping file per tile, <tile id>.txt")
	delimiter   = flag.String("delimiter", "\t", "Catalog column delimiter, a single byte")
	parallelism = flag.Int("parallelism", whitelist.DefaultOpts.Parallelism, "Number of counting and probing goroutines")
	batchSize   = flag.Int("batch-size", whitelist.DefaultOpts.BatchSize, "Number of barcodes counted per batch")
)

func parseDelimiter(s string) (byte, error) {
	switch s {
	case `\t`:
		return '\t', nil
	case "":
		return 0, nil
	}
	if len(s) != 1 {
		return 0, fmt.Errorf("delimiter %q must be a single byte", s)
	}
	return s[0], nil
}

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() > 0 {
		log.Fatalf("unparsed flags, please check flag syntax: '%s'", strings.Join(flag.Args(), " "))
	}
	if *catalogPath == "" || *outputPath == "" {
		log.Fatalf("--catalog and --output are required")
	}
	if (*tiles == "") == (*tileFile == "") {
		log.Fatalf("exactly one of --tiles and --tile-file is required")
	}
	delim, err := parseDelimiter(*delimiter)
	if err != nil {
		log.Fatalf("%v", err)
	}
	ctx := vcontext.Background()
	tileSet := catalog.ParseTileList(*tiles)
	if *tileFile != "" {
		if tileSet, err = catalog.ReadTileFile(ctx, *tileFile); err != nil {
			log.Fatalf("%v", err)
		}
	}
	opts := whitelist.FileOpts{
		Opts: whitelist.Opts{
			Tiles:       tileSet,
			Parallelism: *parallelism,
			BatchSize:   *batchSize,
		},
		CatalogPath:   *catalogPath,
		Delimiter:     delim,
		WhitelistPath: *outputPath,
		MappingPath:   *mappingPath,
		TileDir:       *tileDir,
	}
	r, err := whitelist.BuildFiles(ctx, opts)
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("dedupbarcode: %d of %d catalog entries selected, %d distinct barcodes, %d in whitelist",
		r.Stats.Selected, r.Stats.Entries, r.Stats.Distinct, r.Stats.Clusters)
}
