package whitelist

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/spatial/catalog"
	"github.com/grailbio/spatial/util"
	"github.com/minio/highwayhash"
)

// digestKey is the highwayhash key of whitelist digests.  It is fixed so
// digests can be compared across runs.
var digestKey [highwayhash.Size]byte

// WriteWhitelist writes the canonical barcodes, one per line, in cluster
// order.
func (r *Result) WriteWhitelist(w io.Writer) error {
	tw := tsv.NewWriter(w)
	for _, c := range r.clusters {
		tw.WriteString(c.Canonical)
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// Digest returns a 64-bit highwayhash of the whitelist text.  Equal
// whitelists have equal digests.
func (r *Result) Digest() uint64 {
	h, err := highwayhash.New64(digestKey[:])
	if err != nil {
		panic(err)
	}
	if err := r.WriteWhitelist(h); err != nil {
		panic(err)
	}
	return h.Sum64()
}

const mappingHeader = "#tile_id\tx_pos\ty_pos\tbarcode\tcanonical"

// writeEntry writes one mapping line for e.
func (r *Result) writeEntry(tw *tsv.Writer, e catalog.Entry) error {
	canonical, ok := r.Canonical(e.Barcode)
	if !ok {
		return errors.E(errors.Invalid, fmt.Sprintf("barcode %s of tile %s was not seen when clustering", e.Barcode, e.TileID))
	}
	tw.WriteString(e.TileID)
	tw.WriteUint32(e.X)
	tw.WriteUint32(e.Y)
	tw.WriteString(e.Barcode)
	tw.WriteString(canonical)
	return tw.EndLine()
}

// WriteMapping writes one line per selected entry of s: the entry's
// columns followed by the canonical barcode of its cluster.  s must
// yield the same entries Build saw.
func (r *Result) WriteMapping(s EntryScanner, tiles *catalog.TileSet, w io.Writer) error {
	tw := tsv.NewWriter(w)
	tw.WriteString(mappingHeader)
	if err := tw.EndLine(); err != nil {
		return err
	}
	for s.Scan() {
		e := s.Entry()
		if !tiles.Contains(e.TileID) {
			continue
		}
		if err := r.writeEntry(tw, e); err != nil {
			return err
		}
	}
	if err := s.Err(); err != nil {
		return err
	}
	return tw.Flush()
}

type tileFile struct {
	path string
	f    file.File
	tw   *tsv.Writer
}

// WriteTiles writes the mapping lines of each selected tile to
// <dir>/<tile id>.txt.  A file is created for each selected tile that
// has entries; one file per such tile stays open until s is exhausted.
func (r *Result) WriteTiles(ctx context.Context, s EntryScanner, tiles *catalog.TileSet, dir string) error {
	files := make(map[string]*tileFile)
	e := errors.Once{}
	for s.Scan() {
		entry := s.Entry()
		if !tiles.Contains(entry.TileID) {
			continue
		}
		tf, ok := files[entry.TileID]
		if !ok {
			path := file.Join(dir, entry.TileID+".txt")
			f, err := file.Create(ctx, path)
			if err != nil {
				e.Set(&util.IOError{Path: path, Op: "create", Err: err})
				break
			}
			tf = &tileFile{path: path, f: f, tw: tsv.NewWriter(&ioErrWriter{w: f.Writer(ctx), path: path})}
			files[entry.TileID] = tf
			tf.tw.WriteString(mappingHeader)
			if err := tf.tw.EndLine(); err != nil {
				e.Set(err)
				break
			}
		}
		if err := r.writeEntry(tf.tw, entry); err != nil {
			e.Set(err)
			break
		}
	}
	e.Set(s.Err())
	for _, tf := range files {
		e.Set(tf.tw.Flush())
		if err := tf.f.Close(ctx); err != nil {
			e.Set(&util.IOError{Path: tf.path, Op: "close", Err: err})
		}
	}
	if err := e.Err(); err != nil {
		return err
	}
	log.Printf("whitelist: wrote %d tile files to %s", len(files), dir)
	return nil
}

// FileOpts names the files of BuildFiles.
type FileOpts struct {
	Opts
	// CatalogPath is the barcode catalog.
	CatalogPath string
	// Delimiter separates the catalog columns.  Zero means tab.
	Delimiter byte
	// WhitelistPath receives the whitelist.
	WhitelistPath string
	// MappingPath, if set, receives the entry to canonical barcode
	// mapping.  It needs a second pass over the catalog.
	MappingPath string
	// TileDir, if set, receives one mapping file per selected tile,
	// named <tile id>.txt.  It needs another pass over the catalog.
	TileDir string
}

func (o *FileOpts) catalogOpts() catalog.Opts {
	return catalog.Opts{Delimiter: o.Delimiter, Parallelism: o.Parallelism}
}

// BuildFiles builds the whitelist of the catalog at opts.CatalogPath and
// writes it, and optionally the mapping and the per-tile files.
func BuildFiles(ctx context.Context, opts FileOpts) (*Result, error) {
	if opts.CatalogPath == "" {
		return nil, errors.E(errors.Invalid, "no catalog path")
	}
	if opts.WhitelistPath == "" {
		return nil, errors.E(errors.Invalid, "no whitelist path")
	}
	s, err := catalog.Open(ctx, opts.CatalogPath, opts.catalogOpts())
	if err != nil {
		return nil, err
	}
	r, err := Build(ctx, s, opts.Opts)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	if err := writeFile(ctx, opts.WhitelistPath, r.WriteWhitelist); err != nil {
		return nil, err
	}
	log.Printf("whitelist: wrote %d barcodes to %s, digest %016x", len(r.clusters), opts.WhitelistPath, r.Digest())
	if opts.MappingPath != "" {
		err := rescan(ctx, opts, func(s *catalog.Scanner) error {
			return writeFile(ctx, opts.MappingPath, func(w io.Writer) error {
				return r.WriteMapping(s, opts.Tiles, w)
			})
		})
		if err != nil {
			return nil, err
		}
		log.Printf("whitelist: wrote mapping to %s", opts.MappingPath)
	}
	if opts.TileDir != "" {
		err := rescan(ctx, opts, func(s *catalog.Scanner) error {
			return r.WriteTiles(ctx, s, opts.Tiles, opts.TileDir)
		})
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

// rescan opens the catalog again and passes it to fn.
func rescan(ctx context.Context, opts FileOpts, fn func(*catalog.Scanner) error) error {
	s, err := catalog.Open(ctx, opts.CatalogPath, opts.catalogOpts())
	if err != nil {
		return err
	}
	err = fn(s)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

// writeFile creates path and fills it with fn.  Failures of the file
// itself are reported as *util.IOError.
func writeFile(ctx context.Context, path string, fn func(io.Writer) error) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return &util.IOError{Path: path, Op: "create", Err: err}
	}
	w := &ioErrWriter{w: out.Writer(ctx), path: path}
	e := errors.Once{}
	e.Set(fn(w))
	if err := out.Close(ctx); err != nil {
		e.Set(&util.IOError{Path: path, Op: "close", Err: err})
	}
	return e.Err()
}

type ioErrWriter struct {
	w    io.Writer
	path string
}

func (o *ioErrWriter) Write(p []byte) (int, error) {
	n, err := o.w.Write(p)
	if err != nil {
		err = &util.IOError{Path: o.path, Op: "write", Err: err}
	}
	return n, err
}
