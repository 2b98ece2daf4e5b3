package whitelist

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/antzucaro/matchr"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/spatial/catalog"
	"github.com/grailbio/spatial/encoding/bgzf"
	"github.com/grailbio/spatial/util"
	"github.com/grailbio/testutil"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceScanner serves entries from memory.
type sliceScanner struct {
	entries []catalog.Entry
	i       int
	err     error
}

func (s *sliceScanner) Scan() bool {
	if s.i >= len(s.entries) {
		return false
	}
	s.i++
	return true
}

func (s *sliceScanner) Entry() catalog.Entry { return s.entries[s.i-1] }
func (s *sliceScanner) Err() error           { return s.err }

func entries(tile string, barcodes ...string) []catalog.Entry {
	var es []catalog.Entry
	for i, b := range barcodes {
		es = append(es, catalog.Entry{TileID: tile, X: uint32(i), Y: uint32(i), Barcode: b})
	}
	return es
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func build(t *testing.T, es []catalog.Entry, tiles *catalog.TileSet, parallelism, batch int) *Result {
	r, err := Build(vcontext.Background(), &sliceScanner{entries: es},
		Opts{Tiles: tiles, Parallelism: parallelism, BatchSize: batch})
	require.NoError(t, err)
	return r
}

func whitelist(t *testing.T, r *Result) string {
	var buf bytes.Buffer
	require.NoError(t, r.WriteWhitelist(&buf))
	return buf.String()
}

func TestCollapse(t *testing.T) {
	var es []catalog.Entry
	es = append(es, entries("1", repeat("AAAA", 5)...)...)
	es = append(es, entries("1", "AAAT", "TTTT")...)
	r := build(t, es, catalog.NewTileSet("1"), 2, 2)
	assert.Equal(t, "AAAA\nTTTT\n", whitelist(t, r))
	assert.Equal(t, []Cluster{
		{Canonical: "AAAA", Count: 5, Multiplicity: 6, Size: 2},
		{Canonical: "TTTT", Count: 1, Multiplicity: 1, Size: 1},
	}, r.Clusters())
	assert.Equal(t, Stats{Entries: 7, Selected: 7, Distinct: 3, Edges: 1, Clusters: 2}, r.Stats)

	c, ok := r.Canonical("AAAT")
	assert.True(t, ok)
	assert.Equal(t, "AAAA", c)
	_, ok = r.Canonical("GGGG")
	assert.False(t, ok)
}

func TestTransitive(t *testing.T) {
	// AAAA and AACC are two substitutions apart but share the neighbor
	// AAAC, so they form one cluster.
	es := entries("1", "AAAA", "AAAC", "AAAC", "AACC", "GGGG")
	r := build(t, es, catalog.NewTileSet("1"), 3, 1)
	assert.Equal(t, "AAAC\nGGGG\n", whitelist(t, r))
	assert.Equal(t, 3, r.Clusters()[0].Size)
	for _, b := range []string{"AAAA", "AACC"} {
		c, _ := r.Canonical(b)
		assert.Equal(t, "AAAC", c)
	}
}

func TestTieBreak(t *testing.T) {
	es := entries("1", "CAAA", "AAAA", "CAAA", "AAAA", "TTTT", "GGGG")
	r := build(t, es, catalog.NewTileSet("1"), 1, 10)
	// Equal counts go to the smaller sequence, both within a cluster and
	// in whitelist order.
	assert.Equal(t, "AAAA\nGGGG\nTTTT\n", whitelist(t, r))
}

func TestTileFilterBeforeCount(t *testing.T) {
	var es []catalog.Entry
	es = append(es, entries("11101", "AAAA", "AAAT", "AAAT")...)
	es = append(es, entries("11102", repeat("AAAA", 5)...)...)
	es = append(es, entries("11103", "CCCC")...)
	r := build(t, es, catalog.ParseTileList("11101"), 2, 1)
	assert.Equal(t, "AAAT\n", whitelist(t, r))
	assert.Equal(t, int64(3), r.Stats.Selected)
	assert.Equal(t, int64(9), r.Stats.Entries)
	_, ok := r.Canonical("CCCC")
	assert.False(t, ok)
}

func TestEmptySelection(t *testing.T) {
	es := entries("11101", "AAAA", "CCCC")
	r := build(t, es, catalog.NewTileSet("99999"), 4, 1)
	assert.Equal(t, "", whitelist(t, r))
	assert.Len(t, r.Clusters(), 0)

	r = build(t, nil, nil, 4, 1)
	assert.Equal(t, "", whitelist(t, r))
}

func randomBarcodes(rng *rand.Rand, n, length int) []string {
	out := make([]string, n)
	b := make([]byte, length)
	for i := range out {
		for j := range b {
			b[j] = "ACGT"[rng.Intn(4)]
		}
		out[i] = string(b)
	}
	return out
}

func TestOrderInvariance(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	es := entries("1", randomBarcodes(rng, 3000, 6)...)
	es = append(es, entries("2", randomBarcodes(rng, 500, 6)...)...)
	tiles := catalog.NewTileSet("1", "2")
	want := whitelist(t, build(t, es, tiles, 1, 1000))
	wantDigest := build(t, es, tiles, 1, 1000).Digest()
	for i := 0; i < 5; i++ {
		shuffled := append([]catalog.Entry(nil), es...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		r := build(t, shuffled, tiles, 1+i*3, 1+i*97)
		assert.Equal(t, want, whitelist(t, r), "shuffle %d", i)
		assert.Equal(t, wantDigest, r.Digest())
	}
}

// bruteForce clusters barcodes by comparing all pairs.
func bruteForce(t *testing.T, barcodes []string) []string {
	counts := map[string]int{}
	for _, b := range barcodes {
		counts[b]++
	}
	var seqs []string
	for s := range counts {
		seqs = append(seqs, s)
	}
	sort.Strings(seqs)
	sets := newDisjointSets(len(seqs))
	for i := range seqs {
		for j := i + 1; j < len(seqs); j++ {
			d, err := matchr.Hamming(seqs[i], seqs[j])
			require.NoError(t, err)
			if d == 1 {
				sets.union(int32(i), int32(j))
			}
		}
	}
	best := map[int32]int{}
	for i := range seqs {
		root := sets.find(int32(i))
		b, ok := best[root]
		if !ok || counts[seqs[i]] > counts[seqs[b]] {
			best[root] = i
		}
	}
	var canon []string
	for _, i := range best {
		canon = append(canon, seqs[i])
	}
	sort.Slice(canon, func(i, j int) bool {
		if counts[canon[i]] != counts[canon[j]] {
			return counts[canon[i]] > counts[canon[j]]
		}
		return canon[i] < canon[j]
	})
	return canon
}

func TestMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	barcodes := randomBarcodes(rng, 800, 5)
	// Add duplicates so that counts differ.
	barcodes = append(barcodes, barcodes[:200]...)
	r := build(t, entries("1", barcodes...), catalog.NewTileSet("1"), 4, 64)
	var got []string
	for _, c := range r.Clusters() {
		got = append(got, c.Canonical)
	}
	assert.Equal(t, bruteForce(t, barcodes), got)

	var total uint64
	for _, c := range r.Clusters() {
		total += c.Multiplicity
	}
	assert.Equal(t, uint64(len(barcodes)), total)
}

func TestNSubstitution(t *testing.T) {
	// N is part of the alphabet, so ACGN and ACGT are neighbors.
	es := entries("1", "ACGT", "ACGT", "ACGN", "ACNN")
	r := build(t, es, catalog.NewTileSet("1"), 2, 1)
	assert.Equal(t, "ACGT\n", whitelist(t, r))
}

func TestScannerError(t *testing.T) {
	cause := &util.FormatError{Path: "c.txt", Record: 3, Err: errors.New("bad")}
	_, err := Build(vcontext.Background(), &sliceScanner{entries: entries("1", "AAAA"), err: cause},
		Opts{Tiles: catalog.NewTileSet("1"), Parallelism: 2})
	assert.Equal(t, cause, err)
}

func writeCatalog(t *testing.T, path string, lines []string) {
	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := bgzf.NewWriter(f, gzip.DefaultCompression)
	require.NoError(t, err)
	_, err = w.Write([]byte("#tile_id\tx_pos\ty_pos\tbarcode\n" + strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func TestBuildFiles(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()

	catalogPath := filepath.Join(dir, "barcodes.txt.gz")
	var lines []string
	for i := 0; i < 5; i++ {
		lines = append(lines, fmt.Sprintf("11101\t%d\t%d\tAAAA", i, i+1))
	}
	lines = append(lines, "11101\t9\t9\tAAAT", "11101\t7\t8\tTTTT", "11102\t1\t1\tGGGG")
	writeCatalog(t, catalogPath, lines)

	opts := FileOpts{
		Opts:          Opts{Tiles: catalog.ParseTileList("11101"), Parallelism: 2},
		CatalogPath:   catalogPath,
		WhitelistPath: filepath.Join(dir, "barcode_whitelist.txt"),
		MappingPath:   filepath.Join(dir, "barcode_mapping.txt"),
	}
	r, err := BuildFiles(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Stats.Clusters)

	data, err := ioutil.ReadFile(opts.WhitelistPath)
	require.NoError(t, err)
	assert.Equal(t, "AAAA\nTTTT\n", string(data))

	data, err = ioutil.ReadFile(opts.MappingPath)
	require.NoError(t, err)
	mapping := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, mapping, 8)
	assert.Equal(t, "#tile_id\tx_pos\ty_pos\tbarcode\tcanonical", mapping[0])
	assert.Equal(t, "11101\t0\t1\tAAAA\tAAAA", mapping[1])
	assert.Equal(t, "11101\t9\t9\tAAAT\tAAAA", mapping[6])
	assert.Equal(t, "11101\t7\t8\tTTTT\tTTTT", mapping[7])
}

func TestBuildFilesErrors(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()

	catalogPath := filepath.Join(dir, "bad.txt.gz")
	writeCatalog(t, catalogPath, []string{"11101\t1\t1\tAAAA", "11101\t1\tAAAA"})
	_, err := BuildFiles(ctx, FileOpts{
		Opts:          Opts{Tiles: catalog.ParseTileList("11101")},
		CatalogPath:   catalogPath,
		WhitelistPath: filepath.Join(dir, "out.txt"),
	})
	var formatErr *util.FormatError
	require.True(t, errors.As(err, &formatErr), "got %v", err)
	assert.Equal(t, int64(3), formatErr.Record)
	_, statErr := os.Stat(filepath.Join(dir, "out.txt"))
	assert.True(t, os.IsNotExist(statErr))

	_, err = BuildFiles(ctx, FileOpts{
		CatalogPath:   filepath.Join(dir, "missing.txt.gz"),
		WhitelistPath: filepath.Join(dir, "out.txt"),
	})
	var ioErr *util.IOError
	assert.True(t, errors.As(err, &ioErr), "got %v", err)
}

func TestBuildFilesTileDir(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()

	catalogPath := filepath.Join(dir, "barcodes.txt.gz")
	writeCatalog(t, catalogPath, []string{
		"11101\t1\t2\tAAAA",
		"11102\t3\t4\tAAAT",
		"11101\t5\t6\tTTTT",
		"11103\t7\t8\tGGGG",
		"11102\t9\t9\tAAAA",
	})
	opts := FileOpts{
		Opts:          Opts{Tiles: catalog.ParseTileList("11101 11102 11104"), Parallelism: 2},
		CatalogPath:   catalogPath,
		WhitelistPath: filepath.Join(dir, "barcode_whitelist.txt"),
		TileDir:       filepath.Join(dir, "tiles"),
	}
	_, err := BuildFiles(ctx, opts)
	require.NoError(t, err)

	data, err := ioutil.ReadFile(filepath.Join(opts.TileDir, "11101.txt"))
	require.NoError(t, err)
	assert.Equal(t, "#tile_id\tx_pos\ty_pos\tbarcode\tcanonical\n"+
		"11101\t1\t2\tAAAA\tAAAA\n"+
		"11101\t5\t6\tTTTT\tTTTT\n", string(data))
	data, err = ioutil.ReadFile(filepath.Join(opts.TileDir, "11102.txt"))
	require.NoError(t, err)
	assert.Equal(t, "#tile_id\tx_pos\ty_pos\tbarcode\tcanonical\n"+
		"11102\t3\t4\tAAAT\tAAAA\n"+
		"11102\t9\t9\tAAAA\tAAAA\n", string(data))
	for _, tile := range []string{"11103", "11104"} {
		_, err := os.Stat(filepath.Join(opts.TileDir, tile+".txt"))
		assert.True(t, os.IsNotExist(err), "tile %s", tile)
	}
}
