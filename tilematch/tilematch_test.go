package tilematch

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/spatial/barcode"
	"github.com/grailbio/spatial/catalog"
	"github.com/grailbio/spatial/encoding/fastq"
	"github.com/grailbio/spatial/util"
	"github.com/grailbio/testutil"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastqText(reads ...[2]string) string {
	var b strings.Builder
	for i, r := range reads {
		fmt.Fprintf(&b, "@r%d\n%s\n+\n%s\n", i, r[0], r[1])
	}
	return b.String()
}

var testReads = [][2]string{
	{"GACGTA", "IIIIII"},
	{"GACGTA", "I5IIII"}, // one base below Q30
	{"GTTTTA", "I555II"}, // three bases below Q30
	{"GCCCCA", "I4IIII"}, // a base below Q20
	{"GAAA", "IIII"},     // shorter than the region
	{"GGGGGA", "IIIIII"},
}

func testOpts() Opts {
	opts := DefaultOpts
	opts.Region = barcode.Region{Mate: 1, Start: 1, End: 5}
	opts.Pattern = ""
	return opts
}

func sample(t *testing.T, text string, opts Opts) *Sample {
	s, err := SampleReads(fastq.NewScanner(strings.NewReader(text), fastq.Seq|fastq.Qual), "test.fq", opts)
	require.NoError(t, err)
	return s
}

func TestSampleReads(t *testing.T) {
	s := sample(t, fastqText(testReads...), testOpts())
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("ACGT"))
	assert.True(t, s.Contains("GGGG"))
	assert.False(t, s.Contains("TTTT"))
	assert.False(t, s.Contains("CCCC"))
	assert.Equal(t, int64(6), s.Reads)
	assert.Equal(t, int64(3), s.Filtered)

	opts := testOpts()
	opts.Pattern = "BNNN"
	s = sample(t, fastqText(testReads...), opts)
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Contains("GGGG"))

	opts = testOpts()
	opts.Region.Reverse = true
	opts.Pattern = "GNNN"
	s = sample(t, fastqText(testReads...), opts)
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Contains("CCCC"))

	opts = testOpts()
	opts.NumBarcodes = 1
	s = sample(t, fastqText(testReads...), opts)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, int64(1), s.Reads)
}

func TestSampleReadsError(t *testing.T) {
	text := fastqText(testReads[0]) + "@bad\nACGT\n+\nII\n"
	_, err := SampleReads(fastq.NewScanner(strings.NewReader(text), fastq.Seq|fastq.Qual), "test.fq", testOpts())
	var formatErr *util.FormatError
	require.True(t, errors.As(err, &formatErr), "got %v", err)
	assert.Equal(t, "test.fq", formatErr.Path)
}

const testCatalog = `#tile_id	x_pos	y_pos	barcode
1	1	1	ACGT
1	2	2	ACGT
1	3	3	TTTT
2	1	1	GGGG
3	1	1	CCCC
`

func matchTiles(t *testing.T, opts Opts) []Report {
	s := sample(t, fastqText(testReads...), opts)
	reports, err := MatchTiles(catalog.NewScanner(strings.NewReader(testCatalog), "catalog.txt", catalog.Opts{}), s, opts)
	require.NoError(t, err)
	return reports
}

func TestMatchTiles(t *testing.T) {
	opts := testOpts()
	opts.Threshold = 0.5
	assert.Equal(t, []Report{
		{TileID: "1", Total: 2, Matched: 1, Ratio: 0.5, Pass: true},
		{TileID: "2", Total: 1, Matched: 1, Ratio: 1, Pass: true},
		{TileID: "3", Total: 1, Matched: 0, Ratio: 0, Pass: false},
	}, matchTiles(t, opts))

	opts.Tiles = catalog.ParseTileList("9,2")
	assert.Equal(t, []Report{
		{TileID: "2", Total: 1, Matched: 1, Ratio: 1, Pass: true},
		{TileID: "9"},
	}, matchTiles(t, opts))
}

func TestWriteReports(t *testing.T) {
	opts := testOpts()
	opts.Threshold = 0.6
	reports := matchTiles(t, opts)
	var buf bytes.Buffer
	require.NoError(t, WriteReports(&buf, reports))
	assert.Equal(t, "#tile_id\ttotal\tmatched\tratio\tpass\n"+
		"1\t2\t1\t0.50000\t0\n"+
		"2\t1\t1\t1.00000\t1\n"+
		"3\t1\t0\t0.00000\t0\n", buf.String())

	buf.Reset()
	require.NoError(t, WritePassing(&buf, reports))
	assert.Equal(t, "2\n", buf.String())
}

func TestMatch(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()

	readPath := filepath.Join(dir, "R1.fastq.gz")
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(fastqText(testReads...)))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, ioutil.WriteFile(readPath, buf.Bytes(), 0644))
	catalogPath := filepath.Join(dir, "barcodes.txt")
	require.NoError(t, ioutil.WriteFile(catalogPath, []byte(testCatalog), 0644))

	opts := testOpts()
	opts.Tiles = catalog.NewTileSet("2")
	reports, err := Match(ctx, readPath, catalogPath, opts)
	require.NoError(t, err)
	assert.Equal(t, []Report{{TileID: "2", Total: 1, Matched: 1, Ratio: 1, Pass: true}}, reports)

	_, err = Match(ctx, filepath.Join(dir, "missing.fq.gz"), catalogPath, opts)
	var ioErr *util.IOError
	assert.True(t, errors.As(err, &ioErr), "got %v", err)
}

func TestValidate(t *testing.T) {
	opts := DefaultOpts
	assert.NoError(t, opts.validate())
	opts.Pattern = "NNN"
	assert.Error(t, opts.validate())
	opts = DefaultOpts
	opts.Pattern = strings.Repeat("X", 28)
	assert.Error(t, opts.validate())
	opts = DefaultOpts
	opts.Region.End = barcode.EndOfRead
	assert.Error(t, opts.validate())
	opts = DefaultOpts
	opts.NumBarcodes = 0
	assert.Error(t, opts.validate())
}
