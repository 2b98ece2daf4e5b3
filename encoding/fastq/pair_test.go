package fastq

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/spatial/util"
	"github.com/grailbio/testutil"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGzipFASTQ(t *testing.T, path string, reads []Read) {
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	w := NewWriter(gz)
	for i := range reads {
		require.NoError(t, w.Write(&reads[i]))
	}
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}

func TestOpenPair(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()

	r1 := []Read{
		{ID: "@x:1 1:N:0", Seq: "AAAACCGG", Qual: "IIIIJJKK"},
		{ID: "@x:2 1:N:0", Seq: "CCCCGGTT", Qual: "IIIIJJKK"},
	}
	r2 := []Read{
		{ID: "@x:1 2:N:0", Seq: "TTTTTTTTTT", Qual: "FFFFFFFFFF"},
		{ID: "@x:2 2:N:0", Seq: "GGGG", Qual: "EEEE"},
	}
	p1, p2 := filepath.Join(dir, "a_R1.fq.gz"), filepath.Join(dir, "a_R2.fq.gz")
	writeGzipFASTQ(t, p1, r1)
	writeGzipFASTQ(t, p2, r2)

	pr, err := OpenPair(ctx, p1, p2, PairOpts{CheckIDs: true, Parallelism: 2})
	require.NoError(t, err)
	var (
		p     ReadPair
		names []string
	)
	for pr.Scan(&p) {
		names = append(names, p.Name)
	}
	require.NoError(t, pr.Err())
	assert.Equal(t, []string{"x:1", "x:2"}, names)
	assert.Equal(t, "GGGG", p.R2.Seq)
	assert.Equal(t, "CCCCGGTT", p.R1.Seq)
	assert.NoError(t, pr.Close())
}

func TestOpenPairDiscordant(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()

	reads := []Read{
		{ID: "@r1", Seq: "ACGT", Qual: "IIII"},
		{ID: "@r2", Seq: "ACGT", Qual: "IIII"},
		{ID: "@r3", Seq: "ACGT", Qual: "IIII"},
	}
	p1, p2 := filepath.Join(dir, "b_R1.fq.gz"), filepath.Join(dir, "b_R2.fq.gz")
	writeGzipFASTQ(t, p1, reads)
	writeGzipFASTQ(t, p2, reads[:2])

	pr, err := OpenPair(ctx, p1, p2, PairOpts{})
	require.NoError(t, err)
	var p ReadPair
	n := 0
	for pr.Scan(&p) {
		n++
	}
	assert.Equal(t, 2, n)
	var formatErr *util.FormatError
	require.True(t, errors.As(pr.Err(), &formatErr), "got %v", pr.Err())
	assert.Equal(t, p2, formatErr.Path)
	assert.Equal(t, int64(3), formatErr.Record)
	assert.True(t, errors.Is(pr.Err(), ErrDiscordant))
	assert.NoError(t, pr.Close())
}

func TestOpenPairMissing(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()

	p1 := filepath.Join(dir, "c_R1.fq.gz")
	writeGzipFASTQ(t, p1, []Read{{ID: "@r", Seq: "A", Qual: "I"}})
	_, err := OpenPair(ctx, p1, filepath.Join(dir, "nope.fq.gz"), PairOpts{})
	var ioErr *util.IOError
	assert.True(t, errors.As(err, &ioErr), "got %v", err)
}

func TestOpenPairBadName(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()

	for i, id := range []string{"@ 1:N:0", "@" + strings.Repeat("x", MaxNameLength+1)} {
		reads := []Read{
			{ID: "@ok 1:N:0", Seq: "ACGT", Qual: "IIII"},
			{ID: id, Seq: "ACGT", Qual: "IIII"},
		}
		p1 := filepath.Join(dir, fmt.Sprintf("d%d_R1.fq.gz", i))
		p2 := filepath.Join(dir, fmt.Sprintf("d%d_R2.fq.gz", i))
		writeGzipFASTQ(t, p1, reads)
		writeGzipFASTQ(t, p2, reads)

		pr, err := OpenPair(ctx, p1, p2, PairOpts{CheckIDs: true})
		require.NoError(t, err)
		var p ReadPair
		n := 0
		for pr.Scan(&p) {
			n++
		}
		assert.Equal(t, 1, n)
		assert.False(t, pr.Scan(&p))
		var formatErr *util.FormatError
		require.True(t, errors.As(pr.Err(), &formatErr), "got %v", pr.Err())
		assert.Equal(t, p1, formatErr.Path)
		assert.Equal(t, int64(2), formatErr.Record)
		assert.True(t, errors.Is(pr.Err(), ErrName))
		assert.NoError(t, pr.Close())
	}

	// A name of exactly MaxNameLength bytes fits.
	reads := []Read{{ID: "@" + strings.Repeat("y", MaxNameLength), Seq: "A", Qual: "I"}}
	p1, p2 := filepath.Join(dir, "e_R1.fq.gz"), filepath.Join(dir, "e_R2.fq.gz")
	writeGzipFASTQ(t, p1, reads)
	writeGzipFASTQ(t, p2, reads)
	pr, err := OpenPair(ctx, p1, p2, PairOpts{})
	require.NoError(t, err)
	var p ReadPair
	require.True(t, pr.Scan(&p))
	assert.False(t, pr.Scan(&p))
	assert.NoError(t, pr.Err())
	assert.NoError(t, pr.Close())
}
