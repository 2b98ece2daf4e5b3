// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package whitelist builds the barcode whitelist of a spatial chip from
// its barcode catalog.
//
// Catalog entries of the selected tiles are counted per distinct
// barcode.  Barcodes one substitution apart are joined, transitively,
// into clusters; each cluster stands for one physical barcode and is
// represented by its most frequent sequence, ties going to the
// lexicographically smallest.  The whitelist lists the representatives
// by decreasing count, ties by sequence, so it depends only on the
// multiset of selected barcodes and not on catalog order.
package whitelist

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/spatial/catalog"
	"github.com/grailbio/spatial/util"
	"golang.org/x/sync/errgroup"
)

// Opts configures Build.
type Opts struct {
	// Tiles selects the catalog entries to use.  Entries of other tiles
	// are dropped before counting.
	Tiles *catalog.TileSet
	// Parallelism is the number of goroutines that count and probe
	// barcodes.
	Parallelism int
	// BatchSize is the number of selected barcodes handed to a counting
	// goroutine at a time.
	BatchSize int
}

// DefaultOpts holds the default values of Opts.
var DefaultOpts = Opts{
	Parallelism: runtime.NumCPU(),
	BatchSize:   1 << 14,
}

// EntryScanner yields catalog entries.  *catalog.Scanner implements it.
type EntryScanner interface {
	Scan() bool
	Entry() catalog.Entry
	Err() error
}

// Cluster is a set of barcodes that are connected by single
// substitutions.
type Cluster struct {
	// Canonical is the representative barcode.
	Canonical string
	// Count is the number of selected entries carrying Canonical.
	Count uint32
	// Multiplicity is the number of selected entries carrying any
	// barcode of the cluster.
	Multiplicity uint64
	// Size is the number of distinct barcodes in the cluster.
	Size int
}

// Stats summarizes a Build.
type Stats struct {
	// Entries is the number of catalog entries read.
	Entries int64
	// Selected is the number of entries of the selected tiles.
	Selected int64
	// Distinct is the number of distinct selected barcodes.
	Distinct int
	// Edges is the number of barcode pairs one substitution apart.
	Edges int
	// Clusters is the number of clusters, i.e. whitelist lines.
	Clusters int
}

// Result is the outcome of Build.
type Result struct {
	Stats    Stats
	clusters []Cluster
	ix       *frozenIndex
	// clusterOf maps a barcode id to its index in clusters.
	clusterOf []int32
}

// Clusters returns the clusters in whitelist order.
func (r *Result) Clusters() []Cluster { return r.clusters }

// Canonical returns the canonical barcode of the cluster holding
// barcode.  It returns false if barcode was not among the selected
// entries.
func (r *Result) Canonical(barcode string) (string, bool) {
	id, ok := r.ix.lookup([]byte(barcode))
	if !ok {
		return "", false
	}
	return r.clusters[r.clusterOf[id]].Canonical, true
}

// Build reads s to the end and clusters the barcodes of the selected
// tiles.  An empty selection yields an empty Result, not an error.
// Errors of s are returned as is.
func Build(ctx context.Context, s EntryScanner, opts Opts) (*Result, error) {
	if opts.Tiles == nil {
		opts.Tiles = catalog.NewTileSet()
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOpts.BatchSize
	}
	t0 := time.Now()
	var stats Stats
	counts, err := count(ctx, s, opts, &stats)
	if err != nil {
		return nil, err
	}
	ix := counts.freeze()
	stats.Distinct = ix.Len()
	log.Printf("whitelist: %d entries, %d in %d selected tiles, %d distinct barcodes (%v)",
		stats.Entries, stats.Selected, opts.Tiles.Len(), stats.Distinct, time.Since(t0))
	if stats.Selected == 0 {
		log.Printf("whitelist: no catalog entry matches tiles %v, the whitelist is empty", opts.Tiles.IDs())
	}

	edges, err := probe(ix, opts.Parallelism)
	if err != nil {
		return nil, err
	}
	stats.Edges = len(edges)
	sets := newDisjointSets(ix.Len())
	for _, e := range edges {
		sets.union(e[0], e[1])
	}
	r := cluster(ix, sets)
	r.Stats = stats
	r.Stats.Clusters = len(r.clusters)
	log.Printf("whitelist: %d edges, %d clusters (%v)", r.Stats.Edges, r.Stats.Clusters, time.Since(t0))
	return r, nil
}

// count scans s and counts the selected barcodes in parallel.  The scan
// itself is sequential; batches of barcodes are counted by
// opts.Parallelism goroutines.
func count(ctx context.Context, s EntryScanner, opts Opts, stats *Stats) (*countIndex, error) {
	ix := newCountIndex()
	batches := make(chan []string, opts.Parallelism)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(batches)
		batch := make([]string, 0, opts.BatchSize)
		send := func() error {
			select {
			case batches <- batch:
			case <-gctx.Done():
				return gctx.Err()
			}
			batch = make([]string, 0, opts.BatchSize)
			return nil
		}
		for s.Scan() {
			stats.Entries++
			e := s.Entry()
			if !opts.Tiles.Contains(e.TileID) {
				continue
			}
			stats.Selected++
			batch = append(batch, e.Barcode)
			if len(batch) == opts.BatchSize {
				if err := send(); err != nil {
					return err
				}
			}
		}
		if err := s.Err(); err != nil {
			return err
		}
		if len(batch) > 0 {
			return send()
		}
		return nil
	})
	for i := 0; i < opts.Parallelism; i++ {
		g.Go(func() error {
			for b := range batches {
				ix.add(b)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ix, nil
}

// probe returns every pair of ids whose sequences differ by exactly one
// substitution, as (smaller id, larger id).  Each pair appears once.
func probe(ix *frozenIndex, parallelism int) ([][2]int32, error) {
	n := ix.Len()
	if parallelism > n {
		parallelism = n
	}
	if parallelism == 0 {
		return nil, nil
	}
	parts := make([][][2]int32, parallelism)
	err := traverse.Each(parallelism, func(jobIdx int) error {
		start := (jobIdx * n) / parallelism
		end := ((jobIdx + 1) * n) / parallelism
		var (
			edges [][2]int32
			buf   []byte
		)
		for i := start; i < end; i++ {
			buf = append(buf[:0], ix.seqs[i]...)
			for pos, orig := range buf {
				for _, b := range util.Bases {
					if b == orig {
						continue
					}
					buf[pos] = b
					if j, ok := ix.lookup(buf); ok && j > int32(i) {
						edges = append(edges, [2]int32{int32(i), j})
					}
				}
				buf[pos] = orig
			}
		}
		parts[jobIdx] = edges
		return nil
	})
	if err != nil {
		return nil, err
	}
	var edges [][2]int32
	for _, p := range parts {
		edges = append(edges, p...)
	}
	return edges, nil
}

// better reports whether barcode a should represent a cluster rather
// than b.
func better(ix *frozenIndex, a, b int32) bool {
	if ix.counts[a] != ix.counts[b] {
		return ix.counts[a] > ix.counts[b]
	}
	// Ids follow lexicographic order.
	return a < b
}

func cluster(ix *frozenIndex, sets *disjointSets) *Result {
	n := ix.Len()
	// best[root] is the canonical id of the set, -1 until seen.
	best := make([]int32, n)
	for i := range best {
		best[i] = -1
	}
	roots := make([]int32, n)
	for i := 0; i < n; i++ {
		id := int32(i)
		root := sets.find(id)
		roots[i] = root
		if best[root] < 0 || better(ix, id, best[root]) {
			best[root] = id
		}
	}
	var canon []int32
	for root, b := range best {
		if b >= 0 && int32(root) == sets.find(int32(root)) {
			canon = append(canon, b)
		}
	}
	sort.Slice(canon, func(i, j int) bool { return better(ix, canon[i], canon[j]) })

	r := &Result{
		clusters:  make([]Cluster, len(canon)),
		ix:        ix,
		clusterOf: make([]int32, n),
	}
	clusterOfRoot := make(map[int32]int32, len(canon))
	for ci, id := range canon {
		r.clusters[ci] = Cluster{Canonical: ix.seqs[id], Count: ix.counts[id]}
		clusterOfRoot[roots[id]] = int32(ci)
	}
	for i := 0; i < n; i++ {
		ci := clusterOfRoot[roots[i]]
		r.clusterOf[i] = ci
		c := &r.clusters[ci]
		c.Multiplicity += uint64(ix.counts[i])
		c.Size++
	}
	return r
}
