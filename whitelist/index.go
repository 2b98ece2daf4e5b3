package whitelist

import (
	"sort"
	"sync"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/unsafe"
)

const numIndexShards = 1024

type indexShard struct {
	mu     sync.Mutex
	counts map[string]uint32
}

// countIndex is a sharded, thread-safe map from barcode sequence to the
// number of selected catalog entries carrying it.
type countIndex struct {
	shards [numIndexShards]indexShard
}

func newCountIndex() *countIndex {
	ix := &countIndex{}
	for i := range ix.shards {
		ix.shards[i].counts = make(map[string]uint32)
	}
	return ix
}

func shardOf(b []byte) int {
	return int(seahash.Sum64(b) % numIndexShards)
}

// add increments the count of each barcode.
func (ix *countIndex) add(barcodes []string) {
	for _, b := range barcodes {
		shard := &ix.shards[shardOf(unsafe.StringToBytes(b))]
		shard.mu.Lock()
		shard.counts[b]++
		shard.mu.Unlock()
	}
}

// frozenIndex is the read-only form of a countIndex.  Distinct
// sequences get dense ids in lexicographic order, so that a smaller id
// means a lexicographically smaller sequence.  Lookups take no locks and
// may run concurrently.
type frozenIndex struct {
	seqs   []string
	counts []uint32
	ids    [numIndexShards]map[string]int32
}

// freeze converts ix.  ix must not be used afterwards.
func (ix *countIndex) freeze() *frozenIndex {
	n := 0
	for i := range ix.shards {
		n += len(ix.shards[i].counts)
	}
	seqs := make([]string, 0, n)
	for i := range ix.shards {
		for s := range ix.shards[i].counts {
			seqs = append(seqs, s)
		}
	}
	sort.Strings(seqs)
	f := &frozenIndex{
		seqs:   seqs,
		counts: make([]uint32, len(seqs)),
	}
	for i := range f.ids {
		f.ids[i] = make(map[string]int32, len(ix.shards[i].counts))
	}
	for id, s := range seqs {
		shard := shardOf(unsafe.StringToBytes(s))
		f.counts[id] = ix.shards[shard].counts[s]
		f.ids[shard][s] = int32(id)
	}
	return f
}

// lookup returns the id of seq.
func (f *frozenIndex) lookup(seq []byte) (int32, bool) {
	id, ok := f.ids[shardOf(seq)][string(seq)]
	return id, ok
}

// Len returns the number of distinct sequences.
func (f *frozenIndex) Len() int { return len(f.seqs) }
