package whitelist

// disjointSets is a union-find forest over ids 0..n-1.  It is not
// thread safe.
type disjointSets struct {
	parent []int32
	rank   []uint8
}

func newDisjointSets(n int) *disjointSets {
	d := &disjointSets{parent: make([]int32, n), rank: make([]uint8, n)}
	for i := range d.parent {
		d.parent[i] = int32(i)
	}
	return d
}

// find returns the representative of x's set, halving the path on the
// way up.
func (d *disjointSets) find(x int32) int32 {
	for d.parent[x] != x {
		d.parent[x] = d.parent[d.parent[x]]
		x = d.parent[x]
	}
	return x
}

// union merges the sets of a and b.
func (d *disjointSets) union(a, b int32) {
	ra, rb := d.find(a), d.find(b)
	if ra == rb {
		return
	}
	switch {
	case d.rank[ra] < d.rank[rb]:
		d.parent[ra] = rb
	case d.rank[ra] > d.rank[rb]:
		d.parent[rb] = ra
	default:
		d.parent[rb] = ra
		d.rank[ra]++
	}
}
