package catalog

import (
	"bufio"
	"context"
	"sort"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/spatial/util"
)

// TileSet is an immutable set of tile identifiers.  Identifiers are
// opaque and matched by exact string equality; ranges or patterns
// must be expanded by the caller.
type TileSet struct {
	ids map[string]struct{}
}

// NewTileSet creates a TileSet holding ids.  Empty ids are ignored.
func NewTileSet(ids ...string) *TileSet {
	ts := &TileSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id != "" {
			ts.ids[id] = struct{}{}
		}
	}
	return ts
}

func isSeparator(r rune) bool {
	return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// ParseTileList creates a TileSet from a list of identifiers separated
// by commas or whitespace, e.g. "11101,11102 11103".
func ParseTileList(s string) *TileSet {
	return NewTileSet(strings.FieldsFunc(s, isSeparator)...)
}

// ReadTileFile reads a TileSet from a file listing identifiers separated
// by commas or whitespace.  Lines starting with '#' are ignored.
func ReadTileFile(ctx context.Context, path string) (ts *TileSet, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, &util.IOError{Path: path, Op: "open", Err: err}
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = &util.IOError{Path: path, Op: "close", Err: e}
		}
	}()
	var ids []string
	sc := bufio.NewScanner(in.Reader(ctx))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, strings.FieldsFunc(line, isSeparator)...)
	}
	if err := sc.Err(); err != nil {
		return nil, &util.IOError{Path: path, Op: "read", Err: err}
	}
	return NewTileSet(ids...), nil
}

// Contains reports whether id is in the set.  A nil set is empty.
func (ts *TileSet) Contains(id string) bool {
	if ts == nil {
		return false
	}
	_, ok := ts.ids[id]
	return ok
}

// Len returns the number of identifiers in the set.
func (ts *TileSet) Len() int {
	if ts == nil {
		return 0
	}
	return len(ts.ids)
}

// IDs returns the identifiers in sorted order.
func (ts *TileSet) IDs() []string {
	if ts == nil {
		return nil
	}
	ids := make([]string, 0, len(ts.ids))
	for id := range ts.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
