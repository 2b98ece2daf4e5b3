package tilematch

import (
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/tsv"
)

// WriteReports writes one line per tile: tile id, total, matched, ratio
// and pass (1 or 0), after a header line.
func WriteReports(w io.Writer, reports []Report) error {
	tw := tsv.NewWriter(w)
	tw.WriteString("#tile_id\ttotal\tmatched\tratio\tpass")
	if err := tw.EndLine(); err != nil {
		return err
	}
	for _, r := range reports {
		tw.WriteString(r.TileID)
		tw.WriteInt64(int64(r.Total))
		tw.WriteInt64(int64(r.Matched))
		tw.WriteString(strconv.FormatFloat(r.Ratio, 'f', 5, 64))
		if r.Pass {
			tw.WriteString("1")
		} else {
			tw.WriteString("0")
		}
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// WritePassing writes the ids of the passing tiles on one line,
// separated by spaces, in the form bio-dedupbarcode -tiles accepts.
func WritePassing(w io.Writer, reports []Report) error {
	var ids []string
	for _, r := range reports {
		if r.Pass {
			ids = append(ids, r.TileID)
		}
	}
	_, err := io.WriteString(w, strings.Join(ids, " ")+"\n")
	return err
}
