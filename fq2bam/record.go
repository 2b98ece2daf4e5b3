package fq2bam

import (
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/spatial/barcode"
)

// Tags carried by every output record, as read by STARsolo and other
// barcode-aware aligners.
var (
	TagReadGroup       = sam.NewTag("RG")
	TagCellBarcode     = sam.NewTag("CR")
	TagCellBarcodeQual = sam.NewTag("CY")
	TagUMI             = sam.NewTag("UR")
	TagUMIQual         = sam.NewTag("UY")
)

// phredOffset is the ASCII offset of FASTQ quality strings.
const phredOffset = 33

// newRecord converts a tagged read into an unmapped record.  The read
// quality is stored as Phred values as BAM requires; the barcode and
// UMI qualities are stored verbatim as strings.
func newRecord(t *barcode.TaggedRecord) (*sam.Record, error) {
	qual := make([]byte, len(t.Qual))
	for i := 0; i < len(t.Qual); i++ {
		if q := t.Qual[i]; q > phredOffset {
			qual[i] = q - phredOffset
		}
	}
	aux := make([]sam.Aux, 0, 5)
	for _, f := range []struct {
		tag sam.Tag
		val string
	}{
		{TagCellBarcode, t.CellBarcode},
		{TagCellBarcodeQual, t.CellBarcodeQual},
		{TagUMI, t.UMI},
		{TagUMIQual, t.UMIQual},
		{TagReadGroup, t.SampleID},
	} {
		a, err := sam.NewAux(f.tag, f.val)
		if err != nil {
			return nil, err
		}
		aux = append(aux, a)
	}
	return &sam.Record{
		Name:      t.Name,
		Pos:       -1,
		MatePos:   -1,
		Flags:     sam.Unmapped,
		Seq:       sam.NewSeq([]byte(t.Seq)),
		Qual:      qual,
		AuxFields: aux,
	}, nil
}
