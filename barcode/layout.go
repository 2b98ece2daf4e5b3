package barcode

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// DefaultBarcodeWidth is the cell barcode length expected by the
	// downstream aligner's whitelist.
	DefaultBarcodeWidth = 28
	// DefaultUMIWidth is the UMI length.
	DefaultUMIWidth = 9
)

// Layout locates the cell barcode, the UMI, and the biological read
// within a read pair.  The barcode and UMI regions have a fixed width;
// the read region may be open ended.
type Layout struct {
	Barcode, UMI, Read Region
}

// FixedLayout returns the layout where mate 1 starts with a cell barcode
// of barcodeWidth bases followed by a UMI of umiWidth bases, and mate 2
// is the biological read.
func FixedLayout(barcodeWidth, umiWidth int) Layout {
	return Layout{
		Barcode: Region{Mate: 1, Start: 0, End: barcodeWidth},
		UMI:     Region{Mate: 1, Start: barcodeWidth, End: barcodeWidth + umiWidth},
		Read:    Region{Mate: 2, Start: 0, End: EndOfRead},
	}
}

var presets = map[string]Layout{
	"openst": {
		Barcode: Region{Mate: 1, Start: 2, End: 30},
		UMI:     Region{Mate: 2, Start: 0, End: 9},
		Read:    Region{Mate: 2, Start: 9, End: EndOfRead},
	},
	"opentso": {
		Barcode: Region{Mate: 1, Start: 2, End: 30},
		UMI:     Region{Mate: 1, Start: 12, End: 20},
		Read:    Region{Mate: 2, Start: 9, End: EndOfRead},
	},
}

// PresetLayout returns a named layout.  See PresetNames.
func PresetLayout(name string) (Layout, error) {
	l, ok := presets[strings.ToLower(name)]
	if !ok {
		return Layout{}, fmt.Errorf("unknown layout %q, want one of %s", name, strings.Join(PresetNames(), ", "))
	}
	return l, nil
}

// PresetNames lists the names accepted by PresetLayout.
func PresetNames() []string {
	var names []string
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseLayout builds a layout from the text form of its three regions.
func ParseLayout(barcode, umi, read string) (Layout, error) {
	var (
		l   Layout
		err error
	)
	if l.Barcode, err = ParseRegion(barcode); err != nil {
		return Layout{}, err
	}
	if l.UMI, err = ParseRegion(umi); err != nil {
		return Layout{}, err
	}
	if l.Read, err = ParseRegion(read); err != nil {
		return Layout{}, err
	}
	return l, l.Validate()
}

// Validate checks that the barcode and UMI regions are closed and
// non-empty.
func (l Layout) Validate() error {
	for _, r := range []struct {
		name   string
		region Region
	}{{"barcode", l.Barcode}, {"umi", l.UMI}, {"read", l.Read}} {
		if err := r.region.validate(); err != nil {
			return fmt.Errorf("%s region: %v", r.name, err)
		}
	}
	if l.Barcode.End == EndOfRead {
		return fmt.Errorf("barcode region %v must have a fixed end", l.Barcode)
	}
	if l.UMI.End == EndOfRead {
		return fmt.Errorf("umi region %v must have a fixed end", l.UMI)
	}
	return nil
}

func (l Layout) String() string {
	return fmt.Sprintf("barcode=%v umi=%v read=%v", l.Barcode, l.UMI, l.Read)
}
