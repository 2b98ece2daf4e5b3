// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package catalog reads spatial barcode catalogs and selects their
// entries by tile.
//
// A catalog lists every synthesized barcode with the tile and the
// position it was placed at.  It is a (usually bgzip-compressed) text
// file with one entry per line and four delimiter-separated columns:
//
//   #tile_id	x_pos	y_pos	barcode
//   11101	1024	2048	ACGTACGTACGTACGTACGTACGTACGT
//
// Lines starting with '#' and empty lines are ignored.  Coordinates are
// unsigned 32-bit integers and barcodes use the alphabet ACGTN.
package catalog
