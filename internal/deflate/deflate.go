// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package deflate implements a from-scratch RFC 1951 DEFLATE decompressor,
// used by the PNG reader to inflate IDAT pixel data and compressed text
// chunks. There is no corresponding compressor: this package only inflates.
package deflate

import (
	"io"

	"github.com/cosnicolaou/pngpeek/internal/pngerr"
)

// clCodeOrder is the fixed permutation in which code-length code lengths
// are transmitted for a dynamic block, per RFC 1951 §3.2.7.
var clCodeOrder = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// lengthBase and lengthExtraBits give the base length and number of extra
// bits for length symbols 257..285, per RFC 1951 §3.2.5. Index 0 corresponds
// to symbol 257.
var lengthBase = [29]int{3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31, 35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258}
var lengthExtraBits = [29]int{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0}

// distBase and distExtraBits give the base distance and number of extra
// bits for distance symbols 0..29, per RFC 1951 §3.2.5.
var distBase = [30]int{1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193, 257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577}
var distExtraBits = [30]int{0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13}

// Decompressor inflates a single DEFLATE stream. It owns a bitReader, a
// slidingWindow and the output it accumulates, and is single-use: a new
// Decompressor must be created per compressed stream (spec §5).
type Decompressor struct {
	br     *bitReader
	win    slidingWindow
	out    []byte
	fixed  *codeTree
	fixedD *codeTree
}

// NewDecompressor returns a Decompressor that reads a raw (non-zlib-framed)
// DEFLATE stream from r.
func NewDecompressor(r io.Reader) *Decompressor {
	return &Decompressor{br: newBitReader(r)}
}

// Inflate runs the block loop to completion and returns the inflated bytes.
func (d *Decompressor) Inflate() ([]byte, error) {
	for {
		bfinal, err := d.br.ReadBit()
		if err != nil {
			return nil, err
		}
		btype, err := d.br.ReadBits(2)
		if err != nil {
			return nil, err
		}
		switch btype {
		case 0:
			if err := d.storedBlock(); err != nil {
				return nil, err
			}
		case 1:
			lit, dist, err := d.fixedTables()
			if err != nil {
				return nil, err
			}
			if err := d.huffmanBlock(lit, dist); err != nil {
				return nil, err
			}
		case 2:
			lit, dist, err := d.dynamicTables()
			if err != nil {
				return nil, err
			}
			if err := d.huffmanBlock(lit, dist); err != nil {
				return nil, err
			}
		default:
			return nil, pngerr.CorruptStreamError{Reason: "reserved block type 11"}
		}
		if bfinal == 1 {
			break
		}
	}
	return d.out, nil
}

// emit appends a single inflated byte to the output and the sliding window.
func (d *Decompressor) emit(b byte) error {
	d.out = append(d.out, b)
	d.win.append(b)
	return nil
}

func (d *Decompressor) storedBlock() error {
	// Discard the holding register to re-align to the next byte boundary.
	for d.br.BitPosition() != 0 {
		if _, err := d.br.ReadBit(); err != nil {
			return err
		}
	}
	lenLo, err := d.br.ReadByte()
	if err != nil {
		return err
	}
	lenHi, err := d.br.ReadByte()
	if err != nil {
		return err
	}
	nlenLo, err := d.br.ReadByte()
	if err != nil {
		return err
	}
	nlenHi, err := d.br.ReadByte()
	if err != nil {
		return err
	}
	length := uint16(lenLo) | uint16(lenHi)<<8
	nlength := uint16(nlenLo) | uint16(nlenHi)<<8
	if length^0xffff != nlength {
		return pngerr.CorruptStreamError{Reason: "stored block LEN/NLEN mismatch"}
	}
	for i := uint16(0); i < length; i++ {
		b, err := d.br.ReadByte()
		if err != nil {
			return err
		}
		if err := d.emit(b); err != nil {
			return err
		}
	}
	return nil
}

// fixedTables builds (once) and returns the two fixed Huffman tables defined
// by RFC 1951 §3.2.6.
func (d *Decompressor) fixedTables() (*codeTree, *codeTree, error) {
	if d.fixed != nil {
		return d.fixed, d.fixedD, nil
	}
	lit := make([]int, 288)
	for i := 0; i < 144; i++ {
		lit[i] = 8
	}
	for i := 144; i < 256; i++ {
		lit[i] = 9
	}
	for i := 256; i < 280; i++ {
		lit[i] = 7
	}
	for i := 280; i < 288; i++ {
		lit[i] = 8
	}
	litTree, err := newCodeTree(lit)
	if err != nil {
		return nil, nil, err
	}
	dist := make([]int, 32)
	for i := range dist {
		dist[i] = 5
	}
	distTree, err := newCodeTree(dist)
	if err != nil {
		return nil, nil, err
	}
	d.fixed, d.fixedD = litTree, distTree
	return litTree, distTree, nil
}

// dynamicTables reads the HLIT/HDIST/HCLEN header and the code-length
// sequence of a dynamic block (RFC 1951 §3.2.7) and builds the literal/length
// and distance Huffman tables it describes.
func (d *Decompressor) dynamicTables() (*codeTree, *codeTree, error) {
	hlitRaw, err := d.br.ReadBits(5)
	if err != nil {
		return nil, nil, err
	}
	hdistRaw, err := d.br.ReadBits(5)
	if err != nil {
		return nil, nil, err
	}
	hclenRaw, err := d.br.ReadBits(4)
	if err != nil {
		return nil, nil, err
	}
	hlit := int(hlitRaw) + 257
	hdist := int(hdistRaw) + 1
	hclen := int(hclenRaw) + 4

	clLengths := make([]int, 19)
	for i := 0; i < hclen; i++ {
		l, err := d.br.ReadBits(3)
		if err != nil {
			return nil, nil, err
		}
		clLengths[clCodeOrder[i]] = int(l)
	}
	clTree, err := newCodeTree(clLengths)
	if err != nil {
		return nil, nil, err
	}

	codeLengths := make([]int, hlit+hdist)
	previous := -1
	for i := 0; i < len(codeLengths); {
		sym, err := clTree.decode(d.br)
		if err != nil {
			return nil, nil, err
		}
		switch {
		case sym <= 15:
			codeLengths[i] = sym
			previous = sym
			i++
		case sym == 16:
			if previous < 0 {
				return nil, nil, pngerr.CorruptStreamError{Reason: "repeat code 16 with no previous length"}
			}
			n, err := d.br.ReadBits(2)
			if err != nil {
				return nil, nil, err
			}
			repeat := int(n) + 3
			if i+repeat > len(codeLengths) {
				return nil, nil, pngerr.CorruptStreamError{Reason: "code length repeat overruns table"}
			}
			for r := 0; r < repeat; r++ {
				codeLengths[i] = previous
				i++
			}
		case sym == 17:
			n, err := d.br.ReadBits(3)
			if err != nil {
				return nil, nil, err
			}
			repeat := int(n) + 3
			if i+repeat > len(codeLengths) {
				return nil, nil, pngerr.CorruptStreamError{Reason: "code length repeat overruns table"}
			}
			for r := 0; r < repeat; r++ {
				codeLengths[i] = 0
				i++
			}
			previous = 0
		case sym == 18:
			n, err := d.br.ReadBits(7)
			if err != nil {
				return nil, nil, err
			}
			repeat := int(n) + 11
			if i+repeat > len(codeLengths) {
				return nil, nil, pngerr.CorruptStreamError{Reason: "code length repeat overruns table"}
			}
			for r := 0; r < repeat; r++ {
				codeLengths[i] = 0
				i++
			}
			previous = 0
		default:
			return nil, nil, pngerr.CorruptStreamError{Reason: "invalid code length symbol"}
		}
	}

	litLengths := codeLengths[:hlit]
	distLengths := codeLengths[hlit:]

	if len(distLengths) == 1 && distLengths[0] == 0 {
		litTree, err := newCodeTree(litLengths)
		if err != nil {
			return nil, nil, err
		}
		return litTree, nil, nil
	}

	distLengths = padSingleSymbolDistanceTable(distLengths)

	litTree, err := newCodeTree(litLengths)
	if err != nil {
		return nil, nil, err
	}
	distTree, err := newCodeTree(distLengths)
	if err != nil {
		return nil, nil, err
	}
	return litTree, distTree, nil
}

// padSingleSymbolDistanceTable applies the well known single-entry distance
// table repair (spec §4.2, §9): a distance table with exactly one non-zero
// length (of length 1) and no others is a legal but degenerate canonical
// code that the plain construction algorithm rejects (it can never pair with
// a sibling). Real-world encoders and decoders pad such a table to 32
// entries and place one dummy code of length 1, matching
// original_source/deflate/deflate.py's `distance_table_length[31] = 1` fixup.
// The choice of index 31 for the dummy code is not externally observable.
func padSingleSymbolDistanceTable(lengths []int) []int {
	onesCount, othersCount := 0, 0
	for _, l := range lengths {
		switch {
		case l == 1:
			onesCount++
		case l > 0:
			othersCount++
		}
	}
	if onesCount != 1 || othersCount != 0 {
		return lengths
	}
	padded := make([]int, 32)
	copy(padded, lengths)
	padded[31] = 1
	return padded
}

// huffmanBlock runs the literal/length/distance decode loop shared by fixed
// and dynamic Huffman blocks (RFC 1951 §3.2.5).
func (d *Decompressor) huffmanBlock(lit, dist *codeTree) error {
	for {
		sym, err := lit.decode(d.br)
		if err != nil {
			return err
		}
		switch {
		case sym < 256:
			if err := d.emit(byte(sym)); err != nil {
				return err
			}
		case sym == 256:
			return nil
		case sym <= 285:
			length, err := d.decodeLength(sym)
			if err != nil {
				return err
			}
			if dist == nil {
				return pngerr.CorruptStreamError{Reason: "length symbol with no distance table"}
			}
			dsym, err := dist.decode(d.br)
			if err != nil {
				return err
			}
			distance, err := d.decodeDistance(dsym)
			if err != nil {
				return err
			}
			// copy appends each byte to the window itself, so the sink
			// only adds it to the output.
			err = d.win.copy(length, distance, func(b byte) error {
				d.out = append(d.out, b)
				return nil
			})
			if err != nil {
				return err
			}
		default:
			return pngerr.CorruptStreamError{Reason: "invalid literal/length symbol"}
		}
	}
}

// decodeLength implements the length formula of RFC 1951 §3.2.5 for length
// symbols 257..285.
func (d *Decompressor) decodeLength(sym int) (int, error) {
	if sym < 257 || sym > 285 {
		return 0, pngerr.CorruptStreamError{Reason: "invalid length symbol"}
	}
	idx := sym - 257
	extra := lengthExtraBits[idx]
	base := lengthBase[idx]
	length := base
	if extra > 0 {
		bits, err := d.br.ReadBits(uint(extra))
		if err != nil {
			return 0, err
		}
		length += int(bits)
	}
	if length < 3 || length > 258 {
		return 0, pngerr.CorruptStreamError{Reason: "length out of range"}
	}
	return length, nil
}

// decodeDistance implements the distance formula of RFC 1951 §3.2.5 for
// distance symbols 0..29.
func (d *Decompressor) decodeDistance(sym int) (int, error) {
	if sym < 0 || sym > 29 {
		return 0, pngerr.CorruptStreamError{Reason: "reserved distance symbol"}
	}
	extra := distExtraBits[sym]
	base := distBase[sym]
	distance := base
	if extra > 0 {
		bits, err := d.br.ReadBits(uint(extra))
		if err != nil {
			return 0, err
		}
		distance += int(bits)
	}
	if distance < 1 || distance > windowSize {
		return 0, pngerr.CorruptStreamError{Reason: "distance out of range"}
	}
	return distance, nil
}
