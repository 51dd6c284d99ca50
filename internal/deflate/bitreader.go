// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package deflate

import (
	"bufio"
	"io"

	"github.com/cosnicolaou/pngpeek/internal/pngerr"
)

// bitReader wraps an io.Reader and extracts bits LSB-first, the order
// DEFLATE (RFC 1951) packs them in: within a byte, bit 0 is read before bit
// 7. Huffman codewords are, logically, read MSB-first *within the code* by
// walking a tree one bit at a time; everything else (extra bits, block
// headers, stored-block lengths) is read as a packed little-endian value via
// ReadBits.
//
// Its Read* methods return any error directly and also keep it: once an
// error has occurred every later read returns it, and Err reports it.
type bitReader struct {
	r   io.ByteReader
	reg uint8 // holding register: residual bits of the current byte
	n   uint  // number of unread bits in reg, 0..8
	err error
}

// newBitReader returns a new bitReader reading from r. If r does not already
// implement io.ByteReader it is wrapped in a bufio.Reader.
func newBitReader(r io.Reader) *bitReader {
	byter, ok := r.(io.ByteReader)
	if !ok {
		byter = bufio.NewReader(r)
	}
	return &bitReader{r: byter}
}

// Err returns any error encountered so far.
func (br *bitReader) Err() error {
	return br.err
}

// ReadBit reads a single bit, LSB-first within the current byte.
func (br *bitReader) ReadBit() (uint, error) {
	if br.err != nil {
		return 0, br.err
	}
	if br.n == 0 {
		b, err := br.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = pngerr.UnexpectedEOFError{Context: "reading deflate bit stream"}
			}
			br.err = err
			return 0, err
		}
		br.reg = b
		br.n = 8
	}
	bit := uint(br.reg & 1)
	br.reg >>= 1
	br.n--
	return bit, nil
}

// ReadBits reads n bits, 0 <= n <= 32, and assembles them little-endian: the
// i-th bit read becomes bit i of the result.
func (br *bitReader) ReadBits(n uint) (uint32, error) {
	var v uint32
	for i := uint(0); i < n; i++ {
		bit, err := br.ReadBit()
		if err != nil {
			return 0, err
		}
		v |= uint32(bit) << i
	}
	return v, nil
}

// ReadByte discards any residual bits in the holding register (realigning to
// a byte boundary) and reads one whole byte.
func (br *bitReader) ReadByte() (byte, error) {
	if br.err != nil {
		return 0, br.err
	}
	br.reg = 0
	br.n = 0
	b, err := br.r.ReadByte()
	if err != nil {
		if err == io.EOF {
			err = pngerr.UnexpectedEOFError{Context: "byte-aligned read"}
		}
		br.err = err
		return 0, err
	}
	return b, nil
}

// BitPosition returns the current bit offset within the current byte, 0..7:
// the number of bits of the holding register already consumed.
func (br *bitReader) BitPosition() uint {
	return (8 - br.n) % 8
}
