// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package png implements a from-scratch PNG 1.2 reader built around an
// independent DEFLATE decompressor. It parses the chunk container, verifies
// per-chunk CRC-32, and decodes the metadata and inflated scanline stream of
// known chunk types. It does not unfilter scanlines, expand palettes, or
// deinterlace: that is the renderer's job, not this package's.
package png

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/cosnicolaou/pngpeek/internal/pngerr"
)

// signature is the fixed 8 byte sequence every PNG file begins with.
var signature = [8]byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

// Chunk is one length-prefixed, CRC-checked unit of a PNG file. Classify
// bits are derived from the case of each byte of Type, per the PNG 1.2
// naming convention; they are retained on every chunk (not just used
// internally to decide fatal-vs-skip) so a caller can inspect them.
type Chunk struct {
	Type []byte
	Data []byte
	CRC  uint32

	Ancillary  bool // bit 5 of byte 0: lower case means ancillary
	Private    bool // bit 5 of byte 1: lower case means private
	Reserved   bool // bit 5 of byte 2: must be upper case; true here is a violation
	SafeToCopy bool // bit 5 of byte 3: lower case means safe-to-copy
}

// TypeString returns the chunk's 4 character type as a string, e.g. "IHDR".
func (c Chunk) TypeString() string {
	return string(c.Type)
}

func classify(t []byte) (ancillary, private, reserved, safeToCopy bool) {
	isLower := func(b byte) bool { return b >= 'a' && b <= 'z' }
	return isLower(t[0]), isLower(t[1]), isLower(t[2]), isLower(t[3])
}

// chunkStream scans a PNG's chunk sequence, verifying the signature once and
// each chunk's CRC-32 as it is read. Its Scan/Chunk/Err shape follows
// scanner.go's Scan/Block/Err iterator idiom.
type chunkStream struct {
	r            io.Reader
	err          error
	done         bool
	chunk        Chunk
	maxChunkSize int
}

// newChunkStream returns a chunkStream reading from r, which must begin with
// the PNG signature. maxChunkSize bounds the length field of any one chunk,
// guarding against a hostile or corrupt length value forcing an enormous
// allocation.
func newChunkStream(r io.Reader, maxChunkSize int) (*chunkStream, error) {
	var sig [8]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, pngerr.NotPngError{}
		}
		return nil, err
	}
	if sig != signature {
		return nil, pngerr.NotPngError{}
	}
	return &chunkStream{r: r, maxChunkSize: maxChunkSize}, nil
}

// Scan reads the next chunk, returning false at end-of-stream (after IEND)
// or on error; check Err to distinguish the two.
func (cs *chunkStream) Scan() bool {
	if cs.err != nil || cs.done {
		return false
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(cs.r, lenBuf[:]); err != nil {
		cs.err = wrapReadErr(err, "reading chunk length")
		return false
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if cs.maxChunkSize > 0 && int(length) > cs.maxChunkSize {
		cs.err = pngerr.CorruptFileError{Reason: "chunk length exceeds configured maximum"}
		return false
	}

	typ := make([]byte, 4)
	if _, err := io.ReadFull(cs.r, typ); err != nil {
		cs.err = wrapReadErr(err, "reading chunk type")
		return false
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(cs.r, data); err != nil {
		cs.err = wrapReadErr(err, "reading chunk data")
		return false
	}

	var crcBuf [4]byte
	if _, err := io.ReadFull(cs.r, crcBuf[:]); err != nil {
		cs.err = wrapReadErr(err, "reading chunk crc")
		return false
	}
	wantCRC := binary.BigEndian.Uint32(crcBuf[:])

	h := crc32.NewIEEE()
	h.Write(typ)
	h.Write(data)
	gotCRC := h.Sum32()
	if gotCRC != wantCRC {
		cs.err = pngerr.CorruptFileError{Reason: "chunk CRC-32 mismatch for " + string(typ)}
		return false
	}

	ancillary, private, reserved, safe := classify(typ)
	cs.chunk = Chunk{
		Type:       typ,
		Data:       data,
		CRC:        gotCRC,
		Ancillary:  ancillary,
		Private:    private,
		Reserved:   reserved,
		SafeToCopy: safe,
	}
	if bytes.Equal(typ, []byte("IEND")) {
		cs.done = true
	}
	return true
}

// Chunk returns the chunk most recently produced by Scan.
func (cs *chunkStream) Chunk() Chunk {
	return cs.chunk
}

// Err returns any error encountered by the stream.
func (cs *chunkStream) Err() error {
	return cs.err
}

func wrapReadErr(err error, context string) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return pngerr.UnexpectedEOFError{Context: context}
	}
	return err
}
