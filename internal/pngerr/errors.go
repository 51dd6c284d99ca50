// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package pngerr defines the typed error kinds returned by the PNG reader
// and its DEFLATE decompressor.
package pngerr

import "fmt"

// NotAFileError is returned when the supplied path does not refer to a
// regular, readable file.
type NotAFileError string

func (e NotAFileError) Error() string {
	return "pngpeek: not a file: " + string(e)
}

// NotPngError is returned when the 8 byte PNG signature does not match.
type NotPngError struct{}

func (NotPngError) Error() string {
	return "pngpeek: not a PNG file: bad signature"
}

// CorruptFileError is returned for container-level damage: a chunk CRC
// mismatch or a truncated chunk.
type CorruptFileError struct {
	Reason string
}

func (e CorruptFileError) Error() string {
	return "pngpeek: corrupt file: " + e.Reason
}

// UnsupportedFileError is returned when the file is well-formed but uses a
// feature this reader deliberately does not support: an unknown critical
// chunk, an invalid (color_type, bit_depth) pair, or a non-zero compression
// method in a text chunk.
type UnsupportedFileError struct {
	Reason string
}

func (e UnsupportedFileError) Error() string {
	return "pngpeek: unsupported file: " + e.Reason
}

// CorruptStreamError is returned for damage found while inflating a DEFLATE
// stream: an invalid block type, a bad stored-block length pair, an invalid
// Huffman code, or an out-of-range length/distance.
type CorruptStreamError struct {
	Reason string
}

func (e CorruptStreamError) Error() string {
	return "pngpeek: corrupt deflate stream: " + e.Reason
}

// UnexpectedEOFError is returned when the input is exhausted mid-operation.
type UnexpectedEOFError struct {
	Context string
}

func (e UnexpectedEOFError) Error() string {
	return fmt.Sprintf("pngpeek: unexpected end of input: %s", e.Context)
}

// ChecksumMismatchError is returned when a computed Adler-32 does not match
// the trailer recorded in the zlib stream.
type ChecksumMismatchError struct {
	Want, Got uint32
}

func (e ChecksumMismatchError) Error() string {
	return fmt.Sprintf("pngpeek: adler-32 mismatch: want %#08x got %#08x", e.Want, e.Got)
}
