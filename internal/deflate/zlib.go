// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package deflate

import (
	"encoding/binary"
	"hash/adler32"
	"io"

	"github.com/cosnicolaou/pngpeek/internal/pngerr"
)

// InflateZlib inflates a zlib-framed DEFLATE stream (RFC 1950), the framing
// PNG IDAT data and compressed text chunks both use. The 2 byte zlib header
// is discarded without validation (PNG fixes CM/CINFO/FDICT); the trailing
// 4 byte big-endian Adler-32 is compared against the inflated output's own
// checksum when checkAdler is true.
func InflateZlib(r io.Reader, checkAdler bool) ([]byte, error) {
	br := newBitReader(r)

	// The zlib header occupies the first two bytes and is never bit-packed
	// with the DEFLATE stream that follows, so it is read byte-aligned and
	// discarded before the bit reader is handed to the Decompressor.
	if _, err := br.ReadByte(); err != nil {
		return nil, err
	}
	if _, err := br.ReadByte(); err != nil {
		return nil, err
	}

	d := &Decompressor{br: br}
	out, err := d.Inflate()
	if err != nil {
		return nil, err
	}

	if !checkAdler {
		return out, nil
	}

	// The trailer follows immediately after the final block, byte-aligned.
	for br.BitPosition() != 0 {
		if _, err := br.ReadBit(); err != nil {
			return nil, err
		}
	}
	var trailer [4]byte
	for i := range trailer {
		b, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		trailer[i] = b
	}
	want := binary.BigEndian.Uint32(trailer[:])
	got := adler32.Checksum(out)
	if want != got {
		return nil, pngerr.ChecksumMismatchError{Want: want, Got: got}
	}
	return out, nil
}
