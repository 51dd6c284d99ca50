// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package deflate

import (
	"bytes"
	"testing"
)

func TestBitReaderLSBOrder(t *testing.T) {
	br := newBitReader(bytes.NewReader([]byte{0x63, 0xF8}))
	want := []uint{1, 1, 0, 0, 0, 1, 1, 0, 0, 0, 0, 1, 1, 1, 1, 1}
	for i, w := range want {
		got, err := br.ReadBit()
		if err != nil {
			t.Fatalf("bit %d: unexpected error: %v", i, err)
		}
		if got != w {
			t.Errorf("bit %d: got %d want %d", i, got, w)
		}
	}
}

func TestBitReaderMixed(t *testing.T) {
	data := []byte{0xB7, 0xC5, 0xBD, 0xDA, 0x5B, 0xD0, 0x3A, 0xD5, 0x19, 0x3A, 0x41, 0xA6}
	br := newBitReader(bytes.NewReader(data))

	for i := 0; i < 7; i++ {
		if _, err := br.ReadBit(); err != nil {
			t.Fatalf("reading bit %d of first byte: %v", i, err)
		}
	}
	for i := 0; i < 5; i++ {
		if _, err := br.ReadBit(); err != nil {
			t.Fatalf("reading bit %d of second byte: %v", i, err)
		}
	}
	b, err := br.ReadByte()
	if err != nil {
		t.Fatalf("ReadByte: %v", err)
	}
	if b != 0xBD {
		t.Errorf("got %#02x want %#02x", b, 0xBD)
	}
	if pos := br.BitPosition(); pos != 0 {
		t.Errorf("BitPosition after ReadByte: got %d want 0", pos)
	}
}

func TestBitReaderReadBits(t *testing.T) {
	br := newBitReader(bytes.NewReader([]byte{0x63, 0xF8}))
	v, err := br.ReadBits(8)
	if err != nil {
		t.Fatalf("ReadBits: %v", err)
	}
	if v != 0x63 {
		t.Errorf("got %#02x want %#02x", v, 0x63)
	}
}

func TestBitReaderUnexpectedEOF(t *testing.T) {
	br := newBitReader(bytes.NewReader(nil))
	if _, err := br.ReadBit(); err == nil {
		t.Fatalf("expected an error reading past EOF")
	}
	if err := br.Err(); err == nil {
		t.Fatalf("expected Err() to be sticky")
	}
}
