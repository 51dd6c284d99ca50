// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package deflate

import (
	"bytes"
	"testing"
)

func TestSlidingWindowRunLengthExtension(t *testing.T) {
	var w slidingWindow
	w.append('x')

	var out bytes.Buffer
	err := w.copy(5, 1, func(b byte) error {
		out.WriteByte(b)
		return nil
	})
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if out.String() != "xxxxx" {
		t.Errorf("got %q want %q", out.String(), "xxxxx")
	}
}

func TestSlidingWindowBackReference(t *testing.T) {
	var w slidingWindow
	for _, b := range []byte("abcdef") {
		w.append(b)
	}
	var out bytes.Buffer
	if err := w.copy(3, 6, func(b byte) error { out.WriteByte(b); return nil }); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if out.String() != "abc" {
		t.Errorf("got %q want %q", out.String(), "abc")
	}
}

func TestSlidingWindowDistanceOutOfRange(t *testing.T) {
	var w slidingWindow
	w.append('a')
	if err := w.copy(1, 2, func(byte) error { return nil }); err == nil {
		t.Fatalf("expected an error for distance exceeding available history")
	}
}
