// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package deflate

import "github.com/cosnicolaou/pngpeek/internal/pngerr"

// windowSize is the fixed size of the DEFLATE sliding history window: 32 KiB.
const windowSize = 32768

// slidingWindow is a fixed-size ring buffer holding the most recently
// emitted bytes, used to resolve LZ77 back-references. Grounded on
// original_source/deflate/deflate.py's Buffer class, translated from a
// Python list with modular indexing to a fixed array with a write index.
type slidingWindow struct {
	data [windowSize]byte
	pos  int // index the next appended byte will occupy
	full bool
}

// append adds a single byte to the window, overwriting the oldest entry once
// the window has wrapped.
func (w *slidingWindow) append(b byte) {
	w.data[w.pos] = b
	w.pos = (w.pos + 1) % windowSize
	if w.pos == 0 {
		w.full = true
	}
}

// available returns the number of valid bytes of history currently held.
func (w *slidingWindow) available() int {
	if w.full {
		return windowSize
	}
	return w.pos
}

// copy emits length bytes read starting distance bytes behind the current
// write position to sink, appending each emitted byte back into the window
// as it goes. Because the read and append positions both advance together,
// distance < length naturally yields run-length extension: e.g. distance=1
// repeats the single preceding byte length times.
func (w *slidingWindow) copy(length, distance int, sink func(byte) error) error {
	if distance < 1 || distance > windowSize || distance > w.available() {
		return pngerr.CorruptStreamError{Reason: "back-reference distance out of range"}
	}
	readIdx := (w.pos - distance + windowSize) % windowSize
	for i := 0; i < length; i++ {
		b := w.data[readIdx]
		readIdx = (readIdx + 1) % windowSize
		if err := sink(b); err != nil {
			return err
		}
		w.append(b)
	}
	return nil
}
