// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package testutil provides small helpers shared by this module's test
// files for building fixture data.
package testutil

import "math/rand"

// fixedRandSeed makes GenPredictableRandomData reproducible across runs.
const fixedRandSeed = 0x1234

// GenPredictableRandomData generates pseudo-random data from a fixed, known
// seed, for use in round-trip and fixture tests that need data that is
// "random enough" to exercise back-references but reproducible across runs.
func GenPredictableRandomData(size int) []byte {
	gen := rand.New(rand.NewSource(fixedRandSeed))
	out := make([]byte, size)
	for i := range out {
		out[i] = byte(gen.Intn(256))
	}
	return out
}

// FirstN returns at most the first n bytes of b.
func FirstN(n int, b []byte) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
