// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package png

import (
	"io"
	"os"

	"github.com/cosnicolaou/pngpeek/internal/pngerr"
)

type readerOpts struct {
	checkAdler   bool
	maxChunkSize int
}

// ReadOption represents an option to Open/NewReader.
type ReadOption func(*readerOpts)

// WithAdlerCheck enables or disables the trailing Adler-32 verification
// described in §4.4: on by default, a caller in a hurry (e.g. a thumbnailer
// that only wants IHDR-level metadata and can tolerate a truncated/corrupt
// IDAT) can turn it off.
func WithAdlerCheck(check bool) ReadOption {
	return func(o *readerOpts) { o.checkAdler = check }
}

// WithMaxChunkSize bounds the length field accepted for any single chunk,
// guarding against a hostile or corrupt length forcing a huge allocation.
// Zero (the default) means unbounded.
func WithMaxChunkSize(n int) ReadOption {
	return func(o *readerOpts) { o.maxChunkSize = n }
}

// Reader reads a single PNG file's chunk stream and assembles its Picture.
// It is single-use: once Picture has been called, the Reader is spent.
type Reader struct {
	r    io.Reader
	c    io.Closer
	opts readerOpts
}

// NewReader returns a Reader over an already-open byte source. If r
// implements io.Closer, Picture closes it before returning, on both success
// and error paths.
func NewReader(r io.Reader, opts ...ReadOption) *Reader {
	o := readerOpts{checkAdler: true}
	for _, fn := range opts {
		fn(&o)
	}
	rd := &Reader{r: r, opts: o}
	if c, ok := r.(io.Closer); ok {
		rd.c = c
	}
	return rd
}

// Open opens the named file and returns a Reader over it; the file is
// closed automatically when Picture returns, on both success and error
// paths.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pngerr.NotAFileError(path)
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, pngerr.NotAFileError(path)
	}
	r := NewReader(f)
	r.c = f
	return r, nil
}

// Picture parses the PNG file and returns its accumulated metadata plus
// inflated (still filtered, still possibly interlaced) scanline bytes.
func (r *Reader) Picture() (*Picture, error) {
	if r.c != nil {
		defer r.c.Close()
	}

	cs, err := newChunkStream(r.r, r.opts.maxChunkSize)
	if err != nil {
		return nil, err
	}

	b := newBuilder()
	for cs.Scan() {
		if err := b.apply(cs.Chunk()); err != nil {
			return nil, err
		}
	}
	if err := cs.Err(); err != nil {
		return nil, err
	}

	return b.finish(r.opts.checkAdler)
}
