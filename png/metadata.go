// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package png

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/cosnicolaou/pngpeek/internal/deflate"
	"github.com/cosnicolaou/pngpeek/internal/pngerr"
)

// PixelType classifies the fundamental pixel layout implied by color_type,
// per the PNG 1.2 IHDR semantics.
type PixelType int

const (
	Grayscale PixelType = iota
	Truecolor
	IndexedColor
)

func (t PixelType) String() string {
	switch t {
	case Grayscale:
		return "grayscale"
	case Truecolor:
		return "truecolor"
	case IndexedColor:
		return "indexed-color"
	default:
		return "unknown"
	}
}

// RGB is one three-channel palette entry.
type RGB struct{ R, G, B uint8 }

// RGBA is a palette entry extended with an alpha channel by tRNS.
type RGBA struct{ R, G, B, A uint8 }

// Rational is a numerator/denominator pair, used for gAMA.
type Rational struct{ Numerator, Denominator uint32 }

// TextEntry is one decoded tEXt/zTXt/iTXt annotation.
type TextEntry struct {
	Keyword          string
	Text             string
	Compressed       bool
	LanguageTag      string // iTXt only
	TranslatedKeyword string // iTXt only
}

// Picture is the accumulated result of reading a PNG file: container-level
// metadata plus the still-filtered, still-interlaced scanline bytes. It is
// built once by Reader.Picture and is read-only thereafter.
type Picture struct {
	Width, Height                                   uint32
	BitDepth, ColorType                              uint8
	SampleDepth                                      uint8
	TypeOfPixel                                      PixelType
	AlphaChannel                                     bool
	CompressionMethod, FilterMethod, InterlaceMethod uint8

	Palette []RGB

	HasBackgroundColor bool
	BackgroundColor    [3]uint16 // interpretation depends on TypeOfPixel

	HasGamma bool
	Gamma    Rational

	HasModTime bool
	ModTime    time.Time

	HasTransparency    bool
	PaletteAlpha       []uint8  // indexed-color: per-palette-entry alpha
	TransparentColor   [3]uint16 // grayscale/truecolor: single fully-transparent sample

	Text []TextEntry

	// RawScanlines is the concatenated, inflated IDAT stream: still filtered
	// per-scanline and, for interlaced images, still Adam7-interleaved.
	// Unfiltering and deinterlacing are a renderer's responsibility.
	RawScanlines []byte

	// Chunks records every chunk encountered, in file order, for diagnostics
	// (cmd/pngpeek inspect --verbose).
	Chunks []Chunk
}

// builder accumulates a Picture across a chunk stream.
type builder struct {
	pic       Picture
	sawIHDR   bool
	idatParts [][]byte
}

func newBuilder() *builder {
	return &builder{}
}

// knownCritical is the set of critical chunk types this reader understands.
var knownCritical = map[string]bool{
	"IHDR": true, "PLTE": true, "IDAT": true, "IEND": true,
}

// knownAncillary is the set of ancillary chunk types this reader decodes.
var knownAncillary = map[string]bool{
	"bKGD": true, "gAMA": true, "iTXt": true, "tEXt": true,
	"tIME": true, "tRNS": true, "zTXt": true,
}

// apply dispatches a single chunk into the builder, following
// reader.py's __analyze_chunks / chunk_wrapper semantics: errors decoding an
// ancillary chunk are swallowed (the field is simply left unset), errors
// decoding a critical chunk abort the whole load.
func (b *builder) apply(c Chunk) error {
	b.pic.Chunks = append(b.pic.Chunks, c)
	name := c.TypeString()

	if !knownCritical[name] && !knownAncillary[name] {
		if !c.Ancillary {
			return pngerr.UnsupportedFileError{Reason: "unknown critical chunk " + name}
		}
		return nil
	}

	if name != "IHDR" && !b.sawIHDR {
		return pngerr.CorruptFileError{Reason: "IHDR must be the first chunk"}
	}

	var err error
	switch name {
	case "IHDR":
		err = b.readIHDR(c.Data)
	case "PLTE":
		err = b.readPLTE(c.Data)
	case "IDAT":
		b.idatParts = append(b.idatParts, c.Data)
	case "IEND":
	case "bKGD":
		err = b.readBKGD(c.Data)
	case "gAMA":
		err = b.readGAMA(c.Data)
	case "tEXt":
		err = b.readTEXt(c.Data)
	case "zTXt":
		err = b.readZTXt(c.Data)
	case "iTXt":
		err = b.readITXt(c.Data)
	case "tIME":
		err = b.readTIME(c.Data)
	case "tRNS":
		err = b.readTRNS(c.Data)
	}

	if err == nil {
		return nil
	}
	if !c.Ancillary {
		return err
	}
	// Ancillary decode failures are non-fatal: the field stays unset.
	return nil
}

// sampleDepthAndPixelType derives sample_depth/type_of_pixel/alpha_channel
// from (color_type, bit_depth), per the PNG 1.2 table, and rejects invalid
// combinations.
func sampleDepthAndPixelType(colorType, bitDepth uint8) (PixelType, uint8, bool, error) {
	validDepths := func(depths ...uint8) bool {
		for _, d := range depths {
			if d == bitDepth {
				return true
			}
		}
		return false
	}
	switch colorType {
	case 0: // grayscale
		if !validDepths(1, 2, 4, 8, 16) {
			break
		}
		return Grayscale, bitDepth, false, nil
	case 2: // truecolor
		if !validDepths(8, 16) {
			break
		}
		return Truecolor, bitDepth, false, nil
	case 3: // indexed-color
		if !validDepths(1, 2, 4, 8) {
			break
		}
		// Palette entries are always full RGB triples regardless of the
		// index width, so sample_depth is pinned to 8 here (reader.py's
		// __read_IHDR: self.sample_depth = 8 for INDEXED_COLOR, unlike every
		// other color_type where it equals bit_depth).
		return IndexedColor, 8, false, nil
	case 4: // grayscale + alpha
		if !validDepths(8, 16) {
			break
		}
		return Grayscale, bitDepth, true, nil
	case 6: // truecolor + alpha
		if !validDepths(8, 16) {
			break
		}
		return Truecolor, bitDepth, true, nil
	}
	return 0, 0, false, pngerr.UnsupportedFileError{Reason: "invalid color_type/bit_depth combination"}
}

func (b *builder) readIHDR(d []byte) error {
	if len(d) != 13 {
		return pngerr.CorruptFileError{Reason: "IHDR must be 13 bytes"}
	}
	pixType, sampleDepth, alpha, err := sampleDepthAndPixelType(d[9], d[8])
	if err != nil {
		return err
	}
	b.pic.Width = binary.BigEndian.Uint32(d[0:4])
	b.pic.Height = binary.BigEndian.Uint32(d[4:8])
	b.pic.BitDepth = d[8]
	b.pic.ColorType = d[9]
	b.pic.CompressionMethod = d[10]
	b.pic.FilterMethod = d[11]
	b.pic.InterlaceMethod = d[12]
	b.pic.TypeOfPixel = pixType
	b.pic.SampleDepth = sampleDepth
	b.pic.AlphaChannel = alpha
	b.sawIHDR = true
	return nil
}

func (b *builder) readPLTE(d []byte) error {
	if len(d)%3 != 0 {
		return pngerr.CorruptFileError{Reason: "PLTE length not a multiple of 3"}
	}
	maxEntries := 1 << b.pic.BitDepth
	n := len(d) / 3
	if n > maxEntries {
		return pngerr.CorruptFileError{Reason: "PLTE has more entries than bit_depth allows"}
	}
	palette := make([]RGB, n)
	for i := 0; i < n; i++ {
		palette[i] = RGB{d[i*3], d[i*3+1], d[i*3+2]}
	}
	b.pic.Palette = palette
	return nil
}

func (b *builder) readBKGD(d []byte) error {
	switch b.pic.TypeOfPixel {
	case IndexedColor:
		if len(d) != 1 {
			return pngerr.CorruptFileError{Reason: "bKGD for indexed-color must be 1 byte"}
		}
		if int(d[0]) >= len(b.pic.Palette) {
			return pngerr.CorruptFileError{Reason: "bKGD index exceeds palette size"}
		}
		// Resolve the index to its palette RGB, matching reader.py's
		// __read_bKGD: self.palette[data[0]] rather than the raw index.
		rgb := b.pic.Palette[d[0]]
		b.pic.BackgroundColor = [3]uint16{uint16(rgb.R), uint16(rgb.G), uint16(rgb.B)}
	case Grayscale:
		if len(d) != 2 {
			return pngerr.CorruptFileError{Reason: "bKGD for grayscale must be 2 bytes"}
		}
		b.pic.BackgroundColor = [3]uint16{binary.BigEndian.Uint16(d), 0, 0}
	case Truecolor:
		if len(d) != 6 {
			return pngerr.CorruptFileError{Reason: "bKGD for truecolor must be 6 bytes"}
		}
		b.pic.BackgroundColor = [3]uint16{
			binary.BigEndian.Uint16(d[0:2]),
			binary.BigEndian.Uint16(d[2:4]),
			binary.BigEndian.Uint16(d[4:6]),
		}
	}
	b.pic.HasBackgroundColor = true
	return nil
}

func (b *builder) readGAMA(d []byte) error {
	if len(d) != 4 {
		return pngerr.CorruptFileError{Reason: "gAMA must be 4 bytes"}
	}
	b.pic.Gamma = Rational{Numerator: binary.BigEndian.Uint32(d), Denominator: 100000}
	b.pic.HasGamma = true
	return nil
}

func (b *builder) readTIME(d []byte) error {
	if len(d) != 7 {
		return pngerr.CorruptFileError{Reason: "tIME must be 7 bytes"}
	}
	year := int(binary.BigEndian.Uint16(d[0:2]))
	b.pic.ModTime = time.Date(year, time.Month(d[2]), int(d[3]), int(d[4]), int(d[5]), int(d[6]), 0, time.UTC)
	b.pic.HasModTime = true
	return nil
}

func (b *builder) readTRNS(d []byte) error {
	switch b.pic.TypeOfPixel {
	case IndexedColor:
		alpha := make([]uint8, len(b.pic.Palette))
		for i := range alpha {
			alpha[i] = 255
		}
		if len(d) > len(alpha) {
			return pngerr.CorruptFileError{Reason: "tRNS has more entries than PLTE"}
		}
		copy(alpha, d)
		b.pic.PaletteAlpha = alpha
	case Grayscale:
		if len(d) != 2 {
			return pngerr.CorruptFileError{Reason: "tRNS for grayscale must be 2 bytes"}
		}
		b.pic.TransparentColor = [3]uint16{binary.BigEndian.Uint16(d), 0, 0}
	case Truecolor:
		if len(d) != 6 {
			return pngerr.CorruptFileError{Reason: "tRNS for truecolor must be 6 bytes"}
		}
		b.pic.TransparentColor = [3]uint16{
			binary.BigEndian.Uint16(d[0:2]),
			binary.BigEndian.Uint16(d[2:4]),
			binary.BigEndian.Uint16(d[4:6]),
		}
	}
	b.pic.HasTransparency = true
	return nil
}

func (b *builder) readTEXt(d []byte) error {
	i := bytes.IndexByte(d, 0)
	if i < 0 {
		return pngerr.CorruptFileError{Reason: "tEXt missing null separator"}
	}
	b.pic.Text = append(b.pic.Text, TextEntry{
		Keyword: string(d[:i]),
		Text:    string(d[i+1:]),
	})
	return nil
}

func (b *builder) readZTXt(d []byte) error {
	i := bytes.IndexByte(d, 0)
	if i < 0 || i+1 >= len(d) {
		return pngerr.CorruptFileError{Reason: "zTXt missing null separator"}
	}
	method := d[i+1]
	if method != 0 {
		return pngerr.UnsupportedFileError{Reason: "zTXt compression method must be 0"}
	}
	text, err := deflate.InflateZlib(bytes.NewReader(d[i+2:]), false)
	if err != nil {
		return err
	}
	b.pic.Text = append(b.pic.Text, TextEntry{
		Keyword:    string(d[:i]),
		Text:       string(text),
		Compressed: true,
	})
	return nil
}

func (b *builder) readITXt(d []byte) error {
	i := bytes.IndexByte(d, 0)
	if i < 0 || i+2 >= len(d) {
		return pngerr.CorruptFileError{Reason: "iTXt missing null separator"}
	}
	keyword := string(d[:i])
	compressionFlag := d[i+1]
	compressionMethod := d[i+2]
	rest := d[i+3:]

	j := bytes.IndexByte(rest, 0)
	if j < 0 {
		return pngerr.CorruptFileError{Reason: "iTXt missing language tag separator"}
	}
	language := string(rest[:j])
	rest = rest[j+1:]

	k := bytes.IndexByte(rest, 0)
	if k < 0 {
		return pngerr.CorruptFileError{Reason: "iTXt missing translated keyword separator"}
	}
	translated := string(rest[:k])
	textBytes := rest[k+1:]

	entry := TextEntry{Keyword: keyword, LanguageTag: language, TranslatedKeyword: translated}
	if compressionFlag == 1 {
		if compressionMethod != 0 {
			return pngerr.UnsupportedFileError{Reason: "iTXt compression method must be 0"}
		}
		text, err := deflate.InflateZlib(bytes.NewReader(textBytes), false)
		if err != nil {
			return err
		}
		entry.Text = string(text)
		entry.Compressed = true
	} else {
		entry.Text = string(textBytes)
	}
	b.pic.Text = append(b.pic.Text, entry)
	return nil
}

// finish validates that IHDR/PLTE requirements were satisfied and inflates
// the concatenated IDAT payload into RawScanlines.
func (b *builder) finish(checkAdler bool) (*Picture, error) {
	if !b.sawIHDR {
		return nil, pngerr.CorruptFileError{Reason: "missing IHDR chunk"}
	}
	if b.pic.TypeOfPixel == IndexedColor && len(b.pic.Palette) == 0 {
		return nil, pngerr.UnsupportedFileError{Reason: "indexed-color image missing PLTE"}
	}

	var idat bytes.Buffer
	for _, part := range b.idatParts {
		idat.Write(part)
	}
	scanlines, err := deflate.InflateZlib(&idat, checkAdler)
	if err != nil {
		return nil, err
	}
	b.pic.RawScanlines = scanlines
	return &b.pic, nil
}
