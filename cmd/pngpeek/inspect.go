// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cosnicolaou/pngpeek/png"
	"github.com/schollz/progressbar/v2"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"
	"v.io/x/lib/vlog"
)

// progressReader wraps an io.Reader and advances a progress bar by the
// number of bytes that pass through Read, the way the donor's unzip command
// advances its bar per compressed block consumed.
type progressReader struct {
	r   io.Reader
	bar *progressbar.ProgressBar
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.bar.Add(n)
	}
	return n, err
}

func openPicture(path string, withProgress bool) (*png.Picture, error) {
	rd, err := openFileOrURL(context.Background(), path)
	if err != nil {
		return nil, err
	}

	var src io.Reader = rd
	if withProgress {
		isTTY := terminal.IsTerminal(int(os.Stdout.Fd()))
		wr := os.Stdout
		if !isTTY {
			wr = os.Stderr
		}
		size := int64(0)
		if sized, ok := rd.(interface{ Len() int }); ok {
			size = int64(sized.Len())
		}
		bar := progressbar.NewOptions64(size,
			progressbar.OptionSetWriter(wr),
			progressbar.OptionSetBytes64(size),
			progressbar.OptionSetPredictTime(true))
		bar.RenderBlank()
		src = &progressReader{r: rd, bar: bar}
		defer fmt.Fprintln(wr)
	}

	r := png.NewReader(src)
	return r.Picture()
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <path>",
		Short: "print PNG container metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pic, err := openPicture(args[0], false)
			if err != nil {
				return err
			}
			fmt.Printf("size:        %dx%d\n", pic.Width, pic.Height)
			fmt.Printf("bit depth:   %d\n", pic.BitDepth)
			fmt.Printf("pixel type:  %s (color_type=%d)\n", pic.TypeOfPixel, pic.ColorType)
			fmt.Printf("alpha:       %v\n", pic.AlphaChannel)
			fmt.Printf("interlace:   %d\n", pic.InterlaceMethod)
			if len(pic.Palette) > 0 {
				fmt.Printf("palette:     %d entries\n", len(pic.Palette))
			}
			if pic.HasGamma {
				fmt.Printf("gamma:       %d/%d\n", pic.Gamma.Numerator, pic.Gamma.Denominator)
			}
			if pic.HasModTime {
				fmt.Printf("modified:    %s\n", pic.ModTime)
			}
			if len(pic.Text) > 0 {
				fmt.Printf("text keys:   ")
				for i, t := range pic.Text {
					if i > 0 {
						fmt.Print(", ")
					}
					fmt.Print(t.Keyword)
				}
				fmt.Println()
			}
			if verbose {
				for _, c := range pic.Chunks {
					vlog.VI(1).Infof("chunk %s len=%d ancillary=%v private=%v reserved=%v safe-to-copy=%v",
						c.TypeString(), len(c.Data), c.Ancillary, c.Private, c.Reserved, c.SafeToCopy)
				}
			}
			return nil
		},
	}
}

func newTextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "text <path>",
		Short: "dump decoded tEXt/zTXt/iTXt entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pic, err := openPicture(args[0], false)
			if err != nil {
				return err
			}
			for _, t := range pic.Text {
				fmt.Printf("%s: %s\n", t.Keyword, t.Text)
			}
			return nil
		},
	}
}

func newScanlinesCmd() *cobra.Command {
	var output string
	var withProgress bool
	cmd := &cobra.Command{
		Use:   "scanlines <path>",
		Short: "write the raw inflated scanline stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pic, err := openPicture(args[0], withProgress)
			if err != nil {
				return err
			}
			w := io.Writer(os.Stdout)
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			_, err = w.Write(pic.RawScanlines)
			return err
		},
	}
	cmd.Flags().StringVar(&output, "output", "", "output file, omit for stdout")
	cmd.Flags().BoolVar(&withProgress, "progress", false, "display a progress bar while reading the fetched file's chunks")
	return cmd
}
