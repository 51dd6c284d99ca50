// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Command pngpeek inspects PNG files: it reports container metadata, dumps
// text annotations, and can extract the raw (still filtered) scanline
// stream. It never rasterizes pixels. Files may be local, on S3, or an
// http(s) URL.
package main

import (
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/spf13/cobra"
	"v.io/x/lib/vlog"
)

var verbose bool

func main() {
	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})

	root := &cobra.Command{
		Use:   "pngpeek",
		Short: "inspect PNG files without rendering them",
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose trace logging")

	root.AddCommand(newInspectCmd())
	root.AddCommand(newTextCmd())
	root.AddCommand(newScanlinesCmd())

	if err := root.Execute(); err != nil {
		if verbose {
			vlog.Error(err)
		}
		fmt.Fprintln(os.Stderr, "pngpeek:", err)
		os.Exit(1)
	}
}
