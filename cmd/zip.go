/*******************************************************************************
 * Copyright (c) 2025 Genome Research Ltd.
 *
 * Author: Michael Woolnough <mw31@sanger.ac.uk>
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wtsi-hgi/library-exports/zipper"
)

var ErrNoOutput = errors.New("no output file given")

// options for this cmd.
var (
	zipOutput  string
	zipStore   bool
	zipWorkers int
)

// zipCmd represents the zip command.
var zipCmd = &cobra.Command{
	Use:   "zip -o <out.zip> <file>...",
	Short: "Create a zip archive of the given files",
	Long: `Create a zip archive of the given files.

Each file is added to the archive under its base name, in the order given.
Files ending in .gz are decompressed first and added without the .gz suffix.

Entries are compressed with DEFLATE, unless --store is given.
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if zipOutput == "" {
			return ErrNoOutput
		}

		method := zipper.Deflate
		if zipStore {
			method = zipper.Store
		}

		n, err := writeZip(zipOutput, method, args)
		if err != nil {
			os.Remove(zipOutput)

			return err
		}

		cliPrintf("wrote %d files to %s\n", n, zipOutput)

		return nil
	},
}

func init() {
	RootCmd.AddCommand(zipCmd)

	// flags specific to this sub-command
	zipCmd.Flags().StringVarP(&zipOutput, "output", "o", "", "path to write the zip file to")
	zipCmd.Flags().BoolVarP(&zipStore, "store", "s", false, "store files without compression")
	zipCmd.Flags().IntVarP(&zipWorkers, "workers", "w", runtime.NumCPU(), "number of files to compress in parallel")
}

func writeZip(output string, method zipper.Method, paths []string) (int, error) {
	f, err := os.Create(output)
	if err != nil {
		return 0, err
	}

	bw := bufio.NewWriter(f)
	zw := zipper.NewWriter(bw, method)

	if err = zipper.WriteAll(context.Background(), zw, readFiles(paths), zipWorkers); err == nil {
		err = zw.Close()
	}

	if err == nil {
		err = bw.Flush()
	}

	if errc := f.Close(); err == nil {
		err = errc
	}

	return zw.Entries(), err
}

func readFiles(paths []string) iter.Seq2[zipper.Record, error] {
	return func(yield func(zipper.Record, error) bool) {
		for _, path := range paths {
			data, err := readInput(path)
			if err != nil {
				yield(zipper.Record{}, fmt.Errorf("error reading %s: %w", path, err))

				return
			}

			if !yield(zipper.Record{Name: strings.TrimSuffix(filepath.Base(path), ".gz"), Data: data}, nil) {
				return
			}
		}
	}
}

func readInput(path string) ([]byte, error) {
	r, err := openInput(path)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if errc := r.Close(); err == nil {
		err = errc
	}

	return data, err
}
