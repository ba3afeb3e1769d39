// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package cmd

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/embeddedfs/fatio/internal/disk"
	ioutil "github.com/embeddedfs/fatio/pkg/util/io"
)

// DefineDumpSectorCommand acquires one sector through the I/O Manager
// and writes its raw bytes to a file, for offline inspection with a hex
// editor. Along with volinfo's --show-mbr, it is one of the two CLI paths
// that acquire a sector from the buffer cache directly, without needing
// the excluded directory/file layers.
func DefineDumpSectorCommand() *cobra.Command {
	var (
		sector    uint32
		blockSize int
		out       string
	)

	cmd := &cobra.Command{
		Use:   "dump-sector <image-or-device>",
		Short: "Acquire one sector through the I/O Manager and write it to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := args[0]

			dev, err := disk.OpenMmapBlockDevice(path, uint16(blockSize), false)
			if err != nil {
				return fmt.Errorf("opening %q: %w", path, err)
			}
			defer dev.Close()

			ioman, err := disk.NewIOManager(disk.ManagerConfig{
				CacheBytes: uint32(blockSize) * 4,
				BlockSize:  uint16(blockSize),
			})
			if err != nil {
				return fmt.Errorf("creating I/O manager: %w", err)
			}
			defer ioman.Destroy()

			if err := ioman.RegisterDevice(dev); err != nil {
				return fmt.Errorf("registering device: %w", err)
			}

			h, err := ioman.Acquire(sector, disk.ModeRead)
			if err != nil {
				return fmt.Errorf("acquiring sector %d: %w", sector, err)
			}
			defer ioman.Release(h)

			if err := ioutil.CopyFile(out, bytes.NewReader(h.Bytes())); err != nil {
				return fmt.Errorf("writing %q: %w", out, err)
			}
			return nil
		},
	}

	cmd.Flags().Uint32Var(&sector, "sector", 0, "sector (LBA) to dump")
	cmd.Flags().IntVar(&blockSize, "block-size", 512, "device block size in bytes")
	cmd.Flags().StringVarP(&out, "out", "o", "sector.bin", "output file path")

	return cmd
}
