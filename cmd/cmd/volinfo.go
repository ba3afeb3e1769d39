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
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/embeddedfs/fatio/internal/disk"
)

// DefineVolumeInfoCommand mounts an image or device and prints the
// populated Partition Descriptor, demonstrating the I/O Manager end to
// end without reimplementing the excluded directory/file layers.
func DefineVolumeInfoCommand() *cobra.Command {
	var (
		partitionNum          int
		cacheBytes            int
		blockSize             int
		fatCheck              bool
		legacyPartitionOffset bool
		indexedLookup         bool
		logLevel              string
		showMBR               bool
	)

	cmd := &cobra.Command{
		Use:   "volinfo <image-or-device>",
		Short: "Mount a FAT12/16/32 partition and print its descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if err := level.UnmarshalText([]byte(logLevel)); err == nil {
				slog.SetLogLoggerLevel(level)
			}

			path := args[0]
			dev, err := disk.OpenMmapBlockDevice(path, uint16(blockSize), false)
			if err != nil {
				slog.Warn("mmap open failed, falling back to file I/O", "path", path, "error", err)
				dev, err := disk.OpenFileBlockDevice(path, uint16(blockSize), false)
				if err != nil {
					return fmt.Errorf("opening %q: %w", path, err)
				}
				return mountAndPrint(dev, partitionNum, cacheBytes, blockSize, fatCheck, legacyPartitionOffset, indexedLookup, showMBR)
			}
			return mountAndPrint(dev, partitionNum, cacheBytes, blockSize, fatCheck, legacyPartitionOffset, indexedLookup, showMBR)
		},
	}

	cmd.Flags().IntVarP(&partitionNum, "partition", "p", 0, "partition number (0-3)")
	cmd.Flags().IntVar(&cacheBytes, "cache-bytes", 64*1024, "sector buffer cache size in bytes")
	cmd.Flags().IntVar(&blockSize, "block-size", 512, "device block size in bytes")
	cmd.Flags().BoolVar(&fatCheck, "fat-check", true, "run the FAT[0] sanity check during mount")
	cmd.Flags().BoolVar(&legacyPartitionOffset, "legacy-partition-offset", true, "add partition 0's LBA to partitions >0 (see SPEC_FULL.md §5.2)")
	cmd.Flags().BoolVar(&indexedLookup, "indexed-lookup", false, "use the pkg/table-backed sector index as an acquire fast path")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "CLI diagnostic log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&showMBR, "show-mbr", false, "dump the raw MBR partition table before mounting")

	return cmd
}

func mountAndPrint(dev disk.BlockDevice, partitionNum, cacheBytes, blockSize int, fatCheck, legacyOffset, indexed, showMBR bool) error {
	ioman, err := disk.NewIOManager(disk.ManagerConfig{
		CacheBytes:            uint32(cacheBytes),
		BlockSize:             uint16(blockSize),
		FATCheck:              fatCheck,
		LegacyPartitionOffset: legacyOffset,
		IndexedLookup:         indexed,
	})
	if err != nil {
		return fmt.Errorf("creating I/O manager: %w", err)
	}
	defer ioman.Destroy()

	if err := ioman.RegisterDevice(dev); err != nil {
		return fmt.Errorf("registering device: %w", err)
	}

	if showMBR {
		printMBR(ioman)
	}

	p, err := disk.MountPartition(ioman, uint8(partitionNum))
	if err != nil {
		return fmt.Errorf("mounting partition %d: %w", partitionNum, err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Field\tValue\n")
	fmt.Fprintf(w, "FS Type\t%s\n", p.FSType)
	fmt.Fprintf(w, "Partition\t%d\n", p.Num)
	fmt.Fprintf(w, "Begin LBA\t%d\n", p.BeginLBA)
	fmt.Fprintf(w, "Block Size\t%d\n", p.BlockSize)
	fmt.Fprintf(w, "Reserved Sectors\t%d\n", p.ReservedSectors)
	fmt.Fprintf(w, "Number of FATs\t%d\n", p.NumFATs)
	fmt.Fprintf(w, "Sectors/FAT\t%d\n", p.SectorsPerFAT)
	fmt.Fprintf(w, "Sectors/Cluster\t%d\n", p.SectorsPerCluster)
	fmt.Fprintf(w, "FAT Begin LBA\t%d\n", p.FatBeginLBA)
	fmt.Fprintf(w, "Root Dir Cluster\t%d\n", p.RootDirCluster)
	fmt.Fprintf(w, "Root Dir Sectors\t%d\n", p.RootDirSectors)
	fmt.Fprintf(w, "First Data Sector\t%d\n", p.FirstDataSector)
	fmt.Fprintf(w, "Total Sectors\t%d\n", p.TotalSectors)
	fmt.Fprintf(w, "Data Sectors\t%d\n", p.DataSectors)
	fmt.Fprintf(w, "Num Clusters\t%d\n", p.NumClusters)
	fmt.Fprintf(w, "Volume Size\t%d bytes\n", ioman.VolumeSize())

	return nil
}

// printMBR dumps sector 0's partition table via MBR.String() ahead of the
// mount itself; a device formatted as an unpartitioned BPB rather than an
// MBR just logs that it has no partition table to show.
func printMBR(ioman *disk.IOManager) {
	h, err := ioman.Acquire(0, disk.ModeRead)
	if err != nil {
		slog.Warn("show-mbr: reading sector 0 failed", "error", err)
		return
	}
	sector0 := append([]byte(nil), h.Bytes()...)
	ioman.Release(h)

	mbr, err := disk.ParseMBR(sector0)
	if err != nil {
		slog.Info("show-mbr: sector 0 is not an MBR (unpartitioned device)", "error", err)
		return
	}
	fmt.Println(mbr.String())
}
