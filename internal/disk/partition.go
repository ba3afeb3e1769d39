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
package disk

import "fmt"

// FSType classifies a mounted partition's FAT flavor, determined purely
// from cluster count per the Mount Procedure (spec.md §4.4 step 6).
type FSType uint8

const (
	FSUnknown FSType = iota
	FSFat12
	FSFat16
	FSFat32
)

func (t FSType) String() string {
	switch t {
	case FSFat12:
		return "FAT12"
	case FSFat16:
		return "FAT16"
	case FSFat32:
		return "FAT32"
	default:
		return "unknown"
	}
}

// Partition is the populated Partition Descriptor of spec.md §3, the
// return value of MountPartition. Every field below is derived solely
// from the MBR entry and the BPB read during the Mount Procedure; no
// directory- or file-level information is carried here.
type Partition struct {
	FSType FSType
	Num    int

	// BeginLBA is the partition's starting sector on the underlying
	// device, already adjusted per ManagerConfig.LegacyPartitionOffset.
	BeginLBA uint32

	BlockSize uint32

	ReservedSectors   uint32
	NumFATs           uint32
	SectorsPerFAT     uint32
	SectorsPerCluster uint32

	// FatBeginLBA is BeginLBA + ReservedSectors.
	FatBeginLBA uint32

	// RootDirCluster is the first cluster of the root directory for
	// FAT32; for FAT12/16, whose root directory is a fixed-size region
	// rather than a cluster chain, it carries the sentinel value 1.
	RootDirCluster uint32

	// RootDirSectors is the size, in sectors, of a FAT12/16 fixed-size
	// root directory region; zero for FAT32.
	RootDirSectors uint32

	// FirstDataSector is FatBeginLBA + NumFATs*SectorsPerFAT + RootDirSectors.
	FirstDataSector uint32

	TotalSectors uint32
	DataSectors  uint32
	NumClusters  uint32
}

// Size returns the volume's size in bytes (spec.md §4.5/P6): the data
// region only (NumClusters * SectorsPerCluster * BlockSize), excluding
// the reserved, FAT, and root-directory overhead folded into TotalSectors.
func (p *Partition) Size() uint64 {
	return uint64(p.NumClusters) * uint64(p.SectorsPerCluster) * uint64(p.BlockSize)
}

func (p *Partition) String() string {
	return fmt.Sprintf("partition %d: %s, beginLBA=%d, totalSectors=%d, clusters=%d, clusterSize=%d sectors",
		p.Num, p.FSType, p.BeginLBA, p.TotalSectors, p.NumClusters, p.SectorsPerCluster)
}
