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

import (
	"encoding/binary"
	"fmt"
)

// FAT12/16 cluster-count classification thresholds (spec.md §4.4 step 6).
const (
	maxFat12Clusters = 4085
	maxFat16Clusters = 65525
)

// MountPartition runs the Mount Procedure (spec.md §4.4) against the
// device already registered with ioman, populating and returning a
// Partition descriptor for partitionIndex (0-3). partitionIndex 0 is
// tried first as an unpartitioned ("superfloppy") FAT volume occupying
// the whole device; if sector 0 isn't itself a valid BPB, it is reread
// as an MBR and partitionIndex selects one of its four primary entries.
//
// Every buffer MountPartition acquires is released before it returns,
// success or failure; it never leaves a handle outstanding.
func MountPartition(ioman *IOManager, partitionIndex uint8) (*Partition, error) {
	if ioman == nil {
		return nil, ErrNullPointer
	}
	if partitionIndex > 3 {
		return nil, ErrInvalidPartitionNum
	}

	ioman.mu.Lock()
	if ioman.partition != nil {
		ioman.mu.Unlock()
		return nil, ErrManagerAlreadyMounted
	}
	ioman.mu.Unlock()

	h0, err := ioman.Acquire(0, ModeRead)
	if err != nil {
		return nil, fmt.Errorf("mount: reading sector 0: %w", err)
	}
	sector0 := append([]byte(nil), h0.Bytes()...)
	ioman.Release(h0)

	var (
		beginLBA  uint32
		bpbSector []byte
	)

	if _, ok := hasValidBytesPerSector(sector0); ok {
		// spec.md §4.4 step 2: bytes-per-sector at sector 0 offset 0x0B is
		// a positive multiple of 512, so the volume is unpartitioned and
		// the BPB lives in sector 0 itself.
		if partitionIndex != 0 {
			return nil, fmt.Errorf("%w: device has no partition table, only partition 0 (unpartitioned) is mountable", ErrInvalidPartitionNum)
		}
		beginLBA = 0
		bpbSector = sector0
	} else {
		// spec.md §4.4 step 3: sector 0 is an MBR.
		mbr, err := ParseMBR(sector0)
		if err != nil {
			return nil, fmt.Errorf("%w: sector 0 is neither a valid BPB nor a valid MBR: %v", ErrNoMountablePartition, err)
		}

		entry := mbr.PartitionEntries[partitionIndex]
		if entry.PartitionType == PartitionTypeEmpty {
			return nil, fmt.Errorf("%w: partition entry %d is empty", ErrNoMountablePartition, partitionIndex)
		}

		beginLBA = entry.ReadStartLBA()
		if ioman.legacyPartOff && partitionIndex != 0 {
			beginLBA += mbr.PartitionEntries[0].ReadStartLBA()
		}
		if beginLBA == 0 {
			return nil, fmt.Errorf("%w: partition entry %d resolves to LBA 0", ErrNoMountablePartition, partitionIndex)
		}

		hp, err := ioman.Acquire(beginLBA, ModeRead)
		if err != nil {
			return nil, fmt.Errorf("mount: reading partition %d boot sector at LBA %d: %w", partitionIndex, beginLBA, err)
		}
		bpbSector = append([]byte(nil), hp.Bytes()...)
		ioman.Release(hp)
	}

	// spec.md §4.4 step 4: re-read bytes-per-sector at the resolved BPB
	// and reject anything that isn't a positive multiple of 512.
	if _, ok := hasValidBytesPerSector(bpbSector); !ok {
		return nil, fmt.Errorf("%w: partition %d: bytes-per-sector is not a positive multiple of 512", ErrInvalidFormat, partitionIndex)
	}

	bs, err := ReadFatBootSectorFrom(bpbSector)
	if err != nil {
		return nil, fmt.Errorf("%w: partition %d: %v", ErrInvalidFormat, partitionIndex, err)
	}

	return buildPartitionDescriptor(ioman, bs, int(partitionIndex), beginLBA)
}

// bytesPerSectorOffset is the BPB offset of the 16-bit bytes-per-sector
// field (spec.md §4.4 steps 1-2/4).
const bytesPerSectorOffset = 0x0B

// hasValidBytesPerSector reads the bytes-per-sector field out of a raw BPB
// sector and reports whether it is a positive multiple of 512 — the test
// spec.md §4.4 uses both to tell an unpartitioned BPB from an MBR (step 2)
// and to reject an implausible BPB once begin_lba is resolved (step 4).
func hasValidBytesPerSector(data []byte) (uint16, bool) {
	if len(data) < bytesPerSectorOffset+2 {
		return 0, false
	}
	v := binary.LittleEndian.Uint16(data[bytesPerSectorOffset : bytesPerSectorOffset+2])
	return v, v != 0 && v%512 == 0
}

// buildPartitionDescriptor computes every derived field of the Partition
// descriptor from a parsed BPB (spec.md §4.4 steps 3-6), runs the
// optional FAT sanity check (step 7), and records the mount on success.
func buildPartitionDescriptor(ioman *IOManager, bs *FatBootSector, num int, beginLBA uint32) (*Partition, error) {
	if bs.SectorSize == 0 || bs.SectorsPerCluster == 0 || bs.Fats == 0 {
		return nil, fmt.Errorf("%w: sectorSize=%d sectorsPerCluster=%d fats=%d", ErrInvalidFormat, bs.SectorSize, bs.SectorsPerCluster, bs.Fats)
	}

	reservedSectors := uint32(bs.Reserved)
	numFATs := uint32(bs.Fats)

	sectorsPerFAT := uint32(bs.FatLength)
	if sectorsPerFAT == 0 {
		sectorsPerFAT = bs.Fat32Length
	}
	if sectorsPerFAT == 0 {
		return nil, fmt.Errorf("%w: zero sectors-per-FAT", ErrInvalidFormat)
	}

	totalSectors := uint32(bs.Sectors)
	if totalSectors == 0 {
		totalSectors = bs.TotalSect
	}
	if totalSectors == 0 {
		return nil, fmt.Errorf("%w: zero total sectors", ErrInvalidFormat)
	}

	rootDirSectors := ((uint32(bs.DirEntries) * 32) + (uint32(bs.SectorSize) - 1)) / uint32(bs.SectorSize)

	fatBeginLBA := beginLBA + reservedSectors
	firstDataSector := fatBeginLBA + numFATs*sectorsPerFAT + rootDirSectors

	if firstDataSector > beginLBA+totalSectors {
		return nil, fmt.Errorf("%w: first data sector %d beyond partition end %d", ErrInvalidFormat, firstDataSector, beginLBA+totalSectors)
	}
	dataSectors := (beginLBA + totalSectors) - firstDataSector
	numClusters := dataSectors / uint32(bs.SectorsPerCluster)

	fsType := classifyFatType(numClusters)

	// spec.md §4.4 step 5: FAT32's root directory is a cluster chain like
	// any other; FAT12/16's is a fixed-size region, and the sentinel 1
	// means "first root-dir sector at cluster_begin_lba" (FirstDataSector
	// is computed from RootDirSectors, not from this cluster number).
	rootDirCluster := uint32(1)
	if fsType == FSFat32 {
		rootDirCluster = bs.ReadRootCluster()
	}

	p := &Partition{
		FSType:            fsType,
		Num:               num,
		BeginLBA:          beginLBA,
		BlockSize:         uint32(bs.SectorSize),
		ReservedSectors:   reservedSectors,
		NumFATs:           numFATs,
		SectorsPerFAT:     sectorsPerFAT,
		SectorsPerCluster: uint32(bs.SectorsPerCluster),
		FatBeginLBA:       fatBeginLBA,
		RootDirCluster:    rootDirCluster,
		RootDirSectors:    rootDirSectors,
		FirstDataSector:   firstDataSector,
		TotalSectors:      totalSectors,
		DataSectors:       dataSectors,
		NumClusters:       numClusters,
	}

	if ioman.fatCheck {
		if err := checkFatSanity(ioman, p); err != nil {
			return nil, err
		}
	}

	ioman.mu.Lock()
	ioman.partition = p
	ioman.mu.Unlock()

	if ioman.log != nil {
		ioman.log.Infof("mounted partition %d: %s", p.Num, p.FSType)
	}
	return p, nil
}

// classifyFatType implements spec.md §4.4 step 6's thresholds, which are
// the thresholds of the original FAT specification (cluster count alone
// decides the FAT flavor; BPB.FatLength/Fat32Length never do).
func classifyFatType(numClusters uint32) FSType {
	switch {
	case numClusters < maxFat12Clusters:
		return FSFat12
	case numClusters < maxFat16Clusters:
		return FSFat16
	default:
		return FSFat32
	}
}

// checkFatSanity implements spec.md §4.4 step 7: the first FAT sector's
// opening bytes must carry the reserved bit pattern every FAT driver
// writes at format time, regardless of FAT width.
func checkFatSanity(ioman *IOManager, p *Partition) error {
	h, err := ioman.Acquire(p.FatBeginLBA, ModeRead)
	if err != nil {
		return fmt.Errorf("mount: reading FAT sector %d for sanity check: %w", p.FatBeginLBA, err)
	}
	defer ioman.Release(h)

	b := h.Bytes()
	if len(b) < 4 {
		return fmt.Errorf("%w: FAT sector shorter than 4 bytes", ErrNotFatFormatted)
	}

	switch p.FSType {
	case FSFat12:
		if b[0] != 0xF8 && b[0] != 0xF0 {
			return fmt.Errorf("%w: FAT12 reserved entry 0x%02X", ErrNotFatFormatted, b[0])
		}
		if b[1] != 0xFF {
			return fmt.Errorf("%w: FAT12 reserved entry byte1 0x%02X", ErrNotFatFormatted, b[1])
		}
	case FSFat16:
		if b[0] != 0xF8 && b[0] != 0xF0 {
			return fmt.Errorf("%w: FAT16 reserved entry 0x%02X", ErrNotFatFormatted, b[0])
		}
		if b[1] != 0xFF {
			return fmt.Errorf("%w: FAT16 reserved entry byte1 0x%02X", ErrNotFatFormatted, b[1])
		}
	case FSFat32:
		if b[0] != 0xF8 && b[0] != 0xF0 {
			return fmt.Errorf("%w: FAT32 reserved entry 0x%02X", ErrNotFatFormatted, b[0])
		}
		if b[1] != 0xFF || b[2] != 0xFF || (b[3]&0x0F) != 0x0F {
			return fmt.Errorf("%w: FAT32 reserved entry 0x%02X%02X%02X%02X", ErrNotFatFormatted, b[3], b[2], b[1], b[0])
		}
	}
	return nil
}

// VolumeSize returns the mounted partition's size in bytes as a 64-bit
// value (spec.md §4.5). It returns 0 if no partition is mounted.
func (m *IOManager) VolumeSize() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.partition == nil {
		return 0
	}
	return m.partition.Size()
}

// VolumeSize32 returns the mounted partition's size in bytes as a 32-bit
// value, mirroring the source's FF_64_NUM_SUPPORT-disabled build
// (spec.md §4.5, SPEC_FULL.md §4). It reports ErrInvalidFormat rather
// than silently truncate when the true size overflows a uint32.
func (m *IOManager) VolumeSize32() (uint32, error) {
	size := m.VolumeSize()
	if size > 0xFFFFFFFF {
		return 0, fmt.Errorf("%w: volume size %d overflows 32 bits", ErrInvalidFormat, size)
	}
	return uint32(size), nil
}

// Partition returns the descriptor produced by the last successful
// MountPartition call, or nil if no partition is mounted.
func (m *IOManager) Partition() *Partition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.partition
}
