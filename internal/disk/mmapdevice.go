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
	"fmt"

	"github.com/embeddedfs/fatio/internal/mmap"
)

// MmapBlockDevice implements BlockDevice over a memory-mapped disk image
// or raw block device. Reads and writes are plain slice copies against
// the mapping; WriteBlocks additionally msyncs the whole mapping so a
// later FlushCache call observes durable writes rather than writes that
// are still only page-cache resident.
type MmapBlockDevice struct {
	mf        *mmap.MmapFile
	blockSize uint16
}

// OpenMmapBlockDevice memory-maps the whole of path as a block device
// with the given native block size. writable must be true for any device
// that will see WriteBlocks calls; on a read-only mapping WriteBlocks
// returns ErrDeviceDriverFailed.
func OpenMmapBlockDevice(path string, blockSize uint16, writable bool) (*MmapBlockDevice, error) {
	if blockSize == 0 {
		return nil, fmt.Errorf("%w: blockSize must be > 0", ErrDeviceInvalidBlkSize)
	}

	mf, err := mmap.NewMmapFileRegion(path, 0, 0, writable)
	if err != nil {
		return nil, fmt.Errorf("mmap block device %q: %w", path, err)
	}

	if mf.MappedLength%int(blockSize) != 0 {
		mf.Close()
		return nil, fmt.Errorf("%w: mapped length %d is not a multiple of block size %d", ErrDeviceInvalidBlkSize, mf.MappedLength, blockSize)
	}

	return &MmapBlockDevice{mf: mf, blockSize: blockSize}, nil
}

func (d *MmapBlockDevice) BlockSize() uint16 { return d.blockSize }

func (d *MmapBlockDevice) bounds(firstLBA, count uint32) (int, int, error) {
	start := int(firstLBA) * int(d.blockSize)
	end := start + int(count)*int(d.blockSize)
	if start < 0 || end > len(d.mf.Data) {
		return 0, 0, fmt.Errorf("%w: LBA range [%d,%d) out of bounds (mapping is %d bytes)", ErrDeviceDriverFailed, firstLBA, uint32(firstLBA)+count, len(d.mf.Data))
	}
	return start, end, nil
}

func (d *MmapBlockDevice) ReadBlocks(dst []byte, firstLBA uint32, count uint32) (int, error) {
	start, end, err := d.bounds(firstLBA, count)
	if err != nil {
		return 0, err
	}
	n := copy(dst, d.mf.Data[start:end])
	return n / int(d.blockSize), nil
}

func (d *MmapBlockDevice) WriteBlocks(src []byte, firstLBA uint32, count uint32) (int, error) {
	if !d.mf.Writable {
		return 0, fmt.Errorf("%w: device was mapped read-only", ErrDeviceDriverFailed)
	}
	start, end, err := d.bounds(firstLBA, count)
	if err != nil {
		return 0, err
	}
	n := copy(d.mf.Data[start:end], src)
	if err := d.mf.Sync(); err != nil {
		return n / int(d.blockSize), fmt.Errorf("%w: msync: %v", ErrDeviceDriverFailed, err)
	}
	return n / int(d.blockSize), nil
}

// Close unmaps the device and closes the underlying file.
func (d *MmapBlockDevice) Close() error {
	return d.mf.Close()
}
