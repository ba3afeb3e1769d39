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
	"sync"
	"sync/atomic"
)

// MemBlockDevice is an in-memory BlockDevice backed by a single []byte,
// addressed by LBA*BlockSize, the same addressing style
// internal/disk/stat.go uses when sniffing a disk image's first block.
// It exists for tests: no real device, no filesystem, exercises the full
// IOManager acquire/release/flush surface.
type MemBlockDevice struct {
	mu        sync.Mutex
	data      []byte
	blockSize uint16

	// busyEvery, if non-zero, makes every Nth call to ReadBlocks or
	// WriteBlocks return ErrDriverBusy instead of performing the I/O, to
	// exercise the IOManager's retry path deterministically in tests.
	busyEvery uint32
	callCount uint32

	// failSector, if set via SetFailSector, makes any read/write to that
	// LBA return a permanent (non-busy) error, to exercise
	// ErrDeviceDriverFailed propagation.
	failSector    uint32
	failSectorSet bool
}

// NewMemBlockDevice allocates a zero-filled device of size bytes.
func NewMemBlockDevice(size int, blockSize uint16) *MemBlockDevice {
	return &MemBlockDevice{
		data:      make([]byte, size),
		blockSize: blockSize,
	}
}

// NewMemBlockDeviceFromImage wraps an existing byte slice (e.g. a loaded
// disk image fixture) as a device, rather than allocating zeroed memory.
func NewMemBlockDeviceFromImage(image []byte, blockSize uint16) *MemBlockDevice {
	return &MemBlockDevice{data: image, blockSize: blockSize}
}

func (d *MemBlockDevice) BlockSize() uint16 { return d.blockSize }

// SetBusyEvery configures every nth call (n>0) to ReadBlocks/WriteBlocks
// to return ErrDriverBusy.
func (d *MemBlockDevice) SetBusyEvery(n uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.busyEvery = n
}

// SetFailSector makes any access to LBA sector return a permanent,
// non-busy error, which the IOManager reports as ErrDeviceDriverFailed.
func (d *MemBlockDevice) SetFailSector(sector uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failSector = sector
	d.failSectorSet = true
}

func (d *MemBlockDevice) shouldBeBusy() bool {
	if d.busyEvery == 0 {
		return false
	}
	n := atomic.AddUint32(&d.callCount, 1)
	return n%d.busyEvery == 0
}

func (d *MemBlockDevice) ReadBlocks(dst []byte, firstLBA uint32, count uint32) (int, error) {
	if d.shouldBeBusy() {
		return 0, ErrDriverBusy
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failSectorSet && firstLBA <= d.failSector && d.failSector < firstLBA+count {
		return 0, fmt.Errorf("simulated read failure at sector %d", d.failSector)
	}

	start := int(firstLBA) * int(d.blockSize)
	end := start + int(count)*int(d.blockSize)
	if start < 0 || end > len(d.data) {
		return 0, fmt.Errorf("read out of bounds: [%d,%d) device size %d", start, end, len(d.data))
	}
	n := copy(dst, d.data[start:end])
	return n / int(d.blockSize), nil
}

func (d *MemBlockDevice) WriteBlocks(src []byte, firstLBA uint32, count uint32) (int, error) {
	if d.shouldBeBusy() {
		return 0, ErrDriverBusy
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failSectorSet && firstLBA <= d.failSector && d.failSector < firstLBA+count {
		return 0, fmt.Errorf("simulated write failure at sector %d", d.failSector)
	}

	start := int(firstLBA) * int(d.blockSize)
	end := start + int(count)*int(d.blockSize)
	if start < 0 || end > len(d.data) {
		return 0, fmt.Errorf("write out of bounds: [%d,%d) device size %d", start, end, len(d.data))
	}
	n := copy(d.data[start:end], src)
	return n / int(d.blockSize), nil
}

// Snapshot returns a copy of the device's current contents, for test
// assertions against what the IOManager actually wrote through.
func (d *MemBlockDevice) Snapshot() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, len(d.data))
	copy(out, d.data)
	return out
}
