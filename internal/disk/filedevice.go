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
	"runtime"

	"github.com/embeddedfs/fatio/internal/fs"
)

// FileBlockDevice implements BlockDevice over a plain file or raw device
// node using ordinary ReadAt/WriteAt syscalls, through the internal/fs
// File abstraction (which also covers the Windows raw-volume path). It is
// the fallback for platforms or filesystems where memory-mapping a raw
// device isn't available, e.g. inside some container runtimes.
type FileBlockDevice struct {
	f         fs.File
	blockSize uint16
}

// OpenFileBlockDevice opens path (normalizing it for Windows drive-letter
// paths first) as a FileBlockDevice with the given native block size.
func OpenFileBlockDevice(path string, blockSize uint16, writable bool) (*FileBlockDevice, error) {
	if blockSize == 0 {
		return nil, fmt.Errorf("%w: blockSize must be > 0", ErrDeviceInvalidBlkSize)
	}

	normalized := path
	if runtime.GOOS == "windows" {
		normalized = NormalizeVolumePath(path)
	}

	f, err := fs.OpenFile(normalized, writable)
	if err != nil {
		return nil, fmt.Errorf("opening block device %q: %w", path, err)
	}

	return &FileBlockDevice{f: f, blockSize: blockSize}, nil
}

func (d *FileBlockDevice) BlockSize() uint16 { return d.blockSize }

func (d *FileBlockDevice) ReadBlocks(dst []byte, firstLBA uint32, count uint32) (int, error) {
	want := int(count) * int(d.blockSize)
	if len(dst) < want {
		return 0, fmt.Errorf("dst too small: have %d, need %d", len(dst), want)
	}
	off := int64(firstLBA) * int64(d.blockSize)
	n, err := d.f.ReadAt(dst[:want], off)
	if err != nil {
		return n / int(d.blockSize), err
	}
	return int(count), nil
}

func (d *FileBlockDevice) WriteBlocks(src []byte, firstLBA uint32, count uint32) (int, error) {
	want := int(count) * int(d.blockSize)
	if len(src) < want {
		return 0, fmt.Errorf("src too small: have %d, need %d", len(src), want)
	}
	off := int64(firstLBA) * int64(d.blockSize)
	n, err := d.f.WriteAt(src[:want], off)
	if err != nil {
		return n / int(d.blockSize), err
	}
	return int(count), nil
}

// Close releases the underlying file handle.
func (d *FileBlockDevice) Close() error {
	return d.f.Close()
}
