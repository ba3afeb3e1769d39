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

//go:build windows

package mmap

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// MmapFile represents a memory-mapped file region on Windows, backed by
// CreateFileMapping/MapViewOfFile rather than the POSIX mmap(2) used on
// other platforms.
type MmapFile struct {
	Data         []byte
	File         *os.File
	FileSize     int
	MappedOffset int
	MappedLength int
	Writable     bool

	mapping windows.Handle
}

func NewMmapFile(filePath string) (*MmapFile, error) {
	return NewMmapFileRegion(filePath, 0, 0, false)
}

func NewMmapFileRegion(filePath string, offset int, length int, writable bool) (*MmapFile, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}

	f, err := os.OpenFile(filePath, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", filePath, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to get file info for %q: %w", filePath, err)
	}
	fileSize := int(fi.Size())
	if fileSize == 0 {
		f.Close()
		return nil, fmt.Errorf("file %q is empty, cannot mmap", filePath)
	}

	actualLength := length
	if actualLength == 0 {
		actualLength = fileSize - offset
	}
	if offset < 0 || offset+actualLength > fileSize {
		f.Close()
		return nil, fmt.Errorf("requested mapping (offset %d + length %d) extends beyond file size %d", offset, actualLength, fileSize)
	}

	prot := uint32(windows.PAGE_READONLY)
	access := uint32(windows.FILE_MAP_READ)
	if writable {
		prot = windows.PAGE_READWRITE
		access = windows.FILE_MAP_WRITE
	}

	mapping, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, prot, 0, 0, nil)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("CreateFileMapping %q: %w", filePath, err)
	}

	addr, err := windows.MapViewOfFile(mapping, access, uint32(offset>>32), uint32(offset), uintptr(actualLength))
	if err != nil {
		windows.CloseHandle(mapping)
		f.Close()
		return nil, fmt.Errorf("MapViewOfFile %q: %w", filePath, err)
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), actualLength)

	return &MmapFile{
		Data:         data,
		File:         f,
		FileSize:     fileSize,
		MappedOffset: offset,
		MappedLength: actualLength,
		Writable:     writable,
		mapping:      mapping,
	}, nil
}

func (mr *MmapFile) Sync() error {
	if !mr.Writable || mr.Data == nil {
		return nil
	}
	return windows.FlushViewOfFile(uintptr(unsafe.Pointer(&mr.Data[0])), uintptr(len(mr.Data)))
}

func (mr *MmapFile) Close() error {
	if mr.Data != nil {
		addr := uintptr(unsafe.Pointer(&mr.Data[0]))
		windows.UnmapViewOfFile(addr)
		mr.Data = nil
	}
	if mr.mapping != 0 {
		windows.CloseHandle(mr.mapping)
		mr.mapping = 0
	}
	if mr.File != nil {
		err := mr.File.Close()
		mr.File = nil
		return err
	}
	return nil
}
