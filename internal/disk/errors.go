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

import "errors"

// Sentinel errors surfaced at the public API, named after the error
// taxonomy of the I/O Manager / Mount Procedure.
var (
	ErrNullPointer           = errors.New("disk: nil manager")
	ErrInvalidPartitionNum   = errors.New("disk: partition number out of range (0-3)")
	ErrNoMountablePartition  = errors.New("disk: no mountable partition found")
	ErrInvalidFormat         = errors.New("disk: boot sector has implausible fields")
	ErrNotFatFormatted       = errors.New("disk: volume did not pass FAT sanity check")
	ErrDeviceDriverFailed    = errors.New("disk: device driver call failed")
	ErrDeviceAlreadyRegd     = errors.New("disk: a device driver is already registered")
	ErrDeviceInvalidBlkSize  = errors.New("disk: invalid device block size")
	ErrPoolInvalidSize       = errors.New("disk: cache size must be a positive multiple of block size")
	ErrNoBufferAvailable     = errors.New("disk: no cache buffer could be acquired")
	ErrManagerAlreadyMounted = errors.New("disk: manager already has a mounted partition")
)
