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

// ErrDriverBusy is the transient error a BlockDevice implementation
// returns to signal that the caller should retry after a short sleep.
// Any other non-nil error is a fatal device error for that call.
var ErrDriverBusy = errors.New("disk: device driver busy")

// BlockDevice is the contract a caller registers with an IOManager to
// perform sector-granular I/O. Both methods report how many blocks were
// actually transferred:
//
//   - err == nil: n blocks were transferred; the IOManager compares n
//     against the requested count.
//   - errors.Is(err, ErrDriverBusy): transient, the IOManager yields and
//     retries after its configured sleep.
//   - any other non-nil err: a fatal device error for this call.
//
// firstLBA addresses the device in units of its own registered BlockSize,
// not the IOManager's. Implementations may be called concurrently only if
// they are documented as reentrant; the IOManager itself serializes access
// to a given cache slot via its in-service flag, not via a global lock
// held across the call.
type BlockDevice interface {
	ReadBlocks(dst []byte, firstLBA uint32, count uint32) (int, error)
	WriteBlocks(src []byte, firstLBA uint32, count uint32) (int, error)

	// BlockSize is the device's native block size in bytes. It must be a
	// positive multiple of 512 and a positive multiple of the owning
	// IOManager's BlockSize (the "BlkFactor" relationship of spec.md §3).
	BlockSize() uint16
}
