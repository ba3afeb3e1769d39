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

// Mode is the semantic access mode a buffer slot is currently held under.
// It reflects the mode of the current holders, not whether the slot is
// dirty: a slot stays Mode=Write after its last writer releases it (I5).
// The zero value is neither mode; it marks a slot that has never been
// filled, so a fresh slot is never mistaken for a cached sector 0.
type Mode uint8

const (
	ModeRead Mode = iota + 1
	ModeWrite
)

func (m Mode) valid() bool {
	return m == ModeRead || m == ModeWrite
}

// bufferDescriptor is one cache slot's metadata (spec.md §3). Every field
// is only ever mutated while the pool's mutex is held, except `bytes`,
// whose contents may be read/written by the unique current holder(s) of
// the slot without the mutex, and by the I/O goroutine while inService.
type bufferDescriptor struct {
	id          int
	sector      uint32
	mode        Mode
	numHandles  int
	persistence uint64
	modified    bool
	inService   bool
	bytes       []byte
}

// pool is the fixed-capacity array of fixed-size buffers backing an
// IOManager (spec.md §4.2). Slot i maps to bytes [i*blockSize,
// (i+1)*blockSize) of a single contiguous backing array (I6).
type pool struct {
	blockSize uint16
	mem       []byte
	slots     []bufferDescriptor

	// index, if non-nil, accelerates re-finding a cached sector; see
	// sectorIndex's documentation for its verify-before-trust contract.
	index *sectorIndex
}

// newPool validates and constructs a pool over cacheMem (or a freshly
// allocated region, if cacheMem is nil), following spec.md §4.2's
// constructor preconditions.
func newPool(cacheMem []byte, cacheBytes uint32, blockSize uint16, indexed bool) (*pool, error) {
	if blockSize == 0 || cacheBytes == 0 {
		return nil, fmt.Errorf("%w: blockSize=%d cacheBytes=%d", ErrPoolInvalidSize, blockSize, cacheBytes)
	}
	if cacheBytes%uint32(blockSize) != 0 {
		return nil, fmt.Errorf("%w: cacheBytes %d is not a multiple of blockSize %d", ErrPoolInvalidSize, cacheBytes, blockSize)
	}

	mem := cacheMem
	if mem == nil {
		mem = make([]byte, cacheBytes)
	} else if uint32(len(mem)) < cacheBytes {
		return nil, fmt.Errorf("%w: provided cache buffer is %d bytes, need %d", ErrPoolInvalidSize, len(mem), cacheBytes)
	}

	n := int(cacheBytes / uint32(blockSize))
	slots := make([]bufferDescriptor, n)
	for i := range slots {
		slots[i] = bufferDescriptor{
			id:    i,
			bytes: mem[i*int(blockSize) : (i+1)*int(blockSize)],
		}
	}

	p := &pool{
		blockSize: blockSize,
		mem:       mem,
		slots:     slots,
	}
	if indexed {
		p.index = newSectorIndex()
	}
	return p, nil
}

func (p *pool) size() int {
	return len(p.slots)
}
