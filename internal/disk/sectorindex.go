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

	"github.com/embeddedfs/fatio/pkg/table"
)

// sectorIndex is a best-effort sector->slot hint built over
// pkg/table.PrefixTable, keyed by the big-endian encoding of a sector
// number. It accelerates the common case of re-finding a sector that is
// already cached, without replacing the authoritative linear scan over
// pool.slots: PrefixTable has no delete operation, so an entry can point
// at a slot that has since been evicted and reused for a different
// sector. Every lookup through the index is therefore verified against
// the candidate slot's actual sector field before being trusted; a miss
// or stale hit falls back to the ordinary scan, never to a wrong answer.
type sectorIndex struct {
	t *table.PrefixTable[int]
}

func newSectorIndex() *sectorIndex {
	return &sectorIndex{t: table.New[int]()}
}

func sectorKey(sector uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], sector)
	return b[:]
}

// put records that `slot` is the last slot known to hold `sector`.
func (si *sectorIndex) put(sector uint32, slot int) {
	if si == nil {
		return
	}
	si.t.Insert(sectorKey(sector), slot)
}

// hint returns the last slot recorded for `sector`, if any. Callers must
// verify the returned slot's sector field still matches before using it.
func (si *sectorIndex) hint(sector uint32) (int, bool) {
	if si == nil {
		return 0, false
	}
	return si.t.Get(sectorKey(sector))
}
