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

// Package table implements a small generic prefix-keyed lookup structure.
// Its main tenant in this module is disk.sectorIndex, which keys it by a
// 4-byte big-endian sector number to hint at the slot most recently known
// to hold that sector (see internal/disk/sectorindex.go for why that hint
// always gets re-verified rather than trusted outright).
package table

const (
	// TableSize is the fixed size of the internal marker array, chosen to
	// map a 16-bit rolling hash directly to an index.
	TableSize = 65536
)

// PrefixTable stores key-value pairs keyed by byte-slice prefixes and
// supports walking every stored key that is a prefix of a longer probe
// key. T is the stored value type.
type PrefixTable[T any] struct {
	table [TableSize]byte
	elems map[string]T
}

const (
	none = iota
	presentMarker
	elemMarker
)

// New returns an empty PrefixTable.
func New[T any]() *PrefixTable[T] {
	return &PrefixTable[T]{elems: make(map[string]T)}
}

// Insert associates v with key, overwriting any previous value for the
// same key. The rolling hash h = (h<<2)+b folds key bytes into the 16-bit
// marker space, so distinct keys can share a marker (e.g. {0,0,0,4} and
// {0,0,1,0}); Get is unaffected, since it looks keys up in the map.
func (t *PrefixTable[T]) Insert(key []byte, v T) {
	var h uint16
	for _, b := range key {
		h = (h << 2) + uint16(b)
		t.table[h] = max(t.table[h], presentMarker)
	}
	t.table[h] = elemMarker
	t.elems[string(key)] = v
}

// Get returns the value stored under key, if any.
func (t *PrefixTable[T]) Get(key []byte) (T, bool) {
	v, found := t.elems[string(key)]
	return v, found
}

// Walk calls onMatch for every key stored in the table that is itself a
// prefix of the probe key, shortest first, stopping early if onMatch
// returns true or if no stored key starts with the probe's next byte.
func (t *PrefixTable[T]) Walk(key []byte, onMatch func(T) bool) {
	var h uint16
	for i, b := range key {
		h = (h << 2) + uint16(b)

		marker := t.table[h]
		if marker == none {
			return
		}
		if marker == elemMarker {
			if v, ok := t.elems[string(key[:i+1])]; ok && onMatch(v) {
				return
			}
		}
	}
}

// Size returns the number of key-value pairs currently stored.
func (t *PrefixTable[T]) Size() int {
	return len(t.elems)
}
