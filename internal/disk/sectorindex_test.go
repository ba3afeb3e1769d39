package disk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSectorIndexPutAndHint(t *testing.T) {
	si := newSectorIndex()

	_, ok := si.hint(42)
	require.False(t, ok)

	si.put(42, 3)
	slot, ok := si.hint(42)
	require.True(t, ok)
	require.Equal(t, 3, slot)
}

func TestSectorIndexOverwritesOnReassignment(t *testing.T) {
	si := newSectorIndex()
	si.put(7, 0)
	si.put(7, 1) // slot 0 was evicted and 7 now lives in slot 1

	slot, ok := si.hint(7)
	require.True(t, ok)
	require.Equal(t, 1, slot)
}

func TestNilSectorIndexIsInert(t *testing.T) {
	var si *sectorIndex
	si.put(1, 2) // must not panic
	_, ok := si.hint(1)
	require.False(t, ok)
}
