package table

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrefixTableInsertGet(t *testing.T) {
	pt := New[string]()
	pt.Insert([]byte{0, 0, 0, 5}, "five")

	v, ok := pt.Get([]byte{0, 0, 0, 5})
	require.True(t, ok)
	require.Equal(t, "five", v)

	_, ok = pt.Get([]byte{0, 0, 0, 6})
	require.False(t, ok)
	require.Equal(t, 1, pt.Size())
}

func TestPrefixTableInsertOverwrites(t *testing.T) {
	pt := New[int]()
	pt.Insert([]byte("sector"), 1)
	pt.Insert([]byte("sector"), 2)

	v, ok := pt.Get([]byte("sector"))
	require.True(t, ok)
	require.Equal(t, 2, v)
	require.Equal(t, 1, pt.Size())
}

func TestPrefixTableWalkFindsPrefixes(t *testing.T) {
	pt := New[string]()
	pt.Insert([]byte("apple"), "apple")
	pt.Insert([]byte("applet"), "applet")
	pt.Insert([]byte("apricot"), "apricot")

	var matched []string
	pt.Walk([]byte("appletie"), func(v string) bool {
		matched = append(matched, v)
		return false
	})
	require.Equal(t, []string{"apple", "applet"}, matched)
}

func TestPrefixTableWalkStopsOnNoMatch(t *testing.T) {
	pt := New[string]()
	pt.Insert([]byte("apple"), "apple")

	var matched []string
	pt.Walk([]byte("banana"), func(v string) bool {
		matched = append(matched, v)
		return false
	})
	require.Empty(t, matched)
}
