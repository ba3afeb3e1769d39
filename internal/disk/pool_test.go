package disk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPoolRejectsZeroSizes(t *testing.T) {
	_, err := newPool(nil, 0, 512, false)
	require.ErrorIs(t, err, ErrPoolInvalidSize)

	_, err = newPool(nil, 1024, 0, false)
	require.ErrorIs(t, err, ErrPoolInvalidSize)
}

func TestNewPoolRejectsNonMultiple(t *testing.T) {
	_, err := newPool(nil, 1000, 512, false)
	require.ErrorIs(t, err, ErrPoolInvalidSize)
}

func TestNewPoolSlotsShareContiguousBacking(t *testing.T) {
	p, err := newPool(nil, 4*512, 512, false)
	require.NoError(t, err)
	require.Equal(t, 4, p.size())

	for i := range p.slots {
		require.Len(t, p.slots[i].bytes, 512)
	}

	// I6: slot i maps to bytes [i*blockSize, (i+1)*blockSize) of one array.
	p.slots[0].bytes[0] = 0xAB
	require.Equal(t, byte(0xAB), p.mem[0])
}

func TestNewPoolRejectsUndersizedProvidedBuffer(t *testing.T) {
	_, err := newPool(make([]byte, 512), 1024, 512, false)
	require.ErrorIs(t, err, ErrPoolInvalidSize)
}
