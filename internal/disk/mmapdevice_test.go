package disk

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMmapBlockDeviceReadWriteRoundTrip(t *testing.T) {
	path := tempDeviceFile(t, 8*512)

	dev, err := OpenMmapBlockDevice(path, 512, true)
	require.NoError(t, err)
	defer dev.Close()

	payload := make([]byte, 512)
	copy(payload, []byte("mmapped-sector"))
	n, err := dev.WriteBlocks(payload, 2, 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	out := make([]byte, 512)
	n, err = dev.ReadBlocks(out, 2, 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, payload, out)

	require.NoError(t, dev.Close())

	// Changes must be visible to a fresh open of the same file, proving
	// the write reached the backing file rather than just the mapping.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, payload, raw[2*512:3*512])
}

func TestMmapBlockDeviceReadOnlyRejectsWrites(t *testing.T) {
	path := tempDeviceFile(t, 4*512)

	dev, err := OpenMmapBlockDevice(path, 512, false)
	require.NoError(t, err)
	defer dev.Close()

	_, err = dev.WriteBlocks(make([]byte, 512), 0, 1)
	require.ErrorIs(t, err, ErrDeviceDriverFailed)
}

func TestMmapBlockDeviceRejectsOutOfBoundsRead(t *testing.T) {
	path := tempDeviceFile(t, 2*512)

	dev, err := OpenMmapBlockDevice(path, 512, false)
	require.NoError(t, err)
	defer dev.Close()

	_, err = dev.ReadBlocks(make([]byte, 512), 10, 1)
	require.ErrorIs(t, err, ErrDeviceDriverFailed)
}

func TestMmapBlockDeviceRejectsNonMultipleLength(t *testing.T) {
	path := tempDeviceFile(t, 512+100)

	_, err := OpenMmapBlockDevice(path, 512, false)
	require.ErrorIs(t, err, ErrDeviceInvalidBlkSize)
}
