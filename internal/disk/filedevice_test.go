package disk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempDeviceFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "device.img")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))
	return path
}

func TestFileBlockDeviceReadWriteRoundTrip(t *testing.T) {
	path := tempDeviceFile(t, 8*512)

	dev, err := OpenFileBlockDevice(path, 512, true)
	require.NoError(t, err)
	defer dev.Close()

	require.Equal(t, uint16(512), dev.BlockSize())

	payload := make([]byte, 512)
	copy(payload, []byte("idle-sector-contents"))
	n, err := dev.WriteBlocks(payload, 3, 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	out := make([]byte, 512)
	n, err = dev.ReadBlocks(out, 3, 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, payload, out)
}

func TestFileBlockDeviceRejectsZeroBlockSize(t *testing.T) {
	path := tempDeviceFile(t, 512)
	_, err := OpenFileBlockDevice(path, 0, false)
	require.ErrorIs(t, err, ErrDeviceInvalidBlkSize)
}

func TestFileBlockDeviceReadBlocksRejectsUndersizedDst(t *testing.T) {
	path := tempDeviceFile(t, 4*512)
	dev, err := OpenFileBlockDevice(path, 512, false)
	require.NoError(t, err)
	defer dev.Close()

	_, err = dev.ReadBlocks(make([]byte, 100), 0, 1)
	require.Error(t, err)
}

func TestFileBlockDeviceMissingPathFails(t *testing.T) {
	_, err := OpenFileBlockDevice(filepath.Join(t.TempDir(), "missing.img"), 512, false)
	require.Error(t, err)
}
