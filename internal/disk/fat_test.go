package disk

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildBootSector(t *testing.T, fill func(*FatBootSector)) []byte {
	t.Helper()

	var bs FatBootSector
	bs.Marker = 0xAA55
	bs.SectorSize = 512
	bs.SectorsPerCluster = 1
	bs.Fats = 2
	if fill != nil {
		fill(&bs)
	}

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &bs))
	require.Equal(t, Fat1xBootSectorSize, buf.Len())
	return buf.Bytes()
}

func TestReadFatBootSectorRoundTrip(t *testing.T) {
	raw := buildBootSector(t, func(bs *FatBootSector) {
		bs.Reserved = 1
		bs.DirEntries = 512
		bs.Sectors = 20480
		bs.FatLength = 9
		copy(bs.BSFilSysType[:], "FAT16   ")
	})

	bs, err := ReadFatBootSectorFrom(raw)
	require.NoError(t, err)
	require.Equal(t, uint16(512), bs.SectorSize)
	require.Equal(t, uint8(1), bs.SectorsPerCluster)
	require.Equal(t, uint8(2), bs.Fats)
	require.Equal(t, uint16(1), bs.Reserved)
	require.Equal(t, uint16(9), bs.FatLength)
}

func TestReadFatBootSectorRejectsWrongSize(t *testing.T) {
	_, err := ReadFatBootSectorFrom(make([]byte, 100))
	require.Error(t, err)
}

func TestReadFatBootSectorRejectsBadMarker(t *testing.T) {
	raw := buildBootSector(t, func(bs *FatBootSector) {
		bs.Marker = 0x0000
	})
	_, err := ReadFatBootSectorFrom(raw)
	require.Error(t, err)
}

func TestReadRootClusterDecodesLittleEndian(t *testing.T) {
	var bs FatBootSector
	bs.RootCluster = [4]byte{0x02, 0x00, 0x00, 0x00}
	require.Equal(t, uint32(2), bs.ReadRootCluster())
}
