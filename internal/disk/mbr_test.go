package disk

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildMBR(t *testing.T, entries ...func(*[16]byte)) []byte {
	t.Helper()

	raw := make([]byte, 512)
	for i, fill := range entries {
		off := 0x1BE + i*16
		if fill != nil {
			var e [16]byte
			fill(&e)
			copy(raw[off:off+16], e[:])
		}
	}
	binary.LittleEndian.PutUint16(raw[0x1FE:], 0xAA55)
	return raw
}

func TestParseMBRRoundTrip(t *testing.T) {
	raw := buildMBR(t, func(e *[16]byte) {
		e[0] = 0x80 // bootable
		e[4] = byte(PartitionTypeFAT32LBA)
		binary.LittleEndian.PutUint32(e[8:12], 2048)
		binary.LittleEndian.PutUint32(e[12:16], 204800)
	})

	mbr, err := ParseMBR(raw)
	require.NoError(t, err)
	require.Equal(t, uint16(0xAA55), mbr.ReadSignature())

	p0 := mbr.PartitionEntries[0]
	require.Equal(t, uint8(0x80), p0.BootIndicator)
	require.Equal(t, PartitionTypeFAT32LBA, p0.PartitionType)
	require.Equal(t, uint32(2048), p0.ReadStartLBA())
	require.Equal(t, uint32(204800), p0.ReadTotalSectors())
}

func TestParseMBRRejectsBadSignature(t *testing.T) {
	raw := make([]byte, 512)
	_, err := ParseMBR(raw)
	require.Error(t, err)
}

func TestParseMBRRejectsWrongSize(t *testing.T) {
	_, err := ParseMBR(make([]byte, 100))
	require.Error(t, err)
}
