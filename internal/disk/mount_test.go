package disk

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func marshalBootSector(t *testing.T, bs *FatBootSector) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, bs))
	require.Equal(t, Fat1xBootSectorSize, buf.Len())
	return buf.Bytes()
}

// buildUnpartitionedFat16Image returns a whole-device FAT16 image: a
// single boot sector at LBA 0, no MBR.
func buildUnpartitionedFat16Image(t *testing.T) []byte {
	t.Helper()

	var bs FatBootSector
	bs.Marker = 0xAA55
	bs.SectorSize = 512
	bs.SectorsPerCluster = 1
	bs.Reserved = 1
	bs.Fats = 2
	bs.DirEntries = 512 // 32 sectors of root dir
	bs.FatLength = 200
	bs.Media = 0xF8
	bs.Sectors = 5433 // 1 + 2*200 + 32 + 5000 data sectors
	copy(bs.BSFilSysType[:], "FAT16   ")

	raw := marshalBootSector(t, &bs)

	image := make([]byte, int(bs.Sectors)*512)
	copy(image, raw)

	// FAT[0] sanity marker at FatBeginLBA = 1.
	image[512] = 0xF8
	image[513] = 0xFF

	return image
}

func TestMountUnpartitionedFat16(t *testing.T) {
	image := buildUnpartitionedFat16Image(t)
	dev := NewMemBlockDeviceFromImage(image, 512)

	ioman, err := NewIOManager(ManagerConfig{CacheBytes: 4 * 512, BlockSize: 512, FATCheck: true})
	require.NoError(t, err)
	require.NoError(t, ioman.RegisterDevice(dev))

	p, err := MountPartition(ioman, 0)
	require.NoError(t, err)
	require.Equal(t, FSFat16, p.FSType)
	require.Equal(t, uint32(0), p.BeginLBA)
	require.Equal(t, uint32(1), p.FatBeginLBA)
	require.Equal(t, uint32(5000), p.DataSectors)
	require.Equal(t, uint32(5000), p.NumClusters)
}

func TestMountUnpartitionedFailsFatSanityOnBadMarker(t *testing.T) {
	image := buildUnpartitionedFat16Image(t)
	image[512] = 0x00 // corrupt the FAT[0] media marker

	dev := NewMemBlockDeviceFromImage(image, 512)
	ioman, err := NewIOManager(ManagerConfig{CacheBytes: 4 * 512, BlockSize: 512, FATCheck: true})
	require.NoError(t, err)
	require.NoError(t, ioman.RegisterDevice(dev))

	_, err = MountPartition(ioman, 0)
	require.ErrorIs(t, err, ErrNotFatFormatted)
}

func TestMountUnpartitionedSkipsSanityCheckWhenDisabled(t *testing.T) {
	image := buildUnpartitionedFat16Image(t)
	image[512] = 0x00

	dev := NewMemBlockDeviceFromImage(image, 512)
	ioman, err := NewIOManager(ManagerConfig{CacheBytes: 4 * 512, BlockSize: 512})
	require.NoError(t, err)
	require.NoError(t, ioman.RegisterDevice(dev))

	_, err = MountPartition(ioman, 0)
	require.NoError(t, err)
}

// buildMBRPartitionedFat32Image builds an MBR at LBA 0 with a single
// FAT32 partition starting at LBA 63 (classic CHS alignment), recorded
// in partition entry 0.
func buildMBRPartitionedFat32Image(t *testing.T) []byte {
	t.Helper()

	const beginLBA = 63

	var bs FatBootSector
	bs.Marker = 0xAA55
	bs.SectorSize = 512
	bs.SectorsPerCluster = 1
	bs.Reserved = 32
	bs.Fats = 2
	bs.Fat32Length = 512
	bs.Media = 0xF8
	bs.TotalSect = 32 + 2*512 + 65525 // reserved + FATs + data
	copy(bs.BSFilSysType[:], "FAT32   ")
	bs.RootCluster = [4]byte{2, 0, 0, 0}

	bootRaw := marshalBootSector(t, &bs)

	image := make([]byte, int(beginLBA+bs.TotalSect)*512)

	mbr := make([]byte, 512)
	entryOff := 0x1BE
	mbr[entryOff+0x00] = 0x80
	mbr[entryOff+0x04] = byte(PartitionTypeFAT32LBA)
	binary.LittleEndian.PutUint32(mbr[entryOff+0x08:], beginLBA)
	binary.LittleEndian.PutUint32(mbr[entryOff+0x0C:], bs.TotalSect)
	binary.LittleEndian.PutUint16(mbr[0x1FE:], 0xAA55)
	copy(image, mbr)

	bootOff := beginLBA * 512
	copy(image[bootOff:], bootRaw)

	fatOff := bootOff + int(bs.Reserved)*512
	image[fatOff] = 0xF8
	image[fatOff+1] = 0xFF
	image[fatOff+2] = 0xFF
	image[fatOff+3] = 0x0F

	return image
}

// buildLegacyTwoPartitionFat16Image builds an MBR with two partition
// entries: entry 0 is a small stand-in partition at entry0LBA, entry 1 is a
// FAT16 partition. realBeginLBA is where entry 1's boot sector actually
// sits; storedLBA is what entry 1's on-disk StartLBA field records —
// under the legacy convention storedLBA = realBeginLBA - entry0LBA, so
// MountPartition must add entry 0's LBA back to recover realBeginLBA.
func buildLegacyTwoPartitionFat16Image(t *testing.T, entry0LBA, realBeginLBA uint32) []byte {
	t.Helper()

	var bs FatBootSector
	bs.Marker = 0xAA55
	bs.SectorSize = 512
	bs.SectorsPerCluster = 1
	bs.Reserved = 1
	bs.Fats = 2
	bs.DirEntries = 512
	bs.FatLength = 20
	bs.Media = 0xF8
	bs.Sectors = 1 + 2*20 + 32 + 600 // a small partition; exact FAT width doesn't matter for this test
	copy(bs.BSFilSysType[:], "FAT16   ")

	bootRaw := marshalBootSector(t, &bs)

	storedLBA := realBeginLBA - entry0LBA

	image := make([]byte, int(realBeginLBA+uint32(bs.Sectors))*512)

	mbr := make([]byte, 512)
	e0 := 0x1BE
	mbr[e0+0x00] = 0x00
	mbr[e0+0x04] = byte(PartitionTypeFAT16LBA)
	binary.LittleEndian.PutUint32(mbr[e0+0x08:], entry0LBA)
	binary.LittleEndian.PutUint32(mbr[e0+0x0C:], realBeginLBA-entry0LBA)

	e1 := 0x1BE + 16
	mbr[e1+0x00] = 0x80
	mbr[e1+0x04] = byte(PartitionTypeFAT16LBA)
	binary.LittleEndian.PutUint32(mbr[e1+0x08:], storedLBA)
	binary.LittleEndian.PutUint32(mbr[e1+0x0C:], uint32(bs.Sectors))
	binary.LittleEndian.PutUint16(mbr[0x1FE:], 0xAA55)
	copy(image, mbr)

	bootOff := int(realBeginLBA) * 512
	copy(image[bootOff:], bootRaw)

	return image
}

func TestMountLegacyPartitionOffsetRecoversRealLBA(t *testing.T) {
	image := buildLegacyTwoPartitionFat16Image(t, 10, 500)
	dev := NewMemBlockDeviceFromImage(image, 512)

	ioman, err := NewIOManager(ManagerConfig{CacheBytes: 4 * 512, BlockSize: 512, LegacyPartitionOffset: true})
	require.NoError(t, err)
	require.NoError(t, ioman.RegisterDevice(dev))

	p, err := MountPartition(ioman, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(500), p.BeginLBA)
}

func TestMountWithoutLegacyOffsetUsesStoredLBAAsAbsolute(t *testing.T) {
	// Same image, but without LegacyPartitionOffset the stored (relative)
	// LBA is trusted as-is, landing on the wrong sector and failing to
	// parse a FAT BPB there.
	image := buildLegacyTwoPartitionFat16Image(t, 10, 500)
	dev := NewMemBlockDeviceFromImage(image, 512)

	ioman, err := NewIOManager(ManagerConfig{CacheBytes: 4 * 512, BlockSize: 512})
	require.NoError(t, err)
	require.NoError(t, ioman.RegisterDevice(dev))

	_, err = MountPartition(ioman, 1)
	require.Error(t, err)
}

func TestMountMBRPartitionedFat32(t *testing.T) {
	image := buildMBRPartitionedFat32Image(t)
	dev := NewMemBlockDeviceFromImage(image, 512)

	ioman, err := NewIOManager(ManagerConfig{CacheBytes: 4 * 512, BlockSize: 512, FATCheck: true})
	require.NoError(t, err)
	require.NoError(t, ioman.RegisterDevice(dev))

	p, err := MountPartition(ioman, 0)
	require.NoError(t, err)
	require.Equal(t, FSFat32, p.FSType)
	require.Equal(t, uint32(63), p.BeginLBA)
	require.GreaterOrEqual(t, p.NumClusters, uint32(65525))
	require.Equal(t, uint32(2), p.RootDirCluster)

	require.Equal(t, uint64(p.NumClusters)*uint64(p.SectorsPerCluster)*uint64(p.BlockSize), ioman.VolumeSize())
}

// TestMountRejectsInvalidBytesPerSector covers spec.md §8 end-to-end
// scenario 3: a BPB whose bytes-per-sector field isn't a positive
// multiple of 512 fails with InvalidFormat rather than being mounted.
func TestMountRejectsInvalidBytesPerSector(t *testing.T) {
	image := buildMBRPartitionedFat32Image(t)

	// The partition's BPB sits at the partition's begin LBA (63).
	bootOff := 63 * 512
	binary.LittleEndian.PutUint16(image[bootOff+0x0B:], 513)

	dev := NewMemBlockDeviceFromImage(image, 512)
	ioman, err := NewIOManager(ManagerConfig{CacheBytes: 4 * 512, BlockSize: 512})
	require.NoError(t, err)
	require.NoError(t, ioman.RegisterDevice(dev))

	_, err = MountPartition(ioman, 0)
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestMountRejectsEmptyPartitionEntry(t *testing.T) {
	image := make([]byte, 4096)
	binary.LittleEndian.PutUint16(image[0x1FE:], 0xAA55)
	dev := NewMemBlockDeviceFromImage(image, 512)

	ioman, err := NewIOManager(ManagerConfig{CacheBytes: 4 * 512, BlockSize: 512})
	require.NoError(t, err)
	require.NoError(t, ioman.RegisterDevice(dev))

	_, err = MountPartition(ioman, 0)
	require.ErrorIs(t, err, ErrNoMountablePartition)
}

func TestMountTwiceFailsAlreadyMounted(t *testing.T) {
	image := buildUnpartitionedFat16Image(t)
	dev := NewMemBlockDeviceFromImage(image, 512)

	ioman, err := NewIOManager(ManagerConfig{CacheBytes: 4 * 512, BlockSize: 512})
	require.NoError(t, err)
	require.NoError(t, ioman.RegisterDevice(dev))

	_, err = MountPartition(ioman, 0)
	require.NoError(t, err)

	_, err = MountPartition(ioman, 0)
	require.ErrorIs(t, err, ErrManagerAlreadyMounted)
}
