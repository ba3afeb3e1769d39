package disk

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/embeddedfs/fatio/internal/logger"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, cacheBlocks int) (*IOManager, *MemBlockDevice) {
	t.Helper()

	ioman, err := NewIOManager(ManagerConfig{
		CacheBytes:      uint32(cacheBlocks) * 512,
		BlockSize:       512,
		DriverBusySleep: time.Millisecond,
	})
	require.NoError(t, err)

	dev := NewMemBlockDevice(64*512, 512)
	require.NoError(t, ioman.RegisterDevice(dev))

	return ioman, dev
}

func TestAcquireReleaseReadBasic(t *testing.T) {
	ioman, _ := newTestManager(t, 4)

	h, err := ioman.Acquire(0, ModeRead)
	require.NoError(t, err)
	require.Len(t, h.Bytes(), 512)
	require.Equal(t, uint32(0), h.Sector())
	require.Equal(t, ModeRead, h.Mode())

	ioman.Release(h)
}

func TestWriteThenFlushPersistsToDevice(t *testing.T) {
	ioman, dev := newTestManager(t, 4)

	h, err := ioman.Acquire(3, ModeWrite)
	require.NoError(t, err)
	copy(h.Bytes(), []byte("hello, fat"))
	ioman.Release(h)

	require.NoError(t, ioman.FlushCache())

	snap := dev.Snapshot()
	require.Equal(t, []byte("hello, fat"), snap[3*512:3*512+10])
}

func TestReleasedWriteSlotStaysDirtyUntilFlush(t *testing.T) {
	// I5: release alone never flushes.
	ioman, dev := newTestManager(t, 4)

	h, err := ioman.Acquire(1, ModeWrite)
	require.NoError(t, err)
	copy(h.Bytes(), []byte("unflushed!"))
	ioman.Release(h)

	snap := dev.Snapshot()
	require.NotEqual(t, []byte("unflushed!"), snap[1*512:1*512+10])
}

func TestCleanReadHitDoesNotRefetch(t *testing.T) {
	ioman, dev := newTestManager(t, 4)

	h1, err := ioman.Acquire(5, ModeRead)
	require.NoError(t, err)
	ioman.Release(h1)

	// Corrupt the device directly; a clean-hit Acquire must not reread it.
	raw := dev.data
	copy(raw[5*512:5*512+4], []byte{1, 2, 3, 4})

	h2, err := ioman.Acquire(5, ModeRead)
	require.NoError(t, err)
	require.NotEqual(t, byte(1), h2.Bytes()[0])
	ioman.Release(h2)
}

func TestEvictionFlushesDirtyVictim(t *testing.T) {
	ioman, dev := newTestManager(t, 1)

	h0, err := ioman.Acquire(0, ModeWrite)
	require.NoError(t, err)
	copy(h0.Bytes(), []byte("victim"))
	ioman.Release(h0)

	// Only one slot: acquiring a different sector must evict slot 0,
	// which is dirty, forcing a flush of sector 0 before reuse.
	h1, err := ioman.Acquire(1, ModeRead)
	require.NoError(t, err)
	ioman.Release(h1)

	snap := dev.Snapshot()
	require.Equal(t, []byte("victim"), snap[0:6])
}

func TestRegisterDeviceTwiceFails(t *testing.T) {
	ioman, _ := newTestManager(t, 2)
	err := ioman.RegisterDevice(NewMemBlockDevice(4096, 512))
	require.ErrorIs(t, err, ErrDeviceAlreadyRegd)
}

func TestRegisterDeviceRejectsIncompatibleBlockSize(t *testing.T) {
	ioman, err := NewIOManager(ManagerConfig{CacheBytes: 2048, BlockSize: 512})
	require.NoError(t, err)

	err = ioman.RegisterDevice(NewMemBlockDevice(4096, 300))
	require.ErrorIs(t, err, ErrDeviceInvalidBlkSize)
}

func TestDriverBusyIsRetriedUntilSuccess(t *testing.T) {
	ioman, dev := newTestManager(t, 2)
	dev.SetBusyEvery(3)

	// Three cache misses make three device reads; the third one reports
	// busy first and must be retried.
	for sector := uint32(7); sector < 10; sector++ {
		h, err := ioman.Acquire(sector, ModeRead)
		require.NoError(t, err)
		ioman.Release(h)
	}
}

func TestFlushCacheSurfacesDeviceWriteFailure(t *testing.T) {
	ioman, dev := newTestManager(t, 2)

	h, err := ioman.Acquire(2, ModeWrite)
	require.NoError(t, err)
	copy(h.Bytes(), []byte("boom"))
	ioman.Release(h)

	// The fail sector also fails reads, so it is set only after the
	// Acquire has filled the slot.
	dev.SetFailSector(2)
	err = ioman.FlushCache()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrDeviceDriverFailed)
}

func TestConcurrentAcquireReleaseIsRaceFree(t *testing.T) {
	ioman, _ := newTestManager(t, 4)

	var wg sync.WaitGroup
	errs := make(chan error, 64)

	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				sector := uint32((seed + i) % 8)
				mode := ModeRead
				if i%3 == 0 {
					mode = ModeWrite
				}
				h, err := ioman.Acquire(sector, mode)
				if err != nil {
					errs <- err
					return
				}
				if mode == ModeWrite {
					h.Bytes()[0] = byte(i)
				}
				ioman.Release(h)
			}
		}(g)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.NoError(t, ioman.FlushCache())
}

func TestVolumeSizeZeroBeforeMount(t *testing.T) {
	ioman, _ := newTestManager(t, 2)
	require.Equal(t, uint64(0), ioman.VolumeSize())
	require.Nil(t, ioman.Partition())
}

func TestMountPartitionRejectsOutOfRangeIndex(t *testing.T) {
	ioman, _ := newTestManager(t, 2)
	_, err := MountPartition(ioman, 4)
	require.True(t, errors.Is(err, ErrInvalidPartitionNum))
}

func TestEvictionOfDirtyVictimLogsWarning(t *testing.T) {
	var buf bytes.Buffer
	ioman, err := NewIOManager(ManagerConfig{
		CacheBytes: 512,
		BlockSize:  512,
		Logger:     logger.New(&buf, logger.WarnLevel),
	})
	require.NoError(t, err)
	require.NoError(t, ioman.RegisterDevice(NewMemBlockDevice(64*512, 512)))

	h0, err := ioman.Acquire(0, ModeWrite)
	require.NoError(t, err)
	ioman.Release(h0)

	h1, err := ioman.Acquire(1, ModeRead)
	require.NoError(t, err)
	ioman.Release(h1)

	require.Contains(t, buf.String(), "[WARN]")
	require.True(t, strings.Contains(buf.String(), "evicting dirty slot"))
}

func TestFlushFailureLogsError(t *testing.T) {
	var buf bytes.Buffer
	ioman, err := NewIOManager(ManagerConfig{
		CacheBytes: 2 * 512,
		BlockSize:  512,
		Logger:     logger.New(&buf, logger.ErrorLevel),
	})
	require.NoError(t, err)
	dev := NewMemBlockDevice(64*512, 512)
	require.NoError(t, ioman.RegisterDevice(dev))

	h, err := ioman.Acquire(1, ModeWrite)
	require.NoError(t, err)
	ioman.Release(h)

	dev.SetFailSector(1)
	require.Error(t, ioman.FlushCache())
	require.Contains(t, buf.String(), "[ERROR]")
}
