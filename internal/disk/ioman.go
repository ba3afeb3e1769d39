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
package disk

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/embeddedfs/fatio/internal/logger"
)

// DefaultDriverBusySleep is the delay the IOManager waits between
// DRIVER_BUSY retries when ManagerConfig.DriverBusySleep is zero.
const DefaultDriverBusySleep = 10 * time.Millisecond

// ManagerConfig carries the IOManager's construction-time and mount-time
// tunables (spec.md §2.3 of SPEC_FULL.md).
type ManagerConfig struct {
	// CacheMem, if non-nil, is used as the pool's backing storage instead
	// of an allocated buffer; it must be at least CacheBytes long.
	CacheMem []byte

	CacheBytes uint32
	BlockSize  uint16

	// DriverBusySleep is how long Acquire/FlushCache wait between
	// ErrDriverBusy retries. Defaults to DefaultDriverBusySleep.
	DriverBusySleep time.Duration

	// FATCheck enables the FAT[0] sanity check of spec.md §4.4 step 7
	// during MountPartition. This is a runtime flag standing in for the
	// source's compile-time FF_FAT_CHECK.
	FATCheck bool

	// LegacyPartitionOffset reproduces the source's oddity (spec.md §9):
	// when mounting partition p>0, partition 0's starting LBA is added to
	// partition p's own LBA. The zero value is false (standard, absolute
	// MBR partition LBAs); callers that need bit-compatibility with
	// existing FullFAT-formatted images set this true (cmd/cmd's
	// volume-info command defaults its own flag to true for that reason).
	LegacyPartitionOffset bool

	// IndexedLookup enables the pkg/table-backed sector->slot hint as a
	// fast path alongside the spec's linear scan (SPEC_FULL.md §3, §5.1).
	// It never changes which slot Acquire returns, only how quickly a
	// cache hit is found in a large pool.
	IndexedLookup bool

	Logger *logger.Logger
}

// IOManager owns a Buffer Pool and, once mounted, a Partition Descriptor.
// It mediates concurrent Acquire/Release requests against the pool under
// a single mutex, dropping that mutex only across device I/O (spec.md
// §4.3, §5).
type IOManager struct {
	mu sync.Mutex

	pool   *pool
	device BlockDevice

	driverBusySleep time.Duration
	fatCheck        bool
	legacyPartOff   bool
	log             *logger.Logger

	partition *Partition
}

// NewIOManager creates an IOManager with its own Buffer Pool (spec.md
// §6 `create`). Unlike the source's malloc-and-unwind constructor, a Go
// constructor either returns a fully usable *IOManager or an error: there
// is no partially-initialised value to tear down (spec.md §9).
func NewIOManager(cfg ManagerConfig) (*IOManager, error) {
	p, err := newPool(cfg.CacheMem, cfg.CacheBytes, cfg.BlockSize, cfg.IndexedLookup)
	if err != nil {
		return nil, err
	}

	sleep := cfg.DriverBusySleep
	if sleep <= 0 {
		sleep = DefaultDriverBusySleep
	}

	return &IOManager{
		pool:            p,
		driverBusySleep: sleep,
		fatCheck:        cfg.FATCheck,
		legacyPartOff:   cfg.LegacyPartitionOffset,
		log:             cfg.Logger,
	}, nil
}

// Destroy releases the IOManager's resources. A mounted IOManager should
// have FlushCache called first if dirty data must reach the device.
func (m *IOManager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pool = nil
	m.device = nil
	m.partition = nil
}

func (m *IOManager) BlockSize() uint16 {
	return m.pool.blockSize
}

func (m *IOManager) CacheSize() int {
	return m.pool.size()
}

// RegisterDevice attaches the BlockDevice that backs this IOManager
// (spec.md §4.1, §6 `register_device`). Re-registering while a device is
// already attached fails with ErrDeviceAlreadyRegd, protecting in-flight
// I/O from corruption.
func (m *IOManager) RegisterDevice(dev BlockDevice) error {
	if dev == nil {
		return ErrNullPointer
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return ErrDeviceAlreadyRegd
	}

	devBlkSize := dev.BlockSize()
	if devBlkSize == 0 || devBlkSize%512 != 0 {
		return fmt.Errorf("%w: %d is not a positive multiple of 512", ErrDeviceInvalidBlkSize, devBlkSize)
	}
	if devBlkSize%m.pool.blockSize != 0 {
		return fmt.Errorf("%w: %d is not a multiple of the manager's block size %d", ErrDeviceInvalidBlkSize, devBlkSize, m.pool.blockSize)
	}

	m.device = dev
	return nil
}

// BufferHandle is a shared borrow of one cache slot, returned by Acquire.
// The caller must call IOManager.Release exactly once per handle.
type BufferHandle struct {
	slot   *bufferDescriptor
	sector uint32
	mode   Mode
}

// Bytes is a view of exactly BlockSize() bytes backing this handle's
// sector. It is safe to read (Read mode) or read/write (Write mode) until
// the handle is released.
func (h *BufferHandle) Bytes() []byte { return h.slot.bytes }
func (h *BufferHandle) Sector() uint32 { return h.sector }
func (h *BufferHandle) Mode() Mode     { return h.mode }

// fillBuffer reads `sector` from the device into buf, retrying while the
// driver reports ErrDriverBusy (spec.md §4.1).
func (m *IOManager) fillBuffer(sector uint32, buf []byte) error {
	for {
		n, err := m.device.ReadBlocks(buf, sector, 1)
		if err == nil {
			if n != 1 {
				return fmt.Errorf("%w: read %d blocks, expected 1", ErrDeviceDriverFailed, n)
			}
			return nil
		}
		if isDriverBusy(err) {
			runtime.Gosched()
			time.Sleep(m.driverBusySleep)
			continue
		}
		return fmt.Errorf("%w: %v", ErrDeviceDriverFailed, err)
	}
}

// flushBuffer writes `sector` to the device from buf, retrying while the
// driver reports ErrDriverBusy (spec.md §4.1).
func (m *IOManager) flushBuffer(sector uint32, buf []byte) error {
	for {
		n, err := m.device.WriteBlocks(buf, sector, 1)
		if err == nil {
			if n != 1 {
				return fmt.Errorf("%w: wrote %d blocks, expected 1", ErrDeviceDriverFailed, n)
			}
			return nil
		}
		if isDriverBusy(err) {
			runtime.Gosched()
			time.Sleep(m.driverBusySleep)
			continue
		}
		return fmt.Errorf("%w: %v", ErrDeviceDriverFailed, err)
	}
}

func isDriverBusy(err error) bool {
	return errors.Is(err, ErrDriverBusy)
}

// Acquire returns a handle to the buffer caching `sector` under the
// requested mode, materialising it from the device if necessary. It
// implements the search order of spec.md §4.3: a Read acquire tries a
// clean Read hit, then a stale Read slot, then a quiescent Write slot
// (demanding exclusivity), then plain eviction; a Write acquire always
// demands exclusive state and skips the clean-hit step.
func (m *IOManager) Acquire(sector uint32, mode Mode) (*BufferHandle, error) {
	if !mode.valid() {
		return nil, fmt.Errorf("%w: invalid mode %d", ErrNullPointer, mode)
	}
	if m.device == nil {
		return nil, ErrDeviceDriverFailed
	}

	for {
		m.mu.Lock()

		if mode == ModeRead {
			if h := m.tryCleanReadHit(sector); h != nil {
				m.mu.Unlock()
				return h, nil
			}

			if slot, ok := m.findStaleRead(sector); ok {
				h, err := m.refillStaleRead(slot, sector)
				if err != nil {
					return nil, err
				}
				return h, nil
			}
		}

		if slot, ok := m.findQuiescentWrite(sector); ok {
			h, err := m.takeOverWrite(slot, sector, mode)
			if err != nil {
				return nil, err
			}
			return h, nil
		}

		if slot, ok := m.findEvictable(); ok {
			h, err := m.evictAndFill(slot, sector, mode)
			if err != nil {
				return nil, err
			}
			return h, nil
		}

		// No candidate: drop the lock, yield, and restart (spec.md §4.3 step 5).
		m.mu.Unlock()
		runtime.Gosched()
	}
}

// tryCleanReadHit implements search-order step 1. Caller holds m.mu and
// must unlock it itself on a hit; on a miss m.mu remains held.
func (m *IOManager) tryCleanReadHit(sector uint32) *BufferHandle {
	if slot, ok := m.pool.index.hint(sector); ok && slot >= 0 && slot < len(m.pool.slots) {
		s := &m.pool.slots[slot]
		if s.sector == sector && s.mode == ModeRead && !s.modified && !s.inService {
			s.numHandles++
			s.persistence++
			if m.log != nil {
				m.log.Debugf("acquire: clean read hit (indexed) sector=%d slot=%d", sector, s.id)
			}
			return &BufferHandle{slot: s, sector: sector, mode: ModeRead}
		}
	}

	for i := range m.pool.slots {
		s := &m.pool.slots[i]
		if s.sector == sector && s.mode == ModeRead && !s.modified && !s.inService {
			s.numHandles++
			s.persistence++
			if m.log != nil {
				m.log.Debugf("acquire: clean read hit sector=%d slot=%d", sector, s.id)
			}
			return &BufferHandle{slot: s, sector: sector, mode: ModeRead}
		}
	}
	return nil
}

// findStaleRead implements the lookup half of search-order step 2. Caller
// holds m.mu; it is still held on return.
func (m *IOManager) findStaleRead(sector uint32) (*bufferDescriptor, bool) {
	for i := range m.pool.slots {
		s := &m.pool.slots[i]
		if s.sector == sector && s.mode == ModeRead && s.modified && s.numHandles == 0 && !s.inService {
			return s, true
		}
	}
	return nil, false
}

// refillStaleRead performs the device refetch of search-order step 2,
// dropping m.mu across the I/O and reacquiring it before returning.
// Caller must hold m.mu on entry; it is released on return.
func (m *IOManager) refillStaleRead(s *bufferDescriptor, sector uint32) (*BufferHandle, error) {
	s.inService = true
	m.mu.Unlock()

	err := m.fillBuffer(sector, s.bytes)

	m.mu.Lock()
	s.inService = false
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	s.modified = false
	s.numHandles++
	s.persistence++
	m.pool.index.put(sector, s.id)
	m.mu.Unlock()

	if m.log != nil {
		m.log.Debugf("acquire: refilled stale read sector=%d slot=%d", sector, s.id)
	}
	return &BufferHandle{slot: s, sector: sector, mode: ModeRead}, nil
}

// findQuiescentWrite implements the lookup half of search-order step 3.
func (m *IOManager) findQuiescentWrite(sector uint32) (*bufferDescriptor, bool) {
	for i := range m.pool.slots {
		s := &m.pool.slots[i]
		if s.sector == sector && !s.inService && s.mode == ModeWrite && s.numHandles == 0 {
			return s, true
		}
	}
	return nil, false
}

// takeOverWrite flushes a quiescent Write slot and hands it to the
// acquirer under its requested mode (search-order step 3, I3). Caller
// holds m.mu on entry; it is released on return.
func (m *IOManager) takeOverWrite(s *bufferDescriptor, sector uint32, mode Mode) (*BufferHandle, error) {
	s.inService = true
	m.mu.Unlock()

	err := m.flushBuffer(sector, s.bytes)

	m.mu.Lock()
	s.inService = false
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	m.markOtherReadersModified(s)
	s.numHandles = 1
	s.mode = mode
	m.pool.index.put(sector, s.id)
	m.mu.Unlock()

	if m.log != nil {
		m.log.Debugf("acquire: took over write slot sector=%d slot=%d newMode=%d", sector, s.id, mode)
	}
	return &BufferHandle{slot: s, sector: sector, mode: mode}, nil
}

// findEvictable implements search-order step 4's slot selection: any
// unpinned, not-in-service slot. Per spec.md §9 the source never
// consults `persistence` when evicting, and neither do we; callers must
// not assume a particular victim.
func (m *IOManager) findEvictable() (*bufferDescriptor, bool) {
	for i := range m.pool.slots {
		s := &m.pool.slots[i]
		if s.numHandles == 0 && !s.inService {
			return s, true
		}
	}
	return nil, false
}

// evictAndFill flushes an evicted Write slot if necessary, then refills
// it with `sector` (search-order step 4). Caller holds m.mu on entry; it
// is released on return.
func (m *IOManager) evictAndFill(s *bufferDescriptor, sector uint32, mode Mode) (*BufferHandle, error) {
	s.inService = true
	wasWrite := s.mode == ModeWrite
	evictedSector := s.sector
	m.mu.Unlock()

	if wasWrite {
		if err := m.flushBuffer(evictedSector, s.bytes); err != nil {
			m.mu.Lock()
			s.inService = false
			m.mu.Unlock()
			if m.log != nil {
				m.log.Warnf("acquire: eviction of dirty slot=%d sector=%d failed to flush: %v", s.id, evictedSector, err)
			}
			return nil, err
		}
		if m.log != nil {
			m.log.Warnf("acquire: evicting dirty slot=%d sector=%d, forcing a flush before reuse for sector=%d", s.id, evictedSector, sector)
		}
	}

	err := m.fillBuffer(sector, s.bytes)

	m.mu.Lock()
	s.inService = false
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	if wasWrite {
		m.markOtherReadersModified(s)
	}

	s.mode = mode
	s.sector = sector
	s.numHandles = 1
	s.persistence = 1
	s.modified = false
	m.pool.index.put(sector, s.id)
	m.mu.Unlock()

	if m.log != nil {
		m.log.Debugf("acquire: evicted slot=%d for sector=%d (was write=%v)", s.id, sector, wasWrite)
	}
	return &BufferHandle{slot: s, sector: sector, mode: mode}, nil
}

// markOtherReadersModified sets Modified=true on every slot other than
// `flushed` that caches the same sector and is in Read mode (I3). Caller
// must hold m.mu.
func (m *IOManager) markOtherReadersModified(flushed *bufferDescriptor) {
	for i := range m.pool.slots {
		s := &m.pool.slots[i]
		if s != flushed && s.sector == flushed.sector && s.mode == ModeRead {
			s.modified = true
		}
	}
}

// Release decrements the handle's reference count. No flush is triggered
// on release (spec.md §4.3): a released Write slot stays dirty (I5).
func (m *IOManager) Release(h *BufferHandle) {
	if h == nil {
		return
	}
	m.mu.Lock()
	h.slot.numHandles--
	m.mu.Unlock()
}

// FlushCache writes every quiescent, dirty slot to the device, downgrades
// it to Read, and invalidates other Read replicas of the same sector
// (spec.md §4.3 `flush_cache`). It returns only after the full sweep
// completes, and the first device-write failure it meets is surfaced
// rather than silently discarded (spec.md §5.3 / §9 second open question).
func (m *IOManager) FlushCache() error {
	for i := range m.pool.slots {
		if err := m.flushSlotIfDirty(i); err != nil {
			return err
		}
	}
	return nil
}

func (m *IOManager) flushSlotIfDirty(i int) error {
	m.mu.Lock()
	s := &m.pool.slots[i]
	if s.numHandles != 0 || s.mode != ModeWrite || s.inService {
		m.mu.Unlock()
		return nil
	}
	s.inService = true
	sector := s.sector
	m.mu.Unlock()

	err := m.flushBuffer(sector, s.bytes)

	m.mu.Lock()
	s.inService = false
	if err != nil {
		m.mu.Unlock()
		if m.log != nil {
			m.log.Errorf("flush_cache: slot=%d sector=%d failed to flush, remains dirty: %v", i, sector, err)
		}
		return err
	}
	s.mode = ModeRead
	m.markOtherReadersModified(s)
	m.mu.Unlock()

	if m.log != nil {
		m.log.Debugf("flush_cache: flushed slot=%d sector=%d", i, sector)
	}
	return nil
}
