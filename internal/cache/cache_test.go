package cache_test

import (
	"testing"

	"github.com/aquarium-sim/aquarium/internal/cache"
	"github.com/aquarium-sim/aquarium/internal/mem"
)

func newCache() (*cache.Cache, *mem.Physical) {
	m := mem.New(0x10000)
	return cache.New(m), m
}

// TestFirstAccessMisses checks scenario S3: the first access to a fresh line
// is a miss (100 cycles), and subsequent accesses to the same line hit (10
// cycles each).
func TestFirstAccessMisses(t *testing.T) {
	c, _ := newCache()

	addr := uint32(mem.FreeBase)

	_, cost, err := c.Read(addr, 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if cost != cache.MissCycles {
		t.Errorf("first access cost = %d, want %d", cost, cache.MissCycles)
	}

	for i := 0; i < 99; i++ {
		_, cost, err := c.Read(addr, 4)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}

		if cost != cache.HitCycles {
			t.Errorf("access %d cost = %d, want %d", i, cost, cache.HitCycles)
		}
	}

	if c.ReadHits != 99 || c.ReadMisses != 1 {
		t.Errorf("hits=%d misses=%d, want 99/1", c.ReadHits, c.ReadMisses)
	}

	if rate := c.HitRate(); rate != 0.99 {
		t.Errorf("HitRate = %v, want 0.99", rate)
	}
}

// TestSingleValidWayPerTag checks that a set never holds the same tag valid
// in two ways at once.
func TestSingleValidWayPerTag(t *testing.T) {
	c, _ := newCache()

	addr := uint32(mem.FreeBase)

	for i := 0; i < 5; i++ {
		if _, _, err := c.Read(addr, 4); err != nil {
			t.Fatalf("Read: %v", err)
		}
	}

	snap := c.Snapshot()

	_, index, _ := splitForTest(addr)

	seen := 0

	for _, way := range snap[index] {
		if way.Valid {
			seen++
		}
	}

	if seen != 1 {
		t.Errorf("expected exactly one valid way for repeated reads of the same tag, got %d", seen)
	}
}

func splitForTest(pa uint32) (tag, index, offset uint32) {
	offset = pa & 0x3f
	index = (pa >> 6) & 0x1f
	tag = pa >> 11

	return tag, index, offset
}

// TestLRUEviction fills a set's four ways, accesses the first three again to
// keep them warm, then installs a fifth distinct tag and checks that the
// least-recently-used way (the one never re-touched) was evicted.
func TestLRUEviction(t *testing.T) {
	c, _ := newCache()

	base := uint32(mem.FreeBase)
	stride := uint32(cache.Sets * cache.BlockSize) // same set, different tag

	addrs := make([]uint32, 5)
	for i := range addrs {
		addrs[i] = base + uint32(i)*stride
	}

	for i := 0; i < 4; i++ {
		if _, _, err := c.Read(addrs[i], 4); err != nil {
			t.Fatalf("Read: %v", err)
		}
	}

	// Re-touch ways 1,2,3 (LRU order now: 0 is least recently used).
	for i := 1; i < 4; i++ {
		if _, _, err := c.Read(addrs[i], 4); err != nil {
			t.Fatalf("Read: %v", err)
		}
	}

	if _, _, err := c.Read(addrs[4], 4); err != nil {
		t.Fatalf("Read: %v", err)
	}

	// addrs[0]'s tag should have been evicted; reading it again must miss.
	missesBefore := c.ReadMisses

	if _, _, err := c.Read(addrs[0], 4); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if c.ReadMisses != missesBefore+1 {
		t.Error("expected the least-recently-used line to have been evicted")
	}
}

// TestDirtyWritebackOnEviction checks that a write-dirtied line is held in
// the cache (not written through to backing memory on the hit that dirtied
// it) and is only written back to backing memory when evicted.
func TestDirtyWritebackOnEviction(t *testing.T) {
	c, m := newCache()

	base := uint32(mem.FreeBase)
	stride := uint32(cache.Sets * cache.BlockSize)

	// Install the line at base (read-miss, allocates).
	if _, _, err := c.Read(base, 4); err != nil {
		t.Fatalf("Read: %v", err)
	}

	// A write hit must dirty the line without writing through to backing.
	if _, err := c.Write(base, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if got, err := m.Read(base, 4); err != nil {
		t.Fatalf("backing Read: %v", err)
	} else if got[0] == 1 && got[1] == 2 && got[2] == 3 && got[3] == 4 {
		t.Error("write hit must not write through to backing memory before eviction")
	}

	// Install and touch 4 more distinct tags in the same set to force
	// eviction of the first (strict LRU, never re-touched).
	for i := 1; i <= 4; i++ {
		addr := base + uint32(i)*stride
		if _, _, err := c.Read(addr, 4); err != nil {
			t.Fatalf("Read: %v", err)
		}
	}

	got, err := m.Read(base, 4)
	if err != nil {
		t.Fatalf("backing Read: %v", err)
	}

	want := []byte{1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("backing memory byte %d = %#x, want %#x (dirty writeback lost)", i, got[i], want[i])
		}
	}

	if c.WritebackEvicts == 0 {
		t.Error("expected at least one dirty writeback on eviction")
	}
}

// TestDisabledCacheIsFlatCost checks that a disabled cache charges the
// uniform FlatCycles cost regardless of access pattern.
func TestDisabledCacheIsFlatCost(t *testing.T) {
	c, _ := newCache()
	c.SetEnabled(false)

	addr := uint32(mem.FreeBase)

	for i := 0; i < 5; i++ {
		_, cost, err := c.Read(addr, 4)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}

		if cost != cache.FlatCycles {
			t.Errorf("access %d cost = %d, want flat %d", i, cost, cache.FlatCycles)
		}
	}

	if c.ReadHits != 0 || c.ReadMisses != 0 || c.WriteHits != 0 || c.WriteMisses != 0 {
		t.Error("disabled cache should not record hit/miss statistics")
	}
}

// TestMMIOBypassesCache checks that accesses below mem.FreeBase never
// install a cache line, even when the cache is enabled, and are never
// charged a cache-miss's install cost.
func TestMMIOBypassesCache(t *testing.T) {
	c, _ := newCache()

	addr := uint32(mem.ControlBase)

	if _, err := c.Write(addr, []byte{mem.CmdRandom}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	for i := 0; i < 3; i++ {
		_, cost, err := c.Read(addr, 4)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}

		if cost != cache.MMIOCycles {
			t.Errorf("access %d cost = %d, want %d", i, cost, cache.MMIOCycles)
		}
	}

	if c.ReadHits != 0 || c.ReadMisses != 0 {
		t.Error("MMIO accesses must not be accounted as cache hits/misses")
	}
}

// TestWriteMissNoAllocate checks that a store to a cold line does not
// install it (no-allocate on write miss).
func TestWriteMissNoAllocate(t *testing.T) {
	c, m := newCache()

	addr := uint32(mem.FreeBase)

	cost, err := c.Write(addr, []byte{0xaa, 0xbb, 0xcc, 0xdd})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if cost != cache.WriteMissCycles {
		t.Errorf("write-miss cost = %d, want %d", cost, cache.WriteMissCycles)
	}

	snap := c.Snapshot()

	_, index, _ := splitForTest(addr)

	for _, way := range snap[index] {
		if way.Valid {
			t.Error("write-miss must not install a line (no-allocate)")
		}
	}

	got, err := m.Read(addr, 4)
	if err != nil {
		t.Fatalf("backing Read: %v", err)
	}

	want := []byte{0xaa, 0xbb, 0xcc, 0xdd}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("backing byte %d = %#x, want %#x", i, got[i], want[i])
		}
	}
}
