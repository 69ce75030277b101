// Package cache implements the simulator's single-level, 4-way set-associative,
// write-back, no-write-allocate physical cache sitting between the MMU and
// physical memory.
package cache

import "github.com/aquarium-sim/aquarium/internal/mem"

const (
	// Ways is the set associativity.
	Ways = 4
	// Sets is the number of cache sets.
	Sets = 32
	// BlockSize is the cache line size in bytes.
	BlockSize = 64

	indexBits  = 5
	offsetBits = 6
)

// Cycle costs, per the fixed latency model.
const (
	HitCycles       = 10
	MissCycles      = 100
	DirtyWriteback  = 100
	WriteMissCycles = 100 // no-allocate

	// MMIOCycles is charged for an access to a memory-mapped device region.
	// Devices are never cached: their reads are not idempotent (the control
	// region's random/timestamp commands) and their native granularity is a
	// single register access, not a cache-line block.
	MMIOCycles = 10
)

type line struct {
	valid bool
	dirty bool
	tag   uint32
	data  [BlockSize]byte
	lru   uint8 // higher is more recently used
}

// Cache is a 4-way set-associative write-back, no-allocate cache backed by a
// mem.Physical. A disabled Cache (see SetEnabled) bypasses all of this and
// charges a flat WriteMissCycles-equivalent penalty per access. Accesses to
// memory-mapped device regions (below mem.FreeBase) always bypass the cache,
// enabled or not.
type Cache struct {
	sets    [Sets][Ways]line
	backing *mem.Physical
	enabled bool

	ReadHits, ReadMisses   uint64
	WriteHits, WriteMisses uint64
	Evictions              uint64
	WritebackEvicts        uint64
}

// isMMIO reports whether pa falls in a memory-mapped device region rather
// than backing RAM.
func isMMIO(pa uint32) bool { return pa < mem.FreeBase }

// New returns a cache backed by mem, enabled by default.
func New(mem *mem.Physical) *Cache {
	return &Cache{backing: mem, enabled: true}
}

// SetEnabled toggles the cache; when disabled, every access is charged the
// flat FlatCycles cost regardless of hit/miss state, per the disabled-cache
// invariant.
func (c *Cache) SetEnabled(on bool) { c.enabled = on }

// Enabled reports whether the cache is currently active.
func (c *Cache) Enabled() bool { return c.enabled }

// FlatCycles is the uniform per-access cost when the cache is disabled.
const FlatCycles = 100

func split(pa uint32) (tag uint32, index uint32, offset uint32) {
	offset = pa & (1<<offsetBits - 1)
	index = (pa >> offsetBits) & (1<<indexBits - 1)
	tag = pa >> (offsetBits + indexBits)

	return tag, index, offset
}

func (c *Cache) findWay(set *[Ways]line, tag uint32) (int, bool) {
	for i := range set {
		if set[i].valid && set[i].tag == tag {
			return i, true
		}
	}

	return -1, false
}

// evict picks a victim way using strict LRU and returns its index.
func evict(set *[Ways]line) int {
	victim := 0

	for i := range set {
		if !set[i].valid {
			return i
		}

		if set[i].lru < set[victim].lru {
			victim = i
		}
	}

	return victim
}

func touch(set *[Ways]line, way int) {
	max := set[way].lru

	for i := range set {
		if i != way && set[i].lru > max {
			max = set[i].lru
		}
	}

	set[way].lru = max + 1
}

// Read returns size bytes (<=4) at physical address pa, and the cycle cost
// charged for the access.
func (c *Cache) Read(pa uint32, size int) ([]byte, int, error) {
	if isMMIO(pa) {
		b, err := c.backing.Read(pa, size)
		return b, MMIOCycles, err
	}

	if !c.enabled {
		b, err := c.backing.Read(pa, size)
		return b, FlatCycles, err
	}

	tag, index, offset := split(pa)
	set := &c.sets[index]

	way, hit := c.findWay(set, tag)

	if hit {
		touch(set, way)
		c.ReadHits++

		out := make([]byte, size)
		copy(out, set[way].data[offset:int(offset)+size])

		return out, HitCycles, nil
	}

	c.ReadMisses++

	cost := c.installLine(set, index, tag)

	way, _ = c.findWay(set, tag)

	out := make([]byte, size)
	copy(out, set[way].data[offset:int(offset)+size])

	return out, cost, nil
}

// installLine loads the block containing address (tag:index) from backing
// memory into a line, evicting and writing back a dirty victim if needed.
// It returns the cycle cost of the install (not counting the hit itself).
func (c *Cache) installLine(set *[Ways]line, index, tag uint32) int {
	way := evict(set)
	cost := MissCycles

	if set[way].valid && set[way].dirty {
		blockBase := (set[way].tag << (offsetBits + indexBits)) | (index << offsetBits)
		_ = c.backing.Write(blockBase, set[way].data[:])
		cost += DirtyWriteback
		c.WritebackEvicts++
	}

	if set[way].valid {
		c.Evictions++
	}

	blockBase := (tag << (offsetBits + indexBits)) | (index << offsetBits)

	block, _ := c.backing.Read(blockBase, BlockSize)
	copy(set[way].data[:], block)

	set[way].valid = true
	set[way].dirty = false
	set[way].tag = tag

	touch(set, way)

	return cost
}

// Write stores data (len <=4) at physical address pa, write-back and
// no-allocate: a hit updates the cached line and marks it dirty, deferring
// the write to backing memory until the line is evicted; a miss goes
// straight to backing memory without installing a line.
func (c *Cache) Write(pa uint32, data []byte) (int, error) {
	if isMMIO(pa) {
		err := c.backing.Write(pa, data)
		return MMIOCycles, err
	}

	if !c.enabled {
		err := c.backing.Write(pa, data)
		return FlatCycles, err
	}

	tag, index, offset := split(pa)
	set := &c.sets[index]

	way, hit := c.findWay(set, tag)
	if hit {
		copy(set[way].data[offset:int(offset)+len(data)], data)
		set[way].dirty = true
		touch(set, way)
		c.WriteHits++

		return HitCycles, nil
	}

	c.WriteMisses++

	return WriteMissCycles, c.backing.Write(pa, data)
}
