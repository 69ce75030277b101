package cache

// WayView is a read-only view of one cache way's tag/dirty/LRU state.
type WayView struct {
	Valid bool
	Dirty bool
	Tag   uint32
	LRU   uint8
}

// SetView is a read-only view of one cache set's four ways.
type SetView [Ways]WayView

// Snapshot returns a per-set, per-way view of cache state for external
// inspection (statistics and viewer contracts), without exposing the
// underlying block data.
func (c *Cache) Snapshot() [Sets]SetView {
	var out [Sets]SetView

	for s := range c.sets {
		for w := range c.sets[s] {
			l := c.sets[s][w]
			out[s][w] = WayView{Valid: l.valid, Dirty: l.dirty, Tag: l.tag, LRU: l.lru}
		}
	}

	return out
}

// HitRate returns the fraction of accesses (reads and writes combined) that
// hit, or 0 if there have been no accesses yet.
func (c *Cache) HitRate() float64 {
	hits := c.ReadHits + c.WriteHits
	total := hits + c.ReadMisses + c.WriteMisses

	if total == 0 {
		return 0
	}

	return float64(hits) / float64(total)
}
