// Package stats exposes the simulator's read-only counters as a snapshot
// structure, computed from the same accounting the pipeline and cache
// already perform.
package stats

// Snapshot is a point-in-time, immutable copy of the simulator's counters,
// safe to retain and print without touching the live machine.
type Snapshot struct {
	CyclesTotal           uint64
	InstructionsRetired   uint64
	DataHazardStalls      uint64
	ControlHazardSquashes uint64

	CacheReads     uint64
	CacheReadHits  uint64
	CacheWrites    uint64
	CacheWriteHits uint64

	MemoryStageCycles uint64
	OtherStageCycles  uint64
}

// CacheHitRate returns the fraction of all cache accesses (read or write)
// that hit, or 0 if there have been none.
func (s Snapshot) CacheHitRate() float64 {
	total := s.CacheReads + s.CacheWrites
	if total == 0 {
		return 0
	}

	return float64(s.CacheReadHits+s.CacheWriteHits) / float64(total)
}

// MemoryPercent returns the percentage (0-100) of total cycles spent in the
// memory stage.
func (s Snapshot) MemoryPercent() float64 {
	total := s.MemoryStageCycles + s.OtherStageCycles
	if total == 0 {
		return 0
	}

	return float64(s.MemoryStageCycles) / float64(total) * 100
}

// CPUPercent returns the percentage (0-100) of total cycles spent outside the
// memory stage.
func (s Snapshot) CPUPercent() float64 {
	return 100 - s.MemoryPercent()
}
