package stats_test

import (
	"testing"

	"github.com/aquarium-sim/aquarium/internal/stats"
)

func TestCacheHitRate(t *testing.T) {
	s := stats.Snapshot{CacheReads: 100, CacheReadHits: 99}

	if got := s.CacheHitRate(); got != 0.99 {
		t.Errorf("CacheHitRate = %v, want 0.99", got)
	}
}

func TestMemoryAndCPUPercentSumTo100(t *testing.T) {
	s := stats.Snapshot{MemoryStageCycles: 25, OtherStageCycles: 75}

	if got := s.MemoryPercent(); got != 25 {
		t.Errorf("MemoryPercent = %v, want 25", got)
	}

	if got := s.CPUPercent(); got != 75 {
		t.Errorf("CPUPercent = %v, want 75", got)
	}
}

func TestZeroSnapshotDoesNotDivideByZero(t *testing.T) {
	var s stats.Snapshot

	if got := s.CacheHitRate(); got != 0 {
		t.Errorf("CacheHitRate on empty snapshot = %v, want 0", got)
	}

	if got := s.MemoryPercent(); got != 0 {
		t.Errorf("MemoryPercent on empty snapshot = %v, want 0", got)
	}
}
