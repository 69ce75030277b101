package regfile_test

import (
	"testing"

	"github.com/aquarium-sim/aquarium/internal/regfile"
)

// TestR0IsHardwiredZero checks that writes to r0 are no-ops and reads always
// return zero, per the register file's invariant.
func TestR0IsHardwiredZero(t *testing.T) {
	f := regfile.New(0)

	f.Write(0, 0xdead_beef)

	if got := f.Read(0); got != 0 {
		t.Errorf("Read(0) = %#x, want 0", got)
	}
}

func TestWriteRead(t *testing.T) {
	f := regfile.New(0)

	f.Write(3, 42)

	if got := f.Read(3); got != 42 {
		t.Errorf("Read(3) = %d, want 42", got)
	}
}

func TestPC(t *testing.T) {
	f := regfile.New(0x3000)

	if got := f.PC(); got != 0x3000 {
		t.Errorf("PC() = %#x, want 0x3000", got)
	}

	f.SetPC(0x3004)

	if got := f.PC(); got != 0x3004 {
		t.Errorf("PC() = %#x, want 0x3004", got)
	}
}

func TestPendingScoreboard(t *testing.T) {
	f := regfile.New(0)

	f.MarkPending(5)

	if !f.Pending(5) {
		t.Fatal("expected register 5 pending after MarkPending")
	}

	f.ClearPending(5)

	if f.Pending(5) {
		t.Fatal("expected register 5 not pending after ClearPending")
	}
}

func TestR0NeverPending(t *testing.T) {
	f := regfile.New(0)

	f.MarkPending(0)

	if f.Pending(0) {
		t.Fatal("r0 must never be reported pending")
	}
}

func TestSnapshotIndependentOfLiveState(t *testing.T) {
	f := regfile.New(0)
	f.Write(1, 10)

	snap := f.Snapshot()

	f.Write(1, 20)

	if snap.Regs[1] != 10 {
		t.Errorf("snapshot mutated by later write: got %d, want 10", snap.Regs[1])
	}
}
