// Package regfile implements the Aquarium architectural register file: r0..r15,
// the program counter, and the per-register pending-write scoreboard the pipeline's
// decode stage consults to detect read-after-write hazards.
package regfile

import (
	"fmt"

	"github.com/aquarium-sim/aquarium/internal/isa"
)

// File holds the sixteen general-purpose registers, the program counter, and a
// pending-write bit per register.
type File struct {
	regs    [isa.NumGPR]uint32
	pc      uint32
	pending [isa.NumGPR]bool
}

// New creates a zeroed register file with pc set to entry.
func New(entry uint32) *File {
	return &File{pc: entry}
}

// Read returns the value of register idx. r0 always reads as zero.
func (f *File) Read(idx uint8) uint32 {
	if idx == isa.R0 {
		return 0
	}

	return f.regs[idx&0xf]
}

// Write stores value into register idx. Writes to r0 are silently discarded.
func (f *File) Write(idx uint8, value uint32) {
	if idx == isa.R0 {
		return
	}

	f.regs[idx&0xf] = value
}

// PC returns the current program counter.
func (f *File) PC() uint32 { return f.pc }

// SetPC sets the program counter.
func (f *File) SetPC(pc uint32) { f.pc = pc }

// MarkPending sets the pending-write bit for a register about to be written by an
// in-flight instruction. r0 is never marked, since writes to it never take effect.
func (f *File) MarkPending(idx uint8) {
	if idx != isa.R0 {
		f.pending[idx&0xf] = true
	}
}

// ClearPending clears the pending-write bit, called at writeback or when the
// in-flight instruction that set it is squashed.
func (f *File) ClearPending(idx uint8) {
	f.pending[idx&0xf] = false
}

// Pending reports whether register idx has an outstanding write in flight.
func (f *File) Pending(idx uint8) bool {
	if idx == isa.R0 {
		return false
	}

	return f.pending[idx&0xf]
}

// Snapshot is a read-only copy of the register file's state, safe to retain.
type Snapshot struct {
	Regs    [isa.NumGPR]uint32
	PC      uint32
	Pending [isa.NumGPR]bool
}

// Snapshot copies the current register state.
func (f *File) Snapshot() Snapshot {
	return Snapshot{Regs: f.regs, PC: f.pc, Pending: f.pending}
}

func (f *File) String() string {
	return fmt.Sprintf("pc=%#08x r1=%#08x r15=%#08x", f.pc, f.regs[1], f.regs[15])
}
