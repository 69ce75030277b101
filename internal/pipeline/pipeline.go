// Package pipeline implements Aquarium's five-stage (IF/ID/EX/MEM/WB)
// execution engine: the stage latches, hazard handling, and the disabled-
// pipeline serial fallback, mirroring the teacher's operation-interface
// dispatch style from vm/exec.go generalized to Aquarium's ISA.
package pipeline

import (
	"fmt"

	"github.com/aquarium-sim/aquarium/internal/cache"
	"github.com/aquarium-sim/aquarium/internal/intr"
	"github.com/aquarium-sim/aquarium/internal/isa"
	"github.com/aquarium-sim/aquarium/internal/mmu"
	"github.com/aquarium-sim/aquarium/internal/regfile"
)

// ifidLatch holds the instruction word fetched last cycle, awaiting decode.
type ifidLatch struct {
	valid bool
	pc    uint32
	word  uint32
	fault error
}

// idexLatch holds a decoded instruction and its operand values, awaiting
// execute.
type idexLatch struct {
	valid bool
	pc    uint32
	in    isa.Instr
	rs1v  uint32
	rs2v  uint32
	fault error
}

// exmemLatch holds an executed instruction's ALU/branch results, awaiting
// the memory stage.
type exmemLatch struct {
	valid        bool
	pc           uint32
	in           isa.Instr
	result       uint32 // ALU result, or effective address for ld/st
	storeVal     uint32
	branchTaken  bool
	branchTarget uint32
	isBranch     bool
	fault        error
}

// memwbLatch holds a completed instruction's final result, awaiting
// writeback.
type memwbLatch struct {
	valid     bool
	pc        uint32
	in        isa.Instr
	result    uint32
	writesReg bool
	fault     error
}

// memBusy tracks a multi-cycle memory-stage access in progress.
type memBusy struct {
	active    bool
	remaining int
	latch     exmemLatch
}

// Engine is the cycle-level pipeline engine. A disabled Engine (see
// SetEnabled) is driven one instruction at a time via StepSerial instead of
// Tick.
type Engine struct {
	Regs  *regfile.File
	MMU   *mmu.MMU
	Cache *cache.Cache
	Intr  *intr.Controller

	enabled bool

	ifid  ifidLatch
	idex  idexLatch
	exmem exmemLatch
	memwb memwbLatch
	busy  memBusy

	// Cycles, Retired, DataHazardStalls and ControlHazardSquashes are the raw
	// counters consulted by stats.Snapshot.
	Cycles                uint64
	Retired               uint64
	DataHazardStalls      uint64
	ControlHazardSquashes uint64
	MemoryStageCycles     uint64
	OtherStageCycles      uint64

	// Halted is set when an unrecoverable fault (no handler registered) is
	// raised; Tick and StepSerial become no-ops once set.
	Halted    bool
	HaltError error

	// LastRetiredPC is the fetch-time pc of the instruction that completed
	// Writeback most recently. Breakpoints are checked against this, not the
	// live Regs.PC(), since PC may already have advanced several fetches
	// beyond the instruction actually retiring this cycle.
	LastRetiredPC uint32

	// Breakpoints is the set of virtual addresses that pause run loops after
	// the instruction at that address completes Writeback.
	Breakpoints map[uint32]bool
}

// New returns a pipeline engine wired to the given register file, MMU,
// cache and interrupt controller. The pipeline starts enabled.
func New(regs *regfile.File, m *mmu.MMU, c *cache.Cache, ic *intr.Controller) *Engine {
	return &Engine{
		Regs:        regs,
		MMU:         m,
		Cache:       c,
		Intr:        ic,
		enabled:     true,
		Breakpoints: make(map[uint32]bool),
	}
}

// SetEnabled toggles overlapped pipelining. Disable before calling
// StepSerial exclusively; the two modes keep independent cycle-accounting
// paths and should not be interleaved on the same Engine.
func (e *Engine) SetEnabled(on bool) { e.enabled = on }

// Enabled reports whether overlapped pipelining is active.
func (e *Engine) Enabled() bool { return e.enabled }

// halt records a fatal fault and stops further progress.
func (e *Engine) halt(err error) {
	e.Halted = true
	e.HaltError = err
}

// AtBreakpoint reports whether pc (typically LastRetiredPC) has a registered
// breakpoint.
func (e *Engine) AtBreakpoint(pc uint32) bool {
	return e.Breakpoints[pc]
}

func (e *Engine) String() string {
	return fmt.Sprintf("cycle=%d retired=%d pc=%#08x", e.Cycles, e.Retired, e.Regs.PC())
}
