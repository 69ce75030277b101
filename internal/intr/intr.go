// Package intr implements Aquarium's interrupt controller: the fixed low
// vector slots for fault routing, the software int0 instruction, and the
// save/resume protocol shared by both, mirroring the teacher's vector-table
// interrupt handling in vm/intr.go.
package intr

import (
	"fmt"

	"github.com/aquarium-sim/aquarium/internal/isa"
	"github.com/aquarium-sim/aquarium/internal/mem"
	"github.com/aquarium-sim/aquarium/internal/regfile"
)

// Fixed low vector slots reserved for the fault kinds of the error handling
// table, mirroring the teacher's dedication of fixed slots to PMV/XOP/ACV.
const (
	VectorPageFault          = 1
	VectorPermissionFault    = 2
	VectorIllegalInstruction = 3
	VectorDivideByZero       = 4
	VectorAlignmentFault     = 5

	// VectorInt0 is the vector used by the software `int0` instruction.
	VectorInt0 = 8
)

// Fault is any interrupt-as-error condition the pipeline can raise in flight.
// The pipeline's fault types implement this via Vector(), letting the
// controller route them the same way it routes int0. *mmu.Fault does not;
// the pipeline maps it to VectorPageFault or VectorPermissionFault itself.
type Fault interface {
	error
	Vector() uint32
}

// Controller owns the interrupt vector table (physical 0x0000..0x1000, one
// 4-byte handler pointer per index) and the save/resume protocol: on entry
// it pushes pc and flags via r15 and raises privilege; on ret it restores
// both and lowers privilege.
type Controller struct {
	mem *mem.Physical

	// Privileged reflects the processor's current privilege level; raised on
	// interrupt entry and restored on ret.
	Privileged bool

	// NoHandler is called when a fault's vector slot holds a zero pointer
	// (no handler registered); sim.Machine wires this to a halt.
	NoHandler func(vector uint32, f Fault)
}

// New returns a controller that reads its vector table and saved state from
// phys.
func New(phys *mem.Physical) *Controller {
	return &Controller{mem: phys}
}

// flagsWord packs the minimal processor flags Aquarium preserves across an
// interrupt: just the privilege bit, in bit 0.
func (c *Controller) flagsWord() uint32 {
	if c.Privileged {
		return 1
	}

	return 0
}

// Enter handles a transfer to vector, saving pc and flags via r15 (pushing a
// full descending stack, per the teacher's PushStack convention) and jumping
// to the handler read from the vector table. If the vector's table entry is
// zero, NoHandler is invoked instead and pc is left unchanged.
func (c *Controller) Enter(regs *regfile.File, vector uint32) error {
	handler, err := c.mem.ReadWord(vector * 4)
	if err != nil {
		return err
	}

	if handler == 0 {
		if c.NoHandler != nil {
			c.NoHandler(vector, &unhandled{vector: vector})
		}

		return nil
	}

	sp := regs.Read(isa.R15) - 8

	if err := c.mem.WriteWord(sp, regs.PC()); err != nil {
		return err
	}

	if err := c.mem.WriteWord(sp+4, c.flagsWord()); err != nil {
		return err
	}

	regs.Write(isa.R15, sp)

	c.Privileged = true
	regs.SetPC(handler)

	return nil
}

// Return pops the saved pc and flags pushed by Enter and resumes execution
// there, lowering privilege to whatever was saved.
func (c *Controller) Return(regs *regfile.File) error {
	sp := regs.Read(isa.R15)

	pc, err := c.mem.ReadWord(sp)
	if err != nil {
		return err
	}

	flags, err := c.mem.ReadWord(sp + 4)
	if err != nil {
		return err
	}

	regs.Write(isa.R15, sp+8)
	regs.SetPC(pc)
	c.Privileged = flags&1 != 0

	return nil
}

type unhandled struct {
	vector uint32
}

func (u *unhandled) Error() string {
	return fmt.Sprintf("unhandled interrupt: vector %d has no registered handler", u.vector)
}

func (u *unhandled) Vector() uint32 { return u.vector }
