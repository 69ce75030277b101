package pipeline

import (
	"errors"

	"github.com/aquarium-sim/aquarium/internal/bits"
	"github.com/aquarium-sim/aquarium/internal/intr"
	"github.com/aquarium-sim/aquarium/internal/isa"
	"github.com/aquarium-sim/aquarium/internal/mmu"
)

// AlignmentFault is raised by the memory stage when an access address is not
// naturally aligned for its size.
type AlignmentFault struct {
	*bits.ErrUnaligned
}

func (f *AlignmentFault) Vector() uint32 { return intr.VectorAlignmentFault }

// IllegalInstruction wraps isa.ErrIllegalInstruction with its vector slot.
type IllegalInstruction struct {
	*isa.ErrIllegalInstruction
}

func (f *IllegalInstruction) Vector() uint32 { return intr.VectorIllegalInstruction }

func faultVector(err error) (uint32, bool) {
	var f intr.Fault
	if errors.As(err, &f) {
		return f.Vector(), true
	}

	var mf *mmu.Fault
	if errors.As(err, &mf) {
		if mf.Kind == mmu.PageFault {
			return intr.VectorPageFault, true
		}

		return intr.VectorPermissionFault, true
	}

	return 0, false
}

// fetch reads the instruction word at the current pc into the IF/ID latch
// and advances pc by 4.
func (e *Engine) fetch() {
	pc := e.Regs.PC()

	pa, err := e.MMU.Translate(pc, mmu.AccessExec)
	if err != nil {
		e.ifid = ifidLatch{valid: true, pc: pc, fault: err}
		e.Regs.SetPC(pc + 4)

		return
	}

	word, cost, err := e.Cache.Read(pa, 4)
	_ = cost // the fetch-stage cache cost is not charged: a fetch takes one cycle, hit or miss

	if err != nil {
		e.ifid = ifidLatch{valid: true, pc: pc, fault: err}
	} else {
		e.ifid = ifidLatch{valid: true, pc: pc, word: bits.UnpackU32(word)}
	}

	e.Regs.SetPC(pc + 4)
}

// decode unpacks the IF/ID latch into ID/EX, stalling (bubbling ID/EX and
// holding IF/ID in place) if a source register has a pending write. Returns
// true if a stall occurred.
func (e *Engine) decode() bool {
	if e.ifid.fault != nil {
		e.idex = idexLatch{valid: true, pc: e.ifid.pc, fault: e.ifid.fault}
		e.ifid.valid = false

		return false
	}

	in, err := isa.Decode(e.ifid.word)
	if err != nil {
		e.idex = idexLatch{valid: true, pc: e.ifid.pc, fault: &IllegalInstruction{err.(*isa.ErrIllegalInstruction)}}
		e.ifid.valid = false

		return false
	}

	format, _ := isa.FormatOf(in.Op)

	var srcs []uint8
	if format == isa.FormatR {
		srcs = []uint8{in.Rs1, in.Rs2}
	} else if format == isa.FormatG {
		srcs = []uint8{in.Rs1, in.Rs3}
	}

	for _, r := range srcs {
		if e.Regs.Pending(r) {
			e.DataHazardStalls++
			e.idex.valid = false // bubble

			return true
		}
	}

	idex := idexLatch{valid: true, pc: e.ifid.pc, in: in}
	idex.rs1v = e.Regs.Read(in.Rs1)

	if format == isa.FormatR {
		idex.rs2v = e.Regs.Read(in.Rs2)
	} else if format == isa.FormatG {
		idex.rs2v = e.Regs.Read(in.Rs3) // branch compare operand
	}

	if writesRegister(in.Op) {
		e.Regs.MarkPending(in.Rs3)
	}

	e.idex = idex
	e.ifid.valid = false

	return false
}

// execute computes ALU results, branch outcomes/targets, and effective
// addresses, moving ID/EX into EX/MEM.
func (e *Engine) execute() {
	idex := e.idex
	e.idex.valid = false

	if idex.fault != nil {
		e.exmem = exmemLatch{valid: true, pc: idex.pc, in: idex.in, fault: idex.fault}
		return
	}

	in := idex.in

	exmem := exmemLatch{valid: true, pc: idex.pc, in: in}

	switch {
	case isLoad(in.Op), isStore(in.Op):
		exmem.result = idex.rs1v + uint32(in.Imm)
		exmem.storeVal = idex.rs2v // Rs3 value carried via rs2v for G-format
	case in.Op == isa.LUI:
		exmem.result = uint32(in.Imm) << 12
	case in.Op == isa.CALL:
		exmem.isBranch = true
		exmem.branchTaken = true
		exmem.branchTarget = idex.pc + 4 + uint32(in.Offset)
		exmem.result = idex.pc + 4 // return address, written to Rs3
	case in.Op == isa.JMPR:
		exmem.isBranch = true
		exmem.branchTaken = true
		exmem.branchTarget = idex.pc + 4 + uint32(in.Offset)
	case in.Op == isa.RET:
		// RET is the interrupt-return instruction (see intr.Controller.Return);
		// its target comes from the saved-state stack, not a register field.
		exmem.isBranch = true
	case in.Op == isa.BNE, in.Op == isa.BEQ, in.Op == isa.BLT, in.Op == isa.BGT:
		exmem.isBranch = true
		exmem.branchTaken = branchTaken(in.Op, idex.rs1v, idex.rs2v)
		exmem.branchTarget = idex.pc + 4 + uint32(in.Imm)
	case in.Op == isa.NOP, in.Op == isa.INT0:
		// No computation.
	default:
		op2 := idex.rs2v
		if isImmediateArith(in.Op) {
			op2 = uint32(in.Imm)
		}

		res, err := aluResult(in.Op, idex.rs1v, op2)
		if err != nil {
			if dz, ok := err.(*DivideByZero); ok {
				dz.PC = idex.pc
			}

			exmem.fault = err
		}

		exmem.result = res
	}

	e.exmem = exmem
}

// startMemory issues a load or store for the instruction in EX/MEM,
// possibly entering a multi-cycle stall, or resolves a branch/passthrough
// instruction immediately.
func (e *Engine) startMemory() {
	exmem := e.exmem
	e.exmem.valid = false

	if exmem.fault != nil {
		e.completeFault(exmem)
		return
	}

	in := exmem.in

	if exmem.isBranch {
		if in.Op == isa.RET {
			if err := e.Intr.Return(e.Regs); err == nil {
				e.squashOnBranch()
				e.memwb = memwbLatch{valid: true, pc: exmem.pc, in: in}
				return
			}
		}

		if exmem.branchTaken {
			e.Regs.SetPC(exmem.branchTarget)
			e.squashOnBranch()
		}

		e.memwb = memwbLatch{valid: true, pc: exmem.pc, in: in, result: exmem.result, writesReg: writesRegister(in.Op)}

		return
	}

	if in.Op == isa.INT0 {
		if err := e.Intr.Enter(e.Regs, intr.VectorInt0); err != nil {
			e.halt(err)
			return
		}

		e.squashOnBranch()
		e.memwb = memwbLatch{valid: true, pc: exmem.pc, in: in}

		return
	}

	if !isLoad(in.Op) && !isStore(in.Op) {
		e.memwb = memwbLatch{valid: true, pc: exmem.pc, in: in, result: exmem.result, writesReg: writesRegister(in.Op)}
		return
	}

	size := accessSize(in.Op)
	if !bits.Aligned(exmem.result, size) {
		e.completeFault(exmemLatch{pc: exmem.pc, in: in, fault: &AlignmentFault{&bits.ErrUnaligned{Addr: exmem.result, Size: size}}})
		return
	}

	pa, err := e.MMU.Translate(exmem.result, accessKind(in.Op))
	if err != nil {
		e.completeFault(exmemLatch{pc: exmem.pc, in: in, fault: err})
		return
	}

	if isLoad(in.Op) {
		data, cost, err := e.Cache.Read(pa, size)
		if err != nil {
			e.completeFault(exmemLatch{pc: exmem.pc, in: in, fault: err})
			return
		}

		result := loadValue(in.Op, data)
		e.beginStall(cost, exmemLatch{pc: exmem.pc, in: in, result: result})

		return
	}

	data := storeBytes(in.Op, exmem.storeVal)

	cost, err := e.Cache.Write(pa, data)
	if err != nil {
		e.completeFault(exmemLatch{pc: exmem.pc, in: in, fault: err})
		return
	}

	e.beginStall(cost, exmemLatch{pc: exmem.pc, in: in})
}

func accessKind(op isa.Opcode) mmu.Access {
	if isStore(op) {
		return mmu.AccessWrite
	}

	return mmu.AccessRead
}

func loadValue(op isa.Opcode, data []byte) uint32 {
	switch op {
	case isa.LDB:
		return bits.Sext(uint32(data[0]), 8)
	case isa.LDH:
		return bits.Sext(uint32(bits.UnpackU16(data)), 16)
	default:
		return bits.UnpackU32(data)
	}
}

func storeBytes(op isa.Opcode, v uint32) []byte {
	switch op {
	case isa.STB:
		return []byte{byte(v)}
	case isa.STH:
		b := bits.PackU16(uint16(v))
		return b[:]
	default:
		b := bits.PackU32(v)
		return b[:]
	}
}

// beginStall parks a memory access in flight for cost-1 additional cycles
// (this cycle is the first), recording the pending memwb latch contents.
func (e *Engine) beginStall(cost int, pending exmemLatch) {
	pending.valid = true

	if cost <= 1 {
		e.memwb = memwbLatch{valid: true, pc: pending.pc, in: pending.in, result: pending.result, writesReg: writesRegister(pending.in.Op)}
		return
	}

	e.busy = memBusy{active: true, remaining: cost - 1, latch: pending}
}

func (e *Engine) completeFault(exmem exmemLatch) {
	e.memwb = memwbLatch{valid: true, pc: exmem.pc, in: exmem.in, fault: exmem.fault}
}

// squashOnBranch discards any in-flight instructions fetched on the
// wrong-path: IF/ID and ID/EX.
func (e *Engine) squashOnBranch() {
	if e.ifid.valid {
		e.ControlHazardSquashes++
	}

	if e.idex.valid {
		e.ControlHazardSquashes++

		if writesRegister(e.idex.in.Op) {
			e.Regs.ClearPending(e.idex.in.Rs3)
		}
	}

	e.ifid.valid = false
	e.idex.valid = false
}

// writeback commits a completed instruction's result to the register file,
// services any carried fault, and retires the instruction.
func (e *Engine) writeback() {
	mw := e.memwb
	e.memwb.valid = false
	e.LastRetiredPC = mw.pc

	if mw.fault != nil {
		vector, ok := faultVector(mw.fault)
		if !ok {
			e.halt(mw.fault)
			return
		}

		prevNoHandler := e.Intr.NoHandler

		halted := false

		e.Intr.NoHandler = func(v uint32, f intr.Fault) {
			halted = true
		}

		if err := e.Intr.Enter(e.Regs, vector); err != nil {
			e.Intr.NoHandler = prevNoHandler
			e.halt(err)

			return
		}

		e.Intr.NoHandler = prevNoHandler

		if halted {
			e.halt(mw.fault)
		}

		return
	}

	if mw.writesReg {
		e.Regs.Write(mw.in.Rs3, mw.result)
		e.Regs.ClearPending(mw.in.Rs3)
	}

	e.Retired++
}
