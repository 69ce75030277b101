package pipeline

import "github.com/aquarium-sim/aquarium/internal/isa"

// Tick advances the overlapped pipeline by one simulated cycle, processing
// stages in reverse order (WB, MEM, EX, ID, IF) so that a stage's "previous"
// input reflects results other stages produced this same cycle, per the
// engine's documented update order.
func (e *Engine) Tick() {
	if e.Halted {
		return
	}

	e.Cycles++

	if e.memwb.valid {
		e.writeback()
	}

	if e.busy.active {
		e.MemoryStageCycles++
		e.busy.remaining--

		if e.busy.remaining <= 0 {
			l := e.busy.latch
			e.memwb = memwbLatch{valid: true, pc: l.pc, in: l.in, result: l.result, writesReg: writesRegister(l.in.Op)}
			e.busy = memBusy{}
		}

		// The memory stage is occupied: everything upstream of it holds.
		return
	}

	if e.exmem.valid {
		e.MemoryStageCycles++
		e.startMemory()
	} else {
		e.OtherStageCycles++
	}

	if e.idex.valid {
		e.execute()
	}

	stalled := false
	if e.ifid.valid {
		stalled = e.decode()
	}

	if !stalled {
		e.fetch()
	}
}

// StepSerial drives a single instruction through all five stages to
// completion before returning, summing each stage's latency directly. Used
// when the pipeline is disabled (see SetEnabled(false)).
func (e *Engine) StepSerial() {
	if e.Halted {
		return
	}

	e.fetch()
	e.Cycles++
	e.OtherStageCycles++

	e.decodeSerial()
	e.Cycles++
	e.OtherStageCycles++

	e.execute()
	e.Cycles++
	e.OtherStageCycles++

	for {
		e.MemoryStageCycles++
		e.Cycles++

		if e.exmem.valid {
			e.startMemory()
		}

		if e.busy.active {
			e.busy.remaining--

			if e.busy.remaining <= 0 {
				l := e.busy.latch
				e.memwb = memwbLatch{valid: true, pc: l.pc, in: l.in, result: l.result, writesReg: writesRegister(l.in.Op)}
				e.busy = memBusy{}
			}

			continue
		}

		break
	}

	e.Cycles++
	e.OtherStageCycles++

	if e.memwb.valid {
		e.writeback()
	}
}

// decodeSerial is decode without the hazard-stall path: in serial mode there
// is never more than one instruction in flight, so no register can be
// pending.
func (e *Engine) decodeSerial() {
	if e.ifid.fault != nil {
		e.idex = idexLatch{valid: true, pc: e.ifid.pc, fault: e.ifid.fault}
		e.ifid.valid = false

		return
	}

	in, err := isa.Decode(e.ifid.word)
	if err != nil {
		e.idex = idexLatch{valid: true, pc: e.ifid.pc, fault: &IllegalInstruction{err.(*isa.ErrIllegalInstruction)}}
		e.ifid.valid = false

		return
	}

	format, _ := isa.FormatOf(in.Op)

	idex := idexLatch{valid: true, pc: e.ifid.pc, in: in}
	idex.rs1v = e.Regs.Read(in.Rs1)

	if format == isa.FormatR {
		idex.rs2v = e.Regs.Read(in.Rs2)
	} else if format == isa.FormatG {
		idex.rs2v = e.Regs.Read(in.Rs3)
	}

	e.idex = idex
	e.ifid.valid = false
}
