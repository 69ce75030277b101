package sim_test

import (
	"context"
	"testing"
	"time"

	"github.com/aquarium-sim/aquarium/internal/bits"
	"github.com/aquarium-sim/aquarium/internal/isa"
	"github.com/aquarium-sim/aquarium/internal/sim"
)

func encodeProgram(program []isa.Instr) []byte {
	out := make([]byte, 0, len(program)*4)

	for _, in := range program {
		w := bits.PackU32(isa.Encode(in))
		out = append(out, w[:]...)
	}

	return out
}

// TestMMIOExitScenario reproduces scenario S5: a store of the exit command
// byte to the control region terminates the run loop.
func TestMMIOExitScenario(t *testing.T) {
	program := []isa.Instr{
		{Op: isa.ADDI, Rs3: 1, Rs1: isa.R0, Imm: 0x41},
		{Op: isa.ADDI, Rs3: 2, Rs1: isa.R0, Imm: 0x2000},
		{Op: isa.STB, Rs3: 1, Rs1: 2, Imm: 0},
		{Op: isa.INT0},
	}

	m := sim.New()
	m.Configure(sim.DefaultConfig())

	if err := m.LoadImage([]sim.Chunk{{Base: 0, Data: encodeProgram(program)}}); err != nil {
		t.Fatalf("LoadImage: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := m.RunUntilBreakpointOrExit(ctx); err != nil {
		t.Fatalf("RunUntilBreakpointOrExit: %v", err)
	}

	snap := m.Snapshot()
	if !snap.ExitReq {
		t.Error("expected exit_requested to be observed")
	}
}

func TestBreakpointStopsRun(t *testing.T) {
	program := []isa.Instr{
		{Op: isa.ADDI, Rs3: 1, Rs1: isa.R0, Imm: 1},
		{Op: isa.ADDI, Rs3: 1, Rs1: 1, Imm: 1},
		{Op: isa.ADDI, Rs3: 1, Rs1: 1, Imm: 1},
		{Op: isa.INT0},
	}

	m := sim.New()
	m.Configure(sim.DefaultConfig())

	if err := m.LoadImage([]sim.Chunk{{Base: 0, Data: encodeProgram(program)}}); err != nil {
		t.Fatalf("LoadImage: %v", err)
	}

	m.SetBreakpoint(4)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := m.RunUntilBreakpointOrExit(ctx); err != nil {
		t.Fatalf("RunUntilBreakpointOrExit: %v", err)
	}

	snap := m.Snapshot()
	if snap.Registers.Regs[1] != 2 {
		t.Errorf("r1 at breakpoint = %d, want 2", snap.Registers.Regs[1])
	}
}
