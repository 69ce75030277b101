// Package sim assembles the simulator from its component parts: register
// file, MMU, cache, physical memory, pipeline engine, and interrupt
// controller. It is the single entry point the CLI and console drive,
// mirroring the teacher's vm.LC3 as the composition root for its own parts.
package sim

import (
	"context"
	"sync"

	"github.com/aquarium-sim/aquarium/internal/cache"
	"github.com/aquarium-sim/aquarium/internal/encoding"
	"github.com/aquarium-sim/aquarium/internal/intr"
	applog "github.com/aquarium-sim/aquarium/internal/log"
	"github.com/aquarium-sim/aquarium/internal/mem"
	"github.com/aquarium-sim/aquarium/internal/mmu"
	"github.com/aquarium-sim/aquarium/internal/pipeline"
	"github.com/aquarium-sim/aquarium/internal/regfile"
	"github.com/aquarium-sim/aquarium/internal/stats"
)

// Chunk is a contiguous block of bytes destined for a fixed base address, as
// produced by the assembler and the object-code encoding.
type Chunk = encoding.Chunk

// Config selects the two toggles the embedding shell is required to honor:
// cache and pipeline enablement.
type Config struct {
	CacheEnabled    bool
	PipelineEnabled bool
}

// DefaultConfig returns a configuration with both the cache and the
// overlapped pipeline enabled.
func DefaultConfig() Config {
	return Config{CacheEnabled: true, PipelineEnabled: true}
}

// Machine is the top-level simulator: the composition of every component
// package behind the entry points load_image/step/run/snapshot/configure
// named by the external interface contract.
type Machine struct {
	Regs  *regfile.File
	Phys  *mem.Physical
	MMU   *mmu.MMU
	Cache *cache.Cache
	Intr  *intr.Controller
	Pipe  *pipeline.Engine

	log *applog.Logger

	mu      sync.Mutex
	stopped bool
	memSize uint32
}

// OptionFn configures a Machine at construction time, mirroring the
// teacher's vm.OptionFn pattern.
type OptionFn func(*Machine)

// WithLogger overrides the machine's logger.
func WithLogger(l *applog.Logger) OptionFn {
	return func(m *Machine) { m.log = l }
}

// WithMemorySize overrides the default physical memory size.
func WithMemorySize(size uint32) OptionFn {
	return func(m *Machine) { m.memSize = size }
}

const defaultMemSize = 1 << 20 // 1 MiB

// New constructs a fully wired Machine with default configuration (cache
// and pipeline both enabled), pc at zero, and an empty page table (identity
// mapping).
func New(opts ...OptionFn) *Machine {
	m := &Machine{memSize: defaultMemSize, log: applog.DefaultLogger()}

	for _, opt := range opts {
		opt(m)
	}

	m.Phys = mem.New(m.memSize)
	m.Regs = regfile.New(0)
	m.MMU = mmu.New(m.Phys)
	m.Cache = cache.New(m.Phys)
	m.Intr = intr.New(m.Phys)
	m.Pipe = pipeline.New(m.Regs, m.MMU, m.Cache, m.Intr)

	m.Phys.CycleCounter = func() uint64 { return m.Pipe.Cycles }

	m.Intr.NoHandler = func(vector uint32, f intr.Fault) {
		m.log.Error("unhandled interrupt", applog.String("fault", f.Error()), applog.Any("vector", vector))
		m.stopped = true
	}

	return m
}

// Configure applies the cache/pipeline enablement toggles named by the
// external interface contract.
func (m *Machine) Configure(cfg Config) {
	m.Cache.SetEnabled(cfg.CacheEnabled)
	m.Pipe.SetEnabled(cfg.PipelineEnabled)
}

// LoadImage installs a sequence of (base address, bytes) chunks into
// physical memory, as produced by the assembler/loader.
func (m *Machine) LoadImage(chunks []Chunk) error {
	for _, c := range chunks {
		// Byte-wide stores are accepted by every region, including the
		// mapped ones below FreeBase.
		for i, b := range c.Data {
			if err := m.Phys.Write(c.Base+uint32(i), []byte{b}); err != nil {
				return err
			}
		}
	}

	return nil
}

// SetEntry sets the initial program counter.
func (m *Machine) SetEntry(pc uint32) {
	m.Regs.SetPC(pc)
}

// SetBreakpoint registers a virtual address that pauses Run after the
// instruction there completes Writeback.
func (m *Machine) SetBreakpoint(addr uint32) {
	m.Pipe.Breakpoints[addr] = true
}

// ClearBreakpoint removes a previously registered breakpoint.
func (m *Machine) ClearBreakpoint(addr uint32) {
	delete(m.Pipe.Breakpoints, addr)
}

// Step advances the simulator by exactly one retired instruction (which may
// take several Tick calls if stalls occur), using whichever pipeline mode
// is currently configured.
func (m *Machine) Step() {
	target := m.Pipe.Retired + 1

	for m.Pipe.Retired < target && !m.Pipe.Halted && !m.Phys.ExitRequested() {
		if m.Pipe.Enabled() {
			m.Pipe.Tick()
		} else {
			m.Pipe.StepSerial()
		}
	}
}

// RunUntilBreakpointOrExit runs the simulator until a breakpoint fires, the
// MMIO exit command is observed, the pipeline halts on an unrecoverable
// fault, or ctx is cancelled. Cancellation is checked between instructions,
// not between pipeline stages.
func (m *Machine) RunUntilBreakpointOrExit(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if m.Phys.ExitRequested() || m.Pipe.Halted || m.stopped {
			return nil
		}

		prevRetired := m.Pipe.Retired

		m.Step()

		if m.Pipe.Retired > prevRetired && m.Pipe.AtBreakpoint(m.Pipe.LastRetiredPC) {
			return nil
		}
	}
}

// Snapshot is a consistent, point-in-time copy of machine state safe for a
// presentation layer to read between ticks.
type Snapshot struct {
	Registers regfile.Snapshot
	Cache     [cache.Sets]cache.SetView
	Stats     stats.Snapshot
	ExitReq   bool
}

// Snapshot takes a copy of the machine's externally-visible state under a
// mutex held only across the copy, per the concurrency model's
// between-ticks-only discipline.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Registers: m.Regs.Snapshot(),
		Cache:     m.Cache.Snapshot(),
		ExitReq:   m.Phys.ExitRequested(),
		Stats: stats.Snapshot{
			CyclesTotal:           m.Pipe.Cycles,
			InstructionsRetired:   m.Pipe.Retired,
			DataHazardStalls:      m.Pipe.DataHazardStalls,
			ControlHazardSquashes: m.Pipe.ControlHazardSquashes,
			CacheReads:            m.Cache.ReadHits + m.Cache.ReadMisses,
			CacheReadHits:         m.Cache.ReadHits,
			CacheWrites:           m.Cache.WriteHits + m.Cache.WriteMisses,
			CacheWriteHits:        m.Cache.WriteHits,
			MemoryStageCycles:     m.Pipe.MemoryStageCycles,
			OtherStageCycles:      m.Pipe.OtherStageCycles,
		},
	}
}
