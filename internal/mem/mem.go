// Package mem implements Aquarium's physical address space: a flat byte store
// plus the three reserved MMIO regions (interrupt vector table, VGA text buffer,
// control region) dispatched through a pluggable Device interface, mirroring the
// teacher's separation of backing cells from mapped devices.
package mem

import (
	"fmt"

	"github.com/aquarium-sim/aquarium/internal/bits"
)

// Reserved physical address regions.
const (
	VectorTableBase = 0x0000
	VectorTableEnd  = 0x1000
	VGABase         = 0x1000
	VGAEnd          = 0x2000
	ControlBase     = 0x2000
	ControlEnd      = 0x3000
	FreeBase        = 0x3000
)

// Control region commands, latched by a byte store to ControlBase.
const (
	CmdExit      = 0x41
	CmdTimestamp = 0x42
	CmdRandom    = 0x43
)

// Device is a memory-mapped peripheral. Read and Write operate on an offset
// relative to the device's mapped base address.
type Device interface {
	Read(offset uint32, size int) []byte
	Write(offset uint32, data []byte)
}

// ErrUnmappedAccess is returned when size is not one of the supported access
// widths. Accesses to addresses outside any mapped device fall through to the
// backing RAM array and never produce this error.
type ErrUnmappedAccess struct {
	Addr uint32
	Size int
}

func (e *ErrUnmappedAccess) Error() string {
	return fmt.Sprintf("unsupported access size %d at %#08x", e.Size, e.Addr)
}

// Physical is the simulator's physical address space: a flat RAM array above
// FreeBase, with devices mapped over the three reserved regions below it.
type Physical struct {
	ram     []byte
	devices []mappedDevice
	control *ControlRegion

	// CycleCounter is read by the control device when a CmdTimestamp read is
	// latched; sim.Machine keeps this pointed at the pipeline's cycle count.
	CycleCounter func() uint64
}

type mappedDevice struct {
	base, end uint32
	dev       Device
}

// vectorTable backs the interrupt vector table region as plain byte storage.
type vectorTable [VectorTableEnd - VectorTableBase]byte

func (v *vectorTable) Read(offset uint32, size int) []byte {
	out := make([]byte, size)
	copy(out, v[offset:])

	return out
}

func (v *vectorTable) Write(offset uint32, data []byte) { copy(v[offset:], data) }

// New creates a physical address space of size bytes backing FreeBase and
// above, with the interrupt vector table, VGA buffer and control region
// mapped as devices.
func New(size uint32) *Physical {
	p := &Physical{ram: make([]byte, size)}

	vga := NewVGABuffer()
	ctrl := NewControlRegion()

	p.Map(VectorTableBase, VectorTableEnd, new(vectorTable))
	p.Map(VGABase, VGAEnd, vga)
	p.Map(ControlBase, ControlEnd, ctrl)

	p.control = ctrl

	return p
}

// ExitRequested reports whether the control region has latched an exit
// command (store of CmdExit to ControlBase).
func (p *Physical) ExitRequested() bool {
	return p.control.exitRequested
}

// Map installs a device over the half-open physical range [base, end).
func (p *Physical) Map(base, end uint32, dev Device) {
	p.devices = append(p.devices, mappedDevice{base: base, end: end, dev: dev})
}

func (p *Physical) lookup(addr uint32) (mappedDevice, bool) {
	for _, m := range p.devices {
		if addr >= m.base && addr < m.end {
			return m, true
		}
	}

	return mappedDevice{}, false
}

// Read returns size bytes starting at physical address addr. Devices only
// answer the natural access widths (1, 2 or 4); the flat RAM array above
// FreeBase also serves arbitrary block-sized reads, as the cache's line
// fill/writeback path requires. Unmapped RAM reads that fall outside the
// backing array return zero bytes.
func (p *Physical) Read(addr uint32, size int) ([]byte, error) {
	if m, ok := p.lookup(addr); ok {
		if size != 1 && size != 2 && size != 4 {
			return nil, &ErrUnmappedAccess{Addr: addr, Size: size}
		}

		if p.control != nil && m.dev == p.control && p.CycleCounter != nil {
			p.control.cycle = p.CycleCounter()
		}

		return m.dev.Read(addr-m.base, size), nil
	}

	out := make([]byte, size)

	off := int(addr - FreeBase)
	for i := 0; i < size; i++ {
		if off+i >= 0 && off+i < len(p.ram) {
			out[i] = p.ram[off+i]
		}
	}

	return out, nil
}

// Write stores data at physical address addr. Devices only accept the
// natural access widths (1, 2 or 4); RAM also accepts arbitrary
// block-sized writes for cache writeback.
func (p *Physical) Write(addr uint32, data []byte) error {
	if m, ok := p.lookup(addr); ok {
		switch len(data) {
		case 1, 2, 4:
		default:
			return &ErrUnmappedAccess{Addr: addr, Size: len(data)}
		}

		m.dev.Write(addr-m.base, data)
		return nil
	}

	off := int(addr - FreeBase)
	for i, b := range data {
		if off+i >= 0 && off+i < len(p.ram) {
			p.ram[off+i] = b
		}
	}

	return nil
}

// ReadWord is a convenience for the common little-endian 32-bit read.
func (p *Physical) ReadWord(addr uint32) (uint32, error) {
	b, err := p.Read(addr, 4)
	if err != nil {
		return 0, err
	}

	return bits.UnpackU32(b), nil
}

// WriteWord is a convenience for the common little-endian 32-bit write.
func (p *Physical) WriteWord(addr uint32, v uint32) error {
	b := bits.PackU32(v)
	return p.Write(addr, b[:])
}
