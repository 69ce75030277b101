package mem

import "github.com/aquarium-sim/aquarium/internal/bits"

// lcgMultiplier and lcgIncrement are the Numerical Recipes LCG constants:
// x[n+1] = (a*x[n] + c) mod 2^32. Chosen for a full-period 32-bit generator
// with a single documented formula, per the determinism requirement on the
// control region's random command.
const (
	lcgMultiplier = 1664525
	lcgIncrement  = 1013904223
)

// ControlRegion implements the 0x2000..0x3000 command channel: a byte store
// latches a command, and the next read returns that command's result.
type ControlRegion struct {
	exitRequested bool
	cycle         uint64
	rngState      uint32
	latched       byte
}

// NewControlRegion returns a control region seeded with a fixed default RNG
// state. Use Seed to pick a different starting value before execution.
func NewControlRegion() *ControlRegion {
	return &ControlRegion{rngState: 0x2463_7225}
}

// Seed sets the PRNG's internal state.
func (c *ControlRegion) Seed(seed uint32) {
	c.rngState = seed
}

// ExitRequested reports whether CmdExit has been latched.
func (c *ControlRegion) ExitRequested() bool { return c.exitRequested }

func (c *ControlRegion) Write(offset uint32, data []byte) {
	if offset != 0 || len(data) == 0 {
		return
	}

	c.latched = data[0]

	switch c.latched {
	case CmdExit:
		c.exitRequested = true
	}
}

func (c *ControlRegion) Read(offset uint32, size int) []byte {
	if offset != 0 {
		return make([]byte, size)
	}

	var v uint32

	switch c.latched {
	case CmdTimestamp:
		v = uint32(c.cycle)
	case CmdRandom:
		c.rngState = c.rngState*lcgMultiplier + lcgIncrement
		v = c.rngState
	}

	b := bits.PackU32(v)

	out := make([]byte, size)
	copy(out, b[:]) // copy caps at len(out), so a 1- or 2-byte read gets the low bytes

	return out
}
