package mem

// VGABuffer backs the 0x1000..0x2000 text buffer. Writes are retained so an
// external viewer can read the current screen contents; the simulator core
// has no rendering policy of its own (excluded, per the embedding shell's
// contract).
type VGABuffer struct {
	cells [VGAEnd - VGABase]byte
}

// NewVGABuffer returns a zeroed text buffer.
func NewVGABuffer() *VGABuffer {
	return &VGABuffer{}
}

func (v *VGABuffer) Read(offset uint32, size int) []byte {
	out := make([]byte, size)

	for i := 0; i < size; i++ {
		if int(offset)+i < len(v.cells) {
			out[i] = v.cells[int(offset)+i]
		}
	}

	return out
}

func (v *VGABuffer) Write(offset uint32, data []byte) {
	for i, b := range data {
		if int(offset)+i < len(v.cells) {
			v.cells[int(offset)+i] = b
		}
	}
}

// Snapshot returns a copy of the buffer's current contents, safe to retain.
func (v *VGABuffer) Snapshot() []byte {
	out := make([]byte, len(v.cells))
	copy(out, v.cells[:])

	return out
}
