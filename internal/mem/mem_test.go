package mem_test

import (
	"testing"

	"github.com/aquarium-sim/aquarium/internal/mem"
)

func TestLittleEndianRoundTrip(t *testing.T) {
	p := mem.New(0x1000)

	if err := p.WriteWord(mem.FreeBase, 0xdead_beef); err != nil {
		t.Fatalf("WriteWord: %v", err)
	}

	got, err := p.ReadWord(mem.FreeBase)
	if err != nil {
		t.Fatalf("ReadWord: %v", err)
	}

	if got != 0xdead_beef {
		t.Errorf("ReadWord = %#x, want 0xdeadbeef", got)
	}

	b, err := p.Read(mem.FreeBase, 1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if b[0] != 0xef {
		t.Errorf("low byte = %#x, want 0xef (little-endian)", b[0])
	}
}

func TestUninitializedReadsZero(t *testing.T) {
	p := mem.New(0x1000)

	got, err := p.ReadWord(mem.FreeBase + 0x100)
	if err != nil {
		t.Fatalf("ReadWord: %v", err)
	}

	if got != 0 {
		t.Errorf("uninitialized read = %#x, want 0", got)
	}
}

func TestVGABufferWriteReadback(t *testing.T) {
	p := mem.New(0x1000)

	if err := p.Write(mem.VGABase+4, []byte{'A'}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	b, err := p.Read(mem.VGABase+4, 1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if b[0] != 'A' {
		t.Errorf("VGA cell = %q, want 'A'", b[0])
	}
}

func TestControlExit(t *testing.T) {
	p := mem.New(0x1000)

	if p.ExitRequested() {
		t.Fatal("exit requested before any command")
	}

	if err := p.Write(mem.ControlBase, []byte{mem.CmdExit}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if !p.ExitRequested() {
		t.Fatal("expected exit requested after CmdExit store")
	}
}

func TestControlTimestamp(t *testing.T) {
	p := mem.New(0x1000)
	p.CycleCounter = func() uint64 { return 0x2a }

	if err := p.Write(mem.ControlBase, []byte{mem.CmdTimestamp}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := p.ReadWord(mem.ControlBase)
	if err != nil {
		t.Fatalf("ReadWord: %v", err)
	}

	if got != 0x2a {
		t.Errorf("timestamp read = %#x, want 0x2a", got)
	}
}

func TestControlRandomIsDeterministic(t *testing.T) {
	p1 := mem.New(0x1000)
	p2 := mem.New(0x1000)

	for _, p := range []*mem.Physical{p1, p2} {
		if err := p.Write(mem.ControlBase, []byte{mem.CmdRandom}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	v1, err := p1.ReadWord(mem.ControlBase)
	if err != nil {
		t.Fatalf("ReadWord: %v", err)
	}

	v2, err := p2.ReadWord(mem.ControlBase)
	if err != nil {
		t.Fatalf("ReadWord: %v", err)
	}

	if v1 != v2 {
		t.Errorf("two freshly-seeded control regions diverged: %#x != %#x", v1, v2)
	}
}
