package bits_test

import (
	"testing"

	"github.com/aquarium-sim/aquarium/internal/bits"
)

func TestSext(t *testing.T) {
	cases := []struct {
		v    uint32
		n    uint8
		want uint32
	}{
		{0x0000_000a, 4, 0xffff_fffa}, // negative nibble
		{0x0000_0005, 4, 0x0000_0005}, // positive nibble
		{0x0000_ffff, 16, 0xffff_ffff},
		{0x0000_7fff, 16, 0x0000_7fff},
	}

	for _, c := range cases {
		if got := bits.Sext(c.v, c.n); got != c.want {
			t.Errorf("Sext(%#x, %d) = %#x, want %#x", c.v, c.n, got, c.want)
		}
	}
}

func TestZext(t *testing.T) {
	if got := bits.Zext(0xffff_ffff, 8); got != 0x0000_00ff {
		t.Errorf("Zext = %#x, want 0xff", got)
	}
}

func TestField(t *testing.T) {
	v := uint32(0b1111_0000_1010_0000)
	if got := bits.Field(v, 5, 4); got != 0b0101 {
		t.Errorf("Field = %#b, want 0b0101", got)
	}
}

func TestPackUnpackU16(t *testing.T) {
	b := bits.PackU16(0xbeef)
	if got := bits.UnpackU16(b[:]); got != 0xbeef {
		t.Errorf("round trip = %#x, want 0xbeef", got)
	}
}

func TestPackUnpackU32(t *testing.T) {
	b := bits.PackU32(0xdead_beef)
	if got := bits.UnpackU32(b[:]); got != 0xdead_beef {
		t.Errorf("round trip = %#x, want 0xdeadbeef", got)
	}
}

func TestAligned(t *testing.T) {
	cases := []struct {
		addr uint32
		size int
		want bool
	}{
		{0x3000, 4, true},
		{0x3001, 4, false},
		{0x3002, 2, true},
		{0x3003, 2, false},
		{0x3001, 1, true},
	}

	for _, c := range cases {
		if got := bits.Aligned(c.addr, c.size); got != c.want {
			t.Errorf("Aligned(%#x, %d) = %v, want %v", c.addr, c.size, got, c.want)
		}
	}
}
