package pipeline

import (
	"fmt"

	"github.com/aquarium-sim/aquarium/internal/intr"
	"github.com/aquarium-sim/aquarium/internal/isa"
)

// DivideByZero is raised by the execute stage when a DIV instruction's
// divisor is zero.
type DivideByZero struct {
	PC uint32
}

func (e *DivideByZero) Error() string {
	return fmt.Sprintf("divide by zero at pc=%#08x", e.PC)
}

func (e *DivideByZero) Vector() uint32 { return intr.VectorDivideByZero }

// writesRegister reports whether an instruction writes its Rs3 field as a
// destination register.
func writesRegister(op isa.Opcode) bool {
	switch op {
	case isa.ADD, isa.SUB, isa.XOR, isa.OR, isa.AND, isa.SHR, isa.SHL, isa.MUL, isa.DIV,
		isa.ADDI, isa.SUBI, isa.XORI, isa.ORI, isa.ANDI, isa.LUI,
		isa.LDB, isa.LDH, isa.LD, isa.CALL:
		return true
	default:
		return false
	}
}

// aluResult computes the result of an R or G format arithmetic instruction
// given its two operand values (already read from the register file or the
// G-format immediate).
func aluResult(op isa.Opcode, a, b uint32) (uint32, error) {
	switch op {
	case isa.ADD, isa.ADDI:
		return a + b, nil
	case isa.SUB, isa.SUBI:
		return a - b, nil
	case isa.XOR, isa.XORI:
		return a ^ b, nil
	case isa.OR, isa.ORI:
		return a | b, nil
	case isa.AND, isa.ANDI:
		return a & b, nil
	case isa.SHR:
		return a >> (b & 0x1f), nil
	case isa.SHL:
		return a << (b & 0x1f), nil
	case isa.MUL:
		return a * b, nil
	case isa.DIV:
		if b == 0 {
			return 0, &DivideByZero{}
		}

		return uint32(int32(a) / int32(b)), nil
	default:
		return 0, nil
	}
}

// branchTaken evaluates a conditional branch's two compared register values
// (the G-format Rs3 and Rs1 fields, repurposed here as the compare operands
// rather than a destination/source pair).
func branchTaken(op isa.Opcode, a, b uint32) bool {
	sa, sb := int32(a), int32(b)

	switch op {
	case isa.BNE:
		return sa != sb
	case isa.BEQ:
		return sa == sb
	case isa.BLT:
		return sa < sb
	case isa.BGT:
		return sa > sb
	default:
		return false
	}
}

// isImmediateArith reports whether op is a G-format arithmetic instruction
// whose second ALU operand is the sign-extended immediate rather than a
// register read (the decode stage reads Rs3 for every G-format instruction,
// since that field also serves as the branch compare operand and the store
// data source; execute must substitute the immediate back in for these).
func isImmediateArith(op isa.Opcode) bool {
	switch op {
	case isa.ADDI, isa.SUBI, isa.XORI, isa.ORI, isa.ANDI:
		return true
	default:
		return false
	}
}

func isLoad(op isa.Opcode) bool {
	switch op {
	case isa.LDB, isa.LDH, isa.LD:
		return true
	default:
		return false
	}
}

func isStore(op isa.Opcode) bool {
	switch op {
	case isa.STB, isa.STH, isa.ST:
		return true
	default:
		return false
	}
}

func accessSize(op isa.Opcode) int {
	switch op {
	case isa.LDB, isa.STB:
		return 1
	case isa.LDH, isa.STH:
		return 2
	default:
		return 4
	}
}
