package asm

import (
	"strings"

	"github.com/aquarium-sim/aquarium/internal/isa"
)

// operandKind describes the third operand of a G-format line, or the target
// operand of a J-format line: an immediate, or a label.
type operandKind uint8

const (
	operandImm operandKind = iota
	operandLabel
)

// mnemonic describes how a line's operands map onto an isa.Instr, including
// the synthetic forms mov/movi.
type mnemonic struct {
	op      isa.Opcode
	format  isa.Format
	operand operandKind // meaning of the trailing G/J operand
	isMov   bool        // mov: rs3 rs1 (alias for add rs3 rs1 r0)
	isMovi  bool        // movi: rs3 imm (alias for addi rs3 r0 imm)
}

var mnemonics = map[string]mnemonic{
	"add": {op: isa.ADD, format: isa.FormatR},
	"sub": {op: isa.SUB, format: isa.FormatR},
	"xor": {op: isa.XOR, format: isa.FormatR},
	"or":  {op: isa.OR, format: isa.FormatR},
	"and": {op: isa.AND, format: isa.FormatR},
	"shr": {op: isa.SHR, format: isa.FormatR},
	"shl": {op: isa.SHL, format: isa.FormatR},
	"mul": {op: isa.MUL, format: isa.FormatR},
	"div": {op: isa.DIV, format: isa.FormatR},

	"addi": {op: isa.ADDI, format: isa.FormatG, operand: operandImm},
	"subi": {op: isa.SUBI, format: isa.FormatG, operand: operandImm},
	"xori": {op: isa.XORI, format: isa.FormatG, operand: operandImm},
	"ori":  {op: isa.ORI, format: isa.FormatG, operand: operandImm},
	"andi": {op: isa.ANDI, format: isa.FormatG, operand: operandImm},

	"ldb": {op: isa.LDB, format: isa.FormatG, operand: operandImm},
	"ldh": {op: isa.LDH, format: isa.FormatG, operand: operandImm},
	"ld":  {op: isa.LD, format: isa.FormatG, operand: operandImm},
	"stb": {op: isa.STB, format: isa.FormatG, operand: operandImm},
	"sth": {op: isa.STH, format: isa.FormatG, operand: operandImm},
	"st":  {op: isa.ST, format: isa.FormatG, operand: operandImm},

	"bne": {op: isa.BNE, format: isa.FormatG, operand: operandLabel},
	"beq": {op: isa.BEQ, format: isa.FormatG, operand: operandLabel},
	"blt": {op: isa.BLT, format: isa.FormatG, operand: operandLabel},
	"bgt": {op: isa.BGT, format: isa.FormatG, operand: operandLabel},

	"lui": {op: isa.LUI, format: isa.FormatG, operand: operandImm},

	"jmpr": {op: isa.JMPR, format: isa.FormatJ, operand: operandLabel},
	"call": {op: isa.CALL, format: isa.FormatJ, operand: operandLabel},

	"ret":  {op: isa.RET, format: isa.FormatB},
	"nop":  {op: isa.NOP, format: isa.FormatB},
	"int0": {op: isa.INT0, format: isa.FormatB},

	"mov":  {format: isa.FormatR, isMov: true},
	"movi": {format: isa.FormatG, operand: operandImm, isMovi: true},
}

func lookupMnemonic(name string) (mnemonic, bool) {
	m, ok := mnemonics[strings.ToLower(name)]
	return m, ok
}
