// Package asm implements the two-pass Aquarium assembler: text sections
// delimited by .load/.end_section, dot-labels, and the mnemonic table in
// inst.go, emitting loadable (base, bytes) chunks.
package asm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/aquarium-sim/aquarium/internal/encoding"
	"github.com/aquarium-sim/aquarium/internal/isa"
)

// SymbolTable maps a label to the 32-bit virtual address it resolves to,
// either a section base or an instruction address within a section.
type SymbolTable map[string]uint32

// SyntaxError reports a single malformed line, by source line number.
type SyntaxError struct {
	Line uint32
	Text string
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("asm: line %d: %s: %q", e.Line, e.Msg, e.Text)
}

type rawInstr struct {
	addr     uint32
	line     uint32
	text     string
	mnemonic string
	operands []string
	section  int
}

type section struct {
	base  uint32
	count int
}

// Parser reads Aquarium assembly source and produces a symbol table and a
// list of object-code chunks, collecting syntax errors as it goes rather
// than stopping at the first one.
type Parser struct {
	symbols  SymbolTable
	raws     []rawInstr
	sections []section

	errs []error
}

// NewParser returns an empty Parser ready to Parse one or more sources.
func NewParser() *Parser {
	return &Parser{symbols: make(SymbolTable)}
}

// Symbols returns the label table accumulated so far.
func (p *Parser) Symbols() SymbolTable {
	return p.symbols
}

// Diagnostics returns every syntax error collected during parsing, in the
// order encountered. An empty slice means the source parsed cleanly.
func (p *Parser) Diagnostics() []error {
	return p.errs
}

// Err joins every diagnostic into a single error, or nil if there were none.
func (p *Parser) Err() error {
	return errors.Join(p.errs...)
}

var (
	space = `[\pZ\p{Cc}]*`
	ident = `(\pL[\pL\p{Nd}_]*)`

	commentPattern = regexp.MustCompile(`#.*$`)
	loadPattern    = regexp.MustCompile(`^` + space + `\.load` + space + `(\S+)` + space + `$`)
	endPattern     = regexp.MustCompile(`^` + space + `\.end_section` + space + `$`)
	labelPattern   = regexp.MustCompile(`^` + space + `\.` + ident + space + `$`)
	instrPattern   = regexp.MustCompile(`^` + space + ident + space + `(.*?)` + space + `$`)
)

// Parse scans a single source, assigning addresses and accumulating labels
// and raw instruction text. Label and immediate/offset resolution happens
// later, in Assemble, once every section has been scanned.
func (p *Parser) Parse(in io.Reader) {
	lines := bufio.NewScanner(in)

	var (
		lineNo      uint32
		inSection   bool
		sectionBase uint32
		loc         uint32
		secIdx      = -1
	)

	for lines.Scan() {
		lineNo++

		raw := lines.Text()
		line := commentPattern.ReplaceAllString(raw, "")
		line = strings.TrimRight(line, " \t\r")

		if strings.TrimSpace(line) == "" {
			continue
		}

		switch {
		case loadPattern.MatchString(line):
			if inSection {
				p.syntaxError(lineNo, raw, "nested .load before .end_section")
				continue
			}

			m := loadPattern.FindStringSubmatch(line)

			base, err := parseImmediate(m[1])
			if err != nil {
				p.syntaxError(lineNo, raw, "bad .load address")
				continue
			}

			inSection = true
			sectionBase = uint32(base)
			loc = sectionBase
			p.sections = append(p.sections, section{base: sectionBase})
			secIdx = len(p.sections) - 1

		case endPattern.MatchString(line):
			if !inSection {
				p.syntaxError(lineNo, raw, ".end_section without .load")
				continue
			}

			inSection = false

		case labelPattern.MatchString(line):
			if !inSection {
				p.syntaxError(lineNo, raw, "label outside section")
				continue
			}

			m := labelPattern.FindStringSubmatch(line)
			p.symbols[m[1]] = loc

		case instrPattern.MatchString(line):
			if !inSection {
				p.syntaxError(lineNo, raw, "instruction outside section")
				continue
			}

			m := instrPattern.FindStringSubmatch(line)
			operands := strings.Fields(m[2])

			p.raws = append(p.raws, rawInstr{
				addr: loc, line: lineNo, text: raw,
				mnemonic: m[1], operands: operands, section: secIdx,
			})

			p.sections[secIdx].count++
			loc += 4

		default:
			p.syntaxError(lineNo, raw, "malformed line")
		}
	}

	if inSection {
		p.syntaxError(lineNo, "", "missing .end_section")
	}
}

func (p *Parser) syntaxError(line uint32, text, msg string) {
	p.errs = append(p.errs, &SyntaxError{Line: line, Text: text, Msg: msg})
}

// Assemble resolves every parsed instruction's operands against the symbol
// table, encodes it, and returns the object code as a list of chunks, one
// per .load section, in section order. It returns the aggregate diagnostic
// error if any line failed to parse or resolve.
func (p *Parser) Assemble() ([]encoding.Chunk, error) {
	bodies := make([][]byte, len(p.sections))

	for _, r := range p.raws {
		in, err := p.resolve(r)
		if err != nil {
			p.syntaxError(r.line, r.text, err.Error())
			continue
		}

		word := isa.Encode(in)

		var buf [4]byte

		buf[0] = byte(word)
		buf[1] = byte(word >> 8)
		buf[2] = byte(word >> 16)
		buf[3] = byte(word >> 24)

		bodies[r.section] = append(bodies[r.section], buf[:]...)
	}

	if err := p.Err(); err != nil {
		return nil, err
	}

	chunks := make([]encoding.Chunk, len(p.sections))
	for i, s := range p.sections {
		chunks[i] = encoding.Chunk{Base: s.base, Data: bodies[i]}
	}

	return chunks, nil
}

// Assemble is the package-level convenience entry point: parse in as a
// single source and assemble it, in one call.
func Assemble(in io.Reader) ([]encoding.Chunk, error) {
	p := NewParser()
	p.Parse(in)

	return p.Assemble()
}

func (p *Parser) resolve(r rawInstr) (isa.Instr, error) {
	if r.mnemonic == "mov" || r.mnemonic == "movi" {
		return p.resolveSynthetic(r)
	}

	m, ok := lookupMnemonic(r.mnemonic)
	if !ok {
		return isa.Instr{}, fmt.Errorf("unknown mnemonic %q", r.mnemonic)
	}

	switch m.format {
	case isa.FormatR:
		return p.resolveR(r, m)
	case isa.FormatG:
		return p.resolveG(r, m)
	case isa.FormatJ:
		return p.resolveJ(r, m)
	default: // isa.FormatB
		if len(r.operands) != 0 {
			return isa.Instr{}, fmt.Errorf("%s takes no operands", r.mnemonic)
		}

		return isa.Instr{Op: m.op}, nil
	}
}

func (p *Parser) resolveSynthetic(r rawInstr) (isa.Instr, error) {
	if r.mnemonic == "mov" {
		if len(r.operands) != 2 {
			return isa.Instr{}, errors.New("mov: expected rs3 rs1")
		}

		rs3, err := parseRegister(r.operands[0])
		if err != nil {
			return isa.Instr{}, err
		}

		rs1, err := parseRegister(r.operands[1])
		if err != nil {
			return isa.Instr{}, err
		}

		return isa.Instr{Op: isa.ADD, Rs3: rs3, Rs1: rs1, Rs2: isa.R0}, nil
	}

	// movi
	if len(r.operands) != 2 {
		return isa.Instr{}, errors.New("movi: expected rs3 imm")
	}

	rs3, err := parseRegister(r.operands[0])
	if err != nil {
		return isa.Instr{}, err
	}

	imm, err := parseImmediate(r.operands[1])
	if err != nil {
		return isa.Instr{}, err
	}

	if imm < -32768 || imm > 32767 {
		return isa.Instr{}, fmt.Errorf("movi: immediate %d out of range", imm)
	}

	return isa.Instr{Op: isa.ADDI, Rs3: rs3, Rs1: isa.R0, Imm: int32(imm)}, nil
}

func (p *Parser) resolveR(r rawInstr, m mnemonic) (isa.Instr, error) {
	if len(r.operands) != 3 {
		return isa.Instr{}, fmt.Errorf("%s: expected rs3 rs1 rs2", r.mnemonic)
	}

	rs3, err := parseRegister(r.operands[0])
	if err != nil {
		return isa.Instr{}, err
	}

	rs1, err := parseRegister(r.operands[1])
	if err != nil {
		return isa.Instr{}, err
	}

	rs2, err := parseRegister(r.operands[2])
	if err != nil {
		return isa.Instr{}, err
	}

	return isa.Instr{Op: m.op, Rs3: rs3, Rs1: rs1, Rs2: rs2}, nil
}

func (p *Parser) resolveG(r rawInstr, m mnemonic) (isa.Instr, error) {
	if m.op == isa.LUI {
		if len(r.operands) != 2 {
			return isa.Instr{}, errors.New("lui: expected rs3 imm")
		}

		rs3, err := parseRegister(r.operands[0])
		if err != nil {
			return isa.Instr{}, err
		}

		imm, err := parseImmediate(r.operands[1])
		if err != nil {
			return isa.Instr{}, err
		}

		if imm < -32768 || imm > 32767 {
			return isa.Instr{}, fmt.Errorf("lui: immediate %d out of range", imm)
		}

		return isa.Instr{Op: isa.LUI, Rs3: rs3, Imm: int32(imm)}, nil
	}

	if len(r.operands) != 3 {
		return isa.Instr{}, fmt.Errorf("%s: expected rs3 rs1 %s", r.mnemonic, operandName(m.operand))
	}

	rs3, err := parseRegister(r.operands[0])
	if err != nil {
		return isa.Instr{}, err
	}

	rs1, err := parseRegister(r.operands[1])
	if err != nil {
		return isa.Instr{}, err
	}

	var imm int64

	switch m.operand {
	case operandLabel:
		target, ok := p.symbols[r.operands[2]]
		if !ok {
			return isa.Instr{}, fmt.Errorf("label %q not found", r.operands[2])
		}

		imm = int64(int32(target) - int32(r.addr+4))
	default:
		imm, err = parseImmediate(r.operands[2])
		if err != nil {
			return isa.Instr{}, err
		}
	}

	if imm < -32768 || imm > 32767 {
		return isa.Instr{}, fmt.Errorf("%s: operand %d out of range for a 16-bit field", r.mnemonic, imm)
	}

	return isa.Instr{Op: m.op, Rs3: rs3, Rs1: rs1, Imm: int32(imm)}, nil
}

func (p *Parser) resolveJ(r rawInstr, m mnemonic) (isa.Instr, error) {
	var (
		rs3   uint8
		label string
	)

	switch m.op {
	case isa.CALL:
		if len(r.operands) != 2 {
			return isa.Instr{}, errors.New("call: expected rs3 label")
		}

		var err error

		rs3, err = parseRegister(r.operands[0])
		if err != nil {
			return isa.Instr{}, err
		}

		label = r.operands[1]
	default: // jmpr
		if len(r.operands) != 1 {
			return isa.Instr{}, errors.New("jmpr: expected label")
		}

		label = r.operands[0]
	}

	target, ok := p.symbols[label]
	if !ok {
		return isa.Instr{}, fmt.Errorf("label %q not found", label)
	}

	offset := int64(int32(target) - int32(r.addr+4))

	const (
		minOffset = -(1 << 20)
		maxOffset = (1 << 20) - 1
	)

	if offset < minOffset || offset > maxOffset {
		return isa.Instr{}, fmt.Errorf("%s: offset %d out of range for a 21-bit field", r.mnemonic, offset)
	}

	return isa.Instr{Op: m.op, Rs3: rs3, Offset: int32(offset)}, nil
}

func operandName(k operandKind) string {
	if k == operandLabel {
		return "label"
	}

	return "imm"
}

var registerPattern = regexp.MustCompile(`^[rR](\d{1,2})$`)

func parseRegister(tok string) (uint8, error) {
	m := registerPattern.FindStringSubmatch(tok)
	if m == nil {
		return 0, fmt.Errorf("expected a register, got %q", tok)
	}

	n, err := strconv.ParseUint(m[1], 10, 8)
	if err != nil || n > 15 {
		return 0, fmt.Errorf("invalid register %q", tok)
	}

	return uint8(n), nil
}

func parseImmediate(tok string) (int64, error) {
	n, err := strconv.ParseInt(tok, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", tok)
	}

	return n, nil
}
