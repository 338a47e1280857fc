// Package asm assembles the text emitted by the code generator into a
// program image for the cpu package.
package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"bfkit/pkg/cpu"
)

var zeroOperandOps = map[string]uint16{
	"HLT": cpu.OpHLT,
	"NOP": cpu.OpNOP,
	"RET": cpu.OpRET,
}

var oneRegisterOps = map[string]uint16{
	"INC":  cpu.OpINC,
	"DEC":  cpu.OpDEC,
	"PUSH": cpu.OpPUSH,
	"POP":  cpu.OpPOP,
	"GETC": cpu.OpGETC,
	"PUTC": cpu.OpPUTC,
}

var regAndImmediateOps = map[string]uint16{
	"LDI":  cpu.OpLDI,
	"CMPI": cpu.OpCMPI,
}

var immediateOnlyOps = map[string]uint16{
	"JMP":  cpu.OpJMP,
	"JZ":   cpu.OpJZ,
	"JNZ":  cpu.OpJNZ,
	"CALL": cpu.OpCALL,
}

// memoryOnlyOps take a single [sym+reg] operand.
var memoryOnlyOps = map[string]uint16{
	"INCB": cpu.OpINCB,
	"DECB": cpu.OpDECB,
}

// registerMemoryOps take "reg, [sym+reg]".
var registerMemoryOps = map[string]uint16{
	"LDB":  cpu.OpLDB,
	"TEST": cpu.OpTEST,
}

// memoryRegisterOps take "[sym+reg], reg".
var memoryRegisterOps = map[string]uint16{
	"STB": cpu.OpSTB,
}

type Assembler struct {
	labels   map[string]uint16 // code addresses
	symbols  map[string]uint16 // data segment offsets
	entry    string
	dataSize uint32
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels:  make(map[string]uint16),
		symbols: make(map[string]uint16),
	}
}

// Assemble returns a loadable program image and a map from code address to
// source line.
func Assemble(code string) ([]byte, map[uint16]int, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) ([]byte, map[uint16]int, error) {
	lines := strings.Split(code, "\n")

	if err := a.pass1(lines); err != nil {
		return nil, nil, err
	}

	program, sourceMap, err := a.pass2(lines)
	if err != nil {
		return nil, nil, err
	}

	var entry uint16
	if a.entry != "" {
		addr, ok := a.labels[normalizeLabel(a.entry)]
		if !ok {
			return nil, nil, fmt.Errorf(".GLOBAL %s: no such code label", a.entry)
		}
		entry = addr
	}

	return cpu.EncodeImage(entry, a.dataSize, program), sourceMap, nil
}

func (a *Assembler) pass1(lines []string) error {
	var address uint32

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		for _, lbl := range p.labels {
			if address > 0xFFFF {
				return lineError(lineNo, "label %s lies past the end of code memory", lbl)
			}
			key := normalizeLabel(lbl)
			if err := a.checkFree(key, lbl, lineNo); err != nil {
				return err
			}
			a.labels[key] = uint16(address)
		}

		switch p.mnemonic {
		case "":
			continue

		case ".DATA", ".TEXT":
			if len(p.operands) != 0 {
				return lineError(lineNo, "%s is a bare section marker", p.mnemonic)
			}
			continue

		case ".GLOBAL":
			if len(p.operands) != 1 || !isIdentifier(p.operands[0]) {
				return lineError(lineNo, ".GLOBAL names exactly one entry label")
			}
			if a.entry != "" {
				return lineError(lineNo, "entry point already set to %s", a.entry)
			}
			a.entry = p.operands[0]
			continue

		case ".COMM":
			if len(p.operands) != 2 {
				return lineError(lineNo, ".COMM wants a symbol and a byte count")
			}
			name := p.operands[0]
			if !isIdentifier(name) {
				return lineError(lineNo, "bad data symbol %q", name)
			}
			size, err := strconv.ParseUint(p.operands[1], 0, 32)
			if err != nil || size == 0 {
				return lineError(lineNo, "bad .COMM byte count %q", p.operands[1])
			}
			if uint64(a.dataSize)+size > cpu.MaxDataSize {
				return lineError(lineNo, "data segment exceeds %d bytes", cpu.MaxDataSize)
			}
			key := normalizeLabel(name)
			if err := a.checkFree(key, name, lineNo); err != nil {
				return err
			}
			a.symbols[key] = uint16(a.dataSize)
			a.dataSize += uint32(size)
			continue
		}

		length, ok := instructionLength(p.mnemonic)
		if !ok {
			return lineError(lineNo, "no such instruction %s", p.mnemonic)
		}

		if address+uint32(length) > 65536 {
			return lineError(lineNo, "code does not fit in 64KiB")
		}
		address += uint32(length)
	}

	return nil
}

func (a *Assembler) checkFree(key, name string, lineNo int) error {
	_, isLabel := a.labels[key]
	_, isSymbol := a.symbols[key]
	if isLabel || isSymbol {
		return lineError(lineNo, "%s is already defined", name)
	}
	return nil
}

func (a *Assembler) pass2(lines []string) ([]byte, map[uint16]int, error) {
	program := make([]byte, 0)
	sourceMap := make(map[uint16]int)

	emit := func(opcode, regA, regB uint16) {
		instr := cpu.EncodeInstruction(opcode, regA, regB)
		program = append(program, byte(instr&0xFF), byte(instr>>8))
	}
	emitImm := func(imm uint16) {
		program = append(program, byte(imm&0xFF), byte(imm>>8))
	}

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, nil, err
		}

		mnemonic := p.mnemonic
		ops := p.operands

		if mnemonic == "" || strings.HasPrefix(mnemonic, ".") {
			continue
		}

		sourceMap[uint16(len(program))] = lineNo

		if opcode, ok := zeroOperandOps[mnemonic]; ok {
			if err := arity(mnemonic, ops, 0, lineNo); err != nil {
				return nil, nil, err
			}
			emit(opcode, 0, 0)
			continue
		}

		if opcode, ok := oneRegisterOps[mnemonic]; ok {
			if err := arity(mnemonic, ops, 1, lineNo); err != nil {
				return nil, nil, err
			}
			regA, err := parseRegister(ops[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			emit(opcode, regA, 0)
			continue
		}

		if opcode, ok := regAndImmediateOps[mnemonic]; ok {
			if err := arity(mnemonic, ops, 2, lineNo); err != nil {
				return nil, nil, err
			}
			regA, err := parseRegister(ops[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			imm, err := a.parseValue(ops[1], lineNo)
			if err != nil {
				return nil, nil, err
			}
			emit(opcode, regA, 0)
			emitImm(imm)
			continue
		}

		if opcode, ok := immediateOnlyOps[mnemonic]; ok {
			if err := arity(mnemonic, ops, 1, lineNo); err != nil {
				return nil, nil, err
			}
			imm, err := a.parseImmediate(ops[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			emit(opcode, 0, 0)
			emitImm(imm)
			continue
		}

		if opcode, ok := memoryOnlyOps[mnemonic]; ok {
			if err := arity(mnemonic, ops, 1, lineNo); err != nil {
				return nil, nil, err
			}
			base, index, err := a.parseMemory(ops[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			emit(opcode, 0, index)
			emitImm(base)
			continue
		}

		if opcode, ok := registerMemoryOps[mnemonic]; ok {
			if err := arity(mnemonic, ops, 2, lineNo); err != nil {
				return nil, nil, err
			}
			regA, err := parseRegister(ops[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			base, index, err := a.parseMemory(ops[1], lineNo)
			if err != nil {
				return nil, nil, err
			}
			emit(opcode, regA, index)
			emitImm(base)
			continue
		}

		if opcode, ok := memoryRegisterOps[mnemonic]; ok {
			if err := arity(mnemonic, ops, 2, lineNo); err != nil {
				return nil, nil, err
			}
			base, index, err := a.parseMemory(ops[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			regA, err := parseRegister(ops[1], lineNo)
			if err != nil {
				return nil, nil, err
			}
			emit(opcode, regA, index)
			emitImm(base)
			continue
		}

		return nil, nil, lineError(lineNo, "no such instruction %s", mnemonic)
	}

	return program, sourceMap, nil
}

// parseLine splits one source line into its leading labels, an upper-cased
// mnemonic and operand fields.
func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}
	rest := strings.TrimSpace(stripComments(raw))

	// Any number of "name:" prefixes. A colon after whitespace belongs to the
	// instruction text, not to a label.
	for rest != "" {
		name, tail, found := strings.Cut(rest, ":")
		if !found || name == "" || strings.ContainsAny(name, " \t") {
			break
		}
		if !isIdentifier(name) {
			return p, lineError(lineNo, "bad label %q", name)
		}
		p.labels = append(p.labels, name)
		rest = strings.TrimSpace(tail)
	}
	if rest == "" {
		return p, nil
	}

	text, err := normalizeInstructionText(rest)
	if err != nil {
		return p, lineError(lineNo, "%v", err)
	}
	if fields := strings.Fields(text); len(fields) > 0 {
		p.mnemonic = strings.ToUpper(fields[0])
		if len(fields) > 1 {
			p.operands = fields[1:]
		}
	}
	return p, nil
}

// stripComments drops everything from the first ";" or "//".
func stripComments(line string) string {
	cut := len(line)
	if i := strings.Index(line, ";"); i >= 0 {
		cut = i
	}
	if i := strings.Index(line[:cut], "//"); i >= 0 {
		cut = i
	}
	return line[:cut]
}

func arity(mnemonic string, ops []string, want, lineNo int) error {
	if len(ops) != want {
		return lineError(lineNo, "%s takes %d operand(s), got %d", mnemonic, want, len(ops))
	}
	return nil
}

func lineError(lineNo int, format string, args ...any) error {
	return fmt.Errorf("line %d: "+format, append([]any{lineNo}, args...)...)
}

// normalizeInstructionText turns operand separators into spaces and squeezes
// whitespace out of bracketed memory operands so each operand is one field.
func normalizeInstructionText(line string) (string, error) {
	var b strings.Builder
	depth := 0
	for _, r := range line {
		switch {
		case r == '[':
			if depth > 0 {
				return "", fmt.Errorf("nested '['")
			}
			depth++
			b.WriteRune(' ')
			b.WriteRune(r)
		case r == ']':
			if depth == 0 {
				return "", fmt.Errorf("unmatched ']'")
			}
			depth--
			b.WriteRune(r)
			b.WriteRune(' ')
		case depth > 0 && unicode.IsSpace(r):
		case r == ',':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	if depth != 0 {
		return "", fmt.Errorf("unterminated '['")
	}
	return b.String(), nil
}

func parseRegister(token string, lineNo int) (uint16, error) {
	switch strings.ToUpper(token) {
	case "P":
		return cpu.RegP, nil
	case "A":
		return cpu.RegA, nil
	default:
		return 0, lineError(lineNo, "%q is not a register (want P or A)", token)
	}
}

// parseMemory decodes "[base+reg]" where base is a .COMM symbol or a number.
func (a *Assembler) parseMemory(token string, lineNo int) (uint16, uint16, error) {
	if len(token) < 2 || token[0] != '[' || token[len(token)-1] != ']' {
		return 0, 0, lineError(lineNo, "%q is not a [symbol+register] operand", token)
	}
	inner := token[1 : len(token)-1]
	plus := strings.IndexByte(inner, '+')
	if plus <= 0 || plus == len(inner)-1 {
		return 0, 0, lineError(lineNo, "%q is not a [symbol+register] operand", token)
	}

	baseTok, regTok := inner[:plus], inner[plus+1:]
	index, err := parseRegister(regTok, lineNo)
	if err != nil {
		return 0, 0, err
	}

	if value, err := strconv.ParseUint(baseTok, 0, 32); err == nil {
		if value > 0xFFFF {
			return 0, 0, lineError(lineNo, "cell base %s does not fit in 16 bits", baseTok)
		}
		return uint16(value), index, nil
	}
	if base, ok := a.symbols[normalizeLabel(baseTok)]; ok {
		return base, index, nil
	}
	if _, ok := a.labels[normalizeLabel(baseTok)]; ok {
		return 0, 0, lineError(lineNo, "%s labels code, cells need a .COMM symbol", baseTok)
	}
	return 0, 0, lineError(lineNo, "no .COMM symbol %s", baseTok)
}

// parseImmediate resolves a number or a code label.
func (a *Assembler) parseImmediate(token string, lineNo int) (uint16, error) {
	if value, err := strconv.ParseUint(token, 0, 32); err == nil {
		if value > 0xFFFF {
			return 0, lineError(lineNo, "value %s does not fit in 16 bits", token)
		}
		return uint16(value), nil
	}

	label := normalizeLabel(token)
	if addr, ok := a.labels[label]; ok {
		return addr, nil
	}
	if _, ok := a.symbols[label]; ok {
		return 0, lineError(lineNo, "%s names cells, not code", token)
	}

	if isIdentifier(token) {
		return 0, lineError(lineNo, "no label %s", token)
	}

	return 0, lineError(lineNo, "%q is neither a number nor a label", token)
}

// parseValue is parseImmediate that also accepts data symbols.
func (a *Assembler) parseValue(token string, lineNo int) (uint16, error) {
	if off, ok := a.symbols[normalizeLabel(token)]; ok {
		return off, nil
	}
	return a.parseImmediate(token, lineNo)
}

// instructionLength returns the byte length of an instruction.
// All instructions are 2 bytes; instructions with an immediate are 4 bytes.
func instructionLength(mnemonic string) (uint16, bool) {
	mnemonic = strings.ToUpper(mnemonic)

	if _, ok := zeroOperandOps[mnemonic]; ok {
		return 2, true
	}
	if _, ok := oneRegisterOps[mnemonic]; ok {
		return 2, true
	}
	if _, ok := regAndImmediateOps[mnemonic]; ok {
		return 4, true
	}
	if _, ok := immediateOnlyOps[mnemonic]; ok {
		return 4, true
	}
	if _, ok := memoryOnlyOps[mnemonic]; ok {
		return 4, true
	}
	if _, ok := registerMemoryOps[mnemonic]; ok {
		return 4, true
	}
	if _, ok := memoryRegisterOps[mnemonic]; ok {
		return 4, true
	}
	return 0, false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

func normalizeLabel(label string) string {
	return strings.ToUpper(label)
}
