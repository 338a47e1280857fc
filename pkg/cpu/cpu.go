// Package cpu implements the flat two-register machine that generated
// programs run on. Code and cell data live in separate address spaces; the
// P register indexes the data segment and A is a scratch accumulator.
package cpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
)

const (
	OpHLT  uint16 = 0x00
	OpNOP  uint16 = 0x01
	OpLDI  uint16 = 0x02
	OpINC  uint16 = 0x03
	OpDEC  uint16 = 0x04
	OpPUSH uint16 = 0x05
	OpPOP  uint16 = 0x06
	OpJMP  uint16 = 0x07
	OpJZ   uint16 = 0x08
	OpJNZ  uint16 = 0x09
	OpCALL uint16 = 0x0A
	OpRET  uint16 = 0x0B
	OpCMPI uint16 = 0x0C
	OpGETC uint16 = 0x0D
	OpPUTC uint16 = 0x0E
	OpINCB uint16 = 0x0F
	OpDECB uint16 = 0x10
	OpLDB  uint16 = 0x11
	OpSTB  uint16 = 0x12
	OpTEST uint16 = 0x13
)

const (
	RegP uint16 = 0
	RegA uint16 = 1
)

// EOFValue is what GETC stores when the input stream is exhausted.
const EOFValue uint16 = 0xFFFF

// DefaultMaxStack bounds the combined CALL/PUSH stack.
const DefaultMaxStack = 1024

// Image layout: magic, entry point (u16 LE), data size (u32 LE), code.
const (
	ImageMagic  = "BFK1"
	HeaderSize  = 10
	MaxDataSize = 65536
)

var opNames = map[uint16]string{
	OpHLT:  "HLT",
	OpNOP:  "NOP",
	OpLDI:  "LDI",
	OpINC:  "INC",
	OpDEC:  "DEC",
	OpPUSH: "PUSH",
	OpPOP:  "POP",
	OpJMP:  "JMP",
	OpJZ:   "JZ",
	OpJNZ:  "JNZ",
	OpCALL: "CALL",
	OpRET:  "RET",
	OpCMPI: "CMPI",
	OpGETC: "GETC",
	OpPUTC: "PUTC",
	OpINCB: "INCB",
	OpDECB: "DECB",
	OpLDB:  "LDB",
	OpSTB:  "STB",
	OpTEST: "TEST",
}

var (
	ErrBadImage       = errors.New("not a program image")
	ErrUnknownOpcode  = errors.New("unknown opcode")
	ErrBadRegister    = errors.New("invalid register")
	ErrDataRange      = errors.New("data address out of range")
	ErrStackOverflow  = errors.New("stack overflow")
	ErrStackUnderflow = errors.New("stack underflow")
	ErrStepLimit      = errors.New("step limit exceeded")
)

var log = commonlog.GetLogger("bfkit.cpu")

// RuntimeError is a fault raised while executing the instruction at PC.
type RuntimeError struct {
	Err error
	PC  uint16
	Op  uint16
}

func (e *RuntimeError) Error() string {
	name, ok := opNames[e.Op]
	if !ok {
		name = fmt.Sprintf("op 0x%02X", e.Op)
	}
	return fmt.Sprintf("cpu: runtime error @ PC 0x%04X %s: %v", e.PC, name, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

type CPU struct {
	Regs [2]uint16
	PC   uint16
	Z    bool

	Halted bool

	// Memory holds the code segment.
	Memory [65536]byte
	// Data is the segment reserved by .COMM directives.
	Data []byte

	Stack    []uint16
	MaxStack int

	// Steps counts executed instructions. When StepLimit is non-zero, Run
	// stops with ErrStepLimit once Steps reaches it.
	Steps     uint64
	StepLimit uint64

	// Input feeds GETC and Output receives PUTC. If nil, os.Stdin and
	// os.Stdout are used.
	Input  io.Reader
	Output io.Writer
}

func NewCPU() *CPU {
	return &CPU{MaxStack: DefaultMaxStack}
}

// EncodeImage builds a loadable program image.
func EncodeImage(entry uint16, dataSize uint32, code []byte) []byte {
	out := make([]byte, HeaderSize, HeaderSize+len(code))
	copy(out, ImageMagic)
	binary.LittleEndian.PutUint16(out[4:], entry)
	binary.LittleEndian.PutUint32(out[6:], dataSize)
	return append(out, code...)
}

// Load resets the machine and installs a program image.
func (c *CPU) Load(image []byte) error {
	if len(image) < HeaderSize || string(image[:4]) != ImageMagic {
		return ErrBadImage
	}
	entry := binary.LittleEndian.Uint16(image[4:])
	dataSize := binary.LittleEndian.Uint32(image[6:])
	code := image[HeaderSize:]

	if len(code) > len(c.Memory) {
		return fmt.Errorf("program too large for memory: %d bytes > %d bytes", len(code), len(c.Memory))
	}
	if dataSize > MaxDataSize {
		return fmt.Errorf("data segment too large: %d bytes > %d bytes", dataSize, MaxDataSize)
	}

	c.Memory = [65536]byte{}
	copy(c.Memory[:], code)
	c.Data = make([]byte, dataSize)
	c.Regs = [2]uint16{}
	c.PC = entry
	c.Z = false
	c.Halted = false
	c.Stack = c.Stack[:0]
	c.Steps = 0
	return nil
}

func (c *CPU) inputSource() io.Reader {
	if c.Input != nil {
		return c.Input
	}
	return os.Stdin
}

func (c *CPU) outputSink() io.Writer {
	if c.Output != nil {
		return c.Output
	}
	return os.Stdout
}

func EncodeInstruction(opcode, regA, regB uint16) uint16 {
	return (opcode << 10) | ((regA & 0x07) << 7) | ((regB & 0x07) << 4)
}

// Read16 reads a little-endian uint16 from the code segment.
func (c *CPU) Read16(addr uint16) uint16 {
	lo := uint16(c.Memory[addr])
	hi := uint16(c.Memory[addr+1])
	return lo | (hi << 8)
}

func (c *CPU) dataAddr(base, index uint16) (int, error) {
	addr := int(base + index)
	if addr >= len(c.Data) {
		return 0, ErrDataRange
	}
	return addr, nil
}

func (c *CPU) push(v uint16) error {
	limit := c.MaxStack
	if limit <= 0 {
		limit = DefaultMaxStack
	}
	if len(c.Stack) >= limit {
		return ErrStackOverflow
	}
	c.Stack = append(c.Stack, v)
	return nil
}

func (c *CPU) pop() (uint16, error) {
	if len(c.Stack) == 0 {
		return 0, ErrStackUnderflow
	}
	v := c.Stack[len(c.Stack)-1]
	c.Stack = c.Stack[:len(c.Stack)-1]
	return v, nil
}

// Step executes a single instruction.
func (c *CPU) Step() error {
	if c.Halted {
		return nil
	}

	at := c.PC
	instr := c.Read16(c.PC)
	c.PC += 2

	opcode := (instr >> 10) & 0x3F
	regA := (instr >> 7) & 0x07
	regB := (instr >> 4) & 0x07

	fault := func(err error) error {
		c.Halted = true
		return &RuntimeError{Err: err, PC: at, Op: opcode}
	}

	if regA >= uint16(len(c.Regs)) || regB >= uint16(len(c.Regs)) {
		return fault(ErrBadRegister)
	}
	c.Steps++

	switch opcode {
	case OpHLT:
		c.Halted = true

	case OpNOP:

	case OpLDI:
		c.Regs[regA] = c.Read16(c.PC)
		c.PC += 2

	case OpINC:
		c.Regs[regA]++
		c.Z = c.Regs[regA] == 0

	case OpDEC:
		c.Regs[regA]--
		c.Z = c.Regs[regA] == 0

	case OpPUSH:
		if err := c.push(c.Regs[regA]); err != nil {
			return fault(err)
		}

	case OpPOP:
		v, err := c.pop()
		if err != nil {
			return fault(err)
		}
		c.Regs[regA] = v

	case OpJMP:
		c.PC = c.Read16(c.PC)

	case OpJZ:
		target := c.Read16(c.PC)
		c.PC += 2
		if c.Z {
			c.PC = target
		}

	case OpJNZ:
		target := c.Read16(c.PC)
		c.PC += 2
		if !c.Z {
			c.PC = target
		}

	case OpCALL:
		target := c.Read16(c.PC)
		c.PC += 2
		if err := c.push(c.PC); err != nil {
			return fault(err)
		}
		c.PC = target

	case OpRET:
		v, err := c.pop()
		if err != nil {
			return fault(err)
		}
		c.PC = v

	case OpCMPI:
		imm := c.Read16(c.PC)
		c.PC += 2
		c.Z = c.Regs[regA] == imm

	case OpGETC:
		var buf [1]byte
		_, err := io.ReadFull(c.inputSource(), buf[:])
		switch {
		case err == nil:
			c.Regs[regA] = uint16(buf[0])
		case errors.Is(err, io.EOF):
			c.Regs[regA] = EOFValue
		default:
			return fault(err)
		}

	case OpPUTC:
		if _, err := c.outputSink().Write([]byte{byte(c.Regs[regA])}); err != nil {
			return fault(err)
		}

	case OpINCB, OpDECB, OpLDB, OpSTB, OpTEST:
		base := c.Read16(c.PC)
		c.PC += 2
		addr, err := c.dataAddr(base, c.Regs[regB])
		if err != nil {
			return fault(err)
		}
		switch opcode {
		case OpINCB:
			c.Data[addr]++
			c.Z = c.Data[addr] == 0
		case OpDECB:
			c.Data[addr]--
			c.Z = c.Data[addr] == 0
		case OpLDB:
			c.Regs[regA] = uint16(c.Data[addr])
		case OpSTB:
			c.Data[addr] = byte(c.Regs[regA])
		case OpTEST:
			c.Z = c.Regs[regA]&uint16(c.Data[addr]) == 0
		}

	default:
		return fault(ErrUnknownOpcode)
	}

	if log.AllowLevel(commonlog.Debug) {
		log.Debugf("%s @%04X P=%04X A=%04X Z=%t", opNames[opcode], at, c.Regs[RegP], c.Regs[RegA], c.Z)
	}
	return nil
}

// Run steps until HLT or a fault.
func (c *CPU) Run() error {
	for !c.Halted {
		if c.StepLimit > 0 && c.Steps >= c.StepLimit {
			return &RuntimeError{Err: ErrStepLimit, PC: c.PC, Op: (c.Read16(c.PC) >> 10) & 0x3F}
		}
		if err := c.Step(); err != nil {
			return err
		}
	}
	log.Debugf("halted after %d steps", c.Steps)
	return nil
}
