package compiler

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"bfkit/pkg/bf"
)

var log = commonlog.GetLogger("bfkit.compiler")

// LabelPrefix starts every per-instruction label.
const LabelPrefix = "bf_stmt_"

// runtime is emitted ahead of the program body. input stores a byte read
// from the host, or 0 at end of input; output writes the current cell.
// A holds 0xFF for the whole program so TEST can check a cell for zero.
var runtime = []string{
	"    .DATA",
	"    .COMM cells, 65536",
	"    .TEXT",
	"    .GLOBAL main",
	"input:",
	"    PUSH A",
	"    GETC A",
	"    STB [cells+P], A",
	"    CMPI A, 0xFFFF",
	"    JNZ input_ret",
	"    LDI A, 0",
	"    STB [cells+P], A",
	"input_ret:",
	"    POP A",
	"    RET",
	"output:",
	"    PUSH A",
	"    LDB A, [cells+P]",
	"    PUTC A",
	"    POP A",
	"    RET",
	"main:",
	"    LDI P, 0",
	"    LDI A, 0xFF",
}

var footer = []string{
	"exit:",
	"    HLT",
}

// Generator translates source into assembly text for pkg/asm.
type Generator struct {
	src   *bf.Reader
	out   []string
	stack []int // offsets of the LoopBegin bytes still open
}

func NewGenerator(src []byte) *Generator {
	out := make([]string, len(runtime), len(runtime)+len(src)+len(footer))
	copy(out, runtime)
	return &Generator{src: bf.NewReader(src), out: out}
}

// Generate translates src in one call.
func Generate(src []byte) (string, error) {
	return NewGenerator(src).Generate()
}

func (g *Generator) line(format string, args ...any) {
	g.out = append(g.out, fmt.Sprintf(format, args...))
}

func (g *Generator) label(n int) {
	g.line("%s%d:", LabelPrefix, n)
}

// Generate consumes the whole source. Every instruction gets a label named
// after the offset where the scan for it started, so the offset just past
// any consumed byte is always a label: either the next instruction's or the
// trailing one.
func (g *Generator) Generate() (string, error) {
	count := 0
	for {
		start := g.src.PC
		ins, ok := g.src.Next()
		g.label(start)
		if !ok {
			break
		}
		if err := g.emit(ins); err != nil {
			return "", err
		}
		count++
	}
	g.out = append(g.out, footer...)

	if log.AllowLevel(commonlog.Debug) {
		log.Debugf("generated %d instructions from %d bytes", count, g.src.Len())
	}
	return strings.Join(g.out, "\n") + "\n", nil
}

func (g *Generator) emit(ins bf.Instruction) error {
	switch ins {
	case bf.MoveRight:
		g.line("    INC P")
	case bf.MoveLeft:
		g.line("    DEC P")
	case bf.Increment:
		g.line("    INCB [cells+P]")
	case bf.Decrement:
		g.line("    DECB [cells+P]")
	case bf.Output:
		g.line("    CALL output")
	case bf.Input:
		g.line("    CALL input")

	case bf.LoopBegin:
		pos := g.src.PC - 1
		match, ok := g.src.FindClosing()
		if !ok {
			return &bf.PosError{Err: bf.ErrUnbalancedBrackets, Pos: pos}
		}
		g.stack = append(g.stack, pos)
		g.line("    TEST A, [cells+P]")
		g.line("    JZ %s%d", LabelPrefix, match+1)

	case bf.LoopEnd:
		if len(g.stack) == 0 {
			return &bf.PosError{Err: bf.ErrUnbalancedBrackets, Pos: g.src.PC - 1}
		}
		pos := g.stack[len(g.stack)-1]
		g.stack = g.stack[:len(g.stack)-1]
		g.line("    TEST A, [cells+P]")
		g.line("    JNZ %s%d", LabelPrefix, pos+1)

	case bf.Breakpoint:
		// The compiled program has no debugger to stop in.
	}
	return nil
}
