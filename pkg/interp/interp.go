// Package interp executes source directly against a fixed array of byte
// cells.
package interp

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"bfkit/pkg/bf"
)

// DefaultCells is the conventional tape length.
const DefaultCells = 30000

var log = commonlog.GetLogger("bfkit.interp")

// BreakpointError is returned when a breakpoint instruction aborts a run.
type BreakpointError struct {
	Pos     int
	Pointer int
	Cell    byte
}

func (e *BreakpointError) Error() string {
	return fmt.Sprintf("%v at source offset %d (pointer=%d cell=%d)", bf.ErrBreakpoint, e.Pos, e.Pointer, e.Cell)
}

func (e *BreakpointError) Unwrap() error {
	return bf.ErrBreakpoint
}

// Interpreter is the state of a single run. It is not safe for concurrent use.
type Interpreter struct {
	src   *bf.Reader
	stack []int // positions of the open LoopBegin instructions
	cells []byte
	ptr   int
	steps uint64

	// Input and Output are the program's byte streams. If nil, os.Stdin and
	// os.Stdout are used.
	Input  io.Reader
	Output io.Writer

	// Strict makes Run reject unbalanced source before executing anything.
	Strict bool
}

// New creates an interpreter over src with the given number of cells.
// A non-positive count selects DefaultCells.
func New(src []byte, cells int) *Interpreter {
	if cells <= 0 {
		cells = DefaultCells
	}
	return &Interpreter{
		src:   bf.NewReader(src),
		cells: make([]byte, cells),
	}
}

// Run interprets src with a default-sized tape.
func Run(src []byte, in io.Reader, out io.Writer) error {
	it := New(src, DefaultCells)
	it.Input = in
	it.Output = out
	return it.Run()
}

func (it *Interpreter) inputSource() io.Reader {
	if it.Input != nil {
		return it.Input
	}
	return os.Stdin
}

func (it *Interpreter) outputSink() io.Writer {
	if it.Output != nil {
		return it.Output
	}
	return os.Stdout
}

// Pointer returns the current cell index.
func (it *Interpreter) Pointer() int { return it.ptr }

// Cell returns the value under the pointer.
func (it *Interpreter) Cell() byte { return it.cells[it.ptr] }

// Cells exposes the tape. Callers must not retain it across Steps.
func (it *Interpreter) Cells() []byte { return it.cells }

// PC returns the reader position.
func (it *Interpreter) PC() int { return it.src.PC }

// Steps returns the number of instructions executed so far.
func (it *Interpreter) Steps() uint64 { return it.steps }

// Depth returns the number of loops currently open.
func (it *Interpreter) Depth() int { return len(it.stack) }

// Done reports whether the source is exhausted.
func (it *Interpreter) Done() bool {
	_, ok := it.src.Peek()
	return !ok
}

// Peek returns the next instruction to execute without executing it.
func (it *Interpreter) Peek() (bf.Instruction, bool) {
	return it.src.Peek()
}

// Run executes until the source is exhausted or an error aborts the run.
func (it *Interpreter) Run() error {
	if it.Strict {
		if err := bf.Validate(it.src.Source()); err != nil {
			return err
		}
	}
	for {
		more, err := it.Step()
		if err != nil {
			return err
		}
		if !more {
			log.Debugf("run complete after %d steps", it.steps)
			return nil
		}
	}
}

// Step executes one instruction. It returns false once the source is
// exhausted.
func (it *Interpreter) Step() (bool, error) {
	ins, ok := it.src.Next()
	if !ok {
		return false, nil
	}
	pos := it.src.PC - 1
	it.steps++

	if err := it.exec(ins, pos); err != nil {
		return false, err
	}
	if log.AllowLevel(commonlog.Debug) {
		log.Debugf("%v %d %d %d", ins, pos, it.ptr, it.cells[it.ptr])
	}
	return true, nil
}

func (it *Interpreter) exec(ins bf.Instruction, pos int) error {
	switch ins {
	case bf.MoveRight:
		it.ptr = (it.ptr + 1) % len(it.cells)

	case bf.MoveLeft:
		if it.ptr == 0 {
			it.ptr = len(it.cells) - 1
		} else {
			it.ptr--
		}

	case bf.Increment:
		it.cells[it.ptr]++

	case bf.Decrement:
		it.cells[it.ptr]--

	case bf.Output:
		if _, err := it.outputSink().Write(it.cells[it.ptr : it.ptr+1]); err != nil {
			return fmt.Errorf("write output: %w", err)
		}

	case bf.Input:
		var buf [1]byte
		_, err := io.ReadFull(it.inputSource(), buf[:])
		switch {
		case err == nil:
			it.cells[it.ptr] = buf[0]
		case errors.Is(err, io.EOF):
			it.cells[it.ptr] = 0
		default:
			return fmt.Errorf("read input: %w", err)
		}

	case bf.LoopBegin:
		it.stack = append(it.stack, pos)
		if it.cells[it.ptr] == 0 {
			end, ok := it.src.FindClosing()
			if !ok {
				return &bf.PosError{Err: bf.ErrUnbalancedBrackets, Pos: pos}
			}
			// The LoopEnd is consumed next and pops the entry pushed above.
			it.src.PC = end
		}

	case bf.LoopEnd:
		if len(it.stack) == 0 {
			return &bf.PosError{Err: bf.ErrUnbalancedBrackets, Pos: pos}
		}
		target := it.stack[len(it.stack)-1]
		it.stack = it.stack[:len(it.stack)-1]
		if it.cells[it.ptr] != 0 {
			it.src.PC = target
		}

	case bf.Breakpoint:
		return &BreakpointError{Pos: pos, Pointer: it.ptr, Cell: it.cells[it.ptr]}
	}
	return nil
}
