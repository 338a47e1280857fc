package bf

import "fmt"

// Instruction is one decoded unit of the source alphabet.
type Instruction uint8

const (
	Illegal Instruction = iota // never produced by Parse

	MoveRight  // >
	MoveLeft   // <
	Increment  // +
	Decrement  // -
	Output     // .
	Input      // ,
	LoopBegin  // [
	LoopEnd    // ]
	Breakpoint // #
)

// BreakpointChar is the reserved ninth instruction character.
const BreakpointChar = '#'

// Parse maps a source byte to its instruction. Every other byte is inert.
func Parse(b byte) (Instruction, bool) {
	switch b {
	case '>':
		return MoveRight, true
	case '<':
		return MoveLeft, true
	case '+':
		return Increment, true
	case '-':
		return Decrement, true
	case '.':
		return Output, true
	case ',':
		return Input, true
	case '[':
		return LoopBegin, true
	case ']':
		return LoopEnd, true
	case BreakpointChar:
		return Breakpoint, true
	}
	return Illegal, false
}

// Char returns the source byte for the instruction.
func (ins Instruction) Char() byte {
	switch ins {
	case MoveRight:
		return '>'
	case MoveLeft:
		return '<'
	case Increment:
		return '+'
	case Decrement:
		return '-'
	case Output:
		return '.'
	case Input:
		return ','
	case LoopBegin:
		return '['
	case LoopEnd:
		return ']'
	case Breakpoint:
		return BreakpointChar
	}
	return 0
}

func (ins Instruction) String() string {
	switch ins {
	case MoveRight:
		return "moveright"
	case MoveLeft:
		return "moveleft"
	case Increment:
		return "increment"
	case Decrement:
		return "decrement"
	case Output:
		return "output"
	case Input:
		return "input"
	case LoopBegin:
		return "loopbegin"
	case LoopEnd:
		return "loopend"
	case Breakpoint:
		return "breakpoint"
	}
	return fmt.Sprintf("instruction(%d)", int(ins))
}
