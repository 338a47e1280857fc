// Package bf holds the lexical layer shared by the interpreter and the code
// generator: the instruction alphabet and a byte cursor that yields one
// instruction at a time and resolves matching loop brackets.
package bf

// Reader is a cursor over a borrowed source buffer.
//
// PC is the number of bytes consumed so far. It is plain data: the engines
// record it on their own loop stacks and move it when they jump. After Next
// yields an instruction, PC points one past the byte it came from.
type Reader struct {
	PC  int
	src []byte
}

func NewReader(src []byte) *Reader {
	return &Reader{src: src}
}

// Len returns the size of the source buffer in bytes.
func (r *Reader) Len() int {
	return len(r.src)
}

// Next returns the next recognized instruction, skipping inert bytes.
// It returns false once the buffer is exhausted.
func (r *Reader) Next() (Instruction, bool) {
	for r.PC < len(r.src) {
		b := r.src[r.PC]
		r.PC++
		if ins, ok := Parse(b); ok {
			return ins, true
		}
	}
	return Illegal, false
}

// Peek returns the instruction Next would return without consuming it.
func (r *Reader) Peek() (Instruction, bool) {
	pc := r.PC
	ins, ok := r.Next()
	r.PC = pc
	return ins, ok
}

// FindClosing must be called right after a LoopBegin was consumed. It returns
// the offset of the matching LoopEnd byte. PC is left where it was whether or
// not a match exists.
func (r *Reader) FindClosing() (int, bool) {
	pc := r.PC
	depth := 1
	for {
		ins, ok := r.Next()
		if !ok {
			r.PC = pc
			return 0, false
		}
		switch ins {
		case LoopBegin:
			depth++
		case LoopEnd:
			depth--
			if depth == 0 {
				pos := r.PC - 1
				r.PC = pc
				return pos, true
			}
		}
	}
}

// Validate checks that every bracket in src has a partner. The returned
// error is a *PosError naming the first bracket found unmatched.
func Validate(src []byte) error {
	var open []int
	for i, b := range src {
		switch b {
		case '[':
			open = append(open, i)
		case ']':
			if len(open) == 0 {
				return &PosError{Err: ErrUnbalancedBrackets, Pos: i}
			}
			open = open[:len(open)-1]
		}
	}
	if len(open) > 0 {
		return &PosError{Err: ErrUnbalancedBrackets, Pos: open[0]}
	}
	return nil
}

// Source returns the borrowed buffer.
func (r *Reader) Source() []byte {
	return r.src
}
