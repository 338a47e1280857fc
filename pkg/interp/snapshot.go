package interp

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Snapshot is a copy of the interpreter state, detached from the live run.
type Snapshot struct {
	PC      int    `cbor:"1,keyasint"`
	Pointer int    `cbor:"2,keyasint"`
	Stack   []int  `cbor:"3,keyasint"`
	Cells   []byte `cbor:"4,keyasint"`
	Steps   uint64 `cbor:"5,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("interp: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot captures the current state.
func (it *Interpreter) Snapshot() *Snapshot {
	s := &Snapshot{
		PC:      it.src.PC,
		Pointer: it.ptr,
		Stack:   make([]int, len(it.stack)),
		Cells:   make([]byte, len(it.cells)),
		Steps:   it.steps,
	}
	copy(s.Stack, it.stack)
	copy(s.Cells, it.cells)
	return s
}

// Restore replaces the state with s. The source buffer is kept, so s must
// come from a run over the same program.
func (it *Interpreter) Restore(s *Snapshot) error {
	if len(s.Cells) == 0 {
		return errors.New("snapshot has no cells")
	}
	if s.Pointer < 0 || s.Pointer >= len(s.Cells) {
		return fmt.Errorf("snapshot pointer %d outside %d cells", s.Pointer, len(s.Cells))
	}
	if s.PC < 0 || s.PC > it.src.Len() {
		return fmt.Errorf("snapshot position %d outside %d byte source", s.PC, it.src.Len())
	}
	for _, pos := range s.Stack {
		if pos < 0 || pos >= it.src.Len() || it.src.Source()[pos] != '[' {
			return fmt.Errorf("snapshot loop stack entry %d is not a loop start", pos)
		}
	}

	it.src.PC = s.PC
	it.ptr = s.Pointer
	it.steps = s.Steps
	it.stack = append(it.stack[:0], s.Stack...)
	it.cells = make([]byte, len(s.Cells))
	copy(it.cells, s.Cells)
	return nil
}

// MarshalSnapshot serializes a Snapshot to CBOR bytes.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a Snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("interp: unmarshal snapshot: %w", err)
	}
	return &s, nil
}
