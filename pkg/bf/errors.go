package bf

import (
	"errors"
	"fmt"
)

var (
	ErrUnbalancedBrackets = errors.New("unbalanced brackets")
	ErrBreakpoint         = errors.New("breakpoint hit")
)

// PosError attaches the source position of the offending instruction to an
// error raised by the reader or one of the engines.
type PosError struct {
	Err error
	Pos int
}

func (e *PosError) Error() string {
	return fmt.Sprintf("%v at source offset %d", e.Err, e.Pos)
}

func (e *PosError) Unwrap() error {
	return e.Err
}
