package compiler

import (
	"fmt"

	"bfkit/pkg/asm"
)

// Compile generates assembly for src and assembles it into a program image.
// The assembly text is returned whenever generation succeeded, so callers
// can show it even if assembling failed.
func Compile(src []byte) (*string, []byte, error) {
	assembly, err := Generate(src)
	if err != nil {
		log.Errorf("codegen error: %s", err)
		return nil, nil, err
	}

	machineCode, _, err := asm.Assemble(assembly)
	if err != nil {
		return &assembly, nil, fmt.Errorf("assembly error: %w", err)
	}

	return &assembly, machineCode, nil
}
