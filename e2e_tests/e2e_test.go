package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"bfkit/pkg/asm"
	"bfkit/pkg/compiler"
	"bfkit/pkg/cpu"
	"bfkit/pkg/interp"
)

// machineCells is the size of the data segment the generated code reserves.
// Interpreting with the same tape length makes pointer wrap agree.
const machineCells = 65536

type result struct {
	out     string
	cells   []byte
	pointer int
}

func interpret(t *testing.T, src []byte, input string) result {
	t.Helper()

	var out bytes.Buffer
	it := interp.New(src, machineCells)
	it.Input = strings.NewReader(input)
	it.Output = &out
	require.NoError(t, it.Run())

	return result{out: out.String(), cells: it.Cells(), pointer: it.Pointer()}
}

func compileAndRun(t *testing.T, src []byte, input string) result {
	t.Helper()

	assembly, err := compiler.Generate(src)
	require.NoError(t, err)

	image, _, err := asm.Assemble(assembly)
	require.NoError(t, err, "assembly:\n%s", assembly)

	var out bytes.Buffer
	vm := cpu.NewCPU()
	require.NoError(t, vm.Load(image))
	vm.Input = strings.NewReader(input)
	vm.Output = &out
	vm.StepLimit = 50_000_000
	require.NoError(t, vm.Run())

	return result{out: out.String(), cells: vm.Data, pointer: int(vm.Regs[cpu.RegP])}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		file  string
		input string
		want  string
	}{
		{"hello.b", "", "Hello World!\n"},
		{"echo.b", "first line\nsecond", "first line"},
		{"cat.b", "copy me", "copy me"},
		{"multiply.b", "", "<"},
		{"add.b", "\x03\x04", "\x07"},
	}

	for _, tc := range tests {
		t.Run(tc.file, func(t *testing.T) {
			src, err := os.ReadFile(filepath.Join("testdata", tc.file))
			require.NoError(t, err)

			want := interpret(t, src, tc.input)
			got := compileAndRun(t, src, tc.input)

			require.Equal(t, tc.want, want.out)
			require.Equal(t, want.out, got.out)
			require.Equal(t, want.pointer, got.pointer)
			require.True(t, bytes.Equal(want.cells, got.cells), "tapes differ")
		})
	}
}

func TestRoundTripWrap(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"pointer left of zero", "<+++<++"},
		{"pointer right of end", "<+>+>+"},
		{"cell below zero", "-.>--."},
		{"cell above max", strings.Repeat("+", 257) + "."},
		{"input at end", "+++,."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			want := interpret(t, []byte(tc.src), "")
			got := compileAndRun(t, []byte(tc.src), "")

			require.Equal(t, want.out, got.out)
			require.Equal(t, want.pointer, got.pointer)
			require.True(t, bytes.Equal(want.cells, got.cells), "tapes differ")
		})
	}
}

func TestCompileProducesLoadableImage(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("testdata", "hello.b"))
	require.NoError(t, err)

	assembly, image, err := compiler.Compile(src)
	require.NoError(t, err)
	require.NotNil(t, assembly)

	var out bytes.Buffer
	vm := cpu.NewCPU()
	require.NoError(t, vm.Load(image))
	vm.Output = &out
	require.NoError(t, vm.Run())
	require.Equal(t, "Hello World!\n", out.String())
}

func TestHibernateMidRun(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("testdata", "hello.b"))
	require.NoError(t, err)

	_, image, err := compiler.Compile(src)
	require.NoError(t, err)

	var first bytes.Buffer
	vm := cpu.NewCPU()
	require.NoError(t, vm.Load(image))
	vm.Output = &first
	vm.StepLimit = 500
	require.ErrorIs(t, vm.Run(), cpu.ErrStepLimit)

	saved, err := vm.HibernateToBytes()
	require.NoError(t, err)

	var rest bytes.Buffer
	resumed := cpu.NewCPU()
	require.NoError(t, resumed.RestoreFromBytes(saved))
	resumed.Output = &rest
	require.NoError(t, resumed.Run())
	require.Equal(t, "Hello World!\n", first.String()+rest.String())
}
