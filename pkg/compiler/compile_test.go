package compiler

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"bfkit/pkg/bf"
	"bfkit/pkg/cpu"
)

const helloWorld = "++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++."

func runCompiled(t *testing.T, src, input string) (string, *cpu.CPU) {
	t.Helper()

	_, image, err := Compile([]byte(src))
	require.NoError(t, err)

	var out bytes.Buffer
	c := cpu.NewCPU()
	require.NoError(t, c.Load(image))
	c.Input = strings.NewReader(input)
	c.Output = &out
	c.StepLimit = 10_000_000
	require.NoError(t, c.Run())
	return out.String(), c
}

func TestCompile_HelloWorld(t *testing.T) {
	out, _ := runCompiled(t, helloWorld, "")
	require.Equal(t, "Hello World!\n", out)
}

func TestCompile_EchoUntilNewline(t *testing.T) {
	out, _ := runCompiled(t, ",----------[++++++++++.,----------]", "abc\ndef")
	require.Equal(t, "abc", out)
}

func TestCompile_EOFStoresZero(t *testing.T) {
	_, c := runCompiled(t, "+,", "")
	require.Equal(t, byte(0), c.Data[0])
}

func TestCompile_CellWrap(t *testing.T) {
	_, c := runCompiled(t, "->+", "")
	require.Equal(t, byte(255), c.Data[0])
	require.Equal(t, byte(1), c.Data[1])
}

func TestCompile_PointerWrap(t *testing.T) {
	_, c := runCompiled(t, "<+", "")
	require.Equal(t, byte(1), c.Data[65535])
	require.Equal(t, uint16(65535), c.Regs[cpu.RegP])
}

func TestCompile_ReturnsAssembly(t *testing.T) {
	asmText, image, err := Compile([]byte("+."))
	require.NoError(t, err)
	require.NotNil(t, asmText)
	require.Contains(t, *asmText, "CALL output")
	require.Equal(t, cpu.ImageMagic, string(image[:4]))
}

func TestCompile_Unbalanced(t *testing.T) {
	asmText, image, err := Compile([]byte("[[]"))
	require.True(t, errors.Is(err, bf.ErrUnbalancedBrackets))
	require.Nil(t, asmText)
	require.Nil(t, image)
}
