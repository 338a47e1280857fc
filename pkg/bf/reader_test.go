package bf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   byte
		want Instruction
		ok   bool
	}{
		{'>', MoveRight, true},
		{'<', MoveLeft, true},
		{'+', Increment, true},
		{'-', Decrement, true},
		{'.', Output, true},
		{',', Input, true},
		{'[', LoopBegin, true},
		{']', LoopEnd, true},
		{'#', Breakpoint, true},
		{' ', Illegal, false},
		{'a', Illegal, false},
		{'\n', Illegal, false},
	}
	for _, tc := range tests {
		got, ok := Parse(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Parse(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
		if ok && got.Char() != tc.in {
			t.Errorf("%v.Char() = %q; want %q", got, got.Char(), tc.in)
		}
	}
}

func TestNextSkipsInertBytes(t *testing.T) {
	r := NewReader([]byte("a+ b\n-x"))

	ins, ok := r.Next()
	require.True(t, ok)
	require.Equal(t, Increment, ins)
	require.Equal(t, 2, r.PC)

	ins, ok = r.Next()
	require.True(t, ok)
	require.Equal(t, Decrement, ins)
	require.Equal(t, 6, r.PC)

	_, ok = r.Next()
	require.False(t, ok)
	require.Equal(t, 7, r.PC)

	_, ok = r.Next()
	require.False(t, ok)
}

func TestPeekDoesNotConsume(t *testing.T) {
	r := NewReader([]byte("  ,."))
	ins, ok := r.Peek()
	require.True(t, ok)
	require.Equal(t, Input, ins)
	require.Equal(t, 0, r.PC)

	ins, _ = r.Next()
	require.Equal(t, Input, ins)
}

func TestFindUnmatchedBracket(t *testing.T) {
	r := NewReader([]byte("[[]"))
	r.Next()
	before := r.PC

	_, ok := r.FindClosing()
	require.False(t, ok)
	require.Equal(t, before, r.PC)
}

func TestFindNestedBracket(t *testing.T) {
	r := NewReader([]byte("[[]]"))
	r.Next()
	pos, ok := r.FindClosing()
	require.True(t, ok)
	require.Equal(t, 3, pos)
	require.Equal(t, 1, r.PC)

	r.Next()
	pos, ok = r.FindClosing()
	require.True(t, ok)
	require.Equal(t, 2, pos)
	require.Equal(t, 2, r.PC)
}

func TestFindClosingSkipsComments(t *testing.T) {
	src := []byte("[ loop body + [ inner ] - ] tail")
	r := NewReader(src)
	r.Next()
	pos, ok := r.FindClosing()
	require.True(t, ok)
	require.Equal(t, byte(']'), src[pos])
	require.Equal(t, 26, pos)
}

// Every match returned for a balanced program lands on a ']' and encloses a
// span whose own brackets balance.
func TestFindClosingBalancedPrograms(t *testing.T) {
	programs := []string{
		"[]",
		"+[->+<]",
		"[[][[]]]",
		"++[>++[>+<-]<-]>>.",
		"x[y[z]w[v[u]t]s]r",
	}
	for _, prog := range programs {
		src := []byte(prog)
		r := NewReader(src)
		for {
			ins, ok := r.Next()
			if !ok {
				break
			}
			if ins != LoopBegin {
				continue
			}
			open := r.PC - 1
			before := r.PC
			pos, ok := r.FindClosing()
			require.True(t, ok, "%q: no match for bracket at %d", prog, open)
			require.Equal(t, before, r.PC)
			require.Equal(t, byte(']'), src[pos], "%q", prog)

			depth := 0
			for _, b := range src[open+1 : pos] {
				switch b {
				case '[':
					depth++
				case ']':
					depth--
				}
				require.GreaterOrEqual(t, depth, 0, "%q", prog)
			}
			require.Zero(t, depth, "%q", prog)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		src     string
		wantPos int
		wantErr bool
	}{
		{"", 0, false},
		{"+[->+<]", 0, false},
		{"[[]", 0, true},
		{"[]]", 2, true},
		{"]", 0, true},
		{"a[b[c]d", 1, true},
	}
	for _, tc := range tests {
		err := Validate([]byte(tc.src))
		if !tc.wantErr {
			require.NoError(t, err, "%q", tc.src)
			continue
		}
		require.ErrorIs(t, err, ErrUnbalancedBrackets, "%q", tc.src)
		var pe *PosError
		require.True(t, errors.As(err, &pe))
		require.Equal(t, tc.wantPos, pe.Pos, "%q", tc.src)
	}
}
