package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"bfkit/pkg/bf"
	"bfkit/pkg/interp"
)

func TestExecute(t *testing.T) {
	var out bytes.Buffer
	err := execute([]byte(",[.,]"), options{cells: 16}, strings.NewReader("echo"), &out)
	require.NoError(t, err)
	require.Equal(t, "echo", out.String())
}

func TestExecute_StrictRejectsBeforeRunning(t *testing.T) {
	var out bytes.Buffer
	err := execute([]byte("+.]"), options{cells: 16, strict: true}, strings.NewReader(""), &out)
	require.True(t, errors.Is(err, bf.ErrUnbalancedBrackets))
	require.Empty(t, out.String())
}

func TestExecute_DumpAndResume(t *testing.T) {
	dir := t.TempDir()
	dump := filepath.Join(dir, "snap.cbor")
	src := []byte("+++#.")

	var out bytes.Buffer
	err := execute(src, options{cells: 8, dump: dump}, strings.NewReader(""), &out)
	require.True(t, errors.Is(err, bf.ErrBreakpoint))
	require.FileExists(t, dump)

	var summary bytes.Buffer
	require.NoError(t, inspect(dump, &summary))
	require.Contains(t, summary.String(), "offset:  4\n")
	require.Contains(t, summary.String(), "cell:    3\n")
	require.Contains(t, summary.String(), "tape:    03\n")

	out.Reset()
	err = execute(src, options{cells: 8, resume: dump}, strings.NewReader(""), &out)
	require.NoError(t, err)
	require.Equal(t, "\x03", out.String())
}

func TestExecute_NoDumpWithoutFlag(t *testing.T) {
	var out bytes.Buffer
	err := execute([]byte("#"), options{cells: 8}, strings.NewReader(""), &out)
	var bp *interp.BreakpointError
	require.True(t, errors.As(err, &bp))
	require.Equal(t, 0, bp.Pos)
}

func TestInspect_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0x00}, 0o644))
	require.Error(t, inspect(path, &bytes.Buffer{}))
}
