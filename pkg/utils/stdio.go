package utils

import (
	"bufio"
	"io"
)

// FlushingReader flushes pending output before each read so a program's
// prompt is visible while it waits for input.
type FlushingReader struct {
	R io.Reader
	W *bufio.Writer
}

func (f *FlushingReader) Read(p []byte) (int, error) {
	if err := f.W.Flush(); err != nil {
		return 0, err
	}
	return f.R.Read(p)
}
