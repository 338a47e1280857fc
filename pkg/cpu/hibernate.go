package cpu

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// humanReadableState is the JSON-serializable snapshot of CPU control state.
type humanReadableState struct {
	Regs     [2]uint16 `json:"regs"`
	PC       uint16    `json:"pc"`
	Z        bool      `json:"z"`
	Halted   bool      `json:"halted"`
	Stack    []uint16  `json:"stack"`
	MaxStack int       `json:"max_stack"`
	Steps    uint64    `json:"steps"`
	DataSize int       `json:"data_size"`
}

// HibernateToBytes serialises the complete machine state into an in-memory
// ZIP archive and returns the raw bytes.
func (c *CPU) HibernateToBytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	state := humanReadableState{
		Regs:     c.Regs,
		PC:       c.PC,
		Z:        c.Z,
		Halted:   c.Halted,
		Stack:    c.Stack,
		MaxStack: c.MaxStack,
		Steps:    c.Steps,
		DataSize: len(c.Data),
	}

	jsonData, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal cpu_state: %w", err)
	}
	if err := writeZipEntry(zw, "cpu_state.json", jsonData); err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, "memory.bin", c.Memory[:]); err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, "data.bin", c.Data); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// RestoreFromBytes deserialises a ZIP archive produced by HibernateToBytes and
// applies the saved state to the CPU. StepLimit is not part of the saved
// state; the caller's value is kept.
func (c *CPU) RestoreFromBytes(data []byte) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}

	fileMap := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileMap[f.Name] = f
	}

	jsonData, err := readZipEntry(fileMap, "cpu_state.json")
	if err != nil {
		return err
	}
	var state humanReadableState
	if err := json.Unmarshal(jsonData, &state); err != nil {
		return fmt.Errorf("unmarshal cpu_state: %w", err)
	}
	if state.DataSize < 0 || state.DataSize > MaxDataSize {
		return fmt.Errorf("data segment size %d out of range", state.DataSize)
	}

	memData, err := readZipEntry(fileMap, "memory.bin")
	if err != nil {
		return err
	}
	dataSeg, err := readZipEntry(fileMap, "data.bin")
	if err != nil {
		return err
	}

	c.Regs = state.Regs
	c.PC = state.PC
	c.Z = state.Z
	c.Halted = state.Halted
	c.Stack = append(c.Stack[:0], state.Stack...)
	c.MaxStack = state.MaxStack
	c.Steps = state.Steps

	c.Memory = [65536]byte{}
	copy(c.Memory[:], memData)
	c.Data = make([]byte, state.DataSize)
	copy(c.Data, dataSeg)
	return nil
}

// HibernateToFile writes the hibernation archive to the given file path.
func (c *CPU) HibernateToFile(path string) error {
	data, err := c.HibernateToBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RestoreFromFile reads a hibernation archive from the given file path and
// restores the machine state.
func (c *CPU) RestoreFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return c.RestoreFromBytes(data)
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %q: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func readZipEntry(fileMap map[string]*zip.File, name string) ([]byte, error) {
	f, ok := fileMap[name]
	if !ok {
		return nil, fmt.Errorf("zip entry %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %q: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
