// Package config handles bfkit.toml tool configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name FindAndLoad looks for.
const FileName = "bfkit.toml"

// Config represents a bfkit.toml file.
type Config struct {
	Interpreter Interpreter `toml:"interpreter"`
	Machine     Machine     `toml:"machine"`
	Log         Log         `toml:"log"`
	Desktop     Desktop     `toml:"desktop"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `toml:"-"`
}

type Interpreter struct {
	Cells  int  `toml:"cells"`
	Strict bool `toml:"strict"`
}

type Machine struct {
	StepLimit uint64 `toml:"step_limit"`
	MaxStack  int    `toml:"max_stack"`
}

// Log configures commonlog. Verbosity 0 logs notices and above; an empty
// File means stderr.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

type Desktop struct {
	StepsPerFrame int `toml:"steps_per_frame"`
	Columns       int `toml:"columns"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Interpreter: Interpreter{Cells: 30000},
		Machine:     Machine{MaxStack: 1024},
		Desktop:     Desktop{StepsPerFrame: 5000, Columns: 16},
	}
}

// Load parses the file at path on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if _, err := toml.Decode(string(data), c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a bfkit.toml file and loads it.
// Without one it returns Default.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

func (c *Config) validate() error {
	if c.Interpreter.Cells <= 0 {
		return fmt.Errorf("interpreter.cells must be positive, got %d", c.Interpreter.Cells)
	}
	if c.Machine.MaxStack <= 0 {
		return fmt.Errorf("machine.max_stack must be positive, got %d", c.Machine.MaxStack)
	}
	if c.Desktop.StepsPerFrame <= 0 {
		return fmt.Errorf("desktop.steps_per_frame must be positive, got %d", c.Desktop.StepsPerFrame)
	}
	if c.Desktop.Columns <= 0 {
		return fmt.Errorf("desktop.columns must be positive, got %d", c.Desktop.Columns)
	}
	return nil
}
