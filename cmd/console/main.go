// Command console runs a program with the tape interpreter.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	"gopkg.in/alecthomas/kingpin.v2"

	"bfkit/pkg/config"
	"bfkit/pkg/interp"
	"bfkit/pkg/utils"
)

var (
	app = kingpin.New("console", "Run a program on the tape interpreter.")

	argSource = app.Arg("source", "The source file of the program to execute.").ExistingFile()

	flagConfig  = app.Flag("config", "Path to a bfkit.toml file (default: search upward from the working directory).").ExistingFile()
	flagCells   = app.Flag("cells", "Number of tape cells (overrides the configuration).").Int()
	flagStrict  = app.Flag("strict", "Reject unbalanced brackets before running.").Bool()
	flagDump    = app.Flag("dump", "Write a CBOR snapshot here when a breakpoint stops the run.").String()
	flagResume  = app.Flag("resume", "Continue from a snapshot written by --dump.").ExistingFile()
	flagInspect = app.Flag("inspect", "Print a summary of a snapshot file and exit.").ExistingFile()
	flagVerbose = app.Flag("verbose", "Increase log verbosity (repeatable).").Short('v').Counter()
)

var log = commonlog.GetLogger("bfkit.cli")

type options struct {
	cells  int
	strict bool
	dump   string
	resume string
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := loadConfig(*flagConfig)
	if err != nil {
		fail(err)
	}
	utils.ConfigureLogging(cfg.Log.Verbosity+*flagVerbose, cfg.Log.File)

	if *flagInspect != "" {
		if err := inspect(*flagInspect, os.Stdout); err != nil {
			fail(err)
		}
		return
	}

	if *argSource == "" {
		app.Usage(os.Args[1:])
		os.Exit(2)
	}

	opts := options{
		cells:  cfg.Interpreter.Cells,
		strict: cfg.Interpreter.Strict || *flagStrict,
		dump:   *flagDump,
		resume: *flagResume,
	}
	if *flagCells > 0 {
		opts.cells = *flagCells
	}

	src, err := os.ReadFile(*argSource)
	if err != nil {
		fail(err)
	}

	out := bufio.NewWriter(os.Stdout)
	in := &utils.FlushingReader{R: bufio.NewReader(os.Stdin), W: out}
	err = execute(src, opts, in, out)
	if ferr := out.Flush(); err == nil {
		err = ferr
	}
	if err != nil {
		fail(err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.FindAndLoad(".")
}

// execute runs src and, when a breakpoint stops it and opts.dump is set,
// saves the state so a later run can pick up from there.
func execute(src []byte, opts options, in io.Reader, out io.Writer) error {
	it := interp.New(src, opts.cells)
	it.Input = in
	it.Output = out
	it.Strict = opts.strict

	if opts.resume != "" {
		snap, err := readSnapshot(opts.resume)
		if err != nil {
			return err
		}
		if err := it.Restore(snap); err != nil {
			return fmt.Errorf("resume %s: %w", opts.resume, err)
		}
		log.Infof("resumed at offset %d after %d steps", snap.PC, snap.Steps)
	}

	err := it.Run()
	if err == nil {
		return nil
	}

	var bp *interp.BreakpointError
	if errors.As(err, &bp) && opts.dump != "" {
		data, merr := interp.MarshalSnapshot(it.Snapshot())
		if merr != nil {
			return merr
		}
		if werr := os.WriteFile(opts.dump, data, 0o644); werr != nil {
			return werr
		}
		log.Noticef("snapshot written to %s", opts.dump)
	}
	return err
}

func readSnapshot(path string) (*interp.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return interp.UnmarshalSnapshot(data)
}

func inspect(path string, w io.Writer) error {
	snap, err := readSnapshot(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "offset:  %d\n", snap.PC)
	fmt.Fprintf(w, "steps:   %d\n", snap.Steps)
	fmt.Fprintf(w, "cells:   %d\n", len(snap.Cells))
	fmt.Fprintf(w, "pointer: %d\n", snap.Pointer)
	if snap.Pointer >= 0 && snap.Pointer < len(snap.Cells) {
		fmt.Fprintf(w, "cell:    %d\n", snap.Cells[snap.Pointer])
	}
	fmt.Fprintf(w, "loops:   %v\n", snap.Stack)

	used := 0
	for i, c := range snap.Cells {
		if c != 0 {
			used = i + 1
		}
	}
	if used > 0 {
		fmt.Fprintf(w, "tape:    % x\n", snap.Cells[:used])
	}
	return nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "console: %v\n", err)
	os.Exit(1)
}
