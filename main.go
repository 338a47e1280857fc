// Command bfkit builds program images for the bfkit machine and runs them.
// Sources ending in .b or .bf are compiled; anything else is assembled.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	"gopkg.in/alecthomas/kingpin.v2"

	"bfkit/pkg/asm"
	"bfkit/pkg/compiler"
	"bfkit/pkg/config"
	"bfkit/pkg/cpu"
	"bfkit/pkg/utils"
)

var (
	app = kingpin.New("bfkit", "Assemble or compile to a machine image and run it.")

	inPath      = app.Flag("in", "Input source (.b/.bf) or assembly file path.").ExistingFile()
	outPath     = app.Flag("out", "Output binary file path (default: input with .bin extension).").String()
	runProgram  = app.Flag("run", "Run the generated binary file on the machine.").Bool()
	runBinPath  = app.Flag("run-bin", "Run an existing binary file on the machine.").ExistingFile()
	restorePath = app.Flag("restore", "Continue a machine saved with --hibernate.").ExistingFile()
	hibernate   = app.Flag("hibernate", "Save the machine state here after the run.").String()
	configPath  = app.Flag("config", "Path to a bfkit.toml file.").ExistingFile()
	verbose     = app.Flag("verbose", "Increase log verbosity (repeatable).").Short('v').Counter()
)

var log = commonlog.GetLogger("bfkit.cli")

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bfkit: %v\n", err)
		os.Exit(1)
	}
	utils.ConfigureLogging(cfg.Log.Verbosity+*verbose, cfg.Log.File)

	targets := 0
	for _, set := range []bool{*runProgram, *runBinPath != "", *restorePath != ""} {
		if set {
			targets++
		}
	}
	if targets > 1 {
		fmt.Fprintln(os.Stderr, "use only one of --run, --run-bin or --restore")
		os.Exit(2)
	}

	assembledOutput := ""
	if *inPath != "" {
		output := *outPath
		if output == "" {
			output = utils.ReplaceExt(*inPath, ".bin")
		}

		n, err := build(*inPath, output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bfkit: %v\n", err)
			os.Exit(1)
		}

		fmt.Fprintf(os.Stderr, "assembled %d bytes -> %s\n", n, output)
		assembledOutput = output
	}

	if *inPath == "" && targets == 0 {
		fmt.Fprintln(os.Stderr, "nothing to do: provide --in to build, --run to run the built output, --run-bin <file> to run an existing binary or --restore <file> to continue a saved machine")
		app.Usage(os.Args[1:])
		os.Exit(2)
	}

	vm := newMachine(cfg)
	switch {
	case *runBinPath != "":
		err = loadBinary(vm, *runBinPath)
	case *restorePath != "":
		vm, err = restoreMachine(cfg, *restorePath)
	case *runProgram:
		if assembledOutput == "" {
			fmt.Fprintln(os.Stderr, "--run requires --in, or use --run-bin <file>")
			os.Exit(2)
		}
		err = loadBinary(vm, assembledOutput)
	default:
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "bfkit: %v\n", err)
		os.Exit(1)
	}

	if err := run(vm, *hibernate, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.FindAndLoad(".")
}

// build turns the file at in into an image at out and returns its size.
func build(in, out string) (int, error) {
	source, err := os.ReadFile(in)
	if err != nil {
		return 0, fmt.Errorf("failed to read input file %q: %w", in, err)
	}

	var image []byte
	if utils.IsSourcePath(in) {
		_, image, err = compiler.Compile(source)
		if err != nil {
			return 0, fmt.Errorf("compilation failed: %w", err)
		}
	} else {
		image, _, err = asm.Assemble(string(source))
		if err != nil {
			return 0, fmt.Errorf("assembly failed: %w", err)
		}
	}

	if err := os.WriteFile(out, image, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write binary file %q: %w", out, err)
	}
	return len(image), nil
}

func newMachine(cfg *config.Config) *cpu.CPU {
	vm := cpu.NewCPU()
	vm.StepLimit = cfg.Machine.StepLimit
	vm.MaxStack = cfg.Machine.MaxStack
	return vm
}

func loadBinary(vm *cpu.CPU, path string) error {
	image, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := vm.Load(image); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// restoreMachine continues a saved machine. A configured step limit is a
// budget of further steps on top of the ones already taken.
func restoreMachine(cfg *config.Config, path string) (*cpu.CPU, error) {
	vm := newMachine(cfg)
	if err := vm.RestoreFromFile(path); err != nil {
		return nil, err
	}
	if cfg.Machine.StepLimit > 0 {
		vm.StepLimit = vm.Steps + cfg.Machine.StepLimit
	}
	return vm, nil
}

// run executes vm against stdin and stdout. A machine stopped by the step
// limit is still saved, so --restore can pick it up.
func run(vm *cpu.CPU, hibernatePath string, stdin io.Reader, stdout io.Writer) error {
	out := bufio.NewWriter(stdout)
	vm.Input = &utils.FlushingReader{R: bufio.NewReader(stdin), W: out}
	vm.Output = out

	err := vm.Run()
	if ferr := out.Flush(); err == nil {
		err = ferr
	}

	if hibernatePath != "" && (err == nil || errors.Is(err, cpu.ErrStepLimit)) {
		if herr := vm.HibernateToFile(hibernatePath); herr != nil {
			return herr
		}
		log.Noticef("machine state saved to %s", hibernatePath)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr,
		"run complete: PC=0x%04X P=0x%04X A=0x%04X Z=%t steps=%d\n",
		vm.PC,
		vm.Regs[cpu.RegP],
		vm.Regs[cpu.RegA],
		vm.Z,
		vm.Steps,
	)
	return nil
}
