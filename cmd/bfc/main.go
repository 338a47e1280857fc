// Command bfc translates a program into assembly text for the bfkit
// machine.
package main

import (
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	"gopkg.in/alecthomas/kingpin.v2"

	"bfkit/pkg/compiler"
	"bfkit/pkg/config"
	"bfkit/pkg/utils"
)

var (
	app = kingpin.New("bfc", "Compile a program to bfkit assembly.")

	argSource = app.Arg("source", "The source file of the program to compile.").Required().ExistingFile()

	flagOut     = app.Flag("out", "Output path (default: the source path with .S appended).").Short('o').String()
	flagShowAsm = app.Flag("show-asm", "Also print the generated assembly to stdout.").Bool()
	flagVerbose = app.Flag("verbose", "Increase log verbosity (repeatable).").Short('v').Counter()
)

var log = commonlog.GetLogger("bfkit.cli")

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.FindAndLoad(".")
	if err != nil {
		fail(err)
	}
	utils.ConfigureLogging(cfg.Log.Verbosity+*flagVerbose, cfg.Log.File)

	fullPath, _, err := utils.GetPathInfo(*argSource)
	if err != nil {
		fail(err)
	}

	output := *flagOut
	if output == "" {
		output = fullPath + ".S"
	}

	asmText, err := compileFile(fullPath, output)
	if err != nil {
		fail(err)
	}
	log.Infof("compiled %s -> %s", fullPath, output)

	if *flagShowAsm {
		fmt.Print(asmText)
	}
}

// compileFile writes the assembly for the program at src to dst.
func compileFile(src, dst string) (string, error) {
	source, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}

	asmText, err := compiler.Generate(source)
	if err != nil {
		return "", fmt.Errorf("%s: %w", src, err)
	}

	if err := os.WriteFile(dst, []byte(asmText), 0o644); err != nil {
		return "", err
	}
	return asmText, nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "bfc: %v\n", err)
	os.Exit(1)
}
