package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	hackassemble "hacktools/hack-assemble"
	"hacktools/logger"
)

// hack-assemble accepts a single .asm file and writes the sibling .hack
// file containing its machine code.

var (
	verbose = flag.Bool("v", false, "whether to print all transformed binary code")
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: hack-assemble [-v] file.asm")
		os.Exit(1)
	}
	logger.Toggle(*verbose)
	inputPath := args[0]
	if err := run(inputPath); err != nil {
		fmt.Fprintf(os.Stderr, "hack-assemble: %v\n", err)
		os.Exit(1)
	}
}

func run(inputPath string) error {
	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", inputPath, err)
	}
	defer f.Close()

	asm := hackassemble.CreateAssembler()
	if _, err := asm.Parse(f); err != nil {
		return fmt.Errorf("failed to parse %s: %w", inputPath, err)
	}
	logger.Print(asm.ConvertCommandsToString())
	outputPath := strings.TrimSuffix(inputPath, ".asm") + ".hack"
	if err := asm.SaveMachineCodeToFile(outputPath); err != nil {
		return fmt.Errorf("failed to save %s: %w", outputPath, err)
	}
	return nil
}
