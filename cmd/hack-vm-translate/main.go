package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	vmtranslate "hacktools/hack-vm-translate"
	"hacktools/logger"
)

// hack-vm-translate accepts a directory of *.vm files (or a single *.vm
// file) and writes a single assembly program translating all of them.

var (
	verbose   = flag.Bool("v", false, "whether to print the generated assembly")
	bootstrap = flag.Bool("boot", true, "whether to emit the SP=256/call Sys.init bootstrap")
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: hack-vm-translate [-v] [-boot=false] path")
		os.Exit(1)
	}
	logger.Toggle(*verbose)
	if err := run(args[0], *bootstrap); err != nil {
		fmt.Fprintf(os.Stderr, "hack-vm-translate: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, bootstrap bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	translator := vmtranslate.NewVMTranslator()
	var outputPath string
	if info.IsDir() {
		dir := strings.TrimRight(path, "/")
		outputPath = filepath.Join(dir, filepath.Base(dir)+".asm")
		if err := translator.TranslateDir(dir, bootstrap); err != nil {
			return err
		}
	} else {
		if !strings.HasSuffix(path, ".vm") {
			return fmt.Errorf("not a .vm file: %s", path)
		}
		dir, file := filepath.Split(path)
		outputPath = strings.TrimSuffix(path, ".vm") + ".asm"
		if bootstrap {
			translator.WriteBootstrap()
		}
		if err := translator.TranslateFile(strings.TrimSuffix(dir, "/"), file); err != nil {
			return err
		}
	}
	logger.Print(translator.Output())
	if err := translator.SaveTo(outputPath); err != nil {
		return fmt.Errorf("failed to save %s: %w", outputPath, err)
	}
	return nil
}
