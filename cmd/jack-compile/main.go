package main

import (
	"flag"
	"fmt"
	"os"

	jackcompile "hacktools/jack-compile"
	"hacktools/logger"
)

// jack-compile accepts a directory of *.jack files and writes one *.vm
// file per class alongside it.

var verbose = flag.Bool("v", false, "whether to print the generated VM code")

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: jack-compile [-v] directory")
		os.Exit(1)
	}
	logger.Toggle(*verbose)
	if err := run(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "jack-compile: %v\n", err)
		os.Exit(1)
	}
}

func run(dir string) error {
	written, err := jackcompile.CompileDir(dir)
	if err != nil {
		return err
	}
	if len(written) == 0 {
		return fmt.Errorf("no .jack files found in %s", dir)
	}
	for _, f := range written {
		logger.Println(f)
	}
	return nil
}
