package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	emulate "hacktools/hack-emulate"
	"hacktools/hack"
	"hacktools/logger"
)

var (
	stepBudget  = flag.Int("steps", 10_000_000, "maximum instructions to execute before giving up")
	interactive = flag.Bool("interactive", false, "read a byte from stdin between step batches and feed it to the keyboard register")
	verbose     = flag.Bool("v", false, "whether to print step-loop progress and the final CPU state")
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: hack-emulate [-steps=N] [-interactive] [-v] file.hack")
		os.Exit(1)
	}
	logger.Toggle(*verbose)
	if err := run(args[0], *stepBudget, *interactive); err != nil {
		fmt.Fprintf(os.Stderr, "hack-emulate: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, budget int, interactive bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cpu := emulate.New()
	if err := cpu.LoadROM(f); err != nil {
		return err
	}
	logger.Printf("loaded %s, step budget %d\n", path, budget)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	defer signal.Stop(sigCh)

	const batch = 1000
	remaining := budget
	var stdinByte [1]byte
	for remaining > 0 {
		select {
		case <-sigCh:
			remaining = 0
		default:
		}
		if remaining <= 0 {
			break
		}
		n := batch
		if n > remaining {
			n = remaining
		}
		executed := cpu.Step(n)
		remaining -= executed
		logger.Printf("executed %d instructions, %d remaining\n", executed, remaining)
		if executed < n {
			logger.Println("self-loop reached, halting")
			break // self-loop reached
		}
		if interactive {
			if read, _ := os.Stdin.Read(stdinByte[:]); read > 0 {
				cpu.SetKeyboard(hack.KeyboardCode(rune(stdinByte[0])))
			}
		}
	}

	state := cpu.State()
	fmt.Printf("%+v\n", state)
	fmt.Printf("RAM[0] = %d\n", cpu.Memory()[0])
	return nil
}
