// Package logger is a tiny verbose-mode gate shared by every command in
// this module: each main.go flips Toggle once from its -v flag, and stage
// code calls Print/Printf/Println without needing to thread a bool
// through every function that might want to trace something.
package logger

import "fmt"

var verbose = false

func Toggle(flag bool) {
	verbose = flag
}

func Print(values ...interface{}) {
	if !verbose {
		return
	}
	fmt.Print(values...)
}

func Printf(format string, values ...interface{}) {
	if !verbose {
		return
	}
	fmt.Printf(format, values...)
}

func Println(values ...interface{}) {
	if !verbose {
		return
	}
	fmt.Println(values...)
}
