// Command fpoptdump runs fpopt's optimizer pipeline over a JSON-encoded
// bytecode program for manual inspection during development. It is not
// part of the library's public contract.
package main

import (
	"fmt"
	"os"

	"github.com/WarpRules/fpopt/cmd/fpoptdump/commands"
)

const usage = `fpoptdump: run fpopt's optimizer over a JSON bytecode program.

Usage:
  fpoptdump dump [-v] [file.json]   optimize a program, JSON in on stdin/file, JSON out on stdout
`

func main() { os.Exit(run(os.Args[1:])) }

// run holds main's logic in a form testscript can drive via RunMain, since
// testscript needs an int-returning entry point rather than os.Exit calls
// scattered through main.
func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 1
	}

	switch args[0] {
	case "dump":
		if err := commands.DumpCommand(args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "fpoptdump: %v\n", err)
			return 1
		}
		return 0
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usage)
		return 1
	}
}
