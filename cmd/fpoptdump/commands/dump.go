// Package commands implements fpoptdump's subcommands, one flat
// func-per-command the way cmd/sentra/commands does.
package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/WarpRules/fpopt/internal/bytecode"
	"github.com/WarpRules/fpopt/internal/debugdump"
	"github.com/WarpRules/fpopt/internal/optimizer"
	"github.com/WarpRules/fpopt/internal/scalar"
)

// colorWriter dims every line that isn't a "=== ..." session banner, so a
// terminal reader's eye catches session boundaries in a long dump.
type colorWriter struct{ w io.Writer }

const (
	ansiDim   = "\x1b[2m"
	ansiBold  = "\x1b[1m"
	ansiReset = "\x1b[0m"
)

func (c *colorWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.SplitAfter(p, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		style := ansiDim
		if bytes.HasPrefix(line, []byte("===")) {
			style = ansiBold
		}
		if _, err := fmt.Fprintf(c.w, "%s%s%s", style, line, ansiReset); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// wireProgram is the on-disk JSON shape: bytecode.Program's fields, plus a
// function table for any FCall/PCall targets the program uses.
type wireProgram struct {
	Code      []uint32       `json:"code"`
	Immed     []float64      `json:"immed"`
	PeakStack int            `json:"peak_stack"`
	Functions map[string]int `json:"functions,omitempty"`
}

func (w wireProgram) fnTable() bytecode.FnTable {
	t := make(bytecode.MapFnTable, len(w.Functions))
	for name, arity := range w.Functions {
		var fn uint32
		fmt.Sscanf(name, "%d", &fn)
		t[fn] = arity
	}
	return t
}

// DumpCommand reads a JSON-encoded bytecode program from args[0] (or stdin
// when no path is given), runs it through optimizer.Optimize, and writes
// the resulting program as JSON to stdout. With -v it also streams a debug
// dump to stderr, colorized when stderr is a terminal.
func DumpCommand(args []string) error {
	verbose := false
	var path string
	for _, a := range args {
		switch a {
		case "-v", "--verbose":
			verbose = true
		default:
			path = a
		}
	}

	var r io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	var in wireProgram
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return fmt.Errorf("decoding program: %w", err)
	}

	opts := optimizer.DefaultOptions()
	if verbose {
		var w io.Writer = os.Stderr
		if isatty.IsTerminal(os.Stderr.Fd()) {
			w = &colorWriter{w: os.Stderr}
		}
		opts.Debug = debugdump.NewSession(w, debugdump.VerbosityDetail)
	}

	ops := scalar.Float64Ops{}
	prog := bytecode.Program[float64]{Code: in.Code, Immed: in.Immed, PeakStack: in.PeakStack}
	result, err := optimizer.Optimize[float64](prog, ops, in.fnTable(), opts)
	if err != nil {
		return fmt.Errorf("optimizing: %w", err)
	}

	out := wireProgram{Code: result.Code, Immed: result.Immed, PeakStack: result.PeakStack}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
