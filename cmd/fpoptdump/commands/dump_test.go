package commands

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/WarpRules/fpopt/internal/bytecode"
	"github.com/WarpRules/fpopt/internal/opcode"
)

// withCapturedStdout runs fn with os.Stdout replaced by a pipe and returns
// everything written to it.
func withCapturedStdout(t *testing.T, fn func()) []byte {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w

	done := make(chan []byte, 1)
	go func() {
		out, _ := io.ReadAll(r)
		done <- out
	}()

	fn()

	w.Close()
	os.Stdout = orig
	return <-done
}

func writeProgramFile(t *testing.T, dir string, w wireProgram) string {
	t.Helper()
	path := filepath.Join(dir, "program.json")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating fixture: %v", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(w); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	return path
}

func TestDumpCommandOptimizesPowOfOne(t *testing.T) {
	in := wireProgram{
		Code: []uint32{
			bytecode.EncodeOp(bytecode.EncodeVar(0)),
			bytecode.EncodeOp(opcode.Immed),
			bytecode.EncodeOp(opcode.Pow),
		},
		Immed:     []float64{1},
		PeakStack: 2,
	}
	path := writeProgramFile(t, t.TempDir(), in)

	var out []byte
	var cmdErr error
	out = withCapturedStdout(t, func() {
		cmdErr = DumpCommand([]string{path})
	})
	if cmdErr != nil {
		t.Fatalf("DumpCommand: unexpected error %v", cmdErr)
	}

	var result wireProgram
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("decoding output %q: %v", out, err)
	}
	if len(result.Code) != 1 || bytecode.DecodeOp(result.Code[0]) != bytecode.EncodeVar(0) {
		t.Fatalf("pow(x,1): want the bare variable, got %+v", result)
	}
}

func TestDumpCommandRejectsMissingFile(t *testing.T) {
	if err := DumpCommand([]string{filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Fatalf("want an error for a nonexistent path")
	}
}

func TestDumpCommandRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if err := DumpCommand([]string{path}); err == nil {
		t.Fatalf("want an error for malformed JSON")
	}
}

func TestDumpCommandVerboseWritesToStderrNotStdout(t *testing.T) {
	in := wireProgram{
		Code: []uint32{
			bytecode.EncodeOp(bytecode.EncodeVar(0)),
			bytecode.EncodeOp(opcode.Immed),
			bytecode.EncodeOp(opcode.Pow),
		},
		Immed:     []float64{1},
		PeakStack: 2,
	}
	path := writeProgramFile(t, t.TempDir(), in)

	out := withCapturedStdout(t, func() {
		if err := DumpCommand([]string{"-v", path}); err != nil {
			t.Fatalf("DumpCommand: unexpected error %v", err)
		}
	})

	var result wireProgram
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("-v should still produce clean JSON on stdout, got %q: %v", out, err)
	}
}
