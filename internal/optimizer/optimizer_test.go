package optimizer

import (
	"bytes"
	"testing"

	"github.com/WarpRules/fpopt/internal/bytecode"
	"github.com/WarpRules/fpopt/internal/debugdump"
	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/scalar"
)

func ops() scalar.Ops[float64] { return scalar.Float64Ops{} }

func decodeOps(prog bytecode.Program[float64]) []opcode.Opcode {
	var out []opcode.Opcode
	i := 0
	for i < len(prog.Code) {
		op := bytecode.DecodeOp(prog.Code[i])
		out = append(out, op)
		switch op {
		case opcode.Fetch:
			i += 2
		case opcode.PopNMov, opcode.If, opcode.AbsIf, opcode.Jump:
			i += 3
		case opcode.FCall, opcode.PCall:
			i += 2
		default:
			i++
		}
	}
	return out
}

// powOfOne builds the bytecode for pow(x, 1).
func powOfOne() bytecode.Program[float64] {
	return bytecode.Program[float64]{
		Code: []uint32{
			bytecode.EncodeOp(bytecode.EncodeVar(0)),
			bytecode.EncodeOp(opcode.Immed),
			bytecode.EncodeOp(opcode.Pow),
		},
		Immed:     []float64{1},
		PeakStack: 2,
	}
}

func TestOptimizeAppliesPowOfOneRule(t *testing.T) {
	prog := powOfOne()
	result, err := Optimize[float64](prog, ops(), nil, DefaultOptions())
	if err != nil {
		t.Fatalf("pow(x,1): unexpected error %v", err)
	}
	decoded := decodeOps(result)
	if len(decoded) != 1 || decoded[0] != opcode.VarBegin {
		t.Fatalf("pow(x,1): want it reduced to the bare variable, got %v", decoded)
	}
}

func TestOptimizeXMinusXRule(t *testing.T) {
	prog := bytecode.Program[float64]{
		Code: []uint32{
			bytecode.EncodeOp(bytecode.EncodeVar(0)),
			bytecode.EncodeOp(bytecode.EncodeVar(0)),
			bytecode.EncodeOp(opcode.Sub),
		},
	}
	result, err := Optimize[float64](prog, ops(), nil, DefaultOptions())
	if err != nil {
		t.Fatalf("x-x: unexpected error %v", err)
	}
	decoded := decodeOps(result)
	if len(decoded) != 1 || decoded[0] != opcode.Immed {
		t.Fatalf("x-x: want it reduced to a single immediate 0, got %v", decoded)
	}
	if len(result.Immed) != 1 || result.Immed[0] != 0 {
		t.Fatalf("x-x: want the immediate pool to hold 0, got %v", result.Immed)
	}
}

func TestOptimizeMalformedBytecodeReturnsError(t *testing.T) {
	prog := bytecode.Program[float64]{
		Code: []uint32{bytecode.EncodeOp(opcode.Add)},
	}
	if _, err := Optimize[float64](prog, ops(), nil, DefaultOptions()); err == nil {
		t.Fatalf("Add with an empty stack: want a lift error, got none")
	}
}

func TestOptimizeWritesDebugDump(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Debug = debugdump.NewSession(&buf, debugdump.VerbosityDetail)
	prog := powOfOne()
	if _, err := Optimize[float64](prog, ops(), nil, opts); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("want the debug session to have recorded something")
	}
}
