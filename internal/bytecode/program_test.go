package bytecode

import (
	"testing"

	"github.com/WarpRules/fpopt/internal/opcode"
)

func TestEncodeDecodeOpRoundTrips(t *testing.T) {
	for _, op := range []opcode.Opcode{opcode.Immed, opcode.Add, opcode.Pow, opcode.FCall} {
		if got := DecodeOp(EncodeOp(op)); got != op {
			t.Fatalf("EncodeOp/DecodeOp(%v): got %v", op, got)
		}
	}
}

func TestEncodeVarIsVarRoundTrips(t *testing.T) {
	for _, k := range []uint32{0, 1, 7, 100} {
		op := EncodeVar(k)
		got, ok := IsVar(op)
		if !ok || got != k {
			t.Fatalf("EncodeVar(%d): IsVar returned (%d,%v)", k, got, ok)
		}
	}
}

func TestIsVarRejectsOrdinaryOpcodes(t *testing.T) {
	for _, op := range []opcode.Opcode{opcode.Immed, opcode.Add, opcode.Mul, opcode.FCall} {
		if _, ok := IsVar(op); ok {
			t.Fatalf("IsVar(%v): want false, it is not a variable opcode", op)
		}
	}
}

func TestMapFnTableArity(t *testing.T) {
	tbl := MapFnTable{3: 2, 5: 1}
	if got := tbl.Arity(3); got != 2 {
		t.Fatalf("Arity(3): got %d, want 2", got)
	}
	if got := tbl.Arity(99); got != 0 {
		t.Fatalf("Arity(99) for an unregistered function: got %d, want zero value 0", got)
	}
}
