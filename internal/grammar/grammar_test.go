package grammar

import (
	"testing"

	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/scalar"
	"github.com/WarpRules/fpopt/internal/tree"
)

func build(m *Matcher[float64], n *tree.Node[float64]) *tree.Node[float64] {
	m.Fold.Rehash(n)
	return n
}

func variable(k uint32) *tree.Node[float64] { return tree.NewVar[float64](k) }

func immed(v float64) *tree.Node[float64] { return tree.NewImmed[float64](scalar.Float64Ops{}, v) }

func run(t *testing.T, m *Matcher[float64], n *tree.Node[float64]) *tree.Node[float64] {
	t.Helper()
	for m.ApplyGrammars([]*Grammar{DefaultGrammar}, n) {
	}
	return n
}

func TestApplyGrammarsPowIdentities(t *testing.T) {
	m := NewMatcher[float64](scalar.Float64Ops{})

	// pow(x, 0) -> 1
	n := build(m, tree.New[float64](opcode.Pow, variable(0), immed(0)))
	run(t, m, n)
	if !n.IsImmed() || n.Immed != 1 {
		t.Fatalf("pow(x,0): want immediate 1, got opcode %v value %v", n.Opcode, n.Immed)
	}

	// pow(x, 1) -> x
	n = build(m, tree.New[float64](opcode.Pow, variable(1), immed(1)))
	run(t, m, n)
	if !n.IsVar() || n.VarOrFunc != 1 {
		t.Fatalf("pow(x,1): want variable 1, got opcode %v", n.Opcode)
	}
}

func TestApplyGrammarsSelfSub(t *testing.T) {
	m := NewMatcher[float64](scalar.Float64Ops{})

	x1, x2 := variable(3), variable(3)
	n := build(m, tree.New[float64](opcode.Sub, x1, x2))
	run(t, m, n)
	if !n.IsImmed() || n.Immed != 0 {
		t.Fatalf("x-x: want immediate 0, got opcode %v value %v", n.Opcode, n.Immed)
	}
}

func TestApplyGrammarsSqrtOfSqr(t *testing.T) {
	m := NewMatcher[float64](scalar.Float64Ops{})

	sqr := build(m, tree.New[float64](opcode.Sqr, variable(2)))
	n := build(m, tree.New[float64](opcode.Sqrt, sqr))
	run(t, m, n)
	if n.Opcode != opcode.Abs {
		t.Fatalf("sqrt(sqr(x)): want Abs, got opcode %v", n.Opcode)
	}
	if !n.Params[0].IsVar() || n.Params[0].VarOrFunc != 2 {
		t.Fatalf("sqrt(sqr(x)): want abs(x), got %v", n.Params[0].Opcode)
	}
}

func TestApplyGrammarsMulByZero(t *testing.T) {
	m := NewMatcher[float64](scalar.Float64Ops{})

	// 0*x, operand order reversed from the rule pattern, to exercise the
	// SelectedParams order-independent match.
	n := build(m, tree.New[float64](opcode.Mul, immed(0), variable(5)))
	run(t, m, n)
	if !n.IsImmed() || n.Immed != 0 {
		t.Fatalf("0*x: want immediate 0, got opcode %v value %v", n.Opcode, n.Immed)
	}
}

func TestApplyGrammarsCombineLikeTerms(t *testing.T) {
	m := NewMatcher[float64](scalar.Float64Ops{})

	x1, x2, y := variable(7), variable(7), variable(8)
	n := build(m, tree.New[float64](opcode.Add, x1, x2, y))
	run(t, m, n)

	if n.Opcode != opcode.Add || len(n.Params) != 2 {
		t.Fatalf("x+x+y: want a 2-operand Add, got opcode %v with %d params", n.Opcode, len(n.Params))
	}
	var sawDoubled, sawY bool
	for _, p := range n.Params {
		switch {
		case p.Opcode == opcode.Mul && len(p.Params) == 2:
			sawDoubled = true
		case p.IsVar() && p.VarOrFunc == 8:
			sawY = true
		}
	}
	if !sawDoubled || !sawY {
		t.Fatalf("x+x+y: want 2*x and y as operands, got %+v", n.Params)
	}
}

func TestApplyGrammarsReciprocalPowPair(t *testing.T) {
	m := NewMatcher[float64](scalar.Float64Ops{})

	pos := build(m, tree.New[float64](opcode.Pow, variable(9), immed(3)))
	neg := build(m, tree.New[float64](opcode.Pow, variable(9), immed(-3)))
	n := build(m, tree.New[float64](opcode.Mul, pos, neg))
	run(t, m, n)
	if !n.IsImmed() || n.Immed != 1 {
		t.Fatalf("pow(x,3)*pow(x,-3): want immediate 1, got opcode %v value %v", n.Opcode, n.Immed)
	}
}

func TestGrammarCandidatesFilterByOpcodeAndArity(t *testing.T) {
	if len(DefaultGrammar.candidates(opcode.Sin, 1)) != 0 {
		t.Fatalf("Sin has no rules in the default grammar")
	}
	pow := DefaultGrammar.candidates(opcode.Pow, 2)
	if len(pow) == 0 {
		t.Fatalf("expected at least one Pow rule candidate")
	}
}
