package constfold

import (
	"testing"

	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/scalar"
	"github.com/WarpRules/fpopt/internal/tree"
)

func newFolder() *Folder[float64] { return New[float64](scalar.Float64Ops{}) }

func fimmed(v float64) *tree.Node[float64] { return tree.NewImmed[float64](scalar.Float64Ops{}, v) }

func fvar(k uint32) *tree.Node[float64] { return tree.NewVar[float64](k) }

func TestRehashFoldsImmediateAdd(t *testing.T) {
	f := newFolder()
	n := tree.New[float64](opcode.Add, fimmed(2), fimmed(3))
	f.Rehash(n)
	if !n.IsImmed() || n.Immed != 5 {
		t.Fatalf("2+3: want Immed(5), got opcode %v value %v", n.Opcode, n.Immed)
	}
}

func TestRehashDropsAddIdentityZero(t *testing.T) {
	f := newFolder()
	x := fvar(0)
	n := tree.New[float64](opcode.Add, x, fimmed(0))
	f.Rehash(n)
	if !n.IsVar() {
		t.Fatalf("x+0: want it collapsed to the bare variable, got opcode %v", n.Opcode)
	}
}

func TestRehashMulByZeroCollapsesToZero(t *testing.T) {
	f := newFolder()
	x := fvar(0)
	y := fvar(1)
	n := tree.New[float64](opcode.Mul, x, y, fimmed(0))
	f.Rehash(n)
	if !n.IsImmed() || n.Immed != 0 {
		t.Fatalf("x*y*0: want Immed(0), got opcode %v value %v", n.Opcode, n.Immed)
	}
}

func TestRehashMulByOneDropsIt(t *testing.T) {
	f := newFolder()
	x := fvar(0)
	n := tree.New[float64](opcode.Mul, x, fimmed(1))
	f.Rehash(n)
	if !n.IsVar() {
		t.Fatalf("x*1: want it collapsed to the bare variable, got opcode %v", n.Opcode)
	}
}

func TestRehashCombinesIdenticalAddTermsIntoCoefficient(t *testing.T) {
	f := newFolder()
	x := fvar(0)
	n := tree.New[float64](opcode.Add, x, x)
	f.Rehash(n)
	if n.Opcode != opcode.Mul {
		t.Fatalf("x+x: want it rewritten as a coefficient Mul, got opcode %v", n.Opcode)
	}
	var sawCoeff bool
	for _, p := range n.Params {
		if p.IsImmed() && p.Immed == 2 {
			sawCoeff = true
		}
	}
	if !sawCoeff {
		t.Fatalf("x+x: want a coefficient of 2 among the Mul's params, got %+v", n.Params)
	}
}

func TestRehashCombinesIdenticalMulFactorsIntoExponent(t *testing.T) {
	f := newFolder()
	x := fvar(0)
	n := tree.New[float64](opcode.Mul, x, x)
	f.Rehash(n)
	if n.Opcode != opcode.Pow {
		t.Fatalf("x*x: want it rewritten as pow(x,2), got opcode %v", n.Opcode)
	}
	if !n.Params[1].IsImmed() || n.Params[1].Immed != 2 {
		t.Fatalf("x*x: want exponent 2, got %v", n.Params[1].Immed)
	}
}

func TestRehashFoldsImmediatePow(t *testing.T) {
	f := newFolder()
	n := tree.New[float64](opcode.Pow, fimmed(2), fimmed(10))
	f.Rehash(n)
	if !n.IsImmed() || n.Immed != 1024 {
		t.Fatalf("pow(2,10): want Immed(1024), got opcode %v value %v", n.Opcode, n.Immed)
	}
}

func TestRehashPowExponentOneBecomesBase(t *testing.T) {
	f := newFolder()
	x := fvar(0)
	n := tree.New[float64](opcode.Pow, x, fimmed(1))
	f.Rehash(n)
	if !n.IsVar() {
		t.Fatalf("pow(x,1): want it collapsed to the bare variable, got opcode %v", n.Opcode)
	}
}

func TestRehashNestedPowMultipliesExponents(t *testing.T) {
	f := newFolder()
	x := fvar(0)
	inner := tree.New[float64](opcode.Pow, x, fimmed(3))
	f.Rehash(inner)
	outer := tree.New[float64](opcode.Pow, inner, fimmed(2))
	f.Rehash(outer)
	if outer.Opcode != opcode.Pow || !outer.Params[1].IsImmed() || outer.Params[1].Immed != 6 {
		t.Fatalf("pow(pow(x,3),2): want pow(x,6), got opcode %v exponent %v", outer.Opcode, outer.Params[1].Immed)
	}
}

func TestRehashAssimilatesNestedAdd(t *testing.T) {
	f := newFolder()
	x, y, z := fvar(0), fvar(1), fvar(2)
	inner := tree.New[float64](opcode.Add, x, y)
	f.Rehash(inner)
	outer := tree.New[float64](opcode.Add, inner, z)
	f.Rehash(outer)
	if outer.Opcode != opcode.Add || len(outer.Params) != 3 {
		t.Fatalf("(x+y)+z: want a flat 3-ary Add, got opcode %v with %d params", outer.Opcode, len(outer.Params))
	}
}

func TestRehashFoldsAlwaysTrueComparisonToPoint(t *testing.T) {
	f := newFolder()
	n := tree.New[float64](opcode.Greater, fimmed(5), fimmed(3))
	f.Rehash(n)
	if !n.IsImmed() || n.Immed != 1 {
		t.Fatalf("5>3: want it folded to Immed(1), got opcode %v value %v", n.Opcode, n.Immed)
	}
}

func TestRehashMinDedupesStructuralDuplicates(t *testing.T) {
	f := newFolder()
	x := fvar(0)
	n := tree.New[float64](opcode.Min, x, fimmed(100), fimmed(100))
	f.Rehash(n)
	if len(n.Params) != 2 {
		t.Fatalf("min(x,100,100): want the duplicate 100 collapsed to one, got %d params %+v",
			len(n.Params), n.Params)
	}
	count := 0
	for _, p := range n.Params {
		if p.IsImmed() && p.Immed == 100 {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("min(x,100,100): want exactly one surviving 100, got %d", count)
	}
}

func TestRehashFoldsAbsOfAlwaysNonNegative(t *testing.T) {
	f := newFolder()
	x := fvar(0)
	sq := tree.New[float64](opcode.Sqr, x)
	f.Rehash(sq)
	n := tree.New[float64](opcode.Abs, sq)
	f.Rehash(n)
	if n.Opcode != opcode.Sqr {
		t.Fatalf("abs(x^2): want the always-nonnegative Abs folded away, got opcode %v", n.Opcode)
	}
}

func TestRehashFoldsNotNotOfComparisonAwayAsRedundant(t *testing.T) {
	f := newFolder()
	cmp := tree.New[float64](opcode.Less, fvar(0), fvar(1))
	f.Rehash(cmp)
	n := tree.New[float64](opcode.NotNot, cmp)
	f.Rehash(n)
	if n.Opcode != opcode.Less {
		t.Fatalf("!!(x<y): a comparison is already a logical value, want NotNot adopted away to Less, got opcode %v", n.Opcode)
	}
}
