package rangeanalysis

import (
	"testing"

	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/scalar"
	"github.com/WarpRules/fpopt/internal/tree"
)

func newAnalyzer() *Analyzer[float64] { return New[float64](scalar.Float64Ops{}) }

func immed(v float64) *tree.Node[float64] { return tree.NewImmed[float64](scalar.Float64Ops{}, v) }

func variable(k uint32) *tree.Node[float64] { return tree.NewVar[float64](k) }

func node(op opcode.Opcode, params ...*tree.Node[float64]) *tree.Node[float64] {
	n := tree.New[float64](op, params...)
	n.FixIncompleteHashes()
	return n
}

func want(t *testing.T, r Range[float64], min, max *float64) {
	t.Helper()
	bad := false
	switch {
	case (r.Min == nil) != (min == nil):
		bad = true
	case min != nil && *r.Min != *min:
		bad = true
	}
	switch {
	case (r.Max == nil) != (max == nil):
		bad = true
	case max != nil && *r.Max != *max:
		bad = true
	}
	if bad {
		t.Fatalf("got range {%v,%v}, want {%v,%v}", r.Min, r.Max, min, max)
	}
}

func f(v float64) *float64 { return &v }

func TestImmedRangeIsAPoint(t *testing.T) {
	a := newAnalyzer()
	r := a.CalculateResultBoundaries(immed(3))
	want(t, r, f(3), f(3))
}

func TestComparisonRangeIsZeroOrOne(t *testing.T) {
	a := newAnalyzer()
	n := node(opcode.Less, variable(0), variable(1))
	r := a.CalculateResultBoundaries(n)
	want(t, r, f(0), f(1))
}

func TestAddRangeSumsPointEndpoints(t *testing.T) {
	a := newAnalyzer()
	n := node(opcode.Add, immed(2), immed(3))
	r := a.CalculateResultBoundaries(n)
	want(t, r, f(5), f(5))
}

func TestMulRangeOfTwoPositivePoints(t *testing.T) {
	a := newAnalyzer()
	n := node(opcode.Mul, immed(2), immed(3))
	r := a.CalculateResultBoundaries(n)
	want(t, r, f(6), f(6))
}

func TestAbsRangeIsNonNegative(t *testing.T) {
	a := newAnalyzer()
	n := node(opcode.Abs, variable(0))
	r := a.CalculateResultBoundaries(n)
	if r.Min == nil || *r.Min < 0 {
		t.Fatalf("abs(x): want a nonnegative lower bound, got %v", r.Min)
	}
}

func TestSqrRangeOfImmedIsExact(t *testing.T) {
	a := newAnalyzer()
	n := node(opcode.Sqr, immed(-4))
	r := a.CalculateResultBoundaries(n)
	want(t, r, f(16), f(16))
}

func TestSinRangeIsBoundedByUnitCircle(t *testing.T) {
	a := newAnalyzer()
	n := node(opcode.Sin, variable(0))
	r := a.CalculateResultBoundaries(n)
	if r.Min == nil || r.Max == nil || *r.Min < -1 || *r.Max > 1 {
		t.Fatalf("sin(x) over an unbounded domain: want range within [-1,1], got {%v,%v}", r.Min, r.Max)
	}
}

func TestIfRangeUnionsBothBranches(t *testing.T) {
	a := newAnalyzer()
	n := node(opcode.If, variable(0), immed(1), immed(5))
	r := a.CalculateResultBoundaries(n)
	want(t, r, f(1), f(5))
}

func TestNegRangeFlipsSign(t *testing.T) {
	a := newAnalyzer()
	n := node(opcode.Neg, immed(4))
	r := a.CalculateResultBoundaries(n)
	want(t, r, f(-4), f(-4))
}

func TestSubRangeOfPoints(t *testing.T) {
	a := newAnalyzer()
	n := node(opcode.Sub, immed(5), immed(2))
	r := a.CalculateResultBoundaries(n)
	want(t, r, f(3), f(3))
}

func TestInvRangeOfPositiveImmed(t *testing.T) {
	a := newAnalyzer()
	n := node(opcode.Inv, immed(4))
	r := a.CalculateResultBoundaries(n)
	want(t, r, f(0.25), f(0.25))
}

func TestAcoshRangeDropsMaxWhenChildAlwaysBelowOne(t *testing.T) {
	a := newAnalyzer()
	n := node(opcode.Acosh, immed(0.5))
	r := a.CalculateResultBoundaries(n)
	if r.Min != nil || r.Max != nil {
		t.Fatalf("acosh(0.5): acosh is undefined below 1, want an unbounded range rather than a NaN endpoint, got {%v,%v}", r.Min, r.Max)
	}
}

func TestTanRangeIsUnbounded(t *testing.T) {
	a := newAnalyzer()
	n := node(opcode.Tan, variable(0))
	r := a.CalculateResultBoundaries(n)
	if r.Min != nil || r.Max != nil {
		t.Fatalf("tan(x): want an unbounded range, got {%v,%v}", r.Min, r.Max)
	}
}

func TestIsAlwaysSignedForAbs(t *testing.T) {
	a := newAnalyzer()
	n := node(opcode.Abs, variable(0))
	if a.IsAlwaysSigned(n) != Always {
		t.Fatalf("abs(x) must always prove nonnegative")
	}
}

func TestIsAlwaysSignedUnknownForPlainVariable(t *testing.T) {
	a := newAnalyzer()
	if got := a.IsAlwaysSigned(variable(0)); got != Unknown {
		t.Fatalf("an unbounded variable's sign is unknown, got %v", got)
	}
}

func TestIsAlwaysIntegerForSumOfIntegerImmediates(t *testing.T) {
	a := newAnalyzer()
	n := node(opcode.Add, immed(2), immed(3))
	if a.IsAlwaysInteger(n) != Always {
		t.Fatalf("2+3 must be provably an integer")
	}
}

func TestIsAlwaysIntegerUnknownForNonIntegerImmed(t *testing.T) {
	a := newAnalyzer()
	if got := a.IsAlwaysInteger(immed(1.5)); got != Unknown {
		t.Fatalf("1.5 must not be provably an integer, got %v", got)
	}
}

func TestIsAlwaysIntegerForFloorOfAnything(t *testing.T) {
	a := newAnalyzer()
	n := node(opcode.Floor, variable(0))
	if a.IsAlwaysInteger(n) != Always {
		t.Fatalf("floor(x) is always an integer regardless of x")
	}
}

func TestIsAlwaysIntegerPowWithNonNegativeIntegerExponent(t *testing.T) {
	a := newAnalyzer()
	n := node(opcode.Pow, immed(2), immed(3))
	if a.IsAlwaysInteger(n) != Always {
		t.Fatalf("pow(2,3): integer base raised to a nonnegative integer exponent must be an integer")
	}
}

func TestIsAlwaysIntegerPowWithNegativeExponentIsUnknown(t *testing.T) {
	a := newAnalyzer()
	n := node(opcode.Pow, immed(2), immed(-1))
	if got := a.IsAlwaysInteger(n); got != Unknown {
		t.Fatalf("pow(2,-1) = 0.5 must not be provably an integer, got %v", got)
	}
}

func TestGetEvennessInfoForEvenImmed(t *testing.T) {
	a := newAnalyzer()
	if got := a.GetEvennessInfo(immed(4)).parity; got != Always {
		t.Fatalf("4 is even, got parity %v", got)
	}
}

func TestGetEvennessInfoForOddImmed(t *testing.T) {
	a := newAnalyzer()
	if got := a.GetEvennessInfo(immed(3)).parity; got != Never {
		t.Fatalf("3 is odd, got parity %v", got)
	}
}

func TestGetEvennessInfoMulByEvenIsEven(t *testing.T) {
	a := newAnalyzer()
	n := node(opcode.Mul, immed(3), immed(4))
	if got := a.GetEvennessInfo(n).parity; got != Always {
		t.Fatalf("3*4=12 is even, got parity %v", got)
	}
}

func TestGetEvennessInfoAddOfTwoOddsIsEven(t *testing.T) {
	a := newAnalyzer()
	n := node(opcode.Add, immed(3), immed(5))
	if got := a.GetEvennessInfo(n).parity; got != Always {
		t.Fatalf("3+5=8 is even, got parity %v", got)
	}
}

func TestGetEvennessInfoUnknownForNonInteger(t *testing.T) {
	a := newAnalyzer()
	if got := a.GetEvennessInfo(variable(0)).parity; got != Unknown {
		t.Fatalf("an unconstrained variable's parity is unknown, got %v", got)
	}
}

func TestIsLongIntegerImmedAcceptsSmallInteger(t *testing.T) {
	a := newAnalyzer()
	if !a.IsLongIntegerImmed(immed(7)) {
		t.Fatalf("7 should be accepted as a long integer immediate")
	}
}

func TestIsLongIntegerImmedRejectsFraction(t *testing.T) {
	a := newAnalyzer()
	if a.IsLongIntegerImmed(immed(0.5)) {
		t.Fatalf("0.5 must not be accepted as a long integer immediate")
	}
}

func TestIsLongIntegerImmedRejectsNonImmed(t *testing.T) {
	a := newAnalyzer()
	if a.IsLongIntegerImmed(variable(0)) {
		t.Fatalf("a variable leaf is never a long integer immediate")
	}
}
