// Package scalar isolates the per-type numeric primitives fpopt depends on
// but never implements itself: arithmetic, transcendental functions, and the
// near-equality/integrality predicates the rest of the optimizer treats as
// an external collaborator (spec.md §3.1).
package scalar

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Number bounds the scalar type S the optimizer is generic over.
type Number interface {
	constraints.Float
}

// Ops supplies every per-type capability the optimizer's components consult.
// A host instantiates one Ops[S] per scalar type it runs the optimizer over;
// fpopt ships Float64Ops, Float32Ops and Ext128Ops (see ext.go).
type Ops[S Number] interface {
	// Arithmetic the generic constraint already gives for free as operators;
	// Ops covers only what constraints.Float cannot express.
	Pow(base, exp S) S
	Log(x S) S
	Log2(x S) S
	Log10(x S) S
	Exp(x S) S
	Exp2(x S) S
	Sqrt(x S) S
	Cbrt(x S) S
	RSqrt(x S) S
	Sin(x S) S
	Cos(x S) S
	Tan(x S) S
	Asin(x S) S
	Acos(x S) S
	Atan(x S) S
	Atan2(y, x S) S
	Sinh(x S) S
	Cosh(x S) S
	Tanh(x S) S
	Asinh(x S) S
	Acosh(x S) S
	Atanh(x S) S
	Abs(x S) S
	Floor(x S) S
	Ceil(x S) S
	Trunc(x S) S
	Mod(x, y S) S
	Hypot(x, y S) S

	// Predicates.
	FPEqual(a, b S) bool
	IsInteger(x S) bool
	IsLongInteger(x S) bool // integer of magnitude below 2^53 (2^24 for float32)
	IsEvenInteger(x S) bool
	IsOddInteger(x S) bool

	// Constants.
	Pi() S
	HalfPi() S
	TwoPi() S
	E() S
	Ln10() S
	InvLn10() S
	Ln2() S
	InvLn2() S
	DegToRad() S
	RadToDeg() S
	NegZeroEpsilon() S // "just below zero" sentinel

	// Bytes returns the raw representation mixed into the structural hash
	// (internal/hash) for an Immed leaf.
	Bytes(v S) []byte
}

// fpTolerance is the relative tolerance FPEqual implementations use; it
// mirrors fparser's own epsilon-based near-equality.
const fpTolerance = 1e-9

func fpEqual(a, b, tolerance float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	scale := math.Abs(a) + math.Abs(b)
	if scale == 0 {
		return diff < tolerance
	}
	return diff/scale < tolerance
}
