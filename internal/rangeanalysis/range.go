// Package rangeanalysis implements R: interval, integrality and parity
// inference over the expression tree (spec.md §4.3).
package rangeanalysis

import (
	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/scalar"
	"github.com/WarpRules/fpopt/internal/tree"
)

// Range is an interval; a nil endpoint means unbounded on that side
// (spec.md §3.5).
type Range[S scalar.Number] struct {
	Min, Max *S
}

// TriTruth is the tri-valued truth spec.md §3.6 uses for integrality,
// parity, sign, and logical-value inference.
type TriTruth int

const (
	Unknown TriTruth = iota
	Always
	Never
)

func point[S scalar.Number](v S) Range[S] { return Range[S]{Min: &v, Max: &v} }

func unbounded[S scalar.Number]() Range[S] { return Range[S]{} }

func lo[S scalar.Number](v S) Range[S] { return Range[S]{Min: &v} }
func hi[S scalar.Number](v S) Range[S] { return Range[S]{Max: &v} }
func interval[S scalar.Number](a, b S) Range[S] { return Range[S]{Min: &a, Max: &b} }

// Analyzer bundles the scalar Ops a concrete CalculateResultBoundaries call
// needs (trig reduction, log monotonicity, etc.).
type Analyzer[S scalar.Number] struct {
	Ops scalar.Ops[S]
}

// New builds an Analyzer for scalar type S.
func New[S scalar.Number](ops scalar.Ops[S]) *Analyzer[S] { return &Analyzer[S]{Ops: ops} }

// CalculateResultBoundaries returns the tightest interval the analyzer can
// prove for node n (spec.md §4.3).
func (a *Analyzer[S]) CalculateResultBoundaries(n *tree.Node[S]) Range[S] {
	ops := a.Ops
	switch n.Opcode {
	case opcode.Immed:
		return point(n.Immed)

	case opcode.Equal, opcode.NEqual, opcode.Less, opcode.LessOrEq,
		opcode.Greater, opcode.GreaterOrEq,
		opcode.And, opcode.Or, opcode.Not, opcode.NotNot,
		opcode.AbsAnd, opcode.AbsOr, opcode.AbsNot, opcode.AbsNotNot:
		return interval[S](0, 1)

	case opcode.Abs:
		c := a.CalculateResultBoundaries(n.Params[0])
		return absRange(c)

	case opcode.Log:
		return a.monotoneLogLike(n.Params[0], ops.Log)
	case opcode.Log2:
		return a.monotoneLogLike(n.Params[0], ops.Log2)
	case opcode.Log10:
		return a.monotoneLogLike(n.Params[0], ops.Log10)

	case opcode.Acosh:
		c := a.CalculateResultBoundaries(n.Params[0])
		one := S(1)
		if c.Min != nil && *c.Min > one {
			return a.monotoneEndpoint(c, ops.Acosh)
		}
		// Acosh is undefined below 1; dropping Max too once the child's
		// upper bound falls under that avoids evaluating it into NaN.
		if c.Max != nil && *c.Max < one {
			c.Max = nil
		}
		r := a.monotoneEndpoint(c, ops.Acosh)
		r.Min = nil
		return r

	case opcode.Asinh:
		return a.monotoneEndpoint(a.CalculateResultBoundaries(n.Params[0]), ops.Asinh)
	case opcode.Atanh:
		return a.monotoneEndpoint(a.CalculateResultBoundaries(n.Params[0]), ops.Atanh)
	case opcode.Atan:
		return a.monotoneEndpoint(a.CalculateResultBoundaries(n.Params[0]), ops.Atan)
	case opcode.Sinh:
		return a.monotoneEndpoint(a.CalculateResultBoundaries(n.Params[0]), ops.Sinh)
	case opcode.Tanh:
		return a.monotoneEndpoint(a.CalculateResultBoundaries(n.Params[0]), ops.Tanh)

	case opcode.Asin:
		c := a.CalculateResultBoundaries(n.Params[0])
		r := a.monotoneEndpoint(c, ops.Asin)
		return clamp(r, ops.HalfPi()*-1, ops.HalfPi())
	case opcode.Acos:
		c := a.CalculateResultBoundaries(n.Params[0])
		r := a.monotoneEndpointFlip(c, ops.Acos)
		zero := S(0)
		return clamp(r, zero, ops.Pi())

	case opcode.Sin:
		return a.trig(n.Params[0], ops.Sin, true)
	case opcode.Cos:
		return a.trig(n.Params[0], ops.Cos, false)

	case opcode.Tan:
		return unbounded[S]()

	case opcode.Floor:
		c := a.CalculateResultBoundaries(n.Params[0])
		return roundEndpoints(c, ops.Floor, ops.Ceil)
	case opcode.Ceil:
		c := a.CalculateResultBoundaries(n.Params[0])
		return roundEndpoints(c, ops.Floor, ops.Ceil)
	case opcode.Trunc, opcode.Int:
		c := a.CalculateResultBoundaries(n.Params[0])
		return roundEndpoints(c, ops.Trunc, ops.Trunc)

	case opcode.Cosh:
		c := a.CalculateResultBoundaries(n.Params[0])
		return coshRange(c, ops)

	case opcode.If, opcode.AbsIf:
		t := a.CalculateResultBoundaries(n.Params[1])
		e := a.CalculateResultBoundaries(n.Params[2])
		return union(t, e)

	case opcode.Min:
		return a.minmax(n.Params, true)
	case opcode.Max:
		return a.minmax(n.Params, false)

	case opcode.Add:
		return a.addRange(n.Params)

	case opcode.Mul:
		return a.mulRange(n.Params)

	case opcode.Mod:
		x := a.CalculateResultBoundaries(n.Params[0])
		y := a.CalculateResultBoundaries(n.Params[1])
		return modRange(x, y)

	case opcode.Pow:
		return a.powRange(n.Params[0], n.Params[1])

	// Synthetic opcodes: rewrite into the canonical equivalent and recurse.
	case opcode.Neg:
		return a.CalculateResultBoundaries(synthMulNeg(n))
	case opcode.Sub:
		return a.addRange([]*tree.Node[S]{n.Params[0], negate(n.Params[1])})
	case opcode.Div:
		return a.mulRange([]*tree.Node[S]{n.Params[0], invert(n.Params[1])})
	case opcode.Inv:
		return a.powRangeImmedExp(n.Params[0], -1)
	case opcode.Rad:
		return a.scaled(n.Params[0], ops.DegToRad())
	case opcode.Deg:
		return a.scaled(n.Params[0], ops.RadToDeg())
	case opcode.Sqr:
		return a.powRangeImmedExp(n.Params[0], 2)
	case opcode.Exp:
		return a.monotoneEndpoint(a.CalculateResultBoundaries(n.Params[0]), ops.Exp)
	case opcode.Exp2:
		return a.monotoneEndpoint(a.CalculateResultBoundaries(n.Params[0]), ops.Exp2)
	case opcode.Cbrt:
		return a.monotoneEndpoint(a.CalculateResultBoundaries(n.Params[0]), ops.Cbrt)
	case opcode.Sqrt:
		c := a.CalculateResultBoundaries(n.Params[0])
		return a.monotoneEndpoint(clampLower(c, 0), ops.Sqrt)
	case opcode.RSqrt:
		c := a.CalculateResultBoundaries(n.Params[0])
		return a.monotoneEndpoint(clampLower(c, 0), ops.RSqrt)
	case opcode.Log2by:
		return a.monotoneLogLike(n.Params[0], ops.Log2)
	case opcode.Cot, opcode.Sec, opcode.Csc:
		return unbounded[S]()
	case opcode.Hypot:
		x := a.CalculateResultBoundaries(n.Params[0])
		y := a.CalculateResultBoundaries(n.Params[1])
		return hypotRange(x, y, ops)

	default:
		return unbounded[S]()
	}
}

func synthMulNeg[S scalar.Number](n *tree.Node[S]) *tree.Node[S] { return negate(n.Params[0]) }

// negate/invert/immedOf build throwaway, unhashed scratch nodes purely to
// reuse addRange/mulRange/powRange's interval math on a synthetic opcode's
// canonical equivalent; they are never inserted into the real DAG or
// compared structurally, so they skip the hash machinery entirely.
func negate[S scalar.Number](x *tree.Node[S]) *tree.Node[S] {
	return &tree.Node[S]{Opcode: opcode.Mul, Params: []*tree.Node[S]{x, immedOf[S](-1)}}
}

func invert[S scalar.Number](x *tree.Node[S]) *tree.Node[S] {
	return &tree.Node[S]{Opcode: opcode.Pow, Params: []*tree.Node[S]{x, immedOf[S](-1)}}
}

func immedOf[S scalar.Number](v S) *tree.Node[S] {
	return &tree.Node[S]{Opcode: opcode.Immed, Immed: v, Depth: 1}
}
