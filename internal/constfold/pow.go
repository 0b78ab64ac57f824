package constfold

import (
	"math"

	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/rangeanalysis"
	"github.com/WarpRules/fpopt/internal/scalar"
	"github.com/WarpRules/fpopt/internal/tree"
)

func isFiniteNonZero[S scalar.Number](v S) bool {
	f64 := float64(v)
	return !math.IsInf(f64, 0) && !math.IsNaN(f64) && f64 != 0
}

func rebuildMul[S scalar.Number](f *Folder[S], factors []*tree.Node[S]) *tree.Node[S] {
	if len(factors) == 1 {
		return factors[0]
	}
	m := tree.New[S](opcode.Mul, factors...)
	f.Rehash(m)
	return m
}

// foldPow implements Pow folding (§4.4.7): immediate evaluation, the
// exp≡1/base≡1 identities, exponent-pushing through a Mul exponent or a Mul
// base, and nested-power collapsing. The precision-loss guard on
// exponent-pushing is reduced to a finite/non-zero check rather than the
// bit-count heuristic the spec describes.
func (f *Folder[S]) foldPow(n *tree.Node[S]) bool {
	base, exp := n.Params[0], n.Params[1]
	ops := f.Ops

	if base.IsImmed() && exp.IsImmed() {
		if exp.Immed == 2 {
			n.SetImmed(ops, base.Immed*base.Immed)
		} else {
			n.SetImmed(ops, ops.Pow(base.Immed, exp.Immed))
		}
		return true
	}

	if exp.IsImmed() && float64(exp.Immed) == 1 {
		n.Become(base)
		return true
	}
	if base.IsImmed() && base.Immed == 1 {
		n.SetImmed(ops, 1)
		return true
	}

	if base.Opcode == opcode.Pow {
		innerBase, innerExp := base.Params[0], base.Params[1]
		if innerExp.IsImmed() && exp.IsImmed() {
			newExp := innerExp.Immed * exp.Immed
			wrapAbs := ops.IsEvenInteger(innerExp.Immed) && !ops.IsEvenInteger(newExp)
			innerBase.Retain()
			nb := innerBase
			if wrapAbs {
				absNode := tree.New[S](opcode.Abs, innerBase)
				f.Rehash(absNode)
				nb = absNode
			}
			n.SetParamsMove([]*tree.Node[S]{nb, tree.NewImmed(ops, newExp)})
			return true
		}
	}

	if base.IsImmed() && exp.Opcode == opcode.Mul {
		for i, c := range exp.Params {
			if !c.IsImmed() {
				continue
			}
			result := ops.Pow(base.Immed, c.Immed)
			if !isFiniteNonZero(result) {
				continue
			}
			rest := make([]*tree.Node[S], 0, len(exp.Params)-1)
			for j, p := range exp.Params {
				if j == i {
					continue
				}
				p.Retain()
				rest = append(rest, p)
			}
			newExpNode := rebuildMul(f, rest)
			n.SetParamsMove([]*tree.Node[S]{tree.NewImmed(ops, result), newExpNode})
			return true
		}
	}

	if base.Opcode == opcode.Mul && exp.IsImmed() {
		newFactors := make([]*tree.Node[S], len(base.Params))
		for i, factor := range base.Params {
			factor.Retain()
			exp.Retain()
			p := tree.New[S](opcode.Pow, factor, exp)
			f.Rehash(p)
			newFactors[i] = p
		}
		mulNode := rebuildMul(f, newFactors)
		n.Become(mulNode)
		return true
	}

	return false
}

// foldAtan2 handles the y=0/x=0 degenerate forms by immediate evaluation
// (delegated to Ops.Atan2, which is expected to follow IEEE atan2 branch
// conventions) and rewrites to atan(y/x) once x is provably non-zero.
func (f *Folder[S]) foldAtan2(n *tree.Node[S]) bool {
	y, x := n.Params[0], n.Params[1]
	ops := f.Ops
	if y.IsImmed() && x.IsImmed() {
		n.SetImmed(ops, ops.Atan2(y.Immed, x.Immed))
		return true
	}
	xr := f.RA.CalculateResultBoundaries(x)
	var zero S
	xNonZero := (xr.Min != nil && *xr.Min > zero) || (xr.Max != nil && *xr.Max < zero)
	if xNonZero {
		y.Retain()
		x.Retain()
		invX := tree.New[S](opcode.Pow, x, tree.NewImmed(ops, S(-1)))
		f.Rehash(invX)
		mul := tree.New[S](opcode.Mul, y, invX)
		f.Rehash(mul)
		n.SetOpcode(opcode.Atan)
		n.SetParamsMove([]*tree.Node[S]{mul})
		return true
	}
	return false
}

// foldUnaryOrHypot evaluates a unary transcendental/rounding opcode (plus
// the binary Hypot/Mod) when every argument is immediate, and collapses
// Floor/Ceil/Trunc/Int to their argument when it is provably already an
// integer.
func (f *Folder[S]) foldUnaryOrHypot(n *tree.Node[S]) bool {
	ops := f.Ops
	allImmed := true
	for _, p := range n.Params {
		if !p.IsImmed() {
			allImmed = false
			break
		}
	}
	if allImmed {
		a0 := n.Params[0].Immed
		var result S
		ok := true
		switch n.Opcode {
		case opcode.Sin:
			result = ops.Sin(a0)
		case opcode.Cos:
			result = ops.Cos(a0)
		case opcode.Tan:
			result = ops.Tan(a0)
		case opcode.Cot:
			result = 1 / ops.Tan(a0)
		case opcode.Sec:
			result = 1 / ops.Cos(a0)
		case opcode.Csc:
			result = 1 / ops.Sin(a0)
		case opcode.Asin:
			result = ops.Asin(a0)
		case opcode.Acos:
			result = ops.Acos(a0)
		case opcode.Atan:
			result = ops.Atan(a0)
		case opcode.Sinh:
			result = ops.Sinh(a0)
		case opcode.Cosh:
			result = ops.Cosh(a0)
		case opcode.Tanh:
			result = ops.Tanh(a0)
		case opcode.Asinh:
			result = ops.Asinh(a0)
		case opcode.Acosh:
			result = ops.Acosh(a0)
		case opcode.Atanh:
			result = ops.Atanh(a0)
		case opcode.Exp:
			result = ops.Exp(a0)
		case opcode.Exp2:
			result = ops.Exp2(a0)
		case opcode.Log2:
			result = ops.Log2(a0)
		case opcode.Log10:
			result = ops.Log10(a0)
		case opcode.Ceil:
			result = ops.Ceil(a0)
		case opcode.Floor:
			result = ops.Floor(a0)
		case opcode.Trunc:
			result = ops.Trunc(a0)
		case opcode.Int:
			result = ops.Floor(a0 + S(0.5))
		case opcode.Cbrt:
			result = ops.Cbrt(a0)
		case opcode.Sqrt:
			result = ops.Sqrt(a0)
		case opcode.RSqrt:
			result = ops.RSqrt(a0)
		case opcode.Hypot:
			result = ops.Hypot(a0, n.Params[1].Immed)
		case opcode.Mod:
			result = ops.Mod(a0, n.Params[1].Immed)
		default:
			ok = false
		}
		if ok {
			n.SetImmed(ops, result)
			return true
		}
	}

	switch n.Opcode {
	case opcode.Floor, opcode.Ceil, opcode.Trunc, opcode.Int:
		child := n.Params[0]
		if f.RA.IsAlwaysInteger(child) == rangeanalysis.Always {
			n.Become(child)
			return true
		}
	}
	return false
}

// foldSynthetic folds the synthetic opcodes per-immediate, matching the
// canonical forms the lifter and lowerer use them for (§4.5, §4.7).
func (f *Folder[S]) foldSynthetic(n *tree.Node[S]) bool {
	ops := f.Ops
	switch n.Opcode {
	case opcode.Neg:
		if n.Params[0].IsImmed() {
			n.SetImmed(ops, -n.Params[0].Immed)
			return true
		}
	case opcode.Sub:
		if n.Params[0].IsImmed() && n.Params[1].IsImmed() {
			n.SetImmed(ops, n.Params[0].Immed-n.Params[1].Immed)
			return true
		}
	case opcode.Div:
		if n.Params[0].IsImmed() && n.Params[1].IsImmed() && n.Params[1].Immed != 0 {
			n.SetImmed(ops, n.Params[0].Immed/n.Params[1].Immed)
			return true
		}
	case opcode.Inv:
		if n.Params[0].IsImmed() && n.Params[0].Immed != 0 {
			n.SetImmed(ops, 1/n.Params[0].Immed)
			return true
		}
	case opcode.Rad:
		if n.Params[0].IsImmed() {
			n.SetImmed(ops, n.Params[0].Immed*ops.DegToRad())
			return true
		}
	case opcode.Deg:
		if n.Params[0].IsImmed() {
			n.SetImmed(ops, n.Params[0].Immed*ops.RadToDeg())
			return true
		}
	case opcode.Sqr:
		if n.Params[0].IsImmed() {
			v := n.Params[0].Immed
			n.SetImmed(ops, v*v)
			return true
		}
	case opcode.Log2by:
		if n.Params[0].IsImmed() {
			n.SetImmed(ops, ops.Log2(n.Params[0].Immed))
			return true
		}
	}
	return false
}
