package constfold

import (
	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/tree"
)

// foldAbs implements Abs folding (§4.4): collapse to the child when its
// range is provably non-negative, rewrite to Mul(child,-1) when provably
// non-positive, and otherwise factor any known-signed operands of a Mul
// child out of the Abs (operands of unknown sign stay wrapped).
func (f *Folder[S]) foldAbs(n *tree.Node[S]) bool {
	child := n.Params[0]
	if child.IsImmed() {
		v := child.Immed
		if v < 0 {
			v = -v
		}
		n.SetImmed(f.Ops, v)
		return true
	}

	r := f.RA.CalculateResultBoundaries(child)
	var zero S
	if r.Min != nil && *r.Min >= zero {
		n.Become(child)
		return true
	}
	if r.Max != nil && *r.Max <= zero {
		child.Retain()
		n.SetOpcode(opcode.Mul)
		n.SetParamsMove([]*tree.Node[S]{child, tree.NewImmed(f.Ops, S(-1))})
		return true
	}

	if child.Opcode == opcode.Mul {
		return f.factorAbsOverMul(n, child)
	}
	return false
}

func (f *Folder[S]) factorAbsOverMul(n, child *tree.Node[S]) bool {
	var zero S
	keep := make([]*tree.Node[S], 0, len(child.Params)+1)
	negCount := 0
	anyKnown := false
	for _, p := range child.Params {
		r := f.RA.CalculateResultBoundaries(p)
		switch {
		case r.Min != nil && *r.Min >= zero:
			p.Retain()
			keep = append(keep, p)
			anyKnown = true
		case r.Max != nil && *r.Max <= zero:
			p.Retain()
			keep = append(keep, p)
			negCount++
			anyKnown = true
		default:
			p.Retain()
			absP := tree.New[S](opcode.Abs, p)
			f.Rehash(absP)
			keep = append(keep, absP)
		}
	}
	if !anyKnown {
		return false
	}
	if negCount%2 == 1 {
		keep = append(keep, tree.NewImmed(f.Ops, S(-1)))
	}
	n.SetOpcode(opcode.Mul)
	n.SetParamsMove(keep)
	return true
}

// foldLog implements the two Log(Pow(...)) rewrites in §4.4: when the
// base is provably positive, pull the exponent out as a product; when the
// exponent is a known even integer, fold through Abs instead (valid
// regardless of the base's sign). When the Pow sits under an outer Abs,
// only the even-exponent rewrite is tried.
func (f *Folder[S]) foldLog(n *tree.Node[S]) bool {
	ops := f.Ops
	child := n.Params[0]
	if child.IsImmed() {
		n.SetImmed(ops, ops.Log(child.Immed))
		return true
	}

	inner := child
	throughAbs := inner.Opcode == opcode.Abs
	if throughAbs {
		inner = inner.Params[0]
	}
	if inner.Opcode != opcode.Pow {
		return false
	}
	base, exp := inner.Params[0], inner.Params[1]

	if !throughAbs {
		baseR := f.RA.CalculateResultBoundaries(base)
		var zero S
		if baseR.Min != nil && *baseR.Min > zero {
			base.Retain()
			exp.Retain()
			logBase := tree.New[S](opcode.Log, base)
			f.Rehash(logBase)
			n.SetOpcode(opcode.Mul)
			n.SetParamsMove([]*tree.Node[S]{exp, logBase})
			return true
		}
	}

	if exp.IsImmed() && ops.IsEvenInteger(exp.Immed) {
		base.Retain()
		exp.Retain()
		absBase := tree.New[S](opcode.Abs, base)
		f.Rehash(absBase)
		logAbs := tree.New[S](opcode.Log, absBase)
		f.Rehash(logAbs)
		n.SetOpcode(opcode.Mul)
		n.SetParamsMove([]*tree.Node[S]{exp, logAbs})
		return true
	}

	return false
}
