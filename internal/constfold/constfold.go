// Package constfold implements F: the constant folder invoked from
// spec.md's Node.rehash(constant_fold=true) (§4.4). It is non-recursive —
// each call only touches the node's own opcode/Params, trusting children
// are already rehashed — and composes tree.Node.CanonicalSort,
// rangeanalysis.Analyzer and tree.Node.RecomputeHash into the single
// "rehash" operation spec.md describes as a Node method (see the package
// comment on internal/tree for why that composition lives here instead).
package constfold

import (
	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/rangeanalysis"
	"github.com/WarpRules/fpopt/internal/scalar"
	"github.com/WarpRules/fpopt/internal/tree"
)

// Folder bundles the per-scalar-type collaborators constant folding needs:
// Ops to evaluate immediates, and a Range Analyzer to prove sign,
// integrality and always-true/false facts.
type Folder[S scalar.Number] struct {
	Ops scalar.Ops[S]
	RA  *rangeanalysis.Analyzer[S]
}

// New builds a Folder for scalar type S.
func New[S scalar.Number](ops scalar.Ops[S]) *Folder[S] {
	return &Folder[S]{Ops: ops, RA: rangeanalysis.New(ops)}
}

// Rehash performs spec.md's "rehash(constant_fold=true)": canonical-sort,
// fold the top node only (restarting whenever a rewrite changes the
// node), then recompute the hash. A fold pass that reports a change but
// leaves the node structurally identical (same opcode, operands identical
// after re-sorting) ends the loop. Callers must rehash bottom-up so that
// children are already canonical and hashed before their parent is folded.
func (f *Folder[S]) Rehash(n *tree.Node[S]) {
	for {
		n.CanonicalSort()
		if f.foldToPoint(n) {
			continue
		}
		before, beforeOp := append([]*tree.Node[S](nil), n.Params...), n.Opcode
		if !f.foldOnce(n) {
			break
		}
		n.CanonicalSort()
		same := n.Opcode == beforeOp && len(n.Params) == len(before)
		for i := 0; same && i < len(before); i++ {
			same = n.Params[i].IsIdenticalTo(before[i])
		}
		if same {
			break
		}
	}
	n.RecomputeHash()
}

// foldToPoint is the pre-pass: if the range analyzer can prove n's value is
// a single point, collapse it to that immediate directly.
func (f *Folder[S]) foldToPoint(n *tree.Node[S]) bool {
	if opcode.IsLeaf(n.Opcode) {
		return false
	}
	r := f.RA.CalculateResultBoundaries(n)
	if r.Min != nil && r.Max != nil && *r.Min == *r.Max {
		n.SetImmed(f.Ops, *r.Min)
		return true
	}
	return false
}

// foldOnce dispatches the per-opcode fold switch (§4.4). It returns true
// when it changed n in a way that warrants restarting the whole fold loop.
func (f *Folder[S]) foldOnce(n *tree.Node[S]) bool {
	switch n.Opcode {
	case opcode.And, opcode.AbsAnd:
		return f.foldAndOr(n, true)
	case opcode.Or, opcode.AbsOr:
		return f.foldAndOr(n, false)
	case opcode.Not, opcode.AbsNot:
		return f.foldNot(n)
	case opcode.NotNot, opcode.AbsNotNot:
		return f.foldNotNot(n)
	case opcode.If, opcode.AbsIf:
		return f.foldIf(n)

	case opcode.Mul:
		return f.foldMul(n)
	case opcode.Add:
		return f.foldAdd(n)

	case opcode.Min:
		return f.foldMinMax(n, true)
	case opcode.Max:
		return f.foldMinMax(n, false)

	case opcode.Equal, opcode.NEqual, opcode.Less, opcode.LessOrEq,
		opcode.Greater, opcode.GreaterOrEq:
		return f.foldComparison(n)

	case opcode.Abs:
		return f.foldAbs(n)
	case opcode.Log:
		return f.foldLog(n)
	case opcode.Pow:
		return f.foldPow(n)
	case opcode.Atan2:
		return f.foldAtan2(n)

	case opcode.Sin, opcode.Cos, opcode.Tan, opcode.Cot, opcode.Sec, opcode.Csc,
		opcode.Asin, opcode.Acos, opcode.Atan,
		opcode.Sinh, opcode.Cosh, opcode.Tanh,
		opcode.Asinh, opcode.Acosh, opcode.Atanh,
		opcode.Exp, opcode.Exp2, opcode.Log2, opcode.Log10,
		opcode.Ceil, opcode.Floor, opcode.Trunc, opcode.Int,
		opcode.Cbrt, opcode.Sqrt, opcode.RSqrt, opcode.Hypot, opcode.Mod:
		return f.foldUnaryOrHypot(n)

	case opcode.Neg, opcode.Sub, opcode.Div, opcode.Inv, opcode.Rad, opcode.Deg,
		opcode.Sqr, opcode.Log2by:
		return f.foldSynthetic(n)

	default:
		return false
	}
}

// assimilate flattens children of the same associative opcode into n's own
// Params list in place (e.g. Add(Add(a,b),c) -> Add(a,b,c)). Returns true
// if it changed anything.
func assimilate[S scalar.Number](n *tree.Node[S]) bool {
	changed := false
	out := make([]*tree.Node[S], 0, len(n.Params))
	for _, p := range n.Params {
		if p.Opcode == n.Opcode {
			out = append(out, p.Params...)
			for _, gp := range p.Params {
				gp.Retain()
			}
			p.Release()
			changed = true
			continue
		}
		out = append(out, p)
	}
	if changed {
		n.Params = out
		n.MarkIncompletelyHashed()
	}
	return changed
}
