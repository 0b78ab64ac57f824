package constfold

import (
	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/scalar"
	"github.com/WarpRules/fpopt/internal/tree"
)

// provenLogicalValue reports whether n's value (known to range over only
// {0,1}, i.e. n.IsLogicalValue()) is provably fixed. Any range endpoint
// strictly between 0 and 1 is impossible for a logical value, so a proven
// lower bound above 0 means "always 1" and a proven upper bound below 1
// means "always 0", without needing an exact point range.
func provenLogicalValue[S scalar.Number](f *Folder[S], n *tree.Node[S]) (isOne, known bool) {
	if n.IsImmed() {
		return n.Immed != 0, true
	}
	if !n.IsLogicalValue() {
		return false, false
	}
	r := f.RA.CalculateResultBoundaries(n)
	var zero, one S
	if r.Min != nil && *r.Min > zero {
		return true, true
	}
	if r.Max != nil && *r.Max < one {
		return false, true
	}
	return false, false
}

func boolImmed[S scalar.Number](ops scalar.Ops[S], v bool) S {
	if v {
		return S(1)
	}
	return S(0)
}

// foldAndOr implements And/AbsAnd (isAnd=true) and Or/AbsOr (isAnd=false),
// §4.4: assimilate like children, drop/short-circuit by proven logical
// value, collapse a 0- or 1-child residue, else hand off to the logic
// grouping pass.
func (f *Folder[S]) foldAndOr(n *tree.Node[S], isAnd bool) bool {
	changed := assimilate(n)

	orig := n.Params
	kept := orig[:0:0]
	for _, p := range orig {
		isOne, known := provenLogicalValue(f, p)
		if known {
			if isOne == isAnd {
				// And: drop a proven-1 child (identity element).
				// Or: drop a proven-0 child (identity element).
				changed = true
				p.Release()
				continue
			}
			// And short-circuits on a proven-0 child; Or on a proven-1 child.
			for _, q := range orig {
				if q != p {
					q.Release()
				}
			}
			n.SetImmed(f.Ops, boolImmed(f.Ops, !isAnd))
			return true
		}
		kept = append(kept, p)
	}
	if len(kept) != len(orig) {
		n.Params = kept
		n.MarkIncompletelyHashed()
		changed = true
	}

	switch len(n.Params) {
	case 0:
		n.SetImmed(f.Ops, boolImmed(f.Ops, isAnd))
		return true
	case 1:
		only := n.Params[0]
		only.Retain()
		n.DelParams()
		if n.Opcode == opcode.And || n.Opcode == opcode.Or {
			n.SetOpcode(opcode.NotNot)
		} else {
			n.SetOpcode(opcode.AbsNotNot)
		}
		n.AddParamMove(only)
		return true
	}

	if foldLogicGrouping(f, n, isAnd) {
		changed = true
	}
	return changed
}

// foldNot implements Not/AbsNot: swap to a direct antonym opcode when one
// exists, fold by proven logical value, or push through If by negating
// both branches.
func (f *Folder[S]) foldNot(n *tree.Node[S]) bool {
	child := n.Params[0]
	if antonym, ok := opcode.AntonymComparison(child.Opcode); ok && len(child.Params) <= 2 {
		n.SetOpcode(antonym)
		params := append([]*tree.Node[S](nil), child.Params...)
		for _, p := range params {
			p.Retain()
		}
		n.SetParamsMove(params)
		return true
	}
	if isOne, known := provenLogicalValue(f, child); known {
		n.SetImmed(f.Ops, boolImmed(f.Ops, !isOne))
		return true
	}
	if child.Opcode == opcode.If || child.Opcode == opcode.AbsIf {
		return f.pushNotThroughIf(n, child, n.Opcode == opcode.AbsNot)
	}
	return false
}

// foldNotNot implements NotNot/AbsNotNot: collapse a child that is already
// a logical value, fold by proven value, else push through If.
func (f *Folder[S]) foldNotNot(n *tree.Node[S]) bool {
	child := n.Params[0]
	if child.IsLogicalValue() {
		n.Become(child)
		return true
	}
	if isOne, known := provenLogicalValue(f, child); known {
		n.SetImmed(f.Ops, boolImmed(f.Ops, isOne))
		return true
	}
	if child.Opcode == opcode.If || child.Opcode == opcode.AbsIf {
		return f.pushNotThroughIf(n, child, false)
	}
	return false
}

func (f *Folder[S]) pushNotThroughIf(n, ifNode *tree.Node[S], abs bool) bool {
	cond, then, els := ifNode.Params[0], ifNode.Params[1], ifNode.Params[2]
	negThen := wrapNot(f, then, abs)
	negEls := wrapNot(f, els, abs)
	cond.Retain()
	ifOp := opcode.If
	if abs {
		ifOp = opcode.AbsIf
	}
	n.SetOpcode(ifOp)
	n.SetParamsMove([]*tree.Node[S]{cond, negThen, negEls})
	return true
}

func wrapNot[S scalar.Number](f *Folder[S], x *tree.Node[S], abs bool) *tree.Node[S] {
	op := opcode.Not
	if abs {
		op = opcode.AbsNot
	}
	x.Retain()
	w := tree.New[S](op, x)
	f.Rehash(w)
	return w
}

// foldIf implements the If/AbsIf cascade (§4.4.2). This is a reduced but
// functioning subset: condition-is-Not unwrap, always-true/false collapse
// by range, identical-branches collapse, and common-unary-function
// extraction. The full four-way common-If factoring and additive/
// multiplicative term-pushing (cascade steps 3 and 8) are deliberately not
// implemented; see the design notes for why.
func (f *Folder[S]) foldIf(n *tree.Node[S]) bool {
	cond, then, els := n.Params[0], n.Params[1], n.Params[2]

	if cond.Opcode == opcode.Not || cond.Opcode == opcode.AbsNot {
		inner := cond.Params[0]
		inner.Retain()
		then.Retain()
		els.Retain()
		n.SetParamsMove([]*tree.Node[S]{inner, els, then})
		return true
	}

	if isOne, known := provenLogicalValue(f, cond); known {
		var keep *tree.Node[S]
		if isOne {
			keep = then
		} else {
			keep = els
		}
		n.Become(keep)
		return true
	}

	if then.IsIdenticalTo(els) {
		n.Become(then)
		return true
	}

	if len(then.Params) == 1 && len(els.Params) == 1 && then.Opcode == els.Opcode &&
		!opcode.IsLeaf(then.Opcode) {
		a, b := then.Params[0], els.Params[0]
		a.Retain()
		b.Retain()
		cond.Retain()
		inner := tree.New[S](n.Opcode, cond, a, b)
		f.Rehash(inner)
		fn := then.Opcode
		n.SetOpcode(fn)
		n.SetParamsMove([]*tree.Node[S]{inner})
		return true
	}

	return false
}
