package constfold

import (
	"github.com/WarpRules/fpopt/internal/hash"
	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/scalar"
	"github.com/WarpRules/fpopt/internal/tree"
)

type groupEntry[S scalar.Number] struct {
	base, acc *tree.Node[S]
}

// groupByBase buckets (base[i], acc[i]) pairs by base's structural identity
// (hash-bucketed, collision-checked via IsIdenticalTo), combining acc via
// combine on a match. Every base/acc passed in must already be a reference
// the caller owns; on a merge the redundant base is released. Returned
// entries are in first-seen order.
func groupByBase[S scalar.Number](bases, accs []*tree.Node[S], combine func(a, b *tree.Node[S]) *tree.Node[S]) []*groupEntry[S] {
	buckets := map[hash.Hash128][]*groupEntry[S]{}
	var order []*groupEntry[S]
	for i, base := range bases {
		acc := accs[i]
		bucket := buckets[base.Hash]
		merged := false
		for _, e := range bucket {
			if e.base.IsIdenticalTo(base) {
				e.acc = combine(e.acc, acc)
				base.Release()
				merged = true
				break
			}
		}
		if merged {
			continue
		}
		e := &groupEntry[S]{base: base, acc: acc}
		buckets[base.Hash] = append(bucket, e)
		order = append(order, e)
	}
	return order
}

// combineViaAdd sums two exponent/coefficient nodes, evaluating directly
// when both are immediate and otherwise synthesizing an Add node (§4.4.3,
// §4.4.4's "sum the exponents ... wrapping in Add").
func combineViaAdd[S scalar.Number](f *Folder[S], a, b *tree.Node[S]) *tree.Node[S] {
	if a.IsImmed() && b.IsImmed() {
		sum := a.Immed + b.Immed
		return tree.NewImmed(f.Ops, sum)
	}
	sumNode := tree.New[S](opcode.Add, a, b)
	f.Rehash(sumNode)
	return sumNode
}

// foldMul implements Mul folding (§4.4, §4.4.3): assimilate, fold immediate
// factors, then group remaining factors by base with accumulated exponent
// (stripping Pow/Sqrt/RSqrt/Cbrt/Inv into (base, exponent) form).
func (f *Folder[S]) foldMul(n *tree.Node[S]) bool {
	changed := assimilate(n)
	orig := n.Params

	var immedProduct S = 1
	haveImmed := false
	rest := orig[:0:0]
	for _, p := range orig {
		if p.IsImmed() {
			if p.Immed == 0 {
				for _, q := range orig {
					if q != p {
						q.Release()
					}
				}
				n.SetImmed(f.Ops, 0)
				return true
			}
			immedProduct *= p.Immed
			haveImmed = true
			p.Release()
			changed = true
			continue
		}
		rest = append(rest, p)
	}

	bases := make([]*tree.Node[S], len(rest))
	exps := make([]*tree.Node[S], len(rest))
	anySpecial := false
	for i, p := range rest {
		switch p.Opcode {
		case opcode.Pow:
			bases[i], exps[i] = p.Params[0], p.Params[1]
			bases[i].Retain()
			exps[i].Retain()
			anySpecial = true
		case opcode.Sqrt:
			bases[i] = p.Params[0]
			bases[i].Retain()
			exps[i] = tree.NewImmed(f.Ops, S(0.5))
			anySpecial = true
		case opcode.RSqrt:
			bases[i] = p.Params[0]
			bases[i].Retain()
			exps[i] = tree.NewImmed(f.Ops, S(-0.5))
			anySpecial = true
		case opcode.Cbrt:
			bases[i] = p.Params[0]
			bases[i].Retain()
			exps[i] = tree.NewImmed(f.Ops, S(1.0/3.0))
			anySpecial = true
		case opcode.Inv:
			bases[i] = p.Params[0]
			bases[i].Retain()
			exps[i] = tree.NewImmed(f.Ops, S(-1))
			anySpecial = true
		default:
			bases[i] = p
			exps[i] = tree.NewImmed(f.Ops, S(1))
		}
	}

	entries := groupByBase(bases, exps, func(a, b *tree.Node[S]) *tree.Node[S] { return combineViaAdd(f, a, b) })
	merged := len(entries) != len(rest)

	final := make([]*tree.Node[S], 0, len(entries)+1)
	for _, e := range entries {
		if e.acc.IsImmed() && e.acc.Immed == 1 {
			final = append(final, e.base)
			continue
		}
		powNode := tree.New[S](opcode.Pow, e.base, e.acc)
		f.Rehash(powNode)
		final = append(final, powNode)
	}
	if haveImmed && immedProduct != 1 {
		final = append(final, tree.NewImmed(f.Ops, immedProduct))
	}

	n.Params = final
	n.MarkIncompletelyHashed()

	switch len(n.Params) {
	case 0:
		n.SetImmed(f.Ops, 1)
		return true
	case 1:
		n.Become(n.Params[0])
		return true
	}

	return changed || merged || anySpecial
}

// foldAdd implements Add folding (§4.4, §4.4.4): assimilate, fold immediate
// terms, then group remaining terms by base with accumulated coefficient
// (stripping a binary `c*x` or `x*c` into (base, coefficient) form).
func (f *Folder[S]) foldAdd(n *tree.Node[S]) bool {
	changed := assimilate(n)
	orig := n.Params

	var immedSum S
	haveImmed := false
	rest := orig[:0:0]
	for _, p := range orig {
		if p.IsImmed() {
			immedSum += p.Immed
			haveImmed = true
			p.Release()
			changed = true
			continue
		}
		rest = append(rest, p)
	}

	bases := make([]*tree.Node[S], len(rest))
	coeffs := make([]*tree.Node[S], len(rest))
	anySpecial := false
	for i, p := range rest {
		if p.Opcode == opcode.Mul && len(p.Params) == 2 {
			a, b := p.Params[0], p.Params[1]
			if a.IsImmed() {
				bases[i], coeffs[i] = b, a
				bases[i].Retain()
				coeffs[i].Retain()
				anySpecial = true
				continue
			}
			if b.IsImmed() {
				bases[i], coeffs[i] = a, b
				bases[i].Retain()
				coeffs[i].Retain()
				anySpecial = true
				continue
			}
		}
		bases[i] = p
		coeffs[i] = tree.NewImmed(f.Ops, S(1))
	}

	entries := groupByBase(bases, coeffs, func(a, b *tree.Node[S]) *tree.Node[S] { return combineViaAdd(f, a, b) })
	merged := len(entries) != len(rest)

	final := make([]*tree.Node[S], 0, len(entries)+1)
	for _, e := range entries {
		switch {
		case e.acc.IsImmed() && e.acc.Immed == 0:
			continue
		case e.acc.IsImmed() && e.acc.Immed == 1:
			final = append(final, e.base)
		default:
			mulNode := tree.New[S](opcode.Mul, e.base, e.acc)
			f.Rehash(mulNode)
			final = append(final, mulNode)
		}
	}
	if haveImmed && immedSum != 0 {
		final = append(final, tree.NewImmed(f.Ops, immedSum))
	}

	n.Params = final
	n.MarkIncompletelyHashed()

	switch len(n.Params) {
	case 0:
		n.SetImmed(f.Ops, 0)
		return true
	case 1:
		n.Become(n.Params[0])
		return true
	}

	return changed || merged || anySpecial
}

func derefOr[S scalar.Number](p *S) (S, bool) {
	if p == nil {
		var z S
		return z, false
	}
	return *p, true
}

// foldMinMax implements Min/Max folding (§4.4.5): assimilate, drop adjacent
// structural duplicates (CanonicalSort already groups them), then drop any
// operand whose proven range can never be the extremum.
func (f *Folder[S]) foldMinMax(n *tree.Node[S], isMin bool) bool {
	changed := assimilate(n)
	orig := n.Params
	deduped := orig[:0:0]
	for i, p := range orig {
		if i > 0 && p.IsIdenticalTo(orig[i-1]) {
			p.Release()
			changed = true
			continue
		}
		deduped = append(deduped, p)
	}
	if len(deduped) != len(orig) {
		n.Params = deduped
		n.MarkIncompletelyHashed()
	}
	if len(n.Params) == 1 {
		n.Become(n.Params[0])
		return true
	}

	var bound S
	boundKnown := false
	for _, p := range n.Params {
		r := f.RA.CalculateResultBoundaries(p)
		var v S
		var ok bool
		if isMin {
			v, ok = derefOr(r.Max)
		} else {
			v, ok = derefOr(r.Min)
		}
		if !ok {
			continue
		}
		if !boundKnown || (isMin && v < bound) || (!isMin && v > bound) {
			bound, boundKnown = v, true
		}
	}
	if !boundKnown {
		return changed
	}

	kept := n.Params[:0:0]
	dropped := false
	for _, p := range n.Params {
		r := f.RA.CalculateResultBoundaries(p)
		if isMin && r.Min != nil && *r.Min > bound {
			p.Release()
			dropped = true
			continue
		}
		if !isMin && r.Max != nil && *r.Max < bound {
			p.Release()
			dropped = true
			continue
		}
		kept = append(kept, p)
	}
	if dropped {
		n.Params = kept
		n.MarkIncompletelyHashed()
		changed = true
	}
	if len(n.Params) == 1 {
		n.Become(n.Params[0])
		return true
	}
	return changed
}
