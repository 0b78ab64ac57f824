package constfold

import "github.com/WarpRules/fpopt/internal/tree"

// foldComparison implements a reduced ConstantFolding_ComparisonOperations
// (§4.4.6): identical operands fold directly, and range analysis narrows
// the set of relations {Less,Equal,Greater} that are still possible between
// the two operands; if that proven set is a subset for which the target
// comparison's truth value is constant, fold to that constant. The table's
// subtler per-opcode rewrites (e.g. "always a≤b -> NEqual(a,b)", and the
// logical-value/sub-range reduction rows) are not implemented; they only
// ever produce a different, still-correct representation, never a
// different truth value, so skipping them costs optimization opportunities
// but never correctness.
func (f *Folder[S]) foldComparison(n *tree.Node[S]) bool {
	a, b := n.Params[0], n.Params[1]
	targetMask := maskOf(n.Opcode)

	if a.IsIdenticalTo(b) {
		n.SetImmed(f.Ops, boolImmed(f.Ops, targetMask&relEqual != 0))
		return true
	}

	ra := f.RA.CalculateResultBoundaries(a)
	rb := f.RA.CalculateResultBoundaries(b)

	alwaysGE := ra.Min != nil && rb.Max != nil && *ra.Min >= *rb.Max
	alwaysLE := ra.Max != nil && rb.Min != nil && *ra.Max <= *rb.Min
	alwaysStrictLT := ra.Max != nil && rb.Min != nil && *ra.Max < *rb.Min
	alwaysStrictGT := ra.Min != nil && rb.Max != nil && *ra.Min > *rb.Max

	var pmask relMask
	if !alwaysGE {
		pmask |= relLess
	}
	if !(alwaysStrictLT || alwaysStrictGT) {
		pmask |= relEqual
	}
	if !alwaysLE {
		pmask |= relGreater
	}

	if pmask == relAll || pmask == 0 {
		return false
	}
	if targetMask&pmask == pmask {
		n.SetImmed(f.Ops, 1)
		return true
	}
	if targetMask&pmask == 0 {
		n.SetImmed(f.Ops, 0)
		return true
	}
	return false
}
