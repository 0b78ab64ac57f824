package grammar

import (
	"sort"

	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/tree"
)

// SynthesizeParam builds a tree node from a replacement-side ParamSpec,
// binding ParamHolder/RestHolder references from info (fpoptimizer_optimize_
// synth.cc's SynthesizeParam). The returned node carries one reference the
// caller owns.
func (m *Matcher[S]) SynthesizeParam(spec ParamSpec, info *MatchInfo[S]) *tree.Node[S] {
	switch spec.Tag {
	case NumConstantTag:
		return tree.NewImmed(m.Ops, S(spec.Value))

	case ParamHolderTag:
		bound := info.holders[spec.HolderID]
		bound.Retain()
		return bound

	case SubFunctionTag, GroupFunctionTag:
		params := make([]*tree.Node[S], 0, len(spec.Params)+len(info.rests[spec.RestHolder]))
		for _, p := range spec.Params {
			params = append(params, m.SynthesizeParam(p, info))
		}
		if spec.RestHolder != 0 {
			for _, r := range info.rests[spec.RestHolder] {
				r.Retain()
				params = append(params, r)
			}
		}

		// An associative op synthesized down to a single operand collapses
		// to that operand directly, the way the original's SynthesizeParam
		// does for its SubFunction case.
		if len(params) == 1 && opcode.IsAssociative(spec.Opcode) {
			return params[0]
		}

		n := tree.New[S](spec.Opcode, params...)
		for _, p := range params {
			p.Release()
		}
		m.Fold.Rehash(n)
		return n
	}
	return nil
}

// calculateGroupFunction synthesizes the value a GroupFunction pattern
// describes so TestParam can compare it against a candidate node
// (fpoptimizer_optimize_match.cc's CalculateGroupFunction). GroupFunction
// is given the same synthesis shape as a real SubFunction so Fold.Rehash
// constant-folds it to an immediate whenever its inputs allow.
func (m *Matcher[S]) calculateGroupFunction(spec ParamSpec, info *MatchInfo[S]) *tree.Node[S] {
	return m.SynthesizeParam(spec, info)
}

// SynthesizeRule applies a matched rule's replacement to n in place
// (fpoptimizer_optimize_synth.cc's SynthesizeRule).
func (m *Matcher[S]) SynthesizeRule(r Rule, n *tree.Node[S], info *MatchInfo[S]) {
	switch r.Type {
	case ProduceNewTree:
		replacement := m.SynthesizeParam(r.Replacement[0], info)
		n.Become(replacement)
		replacement.Release()

	case ReplaceParams:
		idxs := info.MatchedIndexes()
		sort.Sort(sort.Reverse(sort.IntSlice(idxs)))
		for _, i := range idxs {
			n.DelParam(i)
		}
		for _, rp := range r.Replacement {
			n.AddParamMove(m.SynthesizeParam(rp, info))
		}
		m.Fold.Rehash(n)
	}
}
