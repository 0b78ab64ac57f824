package grammar

import (
	"github.com/WarpRules/fpopt/internal/tree"
)

// ApplyGrammar applies one grammar to n, recursing into children first and
// trying each opcode-indexed candidate rule against n itself (spec.md
// §4.6.4, fpoptimizer_optimize.cc's ApplyGrammar). It reports whether n (or
// anything under it) changed.
//
// Memoization uses tree.Node.OptimizedBy: once a node is confirmed stable
// under a grammar, it's tagged so the next ApplyGrammars pass skips
// straight past it, the way the original tags CodeTree::OptimizedUsing.
// Any mutation clears the tag (tree.Node.MarkIncompletelyHashed does this),
// so a node can never be skipped while stale.
func (m *Matcher[S]) ApplyGrammar(g *Grammar, n *tree.Node[S]) bool {
	if n.OptimizedBy == g {
		return false
	}

	changed := false
	for _, p := range n.Params {
		if m.ApplyGrammar(g, p) {
			changed = true
		}
	}
	if changed {
		m.Fold.Rehash(n)
		return true
	}

	for _, r := range g.candidates(n.Opcode, len(n.Params)) {
		info := newMatchInfo[S]()
		if !m.TestParams(&r.Match, n, info, true) {
			m.Debug.LogAttempt(g.Name, r.Name, n, false)
			continue
		}
		m.Debug.LogAttempt(g.Name, r.Name, n, true)
		var before *tree.Node[S]
		if m.Debug != nil {
			before = n.Clone()
		}
		m.SynthesizeRule(r, n, info)
		if before != nil {
			m.Debug.LogRuleApplied(g.Name, r.Name, before, n)
			before.Release()
		}
		return true
	}

	n.OptimizedBy = g
	return false
}

// ApplyGrammars runs grammars in order, each to a fixpoint, over n (spec.md
// §4.6.4's top-level loop: ApplyGrammars calling ApplyGrammar repeatedly
// per grammar until it stops reporting a change).
func (m *Matcher[S]) ApplyGrammars(grammars []*Grammar, n *tree.Node[S]) bool {
	changed := false
	for _, g := range grammars {
		for m.ApplyGrammar(g, n) {
			changed = true
		}
	}
	return changed
}
