package lowering

import (
	"sort"

	"github.com/WarpRules/fpopt/internal/hash"
	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/scalar"
	"github.com/WarpRules/fpopt/internal/tree"
)

// Candidate is one subtree the lowering walk should try to compute once and
// reuse, per spec.md §4.8.1. Score ranks candidates for debug-dump
// visibility; the lowering walk itself reuses any value it finds still
// sitting on the stack regardless of rank, so Score does not gate behavior.
type Candidate[S scalar.Number] struct {
	Node   *tree.Node[S]
	Count  int
	Depth  int
	SinArg bool
	CosArg bool
	Score  int
}

// minUsefulDepth is the shallowest subtree worth caching under ordinary
// circumstances: a depth-1 leaf is already as cheap to re-push as to dup.
const minUsefulDepth = 2

// CandidateSet is the result of walking a tree once to find subtrees that
// recur often enough, and deep enough, to be worth synthesizing once.
type CandidateSet[S scalar.Number] struct {
	byHash map[hash.Hash128][]*Candidate[S]
	sorted []*Candidate[S]
}

// BuildCandidates walks root once, counting how many times each distinct
// subtree recurs (by structural identity, not just pointer identity) and
// whether it appears as the argument of both a Sin and a Cos call anywhere
// in the tree (spec.md §4.8.1's SinCos fusion trigger), then keeps only the
// subtrees eligible for reuse.
func BuildCandidates[S scalar.Number](root *tree.Node[S]) *CandidateSet[S] {
	all := map[hash.Hash128][]*Candidate[S]{}
	var order []*Candidate[S]

	var visit func(n, parent *tree.Node[S], isRoot bool)
	visit = func(n, parent *tree.Node[S], isRoot bool) {
		for _, c := range n.Params {
			visit(c, n, false)
		}
		if isRoot {
			return
		}
		bucket := all[n.Hash]
		var cand *Candidate[S]
		for _, c := range bucket {
			if c.Node.IsIdenticalTo(n) {
				cand = c
				break
			}
		}
		if cand == nil {
			cand = &Candidate[S]{Node: n, Depth: int(n.Depth)}
			all[n.Hash] = append(bucket, cand)
			order = append(order, cand)
		}
		cand.Count++
		if parent != nil {
			switch parent.Opcode {
			case opcode.Sin:
				cand.SinArg = true
			case opcode.Cos:
				cand.CosArg = true
			}
		}
	}
	visit(root, nil, true)

	cs := &CandidateSet[S]{byHash: map[hash.Hash128][]*Candidate[S]{}}
	for _, c := range order {
		threshold := minUsefulDepth
		if c.SinArg && c.CosArg {
			threshold = 1
		}
		if c.Count < 2 || c.Depth < threshold {
			continue
		}
		c.Score = c.Count * c.Depth
		cs.byHash[c.Node.Hash] = append(cs.byHash[c.Node.Hash], c)
		cs.sorted = append(cs.sorted, c)
	}
	sort.SliceStable(cs.sorted, func(i, j int) bool { return cs.sorted[i].Score > cs.sorted[j].Score })
	return cs
}

func (cs *CandidateSet[S]) lookup(n *tree.Node[S]) *Candidate[S] {
	for _, c := range cs.byHash[n.Hash] {
		if c.Node.IsIdenticalTo(n) {
			return c
		}
	}
	return nil
}

// IsCandidate reports whether n was identified as worth retaining a copy of
// once computed.
func (cs *CandidateSet[S]) IsCandidate(n *tree.Node[S]) bool {
	return cs.lookup(n) != nil
}

// IsSinCosArg reports whether a node hashing to h is known to be used as
// the argument of both a Sin and a Cos call somewhere in the tree.
func (cs *CandidateSet[S]) IsSinCosArg(h hash.Hash128) bool {
	for _, c := range cs.byHash[h] {
		if c.SinArg && c.CosArg {
			return true
		}
	}
	return false
}

// Sorted returns the eligible candidates, highest score first, for debug
// dump surfaces (spec.md §6).
func (cs *CandidateSet[S]) Sorted() []*Candidate[S] { return cs.sorted }
