package grammar

import (
	"github.com/WarpRules/fpopt/internal/constfold"
	"github.com/WarpRules/fpopt/internal/debugdump"
	"github.com/WarpRules/fpopt/internal/rangeanalysis"
	"github.com/WarpRules/fpopt/internal/scalar"
	"github.com/WarpRules/fpopt/internal/tree"
)

// Matcher bundles the per-scalar-type collaborators matching and synthesis
// need: Ops to build/compare immediates, a Range Analyzer to test
// constraints, and a Folder to rehash synthesized trees (which also runs
// constant folding, exactly as the original's CodeTree::Rehash does). Debug
// is nil by default; when set, ApplyGrammar reports every rule it tries and
// every rule it applies (spec.md §6's debug surface).
type Matcher[S scalar.Number] struct {
	Ops   scalar.Ops[S]
	RA    *rangeanalysis.Analyzer[S]
	Fold  *constfold.Folder[S]
	Debug *debugdump.Session
}

// NewMatcher builds a Matcher for scalar type S.
func NewMatcher[S scalar.Number](ops scalar.Ops[S]) *Matcher[S] {
	return &Matcher[S]{Ops: ops, RA: rangeanalysis.New(ops), Fold: constfold.New(ops)}
}

// MatchInfo is the binding environment accumulated while testing one rule
// against one candidate tree (spec.md §4.6.2): which tree node each
// ParamHolder id is bound to, which tree nodes a RestHolder id captured,
// and (top level only) which of the candidate's own Params were consumed —
// needed by SynthesizeRule's ReplaceParams case to know what to delete.
type MatchInfo[S scalar.Number] struct {
	holders    map[int]*tree.Node[S]
	rests      map[int][]*tree.Node[S]
	topMatched map[int]bool
}

func newMatchInfo[S scalar.Number]() *MatchInfo[S] {
	return &MatchInfo[S]{
		holders:    make(map[int]*tree.Node[S]),
		rests:      make(map[int][]*tree.Node[S]),
		topMatched: make(map[int]bool),
	}
}

// clone deep-copies the binding maps so a failed backtracking attempt
// cannot leak partial bindings into a sibling attempt, mirroring the
// original's explicit `(*position)[a].info = info` save/restore around
// each trial.
func (i *MatchInfo[S]) clone() *MatchInfo[S] {
	c := newMatchInfo[S]()
	for k, v := range i.holders {
		c.holders[k] = v
	}
	for k, v := range i.rests {
		c.rests[k] = append([]*tree.Node[S](nil), v...)
	}
	for k, v := range i.topMatched {
		c.topMatched[k] = v
	}
	return c
}

// MatchedIndexes returns the top-level tree operand indexes this match
// consumed, ascending.
func (i *MatchInfo[S]) MatchedIndexes() []int {
	out := make([]int, 0, len(i.topMatched))
	for k := range i.topMatched {
		out = append(out, k)
	}
	for a := 1; a < len(out); a++ {
		for b := a; b > 0 && out[b-1] > out[b]; b-- {
			out[b-1], out[b] = out[b], out[b-1]
		}
	}
	return out
}

func (m *Matcher[S]) saveOrTest(id int, n *tree.Node[S], info *MatchInfo[S]) bool {
	if existing, ok := info.holders[id]; ok {
		return existing.IsIdenticalTo(n)
	}
	info.holders[id] = n
	return true
}

// TestParam tests one pattern fragment against one candidate node
// (fpoptimizer_optimize_match.cc's TestParam).
func (m *Matcher[S]) TestParam(spec ParamSpec, n *tree.Node[S], info *MatchInfo[S]) bool {
	switch spec.Tag {
	case NumConstantTag:
		return n.IsImmed() && m.Ops.FPEqual(n.Immed, S(spec.Value))

	case ParamHolderTag:
		if !m.testConstraints(spec.Constraints, n) {
			return false
		}
		return m.saveOrTest(spec.HolderID, n, info)

	case GroupFunctionTag:
		if !m.testConstraints(spec.Constraints, n) {
			return false
		}
		synthesized := m.calculateGroupFunction(spec, info)
		return synthesized != nil && synthesized.IsIdenticalTo(n)

	case SubFunctionTag:
		if !m.testConstraints(spec.Constraints, n) {
			return false
		}
		if n.Opcode != spec.Opcode {
			return false
		}
		return m.TestParams(&spec, n, info, false)
	}
	return false
}

// TestParams tests a SubFunction pattern's operand list against a
// candidate tree's Params (fpoptimizer_optimize_match.cc's TestParams).
func (m *Matcher[S]) TestParams(spec *ParamSpec, n *tree.Node[S], info *MatchInfo[S], topLevel bool) bool {
	if spec.MatchType != AnyParams && spec.ParamCount() != len(n.Params) {
		return false
	}
	if !plausible[S](spec, n) {
		return false
	}

	switch spec.MatchType {
	case PositionalParams:
		return m.testPositional(spec.Params, n.Params, info, topLevel)
	case SelectedParams, AnyParams:
		return m.testAnyWhere(spec, n, info, topLevel)
	}
	return false
}

// testPositional matches each pattern param against the tree operand at
// the same index, in order. Unlike the original, a position that matches
// does not expose alternative bindings back up the call (see DESIGN.md):
// this only affects rules whose nested SubFunction patterns are themselves
// ambiguous, which the representative rule table here does not exercise.
func (m *Matcher[S]) testPositional(pats []ParamSpec, nodes []*tree.Node[S], info *MatchInfo[S], topLevel bool) bool {
	for i, p := range pats {
		if !m.TestParam(p, nodes[i], info) {
			return false
		}
	}
	if topLevel {
		for i := range pats {
			info.topMatched[i] = true
		}
	}
	return true
}

// testAnyWhere matches spec's params against n's Params in any order
// (Selected requires using exactly them; Any allows leftovers to be
// captured by RestHolder), with full backtracking across the assignment
// of pattern params to tree operand slots — the one place real
// combinatorial search matters, since commutative operators are the
// common case that needs it.
func (m *Matcher[S]) testAnyWhere(spec *ParamSpec, n *tree.Node[S], info *MatchInfo[S], topLevel bool) bool {
	used := make([]bool, len(n.Params))
	result, ok := m.assignAnyWhere(spec.Params, 0, n.Params, used, info, topLevel)
	if !ok {
		return false
	}
	*info = *result

	if spec.RestHolder != 0 {
		var rest []*tree.Node[S]
		for i, u := range used {
			if u {
				continue
			}
			rest = append(rest, n.Params[i])
			used[i] = true
			if topLevel {
				info.topMatched[i] = true
			}
		}
		info.rests[spec.RestHolder] = rest
	}
	return true
}

// assignAnyWhere recursively assigns pats[idx:] to unused nodes, trying
// every remaining node at each position and backtracking on failure
// (TestParam_AnyWhere plus the enclosing AnyParams loop, collapsed into
// one recursive search instead of the original's resumable
// MatchPositionSpec state machine).
func (m *Matcher[S]) assignAnyWhere(pats []ParamSpec, idx int, nodes []*tree.Node[S], used []bool, info *MatchInfo[S], topLevel bool) (*MatchInfo[S], bool) {
	if idx == len(pats) {
		return info, true
	}
	for i, nd := range nodes {
		if used[i] {
			continue
		}
		trial := info.clone()
		used[i] = true
		if m.TestParam(pats[idx], nd, trial) {
			if result, ok := m.assignAnyWhere(pats, idx+1, nodes, used, trial, topLevel); ok {
				if topLevel {
					result.topMatched[i] = true
				}
				return result, true
			}
		}
		used[i] = false
	}
	return nil, false
}
