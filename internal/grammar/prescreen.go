package grammar

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/scalar"
	"github.com/WarpRules/fpopt/internal/tree"
)

// needs counts what a SubFunction pattern requires, before any backtracking
// match attempt: this many subtrees of a given opcode, this many plain
// immediates, this many other leaves/holders (spec.md §4.6.5). It mirrors
// the original's Needs/CreateNeedList_uncached.
type needs struct {
	subtrees     int
	subtreesByOp map[opcode.Opcode]int
	immeds       int
	others       int
	minimum      int
}

func buildNeeds(pat *ParamSpec) needs {
	n := needs{subtreesByOp: make(map[opcode.Opcode]int)}
	for _, p := range pat.Params {
		n.minimum++
		switch p.Tag {
		case SubFunctionTag:
			n.subtrees++
			n.subtreesByOp[p.Opcode]++
		case GroupFunctionTag:
			n.immeds++
		case NumConstantTag, ParamHolderTag:
			n.others++
		}
	}
	return n
}

// needCache memoizes buildNeeds per pattern address, the way the original
// caches CreateNeedList_uncached results in a map keyed by
// ParamSpec_SubFunctionData pointer. It is process-wide (spec.md §5: "the
// need-list cache in the Grammar Engine ... may be lazily filled") and so
// must tolerate concurrent Optimize calls from multiple goroutines even
// though each individual call is single-threaded: needGroup collapses
// concurrent first-fills for the same pattern into one buildNeeds call, and
// needCache itself is a sync.Map rather than a plain map to make the
// resulting load/store safe.
var (
	needCache sync.Map // *ParamSpec -> needs
	needGroup singleflight.Group
)

func cachedNeeds(pat *ParamSpec) needs {
	if v, ok := needCache.Load(pat); ok {
		return v.(needs).clone()
	}
	v, _, _ := needGroup.Do(fmt.Sprintf("%p", pat), func() (any, error) {
		if v, ok := needCache.Load(pat); ok {
			return v, nil
		}
		n := buildNeeds(pat)
		needCache.Store(pat, n)
		return n, nil
	})
	return v.(needs).clone()
}

// clone returns a copy of n whose subtreesByOp map is independent of the
// cached original, since plausible mutates its local needs counters in
// place while walking a node's children.
func (n needs) clone() needs {
	cp := n
	cp.subtreesByOp = make(map[opcode.Opcode]int, len(n.subtreesByOp))
	for op, count := range n.subtreesByOp {
		cp.subtreesByOp[op] = count
	}
	return cp
}

// plausible is the cheap shape check run before the real (possibly
// backtracking) match, rejecting trees that could never satisfy pat
// regardless of operand order.
func plausible[S scalar.Number](pat *ParamSpec, n *tree.Node[S]) bool {
	need := cachedNeeds(pat)
	if len(n.Params) < need.minimum {
		return false
	}
	for _, child := range n.Params {
		switch {
		case child.IsImmed():
			if need.immeds > 0 {
				need.immeds--
			} else {
				need.others--
			}
		case child.IsVar(), child.Opcode == opcode.FCall, child.Opcode == opcode.PCall:
			need.others--
		default:
			if need.subtrees > 0 && need.subtreesByOp[child.Opcode] > 0 {
				need.subtrees--
				need.subtreesByOp[child.Opcode]--
			} else {
				need.others--
			}
		}
	}
	if need.immeds > 0 || need.subtrees > 0 || need.others > 0 {
		return false
	}
	if pat.MatchType != AnyParams && (need.subtrees < 0 || need.others < 0) {
		return false
	}
	return true
}
