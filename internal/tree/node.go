// Package tree implements D: the reference-counted, copy-on-write
// expression DAG (spec.md §3.3–§3.4, §4.2).
//
// Rehash's constant-folding step is deliberately NOT part of this package:
// spec.md's Node.rehash calls into the Constant Folder, which in turn calls
// the Range Analyzer, which needs to read Node fields — wiring that call
// chain inside Node would make tree depend on constfold and rangeanalysis
// depend back on tree, a cycle Go forbids. Node here only owns structure
// (params, sort, hash, refcount); constfold's Folder.Rehash composes
// Node.CanonicalSort, the fold switch, and Node.RecomputeHash into the
// single operation spec.md calls "rehash".
package tree

import (
	"sort"

	"github.com/WarpRules/fpopt/internal/hash"
	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/scalar"
)

// Node is one DAG node. Depth == 0 means "hash incomplete": some descendant
// was mutated and this node (or an ancestor) hasn't recomputed its hash yet.
type Node[S scalar.Number] struct {
	Opcode    opcode.Opcode
	Immed     S
	VarOrFunc uint32
	Params    []*Node[S]

	Hash  hash.Hash128
	Depth uint32

	// OptimizedBy memoizes which grammar last declared this node a fixpoint
	// (spec.md §4.6.4). Held as `any` holding a *grammar.Grammar to avoid an
	// import cycle between tree and grammar.
	OptimizedBy any

	refcount int
}

// New creates a node with refcount 1 (owned by the caller) and an
// incomplete hash; the caller must Rehash (via constfold's Folder.Rehash) before the
// node is used in comparisons.
func New[S scalar.Number](op opcode.Opcode, params ...*Node[S]) *Node[S] {
	n := &Node[S]{Opcode: op, Params: params, refcount: 1}
	for _, p := range params {
		p.Retain()
	}
	return n
}

// NewImmed creates an Immed leaf, already hashed (leaves never need a fold pass).
func NewImmed[S scalar.Number](ops scalar.Ops[S], v S) *Node[S] {
	n := &Node[S]{Opcode: opcode.Immed, Immed: v, refcount: 1, Depth: 1}
	n.Hash = hash.Leaf(opcode.Immed, ops.Bytes(v), 0)
	return n
}

// NewVar creates a VarBegin+k leaf.
func NewVar[S scalar.Number](k uint32) *Node[S] {
	n := &Node[S]{Opcode: bytecodeEncodeVar(k), VarOrFunc: k, refcount: 1, Depth: 1}
	n.Hash = hash.Leaf(n.Opcode, nil, k)
	return n
}

func bytecodeEncodeVar(k uint32) opcode.Opcode { return opcode.VarBegin + opcode.Opcode(k) }

// Retain increments the reference count; call when installing an existing
// handle as a child of another node (the node already exists and is being
// shared, not moved).
func (n *Node[S]) Retain() { n.refcount++ }

// Release decrements the reference count; call when a child is removed from
// its parent's Params. Refcount is a COW heuristic, not a destructor
// trigger — Go's GC reclaims the node once nothing references it; an
// unbalanced (too-high) count only costs an extra clone later, never
// correctness (invariant 7).
func (n *Node[S]) Release() {
	if n.refcount > 0 {
		n.refcount--
	}
}

// RefCount reports the current reference count.
func (n *Node[S]) RefCount() int { return n.refcount }

// CopyOnWrite clones n if it is shared (refcount > 1), returning a uniquely
// owned node; the clone starts with refcount 1 and re-Retains every child.
func (n *Node[S]) CopyOnWrite() *Node[S] {
	if n.refcount <= 1 {
		return n
	}
	n.Release()
	clone := &Node[S]{
		Opcode:    n.Opcode,
		Immed:     n.Immed,
		VarOrFunc: n.VarOrFunc,
		Params:    append([]*Node[S](nil), n.Params...),
		Hash:      n.Hash,
		Depth:     n.Depth,
		refcount:  1,
	}
	for _, p := range clone.Params {
		p.Retain()
	}
	return clone
}

// GetUniqueRef is an alias for CopyOnWrite with spec.md's name.
func (n *Node[S]) GetUniqueRef() *Node[S] { return n.CopyOnWrite() }

// AddParam appends p as a new child, retaining it (the caller keeps its own
// reference to p).
func (n *Node[S]) AddParam(p *Node[S]) {
	p.Retain()
	n.Params = append(n.Params, p)
	n.MarkIncompletelyHashed()
}

// AddParamMove appends p as a new child, transferring ownership (the
// caller's reference is consumed, so no Retain).
func (n *Node[S]) AddParamMove(p *Node[S]) {
	n.Params = append(n.Params, p)
	n.MarkIncompletelyHashed()
}

// SetParam replaces params[i], retaining p and releasing the old child.
func (n *Node[S]) SetParam(i int, p *Node[S]) {
	p.Retain()
	n.Params[i].Release()
	n.Params[i] = p
	n.MarkIncompletelyHashed()
}

// SetParamMove replaces params[i] with p, transferring ownership of p.
func (n *Node[S]) SetParamMove(i int, p *Node[S]) {
	n.Params[i].Release()
	n.Params[i] = p
	n.MarkIncompletelyHashed()
}

// DelParam removes params[i], releasing it.
func (n *Node[S]) DelParam(i int) {
	n.Params[i].Release()
	n.Params = append(n.Params[:i], n.Params[i+1:]...)
	n.MarkIncompletelyHashed()
}

// DelParams releases and clears every child.
func (n *Node[S]) DelParams() {
	for _, p := range n.Params {
		p.Release()
	}
	n.Params = nil
	n.MarkIncompletelyHashed()
}

// SetParams replaces the entire child list, retaining each new child and
// releasing each old one.
func (n *Node[S]) SetParams(v []*Node[S]) {
	for _, p := range v {
		p.Retain()
	}
	for _, p := range n.Params {
		p.Release()
	}
	n.Params = v
	n.MarkIncompletelyHashed()
}

// SetParamsMove replaces the entire child list without retaining the new
// slice (ownership transferred in).
func (n *Node[S]) SetParamsMove(v []*Node[S]) {
	for _, p := range n.Params {
		p.Release()
	}
	n.Params = v
	n.MarkIncompletelyHashed()
}

// SetOpcode changes the opcode in place.
func (n *Node[S]) SetOpcode(op opcode.Opcode) {
	n.Opcode = op
	n.MarkIncompletelyHashed()
}

// SetImmed converts n into an Immed leaf with value v, releasing any
// existing children.
func (n *Node[S]) SetImmed(ops scalar.Ops[S], v S) {
	n.DelParams()
	n.Opcode = opcode.Immed
	n.Immed = v
	n.VarOrFunc = 0
	n.Hash = hash.Leaf(opcode.Immed, ops.Bytes(v), 0)
	n.Depth = 1
}

// SetVar converts n into a VarBegin+k leaf, releasing any existing children.
func (n *Node[S]) SetVar(k uint32) {
	n.DelParams()
	n.Opcode = bytecodeEncodeVar(k)
	n.VarOrFunc = k
	n.Hash = hash.Leaf(n.Opcode, nil, k)
	n.Depth = 1
}

// SetFuncOpcode sets n to an FCall/PCall of function fn.
func (n *Node[S]) SetFuncOpcode(op opcode.Opcode, fn uint32) {
	n.Opcode = op
	n.VarOrFunc = fn
	n.MarkIncompletelyHashed()
}

// Become replaces n's identity with other's, copy-on-write aware: n keeps
// its own address (and hence its refcount among its parents) but adopts
// other's shape.
func (n *Node[S]) Become(other *Node[S]) {
	if n == other {
		return
	}
	for _, p := range n.Params {
		p.Release()
	}
	n.Opcode = other.Opcode
	n.Immed = other.Immed
	n.VarOrFunc = other.VarOrFunc
	n.Params = append([]*Node[S](nil), other.Params...)
	for _, p := range n.Params {
		p.Retain()
	}
	n.Hash = other.Hash
	n.Depth = other.Depth
	n.OptimizedBy = other.OptimizedBy
}

// MarkIncompletelyHashed sets Depth to 0, the sentinel meaning some
// descendant changed and this node's hash/depth needs recomputing.
// It also clears the optimized_by memo: a grammar's fixpoint claim is only
// valid for the exact shape it was computed against.
func (n *Node[S]) MarkIncompletelyHashed() {
	n.Depth = 0
	n.OptimizedBy = nil
}

// IsIncompletelyHashed reports the sentinel depth.
func (n *Node[S]) IsIncompletelyHashed() bool { return n.Depth == 0 }

// RecomputeHash recomputes Hash and Depth from the (already canonical, sorted)
// Params without recursing into grandchildren, trusting their hash/depth are
// current. Callers must ensure children are rehashed bottom-up first.
func (n *Node[S]) RecomputeHash() {
	if opcode.IsLeaf(n.Opcode) {
		return
	}
	maxDepth := uint32(0)
	hashes := make([]hash.Hash128, len(n.Params))
	for i, p := range n.Params {
		if p.Depth > maxDepth {
			maxDepth = p.Depth
		}
		hashes[i] = p.Hash
	}
	n.Hash = hash.Combine(n.Opcode, n.VarOrFunc, hashes)
	n.Depth = maxDepth + 1
}

// FixIncompleteHashes walks the subtree rooted at n bottom-up, recomputing
// the hash/depth of every node whose Depth is the incomplete sentinel. It is
// bounded by the number of incompletely-hashed nodes reachable from n
// (spec.md §5).
func (n *Node[S]) FixIncompleteHashes() {
	if !n.IsIncompletelyHashed() {
		return
	}
	for _, p := range n.Params {
		p.FixIncompleteHashes()
	}
	n.CanonicalSort()
	n.RecomputeHash()
}

// CanonicalSort enforces invariants 1 and 3: commutative ops sort their
// Params by (-depth, hash); directional comparisons flip to their mirror
// opcode when the sort would otherwise need to swap a two-operand pattern.
func (n *Node[S]) CanonicalSort() {
	switch {
	case opcode.Commutative(n.Opcode):
		sort.SliceStable(n.Params, func(i, j int) bool {
			a, b := n.Params[i], n.Params[j]
			if a.Depth != b.Depth {
				return a.Depth > b.Depth
			}
			return a.Hash.Less(b.Hash)
		})
	case opcode.IsComparison(n.Opcode) && len(n.Params) == 2:
		a, b := n.Params[0], n.Params[1]
		swap := false
		if a.Depth != b.Depth {
			swap = a.Depth < b.Depth
		} else {
			swap = b.Hash.Less(a.Hash)
		}
		if swap {
			n.Params[0], n.Params[1] = b, a
			n.Opcode = opcode.MirrorComparison(n.Opcode)
		}
	}
}

// IsIdenticalTo is the structural-compare authority: a fast hash reject,
// then a full recursive structural comparison (invariant 6).
func (n *Node[S]) IsIdenticalTo(o *Node[S]) bool {
	if n == o {
		return true
	}
	if !n.Hash.Equal(o.Hash) {
		return false
	}
	return n.structuralEqual(o)
}

func (n *Node[S]) structuralEqual(o *Node[S]) bool {
	if n.Opcode != o.Opcode {
		return false
	}
	if opcode.IsLeaf(n.Opcode) {
		if n.Opcode == opcode.Immed {
			return n.Immed == o.Immed
		}
		return n.VarOrFunc == o.VarOrFunc
	}
	if (n.Opcode == opcode.FCall || n.Opcode == opcode.PCall) && n.VarOrFunc != o.VarOrFunc {
		return false
	}
	if len(n.Params) != len(o.Params) {
		return false
	}
	for i := range n.Params {
		if !n.Params[i].IsIdenticalTo(o.Params[i]) {
			return false
		}
	}
	return true
}

// IsImmed reports whether n is an Immed leaf.
func (n *Node[S]) IsImmed() bool { return n.Opcode == opcode.Immed }

// IsVar reports whether n is a VarBegin+k leaf.
func (n *Node[S]) IsVar() bool { return opcode.IsVar(n.Opcode) }

// IsLogicalValue reports whether n's opcode always produces exactly 0 or 1
// (comparisons and logic ops are total; this is a structural, not a range,
// test — range-based logical-value inference lives in rangeanalysis).
func (n *Node[S]) IsLogicalValue() bool {
	switch n.Opcode {
	case opcode.Equal, opcode.NEqual, opcode.Less, opcode.LessOrEq,
		opcode.Greater, opcode.GreaterOrEq,
		opcode.And, opcode.Or, opcode.Not, opcode.NotNot,
		opcode.AbsAnd, opcode.AbsOr, opcode.AbsNot, opcode.AbsNotNot:
		return true
	default:
		return false
	}
}

// Clone returns a deep structural copy of n with its own refcount-1 tree,
// sharing no Node pointers with the original (used when a rewrite needs to
// mutate a subtree it does not otherwise own and CopyOnWrite's shallow
// clone is insufficient, e.g. synthesizing a replacement template).
func (n *Node[S]) Clone() *Node[S] {
	clone := &Node[S]{
		Opcode:      n.Opcode,
		Immed:       n.Immed,
		VarOrFunc:   n.VarOrFunc,
		Hash:        n.Hash,
		Depth:       n.Depth,
		OptimizedBy: n.OptimizedBy,
		refcount:    1,
	}
	if len(n.Params) > 0 {
		clone.Params = make([]*Node[S], len(n.Params))
		for i, p := range n.Params {
			clone.Params[i] = p.Clone()
		}
	}
	return clone
}
