package tree

import (
	"testing"

	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/scalar"
)

func ops() scalar.Ops[float64] { return scalar.Float64Ops{} }

func TestNewRetainsEachParamOccurrence(t *testing.T) {
	x := NewVar[float64](0)
	n := New[float64](opcode.Add, x, x)
	if got := x.RefCount(); got != 3 {
		t.Fatalf("shared param counted twice: want refcount 3 (1 owned + 2 retained), got %d", got)
	}
	if len(n.Params) != 2 {
		t.Fatalf("want both occurrences kept as params, got %d", len(n.Params))
	}
}

func TestRetainReleaseRoundTrip(t *testing.T) {
	n := NewVar[float64](1)
	n.Retain()
	n.Retain()
	if n.RefCount() != 3 {
		t.Fatalf("want refcount 3 after two retains, got %d", n.RefCount())
	}
	n.Release()
	n.Release()
	if n.RefCount() != 1 {
		t.Fatalf("want refcount 1 after releasing back down, got %d", n.RefCount())
	}
}

func TestReleaseNeverGoesNegative(t *testing.T) {
	n := NewVar[float64](1)
	n.Release()
	n.Release()
	if n.RefCount() != 0 {
		t.Fatalf("want refcount floored at 0, got %d", n.RefCount())
	}
}

func TestCopyOnWriteReturnsSameNodeWhenUnshared(t *testing.T) {
	n := NewVar[float64](0)
	if got := n.CopyOnWrite(); got != n {
		t.Fatalf("an unshared node must not be cloned")
	}
}

func TestCopyOnWriteClonesWhenShared(t *testing.T) {
	x := NewVar[float64](0)
	n := New[float64](opcode.Neg, x)
	n.Retain() // simulate a second owner

	clone := n.CopyOnWrite()
	if clone == n {
		t.Fatalf("a shared node must be cloned, not mutated in place")
	}
	if clone.RefCount() != 1 {
		t.Fatalf("clone should start at refcount 1, got %d", clone.RefCount())
	}
	if n.RefCount() != 1 {
		t.Fatalf("CopyOnWrite should release n's extra ref, want 1 left, got %d", n.RefCount())
	}
	if x.RefCount() != 3 {
		t.Fatalf("clone re-retains its params, want x refcount 3 (caller's ref + n's + clone's), got %d", x.RefCount())
	}
}

func TestSetParamRetainsNewReleasesOld(t *testing.T) {
	x := NewVar[float64](0)
	y := NewVar[float64](1)
	n := New[float64](opcode.Neg, x)

	n.SetParam(0, y)
	if n.Params[0] != y {
		t.Fatalf("want y installed as the new param")
	}
	if x.RefCount() != 1 {
		t.Fatalf("want x released by n, leaving only the caller's ref, got refcount %d", x.RefCount())
	}
	if y.RefCount() != 2 {
		t.Fatalf("want y retained (caller's ref + the new param's), got %d", y.RefCount())
	}
}

func TestDelParamReleasesIt(t *testing.T) {
	x := NewVar[float64](0)
	n := New[float64](opcode.Neg, x)
	n.DelParam(0)
	if len(n.Params) != 0 {
		t.Fatalf("want the param removed")
	}
	if x.RefCount() != 1 {
		t.Fatalf("want x released by n, leaving only the caller's ref, got %d", x.RefCount())
	}
}

func TestMarkIncompletelyHashedClearsOptimizedBy(t *testing.T) {
	n := NewVar[float64](0)
	n.Depth = 3
	n.OptimizedBy = "some grammar"
	n.MarkIncompletelyHashed()
	if !n.IsIncompletelyHashed() {
		t.Fatalf("want Depth reset to the incomplete sentinel")
	}
	if n.OptimizedBy != nil {
		t.Fatalf("want the fixpoint memo cleared, got %v", n.OptimizedBy)
	}
}

func TestRecomputeHashSkipsLeaves(t *testing.T) {
	n := NewImmed[float64](ops(), 3)
	h := n.Hash
	n.RecomputeHash()
	if n.Hash != h {
		t.Fatalf("leaves must not be touched by RecomputeHash")
	}
}

func TestRecomputeHashTakesMaxChildDepthPlusOne(t *testing.T) {
	shallow := NewVar[float64](0) // depth 1
	deep := New[float64](opcode.Neg, NewVar[float64](1))
	deep.RecomputeHash() // depth 2

	n := New[float64](opcode.Add, shallow, deep)
	n.RecomputeHash()
	if n.Depth != 3 {
		t.Fatalf("want depth = max(1,2)+1 = 3, got %d", n.Depth)
	}
}

func TestFixIncompleteHashesIsIdempotentOnCompleteTree(t *testing.T) {
	n := New[float64](opcode.Add, NewVar[float64](0), NewVar[float64](1))
	n.FixIncompleteHashes()
	h, d := n.Hash, n.Depth
	n.FixIncompleteHashes() // already complete, must be a no-op
	if n.Hash != h || n.Depth != d {
		t.Fatalf("FixIncompleteHashes on an already-complete tree changed it")
	}
}

func TestFixIncompleteHashesPropagatesFromMutatedLeaf(t *testing.T) {
	leaf := NewVar[float64](0)
	n := New[float64](opcode.Add, leaf, NewVar[float64](1))
	n.FixIncompleteHashes()
	before := n.Hash

	leaf.SetVar(2) // mutates a descendant in place; leaf stays fully hashed
	n.MarkIncompletelyHashed()
	n.FixIncompleteHashes()
	if n.Hash == before {
		t.Fatalf("want the parent hash to change once a child's identity changes")
	}
}

func TestCanonicalSortOrdersCommutativeByDepthThenHash(t *testing.T) {
	shallow := NewVar[float64](0)
	deep := New[float64](opcode.Neg, NewVar[float64](1))
	deep.FixIncompleteHashes()

	n := New[float64](opcode.Add, shallow, deep)
	n.CanonicalSort()
	if n.Params[0] != deep {
		t.Fatalf("want the deeper child sorted first, got opcode %v first", n.Params[0].Opcode)
	}
}

func TestCanonicalSortMirrorsComparisonOnSwap(t *testing.T) {
	shallow := NewVar[float64](0)
	deep := New[float64](opcode.Neg, NewVar[float64](1))
	deep.FixIncompleteHashes()

	// Less(shallow, deep): canonical order wants the deeper operand first,
	// forcing a swap, which must flip Less into its mirror Greater.
	n := New[float64](opcode.Less, shallow, deep)
	n.CanonicalSort()
	if n.Opcode != opcode.Greater {
		t.Fatalf("want Less mirrored to Greater on swap, got %v", n.Opcode)
	}
	if n.Params[0] != deep || n.Params[1] != shallow {
		t.Fatalf("want operands swapped alongside the mirror")
	}
}

func TestIsIdenticalToStructuralNotPointer(t *testing.T) {
	a := New[float64](opcode.Add, NewVar[float64](0), NewVar[float64](1))
	b := New[float64](opcode.Add, NewVar[float64](0), NewVar[float64](1))
	a.FixIncompleteHashes()
	b.FixIncompleteHashes()
	if !a.IsIdenticalTo(b) {
		t.Fatalf("structurally identical trees built separately must compare equal")
	}
}

func TestIsIdenticalToRejectsDifferentImmed(t *testing.T) {
	a := NewImmed[float64](ops(), 1)
	b := NewImmed[float64](ops(), 2)
	if a.IsIdenticalTo(b) {
		t.Fatalf("different immediate values must not compare identical")
	}
}

func TestIsIdenticalToRejectsDifferentFunctionTarget(t *testing.T) {
	a := New[float64](opcode.FCall, NewVar[float64](0))
	a.VarOrFunc = 1
	a.FixIncompleteHashes()
	b := New[float64](opcode.FCall, NewVar[float64](0))
	b.VarOrFunc = 2
	b.FixIncompleteHashes()
	if a.IsIdenticalTo(b) {
		t.Fatalf("FCall nodes targeting different functions must not compare identical")
	}
}

func TestCloneIsDeepAndIndependentlyOwned(t *testing.T) {
	x := NewVar[float64](0)
	n := New[float64](opcode.Neg, x)
	clone := n.Clone()

	if clone == n || clone.Params[0] == n.Params[0] {
		t.Fatalf("Clone must not share any Node pointers with the original")
	}
	if clone.RefCount() != 1 || clone.Params[0].RefCount() != 1 {
		t.Fatalf("a clone's whole subtree starts at refcount 1, got root=%d child=%d",
			clone.RefCount(), clone.Params[0].RefCount())
	}
	if !clone.IsIdenticalTo(n) {
		t.Fatalf("a clone must remain structurally identical to its source")
	}
}

func TestBecomeAdoptsShapeKeepingIdentity(t *testing.T) {
	oldChild := NewVar[float64](0)
	n := New[float64](opcode.Neg, oldChild)

	newChild := NewVar[float64](1)
	other := New[float64](opcode.Add, newChild, NewImmed[float64](ops(), 5))
	other.FixIncompleteHashes()

	n.Become(other)
	if n.Opcode != opcode.Add || len(n.Params) != 2 {
		t.Fatalf("want n to adopt other's shape, got opcode %v params %d", n.Opcode, len(n.Params))
	}
	if oldChild.RefCount() != 1 {
		t.Fatalf("want n's old child released, leaving only the caller's ref, got refcount %d", oldChild.RefCount())
	}
	if newChild.RefCount() != 3 {
		t.Fatalf("want other's child retained once more for n (caller's ref + other's + n's), got %d", newChild.RefCount())
	}
}

func TestSetImmedReleasesOldChildren(t *testing.T) {
	x := NewVar[float64](0)
	n := New[float64](opcode.Neg, x)
	n.SetImmed(ops(), 7)
	if !n.IsImmed() || n.Immed != 7 {
		t.Fatalf("want n converted to an Immed(7) leaf, got opcode %v immed %v", n.Opcode, n.Immed)
	}
	if len(n.Params) != 0 {
		t.Fatalf("want params cleared")
	}
	if x.RefCount() != 1 {
		t.Fatalf("want the old child released, leaving only the caller's ref, got refcount %d", x.RefCount())
	}
}

func TestIsVarAndIsImmed(t *testing.T) {
	if v := NewVar[float64](3); !v.IsVar() || v.IsImmed() {
		t.Fatalf("want IsVar true, IsImmed false for a variable leaf")
	}
	im := NewImmed[float64](ops(), 1)
	if !im.IsImmed() || im.IsVar() {
		t.Fatalf("want IsImmed true, IsVar false for an immediate leaf")
	}
}

func TestIsLogicalValueForComparisonsAndLogic(t *testing.T) {
	cmp := New[float64](opcode.Less, NewVar[float64](0), NewVar[float64](1))
	if !cmp.IsLogicalValue() {
		t.Fatalf("want a comparison to report as a logical value")
	}
	arith := New[float64](opcode.Add, NewVar[float64](0), NewVar[float64](1))
	if arith.IsLogicalValue() {
		t.Fatalf("want plain arithmetic to not report as a logical value")
	}
}
