package expchain

import (
	"github.com/WarpRules/fpopt/internal/constfold"
	"github.com/WarpRules/fpopt/internal/debugdump"
	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/rangeanalysis"
	"github.com/WarpRules/fpopt/internal/scalar"
	"github.com/WarpRules/fpopt/internal/tree"
)

// Planner holds the per-scalar-type collaborators the recreation pass and
// the budget-checked sequence wrapper need.
type Planner[S scalar.Number] struct {
	Ops  scalar.Ops[S]
	RA   *rangeanalysis.Analyzer[S]
	Fold *constfold.Folder[S]

	// MaxPowiBytecodeGrow and MaxMuliBytecodeGrow bound how many extra
	// bytecode words a Pow/Mul count-sequence may add over a plain call
	// (spec.md §4.7.1's MAX_POWI_BYTECODE_LENGTH/MAX_MULI_BYTECODE_LENGTH).
	MaxPowiBytecodeGrow int
	MaxMuliBytecodeGrow int

	// CombineExponents enables collapsing a nested Pow tower into a single
	// Pow with a combined exponent before recreation runs. Exposed as an
	// option rather than always-on because a host comparing optimizer
	// output against an un-combined baseline needs to turn it off.
	CombineExponents bool

	// Debug, when set, records each recreation-pass rewrite (spec.md §6's
	// debug surface).
	Debug *debugdump.Session
}

// NewPlanner builds a Planner with the original's default budgets.
func NewPlanner[S scalar.Number](ops scalar.Ops[S]) *Planner[S] {
	return &Planner[S]{
		Ops:                 ops,
		RA:                  rangeanalysis.New(ops),
		Fold:                constfold.New(ops),
		MaxPowiBytecodeGrow: 15,
		MaxMuliBytecodeGrow: 3,
		CombineExponents:    true,
	}
}

// AssembleSequenceChecked emits count applications of seq's opcode against
// the operand emitBase pushes, rolling back to synth's pre-call state if
// the resulting bytecode grows past maxGrow words (fpoptimizer_codetree_to_
// bytecode.cc's private AssembleSequence wrapper, which copies the whole
// ByteCodeSynth by value and restores it on budget miss; Checkpoint/Restore
// stand in for that copy here). emitBase is a closure rather than a direct
// tree-walk call so this package never has to import the lowering package
// that owns SynthesizeByteCode.
func AssembleSequenceChecked[S scalar.Number](count int, seq SequenceOpCode, maxGrow int, synth Synth[S], emitBase func()) bool {
	mark := synth.Checkpoint()
	before := synth.BytecodeLen()

	emitBase()
	AssembleSequence(count, seq, synth)

	if synth.BytecodeLen()-before > maxGrow {
		synth.Restore(mark)
		return false
	}
	return true
}

// Recreate rewrites n in place, just before lowering, to replace
// Pow/Mul/Add shapes that have a cheaper equivalent form — negation,
// inversion, division, and (when a root chain is cheap enough) sqrt/cbrt
// substitution for a fractional exponent (spec.md §4.7.2). It recurses
// into children first (bottom-up, so a rewritten child can feed a parent
// rewrite) and reports whether anything changed.
func (p *Planner[S]) Recreate(n *tree.Node[S]) bool {
	changed := false
	for _, c := range n.Params {
		if p.Recreate(c) {
			changed = true
		}
	}

	var before *tree.Node[S]
	if p.Debug != nil {
		before = n.Clone()
	}

	switch n.Opcode {
	case opcode.Mul:
		if p.recreateMul(n) {
			changed = true
		}
	case opcode.Add:
		if p.recreateAdd(n) {
			changed = true
		}
	case opcode.Pow:
		if p.CombineExponents && p.combineNestedPow(n) {
			changed = true
		}
		if p.recreatePow(n) {
			changed = true
		}
	}

	if changed {
		n.MarkIncompletelyHashed()
		n.FixIncompleteHashes()
		if before != nil {
			p.Debug.LogRecreate(n.Opcode.String(), before, n)
		}
	}
	if before != nil {
		before.Release()
	}
	return changed
}

// recreateMul looks for two shapes: a Pow(x,-1) operand, rewritten to a
// Div/Inv; and a lone -1 coefficient, rewritten to Neg; and a Log2 operand
// multiplied by a second factor, rewritten to Log2by.
func (p *Planner[S]) recreateMul(n *tree.Node[S]) bool {
	changed := false

	for i, c := range n.Params {
		if c.Opcode != opcode.Pow || len(c.Params) != 2 || !c.Params[1].IsImmed() {
			continue
		}
		if !p.Ops.FPEqual(c.Params[1].Immed, -1) {
			continue
		}
		base := c.Params[0]
		base.Retain()
		n.SetParamMove(i, reciprocal(base, p.Ops))
		changed = true
	}

	if len(n.Params) == 2 {
		for i, c := range n.Params {
			if !c.IsImmed() || !p.Ops.FPEqual(c.Immed, -1) {
				continue
			}
			other := n.Params[1-i]
			other.Retain()
			negated := tree.New[S](opcode.Neg, other)
			other.Release()
			n.Become(negated)
			negated.Release()
			return true
		}

		for i, c := range n.Params {
			if c.Opcode != opcode.Log2 {
				continue
			}
			other := n.Params[1-i]
			c.Params[0].Retain()
			other.Retain()
			repl := tree.New[S](opcode.Log2by, c.Params[0], other)
			c.Params[0].Release()
			other.Release()
			n.Become(repl)
			repl.Release()
			return true
		}
	}

	return changed
}

func reciprocal[S scalar.Number](base *tree.Node[S], ops scalar.Ops[S]) *tree.Node[S] {
	n := tree.New[S](opcode.Inv, base)
	base.Release()
	return n
}

// recreateAdd folds a Mul(-1, x) operand into a subtraction against a
// sibling, or a bare Neg, the way the original collapses additive
// negation chains before emitting bytecode.
func (p *Planner[S]) recreateAdd(n *tree.Node[S]) bool {
	if len(n.Params) != 2 {
		return false
	}
	for i, c := range n.Params {
		neg, ok := negatedOperand(c, p.Ops)
		if !ok {
			continue
		}
		pos := n.Params[1-i]
		pos.Retain()
		neg.Retain()
		var repl *tree.Node[S]
		if i == 0 {
			repl = tree.New[S](opcode.RSub, neg, pos)
		} else {
			repl = tree.New[S](opcode.Sub, pos, neg)
		}
		pos.Release()
		neg.Release()
		n.Become(repl)
		repl.Release()
		return true
	}
	return false
}

// negatedOperand reports whether c is -1*x in disguise (a literal Mul(-1,
// x), or an Immed already holding a negative value) and, if so, returns
// the positive form x.
func negatedOperand[S scalar.Number](c *tree.Node[S], ops scalar.Ops[S]) (*tree.Node[S], bool) {
	if c.Opcode == opcode.Mul && len(c.Params) == 2 {
		for i, p := range c.Params {
			if p.IsImmed() && ops.FPEqual(p.Immed, -1) {
				return c.Params[1-i], true
			}
		}
	}
	if c.IsImmed() && c.Immed < 0 {
		return c, true
	}
	return nil, false
}

// recreatePow replaces a Pow whose exponent is a small non-integer
// fraction with a cheaper sqrt/cbrt chain when one exists, and a Pow whose
// base is a positive immediate with Exp/Exp2 against the scaled exponent,
// mirroring fpoptimizer_codetree_to_bytecode.cc's two Pow recreation
// heuristics.
func (p *Planner[S]) recreatePow(n *tree.Node[S]) bool {
	base, exp := n.Params[0], n.Params[1]

	if exp.IsImmed() {
		if chain, cost, ok := planRootChain(float64(exp.Immed)); ok && cost < directPowCost {
			if replaced := p.replaceWithRootChain(n, base, chain); replaced {
				return true
			}
		}
	}

	if base.IsImmed() && base.Immed > 0 {
		exp.Retain()
		var repl *tree.Node[S]
		if p.Ops.FPEqual(base.Immed, 2) {
			repl = tree.New[S](opcode.Exp2, exp)
		} else {
			logBase := tree.New[S](opcode.Log, base)
			p.Fold.Rehash(logBase)
			scaled := tree.New[S](opcode.Mul, logBase, exp)
			logBase.Release()
			exp.Release()
			repl = tree.New[S](opcode.Exp, scaled)
			scaled.Release()
		}
		n.Become(repl)
		repl.Release()
		return true
	}

	return false
}

func (p *Planner[S]) replaceWithRootChain(n *tree.Node[S], base *tree.Node[S], chain []rootOp) bool {
	base.Retain()
	cur := base
	for _, step := range chain {
		next := tree.New[S](step.op, cur)
		cur.Release()
		cur = next
	}
	n.Become(cur)
	cur.Release()
	return true
}
