package lowering

import (
	"github.com/WarpRules/fpopt/internal/bytecode"
	"github.com/WarpRules/fpopt/internal/expchain"
	"github.com/WarpRules/fpopt/internal/hash"
	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/scalar"
	"github.com/WarpRules/fpopt/internal/tree"
)

// Options bounds how much bigger the powi/muli dup-chain idioms are allowed
// to make the program than a plain Pow/Mul call, mirroring spec.md §4.7.1's
// MAX_POWI_BYTECODE_LENGTH/MAX_MULI_BYTECODE_LENGTH.
type Options struct {
	MaxPowiBytecodeGrow int
	MaxMuliBytecodeGrow int
}

// DefaultOptions matches the original's defaults.
func DefaultOptions() Options {
	return Options{MaxPowiBytecodeGrow: 15, MaxMuliBytecodeGrow: 3}
}

type state[S scalar.Number] struct {
	ops        scalar.Ops[S]
	opts       Options
	synth      *ByteCodeSynth[S]
	candidates *CandidateSet[S]
}

// Lower turns an optimized expression tree into a bytecode program (spec.md
// §4.8), extracting common subexpressions opportunistically as it walks.
func Lower[S scalar.Number](root *tree.Node[S], ops scalar.Ops[S], opts Options) bytecode.Program[S] {
	s := &state[S]{
		ops:        ops,
		opts:       opts,
		synth:      NewByteCodeSynth[S](ops),
		candidates: BuildCandidates(root),
	}
	s.Synthesize(root, false)

	top := s.synth.GetStackTop() - 1
	if top != 0 {
		s.synth.DoPopNMov(0, top)
	}

	return bytecode.Program[S]{
		Code:      s.synth.code,
		Immed:     s.synth.immed,
		PeakStack: s.synth.peak,
	}
}

// Synthesize emits n, optionally collapsing any CSE temporaries created
// while doing so back down to n's own single result — used for If branches,
// whose two arms must leave the stack at the same depth regardless of which
// one runs, and skipped at the top level so the whole expression's
// temporaries stay available to each other throughout the walk (spec.md
// §4.8.3: "top-level call uses must_pop_temps=false").
func (s *state[S]) Synthesize(n *tree.Node[S], mustPopTemps bool) {
	baseline := s.synth.GetStackTop()
	s.synthNode(n)
	if mustPopTemps {
		top := s.synth.GetStackTop() - 1
		if top != baseline {
			s.synth.DoPopNMov(baseline, top)
		}
	}
}

func (s *state[S]) findAndDupNode(n *tree.Node[S]) bool {
	var childHash hash.Hash128
	hasChild := len(n.Params) == 1
	if hasChild {
		childHash = n.Params[0].Hash
	}
	return s.synth.FindAndDup(n.Opcode, childHash, hasChild, n.Hash)
}

func (s *state[S]) synthNode(n *tree.Node[S]) {
	if s.findAndDupNode(n) {
		return
	}
	s.emit(n)
	s.synth.StackTopIs(n.Hash)
	s.retainIfCandidate(n)
}

// retainIfCandidate leaves a permanent extra copy of n's value on the stack
// when n was identified as recurring elsewhere in the tree, so n's
// immediate consumer can eat its own copy without losing the value for
// later reuse via FindAndDup.
func (s *state[S]) retainIfCandidate(n *tree.Node[S]) {
	if !s.candidates.IsCandidate(n) {
		return
	}
	s.synth.DoDup(s.synth.GetStackTop() - 1)
}

func (s *state[S]) emit(n *tree.Node[S]) {
	switch {
	case n.IsImmed():
		s.synth.PushImmed(n.Immed)
		return
	case n.IsVar():
		k, _ := bytecode.IsVar(n.Opcode)
		s.synth.PushVar(k)
		return
	}

	switch n.Opcode {
	case opcode.Add, opcode.Min, opcode.Max, opcode.And, opcode.Or, opcode.AbsAnd, opcode.AbsOr:
		s.synthAssociativeList(n.Params, n.Opcode)
	case opcode.Mul:
		s.synthMul(n)
	case opcode.Pow:
		s.synthPow(n)
	case opcode.If, opcode.AbsIf:
		s.synthIf(n)
	case opcode.FCall, opcode.PCall:
		s.synthCall(n)
	case opcode.Sin, opcode.Cos:
		if s.trySinCosFusion(n) {
			return
		}
		s.synthGeneric(n)
	default:
		s.synthGeneric(n)
	}
}

// synthGeneric is the fallback dispatch: synthesize every param in order,
// then emit n's own opcode over however many params it ate. This covers
// every opcode with no n-ary grouping and no special sequence handling —
// unary functions, the directional Sub/Div/Pow-reversal opcodes RSub/RDiv/
// RPow and Log2by (emitted directly, since by the time a tree carries one
// of those it was put there deliberately by the recreation pass as a
// bytecode-level hint), comparisons, and logic ops.
func (s *state[S]) synthGeneric(n *tree.Node[S]) {
	for _, p := range n.Params {
		s.synthNode(p)
	}
	s.synth.AddOperation(n.Opcode, len(n.Params))
}

// synthAssociativeList lowers an n-ary associative node into the chain of
// binary bytecode operations the wire format actually has (bytecode Add/
// Mul/Min/Max/And/Or/AbsAnd/AbsOr are all strictly binary; the tree's n-ary
// grouping from constant folding is undone here).
func (s *state[S]) synthAssociativeList(params []*tree.Node[S], op opcode.Opcode) {
	s.synthNode(params[0])
	for _, p := range params[1:] {
		s.synthNode(p)
		s.synth.AddOperation(op, 2)
	}
}

// synthMul looks for a single long-integer immediate factor and tries to
// synthesize "rest * factor" via a dup/add chain (spec.md §4.7.1's muli
// sequence) instead of loading the immediate and multiplying, falling back
// to the plain associative chain when there's no such factor or the chain
// would grow the program past budget.
func (s *state[S]) synthMul(n *tree.Node[S]) {
	idx := -1
	for i, p := range n.Params {
		if p.IsImmed() && s.ops.IsLongInteger(p.Immed) && !s.ops.FPEqual(p.Immed, 0) {
			idx = i
			break
		}
	}
	if idx >= 0 {
		rest := make([]*tree.Node[S], 0, len(n.Params)-1)
		for i, p := range n.Params {
			if i != idx {
				rest = append(rest, p)
			}
		}
		count := int(n.Params[idx].Immed)
		emitBase := func() { s.synthAssociativeList(rest, opcode.Mul) }
		if len(rest) == 1 {
			emitBase = func() { s.synthNode(rest[0]) }
		}
		if expchain.AssembleSequenceChecked(count, expchain.AddSequence, s.opts.MaxMuliBytecodeGrow, s.synth, emitBase) {
			return
		}
	}
	s.synthAssociativeList(n.Params, opcode.Mul)
}

// synthPow tries the powi dup/mul chain (spec.md §4.7.1) for an integer
// exponent, falling back to a plain Pow call when the exponent isn't a
// long integer or the chain would grow the program past budget.
func (s *state[S]) synthPow(n *tree.Node[S]) {
	base, exp := n.Params[0], n.Params[1]
	if exp.IsImmed() && s.ops.IsLongInteger(exp.Immed) {
		count := int(exp.Immed)
		if expchain.AssembleSequenceChecked(count, expchain.MulSequence, s.opts.MaxPowiBytecodeGrow, s.synth, func() { s.synthNode(base) }) {
			return
		}
	}
	s.synthNode(base)
	s.synthNode(exp)
	s.synth.AddOperation(opcode.Pow, 2)
}

// synthIf emits the three-step If/AbsIf idiom: condition, then-branch with
// its own temporaries collapsed, a Jump, then the else-branch with its own
// temporaries collapsed (spec.md §4.8.2/§4.8.3). Collapsing each branch
// independently is what keeps a subtree found only inside one arm from
// leaving the stack at a different depth than the other arm would.
func (s *state[S]) synthIf(n *tree.Node[S]) {
	cond, thenBranch, elseBranch := n.Params[0], n.Params[1], n.Params[2]
	s.synthNode(cond)
	m1 := s.synth.SynthIfStep1(n.Opcode)
	s.Synthesize(thenBranch, true)
	m2 := s.synth.SynthIfStep2(m1)
	s.Synthesize(elseBranch, true)
	s.synth.SynthIfStep3(m2)
}

func (s *state[S]) synthCall(n *tree.Node[S]) {
	for _, p := range n.Params {
		s.synthNode(p)
	}
	s.synth.AddFuncOperation(n.Opcode, n.VarOrFunc, len(n.Params))
}

// trySinCosFusion detects a Sin or Cos call whose argument also feeds the
// other trig function elsewhere in the tree and, on the first of the pair
// encountered, emits a single SinCos opcode producing both results —
// whichever one n itself is gets left on top, at the cost of one extra
// Fetch when it's the one SinCos didn't put there (spec.md §4.8.2/§4.8.1).
// The second of the pair is satisfied by the normal FindAndDup check before
// this is ever reached.
func (s *state[S]) trySinCosFusion(n *tree.Node[S]) bool {
	if len(n.Params) != 1 {
		return false
	}
	arg := n.Params[0]
	if !s.candidates.IsSinCosArg(arg.Hash) {
		return false
	}

	s.synthNode(arg)
	s.synth.AddOperationProduce(opcode.SinCos, 1, 2)

	top := s.synth.GetStackTop()
	sinPos, cosPos := top-2, top-1
	sinHash := hash.Combine(opcode.Sin, 0, []hash.Hash128{arg.Hash})
	cosHash := hash.Combine(opcode.Cos, 0, []hash.Hash128{arg.Hash})
	s.synth.stampKnown(sinPos, sinHash)
	s.synth.stampKnown(cosPos, cosHash)

	if n.Opcode == opcode.Sin {
		s.synth.DoDup(sinPos)
	}
	return true
}
