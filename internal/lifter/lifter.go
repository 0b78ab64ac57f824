// Package lifter implements L: turning a flat bytecode word stream plus its
// immediate pool into an expression tree (spec.md §4.5), grounded on
// original_source/fpoptimizer/fpoptimizer_readbytecode.cc's stack simulator.
package lifter

import (
	pkgerrors "github.com/pkg/errors"

	"github.com/WarpRules/fpopt/internal/bytecode"
	"github.com/WarpRules/fpopt/internal/constfold"
	fpopterrors "github.com/WarpRules/fpopt/internal/errors"
	"github.com/WarpRules/fpopt/internal/hash"
	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/scalar"
	"github.com/WarpRules/fpopt/internal/tree"
)

func liftErrorf(format string, args ...any) error {
	return fpopterrors.New(fpopterrors.LiftError, pkgerrors.Errorf(format, args...).Error())
}

// ifFrame tracks one pending If while its then/else branches are scanned,
// the way compiler.VisitIfExpr records a jump position to patch later —
// inverted here, since what gets patched in is a value-stack pop rather
// than a byte offset.
type ifFrame[S scalar.Number] struct {
	condition  *tree.Node[S]
	thenBranch *tree.Node[S]
	endIP      int
}

type state[S scalar.Number] struct {
	ops      scalar.Ops[S]
	fold     *constfold.Folder[S]
	fns      bytecode.FnTable
	keepPowi bool

	stack  []*tree.Node[S]
	clones map[hash.Hash128][]*tree.Node[S]
}

func newState[S scalar.Number](ops scalar.Ops[S], fns bytecode.FnTable, keepPowi bool) *state[S] {
	return &state[S]{
		ops:      ops,
		fold:     constfold.New(ops),
		fns:      fns,
		keepPowi: keepPowi,
		clones:   make(map[hash.Hash128][]*tree.Node[S]),
	}
}

func (s *state[S]) push(n *tree.Node[S]) { s.stack = append(s.stack, n) }

func (s *state[S]) pull() *tree.Node[S] {
	n := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return n
}

func (s *state[S]) pushImmed(v S) { s.push(s.findClone(tree.NewImmed(s.ops, v))) }

func (s *state[S]) pushVar(k uint32) { s.push(s.findClone(tree.NewVar[S](k))) }

func (s *state[S]) dup() {
	top := s.stack[len(s.stack)-1]
	top.Retain()
	s.push(top)
}

func (s *state[S]) fetch(pos int) {
	n := s.stack[pos]
	n.Retain()
	s.push(n)
}

func (s *state[S]) swapTopTwo() {
	i, j := len(s.stack)-1, len(s.stack)-2
	s.stack[i], s.stack[j] = s.stack[j], s.stack[i]
}

// findClone coalesces n with a structurally identical node seen earlier,
// releasing n and returning the existing one on a hit (mirrors
// CodeTreeParserData::FindClone, non-recursive here: every child already
// passed through findClone when it was itself built, so descending again
// would only re-confirm work already done).
func (s *state[S]) findClone(n *tree.Node[S]) *tree.Node[S] {
	bucket := s.clones[n.Hash]
	for _, c := range bucket {
		if c.IsIdenticalTo(n) {
			n.Release()
			c.Retain()
			return c
		}
	}
	s.clones[n.Hash] = append(bucket, n)
	return n
}

// eat pops n handles, builds a node of opcode op over them, folds it, and
// pushes the (possibly coalesced) result.
func (s *state[S]) eat(n int, op opcode.Opcode) {
	head := len(s.stack) - n
	params := append([]*tree.Node[S](nil), s.stack[head:]...)
	s.stack = s.stack[:head]

	newnode := tree.New[S](op, params...)
	for _, p := range params {
		p.Release() // New retained its own copy; drop the stack's.
	}

	s.fuse(newnode)
	s.fold.Rehash(newnode)
	s.push(s.findClone(newnode))
}

// eatFunc is eat's counterpart for FCall/PCall, which carry a function
// number alongside their arity.
func (s *state[S]) eatFunc(n int, op opcode.Opcode, fn uint32) {
	head := len(s.stack) - n
	params := append([]*tree.Node[S](nil), s.stack[head:]...)
	s.stack = s.stack[:head]

	newnode := tree.New[S](op, params...)
	for _, p := range params {
		p.Release()
	}
	newnode.SetFuncOpcode(op, fn)
	s.fold.Rehash(newnode)
	s.push(s.findClone(newnode))
}

// fuse performs the one multi-node lift-time rewrite that has no direct
// tree-opcode counterpart: Pow(x, a+b+...) -> Mul(Pow(x,a), Pow(x,b), ...),
// which lets later Mul/Add grouping see the individual exponents (see
// DESIGN.md). Everything else in spec.md §4.5's fusion list is already the
// native opcode the tree keeps.
func (s *state[S]) fuse(n *tree.Node[S]) {
	if n.Opcode != opcode.Pow {
		return
	}
	base, exp := n.Params[0], n.Params[1]
	if exp.Opcode != opcode.Add {
		return
	}
	factors := make([]*tree.Node[S], len(exp.Params))
	for i, a := range exp.Params {
		base.Retain()
		a.Retain()
		p := tree.New[S](opcode.Pow, base, a)
		s.fold.Rehash(p)
		factors[i] = s.findClone(p)
	}
	n.SetOpcode(opcode.Mul)
	n.SetParamsMove(factors)
}

// Lift turns a bytecode program into its expression tree (spec.md §4.5).
// keepPowi disables powi/muli sequence recognition, leaving Sqr/Dup/Inv/
// Neg/Sqrt/RSqrt/Fetch chains as individual opcodes.
func Lift[S scalar.Number](prog bytecode.Program[S], ops scalar.Ops[S], fns bytecode.FnTable, keepPowi bool) (result *tree.Node[S], err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		result = nil
		if e, ok := r.(error); ok {
			err = e
			return
		}
		err = liftErrorf("malformed bytecode: %v", r)
	}()

	s := newState(ops, fns, keepPowi)
	code := prog.Code
	var ifStack []*ifFrame[S]
	dp := 0

	ip := 0
	for {
		for len(ifStack) > 0 && ifStack[len(ifStack)-1].endIP == ip {
			frame := ifStack[len(ifStack)-1]
			ifStack = ifStack[:len(ifStack)-1]
			elseBranch := s.pull()
			s.push(frame.condition)
			s.push(frame.thenBranch)
			s.push(elseBranch)
			s.eat(3, opcode.If)
		}
		if ip >= len(code) {
			break
		}

		op := opcode.Opcode(code[ip])

		if !keepPowi && chainStartOpcode(op) {
			limit := len(code)
			if len(ifStack) > 0 {
				limit = ifStack[len(ifStack)-1].endIP
			}
			base := len(s.stack) - 1

			exponent, afterPowi := parseChainSequence(ops, code, ip, limit, base, []S{1}, powiChain)
			if float64(exponent) != 1 {
				s.pushImmed(exponent)
				s.eat(2, opcode.Pow)
				ip = afterPowi
				continue
			}
			if muliEligible(op) {
				factor, afterMuli := parseChainSequence(ops, code, ip, limit, base, []S{1}, muliChain)
				if float64(factor) != 1 {
					s.pushImmed(factor)
					s.eat(2, opcode.Mul)
					ip = afterMuli
					continue
				}
			}
		}

		if opcode.IsVar(op) {
			s.pushVar(uint32(op - opcode.VarBegin))
			ip++
			continue
		}

		switch op {
		case opcode.If, opcode.AbsIf:
			cond := s.pull()
			ifStack = append(ifStack, &ifFrame[S]{condition: cond, endIP: len(code)})
			ip += 3

		case opcode.Jump:
			thenBranch := s.pull()
			if len(ifStack) == 0 {
				panic(liftErrorf("Jump with no open If"))
			}
			frame := ifStack[len(ifStack)-1]
			frame.thenBranch = thenBranch
			frame.endIP = int(code[ip+1]) + 1
			ip += 3

		case opcode.Immed:
			s.pushImmed(prog.Immed[dp])
			dp++
			ip++

		case opcode.Dup:
			s.dup()
			ip++

		case opcode.Fetch:
			s.fetch(int(code[ip+1]))
			ip += 2

		case opcode.PopNMov:
			target, src := int(code[ip+1]), int(code[ip+2])
			s.stack[target] = s.stack[src]
			s.stack = s.stack[:target+1]
			ip += 3

		case opcode.Nop:
			ip++

		case opcode.FCall, opcode.PCall:
			fn := code[ip+1]
			s.eatFunc(fns.Arity(fn), op, fn)
			ip += 2

		case opcode.RSub:
			s.swapTopTwo()
			s.eat(2, opcode.Sub)
			ip++
		case opcode.RDiv:
			s.swapTopTwo()
			s.eat(2, opcode.Div)
			ip++
		case opcode.RPow:
			s.swapTopTwo()
			s.eat(2, opcode.Pow)
			ip++

		case opcode.Log2by:
			// x y -> log(x)*InvLn2*y, per
			// fpoptimizer_readbytecode.cc's cLog2by handling.
			s.swapTopTwo()
			s.eat(1, opcode.Log)
			s.pushImmed(ops.InvLn2())
			s.eat(3, opcode.Mul)
			ip++

		case opcode.SinCos, opcode.Eval:
			panic(liftErrorf("unsupported bytecode opcode %v", op))

		default:
			n, ok := directArity[op]
			if !ok {
				panic(liftErrorf("unrecognized bytecode opcode %v", op))
			}
			s.eat(n, op)
			ip++
		}
	}

	if len(s.stack) != 1 {
		return nil, liftErrorf("bytecode left %d values on the stack, expected 1", len(s.stack))
	}
	return s.pull(), nil
}
