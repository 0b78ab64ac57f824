// Package lowering implements B: turning an optimized expression tree back
// into the flat bytecode word stream (spec.md §4.8), grounded on
// original_source/fpoptimizer/fpoptimizer_bytecodesynth.{cc,hh} and
// fpoptimizer_codetree_to_bytecode.cc's CodeTree::SynthesizeByteCode.
package lowering

import (
	"github.com/WarpRules/fpopt/internal/bytecode"
	"github.com/WarpRules/fpopt/internal/hash"
	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/scalar"
)

// stackSlot tracks, for one position on the synthesized stack, whether its
// value is known to equal a particular tree hash — the parallel vector
// spec.md §4.8.2 describes, used by FindAndDup to recognize a value already
// sitting on the stack instead of recomputing it.
type stackSlot struct {
	known bool
	hash  hash.Hash128
}

// ByteCodeSynth accumulates a bytecode program word by word while tracking
// the stack depth and peak depth the result will need, and satisfies
// expchain.Synth[S] so internal/expchain's powi/muli sequence assembly can
// emit directly into it.
type ByteCodeSynth[S scalar.Number] struct {
	ops   scalar.Ops[S]
	code  []uint32
	immed []S
	stack []stackSlot
	peak  int
}

// NewByteCodeSynth creates an empty synth ready to receive a program for
// scalar type S.
func NewByteCodeSynth[S scalar.Number](ops scalar.Ops[S]) *ByteCodeSynth[S] {
	return &ByteCodeSynth[S]{ops: ops}
}

func (b *ByteCodeSynth[S]) pushSlot(s stackSlot) {
	b.stack = append(b.stack, s)
	if len(b.stack) > b.peak {
		b.peak = len(b.stack)
	}
}

// PushVar emits a VarBegin+k opcode word.
func (b *ByteCodeSynth[S]) PushVar(k uint32) {
	b.code = append(b.code, bytecode.EncodeOp(bytecode.EncodeVar(k)))
	b.pushSlot(stackSlot{})
}

// PushImmed emits an Immed opcode word and appends v to the immediate pool.
func (b *ByteCodeSynth[S]) PushImmed(v S) {
	b.code = append(b.code, bytecode.EncodeOp(opcode.Immed))
	b.immed = append(b.immed, v)
	b.pushSlot(stackSlot{})
}

// AddOperation emits op consuming eat stack values and producing one,
// satisfying expchain.Synth[S]. A cDup immediately followed by a binary
// cMul is rewritten in place to cSqr, the one bytecode-level fusion
// fpoptimizer_bytecodesynth.cc applies regardless of which caller produced
// the dup/mul pair.
func (b *ByteCodeSynth[S]) AddOperation(op opcode.Opcode, eat int) {
	b.addOp(op, eat, 1)
}

// AddOperationProduce is AddOperation generalized to opcodes that push more
// than one result, namely SinCos (eat 1, produce 2).
func (b *ByteCodeSynth[S]) AddOperationProduce(op opcode.Opcode, eat, produce int) {
	b.addOp(op, eat, produce)
}

// AddFuncOperation emits an FCall/PCall word pair (opcode, function number).
func (b *ByteCodeSynth[S]) AddFuncOperation(op opcode.Opcode, fn uint32, eat int) {
	b.code = append(b.code, bytecode.EncodeOp(op), fn)
	b.stack = b.stack[:len(b.stack)-eat]
	b.pushSlot(stackSlot{})
}

func (b *ByteCodeSynth[S]) addOp(op opcode.Opcode, eat, produce int) {
	if op == opcode.Mul && eat == 2 && produce == 1 && b.lastIsBareDup() {
		b.code[len(b.code)-1] = bytecode.EncodeOp(opcode.Sqr)
		b.stack = b.stack[:len(b.stack)-1]
		b.stack[len(b.stack)-1] = stackSlot{}
		return
	}
	b.code = append(b.code, bytecode.EncodeOp(op))
	b.stack = b.stack[:len(b.stack)-eat]
	for i := 0; i < produce; i++ {
		b.pushSlot(stackSlot{})
	}
}

func (b *ByteCodeSynth[S]) lastIsBareDup() bool {
	return len(b.code) > 0 && b.code[len(b.code)-1] == bytecode.EncodeOp(opcode.Dup)
}

// DoDup duplicates the value at srcPos onto the top of the stack, emitting
// a bare Dup when srcPos is already the top (cheapest case) and a Fetch
// otherwise.
func (b *ByteCodeSynth[S]) DoDup(srcPos int) {
	top := len(b.stack) - 1
	if srcPos == top {
		b.code = append(b.code, bytecode.EncodeOp(opcode.Dup))
	} else {
		b.code = append(b.code, bytecode.EncodeOp(opcode.Fetch), uint32(srcPos))
	}
	b.pushSlot(b.stack[srcPos])
}

// DoPopNMov collapses the stack down to target+1 entries, with the final
// entry replaced by whatever was at src — the operation that both
// expchain's sequence assembly and the top-level lowering driver use to
// discard working values once only the result is wanted.
func (b *ByteCodeSynth[S]) DoPopNMov(target, src int) {
	b.code = append(b.code, bytecode.EncodeOp(opcode.PopNMov), uint32(target), uint32(src))
	b.stack[target] = b.stack[src]
	b.stack = b.stack[:target+1]
}

// GetStackTop reports the current stack depth.
func (b *ByteCodeSynth[S]) GetStackTop() int { return len(b.stack) }

// BytecodeLen reports the number of words emitted so far.
func (b *ByteCodeSynth[S]) BytecodeLen() int { return len(b.code) }

type synthMark struct {
	codeLen, immedLen, stackLen, peak int
}

// Checkpoint snapshots enough state to undo every word/value/stack change
// made since the call, used by expchain.AssembleSequenceChecked to try a
// sequence and roll it back if it grows the program past its budget.
func (b *ByteCodeSynth[S]) Checkpoint() any {
	return synthMark{len(b.code), len(b.immed), len(b.stack), b.peak}
}

// Restore undoes every change made since the matching Checkpoint.
func (b *ByteCodeSynth[S]) Restore(mark any) {
	m := mark.(synthMark)
	b.code = b.code[:m.codeLen]
	b.immed = b.immed[:m.immedLen]
	b.stack = b.stack[:m.stackLen]
	b.peak = m.peak
}

// StackTopIs records that the current top of stack holds the value hashed
// h, making it a future FindAndDup target.
func (b *ByteCodeSynth[S]) StackTopIs(h hash.Hash128) {
	b.stack[len(b.stack)-1] = stackSlot{known: true, hash: h}
}

func (b *ByteCodeSynth[S]) stampKnown(pos int, h hash.Hash128) {
	b.stack[pos] = stackSlot{known: true, hash: h}
}

func (b *ByteCodeSynth[S]) find(h hash.Hash128) (int, bool) {
	for i := len(b.stack) - 1; i >= 0; i-- {
		if b.stack[i].known && b.stack[i].hash.Equal(h) {
			return i, true
		}
	}
	return 0, false
}

// trigReciprocal pairs direct and reciprocal trig opcodes: finding Cos(x)
// already on the stack when Sec(x) is wanted costs one Inv rather than a
// whole recomputation, and vice versa.
var trigReciprocal = map[opcode.Opcode]opcode.Opcode{
	opcode.Sin: opcode.Csc, opcode.Csc: opcode.Sin,
	opcode.Cos: opcode.Sec, opcode.Sec: opcode.Cos,
	opcode.Tan: opcode.Cot, opcode.Cot: opcode.Tan,
}

// FindAndDup scans the stack-parallel hash vector for a value structurally
// identical to target's subtree; target is described by its own opcode,
// varOrFunc and the already-computed hash of its single child (trig
// reciprocal matching is unary-only). On a direct hit it duplicates the
// found value; on a reciprocal hit it duplicates and appends Inv. Returns
// whether a match was emitted.
func (b *ByteCodeSynth[S]) FindAndDup(targetOp opcode.Opcode, childHash hash.Hash128, hasChild bool, targetHash hash.Hash128) bool {
	if p, ok := b.find(targetHash); ok {
		b.DoDup(p)
		return true
	}
	if !hasChild {
		return false
	}
	recipOp, ok := trigReciprocal[targetOp]
	if !ok {
		return false
	}
	recipHash := hash.Combine(recipOp, 0, []hash.Hash128{childHash})
	if p, ok := b.find(recipHash); ok {
		b.DoDup(p)
		b.AddOperation(opcode.Inv, 1)
		return true
	}
	return false
}

// ifMark records the code position of a pending If/Jump placeholder so its
// target operand can be patched once the target address is known.
type ifMark struct {
	codePos int
}

// SynthIfStep1 emits the If/AbsIf opcode right after its condition has been
// synthesized (and consumed off the bookkeeping stack), returning a mark to
// patch once the else branch's start address is known.
func (b *ByteCodeSynth[S]) SynthIfStep1(op opcode.Opcode) ifMark {
	pos := len(b.code)
	b.code = append(b.code, bytecode.EncodeOp(op), 0, 0)
	b.stack = b.stack[:len(b.stack)-1]
	return ifMark{codePos: pos}
}

// SynthIfStep2 emits the then-branch's closing Jump and patches the pending
// If's target to the Jump's last word, so execution resumes at the start of
// the else branch, returning a new mark to patch once the whole If's end
// address is known.
func (b *ByteCodeSynth[S]) SynthIfStep2(m ifMark) ifMark {
	jumpPos := len(b.code)
	b.code = append(b.code, bytecode.EncodeOp(opcode.Jump), 0, 0)
	// A target names the last word skipped; execution resumes one word
	// later. Patching after the Jump is emitted makes skipping the
	// then-branch skip its closing Jump too.
	b.patchTarget(m)
	b.stack = b.stack[:len(b.stack)-1] // then-branch's value isn't on the runtime stack in this path
	return ifMark{codePos: jumpPos}
}

// SynthIfStep3 patches the closing Jump's target to the last word emitted
// so far, so execution resumes just past the whole If, leaving the else
// branch's value as the If's single net result.
func (b *ByteCodeSynth[S]) SynthIfStep3(m ifMark) {
	b.patchTarget(m)
}

func (b *ByteCodeSynth[S]) patchTarget(m ifMark) {
	b.code[m.codePos+1] = uint32(len(b.code) - 1)
	b.code[m.codePos+2] = uint32(len(b.immed))
}
