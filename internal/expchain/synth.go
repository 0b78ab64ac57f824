// Package expchain implements X: planning how to emit an integer power or
// integer-coefficient multiplication as a dup/mul (or dup/add) sequence
// instead of a plain Pow/Mul opcode, and the negation/inversion recreation
// pass that runs just before lowering (spec.md §4.7), grounded on
// original_source/fpoptimizer/fpoptimizer_bytecodesynth.{cc,hh} (the powi
// table and factor cache) and fpoptimizer_codetree_to_bytecode.cc (the
// budget-checked call site and the root-chain/recreation heuristics).
package expchain

import (
	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/scalar"
)

// Synth is the subset of internal/lowering's ByteCodeSynth that sequence
// assembly needs. Defined here (rather than depending on lowering
// directly) so expchain has no import-cycle with the package that calls
// into it.
type Synth[S scalar.Number] interface {
	PushImmed(v S)
	DoDup(srcPos int)
	DoPopNMov(target, src int)
	AddOperation(op opcode.Opcode, eat int)
	GetStackTop() int
	BytecodeLen() int

	// Checkpoint/Restore back a speculative emission out, the way the
	// original copies the whole ByteCodeSynth by value before trying a
	// sequence and restores it if the result grows past budget.
	Checkpoint() any
	Restore(mark any)
}

// SequenceOpCode names the four opcodes a count-sequence can cumulate
// with: the identity base value, the opcode used to negate/invert a
// single operand, the normal binary opcode, and its reversed-operand
// counterpart (needed when the cheaper operand order is swapped).
type SequenceOpCode struct {
	BaseValue                float64
	OpFlip                   opcode.Opcode
	OpNormal, OpNormalFlip   opcode.Opcode
	OpInverse, OpInverseFlip opcode.Opcode
}

// AddSequence assembles an integer multiple via repeated Add (the muli
// budget in spec.md §4.7.1's "Mul" coefficient-expansion case).
var AddSequence = SequenceOpCode{
	BaseValue: 0, OpFlip: opcode.Neg,
	OpNormal: opcode.Add, OpNormalFlip: opcode.Add,
	OpInverse: opcode.Sub, OpInverseFlip: opcode.RSub,
}

// MulSequence assembles an integer power via repeated Mul (the powi
// sequence in spec.md §4.7.1).
var MulSequence = SequenceOpCode{
	BaseValue: 1, OpFlip: opcode.Inv,
	OpNormal: opcode.Mul, OpNormalFlip: opcode.Mul,
	OpInverse: opcode.Div, OpInverseFlip: opcode.RDiv,
}
