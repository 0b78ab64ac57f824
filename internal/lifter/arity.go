package lifter

import "github.com/WarpRules/fpopt/internal/opcode"

// directArity lists every bytecode opcode the lifter turns into a tree node
// of the identical opcode with no rewriting (see DESIGN.md: most of spec.md
// §4.5's "canonical form" list is already the tree's native representation
// for that operation, not a Mul/Pow/Add expansion of it). Opcodes absent
// from this table need bespoke handling in the main dispatch loop.
var directArity = map[opcode.Opcode]int{
	// Unary.
	opcode.Neg: 1, opcode.Inv: 1, opcode.Sqr: 1,
	opcode.Sqrt: 1, opcode.RSqrt: 1, opcode.Cbrt: 1,
	opcode.Log: 1, opcode.Log2: 1, opcode.Log10: 1,
	opcode.Exp: 1, opcode.Exp2: 1,
	opcode.Sin: 1, opcode.Cos: 1, opcode.Tan: 1,
	opcode.Cot: 1, opcode.Sec: 1, opcode.Csc: 1,
	opcode.Asin: 1, opcode.Acos: 1, opcode.Atan: 1,
	opcode.Sinh: 1, opcode.Cosh: 1, opcode.Tanh: 1,
	opcode.Asinh: 1, opcode.Acosh: 1, opcode.Atanh: 1,
	opcode.Floor: 1, opcode.Ceil: 1, opcode.Trunc: 1, opcode.Int: 1,
	opcode.Abs: 1,
	opcode.Not: 1, opcode.NotNot: 1, opcode.AbsNot: 1, opcode.AbsNotNot: 1,
	opcode.Rad: 1, opcode.Deg: 1,

	// Binary.
	opcode.Add: 2, opcode.Mul: 2, opcode.Sub: 2, opcode.Div: 2,
	opcode.Mod: 2, opcode.Pow: 2,
	opcode.Equal: 2, opcode.NEqual: 2,
	opcode.Less: 2, opcode.LessOrEq: 2, opcode.Greater: 2, opcode.GreaterOrEq: 2,
	opcode.And: 2, opcode.Or: 2, opcode.AbsAnd: 2, opcode.AbsOr: 2,
	opcode.Atan2: 2, opcode.Hypot: 2,
	opcode.Min: 2, opcode.Max: 2,
}
