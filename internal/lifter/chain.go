package lifter

import (
	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/scalar"
)

// chainTable parameterizes parseChainSequence over the two idioms it
// recognizes (§4.5.1): integer-exponent ("powi") chains built from Sqr/Inv/
// Sqrt/RSqrt/Mul, and integer-factor ("muli") chains built from Neg/Add.
type chainTable struct {
	hasSquare bool
	square    opcode.Opcode
	cumulate  opcode.Opcode
	invert    opcode.Opcode
	hasHalf   bool
	half      opcode.Opcode
	invHalf   opcode.Opcode
}

var powiChain = chainTable{
	hasSquare: true, square: opcode.Sqr,
	cumulate: opcode.Mul,
	invert:   opcode.Inv,
	hasHalf:  true, half: opcode.Sqrt, invHalf: opcode.RSqrt,
}

var muliChain = chainTable{
	cumulate: opcode.Add,
	invert:   opcode.Neg,
}

// parseChainSequence walks a contiguous run of a chain idiom starting at ip,
// returning the accumulated exponent/factor and the IP just past the last
// word it consumed. It never errors: hitting a word that doesn't fit the
// idiom simply stops the scan where it is, leaving that word for the main
// loop to dispatch normally.
//
// stack is the "factor stack" mirroring nested Dup/Fetch sub-exponent
// parses; stackBase maps a Fetch's absolute value-stack index back onto it.
func parseChainSequence[S scalar.Number](ops scalar.Ops[S], code []uint32, ip, limit, stackBase int, stack []S, table chainTable) (S, int) {
	result := S(1)
	for ip < limit {
		op := opcode.Opcode(code[ip])

		switch {
		case table.hasSquare && op == table.square:
			if !ops.IsInteger(result) {
				return result, ip
			}
			result *= 2
			ip++
			continue
		case op == table.invert:
			result = -result
			ip++
			continue
		case table.hasHalf && op == table.half:
			if isPositiveEvenInt(ops, result) {
				return result, ip
			}
			result *= S(0.5)
			ip++
			continue
		case table.hasHalf && op == table.invHalf:
			if isPositiveEvenInt(ops, result) {
				return result, ip
			}
			result *= S(-0.5)
			ip++
			continue
		}

		dupFetchPos := ip
		var lhs S = 1
		switch op {
		case opcode.Fetch:
			index := int(code[ip+1])
			if index < stackBase || index-stackBase >= len(stack) {
				return result, dupFetchPos
			}
			lhs = stack[index-stackBase]
			ip++
		case opcode.Dup:
			lhs = result
		default:
			return result, ip
		}

		stack = append(stack, result)
		ip++
		sub, newIP := parseChainSequence(ops, code, ip, limit, stackBase, stack, table)
		ip = newIP
		if ip >= limit || opcode.Opcode(code[ip]) != table.cumulate {
			return result, dupFetchPos
		}
		ip++
		stack = stack[:len(stack)-1]
		result += lhs * sub
	}
	return result, ip
}

func isPositiveEvenInt[S scalar.Number](ops scalar.Ops[S], v S) bool {
	if !ops.IsInteger(v) || v <= 0 {
		return false
	}
	half := v / 2
	return half*2 == v
}

// chainStartOpcode reports whether op can begin a powi/muli scan.
func chainStartOpcode(op opcode.Opcode) bool {
	switch op {
	case opcode.Sqr, opcode.Dup, opcode.Inv, opcode.Neg, opcode.Sqrt, opcode.RSqrt, opcode.Fetch:
		return true
	default:
		return false
	}
}

// muliEligible reports whether op is one of the three opcodes the C++
// source additionally tries a muli scan from after a powi scan finds
// nothing (§4.5.1): Dup, Fetch and Neg.
func muliEligible(op opcode.Opcode) bool {
	switch op {
	case opcode.Dup, opcode.Fetch, opcode.Neg:
		return true
	default:
		return false
	}
}
