package rangeanalysis

import (
	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/tree"
)

// IsAlwaysSigned reports whether n's value is always >=0 (Always), always <0
// (Never, by this function's convention: "signed" meaning negative), or
// Unknown, as derived from its proven range.
func (a *Analyzer[S]) IsAlwaysSigned(n *tree.Node[S]) TriTruth {
	r := a.CalculateResultBoundaries(n)
	var zero S
	switch {
	case r.Min != nil && *r.Min >= zero:
		return Always
	case r.Max != nil && *r.Max < zero:
		return Never
	default:
		return Unknown
	}
}

// IsAlwaysInteger reports whether n's value is provably an integer in every
// evaluation, using the range analyzer's opcode table for closure properties
// (sums/products of integers, rounding opcodes, immediates) rather than
// re-deriving a range.
func (a *Analyzer[S]) IsAlwaysInteger(n *tree.Node[S]) TriTruth {
	ops := a.Ops
	switch n.Opcode {
	case opcode.Immed:
		if ops.IsInteger(n.Immed) {
			return Always
		}
		return Unknown
	case opcode.Floor, opcode.Ceil, opcode.Trunc, opcode.Int:
		return Always
	case opcode.Neg:
		return a.IsAlwaysInteger(n.Params[0])
	case opcode.Abs:
		return a.IsAlwaysInteger(n.Params[0])
	case opcode.Add, opcode.Sub, opcode.Mul:
		for _, p := range n.Params {
			if a.IsAlwaysInteger(p) != Always {
				return Unknown
			}
		}
		return Always
	case opcode.Min, opcode.Max:
		for _, p := range n.Params {
			if a.IsAlwaysInteger(p) != Always {
				return Unknown
			}
		}
		return Always
	case opcode.Pow:
		if a.IsAlwaysInteger(n.Params[0]) == Always &&
			n.Params[1].IsImmed() && ops.IsInteger(n.Params[1].Immed) && n.Params[1].Immed >= 0 {
			return Always
		}
		return Unknown
	default:
		return Unknown
	}
}

// evenness classifies an always-integer value's parity.
type evenness struct {
	parity TriTruth // Always = always even, Never = always odd, Unknown otherwise
}

// GetEvennessInfo derives the parity of an always-integer node, used by Pow
// folding to decide whether a negative base still yields a non-negative
// result.
func (a *Analyzer[S]) GetEvennessInfo(n *tree.Node[S]) evenness {
	ops := a.Ops
	if a.IsAlwaysInteger(n) != Always {
		return evenness{Unknown}
	}
	switch n.Opcode {
	case opcode.Immed:
		if ops.IsEvenInteger(n.Immed) {
			return evenness{Always}
		}
		if ops.IsOddInteger(n.Immed) {
			return evenness{Never}
		}
		return evenness{Unknown}
	case opcode.Mul:
		sawUnknown := false
		for _, p := range n.Params {
			switch a.GetEvennessInfo(p).parity {
			case Always:
				return evenness{Always}
			case Unknown:
				sawUnknown = true
			}
		}
		if sawUnknown {
			return evenness{Unknown}
		}
		return evenness{Never}
	case opcode.Add, opcode.Sub:
		parity := Always // start at "even" identity, XOR each odd term
		for _, p := range n.Params {
			pe := a.GetEvennessInfo(p).parity
			if pe == Unknown {
				return evenness{Unknown}
			}
			if pe == Never {
				if parity == Always {
					parity = Never
				} else {
					parity = Always
				}
			}
		}
		return evenness{parity}
	default:
		return evenness{Unknown}
	}
}

// IsAlwaysParity reports n's parity as a TriTruth directly (Always = even,
// Never = odd, Unknown = not provably either or not provably an integer).
func (a *Analyzer[S]) IsAlwaysParity(n *tree.Node[S]) TriTruth {
	return a.GetEvennessInfo(n).parity
}

// IsLongIntegerImmed reports whether n is an Immed leaf whose value fits the
// host's "long integer" range (spec.md's IsLongInteger predicate), used by
// the powi/muli exponent-chain planner to admit an exponent as chainable.
func (a *Analyzer[S]) IsLongIntegerImmed(n *tree.Node[S]) bool {
	return n.IsImmed() && a.Ops.IsLongInteger(n.Immed)
}
